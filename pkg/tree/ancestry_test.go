package tree

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/vanderheijden86/digitarc/pkg/model"
)

type mapGetter map[string]model.Collection

func (g mapGetter) Get(_ context.Context, id string) (model.Collection, error) {
	c, ok := g[id]
	if !ok {
		return model.Collection{}, errors.New("not found")
	}
	return c, nil
}

func names(cs []model.Collection) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}

func TestResolveAncestorsFullChain(t *testing.T) {
	g := mapGetter{"R": coll("R", ""), "A": coll("A", "R"), "B": coll("B", "A")}
	leaf := coll("leaf", "B")

	a := ResolveAncestors(context.Background(), g, leaf, 0)
	if a.Truncated || a.Err != nil {
		t.Fatalf("unexpected truncation: %v", a.Err)
	}
	if got := names(a.Chain); !reflect.DeepEqual(got, []string{"R", "A", "B"}) {
		t.Errorf("chain = %v, want [R A B]", got)
	}
	if a.ProjectID != "P" {
		t.Errorf("ProjectID = %q, want P", a.ProjectID)
	}
	if got := a.Breadcrumb(leaf); !reflect.DeepEqual(got, []string{"R", "A", "B", "leaf"}) {
		t.Errorf("breadcrumb = %v", got)
	}
}

func TestResolveAncestorsRoot(t *testing.T) {
	a := ResolveAncestors(context.Background(), mapGetter{}, coll("R", ""), 0)
	if len(a.Chain) != 0 || a.ProjectID != "P" || a.Truncated {
		t.Errorf("root ancestry = %+v", a)
	}
}

func TestResolveAncestorsTruncatesOnFailure(t *testing.T) {
	g := mapGetter{"A": coll("A", "gone")}
	a := ResolveAncestors(context.Background(), g, coll("leaf", "A"), 0)
	if !a.Truncated || a.Err == nil {
		t.Fatal("expected truncated ancestry")
	}
	if got := names(a.Chain); !reflect.DeepEqual(got, []string{"A"}) {
		t.Errorf("partial chain = %v, want [A]", got)
	}
	if a.ProjectID != "" {
		t.Errorf("ProjectID should be empty on truncation, got %q", a.ProjectID)
	}
}

func TestResolveAncestorsCycle(t *testing.T) {
	g := mapGetter{"A": coll("A", "B"), "B": coll("B", "A")}
	a := ResolveAncestors(context.Background(), g, coll("A", "B"), 0)
	if !errors.Is(a.Err, ErrAncestorCycle) {
		t.Errorf("expected ErrAncestorCycle, got %v", a.Err)
	}
	if len(a.Chain) != 1 {
		t.Errorf("chain = %v, want [B]", names(a.Chain))
	}
}

func TestResolveAncestorsDepthBound(t *testing.T) {
	g := mapGetter{"R": coll("R", ""), "A": coll("A", "R"), "B": coll("B", "A")}
	a := ResolveAncestors(context.Background(), g, coll("leaf", "B"), 2)
	if !errors.Is(a.Err, ErrAncestryTooDeep) {
		t.Errorf("expected ErrAncestryTooDeep, got %v", a.Err)
	}
	if got := names(a.Chain); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("chain = %v, want [A B]", got)
	}
}
