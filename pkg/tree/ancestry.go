package tree

import (
	"context"
	"errors"
	"fmt"

	"github.com/vanderheijden86/digitarc/pkg/model"
)

var (
	// ErrAncestorCycle is reported when a parent chain revisits a collection.
	ErrAncestorCycle = errors.New("collection ancestry contains a cycle")
	// ErrAncestryTooDeep is reported when a chain exceeds the depth bound.
	ErrAncestryTooDeep = errors.New("collection ancestry exceeds depth limit")
)

// Getter fetches a single collection.
type Getter interface {
	Get(ctx context.Context, id string) (model.Collection, error)
}

// Ancestry is the resolved parent chain of a collection.
type Ancestry struct {
	// Chain runs from the outermost resolved ancestor down to the
	// collection's direct parent. It is partial when Truncated is set.
	Chain []model.Collection
	// ProjectID is the owning project, or "" when the walk did not reach a
	// root collection.
	ProjectID string
	Truncated bool
	Err       error
}

// Breadcrumb returns the names of the chain followed by leaf's name.
func (a Ancestry) Breadcrumb(leaf model.Collection) []string {
	out := make([]string, 0, len(a.Chain)+1)
	for _, c := range a.Chain {
		out = append(out, c.Name)
	}
	return append(out, leaf.Name)
}

// ResolveAncestors walks parent pointers upward from c with Get. A failed
// lookup, a cycle or the depth bound truncates the chain at the last
// resolved ancestor and leaves ProjectID empty; it never fails outright.
func ResolveAncestors(ctx context.Context, g Getter, c model.Collection, maxDepth int) Ancestry {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	var rev []model.Collection
	visited := map[string]bool{c.ID: true}
	cur := c
	var err error

	for {
		parentID := cur.ParentID()
		if parentID == "" {
			break
		}
		if visited[parentID] {
			err = fmt.Errorf("%w at %s", ErrAncestorCycle, parentID)
			break
		}
		if len(rev) >= maxDepth {
			err = fmt.Errorf("%w (%d)", ErrAncestryTooDeep, maxDepth)
			break
		}
		parent, gerr := g.Get(ctx, parentID)
		if gerr != nil {
			err = fmt.Errorf("resolving ancestor %s: %w", parentID, gerr)
			break
		}
		visited[parentID] = true
		rev = append(rev, parent)
		cur = parent
	}

	chain := make([]model.Collection, len(rev))
	for i, p := range rev {
		chain[len(rev)-1-i] = p
	}
	a := Ancestry{Chain: chain, Err: err, Truncated: err != nil}
	if err == nil {
		a.ProjectID = cur.Project()
	}
	return a
}
