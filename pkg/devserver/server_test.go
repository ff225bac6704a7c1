package devserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vanderheijden86/digitarc/pkg/directory"
	"github.com/vanderheijden86/digitarc/pkg/model"
	"github.com/vanderheijden86/digitarc/pkg/tree"
)

func newTestServer(t *testing.T, opts ...Option) (*Store, *directory.Client) {
	t.Helper()
	store, err := OpenStore(":memory:")
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	srv := httptest.NewServer(NewServer(store, opts...))
	t.Cleanup(srv.Close)

	client, err := directory.New(srv.URL+APIPrefix, directory.WithToken("secret"))
	if err != nil {
		t.Fatal(err)
	}
	return store, client
}

func TestCollectionLifecycle(t *testing.T) {
	ctx := context.Background()
	store, client := newTestServer(t)

	p, err := store.CreateProject(ctx, "Archive", "", "test")
	if err != nil {
		t.Fatal(err)
	}

	root, err := client.Create(ctx, model.CollectionCreate{Name: "  Fonds A ", CollectionType: model.TypeFonds, ProjectID: model.Ptr(p.ID)})
	if err != nil {
		t.Fatalf("Create root error = %v", err)
	}
	if root.Name != "Fonds A" || root.Project() != p.ID || !root.IsRoot() {
		t.Errorf("unexpected root: %+v", root)
	}

	child, err := client.Create(ctx, model.CollectionCreate{Name: "Series 1", ParentCollectionID: model.Ptr(root.ID)})
	if err != nil {
		t.Fatalf("Create child error = %v", err)
	}

	roots, err := client.ListRoots(ctx, p.ID)
	if err != nil || len(roots) != 1 || roots[0].ID != root.ID {
		t.Errorf("ListRoots = %v, %v", roots, err)
	}
	kids, err := client.ListChildren(ctx, root.ID)
	if err != nil || len(kids) != 1 || kids[0].ID != child.ID {
		t.Errorf("ListChildren = %v, %v", kids, err)
	}
	leaf, err := client.ListChildren(ctx, child.ID)
	if err != nil || leaf == nil || len(leaf) != 0 {
		t.Errorf("leaf children = %#v, %v; want empty non-nil", leaf, err)
	}

	typ := model.TypeSeries
	updated, err := client.Update(ctx, child.ID, model.CollectionUpdate{CollectionType: &typ})
	if err != nil || updated.CollectionType != model.TypeSeries {
		t.Errorf("Update = %+v, %v", updated, err)
	}

	if err := client.Delete(ctx, root.ID); err == nil {
		t.Error("deleting a collection with children should fail")
	} else {
		var re *directory.RequestError
		if !errors.As(err, &re) || re.Status != http.StatusConflict {
			t.Errorf("expected 409, got %v", err)
		}
	}
	if err := client.Delete(ctx, child.ID); err != nil {
		t.Fatalf("Delete child error = %v", err)
	}
	if _, err := client.Get(ctx, child.ID); !directory.IsNotFound(err) {
		t.Errorf("Get after delete = %v, want 404", err)
	}
}

func TestUpdateRefusesCycle(t *testing.T) {
	ctx := context.Background()
	store, client := newTestServer(t)

	p, _ := store.CreateProject(ctx, "Archive", "", "")
	a, _ := client.Create(ctx, model.CollectionCreate{Name: "A", ProjectID: model.Ptr(p.ID)})
	b, _ := client.Create(ctx, model.CollectionCreate{Name: "B", ParentCollectionID: model.Ptr(a.ID)})
	c, _ := client.Create(ctx, model.CollectionCreate{Name: "C", ParentCollectionID: model.Ptr(b.ID)})

	_, err := client.Update(ctx, a.ID, model.CollectionUpdate{ParentCollectionID: model.Ptr(c.ID)})
	var re *directory.RequestError
	if !errors.As(err, &re) || re.Status != http.StatusConflict {
		t.Fatalf("expected 409 moving A under its grandchild, got %v", err)
	}

	// Moving a root under a sibling tree drops its project link.
	d, _ := client.Create(ctx, model.CollectionCreate{Name: "D", ProjectID: model.Ptr(p.ID)})
	moved, err := client.Update(ctx, d.ID, model.CollectionUpdate{ParentCollectionID: model.Ptr(c.ID)})
	if err != nil {
		t.Fatalf("Update error = %v", err)
	}
	if moved.ParentID() != c.ID || moved.ProjectID != nil {
		t.Errorf("moved = %+v", moved)
	}
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	store, client := newTestServer(t)
	p, _ := store.CreateProject(ctx, "Archive", "", "")

	// The client validates first; go around it with the store to hit the
	// server-side checks for unknown references.
	if _, err := store.CreateCollection(ctx, model.CollectionCreate{Name: "X", ParentCollectionID: model.Ptr("missing")}); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown parent: got %v, want ErrNotFound", err)
	}
	if _, err := client.Create(ctx, model.CollectionCreate{Name: "X", ProjectID: model.Ptr("missing")}); !directory.IsNotFound(err) {
		t.Errorf("unknown project: got %v, want 404", err)
	}
	if _, err := client.Create(ctx, model.CollectionCreate{Name: "", ProjectID: model.Ptr(p.ID)}); err == nil {
		t.Error("empty name should be rejected")
	}
}

func TestTokenRequired(t *testing.T) {
	store, err := OpenStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	srv := httptest.NewServer(NewServer(store, WithToken("right")))
	defer srv.Close()

	client, _ := directory.New(srv.URL+APIPrefix, directory.WithToken("wrong"))
	_, err = client.ListProjects(context.Background())
	var re *directory.RequestError
	if !errors.As(err, &re) || re.Status != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}

	client, _ = directory.New(srv.URL+APIPrefix, directory.WithToken("right"))
	if _, err := client.ListProjects(context.Background()); err != nil {
		t.Errorf("ListProjects with right token: %v", err)
	}
}

func TestPagingAndBadQuery(t *testing.T) {
	ctx := context.Background()
	store, client := newTestServer(t)
	p, _ := store.CreateProject(ctx, "Archive", "", "")
	for _, name := range []string{"one", "two", "three"} {
		if _, err := client.Create(ctx, model.CollectionCreate{Name: name, ProjectID: model.Ptr(p.ID)}); err != nil {
			t.Fatal(err)
		}
	}

	page, err := client.List(ctx, directory.ListQuery{ProjectID: p.ID, Skip: 1, Limit: 1})
	if err != nil || len(page) != 1 || page[0].Name != "two" {
		t.Errorf("page = %v, %v; want [two]", page, err)
	}
}

func TestSeedDrivesTreeManager(t *testing.T) {
	ctx := context.Background()
	store, client := newTestServer(t)

	p, err := Seed(ctx, store)
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	m, err := tree.NewManager(client, tree.Source{ProjectID: p.ID}, tree.Options{Strategy: tree.StrategyEager})
	if err != nil {
		t.Fatal(err)
	}
	m.Apply(m.Load()(ctx))
	if m.RootsErr() != nil {
		t.Fatalf("roots error = %v", m.RootsErr())
	}
	if got := m.TotalCount(); got != 9 {
		t.Errorf("TotalCount = %d, want 9", got)
	}

	records, err := client.ListRecords(ctx, directory.RecordQuery{ProjectID: p.ID})
	if err != nil || len(records) != 6 {
		t.Errorf("project records = %d, %v; want 6", len(records), err)
	}
	all, err := client.ListRecords(ctx, directory.RecordQuery{})
	if err != nil {
		t.Fatal(err)
	}
	orphans := 0
	for _, r := range all {
		if r.IsOrphaned() {
			orphans++
		}
	}
	if orphans != 1 {
		t.Errorf("orphans = %d, want 1", orphans)
	}
}
