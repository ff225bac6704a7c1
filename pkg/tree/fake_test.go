package tree

import (
	"context"
	"errors"
	"sync"

	"github.com/vanderheijden86/digitarc/pkg/model"
)

var errNetwork = errors.New("network unreachable")

// fakeDirectory serves a fixed forest and counts calls. Safe for concurrent use.
type fakeDirectory struct {
	mu       sync.Mutex
	roots    map[string][]model.Collection // project id -> roots
	children map[string][]model.Collection // parent id -> children
	byID     map[string]model.Collection
	fail     map[string]bool
	panicOn  map[string]bool
	calls    map[string]int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		roots:    make(map[string][]model.Collection),
		children: make(map[string][]model.Collection),
		byID:     make(map[string]model.Collection),
		fail:     make(map[string]bool),
		panicOn:  make(map[string]bool),
		calls:    make(map[string]int),
	}
}

func (f *fakeDirectory) addRoot(projectID, id string) model.Collection {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := model.Collection{ID: id, Name: "Collection " + id, ProjectID: model.Ptr(projectID)}
	f.roots[projectID] = append(f.roots[projectID], c)
	f.byID[id] = c
	return c
}

func (f *fakeDirectory) addChild(parentID, id string) model.Collection {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := model.Collection{ID: id, Name: "Collection " + id, ParentCollectionID: model.Ptr(parentID)}
	f.children[parentID] = append(f.children[parentID], c)
	f.byID[id] = c
	return c
}

func (f *fakeDirectory) setFail(id string, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[id] = fail
}

func (f *fakeDirectory) callCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func (f *fakeDirectory) ListChildren(_ context.Context, parentID string) ([]model.Collection, error) {
	f.mu.Lock()
	f.calls[parentID]++
	fail := f.fail[parentID]
	panicking := f.panicOn[parentID]
	kids := append([]model.Collection{}, f.children[parentID]...)
	f.mu.Unlock()

	if panicking {
		panic("directory blew up")
	}
	if fail {
		return nil, errNetwork
	}
	return kids, nil
}

func (f *fakeDirectory) ListRoots(_ context.Context, projectID string) ([]model.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["project:"+projectID]++
	if f.fail["project:"+projectID] {
		return nil, errNetwork
	}
	return append([]model.Collection{}, f.roots[projectID]...), nil
}

func (f *fakeDirectory) Get(_ context.Context, id string) (model.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["get:"+id]++
	if f.fail["get:"+id] {
		return model.Collection{}, errNetwork
	}
	c, ok := f.byID[id]
	if !ok {
		return model.Collection{}, errors.New("not found")
	}
	return c, nil
}

// scenarioDirectory builds project P: C1 (leaf) and C2 -> [C2a -> [C2a1], C2b].
func scenarioDirectory() *fakeDirectory {
	f := newFakeDirectory()
	f.addRoot("P", "C1")
	f.addRoot("P", "C2")
	f.addChild("C2", "C2a")
	f.addChild("C2", "C2b")
	f.addChild("C2a", "C2a1")
	return f
}

// run executes a fetch synchronously and applies its result.
func run(m *Manager, fetch Fetch) Result {
	if fetch == nil {
		return Result{}
	}
	r := fetch(context.Background())
	m.Apply(r)
	return r
}

func loadedManager(f *fakeDirectory, strategy Strategy) *Manager {
	m, err := NewManager(f, Source{ProjectID: "P"}, Options{Strategy: strategy})
	if err != nil {
		panic(err)
	}
	run(m, m.Load())
	return m
}

func ids(nodes []Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID()
	}
	return out
}

func depths(nodes []Node) []int {
	out := make([]int, len(nodes))
	for i, n := range nodes {
		out[i] = n.Depth
	}
	return out
}
