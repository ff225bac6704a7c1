package ui

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/digitarc/pkg/directory"
	"github.com/vanderheijden86/digitarc/pkg/model"
)

const testProject = "P"

var errNotFound = errors.New("not found")

// fakeService is an in-memory directory keeping insertion order.
type fakeService struct {
	mu         sync.Mutex
	byID       map[string]model.Collection
	order      []string
	projects   []model.Project
	records    []model.Record
	failList   map[string]error
	failCreate error
	failDelete error
	childCalls map[string]int
	nextID     int
}

func newFakeService() *fakeService {
	return &fakeService{
		byID:       make(map[string]model.Collection),
		failList:   make(map[string]error),
		childCalls: make(map[string]int),
		projects:   []model.Project{{ID: testProject, Name: "Archive"}},
	}
}

// sampleService builds:
//
//	C1
//	C2
//	├── C2a
//	│   └── C2a1
//	└── C2b
func sampleService() *fakeService {
	f := newFakeService()
	f.add("C1", "Collection C1", "")
	f.add("C2", "Collection C2", "")
	f.add("C2a", "Collection C2a", "C2")
	f.add("C2a1", "Collection C2a1", "C2a")
	f.add("C2b", "Collection C2b", "C2")
	return f
}

func (f *fakeService) add(id, name, parent string) model.Collection {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := model.Collection{ID: id, Name: name}
	if parent == "" {
		c.ProjectID = model.Ptr(testProject)
	} else {
		c.ParentCollectionID = model.Ptr(parent)
	}
	f.byID[id] = c
	f.order = append(f.order, id)
	return c
}

func (f *fakeService) ListChildren(_ context.Context, parentID string) ([]model.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.childCalls[parentID]++
	if err := f.failList[parentID]; err != nil {
		return nil, err
	}
	out := []model.Collection{}
	for _, id := range f.order {
		if c := f.byID[id]; c.ParentID() == parentID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeService) ListRoots(_ context.Context, projectID string) ([]model.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failList[""]; err != nil {
		return nil, err
	}
	out := []model.Collection{}
	for _, id := range f.order {
		if c := f.byID[id]; c.IsRoot() && c.Project() == projectID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeService) Get(_ context.Context, id string) (model.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return model.Collection{}, fmt.Errorf("collection %s: %w", id, errNotFound)
	}
	return c, nil
}

func (f *fakeService) Create(_ context.Context, in model.CollectionCreate) (model.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate != nil {
		return model.Collection{}, f.failCreate
	}
	f.nextID++
	c := model.Collection{
		ID:                 fmt.Sprintf("new-%d", f.nextID),
		Name:               in.Name,
		Description:        in.Description,
		CollectionType:     in.CollectionType,
		ProjectID:          in.ProjectID,
		ParentCollectionID: in.ParentCollectionID,
	}
	f.byID[c.ID] = c
	f.order = append(f.order, c.ID)
	return c, nil
}

func (f *fakeService) Update(_ context.Context, id string, in model.CollectionUpdate) (model.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return model.Collection{}, errNotFound
	}
	if in.Name != nil {
		c.Name = *in.Name
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.CollectionType != nil {
		c.CollectionType = *in.CollectionType
	}
	if in.ParentCollectionID != nil {
		c.ParentCollectionID = in.ParentCollectionID
		c.ProjectID = nil
	}
	f.byID[id] = c
	return c, nil
}

func (f *fakeService) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete != nil {
		return f.failDelete
	}
	if _, ok := f.byID[id]; !ok {
		return errNotFound
	}
	delete(f.byID, id)
	for i, o := range f.order {
		if o == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeService) ListProjects(context.Context) ([]model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Project(nil), f.projects...), nil
}

func (f *fakeService) ListRecords(_ context.Context, q directory.RecordQuery) ([]model.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Record
	for _, r := range f.records {
		if q.CollectionID != "" && (r.CollectionID == nil || *r.CollectionID != q.CollectionID) {
			continue
		}
		if q.ProjectID != "" && (r.ProjectID == nil || *r.ProjectID != q.ProjectID) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeService) calls(parentID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.childCalls[parentID]
}

func newTestTheme() Theme {
	return DefaultTheme(lipgloss.NewRenderer(nil))
}
