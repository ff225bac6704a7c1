package tree

import (
	"context"
	"errors"
	"fmt"

	"github.com/vanderheijden86/digitarc/pkg/model"
)

// DefaultMaxDepth bounds eager prefetch and ancestor walks.
const DefaultMaxDepth = 64

// DefaultConcurrency bounds parallel sibling fetches in eager mode.
const DefaultConcurrency = 8

// ChildLister lists the immediate children of a collection.
type ChildLister interface {
	ListChildren(ctx context.Context, parentID string) ([]model.Collection, error)
}

// Directory is the part of the collection directory the manager uses.
type Directory interface {
	ChildLister
	ListRoots(ctx context.Context, projectID string) ([]model.Collection, error)
	Get(ctx context.Context, id string) (model.Collection, error)
}

// Source selects what the view shows: a project's forest or the subtree of
// a single collection. Exactly one field is set.
type Source struct {
	ProjectID    string
	CollectionID string
}

func (s Source) validate() error {
	if (s.ProjectID == "") == (s.CollectionID == "") {
		return errors.New("tree source needs exactly one of project id and collection id")
	}
	return nil
}

func (s Source) String() string {
	if s.ProjectID != "" {
		return "project " + s.ProjectID
	}
	return "collection " + s.CollectionID
}

// Options configures a Manager.
type Options struct {
	Strategy    Strategy
	MaxDepth    int
	Concurrency int
	Logger      Logger
}

// Manager is the collection tree of one view: the store, the root
// collections, and the operations that fetch into them.
//
// Manager is not safe for concurrent use. Call Load, Toggle and Apply from
// the event loop only; run the returned Fetch anywhere.
type Manager struct {
	dir         Directory
	source      Source
	store       *Store
	strategy    Strategy
	maxDepth    int
	concurrency int
	logger      Logger

	roots       []model.Collection
	rootsLoaded bool
	rootsErr    error
	closed      bool
}

// NewManager creates a manager with an empty store. Call Load to fetch the
// roots.
func NewManager(dir Directory, src Source, opts Options) (*Manager, error) {
	if dir == nil {
		return nil, errors.New("tree manager needs a directory")
	}
	if err := src.validate(); err != nil {
		return nil, err
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = NewNopLogger()
	}
	return &Manager{
		dir:         dir,
		source:      src,
		store:       NewStore(),
		strategy:    opts.Strategy,
		maxDepth:    opts.MaxDepth,
		concurrency: opts.Concurrency,
		logger:      opts.Logger,
	}, nil
}

// Store exposes the underlying store (observer registration, reads).
func (m *Manager) Store() *Store { return m.store }

// Snapshot returns the current store snapshot.
func (m *Manager) Snapshot() *Snapshot { return m.store.Snapshot() }

// Source returns what the manager was created for.
func (m *Manager) Source() Source { return m.source }

// Strategy returns the configured fetch strategy.
func (m *Manager) Strategy() Strategy { return m.strategy }

// Roots returns the root collections of the view.
func (m *Manager) Roots() []model.Collection { return m.roots }

// RootsLoaded reports whether a roots fetch has completed successfully.
func (m *Manager) RootsLoaded() bool { return m.rootsLoaded }

// RootsErr returns the error of the last roots fetch, if it failed.
func (m *Manager) RootsErr() error { return m.rootsErr }

// Load discards all state (a full reload) and returns the fetch of the
// roots. With the eager strategy the fetch also loads every descendant.
func (m *Manager) Load() Fetch {
	m.store.Reset()
	m.roots = nil
	m.rootsLoaded = false
	m.rootsErr = nil
	m.closed = false

	base := m.store.Snapshot()
	src := m.source
	eager := m.strategy == StrategyEager
	run := newFetchRun(m.dir, base, m.maxDepth, m.concurrency)
	dir := m.dir

	return func(ctx context.Context) Result {
		var roots []model.Collection
		var ferr *FetchError
		if src.ProjectID != "" {
			ferr = safeCall("roots", src.ProjectID, func() error {
				var err error
				roots, err = dir.ListRoots(ctx, src.ProjectID)
				return err
			})
		} else {
			ferr = safeCall("collection", src.CollectionID, func() error {
				c, err := dir.Get(ctx, src.CollectionID)
				if err != nil {
					return err
				}
				roots = []model.Collection{c}
				return nil
			})
		}
		if ferr != nil {
			res := run.result(ResultRoots, "")
			res.Err = ferr
			return res
		}
		if roots == nil {
			roots = []model.Collection{}
		}
		if eager {
			run.prefetch(ctx, roots, 1)
		}
		res := run.result(ResultRoots, "")
		res.Roots = roots
		return res
	}
}

// Toggle flips node id. Collapsing, or expanding a node whose children are
// cached, happens immediately and returns nil. Expanding an unknown node
// marks it loading and returns the Fetch to run; the node expands when its
// Result is applied. A node already loading is left alone.
func (m *Manager) Toggle(id string) Fetch {
	if m.closed {
		return nil
	}
	snap := m.store.Snapshot()
	if snap.IsExpanded(id) {
		m.store.SetExpanded(id, false)
		return nil
	}
	if snap.IsLoading(id) {
		return nil
	}
	if snap.HasFetched(id) {
		m.store.SetExpanded(id, true)
		return nil
	}
	m.store.SetLoading(id, true)
	return m.fetchChildren(id)
}

// Expand expands id if it is collapsed; see Toggle.
func (m *Manager) Expand(id string) Fetch {
	if m.store.IsExpanded(id) {
		return nil
	}
	return m.Toggle(id)
}

// Collapse collapses id, keeping its cached children.
func (m *Manager) Collapse(id string) {
	if m.store.IsExpanded(id) {
		m.store.SetExpanded(id, false)
	}
}

// CollapseAll collapses every node without evicting the cache.
func (m *Manager) CollapseAll() {
	m.store.Update(func(mu *Mutation) {
		for _, id := range m.store.Snapshot().ExpandedIDs() {
			mu.SetExpanded(id, false)
		}
	})
}

// ExpandKnown expands every node whose children are already cached and
// non-empty. Nothing is fetched.
func (m *Manager) ExpandKnown() {
	snap := m.store.Snapshot()
	m.store.Update(func(mu *Mutation) {
		for _, id := range snap.FetchedIDs() {
			if !snap.IsKnownLeaf(id) {
				mu.SetExpanded(id, true)
			}
		}
	})
}

func (m *Manager) fetchChildren(id string) Fetch {
	base := m.store.Snapshot()
	eager := m.strategy == StrategyEager
	run := newFetchRun(m.dir, base, m.maxDepth, m.concurrency)

	return func(ctx context.Context) Result {
		run.claim(id)
		kids, ferr := run.list(ctx, id)
		if ferr != nil {
			res := run.result(ResultChildren, id)
			res.Err = ferr
			return res
		}
		if eager {
			run.prefetch(ctx, kids, 1)
		}
		return run.result(ResultChildren, id)
	}
}

// Apply merges a Result into the store. Results from an earlier epoch or
// arriving after Close are dropped; Apply reports whether r was used.
func (m *Manager) Apply(r Result) bool {
	if m.closed || r.Epoch != m.store.Epoch() {
		m.logger.Debug("dropping stale tree result", "node", r.NodeID, "epoch", r.Epoch, "current", m.store.Epoch())
		return false
	}
	for _, f := range r.Failures {
		m.logger.Warn("prefetch failed", "parent", f.ParentID, "error", f.Cause)
	}

	switch r.Kind {
	case ResultRoots:
		if r.Err != nil {
			m.rootsErr = r.Err
			m.logger.Warn("loading roots failed", "source", m.source.String(), "error", r.Err)
			return true
		}
		m.roots = r.Roots
		m.rootsLoaded = true
		m.rootsErr = nil
		if len(r.Children) > 0 {
			m.store.Update(func(mu *Mutation) {
				for parent, kids := range r.Children {
					mu.SetChildren(parent, kids)
				}
			})
		}
		return true

	case ResultChildren:
		if r.Err != nil {
			m.logger.Warn("loading children failed", "collection", r.NodeID, "error", r.Err)
		}
		m.store.Update(func(mu *Mutation) {
			// Merge per key; unrelated cached lists are left as they are.
			for parent, kids := range r.Children {
				mu.SetChildren(parent, kids)
			}
			mu.SetLoading(r.NodeID, false)
			if r.Err == nil {
				mu.SetExpanded(r.NodeID, true)
			}
		})
		return true
	}
	return false
}

// Close tears the view down: later Apply calls are no-ops and Toggle does
// nothing until the next Load.
func (m *Manager) Close() {
	m.closed = true
	m.store.Reset()
}

// VisibleNodes materializes the current visible tree.
func (m *Manager) VisibleNodes() []Node {
	return VisibleNodes(m.roots, m.store.Snapshot())
}

// AllKnownCollections returns every collection the view knows about.
func (m *Manager) AllKnownCollections() []model.Collection {
	return AllKnownCollections(m.roots, m.store.Snapshot())
}

// TotalCount counts every known collection, nested ones included.
func (m *Manager) TotalCount() int {
	return TotalCount(m.roots, m.store.Snapshot())
}

// ParentOptions lists "choose a parent" choices, indented with unit.
// exclude (may be "") drops a collection and its known descendants.
func (m *Manager) ParentOptions(unit, exclude string) []ParentOption {
	return ParentOptions(m.roots, m.store.Snapshot(), unit, exclude)
}

// Find looks up a known collection by id.
func (m *Manager) Find(id string) (model.Collection, bool) {
	for _, c := range m.AllKnownCollections() {
		if c.ID == id {
			return c, true
		}
	}
	return model.Collection{}, false
}

// ViewIntent asks the enclosing page to show a collection's detail.
type ViewIntent struct {
	Collection model.Collection
}

// AddSubcollectionIntent asks the enclosing page to open a creation form
// pre-seeded with ParentID.
type AddSubcollectionIntent struct {
	ParentID   string
	ParentName string
}

// ViewCollection is the primary action on a node.
func (m *Manager) ViewCollection(c model.Collection) ViewIntent {
	return ViewIntent{Collection: c}
}

// AddSubcollection is the secondary action on a node.
func (m *Manager) AddSubcollection(parentID string) (AddSubcollectionIntent, error) {
	c, ok := m.Find(parentID)
	if !ok {
		return AddSubcollectionIntent{}, fmt.Errorf("collection %s is not in this tree", parentID)
	}
	return AddSubcollectionIntent{ParentID: c.ID, ParentName: c.Name}, nil
}
