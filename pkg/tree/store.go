// Package tree holds the client-side view model of a project's collection
// forest: which nodes are expanded, which children lists are cached, and
// which fetches are in flight.
//
// State lives in immutable Snapshots. Every mutation copies the current
// snapshot, edits the copy and publishes it, so an observer holding the old
// pointer never sees it change underneath it. Snapshots are safe to read from
// fetch goroutines for that reason; mutations must happen on the owning
// event loop.
package tree

import (
	"reflect"
	"sort"

	"github.com/vanderheijden86/digitarc/pkg/model"
)

// Snapshot is one immutable state of the tree store.
type Snapshot struct {
	expanded map[string]bool
	loading  map[string]bool
	// children: absent key = unknown, present key with empty list = known leaf.
	children map[string][]model.Collection
	epoch    uint64
}

func emptySnapshot(epoch uint64) *Snapshot {
	return &Snapshot{
		expanded: make(map[string]bool),
		loading:  make(map[string]bool),
		children: make(map[string][]model.Collection),
		epoch:    epoch,
	}
}

// IsExpanded reports whether id is shown expanded.
func (s *Snapshot) IsExpanded(id string) bool {
	return s.expanded[id]
}

// IsLoading reports whether a children fetch for id is in flight.
func (s *Snapshot) IsLoading(id string) bool {
	return s.loading[id]
}

// HasFetched reports whether the children of id are cached (possibly empty).
func (s *Snapshot) HasFetched(id string) bool {
	_, ok := s.children[id]
	return ok
}

// Children returns the cached children of id and whether they are known.
// The returned slice must not be modified.
func (s *Snapshot) Children(id string) ([]model.Collection, bool) {
	c, ok := s.children[id]
	return c, ok
}

// IsKnownLeaf reports whether id is cached with no children.
func (s *Snapshot) IsKnownLeaf(id string) bool {
	c, ok := s.children[id]
	return ok && len(c) == 0
}

// Epoch identifies the store generation the snapshot belongs to. It changes
// on every Reset, which is how stale fetch results are recognized.
func (s *Snapshot) Epoch() uint64 {
	return s.epoch
}

// FetchedIDs returns the ids with cached children, sorted.
func (s *Snapshot) FetchedIDs() []string {
	return sortedKeys(s.children)
}

// ExpandedIDs returns the expanded ids, sorted.
func (s *Snapshot) ExpandedIDs() []string {
	return sortedKeys(s.expanded)
}

// LoadingIDs returns the ids with a fetch in flight, sorted.
func (s *Snapshot) LoadingIDs() []string {
	return sortedKeys(s.loading)
}

// Equal compares two snapshots by value.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.epoch == other.epoch &&
		reflect.DeepEqual(s.expanded, other.expanded) &&
		reflect.DeepEqual(s.loading, other.loading) &&
		reflect.DeepEqual(s.children, other.children)
}

func (s *Snapshot) clone() *Snapshot {
	n := &Snapshot{
		expanded: make(map[string]bool, len(s.expanded)),
		loading:  make(map[string]bool, len(s.loading)),
		children: make(map[string][]model.Collection, len(s.children)),
		epoch:    s.epoch,
	}
	for k, v := range s.expanded {
		n.expanded[k] = v
	}
	for k, v := range s.loading {
		n.loading[k] = v
	}
	// Cached lists are never edited in place, so sharing them is safe.
	for k, v := range s.children {
		n.children[k] = v
	}
	return n
}

// Mutation is the writable copy handed to Store.Update.
type Mutation struct {
	next *Snapshot
}

// SetChildren records the child list of parentID. nil is stored as an
// empty list: the node becomes a known leaf.
func (m *Mutation) SetChildren(parentID string, children []model.Collection) {
	list := make([]model.Collection, len(children))
	for i := range children {
		list[i] = children[i].Clone()
	}
	m.next.children[parentID] = list
}

// ForgetChildren drops the cached list so the node reads as unknown again.
func (m *Mutation) ForgetChildren(parentID string) {
	delete(m.next.children, parentID)
}

// SetExpanded expands or collapses id. Expanding a node whose children are
// not cached is refused and reported as false.
func (m *Mutation) SetExpanded(id string, expanded bool) bool {
	if !expanded {
		delete(m.next.expanded, id)
		return true
	}
	if !m.next.HasFetched(id) {
		return false
	}
	m.next.expanded[id] = true
	return true
}

// SetLoading marks or clears an in-flight fetch for id.
func (m *Mutation) SetLoading(id string, loading bool) {
	if loading {
		m.next.loading[id] = true
		return
	}
	delete(m.next.loading, id)
}

// Store owns the current snapshot of one view instance.
type Store struct {
	snap     *Snapshot
	onChange func(*Snapshot)
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{snap: emptySnapshot(1)}
}

// OnChange registers the observer called after every published snapshot.
func (s *Store) OnChange(fn func(*Snapshot)) {
	s.onChange = fn
}

// Snapshot returns the current snapshot.
func (s *Store) Snapshot() *Snapshot {
	return s.snap
}

// Epoch returns the current store generation.
func (s *Store) Epoch() uint64 {
	return s.snap.epoch
}

// Update applies fn to a copy of the current snapshot and publishes the copy
// as one change.
func (s *Store) Update(fn func(m *Mutation)) *Snapshot {
	m := &Mutation{next: s.snap.clone()}
	fn(m)
	s.publish(m.next)
	return m.next
}

// SetChildren caches the child list of parentID.
func (s *Store) SetChildren(parentID string, children []model.Collection) {
	s.Update(func(m *Mutation) { m.SetChildren(parentID, children) })
}

// SetExpanded expands or collapses id; see Mutation.SetExpanded.
func (s *Store) SetExpanded(id string, expanded bool) bool {
	var ok bool
	s.Update(func(m *Mutation) { ok = m.SetExpanded(id, expanded) })
	return ok
}

// SetLoading marks or clears an in-flight fetch for id.
func (s *Store) SetLoading(id string, loading bool) {
	s.Update(func(m *Mutation) { m.SetLoading(id, loading) })
}

// IsExpanded reports whether id is expanded in the current snapshot.
func (s *Store) IsExpanded(id string) bool { return s.snap.IsExpanded(id) }

// IsLoading reports whether id has a fetch in flight.
func (s *Store) IsLoading(id string) bool { return s.snap.IsLoading(id) }

// HasFetched reports whether the children of id are cached.
func (s *Store) HasFetched(id string) bool { return s.snap.HasFetched(id) }

// Reset discards all state and starts a new epoch. Results of fetches
// started before the reset are ignored when they arrive.
func (s *Store) Reset() {
	s.publish(emptySnapshot(s.snap.epoch + 1))
}

func (s *Store) publish(next *Snapshot) {
	s.snap = next
	if s.onChange != nil {
		s.onChange(next)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
