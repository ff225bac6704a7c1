package tree

import (
	"strings"

	"github.com/vanderheijden86/digitarc/pkg/model"
)

// MaxAncestorDepth bounds parent-pointer walks over known collections.
const MaxAncestorDepth = DefaultMaxDepth

// Node is one visible row of the tree.
type Node struct {
	Collection model.Collection
	Depth      int
	Expanded   bool
	Loading    bool
	Fetched    bool
	// HasToggle is false only for a known leaf that is not loading.
	HasToggle bool
	// IsLast is true for the last sibling under its parent.
	IsLast bool
	// Guides[i] is true when the ancestor at depth i has siblings below it,
	// i.e. a vertical guide line continues through this row.
	Guides []bool
}

// ID is shorthand for Collection.ID.
func (n Node) ID() string { return n.Collection.ID }

// VisibleNodes returns the visible rows in depth-first pre-order. A node's
// children follow it iff it is expanded and its children are cached. Server
// order is kept.
func VisibleNodes(roots []model.Collection, snap *Snapshot) []Node {
	var out []Node
	onPath := make(map[string]bool)
	var walk func(list []model.Collection, depth int, guides []bool)
	walk = func(list []model.Collection, depth int, guides []bool) {
		for i, c := range list {
			// A collection that is its own ancestor would recurse forever.
			if onPath[c.ID] || depth > MaxAncestorDepth {
				continue
			}
			kids, fetched := snap.Children(c.ID)
			loading := snap.IsLoading(c.ID)
			expanded := snap.IsExpanded(c.ID) && fetched
			last := i == len(list)-1

			n := Node{
				Collection: c,
				Depth:      depth,
				Expanded:   expanded,
				Loading:    loading,
				Fetched:    fetched,
				HasToggle:  !(fetched && len(kids) == 0) || loading,
				IsLast:     last,
				Guides:     append([]bool(nil), guides...),
			}
			out = append(out, n)

			if expanded && len(kids) > 0 {
				onPath[c.ID] = true
				walk(kids, depth+1, append(guides, !last))
				delete(onPath, c.ID)
			}
		}
	}
	walk(roots, 0, nil)
	return out
}

// AllKnownCollections returns the roots and every cached child, each once.
// Order: pre-order over the cache starting at the roots, then lists cached
// under parents not reachable from the roots, by parent id.
func AllKnownCollections(roots []model.Collection, snap *Snapshot) []model.Collection {
	seen := make(map[string]bool)
	var out []model.Collection

	var walk func(list []model.Collection, depth int)
	walk = func(list []model.Collection, depth int) {
		if depth > MaxAncestorDepth {
			return
		}
		for _, c := range list {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			out = append(out, c)
			if kids, ok := snap.Children(c.ID); ok {
				walk(kids, depth+1)
			}
		}
	}
	walk(roots, 0)

	for _, parent := range snap.FetchedIDs() {
		if seen[parent] {
			continue
		}
		kids, _ := snap.Children(parent)
		walk(kids, 0)
	}
	return out
}

// TotalCount counts the known collections, nested ones included.
func TotalCount(roots []model.Collection, snap *Snapshot) int {
	return len(AllKnownCollections(roots, snap))
}

// Index maps collection id to collection for parent-pointer walks.
type Index map[string]model.Collection

// NewIndex indexes known collections by id.
func NewIndex(known []model.Collection) Index {
	idx := make(Index, len(known))
	for _, c := range known {
		idx[c.ID] = c
	}
	return idx
}

// Depth counts the ancestors of id reachable through the index. The walk
// stops at a parent missing from the index (partial depth, no error), at a
// cycle, or after MaxAncestorDepth steps.
func (idx Index) Depth(id string) int {
	c, ok := idx[id]
	if !ok {
		return 0
	}
	depth := 0
	visited := map[string]bool{id: true}
	for depth < MaxAncestorDepth {
		parentID := c.ParentID()
		if parentID == "" || visited[parentID] {
			break
		}
		parent, ok := idx[parentID]
		if !ok {
			break
		}
		visited[parentID] = true
		depth++
		c = parent
	}
	return depth
}

// IndentPrefix returns unit repeated once per resolvable ancestor of id.
func (idx Index) IndentPrefix(id, unit string) string {
	return strings.Repeat(unit, idx.Depth(id))
}

// IndentPrefix is the one-shot form of Index.IndentPrefix.
func IndentPrefix(id string, known []model.Collection, unit string) string {
	return NewIndex(known).IndentPrefix(id, unit)
}

// IsDescendant reports whether id sits below ancestorID in the index.
func (idx Index) IsDescendant(id, ancestorID string) bool {
	c, ok := idx[id]
	visited := map[string]bool{id: true}
	for steps := 0; ok && steps < MaxAncestorDepth; steps++ {
		parentID := c.ParentID()
		if parentID == "" || visited[parentID] {
			return false
		}
		if parentID == ancestorID {
			return true
		}
		visited[parentID] = true
		c, ok = idx[parentID]
	}
	return false
}

// ParentOption is one entry of a "choose a parent collection" selector.
type ParentOption struct {
	ID    string
	Label string
	Depth int
}

// ParentOptions lists every known collection as a parent choice with an
// indented label. exclude, when set, drops that collection and its known
// descendants so a move can never create a cycle.
func ParentOptions(roots []model.Collection, snap *Snapshot, unit, exclude string) []ParentOption {
	known := AllKnownCollections(roots, snap)
	idx := NewIndex(known)
	out := make([]ParentOption, 0, len(known))
	for _, c := range known {
		if exclude != "" && (c.ID == exclude || idx.IsDescendant(c.ID, exclude)) {
			continue
		}
		depth := idx.Depth(c.ID)
		out = append(out, ParentOption{
			ID:    c.ID,
			Label: strings.Repeat(unit, depth) + c.Name,
			Depth: depth,
		})
	}
	return out
}
