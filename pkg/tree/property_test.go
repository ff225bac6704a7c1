package tree

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"
)

// genForest builds a random forest under project P and returns its fake
// directory plus every collection id.
func genForest(t *rapid.T) (*fakeDirectory, []string) {
	f := newFakeDirectory()
	n := rapid.IntRange(1, 25).Draw(t, "size")
	all := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("c%02d", i)
		if i == 0 || rapid.IntRange(0, 3).Draw(t, "rootChance") == 0 {
			f.addRoot("P", id)
		} else {
			parent := all[rapid.IntRange(0, len(all)-1).Draw(t, "parent")]
			f.addChild(parent, id)
		}
		all = append(all, id)
	}
	return f, all
}

func TestPropertyVisibleNodesAreConsistent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f, all := genForest(t)
		m := loadedManager(f, StrategyLazy)

		steps := rapid.IntRange(0, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			id := rapid.SampledFrom(all).Draw(t, "toggle")
			run(m, m.Toggle(id))
		}

		snap := m.Snapshot()
		nodes := m.VisibleNodes()
		seen := make(map[string]bool)
		for i, n := range nodes {
			if seen[n.ID()] {
				t.Fatalf("node %s rendered twice", n.ID())
			}
			seen[n.ID()] = true

			// Expanded implies fetched.
			if snap.IsExpanded(n.ID()) && !snap.HasFetched(n.ID()) {
				t.Fatalf("%s expanded without cached children", n.ID())
			}
			// A child row sits exactly one level below its parent row.
			if n.Depth > 0 {
				parent := n.Collection.ParentID()
				j := i - 1
				for j >= 0 && nodes[j].Depth >= n.Depth {
					j--
				}
				if j < 0 || nodes[j].ID() != parent || !nodes[j].Expanded {
					t.Fatalf("%s at depth %d not under expanded parent %s", n.ID(), n.Depth, parent)
				}
			}
		}

		// No fetch left in flight once every result is applied.
		if len(snap.LoadingIDs()) != 0 {
			t.Fatalf("loading left set: %v", snap.LoadingIDs())
		}
	})
}

func TestPropertyEagerMatchesLazyFullyExpanded(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f, _ := genForest(t)

		eager := loadedManager(f, StrategyEager)
		eager.ExpandKnown()

		lazy := loadedManager(f, StrategyLazy)
		// Expand breadth-first until nothing new appears.
		for changed := true; changed; {
			changed = false
			for _, n := range lazy.VisibleNodes() {
				if n.HasToggle && !n.Expanded {
					run(lazy, lazy.Toggle(n.ID()))
					changed = true
				}
			}
		}

		e, l := ids(eager.VisibleNodes()), ids(lazy.VisibleNodes())
		if fmt.Sprint(e) != fmt.Sprint(l) {
			t.Fatalf("eager %v != lazy %v", e, l)
		}
		if eager.TotalCount() != len(e) {
			t.Fatalf("TotalCount %d != visible %d", eager.TotalCount(), len(e))
		}
	})
}

func TestPropertyIndentMatchesVisibleDepth(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f, _ := genForest(t)
		m := loadedManager(f, StrategyEager)
		m.ExpandKnown()

		idx := NewIndex(m.AllKnownCollections())
		for _, n := range m.VisibleNodes() {
			if d := idx.Depth(n.ID()); d != n.Depth {
				t.Fatalf("%s: index depth %d, row depth %d", n.ID(), d, n.Depth)
			}
		}
	})
}
