package tree

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/digitarc/pkg/model"
)

// Strategy decides how much of the tree a fetch loads.
type Strategy int

const (
	// StrategyLazy fetches only the direct children of the toggled node.
	StrategyLazy Strategy = iota
	// StrategyEager fetches the toggled node's whole subtree (and the whole
	// forest on initial load).
	StrategyEager
)

func (s Strategy) String() string {
	switch s {
	case StrategyLazy:
		return "lazy"
	case StrategyEager:
		return "eager"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy parses "lazy" or "eager" (case-insensitive, "" = lazy).
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lazy":
		return StrategyLazy, nil
	case "eager", "eager-full-depth":
		return StrategyEager, nil
	}
	return StrategyLazy, fmt.Errorf("unknown tree strategy %q (want lazy or eager)", s)
}

// Fetch is the off-loop half of an operation. The event loop runs it on
// another goroutine and hands the Result back to Manager.Apply.
type Fetch func(ctx context.Context) Result

// ResultKind tells Apply what a Result carries.
type ResultKind int

const (
	ResultChildren ResultKind = iota
	ResultRoots
)

// Result is what a Fetch produces.
type Result struct {
	Kind  ResultKind
	Epoch uint64
	// NodeID is the toggled node for ResultChildren.
	NodeID string
	// Roots is set for ResultRoots.
	Roots []model.Collection
	// Children holds every list fetched successfully, keyed by parent id.
	Children map[string][]model.Collection
	// Err is the failure of the requested node (or of the roots).
	Err error
	// Failures are descendant prefetch failures; they never fail the request.
	Failures []*FetchError
}

// FetchError wraps a failed children or roots fetch with its context.
type FetchError struct {
	Phase    string // "roots", "collection", "children"
	ParentID string
	Cause    error
	Time     time.Time
}

func (e *FetchError) Error() string {
	if e.ParentID == "" {
		return fmt.Sprintf("%s fetch failed: %v", e.Phase, e.Cause)
	}
	return fmt.Sprintf("%s fetch for %s failed: %v", e.Phase, e.ParentID, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// safeCall runs fn and converts an error or a panic into a *FetchError.
func safeCall(phase, parentID string, fn func() error) (result *FetchError) {
	defer func() {
		if r := recover(); r != nil {
			result = &FetchError{
				Phase:    phase,
				ParentID: parentID,
				Cause:    fmt.Errorf("panic: %v\n%s", r, debug.Stack()),
				Time:     time.Now(),
			}
		}
	}()
	if err := fn(); err != nil {
		return &FetchError{Phase: phase, ParentID: parentID, Cause: err, Time: time.Now()}
	}
	return nil
}

// fetchRun collects the lists of one fetch. Goroutines of an eager run
// write into it concurrently.
type fetchRun struct {
	dir         ChildLister
	base        *Snapshot // immutable, safe to read off-loop
	maxDepth    int
	concurrency int

	mu       sync.Mutex
	children map[string][]model.Collection
	failures []*FetchError
	seen     map[string]bool
}

func newFetchRun(dir ChildLister, base *Snapshot, maxDepth, concurrency int) *fetchRun {
	return &fetchRun{
		dir:         dir,
		base:        base,
		maxDepth:    maxDepth,
		concurrency: concurrency,
		children:    make(map[string][]model.Collection),
		seen:        make(map[string]bool),
	}
}

// claim marks id as visited in this run; false means it was already taken.
func (r *fetchRun) claim(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen[id] {
		return false
	}
	r.seen[id] = true
	return true
}

func (r *fetchRun) list(ctx context.Context, parentID string) ([]model.Collection, *FetchError) {
	var out []model.Collection
	ferr := safeCall("children", parentID, func() error {
		var err error
		out, err = r.dir.ListChildren(ctx, parentID)
		return err
	})
	if ferr != nil {
		return nil, ferr
	}
	if out == nil {
		out = []model.Collection{}
	}
	r.mu.Lock()
	r.children[parentID] = out
	r.mu.Unlock()
	return out, nil
}

// prefetch loads the descendants of every node in parents, siblings in
// parallel. Failures are recorded and leave the failed key absent.
func (r *fetchRun) prefetch(ctx context.Context, parents []model.Collection, depth int) {
	if depth > r.maxDepth || len(parents) == 0 {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}
	for _, p := range parents {
		id := p.ID
		if !r.claim(id) {
			continue
		}
		fn := func() error {
			r.prefetchNode(gctx, id, depth)
			return nil
		}
		// Running inline when the limit is reached keeps nested levels from
		// waiting on slots held by their own ancestors.
		if !g.TryGo(fn) {
			fn()
		}
	}
	_ = g.Wait()
}

func (r *fetchRun) prefetchNode(ctx context.Context, id string, depth int) {
	if cached, ok := r.base.Children(id); ok {
		r.prefetch(ctx, cached, depth+1)
		return
	}
	kids, ferr := r.list(ctx, id)
	if ferr != nil {
		r.mu.Lock()
		r.failures = append(r.failures, ferr)
		r.mu.Unlock()
		return
	}
	r.prefetch(ctx, kids, depth+1)
}

func (r *fetchRun) result(kind ResultKind, nodeID string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Result{
		Kind:     kind,
		Epoch:    r.base.Epoch(),
		NodeID:   nodeID,
		Children: r.children,
		Failures: r.failures,
	}
}
