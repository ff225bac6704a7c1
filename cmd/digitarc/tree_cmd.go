package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/vanderheijden86/digitarc/pkg/applog"
	"github.com/vanderheijden86/digitarc/pkg/model"
	"github.com/vanderheijden86/digitarc/pkg/tree"
)

type treeOptions struct {
	src       sourceFlags
	eager     bool
	expandAll bool
	asJSON    bool
	noColor   bool
}

func newTreeCmd(opts *rootOptions) *cobra.Command {
	var o treeOptions
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the collection tree without a terminal UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(opts, "tree")
			if err != nil {
				return err
			}
			defer e.Close()

			source, err := o.src.resolve(e.cfg)
			if err != nil {
				return err
			}
			client, err := e.client()
			if err != nil {
				return err
			}
			strategy := e.cfg.Strategy()
			if o.eager {
				strategy = tree.StrategyEager
			}
			mgr, err := tree.NewManager(client, source, tree.Options{
				Strategy:    strategy,
				MaxDepth:    e.cfg.Tree.MaxDepth,
				Concurrency: e.cfg.Tree.FetchConcurrency,
				Logger:      applog.NewAdapter(e.logger),
			})
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := loadTree(ctx, mgr); err != nil {
				return err
			}
			if o.expandAll {
				for _, ferr := range expandAll(ctx, mgr, e.cfg.Tree.FetchConcurrency, e.cfg.Tree.MaxDepth) {
					e.logger.Warn("expand failed", "error", ferr)
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", ferr)
				}
			} else if strategy == tree.StrategyEager {
				mgr.ExpandKnown()
			}

			out := cmd.OutOrStdout()
			if o.asJSON {
				return writeTreeJSON(out, mgr)
			}
			printTree(out, mgr, e.cfg.Tree.IndentUnit, newTreeStyles(out, o.noColor))
			return nil
		},
	}
	o.src.register(cmd)
	cmd.Flags().BoolVar(&o.eager, "eager", false, "prefetch the whole forest (overrides tree.strategy)")
	cmd.Flags().BoolVar(&o.expandAll, "expand-all", false, "fetch and expand every collection")
	cmd.Flags().BoolVar(&o.asJSON, "json", false, "print the loaded forest as nested JSON")
	cmd.Flags().BoolVar(&o.noColor, "no-color", false, "never colour the output")
	return cmd
}

// loadTree fetches the roots and applies them.
func loadTree(ctx context.Context, mgr *tree.Manager) error {
	mgr.Apply(mgr.Load()(ctx))
	if err := mgr.RootsErr(); err != nil {
		return fmt.Errorf("loading %s: %w", mgr.Source(), err)
	}
	return nil
}

// expandAll expands every collection, fetching level by level. Fetches of
// one level run concurrently; results are applied on this goroutine since
// the store is single-writer. A node whose fetch fails stays collapsed and
// its error is returned.
func expandAll(ctx context.Context, mgr *tree.Manager, concurrency, maxDepth int) []error {
	if concurrency <= 0 {
		concurrency = tree.DefaultConcurrency
	}
	if maxDepth <= 0 {
		maxDepth = tree.DefaultMaxDepth
	}
	failed := make(map[string]bool)
	var errs []error

	for level := 0; level <= maxDepth; level++ {
		var fetches []tree.Fetch
		progressed := false
		for _, n := range mgr.VisibleNodes() {
			if !n.HasToggle || n.Expanded || n.Loading || failed[n.ID()] {
				continue
			}
			progressed = true
			if f := mgr.Expand(n.ID()); f != nil {
				fetches = append(fetches, f)
			}
		}
		if !progressed {
			break
		}

		results := make([]tree.Result, len(fetches))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for i, f := range fetches {
			g.Go(func() error {
				results[i] = f(gctx)
				return nil
			})
		}
		_ = g.Wait()

		for _, r := range results {
			mgr.Apply(r)
			if r.Err != nil {
				failed[r.NodeID] = true
				errs = append(errs, r.Err)
			}
		}
	}
	return errs
}

// treeStyles colours the printed tree; the zero value prints plain text.
type treeStyles struct {
	enabled bool
	name    lipgloss.Style
	badge   lipgloss.Style
	id      lipgloss.Style
}

// newTreeStyles enables colour only when w is a terminal.
func newTreeStyles(w io.Writer, noColor bool) treeStyles {
	f, ok := w.(*os.File)
	if noColor || !ok || !term.IsTerminal(int(f.Fd())) {
		return treeStyles{}
	}
	r := lipgloss.NewRenderer(w)
	return treeStyles{
		enabled: true,
		name:    r.NewStyle().Bold(true),
		badge:   r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#8839EF", Dark: "#BD93F9"}),
		id:      r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#9CA0B0", Dark: "#6272A4"}),
	}
}

func (s treeStyles) render(st lipgloss.Style, text string) string {
	if !s.enabled {
		return text
	}
	return st.Render(text)
}

// printTree writes one line per visible node: the indent prefix (unit per
// ancestor), the name, the type and the id.
func printTree(w io.Writer, mgr *tree.Manager, unit string, st treeStyles) {
	if unit == "" {
		unit = "  "
	}
	idx := tree.NewIndex(mgr.AllKnownCollections())
	nodes := mgr.VisibleNodes()
	if len(nodes) == 0 {
		fmt.Fprintln(w, "(no collections)")
		return
	}
	for _, n := range nodes {
		c := n.Collection
		var b strings.Builder
		b.WriteString(idx.IndentPrefix(c.ID, unit))
		b.WriteString(st.render(st.name, c.Name))
		if c.CollectionType != model.TypeUnset {
			b.WriteString("  ")
			b.WriteString(st.render(st.badge, "["+string(c.CollectionType)+"]"))
		}
		b.WriteString("  ")
		b.WriteString(st.render(st.id, c.ID))
		fmt.Fprintln(w, b.String())
	}
}

// jsonNode is the --json shape of one collection. Fetched is false when
// its children were never loaded.
type jsonNode struct {
	ID       string               `json:"id"`
	Name     string               `json:"name"`
	Type     model.CollectionType `json:"collection_type,omitempty"`
	Fetched  bool                 `json:"fetched"`
	Children []jsonNode           `json:"children,omitempty"`
}

func writeTreeJSON(w io.Writer, mgr *tree.Manager) error {
	snap := mgr.Snapshot()
	onPath := make(map[string]bool)
	var build func(cs []model.Collection, depth int) []jsonNode
	build = func(cs []model.Collection, depth int) []jsonNode {
		out := make([]jsonNode, 0, len(cs))
		for _, c := range cs {
			n := jsonNode{ID: c.ID, Name: c.Name, Type: c.CollectionType}
			if kids, ok := snap.Children(c.ID); ok && !onPath[c.ID] && depth < tree.MaxAncestorDepth {
				n.Fetched = true
				onPath[c.ID] = true
				n.Children = build(kids, depth+1)
				delete(onPath, c.ID)
			}
			out = append(out, n)
		}
		return out
	}
	data, err := json.MarshalIndent(build(mgr.Roots(), 0), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding tree: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
