// tree.go - Collection tree pane: recursive render over the tree store
package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/digitarc/pkg/model"
	"github.com/vanderheijden86/digitarc/pkg/tree"
)

// Branch glyphs.
const (
	guideLine  = "│   "
	guideBlank = "    "
	branchMid  = "├── "
	branchLast = "└── "
)

// Toggle glyphs. A known leaf shows leafGlyph instead of a toggle.
const (
	expandedGlyph  = "▾"
	collapsedGlyph = "▸"
	leafGlyph      = "•"
)

// TreeFetchMsg carries a finished tree fetch back to the event loop.
type TreeFetchMsg struct {
	Result tree.Result
	// mgr is the manager that issued the fetch; results for a replaced
	// manager are dropped.
	mgr *tree.Manager
}

// ViewCollectionMsg asks the app to show a collection's detail.
type ViewCollectionMsg struct {
	Collection model.Collection
}

// AddSubcollectionMsg asks the app to open the creation form under ParentID.
type AddSubcollectionMsg struct {
	ParentID   string
	ParentName string
}

// fetchCmd runs f off the event loop.
func fetchCmd(ctx context.Context, mgr *tree.Manager, f tree.Fetch) tea.Cmd {
	if f == nil {
		return nil
	}
	return func() tea.Msg {
		return TreeFetchMsg{Result: f(ctx), mgr: mgr}
	}
}

// CollectionTreeModel is the tree pane. The manager owns all expansion
// state; the model only keeps the cursor and the viewport.
type CollectionTreeModel struct {
	mgr   *tree.Manager
	theme Theme
	ctx   context.Context

	nodes          []tree.Node // last materialized rows, for navigation
	cursor         int
	viewportOffset int
	width          int
	height         int

	spin     spinner.Model
	spinning bool
}

// NewCollectionTreeModel creates the pane over mgr.
func NewCollectionTreeModel(ctx context.Context, mgr *tree.Manager, theme Theme) CollectionTreeModel {
	sp := spinner.New(spinner.WithSpinner(spinner.MiniDot))
	sp.Style = theme.Renderer.NewStyle().Foreground(theme.Secondary)
	t := CollectionTreeModel{
		mgr:   mgr,
		theme: theme,
		ctx:   ctx,
		spin:  sp,
	}
	t.Refresh()
	return t
}

// Manager returns the underlying tree manager.
func (t *CollectionTreeModel) Manager() *tree.Manager {
	return t.mgr
}

// SetSize sets the pane dimensions.
func (t *CollectionTreeModel) SetSize(width, height int) {
	t.width = width
	t.height = height
	t.ensureCursorVisible()
}

// Load starts a full reload of the tree.
func (t *CollectionTreeModel) Load() tea.Cmd {
	f := t.mgr.Load()
	t.Refresh()
	return t.startFetch(f)
}

// ApplyResult merges a finished fetch and re-materializes the rows.
func (t *CollectionTreeModel) ApplyResult(msg TreeFetchMsg) bool {
	if msg.mgr != nil && msg.mgr != t.mgr {
		return false
	}
	used := t.mgr.Apply(msg.Result)
	t.Refresh()
	return used
}

// Refresh re-materializes the visible rows, keeping the cursor on the same
// collection when it is still visible.
func (t *CollectionTreeModel) Refresh() {
	selected := t.SelectedID()
	t.nodes = t.mgr.VisibleNodes()
	if selected == "" || !t.SelectByID(selected) {
		t.clampCursor()
	}
	t.ensureCursorVisible()
}

func (t *CollectionTreeModel) startFetch(f tree.Fetch) tea.Cmd {
	cmd := fetchCmd(t.ctx, t.mgr, f)
	if cmd == nil {
		return nil
	}
	if t.spinning {
		return cmd
	}
	t.spinning = true
	return tea.Batch(cmd, t.spin.Tick)
}

// UpdateSpinner advances the loading glyph while anything is loading.
func (t *CollectionTreeModel) UpdateSpinner(msg spinner.TickMsg) tea.Cmd {
	rootsSettled := t.mgr.RootsLoaded() || t.mgr.RootsErr() != nil
	if len(t.mgr.Snapshot().LoadingIDs()) == 0 && rootsSettled {
		t.spinning = false
		return nil
	}
	var cmd tea.Cmd
	t.spin, cmd = t.spin.Update(msg)
	return cmd
}

// HandleKey handles tree navigation and node actions.
func (t *CollectionTreeModel) HandleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "j", "down":
		t.MoveDown()
	case "k", "up":
		t.MoveUp()
	case "g", "home":
		t.JumpToTop()
	case "G", "end":
		t.JumpToBottom()
	case "ctrl+d", "pgdown":
		t.PageDown()
	case "ctrl+u", "pgup":
		t.PageUp()
	case " ":
		return t.ToggleSelected()
	case "l", "right":
		return t.ExpandOrMoveToChild()
	case "h", "left":
		t.CollapseOrJumpToParent()
	case "enter":
		return t.ViewSelected()
	case "a":
		return t.AddSubcollection()
	}
	return nil
}

// HandleMouse selects the clicked row and views it. row is relative to the
// top of the pane.
func (t *CollectionTreeModel) HandleMouse(msg tea.MouseMsg, row int) tea.Cmd {
	if msg.Action != tea.MouseActionPress {
		return nil
	}
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		t.MoveUp()
		return nil
	case tea.MouseButtonWheelDown:
		t.MoveDown()
		return nil
	case tea.MouseButtonLeft:
		idx := t.viewportOffset + row
		if idx < 0 || idx >= len(t.nodes) {
			return nil
		}
		t.cursor = idx
		return t.ViewSelected()
	}
	return nil
}

// ToggleSelected expands or collapses the selected node.
func (t *CollectionTreeModel) ToggleSelected() tea.Cmd {
	n, ok := t.SelectedNode()
	if !ok || !n.HasToggle {
		return nil
	}
	f := t.mgr.Toggle(n.ID())
	t.Refresh()
	return t.startFetch(f)
}

// ExpandOrMoveToChild handles → / l: a collapsed node expands (fetching
// when needed); an expanded node moves the cursor to its first child.
func (t *CollectionTreeModel) ExpandOrMoveToChild() tea.Cmd {
	n, ok := t.SelectedNode()
	if !ok || !n.HasToggle || n.Loading {
		return nil
	}
	if !n.Expanded {
		f := t.mgr.Expand(n.ID())
		t.Refresh()
		return t.startFetch(f)
	}
	if t.cursor+1 < len(t.nodes) && t.nodes[t.cursor+1].Depth == n.Depth+1 {
		t.cursor++
		t.ensureCursorVisible()
	}
	return nil
}

// CollapseOrJumpToParent handles ← / h: an expanded node collapses,
// anything else moves the cursor to its parent row.
func (t *CollectionTreeModel) CollapseOrJumpToParent() {
	n, ok := t.SelectedNode()
	if !ok {
		return
	}
	if n.Expanded {
		t.mgr.Collapse(n.ID())
		t.Refresh()
		return
	}
	t.JumpToParent()
}

// JumpToParent moves the cursor to the nearest row above at depth-1.
func (t *CollectionTreeModel) JumpToParent() {
	n, ok := t.SelectedNode()
	if !ok || n.Depth == 0 {
		return
	}
	for i := t.cursor - 1; i >= 0; i-- {
		if t.nodes[i].Depth == n.Depth-1 {
			t.cursor = i
			t.ensureCursorVisible()
			return
		}
	}
}

// CollapseAll collapses every node, keeping the cache.
func (t *CollectionTreeModel) CollapseAll() {
	t.mgr.CollapseAll()
	t.Refresh()
}

// ExpandKnown expands every node with cached children.
func (t *CollectionTreeModel) ExpandKnown() {
	t.mgr.ExpandKnown()
	t.Refresh()
}

// ViewSelected is the primary action on the selected node.
func (t *CollectionTreeModel) ViewSelected() tea.Cmd {
	n, ok := t.SelectedNode()
	if !ok {
		return nil
	}
	intent := t.mgr.ViewCollection(n.Collection)
	return func() tea.Msg { return ViewCollectionMsg{Collection: intent.Collection} }
}

// AddSubcollection is the secondary action on the selected node.
func (t *CollectionTreeModel) AddSubcollection() tea.Cmd {
	n, ok := t.SelectedNode()
	if !ok {
		return nil
	}
	intent, err := t.mgr.AddSubcollection(n.ID())
	if err != nil {
		return nil
	}
	return func() tea.Msg {
		return AddSubcollectionMsg{ParentID: intent.ParentID, ParentName: intent.ParentName}
	}
}

// SelectedNode returns the row under the cursor.
func (t *CollectionTreeModel) SelectedNode() (tree.Node, bool) {
	if t.cursor >= 0 && t.cursor < len(t.nodes) {
		return t.nodes[t.cursor], true
	}
	return tree.Node{}, false
}

// SelectedCollection returns the collection under the cursor.
func (t *CollectionTreeModel) SelectedCollection() (model.Collection, bool) {
	n, ok := t.SelectedNode()
	return n.Collection, ok
}

// SelectedID returns the id under the cursor, or "".
func (t *CollectionTreeModel) SelectedID() string {
	if n, ok := t.SelectedNode(); ok {
		return n.ID()
	}
	return ""
}

// SelectByID moves the cursor to id. Returns false when id is not visible.
func (t *CollectionTreeModel) SelectByID(id string) bool {
	for i, n := range t.nodes {
		if n.ID() == id {
			t.cursor = i
			t.ensureCursorVisible()
			return true
		}
	}
	return false
}

// NodeCount returns the number of visible rows.
func (t *CollectionTreeModel) NodeCount() int {
	return len(t.nodes)
}

// MoveDown moves the cursor down.
func (t *CollectionTreeModel) MoveDown() {
	if t.cursor < len(t.nodes)-1 {
		t.cursor++
		t.ensureCursorVisible()
	}
}

// MoveUp moves the cursor up.
func (t *CollectionTreeModel) MoveUp() {
	if t.cursor > 0 {
		t.cursor--
		t.ensureCursorVisible()
	}
}

// JumpToTop moves the cursor to the first row.
func (t *CollectionTreeModel) JumpToTop() {
	t.cursor = 0
	t.ensureCursorVisible()
}

// JumpToBottom moves the cursor to the last row.
func (t *CollectionTreeModel) JumpToBottom() {
	if len(t.nodes) > 0 {
		t.cursor = len(t.nodes) - 1
		t.ensureCursorVisible()
	}
}

// PageDown moves the cursor down by half a viewport.
func (t *CollectionTreeModel) PageDown() {
	t.cursor += t.pageSize()
	t.clampCursor()
	t.ensureCursorVisible()
}

// PageUp moves the cursor up by half a viewport.
func (t *CollectionTreeModel) PageUp() {
	t.cursor -= t.pageSize()
	t.clampCursor()
	t.ensureCursorVisible()
}

func (t *CollectionTreeModel) pageSize() int {
	if n := t.height / 2; n >= 1 {
		return n
	}
	return 5
}

func (t *CollectionTreeModel) clampCursor() {
	if t.cursor >= len(t.nodes) {
		t.cursor = len(t.nodes) - 1
	}
	if t.cursor < 0 {
		t.cursor = 0
	}
}

func (t *CollectionTreeModel) visibleRows() int {
	if t.height <= 0 {
		return 20
	}
	return t.height
}

func (t *CollectionTreeModel) ensureCursorVisible() {
	rows := t.visibleRows()
	if t.cursor < t.viewportOffset {
		t.viewportOffset = t.cursor
	}
	if t.cursor >= t.viewportOffset+rows {
		t.viewportOffset = t.cursor - rows + 1
	}
	if last := len(t.nodes) - rows; t.viewportOffset > last {
		t.viewportOffset = last
	}
	if t.viewportOffset < 0 {
		t.viewportOffset = 0
	}
}

// View renders the rows inside the viewport.
func (t *CollectionTreeModel) View() string {
	if err := t.mgr.RootsErr(); err != nil {
		return t.renderMessage("Could not load collections", err.Error(), "Press r to retry.")
	}
	if !t.mgr.RootsLoaded() {
		return t.renderMessage(t.spin.View()+" Loading collections…", "", "")
	}
	if len(t.mgr.Roots()) == 0 {
		return t.renderMessage("No collections yet", "", "Press n to create one.")
	}

	lines := t.renderLines()
	start := t.viewportOffset
	end := start + t.visibleRows()
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		start = end
	}
	return strings.Join(lines[start:end], "\n")
}

// renderLines renders every visible row by recursing into the expanded,
// cached children of each collection.
func (t *CollectionTreeModel) renderLines() []string {
	snap := t.mgr.Snapshot()
	var lines []string
	onPath := make(map[string]bool)

	var render func(list []model.Collection, depth int, prefix string)
	render = func(list []model.Collection, depth int, prefix string) {
		for i, c := range list {
			if onPath[c.ID] || depth > tree.MaxAncestorDepth {
				continue
			}
			last := i == len(list)-1
			kids, fetched := snap.Children(c.ID)
			loading := snap.IsLoading(c.ID)
			expanded := snap.IsExpanded(c.ID) && fetched

			branch := prefix
			if depth > 0 {
				if last {
					branch += branchLast
				} else {
					branch += branchMid
				}
			}
			row := len(lines)
			lines = append(lines, t.renderRow(c, branch, expanded, loading, fetched && len(kids) == 0, row == t.cursor))

			if expanded && len(kids) > 0 {
				next := prefix
				if depth > 0 {
					if last {
						next += guideBlank
					} else {
						next += guideLine
					}
				}
				onPath[c.ID] = true
				render(kids, depth+1, next)
				delete(onPath, c.ID)
			}
		}
	}
	render(t.mgr.Roots(), 0, "")
	return lines
}

func (t *CollectionTreeModel) renderRow(c model.Collection, branch string, expanded, loading, leaf, selected bool) string {
	r := t.theme.Renderer
	var sb strings.Builder

	if branch != "" {
		sb.WriteString(r.NewStyle().Foreground(t.theme.Muted).Render(branch))
	}

	var glyph string
	switch {
	case loading:
		glyph = t.spin.View()
	case leaf:
		glyph = r.NewStyle().Foreground(t.theme.Muted).Render(leafGlyph)
	case expanded:
		glyph = r.NewStyle().Foreground(t.theme.Secondary).Render(expandedGlyph)
	default:
		glyph = r.NewStyle().Foreground(t.theme.Secondary).Render(collapsedGlyph)
	}
	sb.WriteString(glyph)
	sb.WriteString(" ")

	badge, badgeColor := t.theme.TypeBadge(c.CollectionType)
	room := t.width - runewidth.StringWidth(branch) - 2
	if badge != "" {
		room -= runewidth.StringWidth(badge) + 1
	}
	sb.WriteString(truncateName(c.Name, room))
	if badge != "" {
		sb.WriteString(" ")
		sb.WriteString(r.NewStyle().Foreground(badgeColor).Render(badge))
	}

	line := sb.String()
	if selected {
		line = t.theme.Selected.Render(line)
	}
	return line
}

func (t *CollectionTreeModel) renderMessage(title, detail, hint string) string {
	r := t.theme.Renderer
	var sb strings.Builder
	sb.WriteString(r.NewStyle().Foreground(t.theme.Primary).Bold(true).Render(title))
	if detail != "" {
		sb.WriteString("\n\n")
		sb.WriteString(r.NewStyle().Foreground(t.theme.Error).Render(detail))
	}
	if hint != "" {
		sb.WriteString("\n\n")
		sb.WriteString(r.NewStyle().Foreground(t.theme.Muted).Render(hint))
	}
	return t.theme.Renderer.NewStyle().Width(t.width).Render(sb.String())
}

// truncateName shortens s to width display cells with an ellipsis. Widths
// under 8 are treated as 8 so a name never disappears.
func truncateName(s string, width int) string {
	if width < 8 {
		width = 8
	}
	return runewidth.Truncate(s, width, "…")
}
