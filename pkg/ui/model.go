package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/digitarc/pkg/applog"
	"github.com/vanderheijden86/digitarc/pkg/config"
	"github.com/vanderheijden86/digitarc/pkg/model"
	"github.com/vanderheijden86/digitarc/pkg/tree"
)

const (
	// SplitViewThreshold is the width above which tree and detail sit side
	// by side.
	SplitViewThreshold = 100
	treePaneRatio      = 0.45
)

type focus int

const (
	focusTree focus = iota
	focusDetail
	focusForm
	focusTypePicker
	focusConfirmDelete
)

func (f focus) String() string {
	switch f {
	case focusTree:
		return "tree"
	case focusDetail:
		return "detail"
	case focusForm:
		return "form"
	case focusTypePicker:
		return "type_picker"
	case focusConfirmDelete:
		return "confirm_delete"
	}
	return "unknown"
}

// Options configures the app model.
type Options struct {
	Service Service
	Source  tree.Source
	Config  config.Config
	// Logger receives non-fatal conditions. Nil discards.
	Logger *slog.Logger
	// Renderer is the lipgloss renderer of the output; nil uses the default.
	Renderer *lipgloss.Renderer
	// CopyToClipboard replaces the system clipboard (tests).
	CopyToClipboard func(string) error
}

// Model is the top-level bubbletea model: project header, collection tree,
// detail pane and status line.
type Model struct {
	ctx    context.Context
	svc    Service
	cfg    config.Config
	logger *slog.Logger
	copyFn func(string) error
	theme  Theme

	picker   ProjectPickerModel
	tree     CollectionTreeModel
	writer   *CollectionWriter
	viewport viewport.Model
	renderer *glamour.TermRenderer

	form       *CollectionFormModel
	typePicker *TypePickerModel
	deleting   *model.Collection

	detail      *detailState
	showDetails bool
	showHelp    bool
	orphans     int

	status      string
	statusIsErr bool

	focused     focus
	isSplitView bool
	ready       bool
	width       int
	height      int
}

// NewModel builds the app for opts.Source. Call Init (through tea.Program)
// to start loading.
func NewModel(ctx context.Context, opts Options) (Model, error) {
	if opts.Service == nil {
		return Model{}, errors.New("ui needs a directory service")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(applog.NewHandler(io.Discard, "", slog.LevelError))
	}
	copyFn := opts.CopyToClipboard
	if copyFn == nil {
		copyFn = clipboard.WriteAll
	}
	theme := DefaultTheme(opts.Renderer)

	mgr, err := newManager(opts.Service, opts.Source, opts.Config, logger)
	if err != nil {
		return Model{}, err
	}

	m := Model{
		ctx:     ctx,
		svc:     opts.Service,
		cfg:     opts.Config,
		logger:  logger,
		copyFn:  copyFn,
		theme:   theme,
		tree:    NewCollectionTreeModel(ctx, mgr, theme),
		writer:  NewCollectionWriter(ctx, opts.Service),
		orphans: -1,
		focused: focusTree,
	}
	m.picker = NewProjectPicker(BuildProjectEntries(opts.Config, nil, opts.Source.ProjectID), theme)
	return m, nil
}

func newManager(svc Service, src tree.Source, cfg config.Config, logger *slog.Logger) (*tree.Manager, error) {
	return tree.NewManager(svc, src, tree.Options{
		Strategy:    cfg.Strategy(),
		MaxDepth:    cfg.Tree.MaxDepth,
		Concurrency: cfg.Tree.FetchConcurrency,
		Logger:      applog.NewAdapter(logger),
	})
}

// Init starts loading the tree, the project list and the orphan count.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.tree.Load(),
		loadProjectsCmd(m.ctx, m.svc),
		loadOrphansCmd(m.ctx, m.svc),
	)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case TreeFetchMsg:
		if !m.tree.ApplyResult(msg) {
			return m, nil
		}
		m.afterTreeChange()
		if err := msg.Result.Err; err != nil {
			m.setError(err)
		}
		return m, nil

	case spinner.TickMsg:
		return m, m.tree.UpdateSpinner(msg)

	case ViewCollectionMsg:
		return m, m.openDetail(msg.Collection)

	case AddSubcollectionMsg:
		return m, m.openCreateForm(msg.ParentID)

	case DetailLoadedMsg:
		if m.detail != nil && m.detail.collection.ID == msg.CollectionID {
			m.detail.loaded = true
			m.detail.ancestry = msg.Ancestry
			m.detail.records = msg.Records
			m.detail.recordsErr = msg.RecordsErr
			if msg.Ancestry.Err != nil {
				m.logger.Warn("ancestor chain truncated", "collection", msg.CollectionID, "error", msg.Ancestry.Err)
			}
			if msg.RecordsErr != nil {
				m.logger.Warn("record count unavailable", "collection", msg.CollectionID, "error", msg.RecordsErr)
			}
			m.updateViewportContent()
		}
		return m, nil

	case ProjectsLoadedMsg:
		if msg.Err != nil {
			m.logger.Warn("loading projects failed", "error", msg.Err)
			return m, nil
		}
		m.picker = NewProjectPicker(BuildProjectEntries(m.cfg, msg.Projects, m.activeProjectID()), m.theme)
		m.picker.SetSize(m.width, m.height)
		m.afterTreeChange()
		return m, nil

	case OrphansLoadedMsg:
		if msg.Err != nil {
			m.logger.Warn("loading orphan count failed", "error", msg.Err)
			return m, nil
		}
		m.orphans = msg.Count
		return m, nil

	case SwitchProjectMsg:
		return m, m.switchProject(msg.ProjectID)

	case WriteResultMsg:
		return m, m.handleWriteResult(msg)

	case tea.MouseMsg:
		if m.focused == focusTree {
			return m, m.tree.HandleMouse(msg, msg.Y-m.picker.Height())
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.focused == focusForm && m.form != nil {
		return m.updateForm(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.tree.Manager().Close()
		return m, tea.Quit
	}

	switch m.focused {
	case focusForm:
		return m.updateForm(msg)
	case focusTypePicker:
		return m.handleTypePickerKey(msg)
	case focusConfirmDelete:
		return m.handleConfirmDeleteKey(msg)
	}

	if m.picker.Filtering() {
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		return m, cmd
	}

	if m.showHelp {
		switch msg.String() {
		case "?", "esc", "q":
			m.showHelp = false
		}
		return m, nil
	}

	switch msg.String() {
	case "?":
		m.showHelp = true
		return m, nil
	case "q":
		if m.showDetails && !m.isSplitView {
			m.closeDetail()
			return m, nil
		}
		m.tree.Manager().Close()
		return m, tea.Quit
	case "esc":
		if m.showDetails {
			m.closeDetail()
		}
		return m, nil
	case "/", "1", "2", "3", "4", "5", "6", "7", "8", "9":
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		return m, cmd
	case "tab":
		if m.isSplitView && m.detail != nil {
			if m.focused == focusTree {
				m.focused = focusDetail
			} else {
				m.focused = focusTree
			}
		}
		return m, nil
	case "r":
		m.clearStatus()
		return m, m.tree.Load()
	}

	if m.focused == focusDetail || (m.showDetails && !m.isSplitView) {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "n":
		return m, m.openCreateForm("")
	case "e":
		if c, ok := m.tree.SelectedCollection(); ok {
			return m, m.openEditForm(c)
		}
		return m, nil
	case "t":
		if c, ok := m.tree.SelectedCollection(); ok {
			p := NewTypePickerModel(c.CollectionType, m.theme)
			p.SetSize(m.width, m.height)
			m.typePicker = &p
			m.focused = focusTypePicker
		}
		return m, nil
	case "d":
		if c, ok := m.tree.SelectedCollection(); ok {
			m.deleting = &c
			m.focused = focusConfirmDelete
		}
		return m, nil
	case "y":
		if c, ok := m.tree.SelectedCollection(); ok {
			if err := m.copyFn(c.ID); err != nil {
				m.setError(fmt.Errorf("copying id: %w", err))
			} else {
				m.setStatus("Copied " + c.ID)
			}
		}
		return m, nil
	case "C":
		m.tree.CollapseAll()
		return m, nil
	case "E":
		m.tree.ExpandKnown()
		return m, nil
	}

	return m, m.tree.HandleKey(msg)
}

func (m Model) handleTypePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		m.typePicker.MoveDown()
	case "k", "up":
		m.typePicker.MoveUp()
	case "esc", "q":
		m.typePicker = nil
		m.focused = focusTree
	case "enter":
		p := m.typePicker
		m.typePicker = nil
		m.focused = focusTree
		c, ok := m.tree.SelectedCollection()
		if !ok || !p.Changed() {
			return m, nil
		}
		m.setStatus("Updating type…")
		return m, m.writer.SetType(c.ID, p.SelectedType())
	}
	return m, nil
}

func (m Model) handleConfirmDeleteKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		c := m.deleting
		m.deleting = nil
		m.focused = focusTree
		m.setStatus("Deleting " + c.Name + "…")
		return m, m.writer.Delete(c.ID)
	case "n", "N", "esc", "q":
		m.deleting = nil
		m.focused = focusTree
	}
	return m, nil
}

func (m Model) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.form.Pending() {
		return m, nil
	}
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "esc" {
		m.form = nil
		m.focused = focusTree
		return m, nil
	}
	form, cmd := m.form.Update(msg)
	m.form = &form

	switch {
	case form.Aborted():
		m.form = nil
		m.focused = focusTree
		return m, nil
	case form.Completed():
		return m, m.submitForm()
	}
	return m, cmd
}

// submitForm dispatches the form's write. The form stays open, pending,
// until the result arrives so a failure can be shown inline.
func (m *Model) submitForm() tea.Cmd {
	f := m.form
	if f.Pending() {
		return nil
	}
	if f.Mode() == FormCreate {
		f.pending = true
		return m.writer.Create(f.CreatePayload())
	}
	in, changed := f.UpdatePayload()
	if !changed {
		m.form = nil
		m.focused = focusTree
		return nil
	}
	f.pending = true
	return m.writer.Update(f.Editing().ID, in)
}

func (m *Model) handleWriteResult(msg WriteResultMsg) tea.Cmd {
	if msg.Err != nil {
		m.logger.Warn("collection write failed", "op", msg.Operation.String(), "collection", msg.CollectionID, "error", msg.Err)
		if m.form != nil {
			return m.form.Retry(m.formParents(m.form), m.formWidth(), msg.Err)
		}
		m.setError(msg.Err)
		return nil
	}

	m.form = nil
	if m.focused == focusForm {
		m.focused = focusTree
	}
	switch msg.Operation {
	case WriteCreate:
		m.setStatus("Created " + msg.Collection.Name)
	case WriteDelete:
		m.setStatus("Deleted")
		if m.detail != nil && m.detail.collection.ID == msg.CollectionID {
			m.closeDetail()
		}
	default:
		m.setStatus("Saved " + msg.Collection.Name)
		if m.detail != nil && m.detail.collection.ID == msg.CollectionID {
			m.detail.collection = msg.Collection
			m.updateViewportContent()
		}
	}
	// Any successful write invalidates the cache: full reload.
	return m.tree.Load()
}

func (m *Model) openCreateForm(parentID string) tea.Cmd {
	projectID := m.tree.Manager().Source().ProjectID
	if parentID == "" && projectID == "" {
		if c, ok := m.tree.SelectedCollection(); ok {
			parentID = c.ID
		}
	}
	f := NewCreateForm(projectID, parentID, m.tree.Manager().ParentOptions(m.indentUnit(), ""), m.formWidth())
	m.form = &f
	m.focused = focusForm
	return f.Init()
}

func (m *Model) openEditForm(c model.Collection) tea.Cmd {
	f := NewEditForm(c, m.tree.Manager().ParentOptions(m.indentUnit(), c.ID), m.formWidth())
	m.form = &f
	m.focused = focusForm
	return f.Init()
}

func (m *Model) formParents(f *CollectionFormModel) []tree.ParentOption {
	exclude := ""
	if f.Mode() == FormEdit {
		exclude = f.Editing().ID
	}
	return m.tree.Manager().ParentOptions(m.indentUnit(), exclude)
}

func (m *Model) openDetail(c model.Collection) tea.Cmd {
	m.detail = &detailState{collection: c}
	if m.isSplitView {
		m.focused = focusTree
	} else {
		m.showDetails = true
	}
	m.updateViewportContent()
	return loadDetailCmd(m.ctx, m.svc, c, m.cfg.Tree.MaxDepth)
}

func (m *Model) closeDetail() {
	m.showDetails = false
	m.detail = nil
	m.focused = focusTree
	m.updateViewportContent()
}

func (m *Model) switchProject(projectID string) tea.Cmd {
	if projectID == "" || projectID == m.activeProjectID() {
		return nil
	}
	m.tree.Manager().Close()
	mgr, err := newManager(m.svc, tree.Source{ProjectID: projectID}, m.cfg, m.logger)
	if err != nil {
		m.setError(err)
		return nil
	}
	m.tree = NewCollectionTreeModel(m.ctx, mgr, m.theme)
	if m.ready {
		m.resize(m.width, m.height)
	}
	m.picker.SetActive(projectID)
	m.closeDetail()
	m.clearStatus()
	return m.tree.Load()
}

func (m *Model) activeProjectID() string {
	return m.tree.Manager().Source().ProjectID
}

func (m *Model) afterTreeChange() {
	mgr := m.tree.Manager()
	if id := mgr.Source().ProjectID; id != "" && mgr.RootsLoaded() {
		m.picker.SetCollectionCount(id, mgr.TotalCount())
	}
}

func (m *Model) indentUnit() string {
	if m.cfg.Tree.IndentUnit != "" {
		return m.cfg.Tree.IndentUnit
	}
	return "  "
}

func (m *Model) formWidth() int {
	if w := m.width - 4; w > 20 {
		if w > 80 {
			return 80
		}
		return w
	}
	return 0
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.ready = true
	m.isSplitView = width > SplitViewThreshold

	m.picker.SetSize(width, height)
	bodyHeight := height - m.picker.Height() - 1
	if bodyHeight < 3 {
		bodyHeight = 3
	}

	detailWidth := width
	if m.isSplitView {
		treeWidth := int(float64(width) * treePaneRatio)
		detailWidth = width - treeWidth - 2
		m.tree.SetSize(treeWidth, bodyHeight)
	} else {
		m.tree.SetSize(width, bodyHeight)
	}
	m.viewport = viewport.New(detailWidth, bodyHeight)

	m.renderer = nil
	if detailWidth > 20 {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(detailWidth-2),
		)
		if err != nil {
			m.logger.Warn("markdown renderer unavailable", "error", err)
		} else {
			m.renderer = r
		}
	}
	m.updateViewportContent()

	if m.typePicker != nil {
		m.typePicker.SetSize(width, height)
	}
}

func (m *Model) updateViewportContent() {
	if m.detail == nil {
		m.viewport.SetContent("Select a collection and press enter to see its details.")
		return
	}
	md := detailMarkdown(m.detail)
	if m.renderer == nil {
		m.viewport.SetContent(md)
		return
	}
	rendered, err := m.renderer.Render(md)
	if err != nil {
		m.viewport.SetContent(fmt.Sprintf("Error rendering markdown: %v\n\n%s", err, md))
		return
	}
	m.viewport.SetContent(rendered)
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusIsErr = false
}

func (m *Model) setError(err error) {
	m.status = err.Error()
	m.statusIsErr = true
}

func (m *Model) clearStatus() {
	m.status = ""
	m.statusIsErr = false
}

// View renders the app.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	header := m.picker.View()
	var body string

	switch {
	case m.showHelp:
		body = lipgloss.Place(m.width, m.tree.height, lipgloss.Center, lipgloss.Center,
			renderContextHelp(m.activeHelpContext(), m.theme, m.width))
	case m.focused == focusForm && m.form != nil:
		body = m.theme.Renderer.NewStyle().Padding(1, 2).Render(m.form.View())
	case m.focused == focusTypePicker && m.typePicker != nil:
		body = m.typePicker.View()
	case m.focused == focusConfirmDelete && m.deleting != nil:
		body = m.renderConfirmDelete()
	case m.isSplitView:
		treeStyle := m.theme.Renderer.NewStyle().Width(m.tree.width).Height(m.tree.height)
		detailStyle := m.theme.Renderer.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(m.theme.Border).
			PaddingLeft(1)
		if m.focused == focusDetail {
			detailStyle = detailStyle.BorderForeground(m.theme.Primary)
		}
		body = lipgloss.JoinHorizontal(lipgloss.Top,
			treeStyle.Render(m.tree.View()),
			detailStyle.Render(m.viewport.View()),
		)
	case m.showDetails:
		body = m.viewport.View()
	default:
		body = m.tree.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.renderFooter())
}

func (m Model) activeHelpContext() helpContext {
	switch {
	case m.isSplitView && m.detail != nil:
		return helpSplit
	case m.showDetails:
		return helpDetail
	}
	return helpTree
}

func (m Model) renderConfirmDelete() string {
	t := m.theme
	title := t.Renderer.NewStyle().Foreground(t.Error).Bold(true).Render("Delete collection")
	text := fmt.Sprintf("%s\n\nDelete %q?\nCollections with subcollections cannot be deleted.\n\n%s",
		title, m.deleting.Name,
		t.Renderer.NewStyle().Foreground(t.Secondary).Italic(true).Render("y: delete | n/esc: cancel"))
	box := t.Renderer.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Error).
		Padding(1, 2).
		Render(text)
	return lipgloss.Place(m.width, m.tree.height, lipgloss.Center, lipgloss.Center, box)
}

func (m Model) renderFooter() string {
	t := m.theme
	r := t.Renderer
	mgr := m.tree.Manager()

	var left []string
	left = append(left, r.NewStyle().Bold(true).Background(t.Primary).Padding(0, 1).Render(mgr.Strategy().String()))
	if mgr.RootsLoaded() {
		left = append(left, r.NewStyle().Foreground(t.Subtext).Padding(0, 1).
			Render(fmt.Sprintf("%d collections", mgr.TotalCount())))
	}
	if m.orphans >= 0 {
		left = append(left, r.NewStyle().Foreground(t.Secondary).Padding(0, 1).
			Render(fmt.Sprintf("%d unassigned records", m.orphans)))
	}
	if m.status != "" {
		color := t.Open
		if m.statusIsErr {
			color = t.Error
		}
		left = append(left, r.NewStyle().Foreground(color).Padding(0, 1).Render(truncateName(m.status, 60)))
	}

	var keys string
	switch {
	case m.focused == focusForm:
		keys = "tab: next field | enter: submit | esc: cancel"
	case m.showDetails && !m.isSplitView:
		keys = "esc: back | j/k: scroll | q: back"
	default:
		keys = "enter: view | space: toggle | a: add sub | n: new | e: edit | d: delete | ?: help | q: quit"
	}
	leftStr := strings.Join(left, "")
	keysStr := r.NewStyle().Foreground(t.Muted).Padding(0, 1).Render(keys)

	gap := m.width - lipgloss.Width(leftStr) - lipgloss.Width(keysStr)
	if gap < 1 {
		return leftStr
	}
	return leftStr + strings.Repeat(" ", gap) + keysStr
}

// HelpVisible reports whether the quick reference is open.
func (m Model) HelpVisible() bool {
	return m.showHelp
}

// FocusState returns the focused pane name.
func (m Model) FocusState() string {
	return m.focused.String()
}

// Tree exposes the tree pane.
func (m Model) Tree() *CollectionTreeModel {
	return &m.tree
}

// Status returns the status line text and whether it is an error.
func (m Model) Status() (string, bool) {
	return m.status, m.statusIsErr
}

// DetailCollectionID returns the collection shown in the detail pane.
func (m Model) DetailCollectionID() string {
	if m.detail == nil {
		return ""
	}
	return m.detail.collection.ID
}

// DetailContent returns the detail markdown before rendering.
func (m Model) DetailContent() string {
	if m.detail == nil {
		return ""
	}
	return detailMarkdown(m.detail)
}

// Form returns the open collection form, if any.
func (m Model) Form() *CollectionFormModel {
	return m.form
}

// ActiveProjectID returns the project the tree shows, or "".
func (m Model) ActiveProjectID() string {
	return m.activeProjectID()
}

// OrphanCount returns the unassigned record count, -1 before it loads.
func (m Model) OrphanCount() int {
	return m.orphans
}
