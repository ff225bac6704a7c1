package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/digitarc/pkg/config"
	"github.com/vanderheijden86/digitarc/pkg/model"
)

// ProjectEntry holds display data for one project in the picker.
type ProjectEntry struct {
	ID          string
	Name        string
	FavoriteNum int  // 0 = not favorited, 1-9 = key
	IsActive    bool // currently loaded project
	// Collections is the known collection count, -1 when not loaded.
	Collections int
}

// SwitchProjectMsg is sent when the user selects a project to switch to.
type SwitchProjectMsg struct {
	ProjectID string
	Name      string
}

func (e ProjectEntry) switchMsg() tea.Cmd {
	return func() tea.Msg {
		return SwitchProjectMsg{ProjectID: e.ID, Name: e.Name}
	}
}

// BuildProjectEntries merges the configured favorites with the projects the
// server reports. Configured projects come first in slot order; server
// projects not in the config follow in server order.
func BuildProjectEntries(cfg config.Config, server []model.Project, activeID string) []ProjectEntry {
	names := make(map[string]string, len(server))
	for _, p := range server {
		names[p.ID] = p.Name
	}
	nameOf := func(p config.Project) string {
		switch {
		case p.Name != "":
			return p.Name
		case names[p.ID] != "":
			return names[p.ID]
		}
		return p.DisplayName()
	}

	seen := make(map[string]bool)
	var out []ProjectEntry
	add := func(id, name string, slot int) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, ProjectEntry{ID: id, Name: name, FavoriteNum: slot, IsActive: id == activeID, Collections: -1})
	}
	for _, p := range cfg.Favorites() {
		add(p.ID, nameOf(p), p.FavoriteSlot)
	}
	for _, p := range cfg.Projects {
		if p.FavoriteSlot == 0 {
			add(p.ID, nameOf(p), 0)
		}
	}
	for _, p := range server {
		add(p.ID, p.Name, 0)
	}
	add(activeID, activeID, 0)
	return out
}

// ProjectPickerModel is the header above the tree: key hints, one chip per
// project and a rule naming the active project. Digits 1-9 switch to a
// favorite; "/" filters the chips and enter switches to the highlighted one.
type ProjectPickerModel struct {
	entries   []ProjectEntry
	matches   []int // indices into entries, best match first
	cursor    int
	width     int
	filter    textinput.Model
	filtering bool
	theme     Theme
}

// NewProjectPicker creates a picker over entries.
func NewProjectPicker(entries []ProjectEntry, theme Theme) ProjectPickerModel {
	ti := textinput.New()
	ti.Placeholder = "type to filter..."
	ti.CharLimit = 50
	ti.Width = 30

	m := ProjectPickerModel{entries: entries, filter: ti, theme: theme}
	m.applyFilter()
	return m
}

// SetSize sets the width the chips wrap at. The height is whatever the
// chips need; see Height.
func (m *ProjectPickerModel) SetSize(w, _ int) {
	m.width = w
}

// Update handles keys. Anything else is ignored.
func (m ProjectPickerModel) Update(msg tea.Msg) (ProjectPickerModel, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if m.filtering {
		return m.updateFiltering(key)
	}

	switch k := key.String(); k {
	case "/":
		m.filtering = true
		m.cursor = 0
		m.filter.SetValue("")
		m.filter.Focus()
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		slot := int(k[0] - '0')
		for _, e := range m.entries {
			if e.FavoriteNum == slot {
				return m, e.switchMsg()
			}
		}
	}
	return m, nil
}

func (m ProjectPickerModel) updateFiltering(key tea.KeyMsg) (ProjectPickerModel, tea.Cmd) {
	switch key.String() {
	case "esc":
		m.filtering = false
		m.filter.SetValue("")
		m.filter.Blur()
		m.applyFilter()
		return m, nil
	case "enter":
		m.filtering = false
		m.filter.Blur()
		if e := m.SelectedEntry(); e != nil {
			return m, e.switchMsg()
		}
		return m, nil
	case "up":
		m.cursor = max(0, m.cursor-1)
		return m, nil
	case "down":
		m.cursor = max(0, min(len(m.matches)-1, m.cursor+1))
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(key)
	m.applyFilter()
	return m, cmd
}

// applyFilter ranks entries by the better of their name and ID score.
// An empty query keeps every entry in its original order.
func (m *ProjectPickerModel) applyFilter() {
	query := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	scores := make(map[int]int, len(m.entries))
	m.matches = nil
	for i, e := range m.entries {
		score := max(fuzzyScore(strings.ToLower(e.Name), query), fuzzyScore(strings.ToLower(e.ID), query))
		if score > 0 {
			scores[i] = score
			m.matches = append(m.matches, i)
		}
	}
	sort.SliceStable(m.matches, func(a, b int) bool {
		return scores[m.matches[a]] > scores[m.matches[b]]
	})
	m.cursor = max(0, min(m.cursor, len(m.matches)-1))
}

// View renders the header.
func (m *ProjectPickerModel) View() string {
	return strings.Join(m.lines(), "\n")
}

// Height returns the number of lines View renders.
func (m *ProjectPickerModel) Height() int {
	return len(m.lines())
}

func (m *ProjectPickerModel) lines() []string {
	t := m.theme
	r := t.Renderer
	w := m.width
	if w <= 0 {
		w = 80
	}

	key := r.NewStyle().Foreground(t.Highlight).Bold(true)
	desc := r.NewStyle().Foreground(t.Subtext)
	out := []string{" " + key.Render("<1-9>") + " " + desc.Render("Quick Switch") +
		"  " + key.Render("</>") + " " + desc.Render("Filter")}

	if m.filtering {
		out = append(out, r.NewStyle().Foreground(t.Primary).Width(w).Render("  / "+m.filter.View()))
	}
	if len(m.matches) == 0 {
		out = append(out, r.NewStyle().Foreground(t.Secondary).Italic(true).
			Render("  No projects found. Add projects to the config or create one on the server."))
	} else {
		out = append(out, m.chipRows(w)...)
	}
	return append(out, m.rule(w))
}

// chipRows flows the matching chips into rows no wider than w. A chip
// wider than w still gets a row of its own.
func (m *ProjectPickerModel) chipRows(w int) []string {
	const indent, gap = "  ", "  "
	var rows []string
	var row strings.Builder
	rowWidth := 0
	for i, idx := range m.matches {
		e := m.entries[idx]
		text := chipText(e)
		tw := runewidth.StringWidth(text)
		if rowWidth > 0 && rowWidth+len(gap)+tw > w {
			rows = append(rows, row.String())
			row.Reset()
			rowWidth = 0
		}
		if rowWidth == 0 {
			row.WriteString(indent)
			rowWidth = len(indent)
		} else {
			row.WriteString(gap)
			rowWidth += len(gap)
		}
		style := m.theme.Base
		if e.IsActive || (m.filtering && i == m.cursor) {
			style = m.theme.Renderer.NewStyle().Foreground(m.theme.Primary).Bold(true)
		}
		row.WriteString(style.Render(text))
		rowWidth += tw
	}
	return append(rows, row.String())
}

// rule is the divider under the chips: ── projects(Name)[n] ──. While a
// filter is typed it names the query instead of the active project.
func (m *ProjectPickerModel) rule(w int) string {
	t := m.theme
	r := t.Renderer

	label := "projects"
	if q := m.filter.Value(); m.filtering && q != "" {
		label = "projects(" + q + ")"
	} else if e, ok := m.ActiveEntry(); ok {
		label = "projects(" + e.Name + ")"
	}
	count := fmt.Sprintf("[%d]", len(m.matches))

	side := w - runewidth.StringWidth(label+count) - 4
	left := max(1, side/2)
	right := max(1, side-side/2)
	line := r.NewStyle().Foreground(t.Border)
	return line.Render(strings.Repeat("─", left)) + " " +
		r.NewStyle().Foreground(t.Primary).Bold(true).Render(label) +
		r.NewStyle().Foreground(t.Highlight).Render(count) + " " +
		line.Render(strings.Repeat("─", right))
}

// chipText is "N name(count)"; the count is shown once known.
func chipText(e ProjectEntry) string {
	slot := " "
	if e.FavoriteNum > 0 {
		slot = fmt.Sprint(e.FavoriteNum)
	}
	text := slot + " " + e.Name
	if e.Collections >= 0 {
		text += fmt.Sprintf("(%d)", e.Collections)
	}
	return text
}

// Filtering reports whether the filter line has focus.
func (m *ProjectPickerModel) Filtering() bool {
	return m.filtering
}

// SetCollectionCount records the known collection count of project id.
func (m *ProjectPickerModel) SetCollectionCount(id string, n int) {
	for i := range m.entries {
		if m.entries[i].ID == id {
			m.entries[i].Collections = n
		}
	}
}

// SetActive marks id as the loaded project.
func (m *ProjectPickerModel) SetActive(id string) {
	for i := range m.entries {
		m.entries[i].IsActive = m.entries[i].ID == id
	}
}

// ActiveEntry returns the loaded project, if it is listed.
func (m *ProjectPickerModel) ActiveEntry() (ProjectEntry, bool) {
	for _, e := range m.entries {
		if e.IsActive {
			return e, true
		}
	}
	return ProjectEntry{}, false
}

// FilteredCount returns the number of entries matching the filter.
func (m *ProjectPickerModel) FilteredCount() int {
	return len(m.matches)
}

// SelectedEntry returns the highlighted match, or nil.
func (m *ProjectPickerModel) SelectedEntry() *ProjectEntry {
	if m.cursor >= len(m.matches) {
		return nil
	}
	e := m.entries[m.matches[m.cursor]]
	return &e
}

// fuzzyScore scores query as a subsequence of s; 0 means no match. A
// contiguous match scores highest, a prefix match higher still.
func fuzzyScore(s, query string) int {
	if query == "" {
		return 1
	}
	if i := strings.Index(s, query); i >= 0 {
		score := 100 + len(query)*2
		if i == 0 {
			score += 50
		}
		return score
	}
	score := 0
	run := 0
	qi := 0
	q := []rune(query)
	for _, r := range s {
		if qi < len(q) && r == q[qi] {
			qi++
			run++
			score += run
			continue
		}
		run = 0
	}
	if qi < len(q) {
		return 0
	}
	return score
}
