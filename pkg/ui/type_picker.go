package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/digitarc/pkg/model"
)

// TypePickerModel is the quick collection-type selection modal.
type TypePickerModel struct {
	types         []model.CollectionType
	currentType   model.CollectionType // type of the selected collection
	selectedIndex int
	width         int
	height        int
	theme         Theme
}

// NewTypePickerModel creates a picker with current preselected. An unknown
// type preselects the first entry.
func NewTypePickerModel(current model.CollectionType, theme Theme) TypePickerModel {
	types := model.AllCollectionTypes()
	selectedIdx := 0
	for i, t := range types {
		if t == current {
			selectedIdx = i
			break
		}
	}
	return TypePickerModel{
		types:         types,
		currentType:   current,
		selectedIndex: selectedIdx,
		theme:         theme,
	}
}

// SetSize updates the picker dimensions
func (m *TypePickerModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// MoveUp moves selection up
func (m *TypePickerModel) MoveUp() {
	if m.selectedIndex > 0 {
		m.selectedIndex--
	}
}

// MoveDown moves selection down
func (m *TypePickerModel) MoveDown() {
	if m.selectedIndex < len(m.types)-1 {
		m.selectedIndex++
	}
}

// SelectedType returns the highlighted type.
func (m *TypePickerModel) SelectedType() model.CollectionType {
	if m.selectedIndex >= 0 && m.selectedIndex < len(m.types) {
		return m.types[m.selectedIndex]
	}
	return model.TypeUnset
}

// Changed reports whether the highlighted type differs from the current one.
func (m *TypePickerModel) Changed() bool {
	return m.SelectedType() != m.currentType
}

// View renders the picker overlay
func (m *TypePickerModel) View() string {
	if m.width == 0 {
		m.width = 60
	}
	if m.height == 0 {
		m.height = 20
	}
	t := m.theme

	boxWidth := 32
	if m.width < 42 {
		boxWidth = m.width - 10
	}
	if boxWidth < 22 {
		boxWidth = 22
	}

	var lines []string
	titleStyle := t.Renderer.NewStyle().
		Foreground(t.Primary).
		Bold(true)
	lines = append(lines, titleStyle.Render("Collection Type"), "")

	for i, ct := range m.types {
		isSelected := i == m.selectedIndex

		itemStyle := t.Renderer.NewStyle()
		prefix := "  "
		if isSelected {
			itemStyle = itemStyle.Foreground(t.Primary).Bold(true)
			prefix = "> "
		}

		suffix := ""
		if ct == m.currentType {
			suffix = " " + t.Renderer.NewStyle().Foreground(t.Secondary).Render("✓")
		}
		lines = append(lines, itemStyle.Render(prefix+ct.Label())+suffix)
	}

	lines = append(lines, "")
	footerStyle := t.Renderer.NewStyle().
		Foreground(t.Secondary).
		Italic(true)
	lines = append(lines, footerStyle.Render("j/k: navigate | enter: apply | esc: cancel"))

	box := t.Renderer.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Primary).
		Padding(1, 2).
		Width(boxWidth).
		Render(strings.Join(lines, "\n"))

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
