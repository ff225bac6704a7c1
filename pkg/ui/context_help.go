package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// helpContext selects the quick reference shown by "?".
type helpContext int

const (
	helpTree helpContext = iota
	helpDetail
	helpSplit
)

// contextHelpContent is compact help per context. Each entry should fit
// on one screen without scrolling.
var contextHelpContent = map[helpContext]string{
	helpTree:   contextHelpTree,
	helpDetail: contextHelpDetail,
	helpSplit:  contextHelpSplit,
}

// contextHelp returns the help for ctx, falling back to the tree help.
func contextHelp(ctx helpContext) string {
	if content, ok := contextHelpContent[ctx]; ok {
		return content
	}
	return contextHelpTree
}

// renderContextHelp renders the quick reference modal (~60 chars wide).
func renderContextHelp(ctx helpContext, theme Theme, width int) string {
	content := contextHelp(ctx)
	r := theme.Renderer

	modalWidth := 60
	if modalWidth > width-4 {
		modalWidth = width - 4
	}
	if modalWidth < 20 {
		modalWidth = 20
	}

	titleStyle := r.NewStyle().Bold(true).Foreground(theme.Primary)
	contentStyle := r.NewStyle().Foreground(theme.Subtext)
	footerStyle := r.NewStyle().Foreground(theme.Muted).Italic(true)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Quick Reference"))
	b.WriteString("\n")
	b.WriteString(r.NewStyle().Foreground(theme.Border).Render(strings.Repeat("─", modalWidth-4)))
	b.WriteString("\n\n")
	b.WriteString(contentStyle.Render(content))
	b.WriteString("\n\n")
	b.WriteString(footerStyle.Render("? or Esc to close"))

	modalStyle := r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Secondary).
		Padding(1, 2).
		Width(modalWidth)

	return modalStyle.Render(b.String())
}

const contextHelpTree = `## Collection Tree

**Navigation**
  j/k       Move down/up
  g/G       Jump to top/bottom
  ^d/^u     Half page down/up
  l/→       Expand, or step into children
  h/←       Collapse, or jump to parent
  Space     Toggle expand
  C/E       Collapse all / expand known

**Actions**
  Enter     View collection details
  a         Add subcollection
  n         New collection
  e         Edit selected
  t         Change type
  d         Delete selected
  y         Copy collection ID
  r         Reload from the server

**Projects**
  1-9       Switch to favorite project
  /         Filter projects`

const contextHelpDetail = `## Detail View

**Navigation**
  j/k       Scroll content
  Esc/q     Back to the tree

**Info Shown**
• Breadcrumb up to the project
• Type, project and record count
• Description and archival metadata`

const contextHelpSplit = `## Split View

**Navigation**
  Tab       Switch focus tree/detail
  j/k       Move in the focused pane
  Enter     Show selection in detail
  Esc       Close the detail pane

All tree actions work while the tree
pane has focus.`
