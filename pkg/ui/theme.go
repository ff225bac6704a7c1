package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/digitarc/pkg/model"
)

// Theme holds the colors and base styles shared by every pane.
type Theme struct {
	Renderer *lipgloss.Renderer

	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor
	Border    lipgloss.AdaptiveColor
	Subtext   lipgloss.AdaptiveColor
	Open      lipgloss.AdaptiveColor
	Error     lipgloss.AdaptiveColor

	Base     lipgloss.Style
	Selected lipgloss.Style
}

// DefaultTheme builds the theme on r. A nil renderer uses the default one.
func DefaultTheme(r *lipgloss.Renderer) Theme {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	t := Theme{
		Renderer:  r,
		Primary:   lipgloss.AdaptiveColor{Light: "#5A3FC0", Dark: "#A48BFF"},
		Secondary: lipgloss.AdaptiveColor{Light: "#8A6D00", Dark: "#E5C07B"},
		Muted:     lipgloss.AdaptiveColor{Light: "#8C8C8C", Dark: "#6C6C6C"},
		Highlight: lipgloss.AdaptiveColor{Light: "#006E8A", Dark: "#56B6C2"},
		Border:    lipgloss.AdaptiveColor{Light: "#C8C8C8", Dark: "#3E4451"},
		Subtext:   lipgloss.AdaptiveColor{Light: "#5C5C5C", Dark: "#ABB2BF"},
		Open:      lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#98C379"},
		Error:     lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#E06C75"},
	}
	t.Base = r.NewStyle()
	t.Selected = r.NewStyle().
		Background(lipgloss.AdaptiveColor{Light: "#E8E3FA", Dark: "#2C2540"}).
		Bold(true)
	return t
}

// TypeBadge returns the short badge and color for a collection type.
// Unset types have no badge.
func (t Theme) TypeBadge(ct model.CollectionType) (string, lipgloss.AdaptiveColor) {
	switch ct {
	case model.TypeFonds:
		return "[fonds]", t.Primary
	case model.TypeSeries:
		return "[series]", t.Highlight
	case model.TypeBox:
		return "[box]", t.Secondary
	case model.TypeFolder:
		return "[folder]", t.Open
	case model.TypeVolume:
		return "[vol]", t.Subtext
	}
	return "", t.Muted
}
