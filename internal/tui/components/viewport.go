package components

import (
	"github.com/Digital-Shane/show-score/internal/tui/theme"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
)

// NewViewport constructs a themed viewport without the panel border; the
// surrounding panel draws its own.
func NewViewport(width, height int, th theme.Theme) *viewport.Model {
	vp := viewport.New(max(width, 0), max(height, 0))
	baseStyle := th.PanelStyle().
		BorderStyle(lipgloss.Border{}).
		BorderForeground(lipgloss.Color("")).
		Padding(0)
	vp.Style = baseStyle
	return &vp
}

// Scroll applies a navigation key to a scrollable panel and reports whether
// the key was consumed.
func Scroll(s Scrollable, key string) bool {
	switch key {
	case "up", "k":
		s.ScrollUp(1)
	case "down", "j":
		s.ScrollDown(1)
	case "pgup":
		s.HalfPageUp()
	case "pgdown":
		s.HalfPageDown()
	default:
		return false
	}
	return true
}
