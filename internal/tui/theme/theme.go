package theme

import (
	"os"
	"runtime"

	"github.com/charmbracelet/lipgloss"
)

// IconSet represents a collection of icons keyed by semantic usage.
type IconSet map[string]string

// clone returns a copy of the icon set to avoid shared mutation across themes.
func (s IconSet) clone() IconSet {
	if s == nil {
		return nil
	}
	clone := make(IconSet, len(s))
	for k, v := range s {
		clone[k] = v
	}
	return clone
}

// Colors holds the shared color palette used across the TUI.
type Colors struct {
	Primary    lipgloss.Color
	Secondary  lipgloss.Color
	Accent     lipgloss.Color
	Background lipgloss.Color
	Muted      lipgloss.Color
	Success    lipgloss.Color
	Error      lipgloss.Color
}

// Theme centralizes palette, border, spacing, and icon configuration.
type Theme struct {
	colors       Colors
	panelBorder  lipgloss.Border
	panelPadding int
	statusPad    int
	icons        IconSet
	fallback     IconSet
}

// Option configures a Theme during construction.
type Option func(*Theme)

// WithIconSet overrides the icon set used by the theme.
func WithIconSet(set IconSet) Option {
	return func(t *Theme) {
		t.icons = set.clone()
	}
}

// New constructs a Theme with optional overrides applied.
func New(opts ...Option) Theme {
	t := Theme{
		colors: Colors{
			Primary:    lipgloss.Color("#1f3b57"),
			Secondary:  lipgloss.Color("#35607f"),
			Accent:     lipgloss.Color("#e2b616"),
			Background: lipgloss.Color("#f8f8f8"),
			Muted:      lipgloss.Color("#9ba8c0"),
			Success:    lipgloss.Color("#5dc796"),
			Error:      lipgloss.Color("#f04c56"),
		},
		panelBorder:  lipgloss.RoundedBorder(),
		panelPadding: 1,
		statusPad:    1,
		icons:        defaultIconSet(),
		fallback:     asciiIcons.clone(),
	}

	for _, opt := range opts {
		opt(&t)
	}

	if t.icons == nil {
		t.icons = defaultIconSet()
	}

	return t
}

// Default returns the default Theme configuration.
func Default() Theme {
	return New()
}

// Colors exposes the theme color palette.
func (t Theme) Colors() Colors {
	return t.colors
}

// Icon returns a themed icon with ASCII fallback if unavailable.
func (t Theme) Icon(name string) string {
	if icon, ok := t.icons[name]; ok {
		return icon
	}
	if icon, ok := t.fallback[name]; ok {
		return icon
	}
	return ""
}

// IconSet returns a defensive copy of the themed icon map.
func (t Theme) IconSet() IconSet {
	return t.icons.clone()
}

// HeaderStyle returns the shared style used for primary headers.
func (t Theme) HeaderStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Bold(true).
		Background(t.colors.Primary).
		Foreground(t.colors.Background).
		Align(lipgloss.Center)
}

// StatusBarStyle returns the shared style used for footer/status bars.
func (t Theme) StatusBarStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Background(t.colors.Secondary).
		Foreground(t.colors.Background).
		Padding(0, t.statusPad)
}

// PanelStyle returns the shared panel container style.
func (t Theme) PanelStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(t.panelBorder).
		BorderForeground(t.colors.Accent).
		Padding(t.panelPadding)
}

// RatingColor grades an episode rating: strong ratings use the success
// color, weak ones the error color, the rest the accent.
func (t Theme) RatingColor(rating float64) lipgloss.Color {
	switch {
	case rating >= 8:
		return t.colors.Success
	case rating < 6:
		return t.colors.Error
	default:
		return t.colors.Accent
	}
}

// OutlierStyle highlights episodes outside their season band.
func (t Theme) OutlierStyle() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(t.colors.Error)
}

// ProgressGradient returns the gradient colors for progress bars.
func (t Theme) ProgressGradient() []string {
	return []string{string(t.colors.Primary), string(t.colors.Accent)}
}

// defaultIconSet chooses the best icon set for the current terminal.
func defaultIconSet() IconSet {
	if isLimitedTerminal() {
		return asciiIcons.clone()
	}
	return emojiIcons.clone()
}

// isLimitedTerminal detects environments where ASCII icons are preferable.
func isLimitedTerminal() bool {
	if os.Getenv("SSH_CLIENT") != "" || os.Getenv("SSH_TTY") != "" || os.Getenv("SSH_CONNECTION") != "" {
		return true
	}
	return runtime.GOOS == "windows"
}

var emojiIcons = IconSet{
	"show":     "📺",
	"season":   "📁",
	"episode":  "🎬",
	"outlier":  "⚠️",
	"inband":   "✅",
	"rating":   "⭐",
	"votes":    "👥",
	"calendar": "📅",
	"search":   "🔍",
	"stats":    "📊",
	"chart":    "📈",
	"success":  "✅",
	"error":    "❌",
	"unknown":  "❓",
	"key":      "🔑",
	"arrows":   "↑↓←→",
}

var asciiIcons = IconSet{
	"show":     "[TV]",
	"season":   "[S]",
	"episode":  "[E]",
	"outlier":  "[!]",
	"inband":   "[v]",
	"rating":   "[*]",
	"votes":    "[#]",
	"calendar": "[C]",
	"search":   "[?]",
	"stats":    "[=]",
	"chart":    "[~]",
	"success":  "[v]",
	"error":    "[x]",
	"unknown":  "[?]",
	"key":      "[K]",
	"arrows":   "^v<>",
}
