package browse

import (
	"context"
	"fmt"
	"strings"

	"github.com/Digital-Shane/show-score/internal/provider"
	"github.com/Digital-Shane/show-score/internal/tui/theme"
	"github.com/Digital-Shane/treeview"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// PickerModel lets the user choose one series from a search listing.
type PickerModel struct {
	*treeview.TuiTreeModel[provider.SearchResult]
	query    string
	width    int
	height   int
	theme    theme.Theme
	selected *provider.SearchResult
}

// ResultLabel renders a search result as a single tree row.
func ResultLabel(res provider.SearchResult) string {
	label := res.Title
	if res.Year != "" {
		label += " (" + res.Year + ")"
	}
	if res.IMDbID != "" {
		return fmt.Sprintf("%s  %s", label, res.IMDbID)
	}
	return fmt.Sprintf("%s  [%s]", label, res.Provider)
}

// NewPickerModel builds a picker over results in their listed order.
func NewPickerModel(query string, results []provider.SearchResult, th theme.Theme) *PickerModel {
	nodes := make([]*treeview.Node[provider.SearchResult], len(results))
	for i, res := range results {
		nodes[i] = treeview.NewNode(fmt.Sprintf("result-%d", i), ResultLabel(res), res)
	}

	tree := treeview.NewTree(nodes)
	if len(nodes) > 0 {
		_, _ = tree.SetFocusedID(context.Background(), nodes[0].ID())
	}

	m := &PickerModel{query: query, width: 80, height: 20, theme: th}

	keyMap := treeview.DefaultKeyMap()
	keyMap.SearchStart = []string{}
	keyMap.Reset = []string{}

	m.TuiTreeModel = treeview.NewTuiTreeModel(tree,
		treeview.WithTuiWidth[provider.SearchResult](m.width-4),
		treeview.WithTuiHeight[provider.SearchResult](m.height-4),
		treeview.WithTuiAllowResize[provider.SearchResult](true),
		treeview.WithTuiDisableNavBar[provider.SearchResult](true),
		treeview.WithTuiKeyMap[provider.SearchResult](keyMap),
	)
	return m
}

func (m *PickerModel) Init() tea.Cmd {
	return nil
}

func (m *PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		treeModel, cmd := m.TuiTreeModel.Update(tea.WindowSizeMsg{Width: m.width - 4, Height: m.height - 4})
		m.TuiTreeModel = treeModel.(*treeview.TuiTreeModel[provider.SearchResult])
		return m, cmd
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "ctrl+c", "q":
			return m, tea.Quit
		case "enter":
			if node := m.TuiTreeModel.Tree.GetFocusedNode(); node != nil && node.Data() != nil {
				res := *node.Data()
				m.selected = &res
			}
			return m, tea.Quit
		}
	}

	treeModel, cmd := m.TuiTreeModel.Update(msg)
	m.TuiTreeModel = treeModel.(*treeview.TuiTreeModel[provider.SearchResult])
	return m, cmd
}

// Selected returns the chosen result; false when the picker was dismissed.
func (m *PickerModel) Selected() (provider.SearchResult, bool) {
	if m.selected == nil {
		return provider.SearchResult{}, false
	}
	return *m.selected, true
}

func (m *PickerModel) View() string {
	var b strings.Builder
	header := fmt.Sprintf("%s Results for %q", m.theme.Icon("search"), m.query)
	b.WriteString(m.theme.HeaderStyle().Width(m.width).Render(header))
	b.WriteByte('\n')
	b.WriteString(m.TuiTreeModel.View())
	b.WriteByte('\n')
	b.WriteString(lipgloss.NewStyle().
		Italic(true).
		Width(m.width).
		Align(lipgloss.Center).
		Foreground(m.theme.Colors().Muted).
		Render("↑↓ Navigate | Enter: Score | Esc/q: Quit"))
	return b.String()
}
