package browse

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Digital-Shane/show-score/internal/core"
	"github.com/Digital-Shane/show-score/internal/tui/components"
	"github.com/Digital-Shane/show-score/internal/tui/theme"
	"github.com/Digital-Shane/treeview"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
)

// BrowseModel shows a scored series as a season -> episode tree next to a
// details panel for the focused row.
type BrowseModel struct {
	*treeview.TuiTreeModel[components.ScoreNode]
	result     *core.Result
	width      int
	height     int
	splitRatio float64
	theme      theme.Theme

	detailsViewport *viewport.Model
	detailsFocused  bool
}

// Option configures a BrowseModel during construction.
type Option func(*BrowseModel)

// WithTheme overrides the default theme.
func WithTheme(th theme.Theme) Option {
	return func(m *BrowseModel) {
		m.theme = th
	}
}

// BuildTree groups the rated episodes of a result under one node per season,
// seasons ascending and episodes in index order.
func BuildTree(result *core.Result, th theme.Theme) *treeview.Tree[components.ScoreNode] {
	var nodes []*treeview.Node[components.ScoreNode]
	if result != nil {
		k, banded := 0.0, result.Stddev != nil
		if banded {
			k = *result.Stddev
		}
		seasons := make(map[int]*treeview.Node[components.ScoreNode])
		for _, stat := range core.SeasonStats(result.Episodes, k) {
			node := treeview.NewNode(
				fmt.Sprintf("season-%d", stat.Season),
				fmt.Sprintf("Season %d", stat.Season),
				components.ScoreNode{Kind: components.NodeSeason, Season: stat.Season, Stat: stat, Banded: banded},
			)
			seasons[stat.Season] = node
			nodes = append(nodes, node)
		}

		episodes := append([]core.RatedEpisode(nil), result.Episodes...)
		sort.SliceStable(episodes, func(i, j int) bool { return episodes[i].Index < episodes[j].Index })
		for _, ep := range episodes {
			parent := seasons[ep.Season]
			if parent == nil {
				continue
			}
			parent.AddChild(treeview.NewNode(
				fmt.Sprintf("episode-%d", ep.Index),
				ep.Title,
				components.ScoreNode{Kind: components.NodeEpisode, Season: ep.Season, Episode: ep},
			))
		}
	}

	tree := treeview.NewTree(nodes,
		treeview.WithExpandAll[components.ScoreNode](),
		treeview.WithProvider(components.CreateScoreProvider(th)),
	)
	if len(nodes) > 0 {
		_, _ = tree.SetFocusedID(context.Background(), nodes[0].ID())
	}
	return tree
}

// NewBrowseModel creates the browser for a scored result.
func NewBrowseModel(result *core.Result, opts ...Option) *BrowseModel {
	// Consistent emoji widths for the tree icons.
	runewidth.DefaultCondition.EastAsianWidth = false
	runewidth.DefaultCondition.StrictEmojiNeutral = true

	m := &BrowseModel{
		result:     result,
		width:      80,
		height:     24,
		splitRatio: 0.55,
	}
	for _, opt := range append([]Option{WithTheme(theme.Default())}, opts...) {
		opt(m)
	}

	keyMap := treeview.DefaultKeyMap()
	keyMap.SearchStart = []string{}
	keyMap.Reset = []string{}

	treeWidth := int(float64(m.width)*m.splitRatio) - 2
	m.TuiTreeModel = treeview.NewTuiTreeModel(BuildTree(result, m.theme),
		treeview.WithTuiWidth[components.ScoreNode](treeWidth),
		treeview.WithTuiHeight[components.ScoreNode](m.height-4),
		treeview.WithTuiAllowResize[components.ScoreNode](true),
		treeview.WithTuiDisableNavBar[components.ScoreNode](true),
		treeview.WithTuiKeyMap[components.ScoreNode](keyMap),
	)

	m.detailsViewport = components.NewViewport(m.width-treeWidth-6, m.height-8, m.theme)
	return m
}

func (m *BrowseModel) Init() tea.Cmd {
	return nil
}

func (m *BrowseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		treeWidth := int(float64(m.width)*m.splitRatio) - 2
		treeModel, cmd := m.TuiTreeModel.Update(tea.WindowSizeMsg{Width: treeWidth, Height: m.height - 4})
		m.TuiTreeModel = treeModel.(*treeview.TuiTreeModel[components.ScoreNode])
		m.detailsViewport.Width = max(m.width-treeWidth-6, 0)
		m.detailsViewport.Height = max(m.height-8, 0)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "ctrl+c", "q":
			return m, tea.Quit
		case "tab":
			m.detailsFocused = !m.detailsFocused
			return m, nil
		}
		if m.detailsFocused && components.Scroll(m.detailsViewport, msg.String()) {
			return m, nil
		}
	}

	if !m.detailsFocused {
		treeModel, cmd := m.TuiTreeModel.Update(msg)
		m.TuiTreeModel = treeModel.(*treeview.TuiTreeModel[components.ScoreNode])
		return m, cmd
	}
	return m, nil
}

// Focused returns the payload of the focused row, if any.
func (m *BrowseModel) Focused() (components.ScoreNode, bool) {
	node := m.TuiTreeModel.Tree.GetFocusedNode()
	if node == nil || node.Data() == nil {
		return components.ScoreNode{}, false
	}
	return *node.Data(), true
}

func (m *BrowseModel) View() string {
	var b strings.Builder
	b.WriteString(m.theme.HeaderStyle().Width(m.width).Render(m.headerText()))
	b.WriteByte('\n')
	b.WriteString(m.theme.StatusBarStyle().Width(m.width).Render(m.countsText()))
	b.WriteByte('\n')

	if m.result == nil || len(m.result.Episodes) == 0 {
		empty := lipgloss.NewStyle().
			Italic(true).
			Width(m.width).
			Align(lipgloss.Center).
			Foreground(m.theme.Colors().Muted).
			Render("No rated episodes")
		b.WriteString(empty)
		return b.String()
	}

	leftWidth := int(float64(m.width) * m.splitRatio)
	rightWidth := m.width - leftWidth
	left := m.renderTree(leftWidth, m.height-4)
	right := m.renderDetails(rightWidth, m.height-4)
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	b.WriteByte('\n')

	focusInfo := "Tab: Details Focus | "
	if m.detailsFocused {
		focusInfo = "Tab: Tree Focus | "
	}
	instructions := lipgloss.NewStyle().
		Italic(true).
		Width(m.width).
		Align(lipgloss.Center).
		Foreground(m.theme.Colors().Muted).
		Render(focusInfo + "↑↓ Navigate | ←→ Collapse/Expand | Esc/q: Quit")
	b.WriteString(instructions)
	return b.String()
}

func (m *BrowseModel) headerText() string {
	if m.result == nil {
		return "IMDb TV Series Score"
	}
	title := m.result.Title
	if m.result.Year != "" {
		title += " (" + m.result.Year + ")"
	}
	return fmt.Sprintf("%s %s  %s", m.theme.Icon("show"), title, m.result.IMDbID)
}

func (m *BrowseModel) countsText() string {
	if m.result == nil {
		return ""
	}
	r := m.result
	text := fmt.Sprintf("%d rated | %d assembled | %d skipped | %d unmatched",
		len(r.Episodes), r.Assembled, r.Skipped, r.Unmatched)
	if r.Stddev != nil {
		text += fmt.Sprintf(" | %d outliers at %s σ", r.Outliers, core.FormatStddev(r.Stddev))
	}
	return text
}

func (m *BrowseModel) sizedPanel(width, height int, borderColor lipgloss.Color) lipgloss.Style {
	style := m.theme.PanelStyle().BorderForeground(borderColor)
	if width > 0 {
		style = style.Width(max(width-style.GetHorizontalFrameSize(), 0))
	}
	if height > 0 {
		style = style.Height(max(height-style.GetVerticalFrameSize(), 0))
	}
	return style.Padding(0, 1)
}

func (m *BrowseModel) renderTree(width, height int) string {
	colors := m.theme.Colors()
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(colors.Primary).
		Width(max(width-4, 0)).
		Align(lipgloss.Center).
		Render("Seasons")
	return m.sizedPanel(width, height, colors.Primary).Render(title + "\n" + m.TuiTreeModel.View())
}

func (m *BrowseModel) renderDetails(width, height int) string {
	colors := m.theme.Colors()
	if node, ok := m.Focused(); ok {
		m.detailsViewport.SetContent(m.formatDetails(node))
	} else {
		m.detailsViewport.SetContent(lipgloss.NewStyle().
			Italic(true).
			Foreground(colors.Muted).
			Render("Select a season or episode"))
	}

	scroll := ""
	if m.detailsViewport.TotalLineCount() > m.detailsViewport.Height {
		scroll = " [Tab to scroll]"
		if m.detailsFocused {
			scroll = " [↑↓ to scroll]"
		}
	}
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(colors.Secondary).
		Width(max(width-4, 0)).
		Align(lipgloss.Center).
		Render("Details" + scroll)

	content := lipgloss.JoinVertical(lipgloss.Left, title, "", m.detailsViewport.View())
	return m.sizedPanel(width, height, colors.Secondary).Render(content)
}

func (m *BrowseModel) formatDetails(node components.ScoreNode) string {
	colors := m.theme.Colors()
	label := lipgloss.NewStyle().Foreground(colors.Muted).Width(10)
	row := func(b *strings.Builder, name, value string) {
		b.WriteString(label.Render(name))
		b.WriteString(value)
		b.WriteByte('\n')
	}

	var b strings.Builder
	switch node.Kind {
	case components.NodeSeason:
		stat := node.Stat
		b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(colors.Primary).Render(
			fmt.Sprintf("%s Season %d", m.theme.Icon("season"), node.Season)))
		b.WriteString("\n\n")
		row(&b, "Episodes", fmt.Sprintf("%d rated", stat.Count))
		row(&b, "Mean", fmt.Sprintf("%.2f", stat.Mean))
		if stat.Count > 1 {
			row(&b, "Std dev", fmt.Sprintf("%.2f", stat.StdDev))
		}
		if node.Banded {
			if stat.Defined {
				row(&b, "Band", fmt.Sprintf("%.2f – %.2f", stat.Lower, stat.Upper))
			} else {
				row(&b, "Band", "undefined (too few or identical ratings)")
			}
			row(&b, "Outliers", fmt.Sprintf("%d", m.seasonOutliers(node.Season)))
		}

	case components.NodeEpisode:
		ep := node.Episode
		b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(colors.Primary).Render(
			fmt.Sprintf("%s S%02dE%02d %s", m.theme.Icon("episode"), ep.Season, ep.Episode, ep.Title)))
		b.WriteString("\n\n")
		rating := lipgloss.NewStyle().Bold(true).Foreground(m.theme.RatingColor(ep.Rating)).Render(fmt.Sprintf("%.1f", ep.Rating))
		row(&b, "Rating", m.theme.Icon("rating")+" "+rating)
		row(&b, "Votes", humanize.Comma(int64(ep.Votes)))
		row(&b, "Aired", fmt.Sprintf("%d", ep.AirYear))
		row(&b, "IMDb", ep.ExternalID)
		row(&b, "Index", fmt.Sprintf("#%d", ep.Index))
		if ep.Outlier != nil {
			status := m.theme.Icon("inband") + " within season band"
			if *ep.Outlier {
				status = m.theme.OutlierStyle().Render(m.theme.Icon("outlier") + " outlier")
			}
			row(&b, "Status", status)
		}
	}
	return b.String()
}

func (m *BrowseModel) seasonOutliers(season int) int {
	n := 0
	for _, ep := range m.result.Episodes {
		if ep.Season == season && ep.IsOutlier() {
			n++
		}
	}
	return n
}
