package components

import (
	"fmt"

	"github.com/Digital-Shane/show-score/internal/core"
	"github.com/Digital-Shane/show-score/internal/tui/theme"

	"github.com/Digital-Shane/treeview"
	"github.com/charmbracelet/lipgloss"
)

// NodeKind distinguishes season rows from episode rows.
type NodeKind int

const (
	NodeSeason NodeKind = iota
	NodeEpisode
)

// ScoreNode is the payload carried by every row of the score tree.
type ScoreNode struct {
	Kind NodeKind

	// Season rows.
	Season int
	Stat   core.SeasonStat
	Banded bool // outlier detection was on for this result

	// Episode rows.
	Episode core.RatedEpisode
}

// IsOutlier reports whether the row is an episode flagged as an outlier.
func (n ScoreNode) IsOutlier() bool {
	return n.Kind == NodeEpisode && n.Episode.IsOutlier()
}

// ---- predicate helpers ----
func kindIs(k NodeKind) func(*treeview.Node[ScoreNode]) bool {
	return func(n *treeview.Node[ScoreNode]) bool {
		return n.Data() != nil && n.Data().Kind == k
	}
}

func outlier() func(*treeview.Node[ScoreNode]) bool {
	return func(n *treeview.Node[ScoreNode]) bool {
		return n.Data() != nil && n.Data().IsOutlier()
	}
}

// CreateScoreProvider constructs the [treeview.DefaultNodeProvider] for the
// season/episode tree. Outlier rules precede kind rules so flagged episodes
// stand out.
func CreateScoreProvider(th theme.Theme) *treeview.DefaultNodeProvider[ScoreNode] {
	colors := th.Colors()
	iconSet := th.IconSet()

	outlierIconRule := treeview.WithIconRule(outlier(), iconSet["outlier"])
	seasonIconRule := treeview.WithIconRule(kindIs(NodeSeason), iconSet["season"])
	episodeIconRule := treeview.WithIconRule(kindIs(NodeEpisode), iconSet["episode"])
	defaultIconRule := treeview.WithDefaultIcon[ScoreNode](iconSet["unknown"])

	outlierStyleRule := treeview.WithStyleRule(
		outlier(),
		th.OutlierStyle(),
		lipgloss.NewStyle().Foreground(colors.Background).Bold(true).Background(colors.Error),
	)
	seasonStyleRule := treeview.WithStyleRule(
		kindIs(NodeSeason),
		lipgloss.NewStyle().Foreground(colors.Primary).Bold(true),
		lipgloss.NewStyle().Foreground(colors.Background).Bold(true).Background(colors.Secondary).PaddingRight(1),
	)
	episodeStyleRule := treeview.WithStyleRule(
		kindIs(NodeEpisode),
		lipgloss.NewStyle().Foreground(colors.Secondary),
		lipgloss.NewStyle().Foreground(colors.Background).Background(colors.Primary),
	)

	return treeview.NewDefaultNodeProvider(
		outlierIconRule, seasonIconRule, episodeIconRule, defaultIconRule,
		outlierStyleRule, seasonStyleRule, episodeStyleRule,
		treeview.WithFormatter(ScoreFormatter),
	)
}

// ScoreFormatter labels season rows with their mean and size and episode
// rows with their number, title and rating.
func ScoreFormatter(node *treeview.Node[ScoreNode]) (string, bool) {
	data := node.Data()
	if data == nil {
		return node.Name(), true
	}
	switch data.Kind {
	case NodeSeason:
		return fmt.Sprintf("Season %d  avg %.2f  (%d)", data.Season, data.Stat.Mean, data.Stat.Count), true
	case NodeEpisode:
		ep := data.Episode
		return fmt.Sprintf("E%02d %s  %.1f", ep.Episode, ep.Title, ep.Rating), true
	}
	return node.Name(), true
}
