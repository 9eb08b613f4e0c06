// Package chart turns rated episodes into a scatter figure with a smoothed
// trend line and renders it as standalone SVG through gonum/plot.
package chart

import (
	"fmt"
	"strings"

	"github.com/Digital-Shane/show-score/internal/core"
	"github.com/dustin/go-humanize"
)

// Axis selects the plotted value.
type Axis string

const (
	AxisRating Axis = "rating"
	AxisVotes  Axis = "votes"
)

// ParseAxis accepts "rating" or "votes" in any case. Empty input selects
// the rating axis.
func ParseAxis(raw string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(AxisRating):
		return AxisRating, nil
	case string(AxisVotes):
		return AxisVotes, nil
	default:
		return "", fmt.Errorf("unknown axis %q (want rating or votes)", raw)
	}
}

// Label is the axis title.
func (a Axis) Label() string {
	if a == AxisVotes {
		return "Votes"
	}
	return "IMDb Rating"
}

func (a Axis) value(ep core.RatedEpisode) float64 {
	if a == AxisVotes {
		return float64(ep.Votes)
	}
	return ep.Rating
}

func (a Axis) format(v float64) string {
	if a == AxisVotes {
		return humanize.Comma(int64(v))
	}
	return humanize.FtoaWithDigits(v, 2)
}

// palette cycles by order of first appearance.
var palette = []string{
	"#636EFA", "#EF553B", "#00CC96", "#AB63FA", "#FFA15A",
	"#19D3F3", "#FF6692", "#B6E880", "#FF97FF", "#FECB52",
}

// Point is one plotted episode.
type Point struct {
	X       float64
	Y       float64
	Season  int
	Episode int
	Title   string
	Votes   int
	Rating  float64
	Outlier bool
}

// Label is the two line outlier annotation.
func (p Point) Label() string {
	return OutlierLabel(p.Title, p.Season, p.Episode)
}

// OutlierLabel formats the annotation shown next to a flagged episode.
func OutlierLabel(title string, season, episode int) string {
	return fmt.Sprintf("%s\nS %d | E %d", title, season, episode)
}

// Series holds the points of one season.
type Series struct {
	Season int
	Name   string
	Color  string
	Points []Point
}

// TrendPoint is a vertex of the smoothed trend line.
type TrendPoint struct {
	X float64
	Y float64
}

// Figure is a renderer independent description of the chart.
type Figure struct {
	Title    string
	Axis     Axis
	XLabel   string
	YLabel   string
	Series   []Series
	Trend    []TrendPoint
	Outliers []Point
}

// Build lays out rated episodes by episode index. Seasons get palette
// colours in order of first appearance and the trend is a LOWESS fit over
// all points.
func Build(title string, rated []core.RatedEpisode, axis Axis) Figure {
	if axis != AxisVotes {
		axis = AxisRating
	}
	fig := Figure{
		Title:  title,
		Axis:   axis,
		XLabel: "Episode Number",
		YLabel: axis.Label(),
	}
	if len(rated) == 0 {
		return fig
	}

	bySeason := make(map[int]int)
	xs := make([]float64, 0, len(rated))
	ys := make([]float64, 0, len(rated))
	for _, ep := range rated {
		pt := Point{
			X:       float64(ep.Index),
			Y:       axis.value(ep),
			Season:  ep.Season,
			Episode: ep.Episode,
			Title:   ep.Title,
			Votes:   ep.Votes,
			Rating:  ep.Rating,
			Outlier: ep.IsOutlier(),
		}

		idx, ok := bySeason[ep.Season]
		if !ok {
			idx = len(fig.Series)
			bySeason[ep.Season] = idx
			fig.Series = append(fig.Series, Series{
				Season: ep.Season,
				Name:   fmt.Sprintf("Season %d", ep.Season),
				Color:  palette[idx%len(palette)],
			})
		}
		fig.Series[idx].Points = append(fig.Series[idx].Points, pt)
		if pt.Outlier {
			fig.Outliers = append(fig.Outliers, pt)
		}
		xs = append(xs, pt.X)
		ys = append(ys, pt.Y)
	}

	fitted := Lowess(xs, ys, DefaultFrac, DefaultIterations)
	fig.Trend = make([]TrendPoint, len(fitted))
	for i, y := range fitted {
		fig.Trend[i] = TrendPoint{X: xs[i], Y: y}
	}
	return fig
}

// Empty reports whether the figure has no points.
func (f Figure) Empty() bool {
	return len(f.Series) == 0
}

// PointCount returns the number of plotted episodes.
func (f Figure) PointCount() int {
	n := 0
	for _, s := range f.Series {
		n += len(s.Points)
	}
	return n
}
