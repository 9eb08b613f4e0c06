package cmd

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/Digital-Shane/show-score/internal/chart"
	"github.com/Digital-Shane/show-score/internal/core"
	"github.com/Digital-Shane/show-score/internal/tui/theme"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

const (
	chartWidth  = 900
	chartHeight = 520
)

type scoresOptions struct {
	stddev string
	format string
	axis   string
	out    string
}

func newScoresCmd(opts *rootOptions) *cobra.Command {
	so := &scoresOptions{}

	cmd := &cobra.Command{
		Use:   "scores <imdb-id>",
		Short: "Print the rated episodes of a series",
		Long: `Load every season of the series, join each episode with its IMDb rating and
print the result. Episodes outside their season's band are marked as
outliers; pass --stddev none to disable detection.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, ok := core.CanonicalID(args[0])
			if !ok {
				return fmt.Errorf("%q is not an IMDb id", args[0])
			}
			format := strings.ToLower(so.format)
			switch format {
			case "table", "json", "svg":
			default:
				return fmt.Errorf("unknown format %q (want table, json or svg)", so.format)
			}
			axis, err := chart.ParseAxis(so.axis)
			if err != nil {
				return err
			}

			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			raw := so.stddev
			if !cmd.Flags().Changed("stddev") {
				raw = a.cfg.DefaultStddev
			}
			k, err := core.ParseStddev(raw)
			if err != nil {
				return err
			}

			ctx := commandContext(cmd)
			if err := a.loadRatings(ctx); err != nil {
				return err
			}
			pipeline, err := a.pipeline()
			if err != nil {
				return err
			}
			result, err := pipeline.Run(ctx, core.Request{ID: id, Stddev: k})
			if err != nil {
				return err
			}

			if so.out != "" {
				return writeScoresFile(so.out, result, format, axis)
			}
			w := cmd.OutOrStdout()
			return writeScores(w, result, format, axis, shouldColorize(w))
		},
	}

	cmd.Flags().StringVar(&so.stddev, "stddev", "", "Outlier multiplier k, or none (default from config)")
	cmd.Flags().StringVar(&so.format, "format", "table", "Output format: table, json or svg")
	cmd.Flags().StringVar(&so.axis, "axis", "rating", "Chart y axis for svg output: rating or votes")
	cmd.Flags().StringVarP(&so.out, "out", "o", "", "Write output to a file instead of stdout")
	return cmd
}

// writeScoresFile writes uncolored output to path. A failed close is
// reported since it can mean the file was truncated.
func writeScoresFile(path string, result *core.Result, format string, axis chart.Axis) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	return writeScores(f, result, format, axis, false)
}

func writeScores(w io.Writer, result *core.Result, format string, axis chart.Axis, color bool) error {
	switch format {
	case "json":
		return writeJSON(w, result)
	case "svg":
		svg, err := chart.Build(result.Title, result.Episodes, axis).SVG(chartWidth, chartHeight)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, svg)
		return err
	default:
		writeScoreTable(w, result, color)
		return nil
	}
}

func writeScoreTable(w io.Writer, result *core.Result, color bool) {
	title := result.Title
	if result.Year != "" {
		title += " (" + result.Year + ")"
	}
	fmt.Fprintf(w, "%s  %s\n", title, result.IMDbID)

	if len(result.Episodes) == 0 {
		fmt.Fprintln(w, "No rated episodes.")
	} else {
		outlier := func(s string) string { return s }
		if color {
			style := theme.Default().OutlierStyle()
			outlier = func(s string) string { return style.Render(s) }
		}

		rows := make([][]string, 0, len(result.Episodes))
		for _, ep := range result.Episodes {
			row := []string{
				strconv.Itoa(ep.Index),
				fmt.Sprintf("S%02dE%02d", ep.Season, ep.Episode),
				ep.Title,
				strconv.Itoa(ep.AirYear),
				strconv.FormatFloat(ep.Rating, 'f', 1, 64),
				humanize.Comma(int64(ep.Votes)),
				outlierMark(ep),
			}
			if ep.IsOutlier() {
				for i := range row {
					row[i] = outlier(row[i])
				}
			}
			rows = append(rows, row)
		}
		fmt.Fprintln(w, renderTable(
			[]string{"#", "Episode", "Title", "Aired", "Rating", "Votes", "Outlier"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
		))
	}

	if len(result.Seasons) > 0 {
		rows := make([][]string, 0, len(result.Seasons))
		for _, s := range result.Seasons {
			rows = append(rows, []string{
				strconv.Itoa(s.Season),
				strconv.Itoa(s.Count),
				statCell(s.Mean, s.Defined || s.Count > 0),
				statCell(s.StdDev, s.Defined),
				bandCell(s),
			})
		}
		fmt.Fprintln(w, renderTable(
			[]string{"Season", "Rated", "Mean", "Std dev", "Band"},
			rows,
			[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignLeft},
		))
	}

	summary := fmt.Sprintf("%d rated | %d assembled | %d skipped | %d unmatched",
		len(result.Episodes), result.Assembled, result.Skipped, result.Unmatched)
	if result.Stddev != nil {
		summary += fmt.Sprintf(" | %d outliers at %s σ", result.Outliers, core.FormatStddev(result.Stddev))
	}
	if color {
		summary = lipgloss.NewStyle().Foreground(theme.Default().Colors().Muted).Render(summary)
	}
	fmt.Fprintln(w, summary)
}

func outlierMark(ep core.RatedEpisode) string {
	switch {
	case ep.Outlier == nil:
		return ""
	case *ep.Outlier:
		return "yes"
	default:
		return "no"
	}
}

func statCell(v float64, ok bool) string {
	if !ok || math.IsNaN(v) {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func bandCell(s core.SeasonStat) string {
	if !s.Defined {
		return "-"
	}
	return fmt.Sprintf("%.2f to %.2f", s.Lower, s.Upper)
}
