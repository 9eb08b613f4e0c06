package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Digital-Shane/show-score/internal/config"
	"github.com/Digital-Shane/show-score/internal/core"
	"github.com/Digital-Shane/show-score/internal/provider"
	"github.com/Digital-Shane/show-score/internal/tui/browse"
	"github.com/Digital-Shane/show-score/internal/tui/progress"
	"github.com/Digital-Shane/show-score/internal/tui/theme"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

// errCanceled reports that the user left an interactive screen early.
var errCanceled = errors.New("canceled")

func newBrowseCmd(opts *rootOptions) *cobra.Command {
	var stddev string

	cmd := &cobra.Command{
		Use:   "browse <title | imdb-id>",
		Short: "Explore a series season by season in the terminal",
		Long: `Search for a series (or pass its IMDb id), score it and browse the episodes
grouped by season. Outliers are highlighted; Tab switches to the details
panel. Logs go to ~/.show-score/show-score.log while the screen is open.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.Dir()
			if err != nil {
				return err
			}
			a, err := newApp(opts, filepath.Join(dir, "show-score.log"))
			if err != nil {
				return err
			}
			defer a.close()

			raw := stddev
			if !cmd.Flags().Changed("stddev") {
				raw = a.cfg.DefaultStddev
			}
			k, err := core.ParseStddev(raw)
			if err != nil {
				return err
			}

			ctx := commandContext(cmd)
			th := theme.Default()

			id, err := chooseSeries(ctx, a.registry, strings.Join(args, " "), th)
			if errors.Is(err, errCanceled) {
				return nil
			}
			if err != nil {
				return err
			}

			if err := a.loadRatings(ctx); err != nil {
				return err
			}
			pipeline, err := a.pipeline()
			if err != nil {
				return err
			}

			result, err := runLoad(pipeline, core.Request{ID: id, Stddev: k}, th)
			if errors.Is(err, errCanceled) {
				return nil
			}
			if err != nil {
				return err
			}

			_, err = tea.NewProgram(browse.NewBrowseModel(result, browse.WithTheme(th)), tea.WithAltScreen()).Run()
			return err
		},
	}

	cmd.Flags().StringVar(&stddev, "stddev", "", "Outlier multiplier k, or none (default from config)")
	return cmd
}

// seriesFinder is satisfied by *provider.Registry.
type seriesFinder interface {
	Search(ctx context.Context, query string) ([]provider.SearchResult, error)
	ResolveIMDbID(ctx context.Context, res provider.SearchResult) (string, error)
}

// looksLikeIMDbID reports whether the argument should skip search.
func looksLikeIMDbID(arg string) (string, bool) {
	trimmed := strings.TrimSpace(arg)
	if !strings.HasPrefix(strings.ToLower(trimmed), "tt") {
		return "", false
	}
	return core.CanonicalID(trimmed)
}

// chooseSeries turns the argument into an IMDb id, asking the user to pick
// when a search matches more than one series.
func chooseSeries(ctx context.Context, searcher seriesFinder, arg string, th theme.Theme) (string, error) {
	if id, ok := looksLikeIMDbID(arg); ok {
		return id, nil
	}

	results, err := searcher.Search(ctx, arg)
	if err != nil {
		return "", fmt.Errorf("search %q: %w", arg, err)
	}
	if len(results) == 0 {
		return "", fmt.Errorf("no series matches %q", arg)
	}

	choice := results[0]
	if len(results) > 1 {
		final, err := tea.NewProgram(browse.NewPickerModel(arg, results, th), tea.WithAltScreen()).Run()
		if err != nil {
			return "", err
		}
		picked, ok := final.(*browse.PickerModel).Selected()
		if !ok {
			return "", errCanceled
		}
		choice = picked
	}

	id, err := searcher.ResolveIMDbID(ctx, choice)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", choice.Title, err)
	}
	canonical, ok := core.CanonicalID(id)
	if !ok {
		return "", fmt.Errorf("%s has no IMDb id", choice.Title)
	}
	return canonical, nil
}

// runLoad shows the progress screen while the pipeline scores the series.
func runLoad(runner progress.Runner, req core.Request, th theme.Theme) (*core.Result, error) {
	final, err := tea.NewProgram(progress.NewLoadProgressModel(runner, req, th)).Run()
	if err != nil {
		return nil, err
	}
	model := final.(*progress.LoadProgressModel)
	if model.Canceled() {
		return nil, errCanceled
	}
	return model.Result()
}
