package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Digital-Shane/show-score/internal/config"
	"github.com/Digital-Shane/show-score/internal/core"
	"github.com/Digital-Shane/show-score/internal/log"
	"github.com/Digital-Shane/show-score/internal/provider"
	"github.com/Digital-Shane/show-score/internal/provider/omdb"
	"github.com/Digital-Shane/show-score/internal/provider/tmdb"
	"github.com/Digital-Shane/show-score/internal/provider/tvdb"
	"github.com/Digital-Shane/show-score/internal/ratings"
	"github.com/mattn/go-isatty"
)

// cacheSaver is implemented by providers that persist their response cache.
type cacheSaver interface {
	SaveCache() error
}

// app holds the collaborators a command needs, built once from config.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *provider.Registry
	catalog  *ratings.Catalog
	journal  *log.Journal
	savers   []cacheSaver
}

// newApp loads the config, applies flag overrides and wires providers, the
// ratings catalog and the run journal. Logs go to the given output paths.
func newApp(opts *rootOptions, outputs ...string) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts != nil {
		if opts.logLevel != "" {
			cfg.LogLevel = opts.logLevel
		}
		if opts.logFormat != "" {
			cfg.LogFormat = opts.logFormat
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}
	logger, err := log.New(log.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, OutputPaths: outputs})
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}

	a.journal, err = openJournal(cfg, logger)
	if err != nil {
		return nil, err
	}

	a.registry, a.savers = buildRegistry(cfg, provider.NewTTLCache(cfg.CacheTTL()), logger)

	ratingsPath, err := cfg.ResolvedRatingsPath()
	if err != nil {
		return nil, err
	}
	a.catalog = ratings.NewCatalog(ratings.CatalogConfig{
		Path:   ratingsPath,
		URL:    cfg.RatingsURL,
		MaxAge: cfg.RatingsMaxAge(),
		Logger: logger,
	})
	return a, nil
}

func openJournal(cfg *config.Config, logger *slog.Logger) (*log.Journal, error) {
	dir, err := log.DefaultDir()
	if err != nil {
		return nil, err
	}
	journal := log.NewJournal(dir, cfg.EnableJournal)
	if cfg.EnableJournal {
		removed, err := journal.Cleanup(cfg.LogRetentionDays)
		if err != nil {
			logger.Warn("journal cleanup failed", slog.String("error", err.Error()))
		} else if removed > 0 {
			logger.Debug("old journals removed", slog.Int("count", removed))
		}
	}
	return journal, nil
}

// buildRegistry registers every provider and enables the ones with
// credentials. A provider that fails to configure stays disabled.
func buildRegistry(cfg *config.Config, cache provider.MetadataCache, logger *slog.Logger) (*provider.Registry, []cacheSaver) {
	tmdbProvider := tmdb.New()
	entries := []struct {
		name    string
		prov    provider.Provider
		enabled bool
	}{
		{name: "omdb", prov: omdb.New(), enabled: cfg.OMDBAPIKey != ""},
		{name: "tmdb", prov: tmdbProvider, enabled: cfg.EnableTMDB && cfg.TMDBAPIKey != ""},
		{name: "tvdb", prov: tvdb.New(), enabled: cfg.EnableTVDB && cfg.TVDBAPIKey != ""},
	}

	registry := provider.NewRegistry()
	var savers []cacheSaver
	for _, e := range entries {
		if err := registry.Register(e.name, provider.WithCache(e.prov, cache), e.prov.Capabilities().Priority); err != nil {
			logger.Warn("provider registration failed", slog.String("provider", e.name), slog.String("error", err.Error()))
			continue
		}
		if !e.enabled {
			continue
		}
		if err := registry.Configure(e.name, cfg.ProviderConfig(e.name)); err != nil {
			logger.Warn("provider disabled", slog.String("provider", e.name), slog.String("error", err.Error()))
			continue
		}
		if err := registry.Enable(e.name); err != nil {
			logger.Warn("provider disabled", slog.String("provider", e.name), slog.String("error", err.Error()))
			continue
		}
		if e.prov == provider.Provider(tmdbProvider) {
			savers = append(savers, tmdbProvider)
		}
	}
	return registry, savers
}

// pipeline returns the scoring pipeline over the configured episode source.
func (a *app) pipeline() (*core.Pipeline, error) {
	source, err := a.registry.EpisodeSource()
	if err != nil {
		return nil, fmt.Errorf("%w; set omdb_api_key in %s", err, configPathHint())
	}
	return &core.Pipeline{
		Source:      source,
		Ratings:     a.catalog.Store(),
		WorkerCount: a.cfg.WorkerCount,
		Logger:      a.logger,
		Journal:     a.journal,
	}, nil
}

// loadRatings publishes the local ratings file, downloading it when absent.
func (a *app) loadRatings(ctx context.Context) error {
	snap, err := a.catalog.Load(ctx)
	if err != nil {
		return fmt.Errorf("load ratings: %w", err)
	}
	a.logger.Debug("ratings ready", slog.Uint64("version", snap.Version()), slog.Int("entries", snap.Len()))
	return nil
}

// close persists provider caches.
func (a *app) close() {
	for _, s := range a.savers {
		if err := s.SaveCache(); err != nil {
			a.logger.Warn("failed to save provider cache", slog.String("error", err.Error()))
		}
	}
}

func configPathHint() string {
	path, err := config.ConfigPath()
	if err != nil {
		return "the config file"
	}
	return path
}

// shouldColorize reports whether w is an interactive terminal.
func shouldColorize(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// isCanceled reports whether err is a user interrupt.
func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
