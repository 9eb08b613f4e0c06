// Package server is the web interface: a search form, a disambiguation
// list, and per-series output pages with an inline chart.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Digital-Shane/show-score/internal/core"
	"github.com/Digital-Shane/show-score/internal/log"
	"github.com/Digital-Shane/show-score/internal/provider"
	"github.com/Digital-Shane/show-score/internal/ratings"
)

const shutdownTimeout = 3 * time.Second

// Searcher lists candidate series and resolves them to IMDb ids.
type Searcher interface {
	Search(ctx context.Context, query string) ([]provider.SearchResult, error)
	ResolveIMDbID(ctx context.Context, res provider.SearchResult) (string, error)
}

// Scorer runs the scoring pipeline for one series.
type Scorer interface {
	Run(ctx context.Context, req core.Request) (*core.Result, error)
}

// Config wires the server to its collaborators. Catalog is optional; when
// set it is refreshed in the background while serving.
type Config struct {
	Addr            string
	Searcher        Searcher
	Scorer          Scorer
	Store           *ratings.Store
	Catalog         *ratings.Catalog
	RefreshInterval time.Duration
	DefaultStddev   string
	Logger          *slog.Logger
}

// Server serves the web interface.
type Server struct {
	addr            string
	searcher        Searcher
	scorer          Scorer
	store           *ratings.Store
	catalog         *ratings.Catalog
	refreshInterval time.Duration
	defaultStddev   string
	logger          *slog.Logger
	pages           *pages

	http *http.Server
}

// New builds a server and parses its templates.
func New(cfg Config) (*Server, error) {
	if cfg.Searcher == nil || cfg.Scorer == nil {
		return nil, errors.New("server requires a searcher and a scorer")
	}
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}

	std := strings.TrimSpace(cfg.DefaultStddev)
	if std == "" {
		std = "none"
	}
	if _, err := core.ParseStddev(std); err != nil {
		return nil, fmt.Errorf("default stddev: %w", err)
	}

	store := cfg.Store
	if store == nil && cfg.Catalog != nil {
		store = cfg.Catalog.Store()
	}

	s := &Server{
		addr:            cfg.Addr,
		searcher:        cfg.Searcher,
		scorer:          cfg.Scorer,
		store:           store,
		catalog:         cfg.Catalog,
		refreshInterval: cfg.RefreshInterval,
		defaultStddev:   std,
		logger:          log.OrDefault(cfg.Logger).With(slog.String("component", "web")),
		pages:           pages,
	}

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// loading a long series walks every season upstream
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /search", s.handleSearch)
	mux.HandleFunc("POST /search", s.handleSearch)
	mux.HandleFunc("GET /resolve/{provider}/{id}", s.handleResolve)
	mux.HandleFunc("GET /output/{id}/{std}/", s.handleOutput)
	mux.HandleFunc("POST /output/{id}/{std}/", s.handleOutput)
	mux.HandleFunc("GET /api/output/{id}/{std}", s.handleAPIOutput)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("/", s.handleNotFound)
	return logMiddleware(mux, s.logger)
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	if s.catalog != nil && s.refreshInterval > 0 {
		go s.catalog.Run(ctx, s.refreshInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(listener)
	}()
	s.logger.Info("web server listening", slog.String("address", listener.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		s.logger.Info("web server stopped")
		return nil
	}
}

// statusFor maps pipeline and provider failures to HTTP status codes.
func statusFor(err error) int {
	var perr *provider.ProviderError
	switch {
	case errors.Is(err, core.ErrInvalidID), errors.Is(err, core.ErrInvalidStddev):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNoEpisodes):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &perr):
		switch perr.Code {
		case provider.CodeInvalidRequest:
			return http.StatusBadRequest
		case provider.CodeNotFound:
			return http.StatusNotFound
		default:
			return http.StatusBadGateway
		}
	default:
		return http.StatusInternalServerError
	}
}
