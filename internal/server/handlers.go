package server

import (
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Digital-Shane/show-score/internal/chart"
	"github.com/Digital-Shane/show-score/internal/core"
	"github.com/Digital-Shane/show-score/internal/provider"
)

const (
	figureWidth  = 900
	figureHeight = 520
)

type indexPage struct {
	Query string
	Std   string
	Error string
}

type resultItem struct {
	provider.SearchResult
	Link string
}

type resultsPage struct {
	Query   string
	Std     string
	Results []resultItem
}

type outputPage struct {
	Result   *core.Result
	Axis     chart.Axis
	SVG      template.HTML
	Std      string
	APIURL   string
	Outliers []core.RatedEpisode
}

type healthResponse struct {
	Status          string `json:"status"`
	SnapshotVersion uint64 `json:"snapshot_version"`
	Entries         int    `json:"entries"`
	LoadedAt        string `json:"loaded_at,omitempty"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "index.html", indexPage{Std: s.defaultStddev})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.renderError(w, r, http.StatusNotFound, "No page lives at "+r.URL.Path)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.FormValue("show"))
	std := s.stddevParam(r.FormValue("std"))

	if query == "" {
		s.render(w, r, http.StatusBadRequest, "index.html", indexPage{Std: std, Error: "Enter a show to search for."})
		return
	}
	if _, err := core.ParseStddev(std); err != nil {
		s.render(w, r, http.StatusBadRequest, "index.html", indexPage{Query: query, Std: std, Error: err.Error()})
		return
	}

	results, err := s.searcher.Search(r.Context(), query)
	if err != nil && !provider.IsNotFound(err) {
		s.fail(w, r, err)
		return
	}

	page := resultsPage{Query: query, Std: std}
	for _, res := range results {
		if res.Kind != "" && res.Kind != "tv series" {
			continue
		}
		page.Results = append(page.Results, resultItem{SearchResult: res, Link: resultLink(res, std)})
	}
	s.render(w, r, http.StatusOK, "results.html", page)
}

func resultLink(res provider.SearchResult, std string) string {
	if res.IMDbID != "" {
		return outputPath(res.IMDbID, std)
	}
	return "/resolve/" + url.PathEscape(res.Provider) + "/" + url.PathEscape(res.ID) + "?std=" + url.QueryEscape(std)
}

func outputPath(id, std string) string {
	return "/output/" + url.PathEscape(id) + "/" + url.PathEscape(std) + "/"
}

// handleResolve turns a provider specific search hit into an IMDb id and
// redirects to its output page.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	res := provider.SearchResult{Provider: r.PathValue("provider"), ID: r.PathValue("id")}
	imdbID, err := s.searcher.ResolveIMDbID(r.Context(), res)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	http.Redirect(w, r, outputPath(imdbID, s.stddevParam(r.URL.Query().Get("std"))), http.StatusFound)
}

func (s *Server) handleOutput(w http.ResponseWriter, r *http.Request) {
	id, std := r.PathValue("id"), r.PathValue("std")
	axis, err := chart.ParseAxis(r.URL.Query().Get("y"))
	if err != nil {
		s.renderError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.score(r, id, std)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	svg, err := chart.Build(result.Title, result.Episodes, axis).SVG(figureWidth, figureHeight)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "output.html", outputPage{
		Result: result,
		Axis:   axis,
		// rendered by chart with every text node escaped
		SVG:      template.HTML(svg),
		Std:      core.FormatStddev(result.Stddev),
		APIURL:   "/api/output/" + url.PathEscape(result.IMDbID) + "/" + url.PathEscape(core.FormatStddev(result.Stddev)),
		Outliers: result.OutlierEpisodes(),
	})
}

func (s *Server) handleAPIOutput(w http.ResponseWriter, r *http.Request) {
	result, err := s.score(r, r.PathValue("id"), r.PathValue("std"))
	if err != nil {
		status := statusFor(err)
		s.logFailure(r, status, err)
		s.writeError(w, status, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	status := http.StatusOK
	if s.store == nil || !s.store.Ready() {
		resp.Status = "no_snapshot"
		status = http.StatusServiceUnavailable
	}
	if s.store != nil {
		snap := s.store.Current()
		resp.SnapshotVersion = snap.Version()
		resp.Entries = snap.Len()
		if !snap.LoadedAt().IsZero() {
			resp.LoadedAt = snap.LoadedAt().UTC().Format(time.RFC3339)
		}
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) score(r *http.Request, id, std string) (*core.Result, error) {
	k, err := core.ParseStddev(std)
	if err != nil {
		return nil, err
	}
	return s.scorer.Run(r.Context(), core.Request{ID: id, Stddev: k})
}

func (s *Server) stddevParam(raw string) string {
	if trimmed := strings.TrimSpace(raw); trimmed != "" {
		return trimmed
	}
	return s.defaultStddev
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	s.logFailure(r, status, err)
	s.renderError(w, r, status, userMessage(status, err))
}

func (s *Server) logFailure(r *http.Request, status int, err error) {
	// client went away
	if ctxErr := r.Context().Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return
	}
	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.LogAttrs(r.Context(), level, "request failed",
		slog.String("request_id", requestID(r.Context())),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)
}

func userMessage(status int, err error) string {
	switch status {
	case http.StatusBadRequest, http.StatusNotFound:
		return err.Error()
	case http.StatusBadGateway, http.StatusGatewayTimeout:
		return "An upstream data provider failed: " + err.Error()
	default:
		return "Something went wrong while building this page."
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
