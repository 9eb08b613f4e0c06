package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Digital-Shane/show-score/internal/log"
	"github.com/Digital-Shane/show-score/internal/provider"
	"github.com/mhmtszr/concurrent-swiss-map"
)

// DefaultWorkerCount bounds concurrent season fetches.
const DefaultWorkerCount = 8

// ErrNoEpisodes is returned when a show yields no usable episode records.
var ErrNoEpisodes = errors.New("show has no usable episodes")

// Loader fetches a show and all of its seasons from an episode source and
// assembles the nested ShowMetadata. A Loader runs once.
type Loader struct {
	source      provider.Provider
	showID      string
	workerCount int
	logger      *slog.Logger
	session     *log.Session

	seasons *csmap.CsMap[string, *provider.Metadata]

	summaryMu sync.RWMutex
	summary   LoadSummary

	errorsMu sync.Mutex
	errors   []error

	resultMu sync.Mutex
	show     *ShowMetadata
	err      error
}

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	Source      provider.Provider
	ShowID      string
	WorkerCount int
	Logger      *slog.Logger
	Session     *log.Session
}

// LoadSummary captures loader progress at a point in time.
type LoadSummary struct {
	ShowID           string
	Title            string
	Phase            string
	TotalSeasons     int
	ProcessedSeasons int
	ActiveWorkers    int
	WorkerLimit      int
	ErrorCount       int
	LastItem         string
	Done             bool
	Canceled         bool
}

// LoadEvent is a progress update emitted by the loader.
type LoadEvent struct {
	Summary LoadSummary
	Err     error
}

type seasonResult struct {
	key  string
	meta *provider.Metadata
	err  error
}

// NewLoader constructs a loader with defaults applied.
func NewLoader(cfg LoaderConfig) *Loader {
	workerCount := cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = DefaultWorkerCount
	}
	return &Loader{
		source:      cfg.Source,
		showID:      strings.TrimSpace(cfg.ShowID),
		workerCount: workerCount,
		logger:      log.OrDefault(cfg.Logger),
		session:     cfg.Session,
		seasons:     csmap.Create[string, *provider.Metadata](),
		summary: LoadSummary{
			ShowID:      strings.TrimSpace(cfg.ShowID),
			WorkerLimit: workerCount,
		},
	}
}

// Start begins loading and returns a stream of progress events. The channel
// closes when loading ends; Result is valid from then on.
func (l *Loader) Start(ctx context.Context) <-chan LoadEvent {
	events := make(chan LoadEvent, 128)
	go l.run(ctx, events)
	return events
}

// Load runs the loader to completion, discarding progress events.
func (l *Loader) Load(ctx context.Context) (*ShowMetadata, error) {
	for range l.Start(ctx) {
	}
	return l.Result()
}

// Result returns the assembled show or the load failure.
func (l *Loader) Result() (*ShowMetadata, error) {
	l.resultMu.Lock()
	defer l.resultMu.Unlock()
	return l.show, l.err
}

// SummarySnapshot returns the latest progress summary.
func (l *Loader) SummarySnapshot() LoadSummary {
	l.summaryMu.RLock()
	defer l.summaryMu.RUnlock()
	return l.summary
}

// Errors returns a copy of the per-season failures.
func (l *Loader) Errors() []error {
	l.errorsMu.Lock()
	defer l.errorsMu.Unlock()
	if len(l.errors) == 0 {
		return nil
	}
	cloned := make([]error, len(l.errors))
	copy(cloned, l.errors)
	return cloned
}

func (l *Loader) finish(show *ShowMetadata, err error) {
	l.resultMu.Lock()
	l.show, l.err = show, err
	l.resultMu.Unlock()
}

func (l *Loader) run(ctx context.Context, events chan<- LoadEvent) {
	defer close(events)

	if l.source == nil {
		err := errors.New("no episode source configured")
		l.finish(nil, err)
		l.emit(ctx, events, err)
		return
	}
	if l.showID == "" {
		err := &provider.ProviderError{Provider: l.source.Name(), Code: provider.CodeInvalidRequest, Message: "show id is required"}
		l.finish(nil, err)
		l.emit(ctx, events, err)
		return
	}

	l.setPhase("Show")
	l.emit(ctx, events, nil)

	showMeta, err := l.source.Fetch(ctx, provider.FetchRequest{MediaType: provider.MediaTypeShow, ID: l.showID})
	l.session.Record(log.OpFetch, l.showID, "show", err)
	if err == nil && showMeta == nil {
		err = &provider.ProviderError{Provider: l.source.Name(), Code: provider.CodeNotFound, Message: "show not found"}
	}
	if err != nil {
		err = fmt.Errorf("fetch show %s: %w", l.showID, err)
		l.finish(nil, err)
		l.markDone(ctx.Err() != nil)
		l.emit(ctx, events, err)
		return
	}

	keys := showMeta.SeasonKeys()
	l.summaryMu.Lock()
	l.summary.Title = showMeta.Core.Title
	l.summary.TotalSeasons = len(keys)
	l.summaryMu.Unlock()

	l.logger.Debug("show loaded",
		slog.String("show_id", l.showID),
		slog.String("title", showMeta.Core.Title),
		slog.Int("seasons", len(keys)),
	)

	if len(keys) > 0 {
		l.setPhase("Seasons")
		l.runSeasons(ctx, events, keys)
		if ctx.Err() != nil {
			l.finish(nil, ctx.Err())
			l.markDone(true)
			return
		}
	}

	show, err := l.buildShow(showMeta, keys)
	l.finish(show, err)
	l.markDone(false)
	l.emit(ctx, events, err)
}

func (l *Loader) runSeasons(ctx context.Context, events chan<- LoadEvent, keys []string) {
	workerCount := min(l.workerCount, len(keys))
	workCh := make(chan string)
	resultCh := make(chan seasonResult)
	var wg sync.WaitGroup

	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go l.worker(ctx, &wg, workCh, resultCh)
	}

	l.summaryMu.Lock()
	l.summary.ActiveWorkers = workerCount
	l.summaryMu.Unlock()
	l.emit(ctx, events, nil)

	go func() {
		defer close(workCh)
		dispatched := make(map[string]bool, len(keys))
		for _, key := range keys {
			if ctx.Err() != nil {
				return
			}
			// duplicate keys in a listing are fetched once
			if dispatched[key] {
				l.incrementProcessed(key)
				continue
			}
			dispatched[key] = true
			select {
			case workCh <- key:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	for {
		select {
		case <-ctx.Done():
			l.summaryMu.Lock()
			l.summary.Canceled = true
			l.summary.ActiveWorkers = 0
			l.summaryMu.Unlock()
			l.emit(ctx, events, ctx.Err())
			return
		case res, ok := <-resultCh:
			if !ok {
				l.summaryMu.Lock()
				l.summary.ActiveWorkers = 0
				l.summaryMu.Unlock()
				return
			}
			l.processResult(res)
			l.emit(ctx, events, res.err)
		}
	}
}

func (l *Loader) worker(ctx context.Context, wg *sync.WaitGroup, workCh <-chan string, resultCh chan<- seasonResult) {
	defer wg.Done()

	for key := range workCh {
		if ctx.Err() != nil {
			return
		}

		res := seasonResult{key: key}
		number, ok := ParseOrdinal(key)
		if !ok {
			res.err = fmt.Errorf("season %q: not an ordinal", key)
		} else {
			res.meta, res.err = l.source.Fetch(ctx, provider.FetchRequest{
				MediaType: provider.MediaTypeSeason,
				ID:        l.showID,
				Season:    number,
			})
			if res.err != nil {
				res.err = fmt.Errorf("season %s: %w", key, res.err)
			}
		}
		l.session.Record(log.OpFetch, l.showID, "season "+key, res.err)

		select {
		case resultCh <- res:
		case <-ctx.Done():
			return
		}
	}
}

func (l *Loader) processResult(res seasonResult) {
	if res.err == nil && res.meta != nil {
		l.seasons.Store(res.key, res.meta)
	}

	errCount := 0
	if res.err != nil && !errors.Is(res.err, context.Canceled) && !errors.Is(res.err, context.DeadlineExceeded) {
		l.logger.Warn("season fetch failed", slog.String("show_id", l.showID), slog.String("error", res.err.Error()))
		l.errorsMu.Lock()
		l.errors = append(l.errors, res.err)
		errCount = len(l.errors)
		l.errorsMu.Unlock()
	} else {
		l.errorsMu.Lock()
		errCount = len(l.errors)
		l.errorsMu.Unlock()
	}

	l.summaryMu.Lock()
	l.summary.ProcessedSeasons++
	l.summary.ErrorCount = errCount
	l.summary.LastItem = "Season " + res.key
	l.summaryMu.Unlock()
}

func (l *Loader) incrementProcessed(key string) {
	l.summaryMu.Lock()
	l.summary.ProcessedSeasons++
	l.summary.LastItem = "Season " + key
	l.summaryMu.Unlock()
}

// buildShow orders seasons by the provider listing, not completion order.
func (l *Loader) buildShow(showMeta *provider.Metadata, keys []string) (*ShowMetadata, error) {
	imdbID := showMeta.IDs["imdb_id"]
	if imdbID == "" {
		imdbID = l.showID
	}
	show := &ShowMetadata{
		Title:   showMeta.Core.Title,
		Year:    showMeta.Core.Year,
		IMDbID:  imdbID,
		Seasons: make([]SeasonNode, 0, len(keys)),
	}

	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		if seen[key] {
			continue
		}
		seen[key] = true

		meta, ok := l.seasons.Load(key)
		if !ok {
			continue
		}
		season := SeasonNode{Key: key, Episodes: make([]EpisodeNode, 0, len(meta.Episodes))}
		for _, leaf := range meta.Episodes {
			season.Episodes = append(season.Episodes, EpisodeNode{
				Key:        leaf.Key,
				Title:      leaf.Title,
				Year:       leaf.Year,
				ProviderID: leaf.ID,
			})
		}
		show.Seasons = append(show.Seasons, season)
	}

	if errs := l.Errors(); len(keys) > 0 && len(show.Seasons) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("every season failed to load: %w", errors.Join(errs...))
	}
	return show, nil
}

func (l *Loader) setPhase(name string) {
	l.summaryMu.Lock()
	l.summary.Phase = name
	l.summaryMu.Unlock()
}

func (l *Loader) markDone(canceled bool) {
	l.summaryMu.Lock()
	l.summary.Done = true
	l.summary.Canceled = l.summary.Canceled || canceled
	l.summary.ActiveWorkers = 0
	l.summaryMu.Unlock()
}

func (l *Loader) emit(ctx context.Context, events chan<- LoadEvent, err error) {
	summary := l.SummarySnapshot()
	select {
	case events <- LoadEvent{Summary: summary, Err: err}:
	case <-ctx.Done():
	}
}
