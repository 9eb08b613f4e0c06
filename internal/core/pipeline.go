package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Digital-Shane/show-score/internal/log"
	"github.com/Digital-Shane/show-score/internal/provider"
)

// ErrInvalidID is returned for series ids that are not "tt" + digits.
var ErrInvalidID = errors.New("invalid IMDb series id")

// Pipeline runs load -> assemble -> join for one series per call. It holds
// no per-request state and is safe for concurrent use.
type Pipeline struct {
	Source      provider.Provider
	Ratings     LookupSource
	WorkerCount int
	Logger      *slog.Logger
	Journal     *log.Journal
}

// Request selects a series and the outlier multiplier (nil disables
// detection).
type Request struct {
	ID       string
	Stddev   *float64
	Progress func(LoadEvent)
}

// Result is the scored series.
type Result struct {
	Title           string         `json:"title"`
	Year            string         `json:"year,omitempty"`
	IMDbID          string         `json:"imdb_id"`
	Stddev          *float64       `json:"stddev,omitempty"`
	Episodes        []RatedEpisode `json:"episodes"`
	Seasons         []SeasonStat   `json:"seasons,omitempty"`
	Assembled       int            `json:"assembled"`
	Skipped         int            `json:"skipped"`
	Unmatched       int            `json:"unmatched"`
	Outliers        int            `json:"outliers"`
	SnapshotVersion uint64         `json:"snapshot_version"`
	SessionID       string         `json:"session_id,omitempty"`

	SkipReasons map[SkipReason]int `json:"skip_reasons,omitempty"`
}

// Run loads the series from the episode source and scores it against the
// current ratings snapshot. Upstream failures are returned as errors;
// malformed or unrated episodes only show up in the counts.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Stddev != nil {
		if err := ValidateStddev(*req.Stddev); err != nil {
			return nil, err
		}
	}
	id, ok := CanonicalID(req.ID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, req.ID)
	}

	logger := log.OrDefault(p.Logger)
	session := p.Journal.Start("scores", []string{id, FormatStddev(req.Stddev)})
	defer func() {
		if _, err := session.End(); err != nil {
			logger.Warn("failed to write run journal", slog.String("error", err.Error()))
		}
	}()

	loader := NewLoader(LoaderConfig{
		Source:      p.Source,
		ShowID:      id,
		WorkerCount: p.WorkerCount,
		Logger:      logger,
		Session:     session,
	})
	for ev := range loader.Start(ctx) {
		if req.Progress != nil {
			req.Progress(ev)
		}
	}
	show, err := loader.Result()
	if err != nil {
		return nil, err
	}

	result, err := p.score(show, req.Stddev, session)
	if err != nil {
		return nil, err
	}
	result.SessionID = session.ID()

	logger.Info("series scored",
		slog.String("imdb_id", result.IMDbID),
		slog.String("title", result.Title),
		slog.Int("assembled", result.Assembled),
		slog.Int("rated", len(result.Episodes)),
		slog.Int("skipped", result.Skipped),
		slog.Int("unmatched", result.Unmatched),
		slog.Int("outliers", result.Outliers),
		slog.Uint64("snapshot_version", result.SnapshotVersion),
	)
	return result, nil
}

// Score assembles and joins an already loaded show.
func (p *Pipeline) Score(show *ShowMetadata, stddev *float64) (*Result, error) {
	if stddev != nil {
		if err := ValidateStddev(*stddev); err != nil {
			return nil, err
		}
	}
	return p.score(show, stddev, nil)
}

func (p *Pipeline) score(show *ShowMetadata, stddev *float64, session *log.Session) (*Result, error) {
	if show == nil {
		return nil, ErrNoEpisodes
	}

	assembly := Assemble(*show)
	for _, s := range assembly.Skipped {
		session.Record(log.OpSkip, fmt.Sprintf("S%sE%s", s.SeasonKey, s.EpisodeKey), string(s.Reason), nil)
	}
	if len(assembly.Records) == 0 {
		err := fmt.Errorf("%s: %w", show.IMDbID, ErrNoEpisodes)
		session.Record(log.OpJoin, show.IMDbID, "", err)
		return nil, err
	}

	// Pin one snapshot for the whole join.
	var lookup VersionedLookup
	if p.Ratings != nil {
		lookup = p.Ratings.CurrentLookup()
	}

	var rated []RatedEpisode
	var version uint64
	if lookup != nil {
		rated = JoinAndAnnotate(assembly.Records, lookup, stddev)
		version = lookup.Version()
	} else {
		rated = JoinAndAnnotate(assembly.Records, nil, stddev)
	}

	result := &Result{
		Title:           show.Title,
		Year:            show.Year,
		IMDbID:          show.IMDbID,
		Stddev:          stddev,
		Episodes:        rated,
		Assembled:       len(assembly.Records),
		Skipped:         len(assembly.Skipped),
		Unmatched:       len(assembly.Records) - len(rated),
		SnapshotVersion: version,
		SkipReasons:     assembly.SkipCounts(),
	}
	if stddev != nil {
		result.Seasons = SeasonStats(rated, *stddev)
	}
	for _, r := range rated {
		if r.IsOutlier() {
			result.Outliers++
		}
	}

	session.Record(log.OpJoin, show.IMDbID,
		fmt.Sprintf("rated %d of %d, snapshot v%d", len(rated), result.Assembled, version), nil)
	return result, nil
}

// OutlierEpisodes returns the flagged episodes in index order.
func (r *Result) OutlierEpisodes() []RatedEpisode {
	var out []RatedEpisode
	for _, ep := range r.Episodes {
		if ep.IsOutlier() {
			out = append(out, ep)
		}
	}
	return out
}
