package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrInvalidStddev is returned when an outlier multiplier is negative or not finite.
var ErrInvalidStddev = errors.New("outlier stddev must be a finite, non-negative number")

// Rating is a single row of the ratings dataset.
type Rating struct {
	Average float64 `json:"rating"`
	Votes   int     `json:"votes"`
}

// RatingLookup resolves canonical identifiers to ratings. Implementations
// must be safe for concurrent readers and must not change during a join.
type RatingLookup interface {
	Lookup(id string) (Rating, bool)
}

// RatedEpisode is an EpisodeRecord joined with its rating. Outlier is nil
// when outlier detection was not requested.
type RatedEpisode struct {
	EpisodeRecord
	Index   int     `json:"episode_index"`
	Rating  float64 `json:"rating"`
	Votes   int     `json:"votes"`
	Outlier *bool   `json:"is_outlier,omitempty"`
}

// IsOutlier reports whether the episode was flagged.
func (r RatedEpisode) IsOutlier() bool {
	return r.Outlier != nil && *r.Outlier
}

// JoinAndAnnotate joins episodes to ratings in input order, drops misses and
// numbers the survivors from 1. When outlierStddev is non-nil every survivor
// gets an outlier flag computed against its own season.
func JoinAndAnnotate(episodes []EpisodeRecord, ratings RatingLookup, outlierStddev *float64) []RatedEpisode {
	rated := make([]RatedEpisode, 0, len(episodes))
	if ratings == nil {
		return rated
	}

	for _, ep := range episodes {
		hit, ok := ratings.Lookup(ep.ExternalID)
		if !ok {
			continue
		}
		rated = append(rated, RatedEpisode{
			EpisodeRecord: ep,
			Index:         len(rated) + 1,
			Rating:        hit.Average,
			Votes:         hit.Votes,
		})
	}

	if outlierStddev != nil {
		annotateOutliers(rated, *outlierStddev)
	}
	return rated
}

func annotateOutliers(rated []RatedEpisode, k float64) {
	stats := make(map[int]SeasonStat)
	for _, s := range computeStats(rated, k) {
		stats[s.Season] = s
	}
	for i := range rated {
		flag := stats[rated[i].Season].Outside(rated[i].Rating)
		rated[i].Outlier = &flag
	}
}

// SeasonStat describes the rating band of one season.
type SeasonStat struct {
	Season  int     `json:"season"`
	Count   int     `json:"count"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"stddev"`
	Lower   float64 `json:"lower"`
	Upper   float64 `json:"upper"`
	Defined bool    `json:"defined"`
}

// Outside reports whether value falls outside the inclusive band. An
// undefined band never flags anything.
func (s SeasonStat) Outside(value float64) bool {
	if !s.Defined {
		return false
	}
	return value < s.Lower || value > s.Upper
}

// MarshalJSON writes undefined statistics as null; encoding/json rejects NaN.
func (s SeasonStat) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Season  int      `json:"season"`
		Count   int      `json:"count"`
		Mean    *float64 `json:"mean"`
		StdDev  *float64 `json:"stddev"`
		Lower   *float64 `json:"lower"`
		Upper   *float64 `json:"upper"`
		Defined bool     `json:"defined"`
	}{
		Season:  s.Season,
		Count:   s.Count,
		Mean:    finite(s.Mean),
		StdDev:  finite(s.StdDev),
		Lower:   finite(s.Lower),
		Upper:   finite(s.Upper),
		Defined: s.Defined,
	})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// SeasonStats computes the per-season band for the given multiplier, in
// ascending season order.
func SeasonStats(rated []RatedEpisode, k float64) []SeasonStat {
	return computeStats(rated, k)
}

func computeStats(rated []RatedEpisode, k float64) []SeasonStat {
	groups := make(map[int][]float64)
	for _, r := range rated {
		groups[r.Season] = append(groups[r.Season], r.Rating)
	}

	stats := make([]SeasonStat, 0, len(groups))
	for season, values := range groups {
		stats = append(stats, seasonStat(season, values, k))
	}

	sort.Slice(stats, func(i, j int) bool { return stats[i].Season < stats[j].Season })
	return stats
}

// seasonStat leaves the band undefined for a single member or identical
// ratings. Summing equal floats rarely reproduces the value exactly, so a
// flat season is detected from its range rather than from the deviation.
func seasonStat(season int, values []float64, k float64) SeasonStat {
	s := SeasonStat{Season: season, Count: len(values), StdDev: math.NaN()}
	switch {
	case len(values) == 0:
		s.Mean = math.NaN()
	case len(values) == 1:
		s.Mean = values[0]
	case floats.Min(values) == floats.Max(values):
		s.Mean, s.StdDev = values[0], 0
	default:
		s.Mean, s.StdDev = stat.MeanStdDev(values, nil)
		s.Defined = !math.IsNaN(s.StdDev) && s.StdDev > 0
	}
	s.Lower = s.Mean - s.StdDev*k
	s.Upper = s.Mean + s.StdDev*k
	return s
}

// ValidateStddev checks an outlier multiplier.
func ValidateStddev(k float64) error {
	if math.IsNaN(k) || math.IsInf(k, 0) || k < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidStddev, k)
	}
	return nil
}

// ParseStddev parses a multiplier from user input. Empty input and "none"
// disable outlier detection and return nil.
func ParseStddev(raw string) (*float64, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" || trimmed == "none" {
		return nil, nil
	}
	k, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStddev, raw)
	}
	if err := ValidateStddev(k); err != nil {
		return nil, err
	}
	return &k, nil
}

// FormatStddev renders a multiplier for URLs and logs.
func FormatStddev(k *float64) string {
	if k == nil {
		return "none"
	}
	return strconv.FormatFloat(*k, 'f', -1, 64)
}

// VersionedLookup is a RatingLookup that knows which snapshot it came from.
type VersionedLookup interface {
	RatingLookup
	Version() uint64
	Len() int
}

// LookupSource hands out the current ratings snapshot.
type LookupSource interface {
	CurrentLookup() VersionedLookup
}
