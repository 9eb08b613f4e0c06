package core

import (
	"strconv"
	"strings"
)

// ShowMetadata is the nested season -> episode structure returned by an
// episode source. Keys and leaf fields hold the raw strings the provider
// supplied; slice order is encounter order.
type ShowMetadata struct {
	Title   string
	Year    string
	IMDbID  string
	Seasons []SeasonNode
}

// SeasonNode groups the episode leaves listed under one season key.
type SeasonNode struct {
	Key      string
	Episodes []EpisodeNode
}

// EpisodeNode is a single leaf of the nested structure.
type EpisodeNode struct {
	Key        string
	Title      string
	Year       string
	ProviderID string
}

// EpisodeRecord is a flattened, validated episode. Season and Episode are
// signed integers coerced from the raw ordinal keys.
type EpisodeRecord struct {
	SeriesTitle string `json:"series_title"`
	Season      int    `json:"season"`
	Episode     int    `json:"episode"`
	Title       string `json:"title"`
	AirYear     int    `json:"air_year"`
	ExternalID  string `json:"external_id"`
}

// SkipReason explains why a leaf did not produce an EpisodeRecord.
type SkipReason string

const (
	SkipBadSeason    SkipReason = "bad_season"
	SkipBadEpisode   SkipReason = "bad_episode"
	SkipMissingTitle SkipReason = "missing_title"
	SkipMissingYear  SkipReason = "missing_year"
	SkipBadYear      SkipReason = "bad_year"
	SkipMissingID    SkipReason = "missing_id"
	SkipBadID        SkipReason = "bad_id"
)

// Outcome is the result of resolving one leaf: either a Record or a skip
// with its Reason.
type Outcome struct {
	Record     EpisodeRecord
	Skipped    bool
	Reason     SkipReason
	SeasonKey  string
	EpisodeKey string
}

// Resolved reports whether the outcome carries a usable record.
func (o Outcome) Resolved() bool {
	return !o.Skipped
}

func skipped(seasonKey, episodeKey string, reason SkipReason) Outcome {
	return Outcome{Skipped: true, Reason: reason, SeasonKey: seasonKey, EpisodeKey: episodeKey}
}

// Resolve validates a single leaf. Checks run in a fixed order so the
// reported reason is deterministic when several fields are bad.
func Resolve(seriesTitle, seasonKey string, node EpisodeNode) Outcome {
	season, ok := ParseOrdinal(seasonKey)
	if !ok {
		return skipped(seasonKey, node.Key, SkipBadSeason)
	}
	episode, ok := ParseOrdinal(node.Key)
	if !ok {
		return skipped(seasonKey, node.Key, SkipBadEpisode)
	}

	title := strings.TrimSpace(node.Title)
	if title == "" {
		return skipped(seasonKey, node.Key, SkipMissingTitle)
	}

	rawYear := strings.TrimSpace(node.Year)
	if rawYear == "" {
		return skipped(seasonKey, node.Key, SkipMissingYear)
	}
	year, err := strconv.Atoi(rawYear)
	if err != nil || year <= 0 {
		return skipped(seasonKey, node.Key, SkipBadYear)
	}

	if strings.TrimSpace(node.ProviderID) == "" {
		return skipped(seasonKey, node.Key, SkipMissingID)
	}
	id, ok := CanonicalID(node.ProviderID)
	if !ok {
		return skipped(seasonKey, node.Key, SkipBadID)
	}

	return Outcome{
		Record: EpisodeRecord{
			SeriesTitle: seriesTitle,
			Season:      season,
			Episode:     episode,
			Title:       title,
			AirYear:     year,
			ExternalID:  id,
		},
		SeasonKey:  seasonKey,
		EpisodeKey: node.Key,
	}
}

// CanonicalID turns a provider numeric code into the "tt" prefixed form used
// by the ratings dataset. An existing prefix is accepted and normalised.
func CanonicalID(raw string) (string, bool) {
	code := strings.TrimSpace(raw)
	if len(code) >= 2 && strings.EqualFold(code[:2], "tt") {
		code = code[2:]
	}
	if code == "" {
		return "", false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return "tt" + code, true
}

// ParseOrdinal coerces a season or episode key to a signed integer.
func ParseOrdinal(raw string) (int, bool) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return value, true
}
