package core

import "sort"

// Assembly is the flattened, ordered output of Assemble along with every
// leaf that was dropped.
type Assembly struct {
	Records []EpisodeRecord
	Skipped []Outcome
}

// SkipCounts tallies skipped leaves by reason.
func (a Assembly) SkipCounts() map[SkipReason]int {
	counts := make(map[SkipReason]int, len(a.Skipped))
	for _, s := range a.Skipped {
		counts[s.Reason]++
	}
	return counts
}

// Assemble flattens the nested show structure into episode records sorted by
// (season, episode). Malformed leaves are skipped, never reported as errors.
func Assemble(show ShowMetadata) Assembly {
	result := Assembly{Records: make([]EpisodeRecord, 0)}

	for _, season := range show.Seasons {
		for _, node := range season.Episodes {
			outcome := Resolve(show.Title, season.Key, node)
			if outcome.Skipped {
				result.Skipped = append(result.Skipped, outcome)
				continue
			}
			result.Records = append(result.Records, outcome.Record)
		}
	}

	sort.SliceStable(result.Records, func(i, j int) bool {
		a, b := result.Records[i], result.Records[j]
		if a.Season != b.Season {
			return a.Season < b.Season
		}
		return a.Episode < b.Episode
	})

	return result
}
