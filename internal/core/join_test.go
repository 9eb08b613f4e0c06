package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type mapLookup map[string]Rating

func (m mapLookup) Lookup(id string) (Rating, bool) {
	r, ok := m[id]
	return r, ok
}

func ptr(v float64) *float64 { return &v }

func scenarioShow() ShowMetadata {
	return ShowMetadata{
		Title: "Show",
		Seasons: []SeasonNode{{
			Key: "1",
			Episodes: []EpisodeNode{
				leaf("1", "Pilot", "2001", "0000001"),
				leaf("2", "Ep2", "2001", "0000002"),
			},
		}},
	}
}

func TestJoinScenario(t *testing.T) {
	ratings := mapLookup{
		"tt0000001": {Average: 7.5, Votes: 100},
		"tt0000002": {Average: 9.0, Votes: 200},
	}

	got := JoinAndAnnotate(Assemble(scenarioShow()).Records, ratings, nil)

	want := []RatedEpisode{
		{
			EpisodeRecord: EpisodeRecord{SeriesTitle: "Show", Season: 1, Episode: 1, Title: "Pilot", AirYear: 2001, ExternalID: "tt0000001"},
			Index:         1, Rating: 7.5, Votes: 100,
		},
		{
			EpisodeRecord: EpisodeRecord{SeriesTitle: "Show", Season: 1, Episode: 2, Title: "Ep2", AirYear: 2001, ExternalID: "tt0000002"},
			Index:         2, Rating: 9.0, Votes: 200,
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("JoinAndAnnotate() mismatch (-want +got):\n%s", diff)
	}
}

func TestJoinDropsMisses(t *testing.T) {
	ratings := mapLookup{"tt0000001": {Average: 7.5, Votes: 100}}

	got := JoinAndAnnotate(Assemble(scenarioShow()).Records, ratings, nil)

	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Index != 1 || got[0].Rating != 7.5 {
		t.Errorf("got %+v", got[0])
	}
}

func TestJoinIndexContiguousAfterDrops(t *testing.T) {
	var episodes []EpisodeRecord
	ratings := mapLookup{}
	for i := 1; i <= 10; i++ {
		id := "tt" + string(rune('0'+i%10)) + "0"
		episodes = append(episodes, EpisodeRecord{Season: 1, Episode: i, ExternalID: id})
		if i%3 != 0 {
			ratings[id] = Rating{Average: float64(i), Votes: i}
		}
	}

	got := JoinAndAnnotate(episodes, ratings, nil)
	for i, r := range got {
		if r.Index != i+1 {
			t.Fatalf("row %d has Index %d", i, r.Index)
		}
		if _, ok := ratings[r.ExternalID]; !ok {
			t.Fatalf("unmatched episode %s emitted", r.ExternalID)
		}
	}
	if len(got) != 7 {
		t.Errorf("len = %d, want 7", len(got))
	}
}

func TestJoinOutlierPolarity(t *testing.T) {
	var episodes []EpisodeRecord
	ratings := mapLookup{}
	for i, v := range []float64{8, 8, 8, 2} {
		id := "tt" + string(rune('1'+i))
		episodes = append(episodes, EpisodeRecord{Season: 1, Episode: i + 1, ExternalID: id})
		ratings[id] = Rating{Average: v, Votes: 10}
	}

	got := JoinAndAnnotate(episodes, ratings, ptr(1))

	var flags []bool
	for _, r := range got {
		if r.Outlier == nil {
			t.Fatalf("episode %d has no outlier flag", r.Index)
		}
		flags = append(flags, *r.Outlier)
	}
	if diff := cmp.Diff([]bool{false, false, false, true}, flags); diff != "" {
		t.Errorf("flags mismatch (-want +got):\n%s", diff)
	}
}

func TestJoinDegenerateSeasons(t *testing.T) {
	episodes := []EpisodeRecord{
		{Season: 1, Episode: 1, ExternalID: "tt1"},
		{Season: 2, Episode: 1, ExternalID: "tt2"},
		{Season: 2, Episode: 2, ExternalID: "tt3"},
		{Season: 3, Episode: 1, ExternalID: "tt4"},
		{Season: 3, Episode: 2, ExternalID: "tt5"},
	}
	ratings := mapLookup{
		"tt1": {Average: 1.0},  // alone in its season
		"tt2": {Average: 7.0},  // zero variance
		"tt3": {Average: 7.0},
		"tt4": {Average: 2.0},
		"tt5": {Average: 9.0},
	}

	got := JoinAndAnnotate(episodes, ratings, ptr(0))

	// k = 0 shrinks the band to the mean, so only season 3 can flag
	want := []bool{false, false, false, true, true}
	for i, r := range got {
		if r.IsOutlier() != want[i] {
			t.Errorf("episode %d IsOutlier() = %v, want %v", r.Index, r.IsOutlier(), want[i])
		}
	}

	stats := SeasonStats(got, 0)
	if len(stats) != 3 {
		t.Fatalf("SeasonStats() len = %d, want 3", len(stats))
	}
	if stats[0].Defined || stats[1].Defined || !stats[2].Defined {
		t.Errorf("Defined = %v %v %v", stats[0].Defined, stats[1].Defined, stats[2].Defined)
	}
	if !math.IsNaN(stats[0].StdDev) {
		t.Errorf("single member stddev = %v, want NaN", stats[0].StdDev)
	}
}

func TestJoinFlatSeasonFlagsNothing(t *testing.T) {
	for _, rating := range []float64{0.3, 2.3, 6.9, 7.3, 8.1} {
		t.Run(strconv.FormatFloat(rating, 'f', 1, 64), func(t *testing.T) {
			var episodes []EpisodeRecord
			ratings := mapLookup{}
			for i := 1; i <= 11; i++ {
				id := fmt.Sprintf("tt%07d", i)
				episodes = append(episodes, EpisodeRecord{Season: 1, Episode: i, ExternalID: id})
				ratings[id] = Rating{Average: rating, Votes: 100}
			}

			got := JoinAndAnnotate(episodes, ratings, ptr(0.5))
			for _, r := range got {
				if r.IsOutlier() {
					t.Errorf("episode %d flagged in a flat season", r.Episode)
				}
			}

			stats := SeasonStats(got, 0.5)
			want := []SeasonStat{{Season: 1, Count: 11, Mean: rating, StdDev: 0, Lower: rating, Upper: rating}}
			if diff := cmp.Diff(want, stats); diff != "" {
				t.Errorf("SeasonStats() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSeasonStatsBand(t *testing.T) {
	rated := []RatedEpisode{
		{EpisodeRecord: EpisodeRecord{Season: 2}, Rating: 6},
		{EpisodeRecord: EpisodeRecord{Season: 1}, Rating: 8},
		{EpisodeRecord: EpisodeRecord{Season: 2}, Rating: 8},
		{EpisodeRecord: EpisodeRecord{Season: 1}, Rating: 8},
	}

	got := SeasonStats(rated, 2)
	if got[0].Season != 1 || got[1].Season != 2 {
		t.Fatalf("seasons out of order: %+v", got)
	}
	s := got[1]
	// mean 7, sample sd sqrt(2)
	if s.Mean != 7 || math.Abs(s.StdDev-math.Sqrt2) > 1e-12 {
		t.Errorf("season 2 mean %v sd %v", s.Mean, s.StdDev)
	}
	if math.Abs(s.Lower-(7-2*math.Sqrt2)) > 1e-12 || math.Abs(s.Upper-(7+2*math.Sqrt2)) > 1e-12 {
		t.Errorf("band = [%v, %v]", s.Lower, s.Upper)
	}
	if s.Outside(s.Upper) || s.Outside(s.Lower) {
		t.Error("band must be inclusive")
	}
}

func TestJoinEmptyInputs(t *testing.T) {
	if got := JoinAndAnnotate(nil, mapLookup{"tt1": {}}, ptr(2)); len(got) != 0 {
		t.Errorf("empty episodes = %v", got)
	}
	eps := []EpisodeRecord{{Season: 1, Episode: 1, ExternalID: "tt1"}}
	if got := JoinAndAnnotate(eps, mapLookup{}, nil); len(got) != 0 {
		t.Errorf("empty lookup = %v", got)
	}
	if got := JoinAndAnnotate(eps, nil, nil); got == nil || len(got) != 0 {
		t.Errorf("nil lookup = %#v, want empty slice", got)
	}
}

func TestJoinIdempotent(t *testing.T) {
	ratings := mapLookup{
		"tt0000001": {Average: 7.5, Votes: 100},
		"tt0000002": {Average: 9.0, Votes: 200},
	}
	show := scenarioShow()

	first := JoinAndAnnotate(Assemble(show).Records, ratings, ptr(1.5))
	second := JoinAndAnnotate(Assemble(show).Records, ratings, ptr(1.5))
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second run differs (-first +second):\n%s", diff)
	}
}

func TestJoinRetainsZeroVotes(t *testing.T) {
	eps := []EpisodeRecord{{Season: 1, Episode: 1, ExternalID: "tt1"}}
	got := JoinAndAnnotate(eps, mapLookup{"tt1": {Average: 5, Votes: 0}}, nil)
	if len(got) != 1 || got[0].Votes != 0 {
		t.Errorf("zero-vote episode dropped: %v", got)
	}
}

func TestParseStddev(t *testing.T) {
	tests := []struct {
		in      string
		want    *float64
		wantErr bool
	}{
		{in: "", want: nil},
		{in: "None", want: nil},
		{in: "2", want: ptr(2)},
		{in: " 1.5 ", want: ptr(1.5)},
		{in: "0", want: ptr(0)},
		{in: "-1", wantErr: true},
		{in: "NaN", wantErr: true},
		{in: "inf", wantErr: true},
		{in: "two", wantErr: true},
	}
	for _, tc := range tests {
		got, err := ParseStddev(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidStddev) {
				t.Errorf("ParseStddev(%q) error = %v, want ErrInvalidStddev", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseStddev(%q) error = %v", tc.in, err)
			continue
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("ParseStddev(%q) mismatch (-want +got):\n%s", tc.in, diff)
		}
	}

	if FormatStddev(nil) != "none" || FormatStddev(ptr(1.5)) != "1.5" {
		t.Error("FormatStddev round trip failed")
	}
}

func TestSeasonStatJSON(t *testing.T) {
	stats := SeasonStats([]RatedEpisode{{EpisodeRecord: EpisodeRecord{Season: 1}, Rating: 7}}, 2)

	data, err := json.Marshal(stats)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `[{"season":1,"count":1,"mean":7,"stddev":null,"lower":null,"upper":null,"defined":false}]`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}
}
