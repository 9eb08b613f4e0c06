package core

import (
	"context"
	"errors"
	"testing"

	"github.com/Digital-Shane/show-score/internal/log"
	"github.com/Digital-Shane/show-score/internal/provider"
)

type fakeSnapshot struct {
	mapLookup
	version uint64
}

func (f fakeSnapshot) Version() uint64 { return f.version }
func (f fakeSnapshot) Len() int        { return len(f.mapLookup) }

type fakeRatings struct{ snap fakeSnapshot }

func (f *fakeRatings) CurrentLookup() VersionedLookup { return f.snap }

func ratedShow() (*fakeSource, *fakeRatings) {
	src := &fakeSource{
		title: "Show",
		keys:  []string{"1", "2"},
		seasons: map[int][]provider.EpisodeLeaf{
			1: {
				{Key: "1", Title: "A", Year: "2001", ID: "101"},
				{Key: "2", Title: "B", Year: "2001", ID: "102"},
				{Key: "3", Title: "C", Year: "2001", ID: "103"},
				{Key: "4", Title: "D", Year: "2001", ID: "104"},
				{Key: "5", Title: "", Year: "2001", ID: "105"},
			},
			2: {
				{Key: "1", Title: "E", Year: "", ID: "201"},
				{Key: "2", Title: "F", Year: "2002", ID: "202"},
			},
		},
	}
	ratings := &fakeRatings{snap: fakeSnapshot{
		version: 7,
		mapLookup: mapLookup{
			"tt101": {Average: 8, Votes: 10},
			"tt102": {Average: 8, Votes: 10},
			"tt103": {Average: 8, Votes: 10},
			"tt104": {Average: 2, Votes: 10},
		},
	}}
	return src, ratings
}

func TestPipelineRun(t *testing.T) {
	src, ratings := ratedShow()
	journal := log.NewJournal(t.TempDir(), true)
	p := &Pipeline{Source: src, Ratings: ratings, Logger: log.Discard(), Journal: journal}

	var events int
	res, err := p.Run(context.Background(), Request{
		ID:       "tt0000042",
		Stddev:   ptr(1),
		Progress: func(LoadEvent) { events++ },
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.Title != "Show" || res.IMDbID != "tt0000042" {
		t.Errorf("identity = %q %q", res.Title, res.IMDbID)
	}
	if res.Assembled != 5 || res.Skipped != 2 || res.Unmatched != 1 || len(res.Episodes) != 4 {
		t.Errorf("counts assembled=%d skipped=%d unmatched=%d rated=%d",
			res.Assembled, res.Skipped, res.Unmatched, len(res.Episodes))
	}
	if res.SkipReasons[SkipMissingTitle] != 1 || res.SkipReasons[SkipMissingYear] != 1 {
		t.Errorf("SkipReasons = %v", res.SkipReasons)
	}
	if res.Outliers != 1 || len(res.OutlierEpisodes()) != 1 || res.OutlierEpisodes()[0].Title != "D" {
		t.Errorf("outliers = %d %v", res.Outliers, res.OutlierEpisodes())
	}
	if res.SnapshotVersion != 7 {
		t.Errorf("SnapshotVersion = %d, want 7", res.SnapshotVersion)
	}
	// season 2 has no rated episodes
	if len(res.Seasons) != 1 || res.Seasons[0].Season != 1 {
		t.Errorf("Seasons = %v, want stats for season 1 only", res.Seasons)
	}
	if events == 0 {
		t.Error("Progress never called")
	}

	sessions, err := journal.ReadSessions(0)
	if err != nil {
		t.Fatalf("ReadSessions() error = %v", err)
	}
	if len(sessions) != 1 || sessions[0].Metadata.SessionID != res.SessionID {
		t.Fatalf("sessions = %v, want one matching %s", sessions, res.SessionID)
	}
	var skips, joins int
	for _, op := range sessions[0].Operations {
		switch op.Type {
		case log.OpSkip:
			skips++
		case log.OpJoin:
			joins++
		}
	}
	if skips != 2 || joins != 1 {
		t.Errorf("journal skips=%d joins=%d, want 2 and 1", skips, joins)
	}
}

func TestPipelineWithoutStddev(t *testing.T) {
	src, ratings := ratedShow()
	p := &Pipeline{Source: src, Ratings: ratings}

	res, err := p.Run(context.Background(), Request{ID: "42"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.IMDbID != "tt42" {
		t.Errorf("IMDbID = %q, want tt42", res.IMDbID)
	}
	for _, ep := range res.Episodes {
		if ep.Outlier != nil {
			t.Fatalf("episode %d has an outlier flag without stddev", ep.Index)
		}
	}
	if res.Seasons != nil || res.Outliers != 0 || res.SessionID != "" {
		t.Errorf("result = %+v", res)
	}
}

func TestPipelineRejectsInput(t *testing.T) {
	src, ratings := ratedShow()
	p := &Pipeline{Source: src, Ratings: ratings}

	if _, err := p.Run(context.Background(), Request{ID: "nm0000001"}); !errors.Is(err, ErrInvalidID) {
		t.Errorf("bad id error = %v, want ErrInvalidID", err)
	}
	if _, err := p.Run(context.Background(), Request{ID: "tt1", Stddev: ptr(-1)}); !errors.Is(err, ErrInvalidStddev) {
		t.Errorf("negative stddev error = %v, want ErrInvalidStddev", err)
	}
	if len(src.calls) != 0 {
		t.Errorf("source called %d times for rejected input", len(src.calls))
	}
}

func TestPipelineNoEpisodes(t *testing.T) {
	src, ratings := ratedShow()
	src.keys = nil
	p := &Pipeline{Source: src, Ratings: ratings}

	if _, err := p.Run(context.Background(), Request{ID: "tt1"}); !errors.Is(err, ErrNoEpisodes) {
		t.Errorf("Run() error = %v, want ErrNoEpisodes", err)
	}
}

func TestPipelineScoreWithoutRatings(t *testing.T) {
	p := &Pipeline{}
	res, err := p.Score(&ShowMetadata{
		Title:   "Show",
		IMDbID:  "tt1",
		Seasons: []SeasonNode{{Key: "1", Episodes: []EpisodeNode{leaf("1", "A", "2001", "11")}}},
	}, nil)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if len(res.Episodes) != 0 || res.Unmatched != 1 {
		t.Errorf("result = %+v, want every episode unmatched", res)
	}
}
