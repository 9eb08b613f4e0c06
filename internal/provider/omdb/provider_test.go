package omdb

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/Digital-Shane/omdb"
	"github.com/Digital-Shane/show-score/internal/provider"
	"github.com/google/go-cmp/cmp"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(fn roundTripFunc) *http.Client {
	return &http.Client{Transport: fn}
}

func jsonResponse(status int, body string) *http.Response {
	resp := &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
	resp.Header.Set("Content-Type", "application/json")
	return resp
}

const seriesBody = `{
    "Title": "Game of Thrones",
    "Year": "2011–2019",
    "Genre": "Action, Adventure, Drama",
    "Plot": "Nine noble families fight for control over the lands of Westeros.",
    "Language": "English",
    "Country": "United States",
    "imdbRating": "9.2",
    "imdbID": "tt0944947",
    "totalSeasons": "2",
    "Type": "series",
    "Response": "True"
}`

const seasonBody = `{
    "Title": "Game of Thrones",
    "Season": "1",
    "totalSeasons": "2",
    "Episodes": [
        {"Title": "Winter Is Coming", "Released": "2011-04-17", "Episode": "1", "imdbRating": "8.9", "imdbID": "tt1480055"},
        {"Title": "The Kingsroad", "Released": "2011-04-24", "Episode": "2", "imdbRating": "8.6", "imdbID": "tt1668746"}
    ],
    "Response": "True"
}`

const episodeOneBody = `{
    "Title": "Winter Is Coming",
    "Year": "2011",
    "Released": "17 Apr 2011",
    "Season": "1",
    "Episode": "1",
    "Plot": "Episode plot",
    "imdbRating": "8.9",
    "imdbID": "tt1480055",
    "seriesID": "tt0944947",
    "Type": "episode",
    "Response": "True"
}`

const notFoundBody = `{"Response": "False", "Error": "Episode not found!"}`

func gameOfThronesTransport(t *testing.T) roundTripFunc {
	return func(req *http.Request) (*http.Response, error) {
		q := req.URL.Query()
		if q.Get("apikey") != "testing" {
			t.Errorf("apikey = %q, want testing", q.Get("apikey"))
		}
		switch {
		case q.Get("Episode") == "1":
			return jsonResponse(200, episodeOneBody), nil
		case q.Get("Episode") != "":
			return jsonResponse(200, notFoundBody), nil
		case q.Get("Season") != "":
			return jsonResponse(200, seasonBody), nil
		default:
			return jsonResponse(200, seriesBody), nil
		}
	}
}

func configured(t *testing.T, fn roundTripFunc) *Provider {
	t.Helper()
	prov := NewWithHTTPClient(newTestClient(fn))
	if err := prov.Configure(map[string]interface{}{"api_key": "testing"}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	return prov
}

func TestConfigureRequiresAPIKey(t *testing.T) {
	prov := New()
	if err := prov.Configure(map[string]interface{}{}); err == nil {
		t.Fatal("expected error when api_key is missing")
	}
	if err := prov.Configure(map[string]interface{}{"api_key": "   "}); err == nil {
		t.Fatal("expected error when api_key is blank")
	}
}

func TestFetchRequiresConfiguration(t *testing.T) {
	prov := New()
	if _, err := prov.Fetch(context.Background(), provider.FetchRequest{MediaType: provider.MediaTypeShow, ID: "tt1"}); err == nil {
		t.Fatal("Fetch() expected error on unconfigured provider")
	}
}

func TestFetchShowListsSeasons(t *testing.T) {
	prov := configured(t, gameOfThronesTransport(t))

	meta, err := prov.Fetch(context.Background(), provider.FetchRequest{
		MediaType: provider.MediaTypeShow,
		ID:        "tt0944947",
	})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if meta.Core.Title != "Game of Thrones" {
		t.Errorf("Title = %q, want Game of Thrones", meta.Core.Title)
	}
	if meta.Core.SeasonCount != 2 {
		t.Errorf("SeasonCount = %d, want 2", meta.Core.SeasonCount)
	}
	if diff := cmp.Diff([]string{"1", "2"}, meta.SeasonKeys()); diff != "" {
		t.Errorf("SeasonKeys() mismatch (-want +got):\n%s", diff)
	}
	if got := meta.IDs["imdb_id"]; got != "tt0944947" {
		t.Errorf("imdb_id = %q, want tt0944947", got)
	}
}

func TestFetchSeasonBuildsLeaves(t *testing.T) {
	requests := 0
	transport := gameOfThronesTransport(t)
	prov := configured(t, func(req *http.Request) (*http.Response, error) {
		requests++
		return transport(req)
	})

	meta, err := prov.Fetch(context.Background(), provider.FetchRequest{
		MediaType: provider.MediaTypeSeason,
		ID:        "tt0944947",
		Season:    1,
	})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	want := []provider.EpisodeLeaf{
		{Key: "1", Title: "Winter Is Coming", Year: "2011", ID: "tt1480055"},
		{Key: "2", Title: "The Kingsroad", Year: "2011", ID: "tt1668746"},
	}
	if diff := cmp.Diff(want, meta.Episodes); diff != "" {
		t.Errorf("Episodes mismatch (-want +got):\n%s", diff)
	}
	if meta.Extended["episode_count"].(int) != 2 {
		t.Errorf("episode_count = %v, want 2", meta.Extended["episode_count"])
	}
	if requests != 1 {
		t.Errorf("requests = %d, want 1", requests)
	}
}

func TestFetchSeasonKeepsListedNumbers(t *testing.T) {
	const gappedSeason = `{
    "Title": "Gapped",
    "Season": "3",
    "Episodes": [
        {"Title": "One", "Released": "2019-01-06", "Episode": "1", "imdbRating": "7.1", "imdbID": "tt9000001"},
        {"Title": "Two", "Released": "2019-01-13", "Episode": "2", "imdbRating": "7.4", "imdbID": "tt9000002"},
        {"Title": "Four", "Released": "N/A", "Episode": "4", "imdbRating": "N/A", "imdbID": "tt9000004"}
    ],
    "Response": "True"
}`
	prov := configured(t, func(req *http.Request) (*http.Response, error) {
		if req.URL.Query().Get("Episode") != "" {
			t.Errorf("unexpected episode request: %s", req.URL.RawQuery)
		}
		return jsonResponse(200, gappedSeason), nil
	})

	meta, err := prov.Fetch(context.Background(), provider.FetchRequest{
		MediaType: provider.MediaTypeSeason,
		ID:        "tt9000000",
		Season:    3,
	})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	want := []provider.EpisodeLeaf{
		{Key: "1", Title: "One", Year: "2019", ID: "tt9000001"},
		{Key: "2", Title: "Two", Year: "2019", ID: "tt9000002"},
		{Key: "4", Title: "Four", ID: "tt9000004"},
	}
	if diff := cmp.Diff(want, meta.Episodes); diff != "" {
		t.Errorf("Episodes mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchSeasonRequiresID(t *testing.T) {
	prov := configured(t, gameOfThronesTransport(t))
	_, err := prov.Fetch(context.Background(), provider.FetchRequest{MediaType: provider.MediaTypeSeason, Season: 1})
	if !provider.IsInvalidRequest(err) {
		t.Errorf("Fetch() error = %v, want INVALID_REQUEST", err)
	}
}

func TestFetchEpisode(t *testing.T) {
	prov := configured(t, gameOfThronesTransport(t))

	meta, err := prov.Fetch(context.Background(), provider.FetchRequest{
		MediaType: provider.MediaTypeEpisode,
		Season:    1,
		Episode:   1,
		ID:        "tt0944947",
	})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if meta.Core.EpisodeName != "Winter Is Coming" {
		t.Errorf("EpisodeName = %q, want Winter Is Coming", meta.Core.EpisodeName)
	}
	if meta.Core.SeasonNum != 1 || meta.Core.EpisodeNum != 1 {
		t.Errorf("unexpected season/episode numbers: %+v", meta.Core)
	}
	if got := meta.IDs["imdb_id"]; got != "tt1480055" {
		t.Errorf("imdb_id = %q, want tt1480055", got)
	}
	if got := meta.IDs["series_id"]; got != "tt0944947" {
		t.Errorf("series_id = %q, want tt0944947", got)
	}
	if meta.Core.Year != "2011" {
		t.Errorf("Year = %q, want 2011", meta.Core.Year)
	}
}

func TestEpisodeYear(t *testing.T) {
	tests := []struct {
		name string
		resp omdb.EpisodeResult
		want string
	}{
		{name: "year field", resp: omdb.EpisodeResult{Year: "2011", Released: "17 Apr 2011"}, want: "2011"},
		{name: "released fallback", resp: omdb.EpisodeResult{Year: "N/A", Released: "05 Jun 2016"}, want: "2016"},
		{name: "nothing usable", resp: omdb.EpisodeResult{Year: "N/A", Released: "N/A"}, want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := episodeYear(&tc.resp); got != tc.want {
				t.Errorf("episodeYear() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSearchReturnsSingleSeries(t *testing.T) {
	var gotTitle string
	prov := configured(t, func(req *http.Request) (*http.Response, error) {
		gotTitle = req.URL.Query().Get("t")
		return jsonResponse(200, seriesBody), nil
	})

	results, err := prov.Search(context.Background(), "game of thrones")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if gotTitle != "game of thrones" {
		t.Errorf("query t = %q, want game of thrones", gotTitle)
	}

	want := []provider.SearchResult{{
		Provider: "omdb",
		ID:       "tt0944947",
		IMDbID:   "tt0944947",
		Title:    "Game of Thrones",
		Year:     "2011",
		Kind:     "tv series",
	}}
	if diff := cmp.Diff(want, results); diff != "" {
		t.Errorf("Search() mismatch (-want +got):\n%s", diff)
	}
}

func TestMapError(t *testing.T) {
	prov := New()
	tests := []struct {
		msg  string
		code string
	}{
		{msg: "Invalid API key!", code: provider.CodeAuthFailed},
		{msg: "Series not found!", code: provider.CodeNotFound},
		{msg: "Request limit reached!", code: provider.CodeRateLimited},
		{msg: "something else", code: provider.CodeUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			err := prov.mapError(errString(tc.msg))
			perr, ok := err.(*provider.ProviderError)
			if !ok {
				t.Fatalf("mapError(%q) = %T, want *ProviderError", tc.msg, err)
			}
			if perr.Code != tc.code {
				t.Errorf("mapError(%q).Code = %s, want %s", tc.msg, perr.Code, tc.code)
			}
		})
	}

	if prov.mapError(context.Canceled) != context.Canceled {
		t.Error("mapError(context.Canceled) should pass through")
	}
}

type errString string

func (e errString) Error() string { return string(e) }
