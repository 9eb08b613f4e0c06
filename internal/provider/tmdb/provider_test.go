package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Digital-Shane/show-score/internal/provider"
	"github.com/google/go-cmp/cmp"
	"github.com/ryanbradynd05/go-tmdb"
)

// mockTMDBClient implements TMDBClient for testing
type mockTMDBClient struct {
	searchTvFunc  func(name string, options map[string]string) (*tmdb.TvSearchResults, error)
	getTvInfoFunc func(id int, options map[string]string) (*tmdb.TV, error)
	searchCalls   int
	infoCalls     int
}

func (m *mockTMDBClient) SearchTv(name string, options map[string]string) (*tmdb.TvSearchResults, error) {
	m.searchCalls++
	if m.searchTvFunc != nil {
		return m.searchTvFunc(name, options)
	}
	return nil, errors.New("not implemented")
}

func (m *mockTMDBClient) GetTvInfo(id int, options map[string]string) (*tmdb.TV, error) {
	m.infoCalls++
	if m.getTvInfoFunc != nil {
		return m.getTvInfoFunc(id, options)
	}
	return nil, errors.New("not implemented")
}

func breakingBadResults() *tmdb.TvSearchResults {
	return &tmdb.TvSearchResults{
		Results: []struct {
			BackdropPath  string `json:"backdrop_path"`
			ID            int
			OriginalName  string   `json:"original_name"`
			FirstAirDate  string   `json:"first_air_date"`
			OriginCountry []string `json:"origin_country"`
			PosterPath    string   `json:"poster_path"`
			Popularity    float32
			Name          string
			VoteAverage   float32 `json:"vote_average"`
			VoteCount     uint32  `json:"vote_count"`
		}{
			{ID: 1396, Name: "Breaking Bad", FirstAirDate: "2008-01-20", PosterPath: "/bb.jpg"},
			{ID: 99999, Name: "Breaking Bad Remix", FirstAirDate: ""},
		},
	}
}

// showWithIMDb decodes through JSON so the external ids block is filled the
// same way the API response fills it.
func showWithIMDb(t *testing.T) *tmdb.TV {
	t.Helper()
	var show tmdb.TV
	raw := `{
		"id": 1396,
		"name": "Breaking Bad",
		"first_air_date": "2008-01-20",
		"overview": "A chemistry teacher turns to crime.",
		"number_of_seasons": 5,
		"external_ids": {"imdb_id": "tt0903747"}
	}`
	if err := json.Unmarshal([]byte(raw), &show); err != nil {
		t.Fatalf("decode show: %v", err)
	}
	return &show
}

func TestConfigure(t *testing.T) {
	tests := []struct {
		name     string
		config   map[string]interface{}
		wantErr  bool
		wantLang string
	}{
		{name: "missing_key", config: map[string]interface{}{}, wantErr: true},
		{name: "blank_key", config: map[string]interface{}{"api_key": "  "}, wantErr: true},
		{name: "default_language", config: map[string]interface{}{"api_key": "k"}, wantLang: "en-US"},
		{name: "custom_language", config: map[string]interface{}{"api_key": "k", "language": "de-DE"}, wantLang: "de-DE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewWithClient(&mockTMDBClient{})
			err := p.Configure(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Configure() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && p.language != tt.wantLang {
				t.Errorf("language = %q, want %q", p.language, tt.wantLang)
			}
		})
	}
}

func TestSearch(t *testing.T) {
	mock := &mockTMDBClient{
		searchTvFunc: func(name string, options map[string]string) (*tmdb.TvSearchResults, error) {
			if name != "breaking bad" {
				t.Errorf("SearchTv name = %q", name)
			}
			return breakingBadResults(), nil
		},
	}
	p := NewWithClient(mock)
	if err := p.Configure(map[string]interface{}{"api_key": "k"}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	got, err := p.Search(context.Background(), "  breaking bad ")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	want := []provider.SearchResult{
		{Provider: "tmdb", ID: "1396", Title: "Breaking Bad", Year: "2008", CoverURL: posterBase + "/bb.jpg", Kind: "tv series"},
		{Provider: "tmdb", ID: "99999", Title: "Breaking Bad Remix", Kind: "tv series"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Search() mismatch (-want +got):\n%s", diff)
	}

	if _, err := p.Search(context.Background(), "breaking bad"); err != nil {
		t.Fatalf("second Search() error = %v", err)
	}
	if mock.searchCalls != 1 {
		t.Errorf("SearchTv calls = %d, want 1 (cached)", mock.searchCalls)
	}
}

func TestSearchErrors(t *testing.T) {
	t.Run("EmptyQuery", func(t *testing.T) {
		p := NewWithClient(&mockTMDBClient{})
		if _, err := p.Search(context.Background(), " "); !provider.IsInvalidRequest(err) {
			t.Errorf("Search() error = %v, want INVALID_REQUEST", err)
		}
	})

	t.Run("NoResults", func(t *testing.T) {
		p := NewWithClient(&mockTMDBClient{
			searchTvFunc: func(string, map[string]string) (*tmdb.TvSearchResults, error) {
				return &tmdb.TvSearchResults{}, nil
			},
		})
		if _, err := p.Search(context.Background(), "nothing"); !provider.IsNotFound(err) {
			t.Errorf("Search() error = %v, want NOT_FOUND", err)
		}
	})

	t.Run("Unauthorized", func(t *testing.T) {
		p := NewWithClient(&mockTMDBClient{
			searchTvFunc: func(string, map[string]string) (*tmdb.TvSearchResults, error) {
				return nil, errors.New("401 Unauthorized")
			},
		})
		_, err := p.Search(context.Background(), "x")
		var perr *provider.ProviderError
		if !errors.As(err, &perr) || perr.Code != provider.CodeAuthFailed {
			t.Errorf("Search() error = %v, want AUTH_FAILED", err)
		}
	})

	t.Run("Unconfigured", func(t *testing.T) {
		if _, err := New().Search(context.Background(), "x"); err == nil {
			t.Error("Search() on unconfigured provider should fail")
		}
	})
}

func TestFetchShowResolvesIMDbID(t *testing.T) {
	mock := &mockTMDBClient{
		getTvInfoFunc: func(id int, options map[string]string) (*tmdb.TV, error) {
			if id != 1396 {
				t.Errorf("GetTvInfo id = %d, want 1396", id)
			}
			if options["append_to_response"] != "external_ids" {
				t.Errorf("append_to_response = %q", options["append_to_response"])
			}
			return showWithIMDb(t), nil
		},
	}
	p := NewWithClient(mock)
	if err := p.Configure(map[string]interface{}{"api_key": "k"}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	meta, err := p.Fetch(context.Background(), provider.FetchRequest{MediaType: provider.MediaTypeShow, ID: "1396"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if diff := cmp.Diff(map[string]string{"tmdb_id": "1396", "imdb_id": "tt0903747"}, meta.IDs); diff != "" {
		t.Errorf("IDs mismatch (-want +got):\n%s", diff)
	}
	if meta.Core.Year != "2008" || meta.Core.SeasonCount != 5 {
		t.Errorf("Core = %+v", meta.Core)
	}
	if diff := cmp.Diff([]string{"1", "2", "3", "4", "5"}, meta.SeasonKeys()); diff != "" {
		t.Errorf("SeasonKeys() mismatch (-want +got):\n%s", diff)
	}

	if _, err := p.Fetch(context.Background(), provider.FetchRequest{MediaType: provider.MediaTypeShow, ID: "1396"}); err != nil {
		t.Fatalf("second Fetch() error = %v", err)
	}
	if mock.infoCalls != 1 {
		t.Errorf("GetTvInfo calls = %d, want 1 (cached)", mock.infoCalls)
	}
}

func TestFetchRejects(t *testing.T) {
	p := NewWithClient(&mockTMDBClient{})

	if _, err := p.Fetch(context.Background(), provider.FetchRequest{MediaType: provider.MediaTypeSeason, ID: "1"}); err == nil {
		t.Error("Fetch(season) should be unsupported")
	}
	if _, err := p.Fetch(context.Background(), provider.FetchRequest{MediaType: provider.MediaTypeShow, ID: "tt0903747"}); !provider.IsInvalidRequest(err) {
		t.Errorf("Fetch(non numeric id) error = %v, want INVALID_REQUEST", err)
	}
}

func TestMapError(t *testing.T) {
	p := New()
	tests := []struct {
		msg  string
		code string
	}{
		{"401 unauthorized", provider.CodeAuthFailed},
		{"404 not found", provider.CodeNotFound},
		{"429 too many", provider.CodeRateLimited},
		{"503 service unavailable", provider.CodeUnavailable},
		{"boom", provider.CodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			var perr *provider.ProviderError
			if err := p.mapError(errors.New(tt.msg)); !errors.As(err, &perr) || perr.Code != tt.code {
				t.Errorf("mapError(%q) = %v, want %s", tt.msg, err, tt.code)
			}
		})
	}
	if p.mapError(nil) != nil {
		t.Error("mapError(nil) should be nil")
	}
}
