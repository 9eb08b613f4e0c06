package omdb

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/Digital-Shane/omdb"
	"github.com/Digital-Shane/show-score/internal/provider"
)

// Search returns the best series match for a title query. OMDb resolves a
// title to a single series so the list has at most one entry.
func (p *Provider) Search(ctx context.Context, query string) ([]provider.SearchResult, error) {
	if p.client == nil {
		return nil, &provider.ProviderError{Provider: providerName, Code: provider.CodeInvalidRequest, Message: "provider not configured"}
	}
	meta, err := p.fetchShow(ctx, provider.FetchRequest{MediaType: provider.MediaTypeShow, Name: query})
	if err != nil {
		return nil, err
	}

	imdbID := meta.IDs["imdb_id"]
	return []provider.SearchResult{{
		Provider: providerName,
		ID:       imdbID,
		IMDbID:   imdbID,
		Title:    meta.Core.Title,
		Year:     meta.Core.Year,
		Kind:     "tv series",
	}}, nil
}

func (p *Provider) fetchShow(ctx context.Context, request provider.FetchRequest) (*provider.Metadata, error) {
	if request.ID == "" && strings.TrimSpace(request.Name) == "" {
		return nil, &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeInvalidRequest,
			Message:  "show fetch requires a title or an IMDb ID",
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result any
	var err error

	if request.ID != "" {
		result, err = p.client.SearchByImdbID(omdb.QueryData{ImdbID: strings.TrimSpace(request.ID)})
	} else {
		query := omdb.QueryData{
			Title:      strings.TrimSpace(request.Name),
			Year:       request.Year,
			SearchType: "series",
		}
		result, err = p.client.SearchByTitle(query)
	}

	if err != nil {
		return nil, p.mapError(err)
	}

	switch series := result.(type) {
	case omdb.SeriesResult:
		return p.seriesResultToMetadata(series), nil
	case *omdb.SeriesResult:
		return p.seriesResultToMetadata(*series), nil
	default:
		return nil, &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeNotFound,
			Message:  "series not found",
		}
	}
}

// fetchSeason lists a season. Every entry of the OMDb season listing carries
// its own episode number and IMDb id, so the leaves come from a single request
// and numbering gaps survive as missing keys.
func (p *Provider) fetchSeason(ctx context.Context, request provider.FetchRequest) (*provider.Metadata, error) {
	if request.ID == "" {
		return nil, &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeInvalidRequest,
			Message:  "season fetch requires an IMDb ID",
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := omdb.QueryData{
		ImdbID: strings.TrimSpace(request.ID),
		Season: strconv.Itoa(request.Season),
	}
	result, err := p.client.SearchByImdbID(query)
	if err != nil {
		return nil, p.mapError(err)
	}

	var season *omdb.SeasonResult
	switch res := result.(type) {
	case omdb.SeasonResult:
		season = &res
	case *omdb.SeasonResult:
		season = res
	default:
		return nil, &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeNotFound,
			Message:  "season not found",
		}
	}

	meta := &provider.Metadata{
		Core: provider.CoreMetadata{
			Title:     season.Title,
			SeasonNum: request.Season,
			MediaType: provider.MediaTypeSeason,
		},
		Extended:   map[string]interface{}{"episode_count": len(season.Episodes)},
		Sources:    map[string]string{"episodes": providerName},
		IDs:        map[string]string{"imdb_id": request.ID},
		Episodes:   make([]provider.EpisodeLeaf, 0, len(season.Episodes)),
		Confidence: 0.8,
	}

	for _, ep := range season.Episodes {
		meta.Episodes = append(meta.Episodes, seasonEpisodeLeaf(ep))
	}

	return meta, nil
}

// seasonEpisodeLeaf maps one listing entry. Listing dates are ISO formatted so
// the leading digits are the air year.
func seasonEpisodeLeaf(ep omdb.SeasonEpisode) provider.EpisodeLeaf {
	return provider.EpisodeLeaf{
		Key:   strings.TrimSpace(ep.Episode),
		ID:    strings.TrimSpace(ep.ImdbID),
		Title: ep.Title,
		Year:  omdb.FirstYear(ep.Released),
	}
}

func (p *Provider) fetchEpisode(ctx context.Context, request provider.FetchRequest) (*provider.Metadata, error) {
	if request.Season < 0 || request.Episode < 0 {
		return nil, &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeInvalidRequest,
			Message:  "episode fetch requires valid season and episode numbers",
		}
	}

	if request.ID == "" {
		return nil, &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeInvalidRequest,
			Message:  "episode fetch requires an IMDb ID",
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := omdb.QueryData{
		ImdbID:  strings.TrimSpace(request.ID),
		Season:  strconv.Itoa(request.Season),
		Episode: strconv.Itoa(request.Episode),
	}

	result, err := p.client.SearchByImdbID(query)
	if err != nil {
		return nil, p.mapError(err)
	}

	switch episode := result.(type) {
	case omdb.EpisodeResult:
		return p.episodeResultToMetadata(&episode, request), nil
	case *omdb.EpisodeResult:
		return p.episodeResultToMetadata(episode, request), nil
	default:
		return nil, &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeNotFound,
			Message:  "episode not found",
		}
	}
}

func (p *Provider) seriesResultToMetadata(result omdb.SeriesResult) *provider.Metadata {
	genres := omdb.SplitAndTrim(result.Genre)
	seasonCount := parseCount(result.TotalSeasons)

	meta := &provider.Metadata{
		Core: provider.CoreMetadata{
			Title:       result.Title,
			Year:        omdb.FirstYear(result.Year),
			MediaType:   provider.MediaTypeShow,
			SeasonCount: seasonCount,
			Overview:    result.Plot,
			Rating:      omdb.ParseRating(result.ImdbRating),
			Genres:      genres,
			Language:    result.Language,
			Country:     result.Country,
		},
		Extended:   make(map[string]interface{}),
		Sources:    make(map[string]string),
		IDs:        make(map[string]string),
		Confidence: 0.85,
	}

	if result.ImdbID != "" {
		meta.IDs["imdb_id"] = result.ImdbID
		meta.Sources["imdb_id"] = providerName
	}

	keys := make([]string, 0, seasonCount)
	for season := 1; season <= seasonCount; season++ {
		keys = append(keys, strconv.Itoa(season))
	}
	meta.Extended["season_keys"] = keys
	meta.Sources["season_keys"] = providerName

	meta.Sources["title"] = providerName
	meta.Sources["year"] = providerName
	if len(genres) > 0 {
		meta.Sources["genres"] = providerName
	}

	return meta
}

func (p *Provider) episodeResultToMetadata(resp *omdb.EpisodeResult, request provider.FetchRequest) *provider.Metadata {
	meta := &provider.Metadata{
		Core: provider.CoreMetadata{
			Year:        episodeYear(resp),
			SeasonNum:   request.Season,
			EpisodeNum:  request.Episode,
			EpisodeName: resp.Title,
			MediaType:   provider.MediaTypeEpisode,
			Overview:    resp.Plot,
			Rating:      omdb.ParseRating(resp.ImdbRating),
		},
		Extended:   make(map[string]interface{}),
		Sources:    make(map[string]string),
		IDs:        make(map[string]string),
		Confidence: 0.85,
	}

	if resp.ImdbID != "" {
		meta.IDs["imdb_id"] = resp.ImdbID
		meta.Sources["imdb_id"] = providerName
	}
	if resp.SeriesID != "" {
		meta.IDs["series_id"] = resp.SeriesID
	}

	meta.Sources["episode_title"] = providerName
	return meta
}

// episodeYear prefers the Year field. Released reads like "17 Apr 2011" and
// is only consulted when Year is missing.
func episodeYear(resp *omdb.EpisodeResult) string {
	if year := omdb.FirstYear(resp.Year); len(year) == 4 {
		return year
	}
	released, err := time.Parse("02 Jan 2006", strings.TrimSpace(resp.Released))
	if err != nil {
		return ""
	}
	return strconv.Itoa(released.Year())
}

// parseCount reads counts such as "8"; "N/A" and garbage yield zero.
func parseCount(value string) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
