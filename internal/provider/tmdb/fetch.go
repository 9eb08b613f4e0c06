package tmdb

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Digital-Shane/show-score/internal/provider"
	"github.com/patrickmn/go-cache"
	"github.com/ryanbradynd05/go-tmdb"
)

// Search lists TMDB series matching query, in TMDB's relevance order.
func (p *Provider) Search(ctx context.Context, query string) ([]provider.SearchResult, error) {
	if p.client == nil {
		return nil, fmt.Errorf("provider not configured")
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeInvalidRequest,
			Message:  "search requires a query",
		}
	}

	cacheKey := "search:" + strings.ToLower(query) + ":" + p.language
	if p.cache != nil {
		if cached, found := p.cache.Get(cacheKey); found {
			if results, ok := cached.([]provider.SearchResult); ok {
				return results, nil
			}
		}
	}

	if err := p.rateLimiter.wait(ctx); err != nil {
		return nil, err
	}

	found, err := p.client.SearchTv(query, map[string]string{"language": p.language})
	if err != nil {
		return nil, p.mapError(err)
	}
	if found == nil || len(found.Results) == 0 {
		return nil, &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeNotFound,
			Message:  fmt.Sprintf("no results found for show: %s", query),
		}
	}

	results := make([]provider.SearchResult, 0, len(found.Results))
	for _, show := range found.Results {
		res := provider.SearchResult{
			Provider: providerName,
			ID:       strconv.Itoa(show.ID),
			Title:    show.Name,
			Year:     yearOf(show.FirstAirDate),
			Kind:     "tv series",
		}
		if show.PosterPath != "" {
			res.CoverURL = posterBase + show.PosterPath
		}
		results = append(results, res)
	}

	if p.cache != nil {
		p.cache.Set(cacheKey, results, cache.DefaultExpiration)
	}
	return results, nil
}

// Fetch retrieves show metadata by TMDB id. Seasons and episodes come from
// the episode source, so only shows are served here.
func (p *Provider) Fetch(ctx context.Context, request provider.FetchRequest) (*provider.Metadata, error) {
	if p.client == nil {
		return nil, fmt.Errorf("provider not configured")
	}
	if request.MediaType != provider.MediaTypeShow {
		return nil, fmt.Errorf("unsupported media type: %s", request.MediaType)
	}

	showID, err := strconv.Atoi(strings.TrimSpace(request.ID))
	if err != nil || showID <= 0 {
		return nil, &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeInvalidRequest,
			Message:  fmt.Sprintf("invalid TMDB show id %q", request.ID),
		}
	}

	language := p.getLanguage(request)
	cacheKey := fmt.Sprintf("show:%d:%s", showID, language)
	if p.cache != nil {
		if cached, found := p.cache.Get(cacheKey); found {
			if meta, ok := cached.(*provider.Metadata); ok {
				return meta, nil
			}
		}
	}

	if err := p.rateLimiter.wait(ctx); err != nil {
		return nil, err
	}

	show, err := p.client.GetTvInfo(showID, map[string]string{
		"language":           language,
		"append_to_response": "external_ids",
	})
	if err != nil {
		return nil, p.mapError(err)
	}
	if show == nil {
		return nil, &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeNotFound,
			Message:  fmt.Sprintf("show %d not found", showID),
		}
	}

	meta := p.tvToMetadata(show)
	if p.cache != nil {
		p.cache.Set(cacheKey, meta, cache.DefaultExpiration)
	}
	return meta, nil
}

func (p *Provider) tvToMetadata(show *tmdb.TV) *provider.Metadata {
	genres := make([]string, 0, len(show.Genres))
	for _, g := range show.Genres {
		genres = append(genres, g.Name)
	}

	keys := make([]string, 0, show.NumberOfSeasons)
	for season := 1; season <= show.NumberOfSeasons; season++ {
		keys = append(keys, strconv.Itoa(season))
	}

	extended := map[string]interface{}{
		"popularity":    show.Popularity,
		"vote_count":    show.VoteCount,
		"episode_count": show.NumberOfEpisodes,
		"in_production": show.InProduction,
		"season_keys":   keys,
	}
	if len(show.Networks) > 0 {
		networks := make([]string, 0, len(show.Networks))
		for _, n := range show.Networks {
			networks = append(networks, n.Name)
		}
		extended["networks"] = strings.Join(networks, ", ")
	}

	ids := map[string]string{
		"tmdb_id": strconv.Itoa(show.ID),
	}
	if show.ExternalIDs != nil && show.ExternalIDs.ImdbID != "" {
		ids["imdb_id"] = show.ExternalIDs.ImdbID
	}

	return &provider.Metadata{
		Core: provider.CoreMetadata{
			Title:       show.Name,
			Year:        yearOf(show.FirstAirDate),
			MediaType:   provider.MediaTypeShow,
			SeasonCount: show.NumberOfSeasons,
			Overview:    show.Overview,
			Rating:      show.VoteAverage,
			Genres:      genres,
		},
		Extended: extended,
		IDs:      ids,
		Sources: map[string]string{
			"title":    providerName,
			"year":     providerName,
			"overview": providerName,
			"genres":   providerName,
		},
		Confidence: 1.0,
	}
}

func (p *Provider) getLanguage(request provider.FetchRequest) string {
	if request.Language != "" {
		return request.Language
	}
	return p.language
}

// yearOf returns the year of a YYYY-MM-DD date.
func yearOf(date string) string {
	if len(date) >= 4 {
		return date[:4]
	}
	return ""
}
