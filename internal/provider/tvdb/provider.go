package tvdb

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Digital-Shane/show-score/internal/provider"
	tvdbapi "github.com/dashotv/tvdb"
	"github.com/dashotv/tvdb/openapi/models/operations"
	"github.com/dashotv/tvdb/openapi/models/shared"
)

const providerName = "tvdb"

// TVDBClient captures the dashotv client methods used by this provider.
type TVDBClient interface {
	GetSearchResults(request operations.GetSearchResultsRequest) (*tvdbapi.GetSearchResultsResponse, error)
	GetSeriesExtended(id float64, meta *operations.GetSeriesExtendedQueryParamMeta, short *bool) (*tvdbapi.GetSeriesExtendedResponse, error)
}

// Provider implements the provider.Provider interface for TVDB. It lists
// candidate series and maps a TVDB series to its IMDb id.
type Provider struct {
	client TVDBClient
	apiKey string
	config map[string]interface{}
	login  func(apiKey string) (TVDBClient, error)
}

// New creates a new TVDB provider instance.
func New() *Provider {
	return &Provider{
		config: make(map[string]interface{}),
		login: func(apiKey string) (TVDBClient, error) {
			return tvdbapi.Login(apiKey)
		},
	}
}

// NewWithClient creates a provider that skips the login round trip.
func NewWithClient(client TVDBClient) *Provider {
	p := New()
	p.login = func(string) (TVDBClient, error) { return client, nil }
	return p
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return providerName
}

// Description returns a human readable description of the provider.
func (p *Provider) Description() string {
	return "TheTVDB (TVDB) series search"
}

// Capabilities returns what this provider can handle.
func (p *Provider) Capabilities() provider.ProviderCapabilities {
	return provider.ProviderCapabilities{
		MediaTypes:   []provider.MediaType{provider.MediaTypeShow},
		RequiresAuth: true,
		Priority:     95,
		Search:       true,
	}
}

// ConfigSchema returns the configuration schema for this provider.
func (p *Provider) ConfigSchema() provider.ConfigSchema {
	return provider.ConfigSchema{
		Fields: []provider.ConfigField{
			{
				Name:        "api_key",
				DisplayName: "API Key",
				Type:        provider.ConfigFieldTypePassword,
				Required:    true,
				Description: "TVDB API key. Generate one from your thetvdb.com account dashboard",
				Sensitive:   true,
				Validation: &provider.ConfigFieldValidation{
					MinLength: 8,
					MaxLength: 128,
					Pattern:   "^[A-Za-z0-9-]+$",
				},
			},
		},
	}
}

// Configure applies configuration to the provider.
func (p *Provider) Configure(config map[string]interface{}) error {
	apiKeyRaw, ok := config["api_key"].(string)
	if !ok {
		return fmt.Errorf("api_key is required")
	}

	apiKey := strings.TrimSpace(apiKeyRaw)
	if apiKey == "" {
		return fmt.Errorf("api_key is required")
	}

	client, err := p.login(apiKey)
	if err != nil {
		return p.mapError(err)
	}

	p.apiKey = apiKey
	p.config = config
	p.client = client

	return nil
}

// Search lists TVDB series matching query. Non-series hits are dropped.
func (p *Provider) Search(ctx context.Context, query string) ([]provider.SearchResult, error) {
	if p.client == nil {
		return nil, fmt.Errorf("provider not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &provider.ProviderError{Provider: providerName, Code: provider.CodeInvalidRequest, Message: "search requires a query"}
	}

	typeSeries := "series"
	resp, err := p.client.GetSearchResults(operations.GetSearchResultsRequest{Query: &query, Type: &typeSeries})
	if err != nil {
		return nil, p.mapError(err)
	}
	if resp == nil || len(resp.Data) == 0 {
		return nil, &provider.ProviderError{Provider: providerName, Code: provider.CodeNotFound, Message: fmt.Sprintf("no results found for show: %s", query)}
	}

	results := make([]provider.SearchResult, 0, len(resp.Data))
	for _, candidate := range resp.Data {
		if kind := pointerToString(candidate.Type); kind != "" && !strings.EqualFold(kind, "series") {
			continue
		}
		record := toSearchRecord(candidate)
		if record.ID == 0 {
			continue
		}
		results = append(results, provider.SearchResult{
			Provider: providerName,
			ID:       strconv.FormatInt(record.ID, 10),
			Title:    record.Name,
			Year:     record.Year,
			Kind:     "tv series",
		})
	}

	if len(results) == 0 {
		return nil, &provider.ProviderError{Provider: providerName, Code: provider.CodeNotFound, Message: "series not found"}
	}
	return results, nil
}

// Fetch retrieves show metadata for a TVDB series id.
func (p *Provider) Fetch(ctx context.Context, request provider.FetchRequest) (*provider.Metadata, error) {
	if p.client == nil || p.apiKey == "" {
		return nil, fmt.Errorf("provider not configured")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if request.MediaType != provider.MediaTypeShow {
		return nil, fmt.Errorf("unsupported media type: %s", request.MediaType)
	}
	return p.fetchShow(request)
}

func (p *Provider) fetchShow(request provider.FetchRequest) (*provider.Metadata, error) {
	id := parseInt64(request.ID)
	if id <= 0 {
		return nil, &provider.ProviderError{Provider: providerName, Code: provider.CodeInvalidRequest, Message: fmt.Sprintf("invalid TVDB series id %q", request.ID)}
	}

	meta := operations.GetSeriesExtendedQueryParamMetaTranslations
	resp, err := p.client.GetSeriesExtended(float64(id), &meta, nil)
	if err != nil {
		return nil, p.mapError(err)
	}
	if resp == nil || resp.Data == nil {
		return nil, &provider.ProviderError{Provider: providerName, Code: provider.CodeNotFound, Message: "series not found"}
	}

	series := resp.Data
	metadata := &provider.Metadata{
		Core: provider.CoreMetadata{
			Title:     firstNonEmptyString(pointerToString(series.Name), request.Name),
			Year:      firstNonEmptyString(pointerToString(series.Year), request.Year),
			MediaType: provider.MediaTypeShow,
			Overview:  pointerToString(series.Overview),
			Rating:    pointerToFloat32(series.Score),
		},
		Extended:   make(map[string]interface{}),
		Sources:    make(map[string]string),
		IDs:        map[string]string{"tvdb_id": strconv.FormatInt(id, 10)},
		Confidence: 0.9,
	}

	if imdbID := findRemoteID(series.RemoteIds, "imdb"); imdbID != "" {
		metadata.IDs["imdb_id"] = imdbID
		metadata.Sources["imdb_id"] = providerName
	}
	if metadata.Core.Title != "" {
		metadata.Sources["title"] = providerName
	}
	if metadata.Core.Year != "" {
		metadata.Sources["year"] = providerName
	}

	return metadata, nil
}

type searchRecord struct {
	ID   int64
	Name string
	Year string
}

func toSearchRecord(result shared.SearchResult) *searchRecord {
	id := parseInt64(pointerToString(result.TvdbID))
	if id == 0 {
		id = parseInt64(strings.TrimPrefix(pointerToString(result.ID), "series-"))
	}

	name := firstNonEmptyString(pointerToString(result.Name), pointerToString(result.NameTranslated), pointerToString(result.Title))
	year := pointerToString(result.Year)

	return &searchRecord{ID: id, Name: name, Year: year}
}

func findRemoteID(ids []shared.RemoteID, source string) string {
	needle := strings.ToLower(strings.TrimSpace(source))
	for _, remote := range ids {
		sourceName := strings.ToLower(strings.TrimSpace(pointerToString(remote.SourceName)))
		if strings.Contains(sourceName, needle) {
			return strings.TrimSpace(pointerToString(remote.ID))
		}
	}
	return ""
}

func pointerToString(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

func pointerToFloat32(value *float64) float32 {
	if value == nil {
		return 0
	}
	return float32(*value)
}

func parseInt64(value string) int64 {
	parsed, _ := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	return parsed
}

func firstNonEmptyString(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func (p *Provider) mapError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "401"), strings.Contains(lower, "unauthorized"), strings.Contains(lower, "apikey"):
		return &provider.ProviderError{Provider: providerName, Code: provider.CodeAuthFailed, Message: "TVDB authentication failed: " + msg, Retry: false}
	case strings.Contains(lower, "429"), strings.Contains(lower, "too many"):
		return &provider.ProviderError{Provider: providerName, Code: provider.CodeRateLimited, Message: msg, Retry: true, RetryAfter: 5}
	case strings.Contains(lower, "404"), strings.Contains(lower, "not found"):
		return &provider.ProviderError{Provider: providerName, Code: provider.CodeNotFound, Message: msg, Retry: false}
	case strings.Contains(lower, "503"), strings.Contains(lower, "unavailable"):
		return &provider.ProviderError{Provider: providerName, Code: provider.CodeUnavailable, Message: msg, Retry: true, RetryAfter: 30}
	default:
		return &provider.ProviderError{Provider: providerName, Code: provider.CodeUnknown, Message: msg, Retry: false}
	}
}
