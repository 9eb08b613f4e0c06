package omdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Digital-Shane/omdb"
	"github.com/Digital-Shane/show-score/internal/provider"
)

const providerName = "omdb"

// Provider implements the provider.Provider interface for OMDb. It is the
// episode source: every episode lookup returns the episode's own IMDb id.
type Provider struct {
	client     *omdb.Client
	httpClient *http.Client
	apiKey     string
	config     map[string]interface{}
}

// New creates a new OMDb provider instance.
func New() *Provider {
	return &Provider{
		config: make(map[string]interface{}),
	}
}

// NewWithHTTPClient creates a provider that sends requests through client.
func NewWithHTTPClient(client *http.Client) *Provider {
	p := New()
	p.httpClient = client
	return p
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return providerName
}

// Description returns a human readable description of the provider.
func (p *Provider) Description() string {
	return "Open Movie Database (OMDb) series, seasons and episodes"
}

// Capabilities returns what this provider can handle.
func (p *Provider) Capabilities() provider.ProviderCapabilities {
	return provider.ProviderCapabilities{
		MediaTypes: []provider.MediaType{
			provider.MediaTypeShow,
			provider.MediaTypeSeason,
			provider.MediaTypeEpisode,
		},
		RequiresAuth: true,
		Priority:     90,
		Search:       true,
		EpisodeIDs:   true,
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
				Description: "OMDb API key. Request one from https://www.omdbapi.com/apikey.aspx",
				Sensitive:   true,
				Validation: &provider.ConfigFieldValidation{
					MinLength: 8,
					MaxLength: 64,
					Pattern:   "^[A-Za-z0-9]+$",
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

	// Allow overriding the HTTP client before configuration (useful for tests).
	if p.httpClient == nil {
		p.httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	p.apiKey = apiKey
	p.config = config
	p.client = omdb.NewClient(p.apiKey, p.httpClient)

	return nil
}

// Fetch retrieves metadata for the given request.
func (p *Provider) Fetch(ctx context.Context, request provider.FetchRequest) (*provider.Metadata, error) {
	if p.client == nil || p.apiKey == "" {
		return nil, fmt.Errorf("provider not configured")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch request.MediaType {
	case provider.MediaTypeShow:
		return p.fetchShow(ctx, request)
	case provider.MediaTypeSeason:
		return p.fetchSeason(ctx, request)
	case provider.MediaTypeEpisode:
		return p.fetchEpisode(ctx, request)
	default:
		return nil, fmt.Errorf("unsupported media type: %s", request.MediaType)
	}
}

func (p *Provider) mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "invalid api key"), strings.Contains(lower, "no api key"):
		return &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeAuthFailed,
			Message:  "OMDb authentication failed: " + msg,
			Retry:    false,
		}
	case strings.Contains(lower, "not found"):
		return &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeNotFound,
			Message:  msg,
			Retry:    false,
		}
	case strings.Contains(lower, "limit reached"), strings.Contains(lower, "too many requests"):
		return &provider.ProviderError{
			Provider:   providerName,
			Code:       provider.CodeRateLimited,
			Message:    msg,
			Retry:      true,
			RetryAfter: 5,
		}
	default:
		return &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeUnknown,
			Message:  msg,
			Retry:    false,
		}
	}
}
