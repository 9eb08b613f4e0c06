package tmdb

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Digital-Shane/show-score/internal/provider"
	"github.com/patrickmn/go-cache"
	"github.com/ryanbradynd05/go-tmdb"
)

const (
	providerName = "tmdb"
	posterBase   = "https://image.tmdb.org/t/p/w185"
)

// Provider implements the provider.Provider interface for TMDB. It serves
// disambiguation searches and resolves TMDB series to IMDb ids.
type Provider struct {
	client      TMDBClient
	cache       *cache.Cache
	cacheFile   string
	language    string
	apiKey      string
	rateLimiter *rateLimiter
	config      map[string]interface{}
}

// TMDBClient captures the go-tmdb methods used by this provider.
type TMDBClient interface {
	SearchTv(name string, options map[string]string) (*tmdb.TvSearchResults, error)
	GetTvInfo(id int, options map[string]string) (*tmdb.TV, error)
}

// New creates a new TMDB provider instance
func New() *Provider {
	return &Provider{
		language: "en-US",
		config:   make(map[string]interface{}),
	}
}

// NewWithClient creates a provider around an existing client. Used by tests
// and by callers that manage their own client.
func NewWithClient(client TMDBClient) *Provider {
	p := New()
	p.client = client
	p.rateLimiter = newRateLimiter(38, 10*time.Second)
	return p
}

// Name returns the provider name
func (p *Provider) Name() string {
	return providerName
}

// Description returns the provider description
func (p *Provider) Description() string {
	return "The Movie Database (TMDB) series search"
}

// Capabilities returns what this provider can do
func (p *Provider) Capabilities() provider.ProviderCapabilities {
	return provider.ProviderCapabilities{
		MediaTypes:   []provider.MediaType{provider.MediaTypeShow},
		RequiresAuth: true,
		Priority:     100,
		Search:       true,
	}
}

// ConfigSchema returns the configuration schema for this provider
func (p *Provider) ConfigSchema() provider.ConfigSchema {
	return provider.ConfigSchema{
		Fields: []provider.ConfigField{
			{
				Name:        "api_key",
				DisplayName: "API Key",
				Type:        provider.ConfigFieldTypePassword,
				Required:    true,
				Description: "TMDB API key (not the Read Access Token). Get it from themoviedb.org/settings/api",
				Sensitive:   true,
				Validation: &provider.ConfigFieldValidation{
					MinLength: 32,
					MaxLength: 32,
					Pattern:   "^[a-f0-9]{32}$",
				},
			},
			{
				Name:        "language",
				DisplayName: "Language",
				Type:        provider.ConfigFieldTypeSelect,
				Required:    false,
				Default:     "en-US",
				Description: "Preferred language for titles",
				Validation: &provider.ConfigFieldValidation{
					Options: []provider.ConfigFieldOption{
						{Value: "en-US", Label: "English (US)"},
						{Value: "en-GB", Label: "English (UK)"},
						{Value: "fr-FR", Label: "French"},
						{Value: "de-DE", Label: "German"},
						{Value: "es-ES", Label: "Spanish"},
						{Value: "ja-JP", Label: "Japanese"},
					},
				},
			},
			{
				Name:        "cache_enabled",
				DisplayName: "Enable Cache",
				Type:        provider.ConfigFieldTypeBool,
				Required:    false,
				Default:     true,
				Description: "Cache API responses to reduce requests",
			},
			{
				Name:        "cache_duration",
				DisplayName: "Cache Duration (hours)",
				Type:        provider.ConfigFieldTypeInt,
				Required:    false,
				Default:     168, // 7 days
				Description: "How long to cache responses",
				Validation: &provider.ConfigFieldValidation{
					MinValue: 1,
					MaxValue: 8760, // 1 year
				},
			},
		},
	}
}

// Configure applies configuration to the provider
func (p *Provider) Configure(config map[string]interface{}) error {
	p.config = config

	// Extract API key
	apiKey, ok := config["api_key"].(string)
	if !ok || strings.TrimSpace(apiKey) == "" {
		return fmt.Errorf("api_key is required")
	}
	p.apiKey = strings.TrimSpace(apiKey)

	// Extract language
	if language, ok := config["language"].(string); ok && language != "" {
		p.language = language
	} else {
		p.language = "en-US"
	}

	if p.client == nil {
		p.client = tmdb.Init(tmdb.Config{
			APIKey:   p.apiKey,
			Proxies:  nil,
			UseProxy: false,
		})
	}

	// Set up cache if enabled
	cacheEnabled := true
	if enabled, ok := config["cache_enabled"].(bool); ok {
		cacheEnabled = enabled
	}

	if cacheEnabled {
		cacheDuration := 168 // Default 7 days
		if duration, ok := config["cache_duration"].(int); ok && duration > 0 {
			cacheDuration = duration
		}
		p.cache = cache.New(time.Duration(cacheDuration)*time.Hour, 10*time.Minute)

		if dir, ok := config["cache_dir"].(string); ok && dir != "" {
			if err := os.MkdirAll(dir, 0755); err == nil {
				p.cacheFile = filepath.Join(dir, "tmdb_cache.gob")
				if _, err := os.Stat(p.cacheFile); err == nil {
					_ = p.cache.LoadFile(p.cacheFile)
				}
			}
		}
	} else {
		p.cache = nil
	}

	// 38 requests per 10 seconds
	p.rateLimiter = newRateLimiter(38, 10*time.Second)

	return nil
}

// SaveCache persists the cache to disk
func (p *Provider) SaveCache() error {
	if p.cache != nil && p.cacheFile != "" {
		return p.cache.SaveFile(p.cacheFile)
	}
	return nil
}

// mapError maps TMDB errors to provider errors
func (p *Provider) mapError(err error) error {
	if err == nil {
		return nil
	}

	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "401") || strings.Contains(errStr, "unauthorized") {
		return &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeAuthFailed,
			Message:  "TMDB authentication failed: " + err.Error(),
			Retry:    false,
		}
	}
	if strings.Contains(errStr, "404") || strings.Contains(errStr, "not found") {
		return &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeNotFound,
			Message:  "TMDB: " + err.Error(),
			Retry:    false,
		}
	}
	if strings.Contains(errStr, "429") || strings.Contains(errStr, "rate limit") {
		return &provider.ProviderError{
			Provider:   providerName,
			Code:       provider.CodeRateLimited,
			Message:    "TMDB rate limit exceeded",
			Retry:      true,
			RetryAfter: 10,
		}
	}
	if strings.Contains(errStr, "503") || strings.Contains(errStr, "unavailable") {
		return &provider.ProviderError{
			Provider:   providerName,
			Code:       provider.CodeUnavailable,
			Message:    "TMDB service unavailable",
			Retry:      true,
			RetryAfter: 30,
		}
	}

	return &provider.ProviderError{
		Provider: providerName,
		Code:     provider.CodeUnknown,
		Message:  "TMDB error: " + err.Error(),
		Retry:    false,
	}
}
