package provider

import (
	"context"
	"errors"
)

// MediaType represents the type of media content
type MediaType string

const (
	MediaTypeShow    MediaType = "show"
	MediaTypeSeason  MediaType = "season"
	MediaTypeEpisode MediaType = "episode"
)

// Provider is the main interface that all metadata providers must implement
type Provider interface {
	// Identification
	Name() string
	Description() string

	// Capability discovery
	Capabilities() ProviderCapabilities

	// Configuration
	Configure(config map[string]interface{}) error
	ConfigSchema() ConfigSchema

	// Data fetching
	Fetch(ctx context.Context, request FetchRequest) (*Metadata, error)
}

// Searcher is implemented by providers that can list candidate series for a
// free text query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// ProviderCapabilities describes what a provider can do
type ProviderCapabilities struct {
	MediaTypes   []MediaType // What media types are supported
	RequiresAuth bool        // Whether authentication is required
	Priority     int         // Default priority for this provider (higher = preferred)
	Search       bool        // Whether the provider implements Searcher
	EpisodeIDs   bool        // Whether season fetches carry per-episode IMDb ids
}

// Supports reports whether the media type is listed in the capabilities.
func (c ProviderCapabilities) Supports(mediaType MediaType) bool {
	for _, mt := range c.MediaTypes {
		if mt == mediaType {
			return true
		}
	}
	return false
}

// ConfigSchema describes the configuration requirements for a provider
type ConfigSchema struct {
	Fields []ConfigField
}

// ConfigField describes a single configuration field
type ConfigField struct {
	Name        string                 // Field name
	DisplayName string                 // Human-readable name
	Type        ConfigFieldType        // Field type
	Required    bool                   // Whether this field is required
	Default     interface{}            // Default value
	Description string                 // Help text
	Validation  *ConfigFieldValidation // Validation rules
	Sensitive   bool                   // Whether this contains sensitive data (for masking)
}

// ConfigFieldType represents the type of a configuration field
type ConfigFieldType string

const (
	ConfigFieldTypeString   ConfigFieldType = "string"
	ConfigFieldTypeInt      ConfigFieldType = "int"
	ConfigFieldTypeBool     ConfigFieldType = "bool"
	ConfigFieldTypeSelect   ConfigFieldType = "select"
	ConfigFieldTypePassword ConfigFieldType = "password"
)

// ConfigFieldValidation contains validation rules for a field
type ConfigFieldValidation struct {
	MinLength int                 // Minimum string length
	MaxLength int                 // Maximum string length
	Pattern   string              // Regex pattern
	MinValue  int                 // Minimum numeric value
	MaxValue  int                 // Maximum numeric value
	Options   []ConfigFieldOption // For select fields
}

// ConfigFieldOption represents an option for select fields
type ConfigFieldOption struct {
	Value       string
	Label       string
	Description string
}

// FetchRequest represents a request for metadata
type FetchRequest struct {
	MediaType MediaType
	Name      string
	Year      string
	Season    int
	Episode   int
	ID        string // Provider-specific ID if known
	Language  string // Preferred language
}

// SearchResult is one candidate series in a disambiguation list.
type SearchResult struct {
	Provider string `json:"provider"`
	ID       string `json:"id"`
	IMDbID   string `json:"imdb_id,omitempty"`
	Title    string `json:"title"`
	Year     string `json:"year,omitempty"`
	CoverURL string `json:"cover_url,omitempty"`
	Kind     string `json:"kind,omitempty"`
}

// Metadata represents the fetched metadata
type Metadata struct {
	// Core fields that are common across all providers
	Core CoreMetadata

	// Extended fields that are provider-specific
	Extended map[string]interface{}

	// Track which provider supplied which field
	Sources map[string]string

	// Provider-specific IDs
	IDs map[string]string

	// Episode leaves for season fetches, in provider order
	Episodes []EpisodeLeaf

	// Quality/confidence score for this metadata
	Confidence float64
}

// CoreMetadata contains the essential metadata fields
type CoreMetadata struct {
	// Basic identification
	Title     string
	Year      string
	MediaType MediaType

	// TV-specific
	SeasonNum   int
	SeasonCount int
	EpisodeName string
	EpisodeNum  int

	// Common fields
	Overview string
	Rating   float32
	Genres   []string
	Language string
	Country  string
}

// EpisodeLeaf is a raw per-episode entry as returned by a provider. Fields
// are left as strings; validation happens when the show is assembled.
type EpisodeLeaf struct {
	Key   string
	Title string
	Year  string
	ID    string
}

// SeasonKeys returns the season listing stored in Extended, if any.
func (m *Metadata) SeasonKeys() []string {
	if m == nil || m.Extended == nil {
		return nil
	}
	keys, _ := m.Extended["season_keys"].([]string)
	return keys
}

// Error codes shared by all providers.
const (
	CodeAuthFailed     = "AUTH_FAILED"
	CodeNotFound       = "NOT_FOUND"
	CodeRateLimited    = "RATE_LIMITED"
	CodeUnavailable    = "UNAVAILABLE"
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeUnknown        = "UNKNOWN"
)

// ProviderError represents an error from a provider
type ProviderError struct {
	Provider   string
	Code       string
	Message    string
	Retry      bool
	RetryAfter int // Seconds to wait before retry
}

func (e *ProviderError) Error() string {
	return e.Message
}

// IsNotFound reports whether err is a provider NOT_FOUND error.
func IsNotFound(err error) bool {
	return hasCode(err, CodeNotFound)
}

// IsInvalidRequest reports whether err is a provider INVALID_REQUEST error.
func IsInvalidRequest(err error) bool {
	return hasCode(err, CodeInvalidRequest)
}

func hasCode(err error, code string) bool {
	var perr *ProviderError
	if !errors.As(err, &perr) {
		return false
	}
	return perr.Code == code
}
