package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Digital-Shane/show-score/internal/core"
)

// dirName is the per-user state directory under $HOME.
const dirName = ".show-score"

// Config holds user settings. Durations are stored in whole hours or
// minutes so the JSON stays hand editable.
type Config struct {
	// Provider credentials and toggles
	OMDBAPIKey string `json:"omdb_api_key"`
	TMDBAPIKey string `json:"tmdb_api_key"`
	TVDBAPIKey string `json:"tvdb_api_key"`
	EnableTMDB bool   `json:"enable_tmdb"`
	EnableTVDB bool   `json:"enable_tvdb"`
	Language   string `json:"language"`

	CacheTTLHours int `json:"cache_ttl_hours"`
	WorkerCount   int `json:"worker_count"`

	// Ratings snapshot
	RatingsURL            string `json:"ratings_url"`
	RatingsPath           string `json:"ratings_path"`
	RatingsMaxAgeHours    int    `json:"ratings_max_age_hours"`
	RatingsRefreshMinutes int    `json:"ratings_refresh_minutes"`

	ServerAddr    string `json:"server_addr"`
	DefaultStddev string `json:"default_stddev"`

	LogLevel         string `json:"log_level"`
	LogFormat        string `json:"log_format"`
	EnableJournal    bool   `json:"enable_journal"`
	LogRetentionDays int    `json:"log_retention_days"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Language:              "en-US",
		CacheTTLHours:         168,
		WorkerCount:           core.DefaultWorkerCount,
		RatingsURL:            "https://datasets.imdbws.com/title.ratings.tsv.gz",
		RatingsMaxAgeHours:    24,
		RatingsRefreshMinutes: 60,
		ServerAddr:            "127.0.0.1:8080",
		DefaultStddev:         "2",
		LogLevel:              "info",
		LogFormat:             "console",
		EnableJournal:         true,
		LogRetentionDays:      30,
	}
}

// Dir returns ~/.show-score.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, dirName), nil
}

// ConfigPath returns the path to the config file
func ConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the configuration from disk
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return default config if file doesn't exist
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unset fields keep their defaults
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	defaults := DefaultConfig()
	if cfg.Language == "" {
		cfg.Language = defaults.Language
	}
	if cfg.CacheTTLHours <= 0 {
		cfg.CacheTTLHours = defaults.CacheTTLHours
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = defaults.WorkerCount
	}
	if cfg.RatingsMaxAgeHours <= 0 {
		cfg.RatingsMaxAgeHours = defaults.RatingsMaxAgeHours
	}
	if cfg.RatingsRefreshMinutes <= 0 {
		cfg.RatingsRefreshMinutes = defaults.RatingsRefreshMinutes
	}
	if cfg.ServerAddr == "" {
		cfg.ServerAddr = defaults.ServerAddr
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = defaults.LogFormat
	}
	if cfg.LogRetentionDays == 0 {
		cfg.LogRetentionDays = defaults.LogRetentionDays
	}

	return cfg, nil
}

// Save writes the configuration to disk
func (cfg *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// keys live in this file
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate reports every invalid setting at once.
func (cfg *Config) Validate() error {
	var errs []error
	if _, err := core.ParseStddev(cfg.DefaultStddev); err != nil {
		errs = append(errs, fmt.Errorf("default_stddev: %w", err))
	}
	if cfg.EnableTMDB && strings.TrimSpace(cfg.TMDBAPIKey) == "" {
		errs = append(errs, errors.New("enable_tmdb requires tmdb_api_key"))
	}
	if cfg.EnableTVDB && strings.TrimSpace(cfg.TVDBAPIKey) == "" {
		errs = append(errs, errors.New("enable_tvdb requires tvdb_api_key"))
	}
	switch strings.ToLower(cfg.LogFormat) {
	case "", "console", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format: unknown format %q", cfg.LogFormat))
	}
	return errors.Join(errs...)
}

// Stddev parses DefaultStddev; nil disables outlier detection.
func (cfg *Config) Stddev() (*float64, error) {
	return core.ParseStddev(cfg.DefaultStddev)
}

// CacheTTL is the provider response cache lifetime.
func (cfg *Config) CacheTTL() time.Duration {
	return time.Duration(cfg.CacheTTLHours) * time.Hour
}

// RatingsMaxAge is how old the snapshot may get before a refresh.
func (cfg *Config) RatingsMaxAge() time.Duration {
	return time.Duration(cfg.RatingsMaxAgeHours) * time.Hour
}

// RatingsRefreshInterval is how often a server checks the snapshot age.
func (cfg *Config) RatingsRefreshInterval() time.Duration {
	return time.Duration(cfg.RatingsRefreshMinutes) * time.Minute
}

// ResolvedRatingsPath returns RatingsPath or ~/.show-score/title.ratings.tsv.gz.
func (cfg *Config) ResolvedRatingsPath() (string, error) {
	if cfg.RatingsPath != "" {
		return cfg.RatingsPath, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "title.ratings.tsv.gz"), nil
}

// CacheDir is where provider caches are persisted.
func (cfg *Config) CacheDir() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cache"), nil
}

// ProviderConfig returns the Configure map for the named provider.
func (cfg *Config) ProviderConfig(name string) map[string]interface{} {
	out := map[string]interface{}{
		"language":       cfg.Language,
		"cache_enabled":  cfg.CacheTTLHours > 0,
		"cache_duration": cfg.CacheTTLHours,
	}
	switch name {
	case "omdb":
		out["api_key"] = cfg.OMDBAPIKey
	case "tmdb":
		out["api_key"] = cfg.TMDBAPIKey
		if dir, err := cfg.CacheDir(); err == nil {
			out["cache_dir"] = dir
		}
	case "tvdb":
		out["api_key"] = cfg.TVDBAPIKey
	}
	return out
}

// Masked returns a copy safe to print, with keys reduced to their last
// four characters.
func (cfg *Config) Masked() *Config {
	out := *cfg
	out.OMDBAPIKey = mask(cfg.OMDBAPIKey)
	out.TMDBAPIKey = mask(cfg.TMDBAPIKey)
	out.TVDBAPIKey = mask(cfg.TVDBAPIKey)
	return &out
}

func mask(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
