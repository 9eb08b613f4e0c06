package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/cases"
)

// Registry manages all available providers
type Registry struct {
	mu            sync.RWMutex
	providers     map[string]Provider
	priorities    map[string]int
	enabledStatus map[string]bool
	configs       map[string]map[string]interface{}
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers:     make(map[string]Provider),
		priorities:    make(map[string]int),
		enabledStatus: make(map[string]bool),
		configs:       make(map[string]map[string]interface{}),
	}
}

// Register adds a provider to the registry
func (r *Registry) Register(name string, provider Provider, priority int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %s already registered", name)
	}

	// Validate provider capabilities
	if err := ValidateCapabilities(provider.Capabilities()); err != nil {
		return fmt.Errorf("invalid provider capabilities for %s: %w", name, err)
	}

	r.providers[name] = provider
	r.priorities[name] = priority
	r.enabledStatus[name] = false // Disabled by default

	return nil
}

// Get returns a provider by name
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[name]
	return provider, exists
}

// List returns all registered providers
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sortedLocked(false)
}

// Enabled returns the enabled providers ordered by priority.
func (r *Registry) Enabled() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sortedLocked(true)
}

func (r *Registry) sortedLocked(enabledOnly bool) []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		if enabledOnly && !r.enabledStatus[name] {
			continue
		}
		names = append(names, name)
	}

	// Sort by priority, then name for stable output
	sort.Slice(names, func(i, j int) bool {
		pi, pj := r.priorities[names[i]], r.priorities[names[j]]
		if pi != pj {
			return pi > pj
		}
		return names[i] < names[j]
	})

	return names
}

// Enable enables a provider
func (r *Registry) Enable(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	provider, exists := r.providers[name]
	if !exists {
		return fmt.Errorf("provider %s not found", name)
	}

	// Validate configuration if required
	if provider.Capabilities().RequiresAuth {
		if config, hasConfig := r.configs[name]; !hasConfig || len(config) == 0 {
			return fmt.Errorf("provider %s requires configuration", name)
		}
	}

	r.enabledStatus[name] = true
	return nil
}

// IsEnabled reports whether the named provider is enabled.
func (r *Registry) IsEnabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabledStatus[name]
}

// Configure sets configuration for a provider
func (r *Registry) Configure(name string, config map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	provider, exists := r.providers[name]
	if !exists {
		return fmt.Errorf("provider %s not found", name)
	}

	// Apply configuration to provider
	if err := provider.Configure(config); err != nil {
		return fmt.Errorf("failed to configure provider %s: %w", name, err)
	}

	// Store configuration
	r.configs[name] = config

	return nil
}

// EpisodeSource returns the highest priority enabled provider whose season
// fetches carry per-episode IMDb ids.
func (r *Registry) EpisodeSource() (Provider, error) {
	for _, name := range r.Enabled() {
		prov, _ := r.Get(name)
		if prov != nil && prov.Capabilities().EpisodeIDs {
			return prov, nil
		}
	}
	return nil, errors.New("no enabled provider can list episodes with IMDb ids")
}

// Search queries every enabled searcher and merges the results. Results are
// de-duplicated by IMDb id, falling back to folded title and year. A search
// fails only when every searcher fails.
func (r *Registry) Search(ctx context.Context, query string) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &ProviderError{Code: CodeInvalidRequest, Message: "search query is empty"}
	}

	var (
		merged   []SearchResult
		seen     = make(map[string]bool)
		errs     []error
		searched int
	)

	for _, name := range r.Enabled() {
		prov, _ := r.Get(name)
		searcher, ok := prov.(Searcher)
		if !ok || !prov.Capabilities().Search {
			continue
		}
		searched++

		results, err := searcher.Search(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !IsNotFound(err) {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
			continue
		}

		for _, res := range results {
			key := dedupeKey(res)
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, res)
		}
	}

	if searched == 0 {
		return nil, errors.New("no enabled provider supports search")
	}
	if len(merged) == 0 && len(errs) > 0 && len(errs) == searched {
		return nil, errors.Join(errs...)
	}
	return merged, nil
}

func dedupeKey(res SearchResult) string {
	if res.IMDbID != "" {
		return "imdb:" + strings.ToLower(res.IMDbID)
	}
	return "title:" + cases.Fold().String(strings.TrimSpace(res.Title)) + ":" + res.Year
}

// ResolveIMDbID returns the IMDb id for a search result, asking the provider
// that produced it when the result does not already carry one.
func (r *Registry) ResolveIMDbID(ctx context.Context, res SearchResult) (string, error) {
	if res.IMDbID != "" {
		return res.IMDbID, nil
	}

	prov, ok := r.Get(res.Provider)
	if !ok {
		return "", fmt.Errorf("provider %s not found", res.Provider)
	}

	meta, err := prov.Fetch(ctx, FetchRequest{MediaType: MediaTypeShow, ID: res.ID, Name: res.Title, Year: res.Year})
	if err != nil {
		return "", err
	}
	if meta != nil {
		if id := meta.IDs["imdb_id"]; id != "" {
			return id, nil
		}
	}
	return "", &ProviderError{
		Provider: res.Provider,
		Code:     CodeNotFound,
		Message:  fmt.Sprintf("no IMDb id known for %s", res.Title),
	}
}
