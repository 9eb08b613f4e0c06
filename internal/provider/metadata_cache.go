package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/text/cases"
)

// MetadataCache provides safe access to cached provider metadata.
type MetadataCache interface {
	Get(key string) (*Metadata, bool)
	Set(key string, meta *Metadata)
}

// GenerateMetadataKey creates a unique key for caching metadata.
func GenerateMetadataKey(providerName string, request FetchRequest) string {
	id := request.ID
	if id == "" {
		id = cases.Fold().String(strings.TrimSpace(request.Name)) + ":" + request.Year
	}
	switch request.MediaType {
	case MediaTypeShow:
		return fmt.Sprintf("%s:show:%s", providerName, id)
	case MediaTypeSeason:
		return fmt.Sprintf("%s:season:%s:%d", providerName, id, request.Season)
	case MediaTypeEpisode:
		return fmt.Sprintf("%s:episode:%s:%d:%d", providerName, id, request.Season, request.Episode)
	default:
		return ""
	}
}

// TTLCache is a MetadataCache backed by an in-memory expiring store.
type TTLCache struct {
	store *cache.Cache
}

// NewTTLCache creates a cache whose entries expire after ttl.
func NewTTLCache(ttl time.Duration) *TTLCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TTLCache{store: cache.New(ttl, 10*time.Minute)}
}

// Get returns cached metadata for key.
func (c *TTLCache) Get(key string) (*Metadata, bool) {
	if c == nil || key == "" {
		return nil, false
	}
	cached, found := c.store.Get(key)
	if !found {
		return nil, false
	}
	meta, ok := cached.(*Metadata)
	return meta, ok
}

// Set stores metadata under key using the default expiration.
func (c *TTLCache) Set(key string, meta *Metadata) {
	if c == nil || key == "" || meta == nil {
		return
	}
	c.store.Set(key, meta, cache.DefaultExpiration)
}

// Len returns the number of unexpired entries.
func (c *TTLCache) Len() int {
	if c == nil {
		return 0
	}
	return c.store.ItemCount()
}

// cachedProvider wraps a provider so repeated fetches are served from cache.
type cachedProvider struct {
	Provider
	cache MetadataCache
}

// WithCache returns a provider whose Fetch results are cached. Errors are
// never cached. Search is forwarded unchanged.
func WithCache(p Provider, c MetadataCache) Provider {
	if p == nil || c == nil {
		return p
	}
	return &cachedProvider{Provider: p, cache: c}
}

func (p *cachedProvider) Fetch(ctx context.Context, request FetchRequest) (*Metadata, error) {
	key := GenerateMetadataKey(p.Name(), request)
	if meta, ok := p.cache.Get(key); ok {
		return meta, nil
	}

	meta, err := p.Provider.Fetch(ctx, request)
	if err != nil {
		return nil, err
	}
	p.cache.Set(key, meta)
	return meta, nil
}

func (p *cachedProvider) Search(ctx context.Context, query string) ([]SearchResult, error) {
	searcher, ok := p.Provider.(Searcher)
	if !ok {
		return nil, &ProviderError{
			Provider: p.Name(),
			Code:     CodeInvalidRequest,
			Message:  fmt.Sprintf("%s does not support search", p.Name()),
		}
	}
	return searcher.Search(ctx, query)
}
