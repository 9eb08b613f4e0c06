package ratings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Digital-Shane/show-score/internal/core"
	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
)

const (
	DefaultURL             = "https://datasets.imdbws.com/title.ratings.tsv.gz"
	DefaultMaxAge          = 24 * time.Hour
	defaultDownloadTimeout = 5 * time.Minute
	lockRetryDelay         = 250 * time.Millisecond
)

// CatalogConfig configures a Catalog.
type CatalogConfig struct {
	Path       string
	URL        string
	MaxAge     time.Duration
	HTTPClient *http.Client
	Store      *Store
	Logger     *slog.Logger
}

// Catalog keeps the on-disk ratings file current and publishes parsed
// snapshots to a Store.
type Catalog struct {
	path       string
	url        string
	maxAge     time.Duration
	client     *http.Client
	store      *Store
	logger     *slog.Logger
	refresh    sync.Mutex
	refreshing atomic.Bool
}

// Info describes the on-disk file and the published snapshot.
type Info struct {
	Path     string    `json:"path"`
	URL      string    `json:"url"`
	Exists   bool      `json:"exists"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"mod_time,omitempty"`
	Stale    bool      `json:"stale"`
	Version  uint64    `json:"snapshot_version"`
	Entries  int       `json:"entries"`
	Skipped  int       `json:"skipped"`
	LoadedAt time.Time `json:"loaded_at,omitempty"`
}

// NewCatalog creates a catalog. An empty URL disables downloads.
func NewCatalog(cfg CatalogConfig) *Catalog {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	store := cfg.Store
	if store == nil {
		store = NewStore()
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultDownloadTimeout}
	}
	maxAge := cfg.MaxAge
	if maxAge == 0 {
		maxAge = DefaultMaxAge
	}
	return &Catalog{
		path:   strings.TrimSpace(cfg.Path),
		url:    strings.TrimSpace(cfg.URL),
		maxAge: maxAge,
		client: client,
		store:  store,
		logger: logger,
	}
}

// Store returns the store snapshots are published to.
func (c *Catalog) Store() *Store {
	return c.store
}

// Load publishes the on-disk file, downloading it first when missing.
func (c *Catalog) Load(ctx context.Context) (*Snapshot, error) {
	if _, err := os.Stat(c.path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("stat ratings file: %w", err)
		}
		if c.url == "" {
			return nil, fmt.Errorf("%w: %s does not exist and downloads are disabled", ErrNoSnapshot, c.path)
		}
		return c.Refresh(ctx)
	}
	return c.loadFromDisk()
}

func (c *Catalog) loadFromDisk() (*Snapshot, error) {
	file, err := os.Open(c.path)
	if err != nil {
		return nil, fmt.Errorf("open ratings file: %w", err)
	}
	defer file.Close()

	entries, skipped, err := Parse(file)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s holds no usable ratings", ErrNoSnapshot, c.path)
	}

	return c.publish(entries, skipped), nil
}

func (c *Catalog) publish(entries map[string]core.Rating, skipped int) *Snapshot {
	snap := c.store.Swap(entries, c.path, skipped)
	c.logger.Info("ratings snapshot loaded",
		slog.String("path", c.path),
		slog.Uint64("version", snap.Version()),
		slog.String("entries", humanize.Comma(int64(snap.Len()))),
		slog.Int("skipped", skipped),
	)
	return snap
}

// Stale reports whether the file is missing or older than the max age.
func (c *Catalog) Stale() (bool, error) {
	info, err := os.Stat(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return true, nil
		}
		return false, err
	}
	if c.maxAge <= 0 {
		return false, nil
	}
	return time.Since(info.ModTime()) > c.maxAge, nil
}

// Refresh downloads the file under a file lock, replaces the local copy and
// publishes it. On failure the previous snapshot stays in place.
func (c *Catalog) Refresh(ctx context.Context) (*Snapshot, error) {
	if c.url == "" {
		return nil, fmt.Errorf("%w: no download url configured", ErrNoSnapshot)
	}

	c.refresh.Lock()
	defer c.refresh.Unlock()

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return nil, fmt.Errorf("create ratings directory: %w", err)
	}

	lock := flock.New(c.path + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("acquire ratings lock: %w", err)
	}
	if !locked {
		return nil, errors.New("acquire ratings lock: lock held elsewhere")
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			c.logger.Warn("failed to release ratings lock", slog.String("error", err.Error()))
		}
	}()

	dl, err := c.download(ctx)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("ratings file downloaded", slog.String("url", c.url), slog.String("size", humanize.Bytes(uint64(dl.size))))

	return c.publish(dl.entries, dl.skipped), nil
}

// downloaded is a validated download already parsed into entries.
type downloaded struct {
	entries map[string]core.Rating
	skipped int
	size    int64
}

// download streams the body into a temp file and through the parser in one
// pass. The temp file only replaces the local copy once it parsed cleanly.
func (c *Catalog) download(ctx context.Context) (downloaded, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return downloaded{}, fmt.Errorf("download ratings: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return downloaded{}, fmt.Errorf("download ratings: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return downloaded{}, fmt.Errorf("download ratings: unexpected status %d", resp.StatusCode)
	}

	tempPath := c.path + ".tmp"
	tmp, err := os.Create(tempPath)
	if err != nil {
		return downloaded{}, fmt.Errorf("create ratings temp file: %w", err)
	}
	counter := &countingWriter{w: tmp}
	entries, skipped, parseErr := Parse(io.TeeReader(resp.Body, counter))
	if parseErr == nil {
		// the parser may stop short of the trailer; keep the file whole
		_, parseErr = io.Copy(counter, resp.Body)
	}
	if err := errors.Join(parseErr, tmp.Close()); err != nil {
		os.Remove(tempPath)
		return downloaded{}, fmt.Errorf("validate ratings download: %w", err)
	}
	if len(entries) == 0 {
		os.Remove(tempPath)
		return downloaded{}, errors.New("validate ratings download: no usable ratings")
	}

	if err := os.Rename(tempPath, c.path); err != nil {
		os.Remove(tempPath)
		return downloaded{}, fmt.Errorf("replace ratings file: %w", err)
	}
	return downloaded{entries: entries, skipped: skipped, size: counter.n}, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// Run refreshes the file whenever it goes stale until ctx is done.
func (c *Catalog) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 || c.url == "" {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.refreshIfStale(ctx)
		}
	}
}

func (c *Catalog) refreshIfStale(ctx context.Context) {
	stale, err := c.Stale()
	if err != nil || !stale {
		return
	}
	if !c.refreshing.CompareAndSwap(false, true) {
		return
	}
	defer c.refreshing.Store(false)

	if _, err := c.Refresh(ctx); err != nil && ctx.Err() == nil {
		c.logger.Warn("ratings refresh failed; keeping previous snapshot",
			slog.String("path", c.path),
			slog.String("error", err.Error()),
		)
	}
}

// Info reports the file state and the published snapshot.
func (c *Catalog) Info() (Info, error) {
	snap := c.store.Current()
	info := Info{
		Path:     c.path,
		URL:      c.url,
		Version:  snap.Version(),
		Entries:  snap.Len(),
		Skipped:  snap.Skipped(),
		LoadedAt: snap.LoadedAt(),
	}

	stat, err := os.Stat(c.path)
	switch {
	case err == nil:
		info.Exists = true
		info.Size = stat.Size()
		info.ModTime = stat.ModTime()
	case !errors.Is(err, fs.ErrNotExist):
		return info, fmt.Errorf("stat ratings file: %w", err)
	}

	stale, err := c.Stale()
	if err != nil {
		return info, err
	}
	info.Stale = stale
	return info, nil
}
