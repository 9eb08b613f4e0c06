// Package ratings holds the IMDb ratings table. A Snapshot is immutable; the
// Store swaps complete snapshots atomically so readers never see a partial
// table.
package ratings

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Digital-Shane/show-score/internal/core"
)

// ErrNoSnapshot is returned when no ratings table is on disk and none can be
// downloaded.
var ErrNoSnapshot = errors.New("no ratings snapshot available")

// Snapshot is a read-only ratings table.
type Snapshot struct {
	version  uint64
	loadedAt time.Time
	source   string
	skipped  int
	entries  map[string]core.Rating
}

// Lookup returns the rating for a canonical id. Safe on a nil snapshot.
func (s *Snapshot) Lookup(id string) (core.Rating, bool) {
	if s == nil {
		return core.Rating{}, false
	}
	r, ok := s.entries[id]
	return r, ok
}

// Version is the store-assigned sequence number; zero means empty.
func (s *Snapshot) Version() uint64 {
	if s == nil {
		return 0
	}
	return s.version
}

// Len returns the number of entries.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }
func (s *Snapshot) Source() string      { return s.source }
func (s *Snapshot) Skipped() int        { return s.skipped }

// Store publishes snapshots. Swap has a single writer at a time; Current is
// lock free.
type Store struct {
	mu      sync.Mutex
	next    uint64
	current atomic.Pointer[Snapshot]
}

var emptySnapshot = &Snapshot{entries: map[string]core.Rating{}}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Current returns the latest snapshot, or an empty one before the first
// swap.
func (s *Store) Current() *Snapshot {
	if s == nil {
		return emptySnapshot
	}
	if snap := s.current.Load(); snap != nil {
		return snap
	}
	return emptySnapshot
}

// CurrentLookup satisfies core.LookupSource.
func (s *Store) CurrentLookup() core.VersionedLookup {
	return s.Current()
}

// Ready reports whether a snapshot has been published.
func (s *Store) Ready() bool {
	return s != nil && s.current.Load() != nil
}

// Swap publishes a new snapshot built from entries. The map must not be
// modified afterwards.
func (s *Store) Swap(entries map[string]core.Rating, source string, skipped int) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entries == nil {
		entries = map[string]core.Rating{}
	}
	s.next++
	snap := &Snapshot{
		version:  s.next,
		loadedAt: time.Now(),
		source:   source,
		skipped:  skipped,
		entries:  entries,
	}
	s.current.Store(snap)
	return snap
}
