package cache

import (
	"net/url"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultTTL is how long a stored payload stays valid.
	DefaultTTL = 5 * time.Minute
	// DefaultSweepThreshold is the entry count above which a Set sweeps expired entries.
	DefaultSweepThreshold = 100
)

// Entry is a cached response payload. Entries are never modified after they
// are stored; a new Set for the same key replaces the whole entry.
type Entry struct {
	Key      string
	Payload  []byte
	StoredAt time.Time
}

// Age reports how long ago the entry was stored relative to now.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}

// EntryStat describes one entry for diagnostics.
type EntryStat struct {
	Key   string
	Age   time.Duration
	Valid bool
}

// Stats is a point-in-time view of the store.
type Stats struct {
	Count   int
	Entries []EntryStat
}

// Observer is notified about store housekeeping. Implementations must be
// safe for concurrent use and must not call back into the Store.
type Observer interface {
	EntryStored(size int)
	Swept(removed, remaining int)
	Cleared()
}

// Store is an in-memory TTL keyed payload store. It is safe for concurrent use.
type Store struct {
	mu             sync.RWMutex
	entries        map[string]Entry
	ttl            time.Duration
	sweepThreshold int
	now            func() time.Time
	observer       Observer
}

// Option configures a Store.
type Option func(*Store)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithSweepThreshold overrides DefaultSweepThreshold.
func WithSweepThreshold(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.sweepThreshold = n
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithObserver registers an Observer.
func WithObserver(o Observer) Option {
	return func(s *Store) {
		s.observer = o
	}
}

// New builds an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		entries:        make(map[string]Entry),
		ttl:            DefaultTTL,
		sweepThreshold: DefaultSweepThreshold,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the validity window used by Valid and the sweep.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Get returns the entry stored under key. It does not check validity.
func (s *Store) Get(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	return entry, ok
}

// Valid reports whether entry is younger than the TTL.
func (s *Store) Valid(entry Entry) bool {
	return entry.Age(s.now()) < s.ttl
}

// Lookup returns the entry under key only when it is still valid.
func (s *Store) Lookup(key string) (Entry, bool) {
	entry, ok := s.Get(key)
	if !ok || !s.Valid(entry) {
		return Entry{}, false
	}
	return entry, true
}

// Set stores payload under key, replacing any previous entry. When the store
// grows past the sweep threshold every expired entry is removed. Valid entries
// are never evicted, so the store may hold more live entries than the threshold.
func (s *Store) Set(key string, payload []byte) {
	dup := make([]byte, len(payload))
	copy(dup, payload)

	s.mu.Lock()
	now := s.now()
	s.entries[key] = Entry{Key: key, Payload: dup, StoredAt: now}
	size := len(s.entries)
	removed := 0
	if size > s.sweepThreshold {
		removed = s.sweepLocked(now)
		size = len(s.entries)
	}
	s.mu.Unlock()

	if s.observer != nil {
		if removed > 0 {
			s.observer.Swept(removed, size)
		}
		s.observer.EntryStored(size)
	}
}

// Sweep removes expired entries immediately and returns how many were dropped.
func (s *Store) Sweep() int {
	s.mu.Lock()
	removed := s.sweepLocked(s.now())
	size := len(s.entries)
	s.mu.Unlock()

	if s.observer != nil && removed > 0 {
		s.observer.Swept(removed, size)
	}
	return removed
}

func (s *Store) sweepLocked(now time.Time) int {
	removed := 0
	for key, entry := range s.entries {
		if entry.Age(now) >= s.ttl {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Clear drops every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]Entry)
	s.mu.Unlock()

	if s.observer != nil {
		s.observer.Cleared()
	}
}

// Len returns the number of stored entries, expired ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Stats returns per-entry ages sorted by key.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	now := s.now()
	stats := Stats{
		Count:   len(s.entries),
		Entries: make([]EntryStat, 0, len(s.entries)),
	}
	for key, entry := range s.entries {
		age := entry.Age(now)
		stats.Entries = append(stats.Entries, EntryStat{
			Key:   key,
			Age:   age,
			Valid: age < s.ttl,
		})
	}
	s.mu.RUnlock()

	sort.Slice(stats.Entries, func(i, j int) bool {
		return stats.Entries[i].Key < stats.Entries[j].Key
	})
	return stats
}

// Key builds the canonical cache key for an endpoint and its parameters.
// Parameter names are sorted so insertion order never matters. Names listed in
// exclude (transport-only fields such as credentials) and names with no values
// are left out.
func Key(endpoint string, params url.Values, exclude ...string) string {
	path := "/" + strings.Trim(strings.TrimSpace(endpoint), "/")
	if len(params) == 0 {
		return path
	}

	names := make([]string, 0, len(params))
	for name := range params {
		if len(params[name]) == 0 || slices.Contains(exclude, name) {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return path
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(path)
	b.WriteByte('?')
	first := true
	for _, name := range names {
		for _, value := range params[name] {
			if !first {
				b.WriteByte('&')
			}
			first = false
			b.WriteString(url.QueryEscape(name))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(value))
		}
	}
	return b.String()
}
