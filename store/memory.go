package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Memory is an in-process Store, suitable for tests and single-node
// hosts. Concurrent fetches of one key are collapsed into a single
// compute per process via singleflight; across processes the usual
// last-write-wins race applies.
type Memory struct {
	mu         sync.RWMutex
	entries    map[string]*memoryEntry
	group      singleflight.Group
	defaultTTL time.Duration
}

type memoryEntry struct {
	value     any
	expiresAt time.Time // zero means no expiry
}

// NewMemory creates a memory store. defaultTTL applies to entries written
// without an explicit TTL; zero means such entries never expire.
func NewMemory(defaultTTL time.Duration) *Memory {
	return &Memory{
		entries:    make(map[string]*memoryEntry),
		defaultTTL: defaultTTL,
	}
}

// Fetch returns the stored value for key, computing and storing it on
// miss. Compute errors are propagated and nothing is written.
func (s *Memory) Fetch(ctx context.Context, key string, opts Options, compute ComputeFunc) (any, error) {
	if value, ok := s.get(key); ok {
		return value, nil
	}

	value, err, _ := s.group.Do(key, func() (any, error) {
		// A concurrent flight may have populated the entry already.
		if value, ok := s.get(key); ok {
			return value, nil
		}
		value, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		s.set(key, value, opts.TTL)
		return value, nil
	})
	return value, err
}

// DeleteMatched removes every live key matching pattern. Expired entries
// encountered on the walk are swept as a side effect and not counted.
func (s *Memory) DeleteMatched(_ context.Context, pattern string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	deleted := 0
	for key, entry := range s.entries {
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			delete(s.entries, key)
			continue
		}
		if matchPattern(pattern, key) {
			delete(s.entries, key)
			deleted++
		}
	}
	return deleted, nil
}

// Len reports the number of entries, including not-yet-swept expired ones.
func (s *Memory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Memory) get(key string) (any, bool) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		// Expired - clean up lazily
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, false
	}

	return entry.value, true
}

func (s *Memory) set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	entry := &memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
}

// matchPattern reports whether key matches pattern. '*' matches any run
// of characters, including the key separator, so "acp:1.0/u1/*" covers a
// whole record prefix.
func matchPattern(pattern, key string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == key
	}

	if !strings.HasPrefix(key, parts[0]) {
		return false
	}
	key = key[len(parts[0]):]

	last := len(parts) - 1
	for _, part := range parts[1:last] {
		idx := strings.Index(key, part)
		if idx < 0 {
			return false
		}
		key = key[idx+len(part):]
	}

	return strings.HasSuffix(key, parts[last])
}

// Ensure Memory implements both store interfaces
var (
	_ Store          = (*Memory)(nil)
	_ PatternDeleter = (*Memory)(nil)
)
