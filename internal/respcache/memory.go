package respcache

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryStore struct {
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemory returns the process-local backend. Expired entries are evicted
// lazily on access and during admin scans.
func NewMemory() Backend {
	return newMemory(time.Now)
}

func newMemory(now func() time.Time) *memoryStore {
	if now == nil {
		now = time.Now
	}
	return &memoryStore{now: now, entries: make(map[string]Entry)}
}

func (c *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if entry.expired(c.now()) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return cloneBytes(entry.Value), true, nil
}

func (c *memoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if err := validateSet(key, ttl); err != nil {
		return err
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = Entry{
		Value:     cloneBytes(value),
		StoredAt:  now.UTC(),
		ExpiresAt: now.Add(ttl),
	}
	return nil
}

func (c *memoryStore) Delete(_ context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *memoryStore) DeletePattern(_ context.Context, pattern string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key := range c.entries {
		if matchPattern(pattern, key) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed, nil
}

func (c *memoryStore) Keys(_ context.Context, pattern string) ([]string, error) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.entries))
	for key, entry := range c.entries {
		if entry.expired(now) {
			delete(c.entries, key)
			continue
		}
		if matchPattern(pattern, key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (c *memoryStore) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry)
	return nil
}

func (c *memoryStore) Size(_ context.Context) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return int64(len(c.entries)), nil
}

func (c *memoryStore) Close(_ context.Context) error {
	return nil
}
