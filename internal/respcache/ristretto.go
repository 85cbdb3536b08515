package respcache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

const minRistrettoCost = 1 << 20

type ristrettoStore struct {
	cache *ristretto.Cache[string, []byte]

	// ristretto cannot enumerate its keys, so admin scans walk this index
	// and prune names the cache has already evicted.
	mu    sync.Mutex
	index map[string]struct{}
}

// NewRistretto returns a cost-bounded in-process backend. maxCostBytes caps
// the total size of cached payloads and ristretto evicts past it.
func NewRistretto(maxCostBytes int64) (Backend, error) {
	if maxCostBytes < minRistrettoCost {
		maxCostBytes = minRistrettoCost
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxCostBytes / 100 * 10,
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("respcache: ristretto: %w", err)
	}
	return &ristrettoStore{cache: cache, index: make(map[string]struct{})}, nil
}

func (c *ristrettoStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}
	val, found := c.cache.Get(key)
	if !found {
		return nil, false, nil
	}
	return cloneBytes(val), true, nil
}

func (c *ristrettoStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if err := validateSet(key, ttl); err != nil {
		return err
	}
	if !c.cache.SetWithTTL(key, cloneBytes(value), int64(len(value))+int64(len(key)), ttl) {
		return fmt.Errorf("%w: ristretto set %s", ErrWriteDropped, key)
	}
	// Sets are buffered; wait so the entry is readable once Set returns.
	c.cache.Wait()
	// The admission policy rejects oversized and unpopular entries after the
	// buffer accepted them.
	if _, found := c.cache.Get(key); !found {
		return fmt.Errorf("%w: ristretto rejected %s", ErrWriteDropped, key)
	}
	c.mu.Lock()
	c.index[key] = struct{}{}
	c.mu.Unlock()
	return nil
}

func (c *ristrettoStore) Delete(_ context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	c.cache.Del(key)
	c.mu.Lock()
	delete(c.index, key)
	c.mu.Unlock()
	return nil
}

func (c *ristrettoStore) DeletePattern(_ context.Context, pattern string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key := range c.index {
		if !matchPattern(pattern, key) {
			continue
		}
		if _, live := c.cache.Get(key); live {
			removed++
		}
		c.cache.Del(key)
		delete(c.index, key)
	}
	return removed, nil
}

func (c *ristrettoStore) Keys(_ context.Context, pattern string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.index))
	for key := range c.index {
		if _, live := c.cache.Get(key); !live {
			delete(c.index, key)
			continue
		}
		if matchPattern(pattern, key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (c *ristrettoStore) Clear(_ context.Context) error {
	c.cache.Clear()
	c.mu.Lock()
	c.index = make(map[string]struct{})
	c.mu.Unlock()
	return nil
}

func (c *ristrettoStore) Size(ctx context.Context) (int64, error) {
	keys, err := c.Keys(ctx, "")
	if err != nil {
		return 0, err
	}
	return int64(len(keys)), nil
}

func (c *ristrettoStore) Close(_ context.Context) error {
	c.cache.Close()
	return nil
}
