package respcache

import (
	"context"
	"errors"
	"time"
)

type tieredStore struct {
	l1       Backend
	l2       Backend
	l1Expire time.Duration
}

// NewTiered layers a process-local L1 over a shared L2. Reads try L1 first
// and backfill it from L2 hits for l1Expire. Writes and deletes hit both.
// L2 is authoritative for admin listings.
func NewTiered(l1, l2 Backend, l1Expire time.Duration) Backend {
	if l1Expire <= 0 {
		l1Expire = time.Minute
	}
	return &tieredStore{l1: l1, l2: l2, l1Expire: l1Expire}
}

func (c *tieredStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, found, err := c.l1.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if found {
		return val, true, nil
	}

	val, found, err = c.l2.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	_ = c.l1.Set(ctx, key, val, c.l1Expire)
	return val, true, nil
}

func (c *tieredStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := validateSet(key, ttl); err != nil {
		return err
	}
	l1TTL := min(ttl, c.l1Expire)
	if err := c.l1.Set(ctx, key, value, l1TTL); err != nil {
		return err
	}
	return c.l2.Set(ctx, key, value, ttl)
}

func (c *tieredStore) Delete(ctx context.Context, key string) error {
	return errors.Join(c.l1.Delete(ctx, key), c.l2.Delete(ctx, key))
}

func (c *tieredStore) DeletePattern(ctx context.Context, pattern string) (int, error) {
	_, err1 := c.l1.DeletePattern(ctx, pattern)
	removed, err2 := c.l2.DeletePattern(ctx, pattern)
	return removed, errors.Join(err1, err2)
}

func (c *tieredStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	return c.l2.Keys(ctx, pattern)
}

func (c *tieredStore) Clear(ctx context.Context) error {
	return errors.Join(c.l1.Clear(ctx), c.l2.Clear(ctx))
}

func (c *tieredStore) Size(ctx context.Context) (int64, error) {
	return c.l2.Size(ctx)
}

// Available follows L2, the level shared across instances.
func (c *tieredStore) Available() bool {
	if a, ok := c.l2.(Availability); ok {
		return a.Available()
	}
	return true
}

func (c *tieredStore) Close(ctx context.Context) error {
	return errors.Join(c.l1.Close(ctx), c.l2.Close(ctx))
}
