package respcache

import (
	"context"
	"time"

	"github.com/l0p7/pitwall/internal/metrics"
)

// Availability is implemented by stores that can report a tripped backend.
type Availability interface {
	Available() bool
}

type instrumentedStore struct {
	inner   Backend
	backend string
	metrics *metrics.Recorder
}

// NewInstrumented records every call against inner under the backend label.
func NewInstrumented(inner Backend, backend string, recorder *metrics.Recorder) Backend {
	if recorder == nil {
		return inner
	}
	return &instrumentedStore{inner: inner, backend: backend, metrics: recorder}
}

func (s *instrumentedStore) observe(op metrics.CacheOperation, err error, start time.Time) {
	result := metrics.CacheResultOK
	if err != nil {
		result = metrics.CacheResultError
	}
	s.metrics.ObserveCacheOperation(s.backend, op, result, time.Since(start))
}

func (s *instrumentedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	val, found, err := s.inner.Get(ctx, key)
	result := metrics.CacheResultMiss
	switch {
	case err != nil:
		result = metrics.CacheResultError
	case found:
		result = metrics.CacheResultHit
	}
	s.metrics.ObserveCacheOperation(s.backend, metrics.CacheOperationGet, result, time.Since(start))
	return val, found, err
}

func (s *instrumentedStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := s.inner.Set(ctx, key, value, ttl)
	s.observe(metrics.CacheOperationSet, err, start)
	return err
}

func (s *instrumentedStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.inner.Delete(ctx, key)
	s.observe(metrics.CacheOperationDelete, err, start)
	return err
}

func (s *instrumentedStore) DeletePattern(ctx context.Context, pattern string) (int, error) {
	start := time.Now()
	removed, err := s.inner.DeletePattern(ctx, pattern)
	s.observe(metrics.CacheOperationDeletePattern, err, start)
	return removed, err
}

func (s *instrumentedStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	start := time.Now()
	keys, err := s.inner.Keys(ctx, pattern)
	s.observe(metrics.CacheOperationKeys, err, start)
	return keys, err
}

func (s *instrumentedStore) Clear(ctx context.Context) error {
	start := time.Now()
	err := s.inner.Clear(ctx)
	s.observe(metrics.CacheOperationClear, err, start)
	return err
}

func (s *instrumentedStore) Size(ctx context.Context) (int64, error) {
	return s.inner.Size(ctx)
}

func (s *instrumentedStore) Close(ctx context.Context) error {
	return s.inner.Close(ctx)
}

func (s *instrumentedStore) Available() bool {
	if a, ok := s.inner.(Availability); ok {
		return a.Available()
	}
	return true
}
