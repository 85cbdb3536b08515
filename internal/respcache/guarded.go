package respcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

var errBreakerOpen = errors.New("circuit open")

// breaker trips after maxFailures consecutive failures and rejects calls
// until cooldown has elapsed, then lets a single trial call through.
type breaker struct {
	mu          sync.Mutex
	state       breakerState
	failures    int
	maxFailures int
	cooldown    time.Duration
	openedAt    time.Time
	now         func() time.Time
	onChange    func(from, to breakerState)
}

func newBreaker(maxFailures int, cooldown time.Duration) *breaker {
	if maxFailures <= 0 {
		maxFailures = 3
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &breaker{maxFailures: maxFailures, cooldown: cooldown, now: time.Now}
}

func (b *breaker) execute(fn func() error) error {
	if !b.allow() {
		return errBreakerOpen
	}
	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failures++
		if b.state == breakerHalfOpen || b.failures >= b.maxFailures {
			b.openedAt = b.now()
			b.transition(breakerOpen)
		}
		return err
	}
	b.failures = 0
	b.transition(breakerClosed)
	return nil
}

func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case breakerOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.transition(breakerHalfOpen)
		return true
	default:
		return true
	}
}

// transition must be called with b.mu held.
func (b *breaker) transition(to breakerState) {
	from := b.state
	b.state = to
	if from != to && b.onChange != nil {
		b.onChange(from, to)
	}
}

func (b *breaker) current() breakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

type GuardConfig struct {
	MaxFailures int
	Cooldown    time.Duration
}

type guardedStore struct {
	inner   Backend
	breaker *breaker
}

// NewGuarded wraps a network backend with a circuit breaker. Only
// ErrCacheUnavailable failures count toward tripping it. While open every call
// fails fast with ErrCacheUnavailable.
func NewGuarded(inner Backend, cfg GuardConfig, logger *slog.Logger) Backend {
	b := newBreaker(cfg.MaxFailures, cfg.Cooldown)
	if logger != nil {
		b.onChange = func(from, to breakerState) {
			switch to {
			case breakerOpen:
				logger.Warn("cache backend unavailable, caching disabled", slog.String("from", from.String()), slog.Duration("cooldown", b.cooldown))
			case breakerClosed:
				logger.Info("cache backend recovered", slog.String("from", from.String()))
			}
		}
	}
	return &guardedStore{inner: inner, breaker: b}
}

// guard runs fn under the breaker. Errors other than ErrCacheUnavailable are
// passed through without affecting breaker state.
func (g *guardedStore) guard(op string, fn func() error) error {
	var passthrough error
	err := g.breaker.execute(func() error {
		err := fn()
		if err != nil && !errors.Is(err, ErrCacheUnavailable) {
			passthrough = err
			return nil
		}
		return err
	})
	if errors.Is(err, errBreakerOpen) {
		return fmt.Errorf("respcache: %s: %w: %w", op, ErrCacheUnavailable, err)
	}
	if err != nil {
		return err
	}
	return passthrough
}

func (g *guardedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		val   []byte
		found bool
	)
	err := g.guard("get", func() error {
		var err error
		val, found, err = g.inner.Get(ctx, key)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return val, found, nil
}

func (g *guardedStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := validateSet(key, ttl); err != nil {
		return err
	}
	return g.guard("set", func() error {
		return g.inner.Set(ctx, key, value, ttl)
	})
}

func (g *guardedStore) Delete(ctx context.Context, key string) error {
	return g.guard("delete", func() error {
		return g.inner.Delete(ctx, key)
	})
}

func (g *guardedStore) DeletePattern(ctx context.Context, pattern string) (int, error) {
	var removed int
	err := g.guard("delete pattern", func() error {
		var err error
		removed, err = g.inner.DeletePattern(ctx, pattern)
		return err
	})
	return removed, err
}

func (g *guardedStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	err := g.guard("keys", func() error {
		var err error
		keys, err = g.inner.Keys(ctx, pattern)
		return err
	})
	return keys, err
}

func (g *guardedStore) Clear(ctx context.Context) error {
	return g.guard("clear", func() error {
		return g.inner.Clear(ctx)
	})
}

func (g *guardedStore) Size(ctx context.Context) (int64, error) {
	var size int64
	err := g.guard("size", func() error {
		var err error
		size, err = g.inner.Size(ctx)
		return err
	})
	return size, err
}

func (g *guardedStore) Close(ctx context.Context) error {
	return g.inner.Close(ctx)
}

// Available reports whether the breaker currently admits calls.
func (g *guardedStore) Available() bool {
	return g.breaker.current() != breakerOpen
}
