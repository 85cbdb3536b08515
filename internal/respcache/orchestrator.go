package respcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/l0p7/pitwall/internal/logging"
	"github.com/l0p7/pitwall/internal/metrics"
)

// ErrComputationFailed matches every error produced by a failed compute.
var ErrComputationFailed = errors.New("respcache: computation failed")

// ComputationError carries the key and cause of a failed computation.
type ComputationError struct {
	Key string
	Err error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("respcache: compute %q: %v", e.Key, e.Err)
}

func (e *ComputationError) Unwrap() error { return e.Err }

func (e *ComputationError) Is(target error) bool { return target == ErrComputationFailed }

// Source reports where a resolved value came from.
type Source string

const (
	SourceCache    Source = "cache"
	SourceComputed Source = "computed"
)

// ComputeFunc produces a JSON-serializable value for a cache miss.
type ComputeFunc func(ctx context.Context) (any, error)

// Result is the outcome of a resolution. Stored is false when a computed
// value could not be written back.
type Result struct {
	Value  json.RawMessage
	Source Source
	Stored bool
}

// DefaultComputeTimeout bounds a detached computation.
const DefaultComputeTimeout = 30 * time.Second

// OrchestratorConfig wires the orchestrator's collaborators.
type OrchestratorConfig struct {
	Store          Store
	Logger         *slog.Logger
	Metrics        *metrics.Recorder
	ComputeTimeout time.Duration
}

// Orchestrator memoizes computed responses in a Store. Concurrent misses on
// the same key share one computation.
type Orchestrator struct {
	store          Store
	logger         *slog.Logger
	metrics        *metrics.Recorder
	computeTimeout time.Duration
	flights        singleflight.Group
}

// NewOrchestrator constructs an orchestrator over cfg.Store.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.ComputeTimeout
	if timeout <= 0 {
		timeout = DefaultComputeTimeout
	}
	return &Orchestrator{
		store:          cfg.Store,
		logger:         logger.With(slog.String("agent", "response_cache")),
		metrics:        cfg.Metrics,
		computeTimeout: timeout,
	}
}

// Store exposes the underlying store for invalidation and admin routes.
func (o *Orchestrator) Store() Store { return o.store }

// Resolve returns the cached value for key or computes, stores, and returns it.
func (o *Orchestrator) Resolve(ctx context.Context, key string, compute ComputeFunc, ttl time.Duration) (json.RawMessage, Source, error) {
	res, err := o.ResolveResult(ctx, key, compute, ttl)
	if err != nil {
		return nil, "", err
	}
	return res.Value, res.Source, nil
}

// ResolveResult is Resolve with the write-back outcome attached.
func (o *Orchestrator) ResolveResult(ctx context.Context, key string, compute ComputeFunc, ttl time.Duration) (Result, error) {
	if err := validateSet(key, ttl); err != nil {
		return Result{}, err
	}
	if compute == nil {
		return Result{}, fmt.Errorf("%w: compute function required", ErrInvalidArgument)
	}
	resource := ResourceOf(key)
	logger := o.requestLogger(ctx, key)

	cached, found, err := o.store.Get(ctx, key)
	switch {
	case err != nil:
		logger.Warn("cache lookup failed, computing", slog.Any("error", err))
	case found:
		o.metrics.ObserveResolve(resource, metrics.ResolveCached)
		logger.Debug("cache hit")
		return Result{Value: json.RawMessage(cached), Source: SourceCache, Stored: true}, nil
	}

	// The flight runs detached so a departing caller neither aborts the
	// computation other waiters share nor skips the write-back.
	detached := context.WithoutCancel(ctx)
	ch := o.flights.DoChan(key, func() (any, error) {
		return o.computeAndStore(detached, key, compute, ttl)
	})

	select {
	case <-ctx.Done():
		o.metrics.ObserveResolve(resource, metrics.ResolveAbandoned)
		return Result{}, ctx.Err()
	case out := <-ch:
		if out.Err != nil {
			o.metrics.ObserveResolve(resource, metrics.ResolveFailed)
			return Result{}, out.Err
		}
		res := out.Val.(Result)
		outcome := metrics.ResolveComputed
		if !res.Stored {
			outcome = metrics.ResolveComputedUncached
		}
		o.metrics.ObserveResolve(resource, outcome)
		return res, nil
	}
}

func (o *Orchestrator) computeAndStore(ctx context.Context, key string, compute ComputeFunc, ttl time.Duration) (res Result, err error) {
	ctx, cancel := context.WithTimeout(ctx, o.computeTimeout)
	defer cancel()
	logger := o.requestLogger(ctx, key)

	// A panic inside a flight would otherwise be re-raised on a fresh
	// goroutine and take the process down.
	defer func() {
		if p := recover(); p != nil {
			logger.Error("compute panicked", slog.Any("panic", p))
			res, err = Result{}, &ComputationError{Key: key, Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	start := time.Now()
	value, err := compute(ctx)
	o.metrics.ObserveCompute(ResourceOf(key), time.Since(start))
	if err != nil {
		return Result{}, &ComputationError{Key: key, Err: err}
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return Result{}, &ComputationError{Key: key, Err: fmt.Errorf("encode result: %w", err)}
	}

	stored := true
	if err := o.store.Set(ctx, key, payload, ttl); err != nil {
		stored = false
		logger.Error("cache store failed", slog.Any("error", err), slog.Duration("ttl", ttl))
	} else {
		logger.Debug("cache stored", slog.Duration("ttl", ttl))
	}
	return Result{Value: payload, Source: SourceComputed, Stored: stored}, nil
}

// Invalidate removes key from the store.
func (o *Orchestrator) Invalidate(ctx context.Context, key string) error {
	return o.store.Delete(ctx, key)
}

func (o *Orchestrator) requestLogger(ctx context.Context, key string) *slog.Logger {
	logger := o.logger.With(slog.String("cache_key", key))
	if id := logging.CorrelationID(ctx); id != "" {
		logger = logger.With(slog.String("correlation_id", id))
	}
	return logger
}
