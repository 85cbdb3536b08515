package respcache

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

var (
	// ErrInvalidArgument reports a malformed key or a non-positive TTL.
	ErrInvalidArgument = errors.New("respcache: invalid argument")
	// ErrCacheUnavailable reports a backend that could not be reached.
	ErrCacheUnavailable = errors.New("respcache: cache unavailable")
	// ErrWriteDropped reports a write the backend declined to keep.
	ErrWriteDropped = errors.New("respcache: write dropped")
)

// Entry is the envelope persisted by backends that cannot expire values on
// their own schedule. Entries are always replaced wholesale.
type Entry struct {
	Value     []byte    `json:"value"`
	StoredAt  time.Time `json:"storedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (e Entry) expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Store is the key/value contract shared by every response cache backend.
// Get reports a hit only for present, unexpired entries.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Admin is implemented by stores that support bulk inspection and invalidation.
// Patterns use glob syntax where '*' matches any run of characters.
type Admin interface {
	DeletePattern(ctx context.Context, pattern string) (int, error)
	Keys(ctx context.Context, pattern string) ([]string, error)
	Clear(ctx context.Context) error
	Size(ctx context.Context) (int64, error)
	Close(ctx context.Context) error
}

// Backend is a store that also exposes the admin surface.
type Backend interface {
	Store
	Admin
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: key required", ErrInvalidArgument)
	}
	return nil
}

func validateTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("%w: ttl must be positive, got %s", ErrInvalidArgument, ttl)
	}
	return nil
}

func validateSet(key string, ttl time.Duration) error {
	if err := validateKey(key); err != nil {
		return err
	}
	return validateTTL(ttl)
}

// matchPattern reports whether key matches the glob. An empty pattern matches
// everything.
func matchPattern(pattern, key string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	ok, err := path.Match(pattern, key)
	return err == nil && ok
}

func cloneBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
