package respcache

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

type NATSConfig struct {
	URL    string
	Bucket string
	// MaxAge bounds how long JetStream keeps any value. Per-entry expiry is
	// enforced from the envelope, so this only needs to cover the longest TTL.
	MaxAge time.Duration
}

type natsStore struct {
	kv   jetstream.KeyValue
	conn *nats.Conn
	now  func() time.Time
}

// OpenNATS connects to a NATS server and binds (creating when absent) the
// JetStream key/value bucket used for responses.
func OpenNATS(ctx context.Context, cfg NATSConfig) (Backend, error) {
	if cfg.URL == "" {
		return nil, errors.New("respcache: nats url required")
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "pitwall-responses"
	}
	conn, err := nats.Connect(cfg.URL, nats.Name("pitwall"), nats.Timeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("respcache: nats connect: %w: %w", ErrCacheUnavailable, err)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("respcache: jetstream: %w", err)
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: "pitwall computed responses",
		TTL:         cfg.MaxAge,
		History:     1,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("respcache: nats bucket %q: %w: %w", cfg.Bucket, ErrCacheUnavailable, err)
	}
	store := NewNATSKV(kv).(*natsStore)
	store.conn = conn
	return store, nil
}

// NewNATSKV wraps an already bound bucket. Keys are base64url encoded because
// JetStream rejects ':' in key names.
func NewNATSKV(kv jetstream.KeyValue) Backend {
	return &natsStore{kv: kv, now: time.Now}
}

func encodeNATSKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

func decodeNATSKey(name string) (string, bool) {
	raw, err := base64.RawURLEncoding.DecodeString(name)
	if err != nil {
		return "", false
	}
	return string(raw), true
}

func isNATSMissing(err error) bool {
	return errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted)
}

func (c *natsStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}
	kvEntry, err := c.kv.Get(ctx, encodeNATSKey(key))
	if err != nil {
		if isNATSMissing(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("respcache: nats get: %w: %w", ErrCacheUnavailable, err)
	}
	var entry Entry
	if err := json.Unmarshal(kvEntry.Value(), &entry); err != nil {
		return nil, false, fmt.Errorf("respcache: nats decode: %w", err)
	}
	if entry.expired(c.now()) {
		_ = c.kv.Purge(ctx, encodeNATSKey(key))
		return nil, false, nil
	}
	return entry.Value, true, nil
}

func (c *natsStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := validateSet(key, ttl); err != nil {
		return err
	}
	now := c.now()
	payload, err := json.Marshal(Entry{Value: value, StoredAt: now.UTC(), ExpiresAt: now.Add(ttl)})
	if err != nil {
		return fmt.Errorf("respcache: nats encode: %w", err)
	}
	if _, err := c.kv.Put(ctx, encodeNATSKey(key), payload); err != nil {
		return fmt.Errorf("respcache: nats put: %w: %w", ErrCacheUnavailable, err)
	}
	return nil
}

func (c *natsStore) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := c.kv.Purge(ctx, encodeNATSKey(key)); err != nil && !isNATSMissing(err) {
		return fmt.Errorf("respcache: nats delete: %w: %w", ErrCacheUnavailable, err)
	}
	return nil
}

func (c *natsStore) names(ctx context.Context) ([]string, error) {
	lister, err := c.kv.ListKeys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("respcache: nats list: %w: %w", ErrCacheUnavailable, err)
	}
	defer func() { _ = lister.Stop() }()
	var names []string
	for name := range lister.Keys() {
		names = append(names, name)
	}
	return names, nil
}

func (c *natsStore) DeletePattern(ctx context.Context, pattern string) (int, error) {
	names, err := c.names(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, name := range names {
		key, ok := decodeNATSKey(name)
		if !ok || !matchPattern(pattern, key) {
			continue
		}
		if err := c.kv.Purge(ctx, name); err != nil && !isNATSMissing(err) {
			return removed, fmt.Errorf("respcache: nats purge: %w: %w", ErrCacheUnavailable, err)
		}
		removed++
	}
	return removed, nil
}

func (c *natsStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	names, err := c.names(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(names))
	for _, name := range names {
		key, ok := decodeNATSKey(name)
		if ok && matchPattern(pattern, key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (c *natsStore) Clear(ctx context.Context) error {
	_, err := c.DeletePattern(ctx, "")
	return err
}

func (c *natsStore) Size(ctx context.Context) (int64, error) {
	names, err := c.names(ctx)
	if err != nil {
		return 0, err
	}
	return int64(len(names)), nil
}

func (c *natsStore) Close(context.Context) error {
	if c.conn != nil {
		return c.conn.Drain()
	}
	return nil
}
