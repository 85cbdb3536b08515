package respcache

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	valkey "github.com/valkey-io/valkey-go"
)

type RedisTLSConfig struct {
	Enabled bool
	CAFile  string
}

type RedisConfig struct {
	Address  string
	Username string
	Password string
	DB       int
	TLS      RedisTLSConfig
}

const redisScanBatch = 200

type redisStore struct {
	client valkey.Client
}

// NewRedis connects to a Redis-compatible server and verifies it answers PING.
// Values are written with SET PX so the server owns expiry.
func NewRedis(cfg RedisConfig) (Backend, error) {
	if cfg.Address == "" {
		return nil, errors.New("respcache: redis address required")
	}

	option := valkey.ClientOption{
		InitAddress:       []string{cfg.Address},
		Username:          cfg.Username,
		Password:          cfg.Password,
		SelectDB:          cfg.DB,
		AlwaysRESP2:       true,
		ForceSingleClient: true,
		DisableCache:      true,
	}

	if cfg.TLS.Enabled {
		tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
		if cfg.TLS.CAFile != "" {
			caData, err := os.ReadFile(cfg.TLS.CAFile)
			if err != nil {
				return nil, fmt.Errorf("respcache: read redis ca file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caData) {
				return nil, errors.New("respcache: redis ca file contains no certificates")
			}
			tlsConfig.RootCAs = pool
		}
		option.TLSConfig = tlsConfig
	}

	client, err := valkey.NewClient(option)
	if err != nil {
		return nil, fmt.Errorf("respcache: redis client: %w: %w", ErrCacheUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("respcache: redis ping: %w: %w", ErrCacheUnavailable, err)
	}

	return &redisStore{client: client}, nil
}

func (c *redisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}
	resp := c.client.Do(ctx, c.client.B().Get().Key(key).Build())
	if err := resp.Error(); err != nil {
		if errors.Is(err, valkey.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("respcache: redis get: %w: %w", ErrCacheUnavailable, err)
	}
	payload, err := resp.AsBytes()
	if err != nil {
		return nil, false, fmt.Errorf("respcache: redis get bytes: %w", err)
	}
	return payload, true, nil
}

func (c *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := validateSet(key, ttl); err != nil {
		return err
	}
	// PX rejects zero, so sub-millisecond TTLs round up.
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	cmd := c.client.B().Set().Key(key).Value(valkey.BinaryString(value)).Px(ttl).Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("respcache: redis set: %w: %w", ErrCacheUnavailable, err)
	}
	return nil
}

func (c *redisStore) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := c.client.Do(ctx, c.client.B().Del().Key(key).Build()).Error(); err != nil {
		return fmt.Errorf("respcache: redis del: %w: %w", ErrCacheUnavailable, err)
	}
	return nil
}

func (c *redisStore) DeletePattern(ctx context.Context, pattern string) (int, error) {
	keys, err := c.scan(ctx, pattern)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	removed := 0
	for start := 0; start < len(keys); start += redisScanBatch {
		end := min(start+redisScanBatch, len(keys))
		resp := c.client.Do(ctx, c.client.B().Del().Key(keys[start:end]...).Build())
		n, err := resp.AsInt64()
		if err != nil {
			return removed, fmt.Errorf("respcache: redis del pattern: %w: %w", ErrCacheUnavailable, err)
		}
		removed += int(n)
	}
	return removed, nil
}

func (c *redisStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys, err := c.scan(ctx, pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (c *redisStore) scan(ctx context.Context, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}
	seen := make(map[string]struct{})
	var keys []string
	var cursor uint64
	for {
		cmd := c.client.B().Scan().Cursor(cursor).Match(pattern).Count(redisScanBatch).Build()
		entry, err := c.client.Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("respcache: redis scan: %w: %w", ErrCacheUnavailable, err)
		}
		for _, key := range entry.Elements {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
		cursor = entry.Cursor
		if cursor == 0 {
			return keys, nil
		}
	}
}

func (c *redisStore) Clear(ctx context.Context) error {
	if err := c.client.Do(ctx, c.client.B().Flushdb().Build()).Error(); err != nil {
		return fmt.Errorf("respcache: redis flushdb: %w: %w", ErrCacheUnavailable, err)
	}
	return nil
}

func (c *redisStore) Size(ctx context.Context) (int64, error) {
	resp := c.client.Do(ctx, c.client.B().Dbsize().Build())
	size, err := resp.ToInt64()
	if err != nil {
		return 0, fmt.Errorf("respcache: redis dbsize: %w: %w", ErrCacheUnavailable, err)
	}
	return size, nil
}

func (c *redisStore) Close(context.Context) error {
	c.client.Close()
	return nil
}
