package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/l0p7/pitwall/internal/api"
	"github.com/l0p7/pitwall/internal/config"
	"github.com/l0p7/pitwall/internal/server"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func startMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	srv, err := miniredis.Run()
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skip("miniredis unavailable in sandbox")
		}
		require.NoError(t, err)
	}
	t.Cleanup(srv.Close)
	return srv
}

func TestBuildResponseCache(t *testing.T) {
	tests := []struct {
		name string
		cfg  func(t *testing.T) config.ServerCacheConfig
	}{
		{
			name: "defaults to memory",
			cfg: func(t *testing.T) config.ServerCacheConfig {
				return config.ServerCacheConfig{}
			},
		},
		{
			name: "constructs redis cache",
			cfg: func(t *testing.T) config.ServerCacheConfig {
				return config.ServerCacheConfig{
					Backend: "redis",
					Redis:   config.ServerRedisCacheConfig{Address: startMiniredis(t).Addr()},
				}
			},
		},
		{
			name: "falls back when redis is unreachable",
			cfg: func(t *testing.T) config.ServerCacheConfig {
				return config.ServerCacheConfig{
					Backend: "redis",
					Redis:   config.ServerRedisCacheConfig{Address: "127.0.0.1:1"},
				}
			},
		},
		{
			name: "falls back when nats url is missing",
			cfg: func(t *testing.T) config.ServerCacheConfig {
				return config.ServerCacheConfig{Backend: "nats"}
			},
		},
		{
			name: "constructs tiered cache",
			cfg: func(t *testing.T) config.ServerCacheConfig {
				return config.ServerCacheConfig{
					Backend:      "tiered",
					L1:           "memory",
					L2:           "redis",
					L1TTLSeconds: 5,
					Redis:        config.ServerRedisCacheConfig{Address: startMiniredis(t).Addr()},
				}
			},
		},
		{
			name: "unknown backend uses memory",
			cfg: func(t *testing.T) config.ServerCacheConfig {
				return config.ServerCacheConfig{Backend: "memcached"}
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			backend := buildResponseCache(ctx, newTestLogger(), tc.cfg(t), nil, time.Hour)
			require.NotNil(t, backend)
			t.Cleanup(func() {
				require.NoError(t, backend.Close(context.Background()))
			})

			require.NoError(t, backend.Set(ctx, "races:12", []byte(`["bahrain"]`), time.Minute))
			got, ok, err := backend.Get(ctx, "races:12")
			require.NoError(t, err)
			require.True(t, ok, "expected lookup to succeed")
			require.JSONEq(t, `["bahrain"]`, string(got))

			keys, err := backend.Keys(ctx, "races:*")
			require.NoError(t, err)
			require.Equal(t, []string{"races:12"}, keys)
		})
	}
}

func TestBuildResponseCacheRistretto(t *testing.T) {
	backend := buildResponseCache(context.Background(), newTestLogger(), config.ServerCacheConfig{
		Backend:   "ristretto",
		Ristretto: config.ServerRistrettoCacheConfig{MaxCostBytes: 1 << 20},
	}, nil, time.Hour)
	require.NotNil(t, backend)
	require.NoError(t, backend.Close(context.Background()))
}

func TestRunLoaderError(t *testing.T) {
	overrideConfigLoader(t, &fakeLoader{loadErr: errors.New("boom")})

	err := run(context.Background(), "PITWALL", "")
	require.ErrorContains(t, err, "load configuration")
}

func TestRunRejectsUnknownDurationClass(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Cache.Durations = map[string]string{"PODCASTS": "1h"}
	overrideConfigLoader(t, &fakeLoader{cfg: cfg})

	err := run(context.Background(), "PITWALL", "")
	require.ErrorContains(t, err, "cache durations")
}

func TestRunDatabaseError(t *testing.T) {
	overrideConfigLoader(t, &fakeLoader{cfg: testConfig()})
	overrideDataSource(t, func(context.Context, config.DatabaseConfig, *slog.Logger) (api.DataSource, func(), error) {
		return nil, nil, errors.New("connection refused")
	})

	err := run(context.Background(), "PITWALL", "")
	require.ErrorContains(t, err, "open database")
}

func TestRunServerConstructorError(t *testing.T) {
	overrideConfigLoader(t, &fakeLoader{cfg: testConfig()})
	closed := stubDataSource(t)
	overrideHTTPServer(t, func(config.Config, *slog.Logger, http.Handler) (runnableServer, error) {
		return nil, errors.New("construct failed")
	})

	err := run(context.Background(), "PITWALL", "")
	require.ErrorContains(t, err, "construct failed")
	require.True(t, *closed, "database should be released")
}

func TestRunServerRunError(t *testing.T) {
	overrideConfigLoader(t, &fakeLoader{cfg: testConfig()})
	stubDataSource(t)
	overrideHTTPServer(t, func(config.Config, *slog.Logger, http.Handler) (runnableServer, error) {
		return &stubServer{err: errors.New("run failed")}, nil
	})

	err := run(context.Background(), "PITWALL", "")
	require.ErrorContains(t, err, "run failed")
}

func TestRunWiresRoutes(t *testing.T) {
	cfg := testConfig()
	cfg.Layouts.Folder = "../examples/layouts"
	overrideConfigLoader(t, &fakeLoader{cfg: cfg})
	stubDataSource(t)

	stub := &stubServer{}
	overrideHTTPServer(t, func(_ config.Config, _ *slog.Logger, handler http.Handler) (runnableServer, error) {
		stub.handler = handler
		return stub, nil
	})

	require.NoError(t, run(context.Background(), "PITWALL", ""))
	require.NotNil(t, stub.handler)
	require.ElementsMatch(t, []string{"response cache", "database"}, stub.closers)

	rec := httptest.NewRecorder()
	stub.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/track-layouts/bahrain", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "MISS", rec.Header().Get("X-Cache"))

	rec = httptest.NewRecorder()
	stub.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "pitwall_http_requests_total")
}

func testConfig() config.Config {
	cfg := config.DefaultConfig()
	cfg.Server.Logging.Level = "error"
	return cfg
}

func overrideConfigLoader(t *testing.T, loader configLoader) {
	original := newConfigLoader
	newConfigLoader = func(string, string) configLoader { return loader }
	t.Cleanup(func() { newConfigLoader = original })
}

func overrideHTTPServer(t *testing.T, fn func(config.Config, *slog.Logger, http.Handler) (runnableServer, error)) {
	original := newHTTPServer
	newHTTPServer = fn
	t.Cleanup(func() { newHTTPServer = original })
}

func overrideDataSource(t *testing.T, fn func(context.Context, config.DatabaseConfig, *slog.Logger) (api.DataSource, func(), error)) {
	original := openDataSource
	openDataSource = fn
	t.Cleanup(func() { openDataSource = original })
}

// stubDataSource replaces the database with an unusable source and reports
// whether it was closed.
func stubDataSource(t *testing.T) *bool {
	closed := new(bool)
	overrideDataSource(t, func(context.Context, config.DatabaseConfig, *slog.Logger) (api.DataSource, func(), error) {
		return nil, func() { *closed = true }, nil
	})
	return closed
}

type fakeLoader struct {
	cfg     config.Config
	loadErr error
}

func (f *fakeLoader) Load(context.Context) (config.Config, error) {
	if f.loadErr != nil {
		return config.Config{}, f.loadErr
	}
	return f.cfg, nil
}

type stubServer struct {
	err     error
	handler http.Handler
	closers []string
}

func (s *stubServer) Run(context.Context) error {
	return s.err
}

func (s *stubServer) OnShutdown(name string, _ server.CloseFunc) {
	s.closers = append(s.closers, name)
}
