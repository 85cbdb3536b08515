package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/l0p7/pitwall/internal/api"
	"github.com/l0p7/pitwall/internal/config"
	"github.com/l0p7/pitwall/internal/expr"
	"github.com/l0p7/pitwall/internal/layouts"
	"github.com/l0p7/pitwall/internal/logging"
	"github.com/l0p7/pitwall/internal/metrics"
	"github.com/l0p7/pitwall/internal/respcache"
	"github.com/l0p7/pitwall/internal/server"
	"github.com/l0p7/pitwall/internal/store"
)

type configLoader interface {
	Load(ctx context.Context) (config.Config, error)
}

type runnableServer interface {
	Run(ctx context.Context) error
	OnShutdown(name string, fn server.CloseFunc)
}

var (
	newConfigLoader = func(envPrefix, file string) configLoader {
		return config.NewLoader(envPrefix, file)
	}
	newHTTPServer = func(cfg config.Config, logger *slog.Logger, handler http.Handler) (runnableServer, error) {
		return server.New(cfg, logger, handler)
	}
	openDataSource = openPostgres
)

func main() {
	var (
		configFile = flag.String("config", "", "path to server configuration file")
		envPrefix  = flag.String("env-prefix", "PITWALL", "environment variable prefix")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *envPrefix, *configFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, envPrefix, configFile string) error {
	cfg, err := newConfigLoader(envPrefix, configFile).Load(ctx)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Server.Logging)
	if err != nil {
		return fmt.Errorf("configure logger: %w", err)
	}

	durations, err := respcache.NewDurations(cfg.Server.Cache.Durations)
	if err != nil {
		return fmt.Errorf("cache durations: %w", err)
	}
	seasonRules, err := expr.NewSeasonRules(cfg.Seasons.FinishedRule, cfg.Seasons.ActiveRule)
	if err != nil {
		return fmt.Errorf("season rules: %w", err)
	}

	promRegistry := prometheus.NewRegistry()
	metricsRecorder := metrics.NewRecorder(promRegistry)

	cacheLogger := logger.With(slog.String("agent", "cache_factory"))
	backend := buildResponseCache(ctx, cacheLogger, cfg.Server.Cache, metricsRecorder, durations.Longest())
	closeCache := func(ctx context.Context) error { return backend.Close(ctx) }

	orchestrator := respcache.NewOrchestrator(respcache.OrchestratorConfig{
		Store:          backend,
		Logger:         logger,
		Metrics:        metricsRecorder,
		ComputeTimeout: time.Duration(cfg.Server.Cache.ComputeTimeoutSeconds) * time.Second,
	})

	data, closeData, err := openDataSource(ctx, cfg.Database, logger)
	if err != nil {
		_ = closeCache(context.WithoutCancel(ctx))
		return fmt.Errorf("open database: %w", err)
	}

	catalog, watcher := loadLayouts(ctx, logger, cfg.Layouts, orchestrator)

	handler := api.New(api.Config{
		Data:              data,
		Cache:             orchestrator,
		CacheAdmin:        backend,
		Durations:         durations,
		Seasons:           seasonRules,
		CurrentSeason:     cfg.Seasons.Current,
		Layouts:           layoutSource(catalog),
		Logger:            logger,
		Metrics:           metricsRecorder,
		AdminToken:        cfg.Server.Admin.Token,
		CorrelationHeader: cfg.Server.Logging.CorrelationHeader,
	})

	srv, err := newHTTPServer(cfg, logger, server.NewHandler(handler.Routes(), metricsRecorder.Handler()))
	if err != nil {
		if watcher != nil {
			watcher.Stop()
		}
		closeData()
		_ = closeCache(context.WithoutCancel(ctx))
		return fmt.Errorf("construct server: %w", err)
	}
	srv.OnShutdown("response cache", closeCache)
	srv.OnShutdown("database", func(context.Context) error {
		closeData()
		return nil
	})
	if watcher != nil {
		srv.OnShutdown("layout watcher", func(context.Context) error {
			watcher.Stop()
			return nil
		})
	}

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server terminated unexpectedly", slog.Any("error", err))
		return err
	}
	logger.Info("server shutdown complete")
	return nil
}

func openPostgres(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (api.DataSource, func(), error) {
	if cfg.Migrate {
		if err := store.RunMigrations(ctx, cfg.DSN); err != nil {
			return nil, nil, err
		}
		logger.Info("database migrations applied")
	}
	pool, err := store.NewPool(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return store.New(pool), pool.Close, nil
}

// layoutSource keeps a nil catalog from becoming a non-nil interface.
func layoutSource(catalog *layouts.Catalog) api.LayoutSource {
	if catalog == nil {
		return nil
	}
	return catalog
}

// loadLayouts reads the layout folder and, when enabled, watches it. Edited
// circuits are dropped from the response cache so the next read recomputes.
func loadLayouts(ctx context.Context, logger *slog.Logger, cfg config.LayoutsConfig, orchestrator *respcache.Orchestrator) (*layouts.Catalog, *layouts.Watcher) {
	folder := strings.TrimSpace(cfg.Folder)
	if folder == "" {
		return nil, nil
	}
	logger = logger.With(slog.String("agent", "layouts"), slog.String("layouts_folder", folder))
	catalog := layouts.NewCatalog(folder)
	if _, err := catalog.Load(); err != nil {
		logger.Warn("layout load reported errors", slog.Any("error", err))
	}
	logger.Info("layouts loaded", slog.Int("count", len(catalog.Slugs())))
	if !cfg.Watch {
		return catalog, nil
	}

	watcher, err := catalog.Watch(ctx, func(changed []string) {
		for _, slug := range changed {
			if err := orchestrator.Invalidate(ctx, respcache.LayoutKey(slug)); err != nil {
				logger.Warn("layout cache invalidation failed", slog.String("circuit", slug), slog.Any("error", err))
			}
		}
		logger.Info("layouts reloaded", slog.Any("changed", changed))
	}, func(err error) {
		logger.Error("layout watcher error", slog.Any("error", err))
	})
	if err != nil {
		logger.Error("layout watcher setup failed", slog.Any("error", err))
		return catalog, nil
	}
	return catalog, watcher
}

// buildResponseCache assembles the configured backend. Network backends sit
// behind a circuit breaker, and any construction failure falls back to the
// in-memory store.
func buildResponseCache(ctx context.Context, logger *slog.Logger, cfg config.ServerCacheConfig, recorder *metrics.Recorder, longest time.Duration) respcache.Backend {
	guard := respcache.GuardConfig{
		MaxFailures: cfg.Breaker.MaxFailures,
		Cooldown:    time.Duration(cfg.Breaker.CooldownSeconds) * time.Second,
	}
	fallback := func(name string, err error) respcache.Backend {
		logger.Error("cache backend initialization failed", slog.String("backend", name), slog.Any("error", err))
		logger.Info("falling back to memory cache")
		return respcache.NewInstrumented(respcache.NewMemory(), "memory", recorder)
	}

	backend := normalizeBackend(cfg.Backend)
	switch backend {
	case "memory":
		logger.Info("using memory response cache")
		return respcache.NewInstrumented(respcache.NewMemory(), "memory", recorder)
	case "ristretto":
		l1, err := openLocal(backend, cfg)
		if err != nil {
			return fallback(backend, err)
		}
		logger.Info("using ristretto response cache", slog.Int64("max_cost_bytes", cfg.Ristretto.MaxCostBytes))
		return respcache.NewInstrumented(l1, backend, recorder)
	case "redis", "nats":
		remote, err := openRemote(ctx, backend, cfg, longest)
		if err != nil {
			return fallback(backend, err)
		}
		logger.Info("using shared response cache", slog.String("backend", backend))
		return respcache.NewInstrumented(respcache.NewGuarded(remote, guard, logger), backend, recorder)
	case "tiered":
		l1Name, l2Name := normalizeBackend(cfg.L1), normalizeBackend(cfg.L2)
		l1, err := openLocal(l1Name, cfg)
		if err != nil {
			return fallback("tiered l1 "+l1Name, err)
		}
		l1 = respcache.NewInstrumented(l1, "l1_"+l1Name, recorder)
		remote, err := openRemote(ctx, l2Name, cfg, longest)
		if err != nil {
			logger.Error("tiered l2 unavailable, serving from l1 only", slog.String("backend", l2Name), slog.Any("error", err))
			return l1
		}
		l2 := respcache.NewInstrumented(respcache.NewGuarded(remote, guard, logger), "l2_"+l2Name, recorder)
		l1Expire := time.Duration(cfg.L1TTLSeconds) * time.Second
		logger.Info("using tiered response cache",
			slog.String("l1", l1Name),
			slog.String("l2", l2Name),
			slog.Duration("l1_expire", l1Expire),
		)
		return respcache.NewTiered(l1, l2, l1Expire)
	default:
		logger.Warn("unsupported cache backend, defaulting to memory", slog.String("backend", cfg.Backend))
		return respcache.NewInstrumented(respcache.NewMemory(), "memory", recorder)
	}
}

func normalizeBackend(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return "memory"
	}
	return name
}

func openLocal(name string, cfg config.ServerCacheConfig) (respcache.Backend, error) {
	switch name {
	case "memory":
		return respcache.NewMemory(), nil
	case "ristretto":
		return respcache.NewRistretto(cfg.Ristretto.MaxCostBytes)
	default:
		return nil, fmt.Errorf("unsupported local cache backend %q", name)
	}
}

func openRemote(ctx context.Context, name string, cfg config.ServerCacheConfig, longest time.Duration) (respcache.Backend, error) {
	switch name {
	case "redis":
		return respcache.NewRedis(respcache.RedisConfig{
			Address:  cfg.Redis.Address,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TLS: respcache.RedisTLSConfig{
				Enabled: cfg.Redis.TLS.Enabled,
				CAFile:  cfg.Redis.TLS.CAFile,
			},
		})
	case "nats":
		return respcache.OpenNATS(ctx, respcache.NATSConfig{
			URL:    cfg.NATS.URL,
			Bucket: cfg.NATS.Bucket,
			MaxAge: longest,
		})
	default:
		return nil, fmt.Errorf("unsupported shared cache backend %q", name)
	}
}
