package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Loader hydrates the runtime configuration while respecting env > file > default precedence.
type Loader struct {
	envPrefix string
	files     []string
}

// NewLoader prepares a config hydrator that honors the env-first contract before touching files or defaults.
func NewLoader(envPrefix string, files ...string) *Loader {
	return &Loader{
		envPrefix: envPrefix,
		files:     files,
	}
}

// canonicalKeys restores camelCase keys that env variable names cannot carry.
var canonicalKeys = map[string]string{
	"server.logging.correlationheader":     "server.logging.correlationHeader",
	"server.cache.l1ttlseconds":            "server.cache.l1TTLSeconds",
	"server.cache.computetimeoutseconds":   "server.cache.computeTimeoutSeconds",
	"server.cache.redis.tls.cafile":        "server.cache.redis.tls.caFile",
	"server.cache.ristretto.maxcostbytes":  "server.cache.ristretto.maxCostBytes",
	"server.cache.breaker.maxfailures":     "server.cache.breaker.maxFailures",
	"server.cache.breaker.cooldownseconds": "server.cache.breaker.cooldownSeconds",
	"database.maxconns":                    "database.maxConns",
	"database.minconns":                    "database.minConns",
	"database.maxconnlifetimeseconds":      "database.maxConnLifetimeSeconds",
	"seasons.finishedrule":                 "seasons.finishedRule",
	"seasons.activerule":                   "seasons.activeRule",
}

// Load assembles the effective snapshot using the documented precedence rules.
func (l *Loader) Load(ctx context.Context) (Config, error) {
	defaultCfg := DefaultConfig()
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(structToMap(defaultCfg), "."), nil); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}

	for _, path := range l.files {
		if path == "" {
			continue
		}
		select {
		case <-ctx.Done():
			return Config{}, ctx.Err()
		default:
		}
		if err := ensureFileExists(path); err != nil {
			return Config{}, err
		}
		parser, err := ParserFor(path)
		if err != nil {
			return Config{}, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return Config{}, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if l.envPrefix != "" {
		transform := func(s string) string {
			// Double underscores signal a nested path (SERVER__LISTEN__PORT -> server.listen.port).
			key := strings.TrimPrefix(s, l.envPrefix+"_")
			key = strings.ReplaceAll(key, "__", ".")
			lower := strings.ToLower(key)
			if mapped, ok := canonicalKeys[lower]; ok {
				return mapped
			}
			// Single underscores are removed so LISTEN_PORT collapses into listenport when callers
			// choose not to use double underscores for object nesting.
			key = strings.ReplaceAll(key, "_", "")
			return strings.ToLower(key)
		}
		if err := k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
			return Config{}, fmt.Errorf("config: load env: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// structToMap converts DefaultConfig into a map for the koanf confmap provider.
func structToMap(cfg Config) map[string]any {
	durations := make(map[string]any, len(cfg.Server.Cache.Durations))
	for name, value := range cfg.Server.Cache.Durations {
		durations[name] = value
	}
	return map[string]any{
		"server": map[string]any{
			"listen": map[string]any{
				"address": cfg.Server.Listen.Address,
				"port":    cfg.Server.Listen.Port,
			},
			"logging": map[string]any{
				"level":             cfg.Server.Logging.Level,
				"format":            cfg.Server.Logging.Format,
				"correlationHeader": cfg.Server.Logging.CorrelationHeader,
			},
			"admin": map[string]any{
				"token": cfg.Server.Admin.Token,
			},
			"cache": map[string]any{
				"backend":               cfg.Server.Cache.Backend,
				"l1":                    cfg.Server.Cache.L1,
				"l2":                    cfg.Server.Cache.L2,
				"l1TTLSeconds":          cfg.Server.Cache.L1TTLSeconds,
				"computeTimeoutSeconds": cfg.Server.Cache.ComputeTimeoutSeconds,
				"durations":             durations,
				"redis": map[string]any{
					"address":  cfg.Server.Cache.Redis.Address,
					"username": cfg.Server.Cache.Redis.Username,
					"password": cfg.Server.Cache.Redis.Password,
					"db":       cfg.Server.Cache.Redis.DB,
					"tls": map[string]any{
						"enabled": cfg.Server.Cache.Redis.TLS.Enabled,
						"caFile":  cfg.Server.Cache.Redis.TLS.CAFile,
					},
				},
				"ristretto": map[string]any{
					"maxCostBytes": cfg.Server.Cache.Ristretto.MaxCostBytes,
				},
				"nats": map[string]any{
					"url":    cfg.Server.Cache.NATS.URL,
					"bucket": cfg.Server.Cache.NATS.Bucket,
				},
				"breaker": map[string]any{
					"maxFailures":     cfg.Server.Cache.Breaker.MaxFailures,
					"cooldownSeconds": cfg.Server.Cache.Breaker.CooldownSeconds,
				},
			},
		},
		"database": map[string]any{
			"dsn":                    cfg.Database.DSN,
			"maxConns":               cfg.Database.MaxConns,
			"minConns":               cfg.Database.MinConns,
			"maxConnLifetimeSeconds": cfg.Database.MaxConnLifetimeSeconds,
			"migrate":                cfg.Database.Migrate,
		},
		"layouts": map[string]any{
			"folder": cfg.Layouts.Folder,
			"watch":  cfg.Layouts.Watch,
		},
		"seasons": map[string]any{
			"current":      cfg.Seasons.Current,
			"finishedRule": cfg.Seasons.FinishedRule,
			"activeRule":   cfg.Seasons.ActiveRule,
		},
	}
}
