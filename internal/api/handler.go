// Package api serves the pitwall HTTP/JSON endpoints. Read-heavy resources
// go through the response cache orchestrator; admin routes manage the cache
// and season lineups.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/l0p7/pitwall/internal/expr"
	"github.com/l0p7/pitwall/internal/layouts"
	"github.com/l0p7/pitwall/internal/metrics"
	"github.com/l0p7/pitwall/internal/respcache"
	"github.com/l0p7/pitwall/internal/stats"
)

// DataSource is the read model behind every resource. Lookups that match
// nothing return an error wrapping store.ErrNotFound.
type DataSource interface {
	Ping(ctx context.Context) error
	Seasons(ctx context.Context) ([]string, error)
	Season(ctx context.Context, season string) (stats.Season, error)
	SeasonProgress(ctx context.Context, season string) (total, completed int, err error)
	Races(ctx context.Context, season string) ([]string, error)
	RaceID(ctx context.Context, season, trackSlug string) (int64, error)
	RaceResults(ctx context.Context, raceID int64) ([]stats.RaceResult, error)
	SeasonResults(ctx context.Context, season string) ([]stats.RaceResult, error)
	RaceEntrants(ctx context.Context, raceID int64) ([]stats.Entrant, error)
	Laps(ctx context.Context, raceID int64, session string) ([]stats.Lap, error)
	Schedule(ctx context.Context, season string) ([]stats.ScheduleEntry, error)
	FullSchedule(ctx context.Context) ([]stats.ScheduleEntry, error)
	Tracks(ctx context.Context) ([]stats.TrackInfo, error)
	Track(ctx context.Context, slug string) (stats.TrackInfo, error)
	TrackResults(ctx context.Context, slug string) ([]stats.SeasonRaceResult, error)
	DriverResults(ctx context.Context, slug string) ([]stats.DriverRaceResult, error)
	Drivers(ctx context.Context) ([]string, error)
	Teams(ctx context.Context) ([]stats.Team, error)
	Lineups(ctx context.Context, season string) ([]stats.Lineup, error)
	AddLineup(ctx context.Context, season, driver, team string) (stats.Lineup, error)
	DeleteLineup(ctx context.Context, id int64) error
}

// LayoutSource looks up circuit drawings.
type LayoutSource interface {
	Get(slug string) (layouts.Layout, error)
}

// Config wires the handler's collaborators.
type Config struct {
	Data       DataSource
	Cache      *respcache.Orchestrator
	CacheAdmin respcache.Admin
	Durations  respcache.Durations
	Seasons    *expr.SeasonRules
	// CurrentSeason feeds the season rules.
	CurrentSeason int
	Layouts       LayoutSource
	Logger        *slog.Logger
	Metrics       *metrics.Recorder
	// AdminToken guards admin routes when non-empty.
	AdminToken        string
	CorrelationHeader string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Handler holds the request handlers.
type Handler struct {
	data              DataSource
	cache             *respcache.Orchestrator
	admin             respcache.Admin
	durations         respcache.Durations
	seasons           *expr.SeasonRules
	currentSeason     int
	layouts           LayoutSource
	logger            *slog.Logger
	metrics           *metrics.Recorder
	adminToken        string
	correlationHeader string
	now               func() time.Time
}

// New builds a Handler from cfg, filling defaults for optional parts.
func New(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cache := cfg.Cache
	if cache == nil {
		cache = respcache.NewOrchestrator(respcache.OrchestratorConfig{
			Store:   respcache.NewMemory(),
			Logger:  logger,
			Metrics: cfg.Metrics,
		})
	}
	admin := cfg.CacheAdmin
	if admin == nil {
		if a, ok := cache.Store().(respcache.Admin); ok {
			admin = a
		}
	}
	seasons := cfg.Seasons
	if seasons == nil {
		// Left nil if the defaults fail to compile; seasonInfo reports it.
		seasons, _ = expr.NewSeasonRules("", "")
	}
	header := cfg.CorrelationHeader
	if header == "" {
		header = "X-Request-ID"
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{
		data:              cfg.Data,
		cache:             cache,
		admin:             admin,
		durations:         cfg.Durations,
		seasons:           seasons,
		currentSeason:     cfg.CurrentSeason,
		layouts:           cfg.Layouts,
		logger:            logger.With(slog.String("agent", "api")),
		metrics:           cfg.Metrics,
		adminToken:        cfg.AdminToken,
		correlationHeader: header,
		now:               now,
	}
}

// Routes mounts every endpoint under /api on a fresh router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.correlation)
	r.Use(h.observe)

	r.Route("/api", func(r chi.Router) {
		r.Get("/seasons", h.listSeasons)
		r.Get("/seasons/{season}", h.seasonInfo)
		r.Get("/races", h.listRaces)
		r.Get("/race-info", h.raceInfo)
		r.Get("/results/{season}/{race}", h.raceResults)
		r.Get("/lap-data", h.lapData)
		r.Get("/fastest-laps", h.fastestLaps)
		r.Get("/session-stats", h.sessionStats)
		r.Get("/track-dominance", h.trackDominance)
		r.Get("/telemetry", h.telemetry)
		r.Get("/standings", h.standings)

		r.Get("/schedule", h.schedule)
		r.Get("/schedule/next", h.nextRace)
		r.Get("/schedule/last", h.lastRace)

		r.Get("/tracks", h.listTracks)
		r.Get("/tracks/{track}", h.trackDetail)
		r.Get("/track-layouts/{circuit}", h.trackLayout)

		r.Get("/drivers", h.listDrivers)
		r.Get("/drivers/{driver}", h.driverProfile)
		r.Get("/teams", h.listTeams)
		r.Get("/lineups", h.listLineups)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAdmin)
			r.Post("/lineups", h.addLineup)
			r.Delete("/lineups/{id}", h.deleteLineup)

			r.Get("/cache", h.cacheKeys)
			r.Post("/cache/clear", h.clearCache)
			r.Get("/cache/selftest", h.cacheSelfTest)
		})
	})
	r.Get("/healthz", h.health)
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]any{"status": "ok"}
	if h.data != nil {
		if err := h.data.Ping(r.Context()); err != nil {
			h.requestLogger(r).Warn("database ping failed", slog.Any("error", err))
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["database"] = "unavailable"
		} else {
			body["database"] = "ok"
		}
	}
	if avail, ok := h.admin.(respcache.Availability); ok {
		body["cache"] = cacheState(avail.Available())
	}
	writeJSON(w, status, body)
}

func cacheState(available bool) string {
	if available {
		return "ok"
	}
	return "unavailable"
}
