package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/l0p7/pitwall/internal/respcache"
)

const maxBodyBytes = 1 << 16

func (h *Handler) listDrivers(w http.ResponseWriter, r *http.Request) {
	drivers, err := h.data.Drivers(r.Context())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, drivers)
}

func (h *Handler) listTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.data.Teams(r.Context())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	names := make([]string, 0, len(teams))
	for _, t := range teams {
		names = append(names, t.Name)
	}
	writeJSON(w, http.StatusOK, names)
}

func (h *Handler) listLineups(w http.ResponseWriter, r *http.Request) {
	season, err := queryParam(r, "season")
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.serveCached(w, r, respcache.LineupsKey(season), respcache.ShortCache, func(ctx context.Context) (any, error) {
		return h.data.Lineups(ctx, season)
	})
}

type lineupRequest struct {
	Season string `json:"season"`
	Driver string `json:"driver"`
	Team   string `json:"team"`
}

func (h *Handler) addLineup(w http.ResponseWriter, r *http.Request) {
	var req lineupRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	season, err := checkParam("season", req.Season, true)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	driver, team := strings.TrimSpace(req.Driver), strings.TrimSpace(req.Team)
	if driver == "" || team == "" {
		writeError(w, http.StatusBadRequest, "missing parameter: driver and team are required")
		return
	}
	lineup, err := h.data.AddLineup(r.Context(), season, driver, team)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.invalidate(r, respcache.LineupsKey(season))
	writeJSON(w, http.StatusCreated, lineup)
}

func (h *Handler) deleteLineup(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid parameter: id must be a positive integer")
		return
	}
	if err := h.data.DeleteLineup(r.Context(), id); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.invalidatePattern(r, respcache.PatternFor(respcache.ResourceLineups))
	w.WriteHeader(http.StatusNoContent)
}

// invalidate drops a key after a write and logs failures.
func (h *Handler) invalidate(r *http.Request, key string) {
	if err := h.cache.Invalidate(r.Context(), key); err != nil {
		h.requestLogger(r).Warn("cache invalidation failed", slog.String("cache_key", key), slog.Any("error", err))
	}
}

func (h *Handler) invalidatePattern(r *http.Request, pattern string) {
	if h.admin == nil {
		return
	}
	if _, err := h.admin.DeletePattern(r.Context(), pattern); err != nil {
		h.requestLogger(r).Warn("cache invalidation failed", slog.String("pattern", pattern), slog.Any("error", err))
	}
}
