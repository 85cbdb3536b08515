package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/l0p7/pitwall/internal/respcache"
)

const sampleKeyCount = 10

// Clear types accepted by POST /api/cache/clear.
const (
	clearAll            = "all"
	clearRaces          = "races"
	clearLapData        = "lap-data"
	clearFastestLaps    = "fastest-laps"
	clearTelemetry      = "telemetry"
	clearGeneralStats   = "general-stats"
	clearTrackDominance = "track-dominance"
	clearRaceData       = "race-data"
	clearPattern        = "pattern"
)

// sessionResources maps the clear types scoped by season, race and session
// to their key resource.
var sessionResources = map[string]string{
	clearLapData:        respcache.ResourceLapData,
	clearFastestLaps:    respcache.ResourceFastest,
	clearTelemetry:      respcache.ResourceTelemetry,
	clearTrackDominance: respcache.ResourceDominance,
}

type cacheKeysResponse struct {
	Keys    []string `json:"keys"`
	Count   int      `json:"count"`
	Pattern string   `json:"pattern"`
}

type cacheInfoResponse struct {
	Available  bool              `json:"available"`
	Size       int64             `json:"size"`
	TotalKeys  int               `json:"totalKeys"`
	KeysByType map[string]int    `json:"keysByType"`
	SampleKeys []string          `json:"sampleKeys"`
	Durations  map[string]string `json:"durations"`
}

func (h *Handler) cacheKeys(w http.ResponseWriter, r *http.Request) {
	if h.admin == nil {
		writeError(w, http.StatusServiceUnavailable, "cache administration unavailable")
		return
	}
	ctx := r.Context()
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		pattern = "*"
	}
	if r.URL.Query().Get("info") != "true" {
		keys, err := h.admin.Keys(ctx, pattern)
		if err != nil {
			h.writeFailure(w, r, err)
			return
		}
		sort.Strings(keys)
		writeJSON(w, http.StatusOK, cacheKeysResponse{Keys: keys, Count: len(keys), Pattern: pattern})
		return
	}

	keys, err := h.admin.Keys(ctx, "*")
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	size, err := h.admin.Size(ctx)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	sort.Strings(keys)
	info := cacheInfoResponse{
		Available:  true,
		Size:       size,
		TotalKeys:  len(keys),
		KeysByType: make(map[string]int),
		SampleKeys: keys[:min(len(keys), sampleKeyCount)],
		Durations:  make(map[string]string),
	}
	if avail, ok := h.admin.(respcache.Availability); ok {
		info.Available = avail.Available()
	}
	for _, key := range keys {
		info.KeysByType[respcache.ResourceOf(key)]++
	}
	for class, ttl := range h.durations.Table() {
		info.Durations[class] = ttl.String()
	}
	writeJSON(w, http.StatusOK, info)
}

type clearRequest struct {
	Type    string `json:"type"`
	Season  string `json:"season"`
	Race    string `json:"race"`
	Session string `json:"session"`
	Pattern string `json:"pattern"`
}

type clearResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Cleared   int       `json:"cleared"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *Handler) clearCache(w http.ResponseWriter, r *http.Request) {
	if h.admin == nil {
		writeError(w, http.StatusServiceUnavailable, "cache administration unavailable")
		return
	}
	req := clearRequest{Type: clearAll}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	for name, value := range map[string]string{"season": req.Season, "race": req.Race, "session": req.Session} {
		if _, err := checkParam(name, value, false); err != nil {
			h.writeFailure(w, r, err)
			return
		}
	}

	ctx := r.Context()
	var (
		cleared int
		message string
	)
	switch req.Type {
	case clearAll, "":
		err = h.admin.Clear(ctx)
		message = "cleared entire cache"
	case clearRaces:
		if req.Season != "" {
			cleared, err = h.admin.DeletePattern(ctx, respcache.RacesKey(req.Season))
			message = "cleared races cache for season " + req.Season
		} else {
			cleared, err = h.admin.DeletePattern(ctx, respcache.PatternFor(respcache.ResourceRaces))
			message = "cleared races cache"
		}
	case clearLapData, clearFastestLaps, clearTelemetry, clearTrackDominance:
		pattern := sessionPattern(sessionResources[req.Type], req)
		cleared, err = h.admin.DeletePattern(ctx, pattern)
		message = "cleared " + req.Type + " cache matching " + pattern
	case clearGeneralStats:
		pattern := sessionPattern(respcache.ResourceStats, req)
		cleared, err = h.admin.DeletePattern(ctx, pattern)
		if err == nil && req.Season == "" {
			var profiles int
			profiles, err = h.admin.DeletePattern(ctx, respcache.PatternFor(respcache.ResourceDriver))
			cleared += profiles
		}
		message = "cleared general stats cache matching " + pattern
	case clearRaceData:
		if req.Season == "" || req.Race == "" {
			writeError(w, http.StatusBadRequest, "missing parameter: season and race are required for race-data")
			return
		}
		cleared, err = h.clearRace(r, req.Season, req.Race, req.Session)
		message = fmt.Sprintf("cleared all data for season %s, race %s", req.Season, req.Race)
	case clearPattern:
		if req.Pattern == "" {
			writeError(w, http.StatusBadRequest, "missing parameter: pattern is required")
			return
		}
		cleared, err = h.admin.DeletePattern(ctx, req.Pattern)
		message = "cleared cache matching pattern " + req.Pattern
	default:
		writeError(w, http.StatusBadRequest, "invalid cache clear type")
		return
	}
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.requestLogger(r).Info("cache cleared", slog.String("type", req.Type), slog.Int("cleared", cleared))
	writeJSON(w, http.StatusOK, clearResponse{
		Success:   true,
		Message:   message,
		Cleared:   cleared,
		Timestamp: h.now().UTC(),
	})
}

// sessionPattern narrows resource to the request's season, race and session.
// Without a season every key of resource matches.
func sessionPattern(resource string, req clearRequest) string {
	if req.Season == "" {
		return respcache.PatternFor(resource)
	}
	if resource == respcache.ResourceTelemetry {
		return respcache.PatternFor(resource, req.Season, orAny(req.Race), orAny(req.Session))
	}
	return respcache.Key(resource, req.Season, orAny(req.Race), orAny(req.Session))
}

// clearRace drops every cached resource derived from one race, including the
// season's standings and the driver profiles it feeds.
func (h *Handler) clearRace(r *http.Request, season, race, session string) (int, error) {
	ctx := r.Context()
	sessionKey := func(resource string) string {
		return respcache.Key(resource, season, race, orAny(session))
	}
	patterns := []string{
		respcache.RacesKey(season),
		respcache.RaceInfoKey(season, race),
		respcache.ResultsKey(season, race),
		sessionKey(respcache.ResourceLapData),
		sessionKey(respcache.ResourceFastest),
		sessionKey(respcache.ResourceStats),
		sessionKey(respcache.ResourceDominance),
		respcache.PatternFor(respcache.ResourceTelemetry, season, race, orAny(session)),
		respcache.PatternFor(respcache.ResourceStandings, season),
		respcache.PatternFor(respcache.ResourceDriver),
	}
	total := 0
	var errs []error
	for _, pattern := range patterns {
		n, err := h.admin.DeletePattern(ctx, pattern)
		total += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	return total, errors.Join(errs...)
}

func orAny(value string) string {
	if value == "" {
		return "*"
	}
	return value
}

type selfTestResponse struct {
	Working bool   `json:"working"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// cacheSelfTest round-trips a short-lived key through the store.
func (h *Handler) cacheSelfTest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store := h.cache.Store()
	key := respcache.Key("selftest", uuid.NewString())
	payload, err := json.Marshal(map[string]any{"test": true, "timestamp": h.now().UTC()})
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	fail := func(step string, err error) {
		h.requestLogger(r).Warn("cache self test failed", slog.String("step", step), slog.Any("error", err))
		writeJSON(w, http.StatusOK, selfTestResponse{Working: false, Message: "cache " + step + " failed", Error: err.Error()})
	}
	if err := store.Set(ctx, key, payload, 10*time.Second); err != nil {
		fail("set", err)
		return
	}
	got, found, err := store.Get(ctx, key)
	if err != nil {
		fail("get", err)
		return
	}
	if err := store.Delete(ctx, key); err != nil {
		fail("delete", err)
		return
	}
	if !found || !bytes.Equal(got, payload) {
		writeJSON(w, http.StatusOK, selfTestResponse{Working: false, Message: "cache returned a different value"})
		return
	}
	writeJSON(w, http.StatusOK, selfTestResponse{Working: true, Message: "cache is working"})
}
