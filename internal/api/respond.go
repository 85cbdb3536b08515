package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/l0p7/pitwall/internal/layouts"
	"github.com/l0p7/pitwall/internal/respcache"
	"github.com/l0p7/pitwall/internal/store"
)

// Cache status values reported in the X-Cache header.
const (
	cacheHit         = "HIT"
	cacheMiss        = "MISS"
	cacheMissNoStore = "MISS-NO-CACHE"
)

var (
	errMissingParameter = errors.New("missing parameter")
	errInvalidParameter = errors.New("invalid parameter")
	errNotFound         = errors.New("not found")
)

// Parameters become cache key segments, so they are limited to slug
// characters.
var paramPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeRawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeFailure maps handler and cache errors onto status codes. Anything not
// recognised is logged and reported as a 500 without detail.
func (h *Handler) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errMissingParameter), errors.Is(err, errInvalidParameter):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, errNotFound), errors.Is(err, store.ErrNotFound), errors.Is(err, layouts.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, respcache.ErrInvalidArgument):
		h.requestLogger(r).Error("invalid cache request", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		logger := h.requestLogger(r)
		if errors.Is(err, respcache.ErrComputationFailed) {
			logger.Error("computation failed", slog.Any("error", err))
		} else {
			logger.Error("request failed", slog.Any("error", err))
		}
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// serveCached answers from the response cache, computing on a miss. class
// names the duration policy entry that sets the TTL.
func (h *Handler) serveCached(w http.ResponseWriter, r *http.Request, key, class string, compute respcache.ComputeFunc) {
	ttl := h.durations.TTL(class)
	res, err := h.cache.ResolveResult(r.Context(), key, compute, ttl)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	status := cacheHit
	if res.Source == respcache.SourceComputed {
		status = cacheMiss
		if !res.Stored {
			status = cacheMissNoStore
		}
	}
	w.Header().Set("X-Cache", status)
	w.Header().Set("X-Cache-Key", key)
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int64(ttl.Seconds())))
	writeRawJSON(w, http.StatusOK, res.Value)
}

// queryParam returns a required query parameter.
func queryParam(r *http.Request, name string) (string, error) {
	return checkParam(name, r.URL.Query().Get(name), true)
}

// optionalQueryParam returns a query parameter, or "" when absent.
func optionalQueryParam(r *http.Request, name string) (string, error) {
	return checkParam(name, r.URL.Query().Get(name), false)
}

func pathParam(r *http.Request, name string) (string, error) {
	return checkParam(name, chi.URLParam(r, name), true)
}

func checkParam(name, value string, required bool) (string, error) {
	if value == "" {
		if required {
			return "", fmt.Errorf("%w: %s is required", errMissingParameter, name)
		}
		return "", nil
	}
	if !paramPattern.MatchString(value) {
		return "", fmt.Errorf("%w: %s must be a slug", errInvalidParameter, name)
	}
	return value, nil
}

func intQueryParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", errInvalidParameter, name)
	}
	return n, nil
}
