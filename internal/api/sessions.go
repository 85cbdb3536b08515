package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/l0p7/pitwall/internal/respcache"
	"github.com/l0p7/pitwall/internal/stats"
)

// sessionParams reads season, raceSlug and the optional session, which
// defaults to DefaultSession.
func sessionParams(r *http.Request) (season, race, session string, err error) {
	season, race, err = seasonAndRace(r)
	if err != nil {
		return "", "", "", err
	}
	session, err = optionalQueryParam(r, "session")
	if err != nil {
		return "", "", "", err
	}
	if session == "" {
		session = DefaultSession
	}
	return season, race, session, nil
}

// loadSession joins a session's laps with the race entrants and teams.
func (h *Handler) loadSession(ctx context.Context, season, race, session string) (stats.LapData, error) {
	id, err := h.data.RaceID(ctx, season, race)
	if err != nil {
		return stats.LapData{}, err
	}
	teams, err := h.data.Teams(ctx)
	if err != nil {
		return stats.LapData{}, err
	}
	entrants, err := h.data.RaceEntrants(ctx, id)
	if err != nil {
		return stats.LapData{}, err
	}
	laps, err := h.data.Laps(ctx, id, session)
	if err != nil {
		return stats.LapData{}, err
	}
	return stats.BuildLapData(id, teams, entrants, laps), nil
}

type fastestLapsResponse struct {
	Season  string                  `json:"season"`
	Race    string                  `json:"raceSlug"`
	Session string                  `json:"session"`
	Laps    []stats.FastestLapEntry `json:"fastestLaps"`
}

func (h *Handler) fastestLaps(w http.ResponseWriter, r *http.Request) {
	season, race, session, err := sessionParams(r)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.serveCached(w, r, respcache.FastestLapsKey(season, race, session), respcache.FastestLaps, func(ctx context.Context) (any, error) {
		data, err := h.loadSession(ctx, season, race, session)
		if err != nil {
			return nil, err
		}
		return fastestLapsResponse{
			Season:  season,
			Race:    race,
			Session: session,
			Laps:    stats.RankFastestLaps(data.LapData),
		}, nil
	})
}

func (h *Handler) sessionStats(w http.ResponseWriter, r *http.Request) {
	season, race, session, err := sessionParams(r)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.serveCached(w, r, respcache.SessionStatsKey(season, race, session), respcache.GeneralStats, func(ctx context.Context) (any, error) {
		data, err := h.loadSession(ctx, season, race, session)
		if err != nil {
			return nil, err
		}
		return stats.SummarizeSession(data.LapData), nil
	})
}

func (h *Handler) trackDominance(w http.ResponseWriter, r *http.Request) {
	season, race, session, err := sessionParams(r)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.serveCached(w, r, respcache.DominanceKey(season, race, session), respcache.TrackDominance, func(ctx context.Context) (any, error) {
		data, err := h.loadSession(ctx, season, race, session)
		if err != nil {
			return nil, err
		}
		if len(data.LapData) == 0 {
			return nil, fmt.Errorf("%w: no laps for %s/%s/%s", errNotFound, season, race, session)
		}
		return stats.LapDominance(data.LapData), nil
	})
}

func (h *Handler) telemetry(w http.ResponseWriter, r *http.Request) {
	season, race, session, err := sessionParams(r)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	driver, err := queryParam(r, "driver")
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	driver = strings.ToLower(driver)
	lap, err := intQueryParam(r, "lap", 0)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	lapSegment := ""
	if lap > 0 {
		lapSegment = strconv.Itoa(lap)
	}
	key := respcache.TelemetryKey(season, race, session, lapSegment, driver)
	h.serveCached(w, r, key, respcache.Telemetry, func(ctx context.Context) (any, error) {
		data, err := h.loadSession(ctx, season, race, session)
		if err != nil {
			return nil, err
		}
		trace, ok := stats.TraceDriver(data.LapData, driver, lap)
		if !ok {
			return nil, fmt.Errorf("%w: no laps for %s in %s/%s/%s", errNotFound, driver, season, race, session)
		}
		return trace, nil
	})
}

func (h *Handler) driverProfile(w http.ResponseWriter, r *http.Request) {
	driver, err := pathParam(r, "driver")
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	driver = strings.ToLower(driver)
	h.serveCached(w, r, respcache.DriverProfileKey(driver), respcache.GeneralStats, func(ctx context.Context) (any, error) {
		rows, err := h.data.DriverResults(ctx, driver)
		if err != nil {
			return nil, err
		}
		return stats.BuildDriverProfile(rows), nil
	})
}
