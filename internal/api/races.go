package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/l0p7/pitwall/internal/expr"
	"github.com/l0p7/pitwall/internal/respcache"
	"github.com/l0p7/pitwall/internal/stats"
)

// DefaultSession is the lap data session used when none is requested.
const DefaultSession = "race"

func (h *Handler) listSeasons(w http.ResponseWriter, r *http.Request) {
	h.serveCached(w, r, respcache.SeasonsKey(), respcache.Seasons, func(ctx context.Context) (any, error) {
		return h.data.Seasons(ctx)
	})
}

func (h *Handler) seasonInfo(w http.ResponseWriter, r *http.Request) {
	season, err := pathParam(r, "season")
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	if season == stats.OverallSeason {
		writeJSON(w, http.StatusOK, stats.OverallSeasonInfo())
		return
	}
	number, err := strconv.Atoi(season)
	if err != nil {
		h.writeFailure(w, r, fmt.Errorf("%w: season must be numeric", errInvalidParameter))
		return
	}

	ctx := r.Context()
	row, err := h.data.Season(ctx, season)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	total, completed, err := h.data.SeasonProgress(ctx, season)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	if h.seasons == nil {
		h.writeFailure(w, r, fmt.Errorf("season rules unavailable"))
		return
	}
	status, err := h.seasons.Classify(expr.SeasonFacts{
		Season:    number,
		Current:   h.currentSeason,
		Completed: completed,
		Total:     total,
	})
	if err != nil {
		h.writeFailure(w, r, fmt.Errorf("classify season %s: %w", season, err))
		return
	}
	writeJSON(w, http.StatusOK, stats.DescribeSeason(row, string(status)))
}

func (h *Handler) listRaces(w http.ResponseWriter, r *http.Request) {
	season, err := queryParam(r, "season")
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.serveCached(w, r, respcache.RacesKey(season), respcache.Races, func(ctx context.Context) (any, error) {
		return h.data.Races(ctx, season)
	})
}

// seasonAndRace reads the season and raceSlug query parameters.
func seasonAndRace(r *http.Request) (string, string, error) {
	season, err := queryParam(r, "season")
	if err != nil {
		return "", "", err
	}
	race, err := queryParam(r, "raceSlug")
	if err != nil {
		return "", "", err
	}
	return season, race, nil
}

func (h *Handler) raceInfo(w http.ResponseWriter, r *http.Request) {
	season, race, err := seasonAndRace(r)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.serveCached(w, r, respcache.RaceInfoKey(season, race), respcache.Races, func(ctx context.Context) (any, error) {
		id, err := h.data.RaceID(ctx, season, race)
		if err != nil {
			return nil, err
		}
		rows, err := h.data.RaceResults(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("%w: no results for %s/%s", errNotFound, season, race)
		}
		return stats.SummarizeRace(rows), nil
	})
}

func (h *Handler) raceResults(w http.ResponseWriter, r *http.Request) {
	season, err := pathParam(r, "season")
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	race, err := pathParam(r, "race")
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.serveCached(w, r, respcache.ResultsKey(season, race), respcache.Races, func(ctx context.Context) (any, error) {
		id, err := h.data.RaceID(ctx, season, race)
		if err != nil {
			return nil, err
		}
		rows, err := h.data.RaceResults(ctx, id)
		if err != nil {
			return nil, err
		}
		return stats.ClassifyResults(rows), nil
	})
}

func (h *Handler) lapData(w http.ResponseWriter, r *http.Request) {
	season, race, session, err := sessionParams(r)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.serveCached(w, r, respcache.LapDataKey(season, race, session), respcache.LapData, func(ctx context.Context) (any, error) {
		return h.loadSession(ctx, season, race, session)
	})
}

type standingsResponse struct {
	Season         string                  `json:"season"`
	RemainingRaces int                     `json:"remainingRaces"`
	Drivers        []stats.StandingOutlook `json:"drivers"`
}

func (h *Handler) standings(w http.ResponseWriter, r *http.Request) {
	season, err := queryParam(r, "season")
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	number, err := strconv.Atoi(season)
	if err != nil {
		h.writeFailure(w, r, fmt.Errorf("%w: season must be numeric", errInvalidParameter))
		return
	}
	limit, err := intQueryParam(r, "limit", stats.DefaultStandingsLimit)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	limit = min(limit, stats.MaxStandingsLimit)
	h.serveCached(w, r, respcache.StandingsKey(season, limit), respcache.ShortCache, func(ctx context.Context) (any, error) {
		results, err := h.data.SeasonResults(ctx, season)
		if err != nil {
			return nil, err
		}
		total, completed, err := h.data.SeasonProgress(ctx, season)
		if err != nil {
			return nil, err
		}
		byRace := make(map[int64][]stats.RaceResult)
		for _, row := range results {
			byRace[row.RaceID] = append(byRace[row.RaceID], row)
		}
		fastest := make(map[int64][]string, len(byRace))
		for id, rows := range byRace {
			fastest[id] = stats.FastestLapDrivers(rows)
		}
		remaining := max(total-completed, 0)
		table := stats.ComputeStandings(results, fastest, number, limit)
		return standingsResponse{
			Season:         season,
			RemainingRaces: remaining,
			Drivers:        stats.ChampionshipOutlook(table, remaining, stats.MaxPointsPerRace),
		}, nil
	})
}
