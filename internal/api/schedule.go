package api

import (
	"fmt"
	"net/http"

	"github.com/l0p7/pitwall/internal/stats"
)

type scheduleResponse struct {
	Schedule []stats.ScheduleEntry `json:"schedule"`
}

// schedule is served live so status labels track the current date. With
// both season and track it answers the start slot of that one race.
func (h *Handler) schedule(w http.ResponseWriter, r *http.Request) {
	season, err := optionalQueryParam(r, "season")
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	track, err := optionalQueryParam(r, "track")
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	if track != "" && season == "" {
		h.writeFailure(w, r, fmt.Errorf("%w: season is required with track", errMissingParameter))
		return
	}
	entries, err := h.data.Schedule(r.Context(), season)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	if track != "" {
		writeJSON(w, http.StatusOK, stats.RaceSlotFor(entries, track))
		return
	}
	today := stats.Today(h.now())
	writeJSON(w, http.StatusOK, scheduleResponse{Schedule: stats.LabelSchedule(entries, today)})
}

func (h *Handler) nextRace(w http.ResponseWriter, r *http.Request) {
	entries, err := h.data.FullSchedule(r.Context())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	next, ok := stats.NextRace(entries, stats.Today(h.now()))
	if !ok {
		h.writeFailure(w, r, fmt.Errorf("%w: schedule is empty", errNotFound))
		return
	}
	writeJSON(w, http.StatusOK, next)
}

func (h *Handler) lastRace(w http.ResponseWriter, r *http.Request) {
	entries, err := h.data.FullSchedule(r.Context())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	last, ok := stats.LastRace(entries, stats.Today(h.now()))
	if !ok {
		h.writeFailure(w, r, fmt.Errorf("%w: no completed races", errNotFound))
		return
	}
	last.Status = stats.RaceCompleted
	writeJSON(w, http.StatusOK, last)
}
