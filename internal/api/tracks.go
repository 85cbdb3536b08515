package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/l0p7/pitwall/internal/respcache"
	"github.com/l0p7/pitwall/internal/stats"
)

func (h *Handler) listTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.data.Tracks(r.Context())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tracks)
}

func (h *Handler) trackDetail(w http.ResponseWriter, r *http.Request) {
	slug, err := pathParam(r, "track")
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.serveCached(w, r, respcache.TrackKey(slug), respcache.Races, func(ctx context.Context) (any, error) {
		info, err := h.data.Track(ctx, slug)
		if err != nil {
			return nil, err
		}
		rows, err := h.data.TrackResults(ctx, slug)
		if err != nil {
			return nil, err
		}
		return stats.TrackDetail{TrackInfo: info, HistoricalResults: stats.TrackHistory(rows)}, nil
	})
}

func (h *Handler) trackLayout(w http.ResponseWriter, r *http.Request) {
	circuit, err := pathParam(r, "circuit")
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	if h.layouts == nil {
		h.writeFailure(w, r, fmt.Errorf("%w: no layouts configured", errNotFound))
		return
	}
	// Keys match the lowercase slugs the catalog reports on reload.
	circuit = strings.ToLower(circuit)
	h.serveCached(w, r, respcache.LayoutKey(circuit), respcache.TrackLayouts, func(context.Context) (any, error) {
		return h.layouts.Get(circuit)
	})
}
