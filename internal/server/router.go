package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewHandler mounts the API beside the metrics endpoint. A nil metrics
// handler leaves /metrics unrouted.
func NewHandler(api http.Handler, metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
	if api == nil {
		api = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "api unavailable", http.StatusServiceUnavailable)
		})
	}
	r.Mount("/", api)
	return r
}
