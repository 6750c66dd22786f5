package http

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-ilq/internal/syncx"
)

// EventsHandler serves GET /events?after=&limit= for sites replicating
// attempt history.
func EventsHandler(events *syncx.EventRepo, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		after, _ := strconv.ParseInt(q.Get("after"), 10, 64)
		limit, _ := strconv.Atoi(q.Get("limit"))
		if limit > 1000 {
			limit = 1000
		}
		out, err := events.Since(r.Context(), after, limit)
		if err != nil {
			log.Error("read events", zap.Error(err))
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		if out == nil {
			out = []syncx.Event{}
		}
		respondJSON(w, http.StatusOK, out)
	}
}
