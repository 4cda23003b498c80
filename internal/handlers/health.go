package handlers

import (
	"net/http"
	"time"

	"github.com/azimhamza/safe-replies-backend-sub001/internal/database"
)

// Health reports liveness plus the state of each backing store.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	checks := map[string]string{"mongodb": "ok", "postgres": "ok", "redis": "ok"}
	healthy := true

	if database.Client != nil {
		if err := database.Client.Ping(ctx, nil); err != nil {
			checks["mongodb"] = err.Error()
			healthy = false
		}
	}
	if database.PostgresDB != nil {
		if err := database.PostgresDB.PingContext(ctx); err != nil {
			checks["postgres"] = err.Error()
			healthy = false
		}
	}
	if h.Redis != nil {
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]interface{}{
		"healthy": healthy,
		"time":    time.Now().UTC(),
		"checks":  checks,
	})
}
