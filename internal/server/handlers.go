package server

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds the dependencies of the plain HTTP endpoints.
type Handlers struct {
	db        Pinger
	version   string
	startedAt time.Time
}

// NewHandlers creates Handlers. db may be nil, in which case health never
// reports the database.
func NewHandlers(db Pinger, version string) *Handlers {
	return &Handlers{db: db, version: version, startedAt: time.Now()}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Postgres string `json:"postgres,omitempty"`
	Uptime   int64  `json:"uptime_seconds"`
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "healthy",
		Version: h.version,
		Uptime:  int64(time.Since(h.startedAt).Seconds()),
	}
	httpStatus := http.StatusOK

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		resp.Postgres = "connected"
		if err := h.db.Ping(ctx); err != nil {
			resp.Postgres = "disconnected"
			resp.Status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, httpStatus, resp)
}
