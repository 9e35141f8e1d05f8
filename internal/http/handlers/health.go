package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/wolfman30/barberia-elite/pkg/logging"
)

// Pinger checks a backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler reports liveness and the state of the session store.
type HealthHandler struct {
	store  Pinger
	logger *logging.Logger
}

// NewHealthHandler creates a health handler. store may be nil when sessions
// live in memory.
func NewHealthHandler(store Pinger, logger *logging.Logger) *HealthHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &HealthHandler{store: store, logger: logger}
}

// HealthCheck handles GET /health.
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{"status": "ok", "store": "memory"}
	status := http.StatusOK
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			h.logger.Warn("health: store ping failed", "error", err)
			response["status"] = "degraded"
			response["store"] = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			response["store"] = "ok"
		}
	}
	writeJSON(w, status, response)
}
