// internal/handler/health_handler.go
package handler

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db         Pinger
	simulation bool
	logger     *zap.Logger
}

func NewHealthHandler(db Pinger, simulation bool, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{db: db, simulation: simulation, logger: logger}
}

func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		sendError(w, h.logger, http.StatusServiceUnavailable, "database unavailable", nil, nil)
		return
	}

	sendSuccess(w, h.logger, http.StatusOK, "OK", map[string]interface{}{
		"status":     "ok",
		"simulation": h.simulation,
	})
}
