package handlers

import (
	"context"
	"net/http"
	"time"

	"achieveit/internal/logger"

	"go.uber.org/zap"
)

const serviceName = "achieveit"

type HealthHandler struct {
	Store HealthChecker
}

func NewHealthHandler(store HealthChecker) HealthHandler {
	return HealthHandler{Store: store}
}

func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP: Health check")

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.Store.HealthCheck(ctx); err != nil {
		logger.Warn("HTTP: store is unhealthy", zap.Error(err))
		responseWithJSON(w, http.StatusServiceUnavailable,
			toPayload("status", "unavailable"),
			toPayload("service", serviceName),
		)
		return
	}

	responseWithJSON(w, http.StatusOK,
		toPayload("status", "ok"),
		toPayload("service", serviceName),
	)
}
