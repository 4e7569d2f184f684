package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"achieveit/internal/events"
	"achieveit/internal/logger"
	"achieveit/internal/middleware"

	"go.uber.org/zap"
)

const (
	eventBuffer       = 64
	heartbeatInterval = 25 * time.Second
)

// Events streams session events to the browser as server-sent events until
// the client goes away or the session ends.
func (h *DashboardHandler) Events(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.GetSession(r.Context())
	if !ok {
		responseWithError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "You must be logged in.")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		responseWithError(w, http.StatusInternalServerError, "INTERNAL", "streaming unsupported")
		return
	}

	ch, stop := sess.Events.Listen(eventBuffer)
	defer stop()

	// Opening the controller after listening so the first widget events
	// reach this stream.
	if _, err := h.Dashboards(sess); err != nil {
		handleAppError(w, r, err, "could not open dashboard")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logger.Debug("HTTP: event stream opened", zap.String("session_id", sess.ID))
	defer logger.Debug("HTTP: event stream closed", zap.String("session_id", sess.ID))

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case e, open := <-ch:
			if !open {
				return
			}
			if err := writeEvent(w, e); err != nil {
				logger.Warn("HTTP: could not write event", zap.Error(err), zap.String("type", e.Type))
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, e events.Event) error {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data)
	return err
}
