package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mesalista/venue-checkin/internal/http/response"
	"github.com/mesalista/venue-checkin/pkg/logger"
)

// Events handles GET /v1/events: a server-sent event stream of reservation
// and attendance changes for the session's business. The subscription lives
// until the client disconnects.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		response.Error(w, http.StatusInternalServerError, "streaming unsupported", response.CodeInternal)
		return
	}

	// The stream outlives the server's write timeout.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	businessID := h.businessID(r)
	sub := h.hub.Subscribe(businessID)
	defer h.hub.Unsubscribe(sub)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, open := <-sub.C:
			if !open {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				logger.ErrorContext(ctx, "failed to encode stream event",
					"error", err, "type", evt.Type)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
