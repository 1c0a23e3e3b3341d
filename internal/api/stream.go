package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/tremornet/tremor-monitor/internal/metrics"
)

// StreamHandler serves /api/v1/stream: Server-Sent Events carrying each
// minute's per-filter trigger/alarm summary, grounded on the teacher's
// events.go SSE handler.
type StreamHandler struct {
	bus *Broadcaster
}

// NewStreamHandler returns a StreamHandler publishing from bus.
func NewStreamHandler(bus *Broadcaster) *StreamHandler {
	return &StreamHandler{bus: bus}
}

// ServeHTTP opens an SSE connection, replays any events since
// Last-Event-ID, then streams new events as they are published.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.bus == nil {
		WriteError(w, http.StatusServiceUnavailable, "event streaming not available")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	if lastEventID := r.Header.Get("Last-Event-ID"); lastEventID != "" {
		for _, e := range h.bus.ReplaySince(lastEventID) {
			fmt.Fprintf(w, "id: %s\nevent: trigger\ndata: %s\n\n", e.ID, e.MarshalData())
		}
		flusher.Flush()
	}

	ch, cancel := h.bus.Subscribe()
	defer cancel()

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	log := hlog.FromRequest(r)
	log.Info().Msg("SSE client connected")

	for {
		select {
		case <-r.Context().Done():
			log.Info().Msg("SSE client disconnected")
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "id: %s\nevent: trigger\ndata: %s\n\n", e.ID, e.MarshalData())
			flusher.Flush()
			metrics.SSEEventsPublishedTotal.Inc()
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

// Routes registers the stream route on r.
func (h *StreamHandler) Routes(r chi.Router) {
	r.Get("/stream", h.ServeHTTP)
}
