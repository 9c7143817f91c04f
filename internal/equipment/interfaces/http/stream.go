package http

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"restaurant-ops/internal/eventing"
)

// StreamHandler serves critical alerts and maintenance events over SSE.
type StreamHandler struct {
	bus       *eventing.Bus
	logger    *log.Logger
	heartbeat time.Duration
}

// NewStreamHandler constructs an SSE handler.
func NewStreamHandler(bus *eventing.Bus, logger *log.Logger) *StreamHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &StreamHandler{bus: bus, logger: logger, heartbeat: 30 * time.Second}
}

// ServeHTTP streams events until the client disconnects.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	alerts, cancelAlerts := h.bus.Subscribe(eventing.TopicCriticalAlert, 16)
	defer cancelAlerts()
	scheduled, cancelScheduled := h.bus.Subscribe(eventing.TopicMaintenanceScheduled, 16)
	defer cancelScheduled()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event := <-alerts:
			h.write(w, flusher, "critical_alert", event.Payload)
		case event := <-scheduled:
			h.write(w, flusher, "maintenance_scheduled", event.Payload)
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func (h *StreamHandler) write(w http.ResponseWriter, flusher http.Flusher, name string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Printf("sse: marshal failed: %v", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	flusher.Flush()
}
