package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/veil-waf/veil-edge/internal/db"
	"github.com/veil-waf/veil-edge/internal/sse"
)

// Ledger is the read side of the decision ledger used for hydration.
type Ledger interface {
	RecentDecisions(ctx context.Context, host string, limit int) ([]db.Decision, error)
	Stats(ctx context.Context, host string) (*db.Stats, error)
}

// StreamHandler serves SSE streams of live edge decisions.
type StreamHandler struct {
	hub       *sse.Hub
	ledger    Ledger
	keepalive time.Duration
}

// NewStreamHandler creates a new StreamHandler. ledger may be nil, in which
// case streams start without hydration.
func NewStreamHandler(hub *sse.Hub, ledger Ledger) *StreamHandler {
	return &StreamHandler{hub: hub, ledger: ledger, keepalive: 30 * time.Second}
}

// HandleSSE handles GET /api/stream/events?host=X. Without host every
// decision is streamed.
func (sh *StreamHandler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	host := r.URL.Query().Get("host")
	topic := host
	if topic == "" {
		topic = sse.AllTopic
	}

	// Subscribe before hydrating so nothing published in between is lost.
	ch, cancel := sh.hub.Subscribe(topic)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	if sh.ledger != nil {
		recent, _ := sh.ledger.RecentDecisions(r.Context(), host, 20)
		for i := len(recent) - 1; i >= 0; i-- {
			data, _ := json.Marshal(recent[i])
			fmt.Fprintf(w, "event: decision\ndata: %s\n\n", data)
		}
		if stats, _ := sh.ledger.Stats(r.Context(), host); stats != nil {
			data, _ := json.Marshal(stats)
			fmt.Fprintf(w, "event: stats\ndata: %s\n\n", data)
		}
	}
	flusher.Flush()

	keepalive := time.NewTicker(sh.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, event.Data)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
