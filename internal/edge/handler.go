package edge

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/veil-waf/veil-edge/internal/db"
	"github.com/veil-waf/veil-edge/internal/kasada"
	"github.com/veil-waf/veil-edge/internal/metrics"
	"github.com/veil-waf/veil-edge/internal/sse"
)

// Classifier returns Kasada's verdict for a described request.
type Classifier interface {
	Classify(ctx context.Context, req *kasada.APIRequest, forwardedHost string) (*kasada.APIResponse, error)
}

// Handler places Kasada bot classification in front of an origin handler.
type Handler struct {
	classifier Classifier
	db         *db.DB
	hub        *sse.Hub
	metrics    *metrics.Collector
	logger     *slog.Logger
}

// NewHandler creates the edge handler. database, hub and collector are
// optional; when database is set decisions reach the hub through
// PostgreSQL notifications instead of being published directly.
func NewHandler(classifier Classifier, database *db.DB, hub *sse.Hub, collector *metrics.Collector, logger *slog.Logger) *Handler {
	return &Handler{
		classifier: classifier,
		db:         database,
		hub:        hub,
		metrics:    collector,
		logger:     logger,
	}
}

// Wrap returns origin behind the classification step. It has the chi
// middleware signature.
func (h *Handler) Wrap(origin http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.serve(w, r, origin)
	})
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, origin http.Handler) {
	// OPTIONS preflights never reach Kasada.
	if r.Method == http.MethodOptions {
		forward(w, r, origin, addCORSHeaders)
		h.record(r, verdict{Outcome: OutcomeForwardWithCORS})
		return
	}

	start := time.Now()
	resp, err := h.classifier.Classify(r.Context(), kasada.Describe(r), kasada.Hostname(r))
	elapsed := time.Since(start)
	if err == nil {
		err = resp.Err()
	}
	if err == nil && resp == nil {
		err = kasada.ErrMalformedResponse
	}
	h.metrics.RecordClassifierCall(kasada.ErrorKind(err), elapsed)

	outcome := Decide(r.Method, resp, err)
	d := verdict{Outcome: outcome, Response: resp, Err: err, Latency: elapsed}

	if outcome == OutcomeForward {
		h.logger.Error("kasada classification failed",
			"err", err,
			"kind", kasada.ErrorKind(err),
			"path", r.URL.Path,
			"latency_ms", elapsed.Milliseconds(),
		)
		origin.ServeHTTP(w, r)
		h.record(r, d)
		return
	}

	level := slog.LevelInfo
	if resp.Classification != kasada.ClassificationAllowed {
		level = slog.LevelWarn
	}
	h.logger.Log(r.Context(), level, "kasada classification",
		"classification", resp.Classification,
		"mode", resp.Application.Mode,
		"request_id", resp.RequestID,
		"client_id", resp.ClientID,
		"path", r.URL.Path,
		"outcome", outcome,
	)

	if outcome == OutcomeBlock {
		addKasadaHeaders(w.Header(), resp.ResponseHeadersToSet)
		w.WriteHeader(BlockStatus)
		h.record(r, d)
		return
	}

	forward(w, r, origin, func(hdr http.Header) {
		addKasadaHeaders(hdr, resp.ResponseHeadersToSet)
	})
	h.record(r, d)
}

func forward(w http.ResponseWriter, r *http.Request, origin http.Handler, decorate func(http.Header)) {
	hw := newHeaderWriter(w, decorate)
	origin.ServeHTTP(hw, r)
	hw.finish()
}

// verdict carries what the edge decided for one request.
type verdict struct {
	Outcome  Outcome
	Response *kasada.APIResponse
	Err      error
	Latency  time.Duration
}

func (h *Handler) record(r *http.Request, d verdict) {
	entry := &db.Decision{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Host:      kasada.Hostname(r),
		Method:    r.Method,
		Path:      r.URL.Path,
		ClientIP:  kasada.ClientIP(r),
		Outcome:   string(d.Outcome),
		LatencyMs: float32(d.Latency.Microseconds()) / 1000,
	}
	if d.Err != nil {
		entry.ErrorKind = kasada.ErrorKind(d.Err)
		entry.Error = d.Err.Error()
	} else if d.Response != nil {
		entry.Classification = string(d.Response.Classification)
		entry.Mode = string(d.Response.Application.Mode)
		entry.KasadaRequestID = d.Response.RequestID
		entry.KasadaClientID = d.Response.ClientID
	}

	h.metrics.RecordDecision(entry.Outcome, entry.Classification, entry.Mode)

	if h.db == nil && h.hub == nil {
		return
	}
	go h.persist(entry)
}

// persist writes the decision to the ledger, or publishes it straight to the
// hub when no ledger is configured.
func (h *Handler) persist(entry *db.Decision) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.db.InsertDecision(ctx, entry); err != nil {
			h.logger.Error("failed to record decision", "err", err)
		}
		return
	}

	payload, err := db.NotifyPayload(entry)
	if err != nil {
		h.logger.Error("failed to encode decision", "err", err)
		return
	}
	h.hub.PublishDecision(entry.Host, payload)
}
