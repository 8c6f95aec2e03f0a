package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/veil-waf/veil-edge/internal/db"
)

const maxDecisionLimit = 500

type DashboardHandler struct {
	ledger Ledger
	logger *slog.Logger
}

func NewDashboardHandler(ledger Ledger, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{ledger: ledger, logger: logger}
}

func (dh *DashboardHandler) available(w http.ResponseWriter) bool {
	if dh.ledger == nil {
		jsonError(w, "decision ledger not configured", http.StatusNotFound)
		return false
	}
	return true
}

// GetStats handles GET /api/stats?host=X
func (dh *DashboardHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	if !dh.available(w) {
		return
	}
	stats, err := dh.ledger.Stats(r.Context(), r.URL.Query().Get("host"))
	if err != nil {
		dh.logger.Error("failed to fetch stats", "err", err)
		jsonError(w, "failed to fetch stats", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// GetDecisions handles GET /api/decisions?host=X&limit=N
func (dh *DashboardHandler) GetDecisions(w http.ResponseWriter, r *http.Request) {
	if !dh.available(w) {
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxDecisionLimit)
	}

	decisions, err := dh.ledger.RecentDecisions(r.Context(), r.URL.Query().Get("host"), limit)
	if err != nil {
		dh.logger.Error("failed to fetch decisions", "err", err)
		jsonError(w, "failed to fetch decisions", http.StatusInternalServerError)
		return
	}
	if decisions == nil {
		decisions = []db.Decision{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(decisions)
}
