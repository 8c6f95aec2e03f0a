package db

import "time"

// Decision is one ledger row: the outcome the edge reached for a request.
type Decision struct {
	ID              string    `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	Host            string    `json:"host"`
	Method          string    `json:"method"`
	Path            string    `json:"path"`
	ClientIP        string    `json:"client_ip,omitempty"`
	Outcome         string    `json:"outcome"`
	Classification  string    `json:"classification,omitempty"`
	Mode            string    `json:"mode,omitempty"`
	KasadaRequestID string    `json:"kasada_request_id,omitempty"`
	KasadaClientID  string    `json:"kasada_client_id,omitempty"`
	ErrorKind       string    `json:"error_kind,omitempty"`
	Error           string    `json:"error,omitempty"`
	LatencyMs       float32   `json:"latency_ms"`
}

type Stats struct {
	TotalRequests int64   `json:"total_requests"`
	BlockedCount  int64   `json:"blocked_count"`
	FailOpenCount int64   `json:"fail_open_count"`
	BotCount      int64   `json:"bot_count"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
}
