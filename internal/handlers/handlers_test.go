package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veil-waf/veil-edge/internal/db"
	"github.com/veil-waf/veil-edge/internal/sse"
)

type fakeLedger struct {
	decisions []db.Decision
	stats     *db.Stats
	err       error
	gotHost   string
	gotLimit  int
}

func (f *fakeLedger) RecentDecisions(_ context.Context, host string, limit int) ([]db.Decision, error) {
	f.gotHost, f.gotLimit = host, limit
	return f.decisions, f.err
}

func (f *fakeLedger) Stats(_ context.Context, host string) (*db.Stats, error) {
	f.gotHost = host
	return f.stats, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDashboard_NoLedger(t *testing.T) {
	dh := NewDashboardHandler(nil, discardLogger())
	rec := httptest.NewRecorder()
	dh.GetStats(rec, httptest.NewRequest("GET", "/api/stats", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDashboard_GetDecisions(t *testing.T) {
	ledger := &fakeLedger{decisions: []db.Decision{{ID: "a", Outcome: "block"}}}
	dh := NewDashboardHandler(ledger, discardLogger())

	rec := httptest.NewRecorder()
	dh.GetDecisions(rec, httptest.NewRequest("GET", "/api/decisions?host=shop.example.com&limit=9999", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "shop.example.com", ledger.gotHost)
	assert.Equal(t, maxDecisionLimit, ledger.gotLimit)

	var got []db.Decision
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "block", got[0].Outcome)
}

func TestDashboard_InvalidLimit(t *testing.T) {
	dh := NewDashboardHandler(&fakeLedger{}, discardLogger())
	rec := httptest.NewRecorder()
	dh.GetDecisions(rec, httptest.NewRequest("GET", "/api/decisions?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboard_LedgerError(t *testing.T) {
	dh := NewDashboardHandler(&fakeLedger{err: errors.New("down")}, discardLogger())
	rec := httptest.NewRecorder()
	dh.GetStats(rec, httptest.NewRequest("GET", "/api/stats", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStream_HydratesAndRelays(t *testing.T) {
	hub := sse.NewHub(discardLogger())
	ledger := &fakeLedger{
		decisions: []db.Decision{{ID: "newer"}, {ID: "older"}},
		stats:     &db.Stats{TotalRequests: 2},
	}
	srv := httptest.NewServer(http.HandlerFunc(NewStreamHandler(hub, ledger).HandleSSE))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "?host=shop.example.com")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	var lines []string
	for len(lines) < 3 {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			lines = append(lines, line)
		}
	}
	assert.Contains(t, lines[0], `"older"`)
	assert.Contains(t, lines[1], `"newer"`)
	assert.Contains(t, lines[2], `"total_requests":2`)

	require.Eventually(t, func() bool { return hub.SubscriberCount("shop.example.com") == 1 }, time.Second, 10*time.Millisecond)
	hub.PublishDecision("shop.example.com", []byte(`{"id":"live"}`))

	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			assert.Contains(t, line, `"live"`)
			break
		}
	}
}
