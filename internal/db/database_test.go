package db

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyPayload_Truncates(t *testing.T) {
	d := &Decision{
		ID:      "id",
		Path:    "/" + strings.Repeat("a", 5000),
		Error:   strings.Repeat("e", 2000),
		Outcome: "forward",
	}

	payload, err := NotifyPayload(d)
	require.NoError(t, err)
	assert.Less(t, len(payload), 8000)

	var got Decision
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Len(t, got.Error, 500)
	assert.Len(t, got.Path, 1024)
	assert.Len(t, d.Error, 2000, "input must not be modified")
}

func TestNotifyPayload_HostileRequestFits(t *testing.T) {
	d := &Decision{
		ID:       uuid.NewString(),
		Host:     strings.Repeat("h", 9000),
		ClientIP: strings.Repeat("1", 9000),
		Method:   strings.Repeat("M", 500),
		Path:     "/\x00\xff" + strings.Repeat("<\x01>", 3000),
		Outcome:  "block",
		Error:    strings.Repeat("\x02", 2000),
	}

	payload, err := NotifyPayload(d)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(payload), maxNotifyPayload)

	var got Decision
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Len(t, got.Host, maxHostLen)
	assert.Len(t, got.ClientIP, maxIPLen)
	assert.Len(t, got.Method, maxEnumLen)
	assert.True(t, strings.HasPrefix(got.Path, "/<"))
	assert.Equal(t, "block", got.Outcome)
}

func TestSanitize(t *testing.T) {
	d := &Decision{
		Host: "shop.example.com",
		Path: "/a\x00b\xffc",
		// "é" is two bytes; the cap falls inside it.
		Error: strings.Repeat("a", maxErrorLen-1) + "é",
	}

	c := Sanitize(d)
	assert.Equal(t, "/abc", c.Path)
	assert.True(t, utf8.ValidString(c.Error))
	assert.Len(t, c.Error, maxErrorLen-1)
	assert.NotContains(t, c.Path, "\x00")
	assert.Equal(t, "/a\x00b\xffc", d.Path, "input must not be modified")
}

// TestLedger runs against a real database when TEST_DATABASE_URL is set.
func TestLedger(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	database, err := Connect(ctx, dsn, logger)
	require.NoError(t, err)
	defer database.Close()

	host := "ledger-" + uuid.NewString() + ".example.com"
	blocked := &Decision{
		ID:             uuid.NewString(),
		Timestamp:      time.Now().UTC(),
		Host:           host,
		Method:         "GET",
		Path:           "/",
		ClientIP:       "203.0.113.5",
		Outcome:        "block",
		Classification: "BAD-BOT",
		Mode:           "PROTECT",
		LatencyMs:      12,
	}
	failed := &Decision{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC().Add(time.Second),
		Host:      host,
		Method:    "POST",
		Path:      "/login",
		Outcome:   "forward",
		ErrorKind: "timeout",
		Error:     "kasada: classification timed out",
	}
	require.NoError(t, database.InsertDecision(ctx, blocked))
	require.NoError(t, database.InsertDecision(ctx, failed))

	hostile := &Decision{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC().Add(-time.Second),
		Host:      host,
		Method:    "GET",
		Path:      "/\x00\xff",
		ClientIP:  strings.Repeat("9", 9000),
		Outcome:   "block",
	}
	require.NoError(t, database.InsertDecision(ctx, hostile))

	recent, err := database.RecentDecisions(ctx, host, 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, failed.ID, recent[0].ID)
	assert.Equal(t, "timeout", recent[0].ErrorKind)
	assert.Equal(t, "", recent[0].Classification)

	stats, err := database.Stats(ctx, host)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalRequests)
	assert.Equal(t, int64(2), stats.BlockedCount)
	assert.Equal(t, int64(1), stats.FailOpenCount)
	assert.Equal(t, int64(1), stats.BotCount)
}
