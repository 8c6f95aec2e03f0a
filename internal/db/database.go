package db

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NotifyChannel is the PostgreSQL channel carrying newly inserted decisions.
const NotifyChannel = "decision_stream"

//go:embed migrations/*.sql
var migrations embed.FS

// DB wraps a pgx connection pool holding the decision ledger.
type DB struct {
	Pool   *pgxpool.Pool
	logger *slog.Logger
}

// Connect opens a pool for dsn and runs migrations.
func Connect(ctx context.Context, dsn string, logger *slog.Logger) (*DB, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	config.MaxConns = 20
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	db := &DB{Pool: pool, logger: logger}
	if err := db.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Migrate executes the embedded SQL migration.
func (db *DB) Migrate(ctx context.Context) error {
	sql, err := migrations.ReadFile("migrations/001_init.sql")
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}
	if _, err := db.Pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("exec migration: %w", err)
	}
	db.logger.Info("database migrated")
	return nil
}

// Close shuts down the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}

// InsertDecision stores d and notifies listeners on NotifyChannel in the
// same statement, so every stored row is also streamed. Client-supplied
// text is cleaned first; see Sanitize.
func (db *DB) InsertDecision(ctx context.Context, d *Decision) error {
	c := Sanitize(d)
	payload, err := NotifyPayload(&c)
	if err != nil {
		return fmt.Errorf("encode notify payload: %w", err)
	}
	_, err = db.Pool.Exec(ctx,
		`WITH ins AS (
		    INSERT INTO edge_decisions (id, timestamp, host, method, path, client_ip, outcome, classification,
		        mode, kasada_request_id, kasada_client_id, error_kind, error, latency_ms)
		    VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''),
		        NULLIF($11, ''), NULLIF($12, ''), NULLIF($13, ''), $14)
		    RETURNING id
		 )
		 SELECT pg_notify($15, $16) FROM ins`,
		c.ID, c.Timestamp, c.Host, c.Method, c.Path, c.ClientIP, c.Outcome, c.Classification,
		c.Mode, c.KasadaRequestID, c.KasadaClientID, c.ErrorKind, c.Error, c.LatencyMs,
		NotifyChannel, string(payload))
	return err
}

// maxNotifyPayload stays under PostgreSQL's 8000 byte NOTIFY limit.
const maxNotifyPayload = 7900

// Field caps in bytes. Host, path and client IP come from the request and
// can be arbitrarily long.
const (
	maxHostLen  = 253
	maxPathLen  = 1024
	maxErrorLen = 500
	maxIPLen    = 64
	maxIDLen    = 128
	maxEnumLen  = 32
)

// Sanitize returns a copy of d whose text fields are valid UTF-8 without NUL
// bytes, which PostgreSQL TEXT rejects, and capped in length.
func Sanitize(d *Decision) Decision {
	c := *d
	c.Host = clean(c.Host, maxHostLen)
	c.Method = clean(c.Method, maxEnumLen)
	c.Path = clean(c.Path, maxPathLen)
	c.ClientIP = clean(c.ClientIP, maxIPLen)
	c.Outcome = clean(c.Outcome, maxEnumLen)
	c.Classification = clean(c.Classification, maxEnumLen)
	c.Mode = clean(c.Mode, maxEnumLen)
	c.KasadaRequestID = clean(c.KasadaRequestID, maxIDLen)
	c.KasadaClientID = clean(c.KasadaClientID, maxIDLen)
	c.ErrorKind = clean(c.ErrorKind, maxEnumLen)
	c.Error = clean(c.Error, maxErrorLen)
	return c
}

// NotifyPayload encodes d for pg_notify. JSON escaping can grow the text
// several times over, so path and error are halved until the payload fits.
func NotifyPayload(d *Decision) ([]byte, error) {
	c := Sanitize(d)
	for {
		b, err := json.Marshal(&c)
		if err != nil || len(b) <= maxNotifyPayload || (c.Path == "" && c.Error == "") {
			return b, err
		}
		c.Path = clean(c.Path, len(c.Path)/2)
		c.Error = clean(c.Error, len(c.Error)/2)
	}
}

func clean(s string, limit int) string {
	s = strings.ReplaceAll(strings.ToValidUTF8(s, ""), "\x00", "")
	if len(s) > limit {
		// Cutting may split a rune; drop the partial bytes.
		s = strings.ToValidUTF8(s[:limit], "")
	}
	return s
}

// RecentDecisions returns the latest decisions, newest first. An empty host
// returns decisions for every host.
func (db *DB) RecentDecisions(ctx context.Context, host string, limit int) ([]Decision, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id::text, timestamp, host, method, path, client_ip, outcome, classification, mode,
		        kasada_request_id, kasada_client_id, error_kind, error, latency_ms
		 FROM edge_decisions
		 WHERE $1 = '' OR host = $1
		 ORDER BY timestamp DESC LIMIT $2`, host, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		var d Decision
		var clientIP, classification, mode, requestID, clientID, errKind, errText *string
		if err := rows.Scan(&d.ID, &d.Timestamp, &d.Host, &d.Method, &d.Path, &clientIP, &d.Outcome,
			&classification, &mode, &requestID, &clientID, &errKind, &errText, &d.LatencyMs); err != nil {
			return nil, err
		}
		d.ClientIP = deref(clientIP)
		d.Classification = deref(classification)
		d.Mode = deref(mode)
		d.KasadaRequestID = deref(requestID)
		d.KasadaClientID = deref(clientID)
		d.ErrorKind = deref(errKind)
		d.Error = deref(errText)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats aggregates the ledger, optionally restricted to one host.
func (db *DB) Stats(ctx context.Context, host string) (*Stats, error) {
	var s Stats
	err := db.Pool.QueryRow(ctx,
		`SELECT
		    COUNT(*),
		    COUNT(*) FILTER (WHERE outcome = 'block'),
		    COUNT(*) FILTER (WHERE error_kind IS NOT NULL),
		    COUNT(*) FILTER (WHERE classification IN ('BAD-BOT', 'GOOD-BOT')),
		    COALESCE(AVG(latency_ms), 0)
		 FROM edge_decisions
		 WHERE $1 = '' OR host = $1`, host,
	).Scan(&s.TotalRequests, &s.BlockedCount, &s.FailOpenCount, &s.BotCount, &s.AvgLatencyMs)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
