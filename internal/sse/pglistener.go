package sse

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGListener subscribes to a PostgreSQL NOTIFY channel and fans out
// notifications to the hub, so every edge instance streams every decision.
type PGListener struct {
	pool    *pgxpool.Pool
	channel string
	hub     *Hub
	logger  *slog.Logger
}

// NewPGListener creates a listener bridging channel notifications to hub.
func NewPGListener(pool *pgxpool.Pool, channel string, hub *Hub, logger *slog.Logger) *PGListener {
	return &PGListener{pool: pool, channel: channel, hub: hub, logger: logger}
}

// Listen blocks until ctx is cancelled or the connection fails.
// It should be run inside RunWithRecovery so it auto-restarts on failure.
func (pl *PGListener) Listen(ctx context.Context) {
	conn, err := pl.pool.Acquire(ctx)
	if err != nil {
		pl.logger.Error("pg-listen: acquire connection failed", "err", err)
		return
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{pl.channel}.Sanitize()); err != nil {
		pl.logger.Error("pg-listen: LISTEN failed", "channel", pl.channel, "err", err)
		return
	}
	pl.logger.Info("pg-listen: subscribed", "channel", pl.channel)

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			pl.logger.Error("pg-listen: notification error", "err", err)
			return
		}
		pl.dispatch(notification.Payload)
	}
}

func (pl *PGListener) dispatch(payload string) {
	var d struct {
		Host string `json:"host"`
	}
	if err := json.Unmarshal([]byte(payload), &d); err != nil {
		pl.logger.Warn("pg-listen: unmarshal payload failed", "err", err)
		return
	}
	pl.hub.PublishDecision(d.Host, []byte(payload))
}
