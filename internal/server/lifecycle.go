package server

import (
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"runtime/debug"
	"strings"
	"time"
)

// maxBackoff caps the delay between restarts of a crashed goroutine.
const maxBackoff = 5 * time.Minute

// RunWithRecovery runs fn in a loop, recovering from panics with exponential backoff.
// It stops when ctx is cancelled.
func RunWithRecovery(ctx context.Context, logger *slog.Logger, name string, fn func(ctx context.Context)) {
	runWithRecovery(ctx, logger, name, fn, backoff)
}

func runWithRecovery(ctx context.Context, logger *slog.Logger, name string, fn func(ctx context.Context), delay func(attempt int) time.Duration) {
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			logger.Info("goroutine stopped", "name", name, "reason", "context cancelled")
			return
		default:
		}

		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("goroutine panicked",
						"name", name,
						"panic", r,
						"stack", string(debug.Stack()),
						"attempt", attempt,
					)
				}
			}()
			fn(ctx)
		}()

		select {
		case <-ctx.Done():
			return
		default:
		}

		attempt++
		wait := delay(attempt)
		logger.Warn("goroutine restarting",
			"name", name,
			"attempt", attempt,
			"backoff", wait,
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// backoff returns 1s, 2s, 4s, ... up to maxBackoff.
func backoff(attempt int) time.Duration {
	return time.Duration(math.Min(
		float64(time.Second)*math.Pow(2, float64(attempt-1)),
		float64(maxBackoff),
	))
}

// SetupLogger creates a structured slog.Logger with JSON output to stdout.
func SetupLogger(level string) *slog.Logger {
	return newLogger(os.Stdout, level)
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: lvl,
	})
	return slog.New(handler).With("service", "veil-edge")
}
