package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/veil-waf/veil-edge/internal/config"
	"github.com/veil-waf/veil-edge/internal/db"
	"github.com/veil-waf/veil-edge/internal/edge"
	"github.com/veil-waf/veil-edge/internal/handlers"
	"github.com/veil-waf/veil-edge/internal/kasada"
	"github.com/veil-waf/veil-edge/internal/metrics"
	"github.com/veil-waf/veil-edge/internal/netguard"
	"github.com/veil-waf/veil-edge/internal/origin"
	"github.com/veil-waf/veil-edge/internal/ratelimit"
	"github.com/veil-waf/veil-edge/internal/server"
	"github.com/veil-waf/veil-edge/internal/sse"
	edgetls "github.com/veil-waf/veil-edge/internal/tls"
	"github.com/veil-waf/veil-edge/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	logger := server.SetupLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.KasadaToken == "" {
		logger.Warn("KASADA_TOKEN is empty; classification calls will be rejected and fail open")
	}

	hub := sse.NewHub(logger)

	// The ledger is optional. Without it decisions are streamed from this
	// instance only.
	var database *db.DB
	var ledger handlers.Ledger
	if cfg.DatabaseURL != "" {
		database, err = db.Connect(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Error("failed to connect to database", "err", err)
			os.Exit(1)
		}
		defer database.Close()
		ledger = database

		pgListener := sse.NewPGListener(database.Pool, db.NotifyChannel, hub, logger)
		go server.RunWithRecovery(ctx, logger, "pg-listener", pgListener.Listen)
	} else {
		logger.Warn("DATABASE_URL not set; decision ledger disabled")
	}

	collector, err := metrics.New("")
	if err != nil {
		logger.Error("failed to register metrics", "err", err)
		os.Exit(1)
	}
	collector.Registry().MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	classifier := kasada.NewClient(cfg.Kasada, cfg.KasadaToken)

	target := cfg.Origin()
	guard := netguard.NewGuard(append([]string{target.Hostname()}, cfg.OriginTrustedHosts...)...)
	forwarder := origin.NewForwarder(target, guard, logger)

	edgeHandler := edge.NewHandler(classifier, database, hub, collector, logger)

	limiter := ratelimit.New()
	go server.RunWithRecovery(ctx, logger, "ratelimit-sweep", func(ctx context.Context) {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Sweep(5 * time.Minute)
			}
		}
	})

	ops := &http.Server{
		Addr: ":" + cfg.OpsPort,
		Handler: opsRouter(opsDeps{
			opsToken:  cfg.OpsToken,
			limiter:   limiter,
			collector: collector,
			stream:    handlers.NewStreamHandler(hub, ledger),
			dashboard: handlers.NewDashboardHandler(ledger, logger),
			sockets:   ws.NewManager(hub, ledger, logger),
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE + WebSocket need unlimited write time
		IdleTimeout:  60 * time.Second,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           edgeRouter(edgeHandler, forwarder),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := ops.Shutdown(shutdownCtx); err != nil {
			logger.Error("ops server shutdown failed", "err", err)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "err", err)
		}
	}()

	go func() {
		logger.Info("ops server starting", "port", cfg.OpsPort)
		if err := ops.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server failed", "err", err)
		}
	}()

	if len(cfg.TLSDomains) > 0 {
		certs := edgetls.NewCertManager(edgetls.Config{
			Domains:    cfg.TLSDomains,
			Email:      cfg.ACMEEmail,
			Production: cfg.Production,
		}, logger)
		err = certs.Serve(ctx, srv, http.HandlerFunc(redirectHTTPS))
	} else {
		logger.Info("server starting", "port", cfg.Port, "origin", target.Redacted())
		err = srv.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func redirectHTTPS(w http.ResponseWriter, r *http.Request) {
	u := *r.URL
	u.Scheme = "https"
	u.Host = r.Host
	http.Redirect(w, r, u.String(), http.StatusPermanentRedirect)
}
