package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"kyc/internal/app"
	"kyc/internal/platform/config"
	"kyc/internal/platform/httpserver"
	"kyc/internal/platform/logger"
	"kyc/pkg/platform/audit/outbox"
)

const shutdownTimeout = 10 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	stores, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = stores.Close() }()

	services, err := app.NewServices(ctx, cfg, stores, reg, log)
	if err != nil {
		return err
	}
	defer func() { _ = services.Close() }()

	router, err := app.NewHandler(cfg, stores, services, reg, log)
	if err != nil {
		return err
	}
	if cfg.AdminToken == "" {
		log.Warn("ADMIN_TOKEN not set, admin routes are disabled")
	}

	srv := httpserver.New(cfg.Addr, router, cfg.RequestTimeout)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting kyc server", "addr", cfg.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if stores.Outbox != nil && len(cfg.Kafka.Brokers) > 0 {
		client, err := outbox.NewKafkaClient(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		if err != nil {
			return fmt.Errorf("kafka client: %w", err)
		}
		defer client.Close()

		relay := outbox.NewRelay(stores.Outbox, client, cfg.Kafka.AuditTopic,
			outbox.WithLogger(log),
			outbox.WithInterval(cfg.Kafka.RelayInterval),
		)
		g.Go(func() error {
			log.Info("audit outbox relay started", "topic", cfg.Kafka.AuditTopic)
			if err := relay.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped", slog.Any("error", err))
		return err
	}
	return nil
}
