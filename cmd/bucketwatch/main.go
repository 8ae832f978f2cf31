// Command bucketwatch is a terminal dashboard for a leaky-bucket admission
// service. It polls GET /metrics, charts the bucket level and lets the
// operator fire probe bursts, change the bucket configuration and reset the
// counters. Settings come from the environment; see internal/config.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tui "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vnykmshr/bucketwatch/internal/config"
	"github.com/vnykmshr/bucketwatch/internal/logging"
	"github.com/vnykmshr/bucketwatch/pkg/bucketapi"
	"github.com/vnykmshr/bucketwatch/pkg/metrics"
	"github.com/vnykmshr/bucketwatch/pkg/monitor"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "bucketwatch:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// the terminal belongs to the dashboard, so logs go to a file
	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	svc, err := bucketapi.NewClient(cfg.APIURL, cfg.HTTPTimeout)
	if err != nil {
		return err
	}

	client, err := monitor.New(monitor.Config{
		Service:      svc,
		PollInterval: cfg.PollInterval,
		PollSchedule: cfg.PollSchedule,
		PollWorkers:  cfg.PollWorkers,
		Logger:       logger,
		Metrics:      metrics.DefaultRegistry,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := client.Start(); err != nil {
		return err
	}
	defer func() { <-client.Stop() }()

	logger.Info("bucketwatch started", zap.String("api_url", cfg.APIURL))

	g, gctx := errgroup.WithContext(ctx)

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metricsMux(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("metrics listener started", zap.String("addr", cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics listener: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		// quitting the dashboard ends the other goroutines too
		defer stop()

		program := tui.NewProgram(
			newModel(gctx, client, cfg.DefaultBurst, logger),
			tui.WithAltScreen(),
			tui.WithContext(gctx),
		)
		if _, err := program.Run(); err != nil && !errors.Is(err, tui.ErrProgramKilled) {
			return fmt.Errorf("dashboard: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
