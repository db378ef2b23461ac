package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/serverwatch/internal/config"
	"github.com/hamed0406/serverwatch/internal/delivery"
	"github.com/hamed0406/serverwatch/internal/httpapi"
	apimw "github.com/hamed0406/serverwatch/internal/httpapi/middleware"
	"github.com/hamed0406/serverwatch/internal/logging"
	"github.com/hamed0406/serverwatch/internal/probe"
	"github.com/hamed0406/serverwatch/internal/render"
	"github.com/hamed0406/serverwatch/internal/scheduler"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the monitor and the HTTP API",
	Long: `Run the monitoring engine and the read/diagnostic HTTP API.

The first cycle starts after INITIAL_DELAY_MS, then one cycle runs every
UPDATE_INTERVAL_MINUTES. On SIGINT or SIGTERM the trigger stops, in-flight
targets finish (bounded by the shutdown timeout) and the API drains.

Example:
  TARGETS_FILE=targets.yaml DISCORD_TOKEN=... serverwatch serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("targets", "t", "", "YAML target list (overrides TARGETS_FILE)")
	serveCmd.Flags().String("addr", "", "API bind address (overrides API_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.FromEnv()
	if v, _ := cmd.Flags().GetString("targets"); v != "" {
		cfg.TargetsFile = v
	}
	if v, _ := cmd.Flags().GetString("addr"); v != "" {
		cfg.Addr = v
	}

	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	if _, err := seedTargets(ctx, cfg.TargetsFile, store, logger); err != nil {
		return err
	}

	statusCache, closeCache, err := openCache(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer closeCache()

	prober, err := newProber(cfg)
	if err != nil {
		return err
	}
	client := probe.NewClient(logger, prober, statusCache, cfg,
		probe.WithRetry(cfg.QueryAttempts, cfg.RetryBackoff),
		probe.WithDefaultGame(cfg.DefaultGame),
	)

	channel, trackerOpts, closeChannel, err := openChannel(cfg)
	if err != nil {
		return err
	}
	defer closeChannel()
	tracker := delivery.NewTracker(logger, channel, delivery.NewMemoryHandles(), trackerOpts...)

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	monitor := scheduler.NewMonitor(logger, store, client, render.NewRenderer(cfg.Locale), tracker, store, cfg,
		scheduler.WithScope(cfg.Scope),
		scheduler.WithInitialDelay(cfg.InitialDelay),
		scheduler.WithMaxConcurrent(cfg.MaxConcurrent),
		scheduler.WithTracerProvider(tp),
	)
	janitor := scheduler.NewJanitor(logger, store, cfg.HistoryRetention)

	api := httpapi.NewServer(logger, store, store, client, cfg.Scope)
	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: api.Router(
			apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys},
			cfg.CORSOrigins,
			cfg.PublicRPM, cfg.PublicBurst, cfg.AdminRPM, cfg.AdminBurst,
		),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// tasks outlive the signal so in-flight targets can finish during shutdown
	monitor.Start(context.WithoutCancel(ctx))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := janitor.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown_begin")
		monitor.Stop()

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs error
		if err := monitor.Wait(sctx); err != nil {
			logger.Warn("shutdown_tasks_abandoned", zap.Duration("timeout", shutdownTimeout))
			errs = multierr.Append(errs, fmt.Errorf("drain monitor: %w", err))
		}
		errs = multierr.Append(errs, srv.Shutdown(sctx))
		return errs
	})

	err = g.Wait()
	logger.Info("shutdown_complete", zap.Error(err))
	return err
}
