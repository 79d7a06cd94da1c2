package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/resq-unified/flood-risk-service/internal/adapter/floodmonitor"
	"github.com/resq-unified/flood-risk-service/internal/domain"
	httpadapter "github.com/resq-unified/flood-risk-service/internal/adapter/http"
	"github.com/resq-unified/flood-risk-service/internal/monitor"
	"github.com/resq-unified/flood-risk-service/internal/predictor"
	"github.com/resq-unified/flood-risk-service/internal/realtime"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the prediction schedule and the flood monitor",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("http-addr", ":8080", "HTTP listen address")
	_ = v.BindPFlag("http_addr", serveCmd.Flags().Lookup("http-addr"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	cfg, logger := a.cfg, a.logger

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	schedule, err := predictor.NewSchedule(cfg.PredictionSchedule, a.predictor, logger)
	if err != nil {
		return err
	}
	hub := realtime.NewHub(a.transport, a.metrics, logger)

	api := httpadapter.API{
		Weather:     a.forecast,
		Synced:      a.store,
		Predictions: a.predictor,
		Rivers:      a.gauges,
		Changes:     hub,
	}

	var floods *monitor.FloodMonitor
	if cfg.FloodMonitorEnabled {
		client := floodmonitor.NewClient(cfg.FloodMonitorBaseURL, cfg.OpenMeteoTimeout, logger)
		floods = monitor.NewFloodMonitor(client, a.gauges, monitor.NewScheduler(nil), cfg.MonitorPollInterval, a.metrics, logger)
		api.Monitor = floods
		logger.Info("flood monitor enabled", "base_url", cfg.FloodMonitorBaseURL, "interval", cfg.MonitorPollInterval)
	} else {
		logger.Info("flood monitor disabled")
	}

	var watcher *monitor.WeatherWatcher
	if cfg.WatchDistrict != "" {
		d, err := domain.LookupDistrict(cfg.WatchDistrict)
		if err != nil {
			return err
		}
		watcher = monitor.NewWeatherWatcher(a.forecast, d.Geo.Lat, d.Geo.Lon, monitor.NewScheduler(nil), monitor.DefaultWeatherInterval, a.metrics, logger)
		api.Watched = watcher
		logger.Info("weather watcher enabled", "district", d.Name)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, a, api, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	schedule.Start(ctx)

	// Readiness waits on a completed run, so do one now.
	initialRun := make(chan struct{})
	go func() {
		defer close(initialRun)
		if _, err := a.predictor.Run(ctx); err != nil && !errors.Is(err, predictor.ErrRunInProgress) {
			logger.Error("initial prediction run failed", "error", err)
		}
	}()

	if floods != nil {
		floods.Start(ctx)
	}
	if watcher != nil {
		watcher.Start(ctx)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	// Runs still writing to the store must finish before a.close.
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelDrain()
	scheduled := schedule.Stop()
drain:
	for _, done := range []<-chan struct{}{scheduled.Done(), initialRun} {
		select {
		case <-done:
		case <-drainCtx.Done():
			logger.Warn("prediction run still active at shutdown")
			break drain
		}
	}
	if floods != nil {
		floods.Stop()
	}
	if watcher != nil {
		watcher.Stop()
	}
	hub.Close()

	logger.Info("shutdown complete")
	return nil
}
