package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/resq-unified/flood-risk-service/internal/weathersync"
	"github.com/spf13/cobra"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Run one prediction batch over every district and exit",
	RunE:  runPredict,
}

var syncWeatherCmd = &cobra.Command{
	Use:   "sync-weather",
	Short: "Store current conditions for every district and exit",
	RunE:  runSyncWeather,
}

var gaugesCmd = &cobra.Command{
	Use:   "gauges",
	Short: "River gauge maintenance",
}

var synthesizeCmd = &cobra.Command{
	Use:   "synthesize",
	Short: "Write one synthetic reading per known station",
	RunE:  runSynthesize,
}

func init() {
	rootCmd.AddCommand(predictCmd, syncWeatherCmd, gaugesCmd)
	gaugesCmd.AddCommand(synthesizeCmd)
}

// jobContext cancels a one-shot job on SIGINT or SIGTERM.
func jobContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}

func runPredict(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	ctx, stop := jobContext(cmd)
	defer stop()

	res, err := a.predictor.Run(ctx)
	if err != nil {
		return err
	}
	for _, f := range res.Failures {
		fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %v\n", f.District, f.Err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "stored %d predictions in %s (%d districts failed)\n",
		len(res.Predictions), res.Duration.Round(time.Millisecond), len(res.Failures))
	return nil
}

func runSyncWeather(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	ctx, stop := jobContext(cmd)
	defer stop()

	syncer := weathersync.New(a.forecast, a.store, a.cfg.PredictionWorkers, a.logger, a.metrics)
	res := syncer.Run(ctx)
	for _, f := range res.Failures {
		fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %v\n", f.District, f.Err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "synced weather for %d districts (%d failed)\n", len(res.Synced), len(res.Failures))
	if len(res.Synced) == 0 && len(res.Failures) > 0 {
		return fmt.Errorf("weather sync failed for all %d districts", len(res.Failures))
	}
	return nil
}

func runSynthesize(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	ctx, stop := jobContext(cmd)
	defer stop()

	readings, err := a.gauges.Synthesize(ctx)
	if err != nil {
		return err
	}
	for _, r := range readings {
		fmt.Fprintf(cmd.OutOrStdout(), "%-14s %-18s %6.2f m  %s\n", r.River, r.Station, r.CurrentLevel, r.Status)
	}
	return nil
}
