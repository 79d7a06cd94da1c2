package predictor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/resq-unified/flood-risk-service/internal/domain"
	"github.com/robfig/cron/v3"
)

// Runner is the batch a Schedule triggers.
type Runner interface {
	Run(ctx context.Context) (Result, error)
}

// Schedule triggers a Runner on a cron expression evaluated in Colombo time.
// Overlapping triggers are skipped.
type Schedule struct {
	cron   *cron.Cron
	runner Runner
	logger *slog.Logger
	ctx    context.Context
}

// NewSchedule parses spec (standard five-field cron) and prepares the job.
func NewSchedule(spec string, runner Runner, logger *slog.Logger) (*Schedule, error) {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelWarn))
	s := &Schedule{
		cron: cron.New(
			cron.WithLocation(domain.Colombo),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		runner: runner,
		logger: logger,
		ctx:    context.Background(),
	}
	if _, err := s.cron.AddFunc(spec, s.trigger); err != nil {
		return nil, fmt.Errorf("parse prediction schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins firing. Runs receive ctx.
func (s *Schedule) Start(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
	s.logger.Info("prediction schedule started", "next", s.Next())
}

// Stop halts the schedule. The returned context is done once a running job
// has finished.
func (s *Schedule) Stop() context.Context {
	return s.cron.Stop()
}

// Next reports when the job fires next, or the zero time before Start.
func (s *Schedule) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Schedule) trigger() {
	res, err := s.runner.Run(s.ctx)
	if err != nil {
		s.logger.Error("scheduled prediction run failed", "error", err)
		return
	}
	s.logger.Info("scheduled prediction run complete",
		"predictions", len(res.Predictions),
		"failed_districts", len(res.Failures),
	)
}
