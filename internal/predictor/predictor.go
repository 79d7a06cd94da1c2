// Package predictor runs the district fan-out: one points-based prediction per
// district and forecast day, persisted in a single batch.
package predictor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/resq-unified/flood-risk-service/internal/domain"
	"github.com/resq-unified/flood-risk-service/internal/observability"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds concurrent forecast fetches when none is configured.
const DefaultWorkers = 5

// ErrRunInProgress is returned by Run while another run is active.
var ErrRunInProgress = errors.New("prediction run already in progress")

// Forecaster fetches the daily forecast for a coordinate.
type Forecaster interface {
	FetchDailyForecast(ctx context.Context, lat, lon float64) ([]domain.DailyPoint, error)
}

// RiverSnapshot returns the latest gauge reading per district.
type RiverSnapshot interface {
	LatestByDistrict(ctx context.Context) (map[string]domain.RiverGaugeReading, error)
}

// Store persists and queries predictions.
type Store interface {
	InsertPredictions(ctx context.Context, preds []domain.FloodPrediction) error
	PredictionsFrom(ctx context.Context, fromDate, district string) ([]domain.FloodPrediction, error)
	PredictionsOn(ctx context.Context, date string, levels []domain.RiskLevel) ([]domain.HighRiskArea, error)
}

// Failure records a district skipped during a run.
type Failure struct {
	District string
	Err      error
}

// Result summarizes one batch run. Predictions are ordered by district list
// order, then forecast date.
type Result struct {
	Predictions []domain.FloodPrediction
	Failures    []Failure
	Duration    time.Duration
}

// Predictor orchestrates the batch fan-out.
type Predictor struct {
	forecaster Forecaster
	rivers     RiverSnapshot
	store      Store
	random     domain.RandomSource
	workers    int
	logger     *slog.Logger
	metrics    *observability.Metrics
	ready      atomic.Bool
	running    sync.Mutex
}

// New creates a Predictor. workers below 1 falls back to DefaultWorkers.
func New(f Forecaster, rivers RiverSnapshot, store Store, random domain.RandomSource, workers int, logger *slog.Logger, metrics *observability.Metrics) *Predictor {
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &Predictor{
		forecaster: f,
		rivers:     rivers,
		store:      store,
		random:     random,
		workers:    workers,
		logger:     logger,
		metrics:    metrics,
	}
}

// CheckReadiness returns nil once a run has completed.
func (p *Predictor) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no prediction run has completed yet")
	}
	return nil
}

// Run predicts every district. A district whose forecast cannot be fetched is
// logged and recorded in Result.Failures; the others still persist. Errors
// reading river levels or writing predictions fail the whole run.
func (p *Predictor) Run(ctx context.Context) (Result, error) {
	if !p.running.TryLock() {
		return Result{}, ErrRunInProgress
	}
	defer p.running.Unlock()

	start := time.Now()
	p.metrics.PredictionRunning.Set(1)
	defer p.metrics.PredictionRunning.Set(0)
	p.logger.Info("prediction run started", "workers", p.workers)

	rivers, err := p.rivers.LatestByDistrict(ctx)
	if err != nil {
		p.metrics.PredictionRuns.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("snapshot river levels: %w", err)
	}

	districts := domain.Districts()
	perDistrict := make([][]domain.FloodPrediction, len(districts))
	errs := make([]error, len(districts))

	var g errgroup.Group
	g.SetLimit(p.workers)
	for i, d := range districts {
		g.Go(func() error {
			// Per-district errors are kept out of the group so siblings continue.
			perDistrict[i], errs[i] = p.predictDistrict(ctx, d, rivers)
			return nil
		})
	}
	_ = g.Wait()

	var res Result
	for i, d := range districts {
		if errs[i] != nil {
			p.logger.Warn("district prediction failed, skipping", "district", d.Name, "error", errs[i])
			p.metrics.DistrictFailures.Inc()
			res.Failures = append(res.Failures, Failure{District: d.Name, Err: errs[i]})
			continue
		}
		res.Predictions = append(res.Predictions, perDistrict[i]...)
	}

	if err := ctx.Err(); err != nil {
		p.metrics.PredictionRuns.WithLabelValues("error").Inc()
		return res, fmt.Errorf("prediction run cancelled: %w", err)
	}

	if len(res.Predictions) > 0 {
		if err := p.store.InsertPredictions(ctx, res.Predictions); err != nil {
			p.metrics.PredictionRuns.WithLabelValues("error").Inc()
			return res, fmt.Errorf("persist predictions: %w", err)
		}
	}

	res.Duration = time.Since(start)
	p.metrics.PredictionsGenerated.Add(float64(len(res.Predictions)))
	p.metrics.PredictionRunDuration.Observe(res.Duration.Seconds())
	p.metrics.PredictionRuns.WithLabelValues(outcome(res)).Inc()
	p.ready.Store(true)

	p.logger.Info("prediction run finished",
		"predictions", len(res.Predictions),
		"failed_districts", len(res.Failures),
		"duration", res.Duration,
	)
	return res, nil
}

func outcome(res Result) string {
	switch {
	case len(res.Failures) == 0:
		return "success"
	case len(res.Predictions) > 0:
		return "partial"
	default:
		return "error"
	}
}

func (p *Predictor) predictDistrict(ctx context.Context, d domain.District, rivers map[string]domain.RiverGaugeReading) ([]domain.FloodPrediction, error) {
	days, err := p.forecaster.FetchDailyForecast(ctx, d.Geo.Lat, d.Geo.Lon)
	if err != nil {
		return nil, fmt.Errorf("fetch forecast: %w", err)
	}

	var levels *domain.RiverLevels
	var riverForecast *float64
	if r, ok := rivers[d.Name]; ok {
		levels = r.Levels()
		current := r.CurrentLevel
		riverForecast = &current
	}

	preds := make([]domain.FloodPrediction, 0, len(days))
	for _, day := range days {
		if day.Date == "" {
			return nil, fmt.Errorf("%w: forecast day without date", domain.ErrMalformedForecast)
		}
		score := domain.ScorePrediction(domain.PredictionInputs{
			Rainfall: day.RainfallSum,
			River:    levels,
		})
		preds = append(preds, domain.FloodPrediction{
			ID:                 uuid.NewString(),
			District:           d.Name,
			Latitude:           d.Geo.Lat,
			Longitude:          d.Geo.Lon,
			PredictionDate:     day.Date,
			RiskLevel:          score.Level,
			RiskScore:          score.Score,
			RainfallForecast:   day.RainfallSum,
			RiverLevelForecast: riverForecast,
			ConfidenceScore:    domain.ConfidenceScore(p.random),
			Factors:            score.Factors,
			ModelVersion:       domain.ModelVersion,
			CreatedAt:          domain.Now().UTC(),
		})
	}
	return preds, nil
}

// HighRiskAreas returns today's HIGH and CRITICAL predictions, highest score
// first.
func (p *Predictor) HighRiskAreas(ctx context.Context) ([]domain.HighRiskArea, error) {
	areas, err := p.store.PredictionsOn(ctx, domain.Today(), []domain.RiskLevel{domain.LevelHigh, domain.LevelCritical})
	if err != nil {
		return nil, fmt.Errorf("query high risk areas: %w", err)
	}
	return areas, nil
}

// Predictions returns predictions dated today or later in ascending date
// order. A non-empty district must name a known district.
func (p *Predictor) Predictions(ctx context.Context, district string) ([]domain.FloodPrediction, error) {
	if district != "" {
		d, err := domain.LookupDistrict(district)
		if err != nil {
			return nil, err
		}
		district = d.Name
	}
	preds, err := p.store.PredictionsFrom(ctx, domain.Today(), district)
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	return preds, nil
}
