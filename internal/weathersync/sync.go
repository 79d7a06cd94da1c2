// Package weathersync records current conditions for every district.
package weathersync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resq-unified/flood-risk-service/internal/domain"
	"github.com/resq-unified/flood-risk-service/internal/observability"
	"golang.org/x/sync/errgroup"
)

// CurrentFetcher returns current conditions for a coordinate.
type CurrentFetcher interface {
	FetchCurrent(ctx context.Context, lat, lon float64) (domain.WeatherSample, error)
}

// Store persists one weather row.
type Store interface {
	InsertWeather(ctx context.Context, w domain.DistrictWeather) error
}

// Failure is a district whose sync failed.
type Failure struct {
	District string
	Err      error
}

// Result lists synced rows in district order plus any failures.
type Result struct {
	Synced   []domain.DistrictWeather
	Failures []Failure
}

// Syncer fetches, classifies and stores current conditions per district.
type Syncer struct {
	fetcher CurrentFetcher
	store   Store
	workers int
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Syncer with at most workers concurrent fetches.
func New(fetcher CurrentFetcher, store Store, workers int, logger *slog.Logger, metrics *observability.Metrics) *Syncer {
	return &Syncer{
		fetcher: fetcher,
		store:   store,
		workers: max(1, workers),
		logger:  logger,
		metrics: metrics,
	}
}

// Run syncs all districts. One district failing never stops the others.
func (s *Syncer) Run(ctx context.Context) Result {
	districts := domain.Districts()
	rows := make([]*domain.DistrictWeather, len(districts))
	errs := make([]error, len(districts))

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, d := range districts {
		g.Go(func() error {
			rows[i], errs[i] = s.syncDistrict(ctx, d)
			return nil
		})
	}
	_ = g.Wait()

	var res Result
	for i, d := range districts {
		if errs[i] != nil {
			s.logger.Warn("weather sync failed", "district", d.Name, "error", errs[i])
			s.metrics.WeatherSyncs.WithLabelValues("error").Inc()
			res.Failures = append(res.Failures, Failure{District: d.Name, Err: errs[i]})
			continue
		}
		s.metrics.WeatherSyncs.WithLabelValues("success").Inc()
		res.Synced = append(res.Synced, *rows[i])
	}
	s.logger.Info("weather sync finished", "synced", len(res.Synced), "failed", len(res.Failures))
	return res
}

func (s *Syncer) syncDistrict(ctx context.Context, d domain.District) (*domain.DistrictWeather, error) {
	sample, err := s.fetcher.FetchCurrent(ctx, d.Geo.Lat, d.Geo.Lon)
	if err != nil {
		return nil, fmt.Errorf("fetch current conditions: %w", err)
	}
	row := domain.DistrictWeather{
		District:   d.Name,
		Location:   d.Geo,
		Sample:     sample,
		RiskLevel:  domain.ClassifyCurrentConditions(sample.Rainfall, sample.Humidity),
		RecordedAt: domain.Now().UTC(),
	}
	if err := s.store.InsertWeather(ctx, row); err != nil {
		return nil, err
	}
	return &row, nil
}
