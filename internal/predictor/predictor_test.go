package predictor_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/resq-unified/flood-risk-service/internal/domain"
	"github.com/resq-unified/flood-risk-service/internal/observability"
	"github.com/resq-unified/flood-risk-service/internal/predictor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type fakeForecaster struct {
	days     []domain.DailyPoint
	failLat  map[float64]error
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	block    chan struct{}
	started  chan struct{}
}

func (f *fakeForecaster) FetchDailyForecast(ctx context.Context, lat, _ float64) ([]domain.DailyPoint, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	} else {
		time.Sleep(time.Millisecond)
	}
	if err := f.failLat[lat]; err != nil {
		return nil, err
	}
	return f.days, nil
}

type fakeRivers struct {
	readings map[string]domain.RiverGaugeReading
	err      error
}

func (f fakeRivers) LatestByDistrict(context.Context) (map[string]domain.RiverGaugeReading, error) {
	return f.readings, f.err
}

type fakeStore struct {
	mu        sync.Mutex
	inserted  [][]domain.FloodPrediction
	insertErr error
	fromDate  string
	district  string
	onDate    string
	levels    []domain.RiskLevel
}

func (s *fakeStore) InsertPredictions(_ context.Context, preds []domain.FloodPrediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, preds)
	return nil
}

func (s *fakeStore) PredictionsFrom(_ context.Context, fromDate, district string) ([]domain.FloodPrediction, error) {
	s.fromDate, s.district = fromDate, district
	return []domain.FloodPrediction{{District: district, PredictionDate: fromDate}}, nil
}

func (s *fakeStore) PredictionsOn(_ context.Context, date string, levels []domain.RiskLevel) ([]domain.HighRiskArea, error) {
	s.onDate, s.levels = date, levels
	return []domain.HighRiskArea{{District: "Galle", RiskLevel: domain.LevelCritical, RiskScore: 80}}, nil
}

func sevenDays() []domain.DailyPoint {
	rain := []float64{0, 12, 30, 60, 120, 5, 0}
	out := make([]domain.DailyPoint, len(rain))
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, domain.Colombo)
	for i, r := range rain {
		out[i] = domain.DailyPoint{Date: start.AddDate(0, 0, i).Format(time.DateOnly), RainfallSum: r}
	}
	return out
}

var fixedNow = time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)

func newPredictor(f predictor.Forecaster, rivers predictor.RiverSnapshot, store predictor.Store, workers int) *predictor.Predictor {
	return predictor.New(f, rivers, store, domain.FixedRandom(0.5), workers,
		slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
}

// --- tests ---

func TestPredictor_Run_AllDistricts(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(fixedNow))
	defer domain.SetClock(nil)

	store := &fakeStore{}
	p := newPredictor(&fakeForecaster{days: sevenDays()}, fakeRivers{}, store, 5)

	require.Error(t, p.CheckReadiness(context.Background()))

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Failures)
	require.Len(t, res.Predictions, 175)
	require.Len(t, store.inserted, 1, "one batch insert per run")
	assert.Len(t, store.inserted[0], 175)
	require.NoError(t, p.CheckReadiness(context.Background()))

	districts := domain.Districts()
	ids := make(map[string]struct{})
	for i, pred := range res.Predictions {
		assert.Equal(t, districts[i/7].Name, pred.District, "district list order")
		assert.Equal(t, sevenDays()[i%7].Date, pred.PredictionDate, "then forecast date")
		assert.Equal(t, domain.ModelVersion, pred.ModelVersion)
		assert.InDelta(t, 0.85, pred.ConfidenceScore, 1e-9)
		assert.True(t, pred.CreatedAt.Equal(fixedNow))
		assert.Nil(t, pred.RiverLevelForecast)
		ids[pred.ID] = struct{}{}
	}
	assert.Len(t, ids, 175, "ids are unique")
}

func TestPredictor_Run_ScoresWithRiverData(t *testing.T) {
	store := &fakeStore{}
	rivers := fakeRivers{readings: map[string]domain.RiverGaugeReading{
		"Colombo": {District: "Colombo", CurrentLevel: 6.1, WarningLevel: 5, DangerLevel: 6},
	}}
	p := newPredictor(&fakeForecaster{days: sevenDays()}, rivers, store, 5)

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	colombo := res.Predictions[:7]
	want := []struct {
		level  domain.RiskLevel
		score  float64
		factor domain.PredictionFactors
	}{
		{domain.LevelMedium, 40, domain.PredictionFactors{Rainfall: 0, RiverLevel: 40}},
		{domain.LevelHigh, 50, domain.PredictionFactors{Rainfall: 10, RiverLevel: 40}},
		{domain.LevelHigh, 60, domain.PredictionFactors{Rainfall: 20, RiverLevel: 40}},
		{domain.LevelCritical, 70, domain.PredictionFactors{Rainfall: 30, RiverLevel: 40}},
		{domain.LevelCritical, 80, domain.PredictionFactors{Rainfall: 40, RiverLevel: 40}},
		{domain.LevelMedium, 40, domain.PredictionFactors{Rainfall: 0, RiverLevel: 40}},
		{domain.LevelMedium, 40, domain.PredictionFactors{Rainfall: 0, RiverLevel: 40}},
	}
	for i, w := range want {
		assert.Equal(t, w.level, colombo[i].RiskLevel, "day %d", i)
		assert.Equal(t, w.score, colombo[i].RiskScore, "day %d", i)
		if diff := cmp.Diff(w.factor, colombo[i].Factors); diff != "" {
			t.Errorf("day %d factors mismatch (-want +got):\n%s", i, diff)
		}
		require.NotNil(t, colombo[i].RiverLevelForecast)
		assert.Equal(t, 6.1, *colombo[i].RiverLevelForecast)
	}

	gampaha := res.Predictions[7]
	assert.Equal(t, "Gampaha", gampaha.District)
	assert.Zero(t, gampaha.Factors.RiverLevel)
}

func TestPredictor_Run_IsolatesDistrictFailures(t *testing.T) {
	kandy, err := domain.LookupDistrict("Kandy")
	require.NoError(t, err)
	galle, err := domain.LookupDistrict("Galle")
	require.NoError(t, err)

	store := &fakeStore{}
	f := &fakeForecaster{
		days: sevenDays(),
		failLat: map[float64]error{
			kandy.Geo.Lat: errors.New("open-meteo API error: status 503"),
			galle.Geo.Lat: domain.ErrMalformedForecast,
		},
	}
	res, err := newPredictor(f, fakeRivers{}, store, 5).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Failures, 2)
	assert.Equal(t, "Kandy", res.Failures[0].District)
	assert.Equal(t, "Galle", res.Failures[1].District)
	assert.ErrorIs(t, res.Failures[1].Err, domain.ErrMalformedForecast)
	assert.Len(t, res.Predictions, 23*7)
	for _, pred := range res.Predictions {
		assert.NotEqual(t, "Kandy", pred.District)
	}
}

func TestPredictor_Run_AllDistrictsFailStillCompletes(t *testing.T) {
	failAll := map[float64]error{}
	for _, d := range domain.Districts() {
		failAll[d.Geo.Lat] = errors.New("timeout")
	}
	store := &fakeStore{}
	p := newPredictor(&fakeForecaster{failLat: failAll}, fakeRivers{}, store, 5)

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Failures, 25)
	assert.Empty(t, res.Predictions)
	assert.Empty(t, store.inserted, "nothing to insert")
}

func TestPredictor_Run_BoundsConcurrency(t *testing.T) {
	f := &fakeForecaster{days: sevenDays()}
	_, err := newPredictor(f, fakeRivers{}, &fakeStore{}, 3).Run(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, f.maxSeen.Load(), int32(3))
	assert.Positive(t, f.maxSeen.Load())
}

func TestPredictor_Run_RiverSnapshotError(t *testing.T) {
	store := &fakeStore{}
	p := newPredictor(&fakeForecaster{days: sevenDays()}, fakeRivers{err: errors.New("db locked")}, store, 5)

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot river levels")
	assert.Empty(t, store.inserted)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPredictor_Run_PersistError(t *testing.T) {
	store := &fakeStore{insertErr: errors.New("disk full")}
	p := newPredictor(&fakeForecaster{days: sevenDays()}, fakeRivers{}, store, 5)

	res, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Len(t, res.Predictions, 175)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPredictor_Run_RejectsOverlap(t *testing.T) {
	f := &fakeForecaster{days: sevenDays(), block: make(chan struct{}), started: make(chan struct{}, 1)}
	p := newPredictor(f, fakeRivers{}, &fakeStore{}, 2)

	done := make(chan error, 1)
	go func() {
		_, err := p.Run(context.Background())
		done <- err
	}()
	<-f.started

	_, err := p.Run(context.Background())
	assert.ErrorIs(t, err, predictor.ErrRunInProgress)

	close(f.block)
	require.NoError(t, <-done)
}

func TestPredictor_Run_Cancelled(t *testing.T) {
	f := &fakeForecaster{days: sevenDays(), block: make(chan struct{})}
	store := &fakeStore{}
	p := newPredictor(f, fakeRivers{}, store, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.inserted)
}

func TestPredictor_HighRiskAreas_UsesColomboToday(t *testing.T) {
	// 20:00 UTC is already the next day in Colombo.
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	store := &fakeStore{}
	areas, err := newPredictor(&fakeForecaster{}, fakeRivers{}, store, 1).HighRiskAreas(context.Background())
	require.NoError(t, err)
	assert.Len(t, areas, 1)
	assert.Equal(t, "2025-06-02", store.onDate)
	assert.Equal(t, []domain.RiskLevel{domain.LevelHigh, domain.LevelCritical}, store.levels)
}

func TestPredictor_Predictions(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(fixedNow))
	defer domain.SetClock(nil)

	store := &fakeStore{}
	p := newPredictor(&fakeForecaster{}, fakeRivers{}, store, 1)

	_, err := p.Predictions(context.Background(), "nuwara eliya")
	require.NoError(t, err)
	assert.Equal(t, "Nuwara Eliya", store.district, "district name is canonicalized")
	assert.Equal(t, "2025-06-01", store.fromDate)

	_, err = p.Predictions(context.Background(), "Atlantis")
	assert.ErrorIs(t, err, domain.ErrUnknownDistrict)

	_, err = p.Predictions(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, store.district)
}
