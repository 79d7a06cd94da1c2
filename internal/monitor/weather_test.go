package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/resq-unified/flood-risk-service/internal/domain"
	"github.com/resq-unified/flood-risk-service/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWeather struct {
	mu     sync.Mutex
	report domain.WeatherReport
	err    error
	lat    float64
}

func (f *fakeWeather) FetchWeather(_ context.Context, lat, _ float64) (domain.WeatherReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lat = lat
	return f.report, f.err
}

func stormReport() domain.WeatherReport {
	hourly := make([]domain.HourlyPoint, 72)
	hourly[0].Rainfall = 150
	for i := range 20 {
		hourly[i].PrecipitationProbability = 90
	}
	return domain.WeatherReport{
		Current: domain.WeatherSample{Humidity: 95},
		Hourly:  hourly,
	}
}

func TestWeatherWatcher_RefreshAndRetain(t *testing.T) {
	f := &fakeWeather{report: domain.WeatherReport{Current: domain.WeatherSample{Humidity: 50}}}
	w := NewWeatherWatcher(f, 6.9271, 79.8612, NewScheduler(clockwork.NewFakeClock()), 0,
		observability.NewMetricsForTesting(), discardLogger())

	require.True(t, w.Refresh(context.Background()))
	st := w.State()
	require.NoError(t, st.Err)
	assert.Equal(t, domain.LevelLow, st.Value.Assessment.Level)
	assert.InDelta(t, 8, st.Value.Assessment.Score, 1e-9)
	assert.Equal(t, 6.9271, f.lat)
	assert.Equal(t, "Colombo", st.Value.District)

	f.mu.Lock()
	f.err = errors.New("open-meteo API error: status 500")
	f.mu.Unlock()

	require.True(t, w.Refresh(context.Background()))
	st = w.State()
	assert.Error(t, st.Err)
	assert.True(t, st.HasValue)
	assert.Equal(t, domain.LevelLow, st.Value.Assessment.Level, "previous assessment retained")
}

func TestWeatherWatcher_PollsOnInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	f := &fakeWeather{report: domain.WeatherReport{Current: domain.WeatherSample{Humidity: 50}}}
	w := NewWeatherWatcher(f, 7.29, 80.63, NewScheduler(clock), time.Minute,
		observability.NewMetricsForTesting(), discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	require.Eventually(t, func() bool { return w.State().HasValue }, time.Second, time.Millisecond)
	assert.Equal(t, "Kandy", w.State().Value.District)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	f.mu.Lock()
	f.report = stormReport()
	f.mu.Unlock()
	clock.Advance(time.Minute)

	require.Eventually(t, func() bool {
		return w.State().Value.Assessment.Level == domain.LevelCritical
	}, time.Second, time.Millisecond)
}
