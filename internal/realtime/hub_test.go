package realtime

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/resq-unified/flood-risk-service/internal/domain"
	"github.com/resq-unified/flood-risk-service/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestHub(tr Transport) *Hub {
	return NewHub(tr, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type recorder struct {
	mu     sync.Mutex
	events []domain.ChangeEvent
}

func (r *recorder) add(ev domain.ChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func predictionEvent(t *testing.T, district string, level domain.RiskLevel) domain.ChangeEvent {
	t.Helper()
	ev, err := domain.NewChangeEvent(domain.TableFloodPredictions, domain.ChangeInsert,
		domain.FloodPrediction{District: district, RiskLevel: level})
	require.NoError(t, err)
	return ev
}

func TestHub_DeliversMatchingEvents(t *testing.T) {
	tr := NewLocalTransport()
	hub := newTestHub(tr)
	defer hub.Close()

	var all, elevated recorder
	_, err := hub.Subscribe(domain.TableFloodPredictions, AllEvents, all.add)
	require.NoError(t, err)
	_, err = hub.Subscribe(domain.TableFloodPredictions, ElevatedPredictions, elevated.add)
	require.NoError(t, err)
	assert.Equal(t, 2, hub.Channels())

	ctx := context.Background()
	require.NoError(t, tr.Publish(ctx,
		predictionEvent(t, "Colombo", domain.LevelLow),
		predictionEvent(t, "Galle", domain.LevelCritical),
	))

	assert.Eventually(t, func() bool { return all.len() == 2 && elevated.len() == 1 }, time.Second, 5*time.Millisecond)
}

func TestHub_SharesChannelPerKey(t *testing.T) {
	tr := NewLocalTransport()
	hub := newTestHub(tr)
	defer hub.Close()

	var a, b recorder
	unsubA, err := hub.Subscribe(domain.TableRiverLevels, AllEvents, a.add)
	require.NoError(t, err)
	unsubB, err := hub.Subscribe(domain.TableRiverLevels, AllEvents, b.add)
	require.NoError(t, err)
	assert.Equal(t, 1, hub.Channels())

	unsubA()
	unsubA()
	assert.Equal(t, 1, hub.Channels(), "channel stays open while a subscriber remains")

	unsubB()
	assert.Zero(t, hub.Channels(), "last unsubscribe closes the channel")
}

func TestHub_IgnoresOtherTables(t *testing.T) {
	tr := NewLocalTransport()
	hub := newTestHub(tr)
	defer hub.Close()

	var rec recorder
	_, err := hub.Subscribe(domain.TableRiverLevels, AllEvents, rec.add)
	require.NoError(t, err)

	require.NoError(t, tr.Publish(context.Background(), predictionEvent(t, "Kandy", domain.LevelHigh)))
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, rec.len())
}

func TestHub_CloseUnsubscribesAll(t *testing.T) {
	hub := newTestHub(NewLocalTransport())

	for _, table := range []string{domain.TableRiverLevels, domain.TableFloodPredictions, domain.TableWeatherData} {
		_, err := hub.Subscribe(table, AllEvents, func(domain.ChangeEvent) {})
		require.NoError(t, err)
	}
	require.Equal(t, 3, hub.Channels())

	hub.Close()
	assert.Zero(t, hub.Channels())

	_, err := hub.Subscribe(domain.TableRiverLevels, AllEvents, func(domain.ChangeEvent) {})
	assert.ErrorIs(t, err, ErrClosed)
}

type failingTransport struct{}

func (failingTransport) Subscribe(context.Context, string) (<-chan domain.ChangeEvent, error) {
	return nil, errors.New("broker unreachable")
}

func TestHub_TransportError(t *testing.T) {
	hub := newTestHub(failingTransport{})
	defer hub.Close()

	_, err := hub.Subscribe(domain.TableRiverLevels, AllEvents, func(domain.ChangeEvent) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker unreachable")
	assert.Zero(t, hub.Channels())
}

func TestHub_NilCallback(t *testing.T) {
	hub := newTestHub(NewLocalTransport())
	defer hub.Close()

	_, err := hub.Subscribe(domain.TableRiverLevels, AllEvents, nil)
	require.Error(t, err)
}

func TestElevatedFilter(t *testing.T) {
	f, ok := ElevatedFilter(domain.TableFloodPredictions)
	require.True(t, ok)
	assert.True(t, f.Match(predictionEvent(t, "Galle", domain.LevelHigh)))
	assert.False(t, f.Match(predictionEvent(t, "Galle", domain.LevelMedium)))

	f, ok = ElevatedFilter(domain.TableRiverLevels)
	require.True(t, ok)
	ev, err := domain.NewChangeEvent(domain.TableRiverLevels, domain.ChangeInsert,
		domain.RiverGaugeReading{Status: domain.StatusFlooding})
	require.NoError(t, err)
	assert.True(t, f.Match(ev))

	f, ok = ElevatedFilter(domain.TableWeatherData)
	require.True(t, ok)
	ev, err = domain.NewChangeEvent(domain.TableWeatherData, domain.ChangeInsert,
		domain.DistrictWeather{RiskLevel: domain.LevelLow})
	require.NoError(t, err)
	assert.False(t, f.Match(ev))

	_, ok = ElevatedFilter("shelters")
	assert.False(t, ok)
}
