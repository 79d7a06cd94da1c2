package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/resq-unified/flood-risk-service/internal/observability"
)

// ErrNoData is reported by a poller that has not completed a fetch yet.
var ErrNoData = errors.New("no data fetched yet")

// FetchFunc produces a fresh value for a Poller.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// State is a poller's held value and the outcome of its latest applied fetch.
// A failed fetch keeps the previous Value and sets Err.
type State[T any] struct {
	Value     T
	HasValue  bool
	UpdatedAt time.Time
	Err       error
}

// Poller re-runs a fetch on a schedule and keeps the latest result. Every
// fetch is tagged with a generation; a result older than the one already
// applied, or arriving after Stop, is dropped. OnUpdate callbacks run one at a
// time in generation order and never after Stop returns.
type Poller[T any] struct {
	name     string
	sched    *Scheduler
	interval time.Duration
	fetch    FetchFunc[T]
	onUpdate func(context.Context, T)
	metrics  *observability.Metrics
	logger   *slog.Logger

	mu      sync.Mutex
	state   State[T]
	issued  uint64
	applied uint64
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}

	// deliverMu serializes onUpdate calls; delivered is guarded by it.
	deliverMu sync.Mutex
	delivered uint64
}

// NewPoller creates a stopped poller.
func NewPoller[T any](name string, sched *Scheduler, interval time.Duration, fetch FetchFunc[T], metrics *observability.Metrics, logger *slog.Logger) *Poller[T] {
	return &Poller[T]{
		name:     name,
		sched:    sched,
		interval: interval,
		fetch:    fetch,
		metrics:  metrics,
		logger:   logger.With("poller", name),
		state:    State[T]{Err: ErrNoData},
	}
}

// OnUpdate registers fn to run after each successfully applied fetch. It must
// be called before Start.
func (p *Poller[T]) OnUpdate(fn func(context.Context, T)) {
	p.onUpdate = fn
}

// Start begins polling in the background. Calling Start twice is a no-op.
func (p *Poller[T]) Start(ctx context.Context) {
	p.mu.Lock()
	if p.cancel != nil || p.stopped {
		p.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	done := p.done
	p.mu.Unlock()

	go func() {
		defer close(done)
		p.sched.Every(ctx, p.interval, func(ctx context.Context) { p.Refresh(ctx) })
	}()
}

// Stop cancels polling, waits for the loop to exit and discards any fetch
// still in flight.
func (p *Poller[T]) Stop() {
	p.mu.Lock()
	p.stopped = true
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	// Wait out a delivery started by a concurrent Refresh.
	p.deliverMu.Lock()
	defer p.deliverMu.Unlock()
}

// Refresh runs one fetch now and reports whether its result was applied.
func (p *Poller[T]) Refresh(ctx context.Context) bool {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return false
	}
	p.issued++
	gen := p.issued
	p.mu.Unlock()

	v, err := p.fetch(ctx)
	if !p.apply(gen, v, err) {
		return false
	}
	if err != nil || p.onUpdate == nil {
		return true
	}
	return p.deliver(ctx, gen, v)
}

// deliver runs onUpdate unless the poller stopped or a newer generation was
// delivered since gen was applied.
func (p *Poller[T]) deliver(ctx context.Context, gen uint64, v T) bool {
	p.deliverMu.Lock()
	defer p.deliverMu.Unlock()

	p.mu.Lock()
	stopped := p.stopped
	p.mu.Unlock()
	if stopped || gen < p.delivered {
		p.metrics.MonitorPolls.WithLabelValues(p.name, "stale").Inc()
		p.logger.Debug("skipping superseded update", "generation", gen, "delivered", p.delivered)
		return false
	}
	p.delivered = gen
	p.onUpdate(ctx, v)
	return true
}

func (p *Poller[T]) apply(gen uint64, v T, err error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped || gen < p.applied {
		p.metrics.MonitorPolls.WithLabelValues(p.name, "stale").Inc()
		p.logger.Debug("discarding stale poll result", "generation", gen, "applied", p.applied)
		return false
	}
	p.applied = gen

	if err != nil {
		p.metrics.MonitorPolls.WithLabelValues(p.name, "error").Inc()
		p.logger.Warn("poll failed, keeping previous data", "error", err)
		p.state.Err = err
		return true
	}
	p.metrics.MonitorPolls.WithLabelValues(p.name, "success").Inc()
	p.state = State[T]{Value: v, HasValue: true, UpdatedAt: p.sched.Now(), Err: nil}
	return true
}

// State returns a copy of the held state.
func (p *Poller[T]) State() State[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}
