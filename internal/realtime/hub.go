// Package realtime fans change events from a push transport out to in-process
// subscribers.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/resq-unified/flood-risk-service/internal/domain"
	"github.com/resq-unified/flood-risk-service/internal/observability"
)

// Transport opens a stream of change events for one table. The channel must
// be closed once ctx is cancelled.
type Transport interface {
	Subscribe(ctx context.Context, table string) (<-chan domain.ChangeEvent, error)
}

// Filter narrows the events delivered on a channel. Subscriptions with the
// same table and filter name share one transport channel.
type Filter struct {
	Name  string
	Match func(domain.ChangeEvent) bool
}

// AllEvents matches every event on a table.
var AllEvents = Filter{Name: "*"}

// ErrClosed is returned by Subscribe after Close.
var ErrClosed = errors.New("realtime hub closed")

// Callback receives matching events. Callbacks for one channel run
// sequentially on the channel's goroutine.
type Callback func(domain.ChangeEvent)

type channel struct {
	cancel context.CancelFunc
	done   chan struct{}
	subs   map[uint64]Callback
}

// Hub is the registry of open channels. The zero value is not usable; create
// one with NewHub.
type Hub struct {
	transport Transport
	metrics   *observability.Metrics
	logger    *slog.Logger

	mu       sync.Mutex
	channels map[string]*channel
	nextID   uint64
	closed   bool
}

// NewHub creates a hub over the given transport.
func NewHub(transport Transport, metrics *observability.Metrics, logger *slog.Logger) *Hub {
	return &Hub{
		transport: transport,
		metrics:   metrics,
		logger:    logger,
		channels:  make(map[string]*channel),
	}
}

func channelKey(table string, f Filter) string {
	return table + "|" + f.Name
}

// Subscribe registers cb for events on table that pass f. The first
// subscriber for a (table, filter) pair opens a transport channel and the
// last unsubscribe closes it. The returned func is idempotent.
func (h *Hub) Subscribe(table string, f Filter, cb Callback) (unsubscribe func(), err error) {
	if cb == nil {
		return nil, errors.New("subscribe: nil callback")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}

	key := channelKey(table, f)
	ch, ok := h.channels[key]
	if !ok {
		ch, err = h.open(table, f)
		if err != nil {
			return nil, err
		}
		h.channels[key] = ch
		h.metrics.RealtimeChannels.Inc()
		h.logger.Debug("realtime channel opened", "channel", key)
	}

	h.nextID++
	id := h.nextID
	ch.subs[id] = cb

	var once sync.Once
	return func() {
		once.Do(func() { h.unsubscribe(key, id) })
	}, nil
}

func (h *Hub) open(table string, f Filter) (*channel, error) {
	ctx, cancel := context.WithCancel(context.Background())
	events, err := h.transport.Subscribe(ctx, table)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open %s channel: %w", table, err)
	}
	ch := &channel{cancel: cancel, done: make(chan struct{}), subs: make(map[uint64]Callback)}
	go h.dispatch(ch, f, events)
	return ch, nil
}

func (h *Hub) dispatch(ch *channel, f Filter, events <-chan domain.ChangeEvent) {
	defer close(ch.done)
	for ev := range events {
		if f.Match != nil && !f.Match(ev) {
			continue
		}
		h.mu.Lock()
		cbs := make([]Callback, 0, len(ch.subs))
		for _, cb := range ch.subs {
			cbs = append(cbs, cb)
		}
		h.mu.Unlock()
		for _, cb := range cbs {
			cb(ev)
		}
	}
}

func (h *Hub) unsubscribe(key string, id uint64) {
	h.mu.Lock()
	ch, ok := h.channels[key]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(ch.subs, id)
	if len(ch.subs) > 0 {
		h.mu.Unlock()
		return
	}
	delete(h.channels, key)
	h.mu.Unlock()

	ch.cancel()
	h.metrics.RealtimeChannels.Dec()
	h.logger.Debug("realtime channel closed", "channel", key)
}

// Channels returns the number of open transport channels.
func (h *Hub) Channels() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.channels)
}

// Close unsubscribes everything and waits for dispatch goroutines to exit.
// Further Subscribe calls return ErrClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	chans := h.channels
	h.channels = make(map[string]*channel)
	h.mu.Unlock()

	for _, ch := range chans {
		ch.cancel()
		h.metrics.RealtimeChannels.Dec()
	}
	for _, ch := range chans {
		<-ch.done
	}
}
