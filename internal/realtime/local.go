package realtime

import (
	"context"
	"sync"

	"github.com/resq-unified/flood-risk-service/internal/domain"
)

const localBuffer = 64

// LocalTransport is an in-process change feed. It is both the publisher the
// store writes to and the Transport a Hub reads from, for deployments
// without a broker.
type LocalTransport struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]localSub
}

type localSub struct {
	table string
	ch    chan domain.ChangeEvent
}

// NewLocalTransport creates an empty in-process transport.
func NewLocalTransport() *LocalTransport {
	return &LocalTransport{subs: make(map[uint64]localSub)}
}

// Subscribe implements Transport.
func (t *LocalTransport) Subscribe(ctx context.Context, table string) (<-chan domain.ChangeEvent, error) {
	ch := make(chan domain.ChangeEvent, localBuffer)

	t.mu.Lock()
	t.nextID++
	id := t.nextID
	t.subs[id] = localSub{table: table, ch: ch}
	t.mu.Unlock()

	go func() {
		<-ctx.Done()
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

// Publish delivers events to every subscriber of their table. It blocks while
// a subscriber's buffer is full, until ctx is done.
func (t *LocalTransport) Publish(ctx context.Context, events ...domain.ChangeEvent) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, ev := range events {
		for _, s := range t.subs {
			if s.table != ev.Table {
				continue
			}
			select {
			case s.ch <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}
