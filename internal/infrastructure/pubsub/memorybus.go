package pubsub

import (
	"context"
	"slices"
	"sync"

	"github.com/payops/payops/internal/domain/shared/events"
)

// MemoryEventBus keeps published events in process. It backs the "memory"
// driver and tests.
type MemoryEventBus struct {
	mu     sync.Mutex
	events []events.Event
	fail   error
}

func NewMemoryEventBus() *MemoryEventBus {
	return &MemoryEventBus{}
}

func (b *MemoryEventBus) Publish(_ context.Context, event events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return b.fail
	}
	b.events = append(b.events, event)
	return nil
}

// FailWith makes subsequent publishes return err until reset with nil.
func (b *MemoryEventBus) FailWith(err error) {
	b.mu.Lock()
	b.fail = err
	b.mu.Unlock()
}

func (b *MemoryEventBus) Events() []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.events)
}

// OfType filters published events by type.
func (b *MemoryEventBus) OfType(t events.Type) []events.Event {
	var out []events.Event
	for _, e := range b.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (b *MemoryEventBus) Close() error { return nil }
