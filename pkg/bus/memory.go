package bus

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/DarthNec/Fonana-sub001/pkg/event"
)

// MemoryBroker links several in-process Memory buses, standing in for
// redis in tests that exercise cross-instance fanout.
type MemoryBroker struct {
	mu    sync.RWMutex
	buses []*Memory
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{}
}

// Attach creates a bus joined to the broker.
func (br *MemoryBroker) Attach() *Memory {
	b := &Memory{broker: br, instance: uuid.NewString()}
	br.mu.Lock()
	br.buses = append(br.buses, b)
	br.mu.Unlock()
	return b
}

func (br *MemoryBroker) broadcast(env event.Envelope) {
	br.mu.RLock()
	buses := append([]*Memory(nil), br.buses...)
	br.mu.RUnlock()
	for _, b := range buses {
		b.deliver(env)
	}
}

// Memory is one instance's handle on a MemoryBroker.
type Memory struct {
	broker   *MemoryBroker
	instance string

	mu    sync.Mutex
	relay RelayFunc
}

func (b *Memory) Publish(ctx context.Context, channelKey string, ev event.Event) error {
	b.broker.broadcast(event.Envelope{ChannelKey: channelKey, Origin: b.instance, Event: ev})
	return nil
}

func (b *Memory) Start(ctx context.Context, relay RelayFunc) error {
	b.mu.Lock()
	b.relay = relay
	b.mu.Unlock()
	return nil
}

func (b *Memory) Close() error {
	b.mu.Lock()
	b.relay = nil
	b.mu.Unlock()
	return nil
}

func (b *Memory) deliver(env event.Envelope) {
	if env.Origin == b.instance {
		return
	}
	b.mu.Lock()
	relay := b.relay
	b.mu.Unlock()
	if relay != nil {
		relay(env)
	}
}
