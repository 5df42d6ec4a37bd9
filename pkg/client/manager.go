// Package client is the Go client for the realtime server: a socket
// transport with reconnect/backoff and an event manager that dedups,
// throttles, and queues incoming events before handing them to
// application handlers.
package client

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/DarthNec/Fonana-sub001/pkg/event"
)

// ManagerOptions tunes the event manager. Zero values pick defaults.
type ManagerOptions struct {
	// QueueSize bounds the pending-event FIFO; overflow drops the
	// oldest entry to admit the newest.
	QueueSize int
	// ThrottleWindow suppresses same kind+payload events arriving in
	// quick succession (duplicate fanout paths).
	ThrottleWindow time.Duration
	// DedupWindow suppresses repeats of the same kind+id (or
	// kind+payload when the event has no id).
	DedupWindow time.Duration
	// DrainDelay is the cooperative pause between dispatched entries so
	// a burst never runs as one synchronous storm.
	DrainDelay time.Duration
}

func (o *ManagerOptions) defaults() {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.ThrottleWindow <= 0 {
		o.ThrottleWindow = 50 * time.Millisecond
	}
	if o.DedupWindow <= 0 {
		o.DedupWindow = 5 * time.Second
	}
	if o.DrainDelay <= 0 {
		o.DrainDelay = 10 * time.Millisecond
	}
}

// Manager dispatches incoming events to registered handlers.
type Manager struct {
	opt     ManagerOptions
	emitter *event.Emitter

	mu        sync.Mutex
	queue     []event.Event
	wake      chan struct{}
	throttled map[string]time.Time
	deduped   map[string]time.Time
	dropped   int

	now func() time.Time
}

// NewManager builds a manager; call Run to start the queue drainer.
func NewManager(opt ManagerOptions) *Manager {
	opt.defaults()
	return &Manager{
		opt:       opt,
		emitter:   event.NewEmitter(),
		wake:      make(chan struct{}, 1),
		throttled: make(map[string]time.Time),
		deduped:   make(map[string]time.Time),
		now:       time.Now,
	}
}

// On registers a handler for an event kind; the returned func removes it.
func (m *Manager) On(kind event.Kind, fn event.Handler) func() {
	return m.emitter.On(kind, fn)
}

// Emit enqueues an event for dispatch. When the queue is full the oldest
// entry is dropped: bounded memory, freshness over completeness.
func (m *Manager) Emit(ev event.Event) {
	m.mu.Lock()
	if len(m.queue) >= m.opt.QueueSize {
		m.queue = m.queue[1:]
		m.dropped++
	}
	m.queue = append(m.queue, ev)
	m.mu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Dropped reports how many queued entries were discarded on overflow.
func (m *Manager) Dropped() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

// Pending reports the current queue depth.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Run drains the queue until ctx is canceled, pausing DrainDelay between
// entries.
func (m *Manager) Run(ctx context.Context) {
	for {
		ev, ok := m.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-m.wake:
				continue
			}
		}
		m.Dispatch(ev)
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.opt.DrainDelay):
		}
	}
}

func (m *Manager) pop() (event.Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return event.Event{}, false
	}
	ev := m.queue[0]
	m.queue = m.queue[1:]
	return ev, true
}

// Dispatch applies the throttle and dedup filters and, if the event
// survives, hands it to the registered handlers. Exported so tests can
// drive dispatch without the drainer's timing.
func (m *Manager) Dispatch(ev event.Event) bool {
	now := m.now()
	tKey, dKey := filterKeys(ev)

	m.mu.Lock()
	if at, ok := m.throttled[tKey]; ok && now.Sub(at) < m.opt.ThrottleWindow {
		m.mu.Unlock()
		return false
	}
	if at, ok := m.deduped[dKey]; ok && now.Sub(at) < m.opt.DedupWindow {
		m.mu.Unlock()
		return false
	}
	m.throttled[tKey] = now
	m.deduped[dKey] = now
	m.pruneLocked(now)
	m.mu.Unlock()

	m.emitter.Emit(ev)
	return true
}

// pruneLocked evicts expired filter entries so the maps stay bounded by
// recent traffic.
func (m *Manager) pruneLocked(now time.Time) {
	if len(m.throttled) > 4*m.opt.QueueSize {
		for k, at := range m.throttled {
			if now.Sub(at) >= m.opt.ThrottleWindow {
				delete(m.throttled, k)
			}
		}
	}
	if len(m.deduped) > 4*m.opt.QueueSize {
		for k, at := range m.deduped {
			if now.Sub(at) >= m.opt.DedupWindow {
				delete(m.deduped, k)
			}
		}
	}
}

// filterKeys derives the throttle key (kind+payload) and dedup key
// (kind+id, falling back to kind+payload).
func filterKeys(ev event.Event) (throttle, dedup string) {
	payload, _ := json.Marshal(ev.Data)
	throttle = string(ev.Kind) + "|" + string(payload)
	if ev.ID != "" {
		dedup = string(ev.Kind) + "#" + ev.ID
	} else {
		dedup = throttle
	}
	return throttle, dedup
}
