package event

import "sync"

// Handler consumes one event.
type Handler func(Event)

// Emitter is a runtime-registrable dispatch table keyed by event kind.
// Routing is closed over the Kind enum while the per-kind handler lists
// stay dynamic.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[Kind][]registration
	nextID   int
}

type registration struct {
	id int
	fn Handler
}

// NewEmitter returns an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[Kind][]registration)}
}

// On registers fn for kind and returns a removal func.
func (em *Emitter) On(kind Kind, fn Handler) (off func()) {
	em.mu.Lock()
	em.nextID++
	id := em.nextID
	em.handlers[kind] = append(em.handlers[kind], registration{id: id, fn: fn})
	em.mu.Unlock()
	return func() { em.remove(kind, id) }
}

func (em *Emitter) remove(kind Kind, id int) {
	em.mu.Lock()
	defer em.mu.Unlock()
	regs := em.handlers[kind]
	for i, r := range regs {
		if r.id == id {
			em.handlers[kind] = append(regs[:i:i], regs[i+1:]...)
			return
		}
	}
}

// Emit dispatches ev to every handler registered for its kind, in
// registration order. Handlers registered or removed during dispatch take
// effect on the next Emit.
func (em *Emitter) Emit(ev Event) {
	em.mu.RLock()
	regs := em.handlers[ev.Kind]
	em.mu.RUnlock()
	for _, r := range regs {
		r.fn(ev)
	}
}

// HandlerCount reports the number of handlers registered for kind.
func (em *Emitter) HandlerCount(kind Kind) int {
	em.mu.RLock()
	defer em.mu.RUnlock()
	return len(em.handlers[kind])
}
