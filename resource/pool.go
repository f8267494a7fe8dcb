package resource

import (
	"sync"

	"github.com/wippyai/replica"
)

// EventType identifies a pool lifecycle event.
type EventType uint8

const (
	EventAttached EventType = iota
	EventDetached
)

// Event is one pool lifecycle notification.
type Event struct {
	Type   EventType
	Entity replica.EntityID
	Value  any
}

// Observer receives pool lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// Binder is the engine-facing half of the pool: whatever it binds to is
// told about every attach and detach. Release of detached handles is the
// binder's job, not the pool's.
type Binder interface {
	AttachResource(id replica.EntityID, handle any)
	DetachResource(id replica.EntityID)
}

// Pool tracks externally-owned handles keyed by the entity they bind to.
// It is the bridge between a host resource system and the replication
// engine: the host inserts and removes handles here, and the pool forwards
// each change to the binder, which re-evaluates entity tiers.
type Pool struct {
	binder Binder

	mu      sync.Mutex
	handles map[replica.EntityID]any
	closed  bool

	obsMu     sync.RWMutex
	observers []Observer
}

// NewPool creates a pool forwarding to binder.
func NewPool(binder Binder) *Pool {
	return &Pool{
		binder:  binder,
		handles: make(map[replica.EntityID]any),
	}
}

// Attach stores a handle for an entity, replacing any previous one, and
// forwards the attachment to the binder.
func (p *Pool) Attach(id replica.EntityID, value any) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.handles[id] = value
	p.mu.Unlock()

	p.notify(Event{Type: EventAttached, Entity: id, Value: value})
	p.binder.AttachResource(id, value)
}

// Detach removes an entity's handle and forwards the detachment.
func (p *Pool) Detach(id replica.EntityID) (any, bool) {
	p.mu.Lock()
	value, ok := p.handles[id]
	if ok {
		delete(p.handles, id)
	}
	p.mu.Unlock()
	if !ok {
		return nil, false
	}

	p.notify(Event{Type: EventDetached, Entity: id, Value: value})
	p.binder.DetachResource(id)
	return value, true
}

// Get retrieves an entity's handle.
func (p *Pool) Get(id replica.EntityID) (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	value, ok := p.handles[id]
	return value, ok
}

// Len returns the number of attached handles.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handles)
}

// Each iterates over attached handles; return false to stop early.
func (p *Pool) Each(fn func(replica.EntityID, any) bool) {
	p.mu.Lock()
	snapshot := make(map[replica.EntityID]any, len(p.handles))
	for id, v := range p.handles {
		snapshot[id] = v
	}
	p.mu.Unlock()

	for id, v := range snapshot {
		if !fn(id, v) {
			return
		}
	}
}

// Subscribe adds an observer for pool events.
func (p *Pool) Subscribe(o Observer) {
	p.obsMu.Lock()
	defer p.obsMu.Unlock()
	p.observers = append(p.observers, o)
}

// Unsubscribe removes an observer.
func (p *Pool) Unsubscribe(o Observer) {
	p.obsMu.Lock()
	defer p.obsMu.Unlock()
	for i, obs := range p.observers {
		if obs == o {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			return
		}
	}
}

// Clear detaches every handle.
func (p *Pool) Clear() {
	p.mu.Lock()
	ids := make([]replica.EntityID, 0, len(p.handles))
	for id := range p.handles {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	for _, id := range ids {
		p.Detach(id)
	}
}

// Close clears the pool and stops accepting attachments.
func (p *Pool) Close() {
	p.Clear()
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

func (p *Pool) notify(e Event) {
	p.obsMu.RLock()
	defer p.obsMu.RUnlock()
	for _, o := range p.observers {
		o.OnResourceEvent(e)
	}
}
