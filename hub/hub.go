package hub

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/replica"
	"github.com/wippyai/replica/registry"
)

// Op names a mutation kind as change listeners observe it. The list-op
// names keep the wire protocol's table terminology.
type Op string

const (
	OpSet       Op = "Set"
	OpSetValues Op = "SetValues"
	OpInsert    Op = "TableInsert"
	OpRemove    Op = "TableRemove"
)

// Listener signatures for the hub's scopes.
type (
	// SetFunc observes a path-scoped Set as (newValue, oldValue).
	SetFunc func(newValue, oldValue any)

	// WriteFunc observes a catalog function invocation with its raw args,
	// not its results.
	WriteFunc func(args []any)

	// ChangeFunc observes every mutation kind on an entity. For Set,
	// value/extra are (newValue, oldValue); for SetValues, (fields, nil);
	// for the list ops, (value, index) and (removedValue, index).
	ChangeFunc func(op Op, path []string, value, extra any)

	// SignalFunc observes inbound signals for an entity.
	SignalFunc func(args []any)

	// NewEntityFunc observes entities of a token becoming Active.
	NewEntityFunc func(ent *registry.Entity)
)

// Options configures a Hub.
type Options struct {
	// Workers and Queue size the listener dispatch pool.
	Workers int
	Queue   int

	Logger *zap.Logger

	// ActiveByToken supplies the already-Active entities of a token so a
	// new-entity subscription can replay them at subscribe time. Usually
	// wired to the registry's token index.
	ActiveByToken func(token replica.Token) []*registry.Entity
}

// Hub is the subscription and notification hub. Listener registration and
// disposal are synchronous; listener execution is asynchronous and
// isolated (see dispatcher). Within one event the mutation is fully
// applied before any listener runs; ordering among listeners of the same
// scope is unspecified.
type Hub struct {
	mu            sync.Mutex
	entities      map[replica.EntityID]*entitySubs
	tokens        map[replica.Token]map[uint64]*tokenSub
	nextID        uint64
	disp          *dispatcher
	activeByToken func(token replica.Token) []*registry.Entity
}

// tokenSub is one new-entity subscription. seen records the entity ids the
// listener has already fired for, so the subscribe-time replay and a
// concurrent activation of the same entity resolve to a single invocation.
type tokenSub struct {
	fn   NewEntityFunc
	seen map[replica.EntityID]struct{}
}

type entitySubs struct {
	sets    map[string]map[uint64]SetFunc
	writes  map[string]map[uint64]WriteFunc
	changes map[uint64]ChangeFunc
	signals map[uint64]SignalFunc
}

// New creates a hub and starts its dispatch pool.
func New(opts Options) *Hub {
	return &Hub{
		entities:      make(map[replica.EntityID]*entitySubs),
		tokens:        make(map[replica.Token]map[uint64]*tokenSub),
		disp:          newDispatcher(opts.Workers, opts.Queue, opts.Logger),
		activeByToken: opts.ActiveByToken,
	}
}

// Subscription is a disposable connection token. Dispose removes the
// listener from its owning set; it is idempotent and safe to call from
// within the listener's own invocation.
type Subscription struct {
	once   sync.Once
	remove func()
}

// Dispose detaches the listener.
func (s *Subscription) Dispose() {
	s.once.Do(s.remove)
}

// pathKey flattens a path into a map key. The unit separator cannot occur
// in replicated keys, which are plain identifiers.
func pathKey(path []string) string {
	return strings.Join(path, "\x1f")
}

// SubscribeSet registers a path-scoped listener on one entity.
func (h *Hub) SubscribeSet(id replica.EntityID, path []string, fn SetFunc) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.entitySubs(id)
	key := pathKey(path)
	if subs.sets[key] == nil {
		subs.sets[key] = make(map[uint64]SetFunc)
	}
	sid := h.nextSubID()
	subs.sets[key][sid] = fn

	return h.subscription(func() {
		if s := h.entities[id]; s != nil {
			delete(s.sets[key], sid)
		}
	})
}

// SubscribeWrite registers a function-scoped listener on one entity.
func (h *Hub) SubscribeWrite(id replica.EntityID, function string, fn WriteFunc) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.entitySubs(id)
	if subs.writes[function] == nil {
		subs.writes[function] = make(map[uint64]WriteFunc)
	}
	sid := h.nextSubID()
	subs.writes[function][sid] = fn

	return h.subscription(func() {
		if s := h.entities[id]; s != nil {
			delete(s.writes[function], sid)
		}
	})
}

// SubscribeChange registers an all-mutations listener on one entity.
func (h *Hub) SubscribeChange(id replica.EntityID, fn ChangeFunc) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.entitySubs(id)
	sid := h.nextSubID()
	subs.changes[sid] = fn

	return h.subscription(func() {
		if s := h.entities[id]; s != nil {
			delete(s.changes, sid)
		}
	})
}

// SubscribeSignal registers a signal listener on one entity.
func (h *Hub) SubscribeSignal(id replica.EntityID, fn SignalFunc) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.entitySubs(id)
	sid := h.nextSubID()
	subs.signals[sid] = fn

	return h.subscription(func() {
		if s := h.entities[id]; s != nil {
			delete(s.signals, sid)
		}
	})
}

// SubscribeNewEntity registers a token-scoped listener fired once per
// entity the first time it becomes Active. Entities already Active at
// subscribe time are replayed immediately (asynchronously, like any other
// dispatch).
func (h *Hub) SubscribeNewEntity(token replica.Token, fn NewEntityFunc) *Subscription {
	sub := &tokenSub{fn: fn, seen: make(map[replica.EntityID]struct{})}

	h.mu.Lock()
	if h.tokens[token] == nil {
		h.tokens[token] = make(map[uint64]*tokenSub)
	}
	sid := h.nextSubID()
	h.tokens[token][sid] = sub
	lookup := h.activeByToken
	h.mu.Unlock()

	if lookup != nil {
		for _, ent := range lookup(token) {
			h.announceTo(sub, ent)
		}
	}

	return h.subscription(func() {
		delete(h.tokens[token], sid)
	})
}

// announceTo fires a token subscription for one entity unless it has
// already fired for that id. The seen check is what keeps an entity that
// activates during the subscribe-time replay window from being delivered
// by both paths.
func (h *Hub) announceTo(sub *tokenSub, ent *registry.Entity) {
	h.mu.Lock()
	if _, dup := sub.seen[ent.ID]; dup {
		h.mu.Unlock()
		return
	}
	sub.seen[ent.ID] = struct{}{}
	h.mu.Unlock()

	h.disp.enqueue(func() { sub.fn(ent) })
}

// Mutation notifies listeners of an applied mutation. Change listeners see
// every op; path-scoped set listeners additionally see OpSet events for
// their exact path.
func (h *Hub) Mutation(id replica.EntityID, op Op, path []string, value, extra any) {
	h.mu.Lock()
	subs := h.entities[id]
	var sets []SetFunc
	var changes []ChangeFunc
	if subs != nil {
		if op == OpSet {
			for _, fn := range subs.sets[pathKey(path)] {
				sets = append(sets, fn)
			}
		}
		for _, fn := range subs.changes {
			changes = append(changes, fn)
		}
	}
	h.mu.Unlock()

	for _, fn := range sets {
		fn := fn
		h.disp.enqueue(func() { fn(value, extra) })
	}
	for _, fn := range changes {
		fn := fn
		h.disp.enqueue(func() { fn(op, path, value, extra) })
	}
}

// Write notifies function-scoped listeners of a catalog invocation.
func (h *Hub) Write(id replica.EntityID, function string, args []any) {
	h.mu.Lock()
	var fns []WriteFunc
	if subs := h.entities[id]; subs != nil {
		for _, fn := range subs.writes[function] {
			fns = append(fns, fn)
		}
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn := fn
		h.disp.enqueue(func() { fn(args) })
	}
}

// Signal notifies signal listeners of an inbound signal.
func (h *Hub) Signal(id replica.EntityID, args []any) {
	h.mu.Lock()
	var fns []SignalFunc
	if subs := h.entities[id]; subs != nil {
		for _, fn := range subs.signals {
			fns = append(fns, fn)
		}
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn := fn
		h.disp.enqueue(func() { fn(args) })
	}
}

// EntityActive announces a creation-visible entity to its token's
// new-entity listeners.
func (h *Hub) EntityActive(ent *registry.Entity) {
	h.mu.Lock()
	subs := make([]*tokenSub, 0, len(h.tokens[ent.Token]))
	for _, sub := range h.tokens[ent.Token] {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		h.announceTo(sub, ent)
	}
}

// DropEntity discards every listener attached to an entity instance. Used
// on destruction and demotion; token-scoped listeners survive because they
// belong to the token, not the instance.
func (h *Hub) DropEntity(id replica.EntityID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.entities, id)

	// The instance is gone; forget it in token subscriptions too, so a
	// repromoted or id-reusing successor announces as a new entity.
	for _, subs := range h.tokens {
		for _, sub := range subs {
			delete(sub.seen, id)
		}
	}
}

// Wait blocks until every dispatched listener has finished. Intended for
// tests and orderly shutdown.
func (h *Hub) Wait() {
	h.disp.wait()
}

// Close drains and stops the dispatch pool.
func (h *Hub) Close() {
	h.disp.close()
}

func (h *Hub) entitySubs(id replica.EntityID) *entitySubs {
	subs := h.entities[id]
	if subs == nil {
		subs = &entitySubs{
			sets:    make(map[string]map[uint64]SetFunc),
			writes:  make(map[string]map[uint64]WriteFunc),
			changes: make(map[uint64]ChangeFunc),
			signals: make(map[uint64]SignalFunc),
		}
		h.entities[id] = subs
	}
	return subs
}

func (h *Hub) nextSubID() uint64 {
	h.nextID++
	return h.nextID
}

func (h *Hub) subscription(remove func()) *Subscription {
	return &Subscription{remove: func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		remove()
	}}
}
