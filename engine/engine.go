package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/replica"
	"github.com/wippyai/replica/catalog"
	"github.com/wippyai/replica/errors"
	"github.com/wippyai/replica/hub"
	"github.com/wippyai/replica/registry"
	"github.com/wippyai/replica/wire"
)

const defaultPollInterval = 2 * time.Second

// Options configures engine creation.
type Options struct {
	// Transport is the outbound half of the peer connection. Optional;
	// without it the engine cannot poll for initial data or send signals.
	Transport replica.Transport

	// Sources maps catalog source references (as named by creation
	// messages) to loadable sources.
	Sources map[string]catalog.Source

	// Catalogs is the shared catalog cache. A private cache is created
	// when nil.
	Catalogs *catalog.Cache

	// HubWorkers and HubQueue size the listener dispatch pool.
	HubWorkers int
	HubQueue   int

	// PollInterval is the period of the initial-data request task.
	PollInterval time.Duration

	Logger *zap.Logger
}

// Engine is the replication engine: it consumes inbound messages one at a
// time, to completion, in arrival order, mutating the registry and
// notifying the hub. The registry is the single source of truth; every
// component mutates it only through its defined operations.
type Engine struct {
	mu        sync.Mutex
	reg       *registry.Registry
	hub       *hub.Hub
	catalogs  *catalog.Cache
	transport replica.Transport
	sources   map[string]catalog.Source
	logger    *zap.Logger

	// orphanResources holds handles attached before their entity's
	// creation message arrived. The resource stream and the update stream
	// are independent and may interleave either way.
	orphanResources map[replica.EntityID]any

	pollInterval time.Duration
	readyOnce    sync.Once
	readyCh      chan struct{}
}

// New creates an engine.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = Logger()
	}
	catalogs := opts.Catalogs
	if catalogs == nil {
		catalogs = catalog.NewCache()
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	reg := registry.New()
	return &Engine{
		reg: reg,
		hub: hub.New(hub.Options{
			Workers:       opts.HubWorkers,
			Queue:         opts.HubQueue,
			Logger:        logger,
			ActiveByToken: reg.LookupByToken,
		}),
		catalogs:        catalogs,
		transport:       opts.Transport,
		sources:         opts.Sources,
		logger:          logger,
		orphanResources: make(map[replica.EntityID]any),
		pollInterval:    interval,
		readyCh:         make(chan struct{}),
	}
}

// Registry exposes the entity stores for lookups.
func (e *Engine) Registry() *registry.Registry {
	return e.reg
}

// Hub exposes the subscription hub.
func (e *Engine) Hub() *hub.Hub {
	return e.hub
}

// Ready is closed once the first ReadyHandshake arrives.
func (e *Engine) Ready() <-chan struct{} {
	return e.readyCh
}

// Handle applies one inbound message to completion. Messages are strictly
// serialized; two messages' effects never interleave. The returned error
// is fatal to this message only; registry state for unrelated entities is
// never touched by a failing message, and the caller is free to keep
// dispatching.
func (e *Engine) Handle(ctx context.Context, msg wire.Message) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var err error
	switch m := msg.(type) {
	case wire.Create:
		err = e.applyCreate(m)
	case wire.Set:
		err = e.applySet(m)
	case wire.SetValues:
		err = e.applySetValues(m)
	case wire.ListInsert:
		err = e.applyListInsert(m)
	case wire.ListRemove:
		err = e.applyListRemove(m)
	case wire.Write:
		err = e.applyWrite(ctx, m)
	case wire.Signal:
		err = e.applySignal(m)
	case wire.Reparent:
		err = e.applyReparent(m)
	case wire.BindNotify:
		err = e.applyBindNotify(m)
	case wire.Destroy:
		err = e.applyDestroy(m)
	case wire.Ready:
		e.applyReady()
	default:
		err = errors.New(errors.PhaseDispatch, errors.KindInvalidData).
			Detail("unhandled message type %T", msg).
			Build()
	}

	if err != nil {
		e.logger.Warn("message dropped",
			zap.Stringer("kind", msg.Kind()),
			zap.Error(err))
	}
	return err
}

// Run drains inbound until the channel closes or ctx is cancelled. When a
// transport is configured the initial-data poller runs alongside until the
// ready handshake arrives.
func (e *Engine) Run(ctx context.Context, inbound <-chan wire.Message) error {
	if e.transport != nil {
		stop := e.StartPolling(ctx)
		defer stop()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-inbound:
			if !ok {
				return nil
			}
			// Per-message errors are logged in Handle; the loop never
			// stops for them.
			_ = e.Handle(ctx, msg)
		}
	}
}

// Signal sends an outbound signal for an Active entity. Sending for a
// Pending or unknown id is a caller error.
func (e *Engine) Signal(id replica.EntityID, reliability replica.Reliability, args ...any) error {
	if e.transport == nil {
		return errors.InvalidInput(errors.PhaseDispatch, "no transport configured")
	}

	tier, ok := e.reg.Tier(id)
	if !ok {
		return errors.New(errors.PhaseDispatch, errors.KindInvalidInput).
			Entity(uint32(id)).
			Detail("signal for unknown id").
			Build()
	}
	if tier != replica.TierActive {
		return errors.New(errors.PhaseDispatch, errors.KindInvalidInput).
			Entity(uint32(id)).
			Detail("signal for pending id").
			Build()
	}
	return e.transport.Signal(id, reliability, args...)
}

// Close drains listener dispatch and releases the hub's workers.
func (e *Engine) Close() {
	e.hub.Close()
}

func (e *Engine) applyReady() {
	e.readyOnce.Do(func() {
		close(e.readyCh)
	})
}

// parentActive reports whether an entity's ancestor chain permits
// activation. The root sentinel counts as Active.
func (e *Engine) parentActive(ent *registry.Entity) bool {
	if ent.ParentID == replica.RootID {
		return true
	}
	tier, ok := e.reg.Tier(ent.ParentID)
	return ok && tier == replica.TierActive
}

// activatable reports whether the entity's own requirements allow the
// Active tier, assuming its ancestors are Active.
func activatable(ent *registry.Entity) bool {
	return !ent.BindRequired || ent.Resource != nil
}
