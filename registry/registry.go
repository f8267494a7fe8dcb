package registry

import (
	"sort"
	"sync"

	"github.com/wippyai/replica"
	"github.com/wippyai/replica/errors"
)

// Registry is the single source of truth for the replicated graph: two
// independent id-indexed stores (Pending, Active) plus a token index built
// only from the Active store. An id lives in exactly one store at a time.
//
// The registry is purely storage; creation-visible announcements are the
// caller's responsibility so that batch operations can buffer and order
// them (parent before descendant).
type Registry struct {
	mu      sync.RWMutex
	pending map[replica.EntityID]*Entity
	active  map[replica.EntityID]*Entity
	byToken map[replica.Token]map[replica.EntityID]*Entity
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		pending: make(map[replica.EntityID]*Entity),
		active:  make(map[replica.EntityID]*Entity),
		byToken: make(map[replica.Token]map[replica.EntityID]*Entity),
	}
}

// Register inserts an entity into the given tier. Registering an id that
// is already present in either tier is a duplicate error.
func (r *Registry) Register(e *Entity, tier replica.Tier) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pending[e.ID]; ok {
		return errors.Duplicate(errors.PhaseCreate, uint32(e.ID))
	}
	if _, ok := r.active[e.ID]; ok {
		return errors.Duplicate(errors.PhaseCreate, uint32(e.ID))
	}

	switch tier {
	case replica.TierActive:
		r.active[e.ID] = e
		r.indexToken(e)
	default:
		r.pending[e.ID] = e
	}
	return nil
}

// Unregister removes an entity from whichever store holds it, maintaining
// the token index. It returns the removed entity and its tier.
func (r *Registry) Unregister(id replica.EntityID) (*Entity, replica.Tier, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.active[id]; ok {
		delete(r.active, id)
		r.unindexToken(e)
		return e, replica.TierActive, true
	}
	if e, ok := r.pending[id]; ok {
		delete(r.pending, id)
		return e, replica.TierPending, true
	}
	return nil, 0, false
}

// Lookup finds an entity in either tier.
func (r *Registry) Lookup(id replica.EntityID) (*Entity, replica.Tier, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.active[id]; ok {
		return e, replica.TierActive, true
	}
	if e, ok := r.pending[id]; ok {
		return e, replica.TierPending, true
	}
	return nil, 0, false
}

// LookupByToken returns the Active entities of a token, sorted ascending
// by id. Pending entities are never visible through the token index.
func (r *Registry) LookupByToken(token replica.Token) []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.byToken[token]
	out := make([]*Entity, 0, len(set))
	for _, e := range set {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Promote moves a Pending entity into the Active store and token index.
// The caller announces the promotion; see package doc.
func (r *Registry) Promote(id replica.EntityID) (*Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.pending[id]
	if !ok {
		if _, already := r.active[id]; already {
			return nil, errors.InvalidInput(errors.PhaseLifecycle, "promote: entity already active")
		}
		return nil, errors.Protocol(errors.PhaseLifecycle, uint32(id), "promote unknown id")
	}

	delete(r.pending, id)
	r.active[id] = e
	r.indexToken(e)
	return e, nil
}

// Link attaches child under parent, keeping both sides of the
// relationship consistent.
func (r *Registry) Link(parentID, childID replica.EntityID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	child := r.lookupLocked(childID)
	if child == nil {
		return errors.Protocol(errors.PhaseLifecycle, uint32(childID), "link unknown child")
	}
	child.ParentID = parentID
	if parentID == replica.RootID {
		return nil
	}

	parent := r.lookupLocked(parentID)
	if parent == nil {
		return errors.Protocol(errors.PhaseLifecycle, uint32(parentID), "link unknown parent")
	}
	parent.Children[childID] = struct{}{}
	return nil
}

// Unlink detaches child from parent's children set. The child's own
// parent reference is left for the caller to rewrite, so a reparent is
// Unlink followed by Link.
func (r *Registry) Unlink(parentID, childID replica.EntityID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if parent := r.lookupLocked(parentID); parent != nil {
		delete(parent.Children, childID)
	}
}

// TopLevel returns the entities attached directly to the root sentinel,
// across both tiers, sorted ascending by id. Subtree walks start here and
// descend through ChildIDs.
func (r *Registry) TopLevel() []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Entity
	for _, store := range []map[replica.EntityID]*Entity{r.active, r.pending} {
		for _, e := range store {
			if e.ParentID == replica.RootID {
				out = append(out, e)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Tier reports which store currently holds id.
func (r *Registry) Tier(id replica.EntityID) (replica.Tier, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.active[id]; ok {
		return replica.TierActive, true
	}
	if _, ok := r.pending[id]; ok {
		return replica.TierPending, true
	}
	return 0, false
}

// Len returns the entity count of one tier.
func (r *Registry) Len(tier replica.Tier) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if tier == replica.TierActive {
		return len(r.active)
	}
	return len(r.pending)
}

func (r *Registry) lookupLocked(id replica.EntityID) *Entity {
	if e, ok := r.active[id]; ok {
		return e
	}
	return r.pending[id]
}

func (r *Registry) indexToken(e *Entity) {
	set := r.byToken[e.Token]
	if set == nil {
		set = make(map[replica.EntityID]*Entity)
		r.byToken[e.Token] = set
	}
	set[e.ID] = e
}

func (r *Registry) unindexToken(e *Entity) {
	set := r.byToken[e.Token]
	if set == nil {
		return
	}
	delete(set, e.ID)
	if len(set) == 0 {
		delete(r.byToken, e.Token)
	}
}
