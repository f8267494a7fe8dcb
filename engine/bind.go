package engine

import (
	"go.uber.org/zap"

	"github.com/wippyai/replica"
	"github.com/wippyai/replica/errors"
	"github.com/wippyai/replica/registry"
	"github.com/wippyai/replica/wire"
)

// AttachResource binds an externally-owned handle to an entity. The
// resource stream and the update stream are independent: attaching before
// the entity's creation message arrives is legal, and the handle is held
// aside until the entity appears. A resource arriving for a Pending entity
// whose ancestors are already Active promotes the whole eligible subtree.
func (e *Engine) AttachResource(id replica.EntityID, handle any) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, tier, ok := e.reg.Lookup(id)
	if !ok {
		e.orphanResources[id] = handle
		return
	}

	ent.Resource = handle
	if tier == replica.TierPending && e.parentActive(ent) && activatable(ent) {
		e.promoteSubtree(ent)
	}
}

// DetachResource unbinds an entity's resource, releasing it. Detaching from
// an Active resource-requiring entity demotes its subtree.
func (e *Engine) DetachResource(id replica.EntityID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, tier, ok := e.reg.Lookup(id)
	if !ok {
		delete(e.orphanResources, id)
		return
	}

	ent.ReleaseResource()
	if tier == replica.TierActive && ent.BindRequired {
		e.demoteSubtree(ent)
	}
}

// applyBindNotify marks an entity as resource-requiring after the fact. An
// Active entity with no resource bound demotes immediately.
func (e *Engine) applyBindNotify(m wire.BindNotify) error {
	ent, tier, ok := e.reg.Lookup(m.ID)
	if !ok {
		return errors.Protocol(errors.PhaseLifecycle, uint32(m.ID), "bind notify for unknown id")
	}

	ent.BindRequired = true
	if tier == replica.TierActive && ent.Resource == nil {
		e.demoteSubtree(ent)
	}
	return nil
}

// promoteSubtree moves an entity and its eligible descendants into the
// Active store, pre-order, announcing each promotion as it lands so a
// listener observes a parent before its descendants. A descendant whose own
// requirements are unmet stays Pending, and its subtree with it.
func (e *Engine) promoteSubtree(ent *registry.Entity) {
	promoted, err := e.reg.Promote(ent.ID)
	if err != nil {
		e.logger.Warn("promotion failed",
			zap.Uint32("entity", uint32(ent.ID)), zap.Error(err))
		return
	}
	e.hub.EntityActive(promoted)

	for _, cid := range ent.ChildIDs() {
		child, tier, ok := e.reg.Lookup(cid)
		if !ok || tier != replica.TierPending {
			continue
		}
		if activatable(child) {
			e.promoteSubtree(child)
		}
	}
}

// demoteSubtree retires an Active entity and its Active descendants and
// reconstructs each as a fresh Pending instance carrying the current data
// tree. Listener registrations and bound resources do not survive the trip;
// the data does.
func (e *Engine) demoteSubtree(ent *registry.Entity) {
	for _, cid := range ent.ChildIDs() {
		child, tier, ok := e.reg.Lookup(cid)
		if ok && tier == replica.TierActive {
			e.demoteSubtree(child)
		}
	}

	old, _, ok := e.reg.Unregister(ent.ID)
	if !ok {
		return
	}
	old.ReleaseResource()
	e.hub.DropEntity(old.ID)

	fresh := registry.NewEntity(old.ID, old.Token, old.Tags, old.Data)
	fresh.BindRequired = old.BindRequired
	fresh.ParentID = old.ParentID
	fresh.Catalog = old.Catalog
	for cid := range old.Children {
		fresh.Children[cid] = struct{}{}
	}
	if err := e.reg.Register(fresh, replica.TierPending); err != nil {
		e.logger.Error("demotion lost an entity",
			zap.Uint32("entity", uint32(old.ID)), zap.Error(err))
	}
}
