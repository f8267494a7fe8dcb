package engine

import (
	"github.com/wippyai/replica"
	"github.com/wippyai/replica/errors"
	"github.com/wippyai/replica/registry"
	"github.com/wippyai/replica/wire"
)

// applyReparent moves an entity under a new parent, then re-evaluates the
// tier boundary it crossed: moving under an Active parent can promote the
// subtree, moving under a Pending parent demotes it.
func (e *Engine) applyReparent(m wire.Reparent) error {
	ent, tier, ok := e.reg.Lookup(m.ID)
	if !ok {
		return errors.Protocol(errors.PhaseLifecycle, uint32(m.ID), "reparent unknown id")
	}
	if m.NewParentID == m.ID {
		return errors.InvalidInput(errors.PhaseLifecycle, "reparent under itself")
	}
	if m.NewParentID != replica.RootID {
		if _, _, known := e.reg.Lookup(m.NewParentID); !known {
			return errors.Protocol(errors.PhaseLifecycle, uint32(m.NewParentID), "reparent under unknown parent")
		}
		// Reject a move under the entity's own subtree: it would cut the
		// graph into a cycle that every subtree walk then loops on.
		for cur := m.NewParentID; cur != replica.RootID; {
			if cur == m.ID {
				return errors.New(errors.PhaseLifecycle, errors.KindInvalidInput).
					Entity(uint32(m.ID)).
					Detail("reparent under own descendant %d", uint32(m.NewParentID)).
					Build()
			}
			anc, _, ok := e.reg.Lookup(cur)
			if !ok {
				break
			}
			cur = anc.ParentID
		}
	}

	e.reg.Unlink(ent.ParentID, m.ID)
	if err := e.reg.Link(m.NewParentID, m.ID); err != nil {
		return err
	}

	wantActive := e.parentActive(ent) && activatable(ent)
	switch {
	case wantActive && tier == replica.TierPending:
		e.promoteSubtree(ent)
	case !wantActive && tier == replica.TierActive:
		e.demoteSubtree(ent)
	}
	return nil
}

// applyDestroy removes an entity and its entire subtree. Descendants go
// first so no listener ever observes a child outliving its parent's
// destruction notice.
func (e *Engine) applyDestroy(m wire.Destroy) error {
	ent, _, ok := e.reg.Lookup(m.ID)
	if !ok {
		return errors.Protocol(errors.PhaseLifecycle, uint32(m.ID), "destroy unknown id")
	}

	e.reg.Unlink(ent.ParentID, m.ID)
	e.destroyEntity(ent)
	return nil
}

func (e *Engine) destroyEntity(ent *registry.Entity) {
	for _, cid := range ent.ChildIDs() {
		if child, _, ok := e.reg.Lookup(cid); ok {
			e.destroyEntity(child)
		}
	}

	e.reg.Unregister(ent.ID)
	ent.ReleaseResource()
	e.hub.DropEntity(ent.ID)
	delete(e.orphanResources, ent.ID)
}
