package engine

import (
	"sort"

	"go.uber.org/zap"

	"github.com/wippyai/replica"
	"github.com/wippyai/replica/catalog"
	"github.com/wippyai/replica/errors"
	"github.com/wippyai/replica/registry"
	"github.com/wippyai/replica/wire"
)

// applyCreate constructs the entities of a creation message. Entries may
// arrive in any order within and across groups; construction is re-sequenced
// parents-first so every entity is linked into a parent that already exists.
// Entries whose stated parent is in neither the payload nor the registry are
// skipped and aggregated into a DanglingParentsError; the rest of the batch
// applies.
func (e *Engine) applyCreate(m wire.Create) error {
	entries := make(map[replica.EntityID]wire.EntityDesc)
	for _, group := range m.Groups {
		for id, d := range group {
			if id == replica.RootID {
				e.logger.Warn("create entry uses the root sentinel id, skipping")
				continue
			}
			if _, dup := entries[id]; dup {
				e.logger.Warn("create entry repeated in payload, keeping first",
					zap.Uint32("entity", uint32(id)))
				continue
			}
			if _, _, exists := e.reg.Lookup(id); exists {
				e.logger.Warn("create entry collides with a live entity, skipping",
					zap.Uint32("entity", uint32(id)))
				continue
			}
			entries[id] = d
		}
	}

	// The root override forces one id to be top-level regardless of its
	// stated parent.
	parentOf := func(id replica.EntityID, d wire.EntityDesc) replica.EntityID {
		if m.RootOverride != replica.RootID && id == m.RootOverride {
			return replica.RootID
		}
		return d.ParentID
	}

	// Constructible roots attach to the sentinel or to an entity that is
	// already live; everything else waits for its parent within the payload.
	var roots []replica.EntityID
	children := make(map[replica.EntityID][]replica.EntityID)
	for id, d := range entries {
		p := parentOf(id, d)
		switch {
		case p == replica.RootID:
			roots = append(roots, id)
		default:
			if _, inPayload := entries[p]; inPayload {
				children[p] = append(children[p], id)
				continue
			}
			if _, _, live := e.reg.Lookup(p); live {
				roots = append(roots, id)
				continue
			}
			// Unresolvable; picked up by the dangling sweep below.
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })
	for _, ids := range children {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}

	built := make(map[replica.EntityID]bool, len(entries))
	var announce []*registry.Entity

	var build func(id replica.EntityID)
	build = func(id replica.EntityID) {
		d := entries[id]
		p := parentOf(id, d)

		ent := registry.NewEntity(id, replica.Token(d.Token), d.Tags, replica.CloneData(d.Data))
		src := e.resolveSource(id, d.Source)
		if src != nil {
			cat, err := e.catalogs.Load(src)
			if err != nil {
				e.logger.Warn("catalog load failed",
					zap.Uint32("entity", uint32(id)),
					zap.String("source", d.Source),
					zap.Error(err))
			} else {
				ent.Catalog = cat
			}
		}
		if res, ok := e.orphanResources[id]; ok {
			ent.Resource = res
			delete(e.orphanResources, id)
		}

		tier := replica.TierPending
		if e.parentIDActive(p) && activatable(ent) {
			tier = replica.TierActive
		}
		if err := e.reg.Register(ent, tier); err != nil {
			e.logger.Warn("create entry rejected by registry",
				zap.Uint32("entity", uint32(id)), zap.Error(err))
			return
		}
		if err := e.reg.Link(p, id); err != nil {
			e.logger.Warn("create entry link failed",
				zap.Uint32("entity", uint32(id)), zap.Error(err))
		}

		built[id] = true
		if tier == replica.TierActive {
			announce = append(announce, ent)
		}
		for _, cid := range children[id] {
			build(cid)
		}
	}
	for _, id := range roots {
		build(id)
	}

	// Announcements fire after the whole batch is linked, in construction
	// order, so a listener always observes a parent before its descendants.
	for _, ent := range announce {
		e.hub.EntityActive(ent)
	}

	var dangling []errors.DanglingParent
	for id, d := range entries {
		if built[id] {
			continue
		}
		dangling = append(dangling, errors.DanglingParent{
			ID:     uint32(id),
			Parent: uint32(parentOf(id, d)),
			Token:  d.Token,
			Tags:   d.Tags,
		})
	}
	if len(dangling) > 0 {
		sort.Slice(dangling, func(i, j int) bool { return dangling[i].ID < dangling[j].ID })
		return errors.NewDanglingParentsError(dangling)
	}
	return nil
}

// parentIDActive is parentActive for ids the engine has not yet looked up.
func (e *Engine) parentIDActive(id replica.EntityID) bool {
	if id == replica.RootID {
		return true
	}
	tier, ok := e.reg.Tier(id)
	return ok && tier == replica.TierActive
}

// resolveSource maps a wire-level source reference to a loadable source.
func (e *Engine) resolveSource(id replica.EntityID, name string) catalog.Source {
	if name == "" {
		return nil
	}
	src, ok := e.sources[name]
	if !ok {
		e.logger.Warn("unknown catalog source reference",
			zap.Uint32("entity", uint32(id)),
			zap.String("source", name))
		return nil
	}
	return src
}
