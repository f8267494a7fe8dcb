package engine

import (
	"context"

	"github.com/wippyai/replica"
	"github.com/wippyai/replica/catalog"
	"github.com/wippyai/replica/errors"
	"github.com/wippyai/replica/hub"
	"github.com/wippyai/replica/mutate"
	"github.com/wippyai/replica/registry"
	"github.com/wippyai/replica/wire"
)

// mutationTarget resolves an entity for a data mutation.
func (e *Engine) mutationTarget(id replica.EntityID) (*registry.Entity, error) {
	ent, _, ok := e.reg.Lookup(id)
	if !ok {
		return nil, errors.Protocol(errors.PhaseMutate, uint32(id), "mutation for unknown id")
	}
	return ent, nil
}

func (e *Engine) applySet(m wire.Set) error {
	ent, err := e.mutationTarget(m.ID)
	if err != nil {
		return err
	}

	pass := mutate.Begin()
	defer pass.End()

	old, err := mutate.Set(pass, ent.Data, m.Path, m.Value)
	if err != nil {
		return err
	}
	e.hub.Mutation(m.ID, hub.OpSet, m.Path, m.Value, old)
	return nil
}

func (e *Engine) applySetValues(m wire.SetValues) error {
	ent, err := e.mutationTarget(m.ID)
	if err != nil {
		return err
	}

	pass := mutate.Begin()
	defer pass.End()

	if err := mutate.SetValues(pass, ent.Data, m.Path, m.Fields); err != nil {
		return err
	}
	e.hub.Mutation(m.ID, hub.OpSetValues, m.Path, m.Fields, nil)
	return nil
}

func (e *Engine) applyListInsert(m wire.ListInsert) error {
	ent, err := e.mutationTarget(m.ID)
	if err != nil {
		return err
	}

	pass := mutate.Begin()
	defer pass.End()

	pos, err := mutate.ListInsert(pass, ent.Data, m.Path, m.Value, m.Index)
	if err != nil {
		return err
	}
	e.hub.Mutation(m.ID, hub.OpInsert, m.Path, m.Value, pos)
	return nil
}

func (e *Engine) applyListRemove(m wire.ListRemove) error {
	ent, err := e.mutationTarget(m.ID)
	if err != nil {
		return err
	}

	pass := mutate.Begin()
	defer pass.End()

	removed, err := mutate.ListRemove(pass, ent.Data, m.Path, m.Index)
	if err != nil {
		return err
	}
	e.hub.Mutation(m.ID, hub.OpRemove, m.Path, removed, m.Index)
	return nil
}

// applyWrite dispatches a catalog function by its compact id. The function
// runs with an open pass, so it may mutate the entity's data; its return
// values are meaningful to local callers only and are dropped here.
func (e *Engine) applyWrite(ctx context.Context, m wire.Write) error {
	ent, _, ok := e.reg.Lookup(m.ID)
	if !ok {
		return errors.Protocol(errors.PhaseWrite, uint32(m.ID), "write for unknown id")
	}
	if ent.Catalog == nil {
		return errors.New(errors.PhaseWrite, errors.KindFunctionNotFound).
			Entity(uint32(m.ID)).
			Detail("entity has no catalog").
			Build()
	}
	entry, ok := ent.Catalog.ByID(m.FunctionID)
	if !ok {
		return errors.New(errors.PhaseWrite, errors.KindFunctionNotFound).
			Entity(uint32(m.ID)).
			Detail("no catalog function with id %d", m.FunctionID).
			Build()
	}

	pass := mutate.Begin()
	defer pass.End()

	call := &catalog.Call{
		Entity: m.ID,
		Data:   ent.Data,
		Pass:   pass,
		Args:   m.Args,
	}
	if _, err := entry.Fn(ctx, call); err != nil {
		return errors.Wrap(errors.PhaseWrite, errors.KindInvalidData, err, "call "+entry.Name)
	}
	e.hub.Write(m.ID, entry.Name, m.Args)
	return nil
}

// Call invokes a catalog function by name on behalf of the local host and
// returns its results. It takes the dispatch lock, so it serializes with
// inbound message application like any other state access.
func (e *Engine) Call(ctx context.Context, id replica.EntityID, function string, args ...any) ([]any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, _, ok := e.reg.Lookup(id)
	if !ok {
		return nil, errors.Protocol(errors.PhaseWrite, uint32(id), "call for unknown id")
	}
	if ent.Catalog == nil {
		return nil, errors.FunctionNotFound(uint32(id), function)
	}
	entry, ok := ent.Catalog.ByName(function)
	if !ok {
		return nil, errors.FunctionNotFound(uint32(id), function)
	}

	pass := mutate.Begin()
	defer pass.End()

	call := &catalog.Call{
		Entity: id,
		Data:   ent.Data,
		Pass:   pass,
		Args:   args,
	}
	results, err := entry.Fn(ctx, call)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseWrite, errors.KindInvalidData, err, "call "+entry.Name)
	}
	e.hub.Write(id, entry.Name, args)
	return results, nil
}

// applySignal forwards an inbound signal to observers; signals never touch
// the data tree.
func (e *Engine) applySignal(m wire.Signal) error {
	if _, _, ok := e.reg.Lookup(m.ID); !ok {
		return errors.Protocol(errors.PhaseDispatch, uint32(m.ID), "signal for unknown id")
	}
	e.hub.Signal(m.ID, m.Args)
	return nil
}
