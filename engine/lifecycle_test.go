package engine

import (
	"context"
	"testing"

	"github.com/wippyai/replica"
	"github.com/wippyai/replica/errors"
	"github.com/wippyai/replica/wire"
)

func TestReparent_MovesSubtree(t *testing.T) {
	e := newEngine(t, Options{})
	mustHandle(t, e, wire.Create{Groups: []wire.Batch{{
		1: {Token: "zone"},
		2: {Token: "zone"},
		3: {Token: "npc", ParentID: 1},
	}}})

	mustHandle(t, e, wire.Reparent{ID: 3, NewParentID: 2})

	ent, _, _ := e.Registry().Lookup(3)
	if ent.ParentID != 2 {
		t.Errorf("parent = %d, want 2", ent.ParentID)
	}
	oldParent, _, _ := e.Registry().Lookup(1)
	if len(oldParent.ChildIDs()) != 0 {
		t.Error("old parent still lists the moved child")
	}
	newParent, _, _ := e.Registry().Lookup(2)
	if ids := newParent.ChildIDs(); len(ids) != 1 || ids[0] != 3 {
		t.Errorf("new parent children = %v", ids)
	}
}

func TestReparent_UnderPendingDemotes(t *testing.T) {
	e := newEngine(t, Options{})
	mustHandle(t, e, wire.Create{Groups: []wire.Batch{{
		1: {Token: "zone"},
		2: {Token: "door", Tags: bindRequiredTags()},
		3: {Token: "npc", ParentID: 1},
	}}})

	mustHandle(t, e, wire.Reparent{ID: 3, NewParentID: 2})
	if _, tier, _ := e.Registry().Lookup(3); tier != replica.TierPending {
		t.Error("moving under a pending parent must demote")
	}

	// And back out again.
	mustHandle(t, e, wire.Reparent{ID: 3, NewParentID: 1})
	if _, tier, _ := e.Registry().Lookup(3); tier != replica.TierActive {
		t.Error("moving under an active parent must promote")
	}
}

func TestReparent_ToRootSentinel(t *testing.T) {
	e := newEngine(t, Options{})
	mustHandle(t, e, wire.Create{Groups: []wire.Batch{{
		1: {Token: "door", Tags: bindRequiredTags()},
		2: {Token: "npc", ParentID: 1},
	}}})

	mustHandle(t, e, wire.Reparent{ID: 2, NewParentID: replica.RootID})
	if _, tier, _ := e.Registry().Lookup(2); tier != replica.TierActive {
		t.Error("top-level entities activate when their own requirements are met")
	}
}

func TestReparent_Errors(t *testing.T) {
	e := newEngine(t, Options{})
	mustHandle(t, e, wire.Create{Groups: []wire.Batch{{1: {Token: "zone"}}}})

	if err := e.Handle(context.Background(), wire.Reparent{ID: 9, NewParentID: 1}); !isKind(err, errors.KindProtocol) {
		t.Errorf("expected protocol error for unknown id, got %v", err)
	}
	if err := e.Handle(context.Background(), wire.Reparent{ID: 1, NewParentID: 42}); !isKind(err, errors.KindProtocol) {
		t.Errorf("expected protocol error for unknown parent, got %v", err)
	}
	if err := e.Handle(context.Background(), wire.Reparent{ID: 1, NewParentID: 1}); !isKind(err, errors.KindInvalidInput) {
		t.Errorf("expected invalid-input for self-parent, got %v", err)
	}
}

func TestReparent_UnderOwnDescendantRejected(t *testing.T) {
	e := newEngine(t, Options{})
	mustHandle(t, e, wire.Create{Groups: []wire.Batch{{
		1: {Token: "door", Tags: bindRequiredTags()},
		2: {Token: "hinge", ParentID: 1},
		3: {Token: "screw", ParentID: 2},
	}}})
	e.AttachResource(1, "handle")

	// Direct child and deeper descendant are both rejected.
	if err := e.Handle(context.Background(), wire.Reparent{ID: 1, NewParentID: 2}); !isKind(err, errors.KindInvalidInput) {
		t.Fatalf("expected invalid-input for child target, got %v", err)
	}
	if err := e.Handle(context.Background(), wire.Reparent{ID: 1, NewParentID: 3}); !isKind(err, errors.KindInvalidInput) {
		t.Fatalf("expected invalid-input for descendant target, got %v", err)
	}

	// The graph is untouched and subtree walks still terminate: a detach
	// after the rejected move demotes the subtree and returns.
	ent, _, _ := e.Registry().Lookup(1)
	if ent.ParentID != replica.RootID {
		t.Errorf("parent = %d, want root sentinel", ent.ParentID)
	}
	e.DetachResource(1)
	for _, id := range []replica.EntityID{1, 2, 3} {
		if _, tier, _ := e.Registry().Lookup(id); tier != replica.TierPending {
			t.Errorf("entity %d should be pending after detach", id)
		}
	}
}

func TestDestroy_RemovesSubtreeAndReleases(t *testing.T) {
	e := newEngine(t, Options{})
	mustHandle(t, e, wire.Create{Groups: []wire.Batch{{
		1: {Token: "zone"},
		2: {Token: "npc", ParentID: 1},
		3: {Token: "item", ParentID: 2},
	}}})

	handle := &releasingHandle{}
	e.AttachResource(3, handle)

	mustHandle(t, e, wire.Destroy{ID: 2})

	for _, id := range []replica.EntityID{2, 3} {
		if _, _, ok := e.Registry().Lookup(id); ok {
			t.Errorf("entity %d survived destruction", id)
		}
	}
	if !handle.wasReleased() {
		t.Error("destroyed entity's resource must be released")
	}
	parent, _, _ := e.Registry().Lookup(1)
	if len(parent.ChildIDs()) != 0 {
		t.Error("destroyed child still linked to its parent")
	}
	if e.Registry().Len(replica.TierActive) != 1 {
		t.Errorf("active count = %d, want 1", e.Registry().Len(replica.TierActive))
	}
}

func TestDestroy_TokenIndexCleared(t *testing.T) {
	e := newEngine(t, Options{})
	mustHandle(t, e, wire.Create{Groups: []wire.Batch{{1: {Token: "zone"}}}})

	mustHandle(t, e, wire.Destroy{ID: 1})
	if got := e.Registry().LookupByToken("zone"); len(got) != 0 {
		t.Errorf("token index still lists destroyed entity: %v", got)
	}
}

func TestDestroy_Unknown(t *testing.T) {
	e := newEngine(t, Options{})
	if err := e.Handle(context.Background(), wire.Destroy{ID: 5}); !isKind(err, errors.KindProtocol) {
		t.Errorf("expected protocol error, got %v", err)
	}
}
