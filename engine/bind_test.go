package engine

import (
	"sync"
	"testing"

	"github.com/wippyai/replica"
	"github.com/wippyai/replica/resource"
	"github.com/wippyai/replica/wire"
)

// The engine is the pool's natural binder.
var _ resource.Binder = (*Engine)(nil)

type releasingHandle struct {
	mu       sync.Mutex
	released bool
}

func (h *releasingHandle) Release() {
	h.mu.Lock()
	h.released = true
	h.mu.Unlock()
}

func (h *releasingHandle) wasReleased() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

func bindRequiredTags() map[string]string {
	return map[string]string{replica.TagBindRequired: "1"}
}

func TestAttach_PromotesSubtreePreOrder(t *testing.T) {
	e := newEngine(t, Options{})
	rec := &announceRecorder{}
	subscribeTokens(e, rec, "door", "hinge", "screw")

	mustHandle(t, e, wire.Create{Groups: []wire.Batch{{
		1: {Token: "door", Tags: bindRequiredTags()},
		2: {Token: "hinge", ParentID: 1},
		3: {Token: "screw", ParentID: 2},
	}}})

	e.AttachResource(1, "handle")
	e.Hub().Wait()

	got := rec.order()
	want := []replica.EntityID{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("announced %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("announced %v, want %v", got, want)
		}
	}
}

func TestAttach_DescendantRequirementBlocksItsSubtree(t *testing.T) {
	e := newEngine(t, Options{})
	mustHandle(t, e, wire.Create{Groups: []wire.Batch{{
		1: {Token: "door", Tags: bindRequiredTags()},
		2: {Token: "latch", ParentID: 1, Tags: bindRequiredTags()},
		3: {Token: "screw", ParentID: 2},
	}}})

	e.AttachResource(1, "handle")

	if _, tier, _ := e.Registry().Lookup(1); tier != replica.TierActive {
		t.Error("resourced parent should activate")
	}
	// The latch has its own unmet requirement; it and its child stay put.
	for _, id := range []replica.EntityID{2, 3} {
		if _, tier, _ := e.Registry().Lookup(id); tier != replica.TierPending {
			t.Errorf("entity %d should remain pending", id)
		}
	}

	e.AttachResource(2, "latch-handle")
	for _, id := range []replica.EntityID{2, 3} {
		if _, tier, _ := e.Registry().Lookup(id); tier != replica.TierActive {
			t.Errorf("entity %d should activate once the latch binds", id)
		}
	}
}

func TestAttach_BeforeCreate(t *testing.T) {
	e := newEngine(t, Options{})
	e.AttachResource(1, "early")

	mustHandle(t, e, wire.Create{Groups: []wire.Batch{{
		1: {Token: "door", Tags: bindRequiredTags()},
	}}})

	ent, tier, ok := e.Registry().Lookup(1)
	if !ok || tier != replica.TierActive {
		t.Fatal("held-aside resource must satisfy the requirement at creation")
	}
	if ent.Resource != "early" {
		t.Errorf("resource = %v, want early", ent.Resource)
	}
}

func TestDetach_DemotesPreservingData(t *testing.T) {
	e := newEngine(t, Options{})
	mustHandle(t, e, wire.Create{Groups: []wire.Batch{{
		1: {Token: "door", Tags: bindRequiredTags(), Data: map[string]any{"state": "closed"}},
	}}})

	handle := &releasingHandle{}
	e.AttachResource(1, handle)
	mustHandle(t, e, wire.Set{ID: 1, Path: []string{"state"}, Value: "open"})

	var fired int
	var mu sync.Mutex
	e.Hub().SubscribeSet(1, []string{"state"}, func(_, _ any) {
		mu.Lock()
		fired++
		mu.Unlock()
	})

	e.DetachResource(1)
	e.Hub().Wait()

	ent, tier, ok := e.Registry().Lookup(1)
	if !ok || tier != replica.TierPending {
		t.Fatal("detaching must demote the entity to pending")
	}
	if !handle.wasReleased() {
		t.Error("detached resource must be released")
	}
	// Demotion rebuilds the instance around the data as mutated, not the
	// creation snapshot.
	if ent.Data["state"] != "open" {
		t.Errorf("data after demotion = %v, want open", ent.Data["state"])
	}

	// Listener registrations do not survive the demotion trip.
	e.AttachResource(1, "again")
	mustHandle(t, e, wire.Set{ID: 1, Path: []string{"state"}, Value: "ajar"})
	e.Hub().Wait()

	mu.Lock()
	defer mu.Unlock()
	if fired != 0 {
		t.Errorf("stale listener fired %d times after demotion", fired)
	}
}

func TestDetach_DemotesActiveDescendants(t *testing.T) {
	e := newEngine(t, Options{})
	mustHandle(t, e, wire.Create{Groups: []wire.Batch{{
		1: {Token: "door", Tags: bindRequiredTags()},
		2: {Token: "hinge", ParentID: 1},
	}}})
	e.AttachResource(1, "handle")

	e.DetachResource(1)
	for _, id := range []replica.EntityID{1, 2} {
		if _, tier, _ := e.Registry().Lookup(id); tier != replica.TierPending {
			t.Errorf("entity %d should demote with its ancestor", id)
		}
	}

	// Structure survives: re-attaching promotes the same subtree again.
	e.AttachResource(1, "handle2")
	for _, id := range []replica.EntityID{1, 2} {
		if _, tier, _ := e.Registry().Lookup(id); tier != replica.TierActive {
			t.Errorf("entity %d should repromote", id)
		}
	}
}

func TestBindNotify_DemotesUnresourcedActive(t *testing.T) {
	e := newEngine(t, Options{})
	mustHandle(t, e, wire.Create{Groups: []wire.Batch{{1: {Token: "door"}}}})

	mustHandle(t, e, wire.BindNotify{ID: 1})

	ent, tier, _ := e.Registry().Lookup(1)
	if tier != replica.TierPending {
		t.Error("bind notify without a resource must demote")
	}
	if !ent.BindRequired {
		t.Error("requirement flag must persist on the rebuilt instance")
	}

	e.AttachResource(1, "h")
	if _, tier, _ := e.Registry().Lookup(1); tier != replica.TierActive {
		t.Error("attaching after bind notify must promote")
	}
}

func TestBindNotify_NoopWhenResourced(t *testing.T) {
	e := newEngine(t, Options{})
	mustHandle(t, e, wire.Create{Groups: []wire.Batch{{1: {Token: "door"}}}})
	e.AttachResource(1, "h")

	mustHandle(t, e, wire.BindNotify{ID: 1})
	if _, tier, _ := e.Registry().Lookup(1); tier != replica.TierActive {
		t.Error("resourced entity must stay active through bind notify")
	}
}

func TestPool_DrivesTierTransitions(t *testing.T) {
	e := newEngine(t, Options{})
	pool := resource.NewPool(e)
	defer pool.Close()

	mustHandle(t, e, wire.Create{Groups: []wire.Batch{{
		1: {Token: "door", Tags: bindRequiredTags()},
	}}})

	pool.Attach(1, "handle")
	if _, tier, _ := e.Registry().Lookup(1); tier != replica.TierActive {
		t.Error("pool attach must promote")
	}

	pool.Detach(1)
	if _, tier, _ := e.Registry().Lookup(1); tier != replica.TierPending {
		t.Error("pool detach must demote")
	}
}

func TestDetach_UnknownIDDropsOrphan(t *testing.T) {
	e := newEngine(t, Options{})
	e.AttachResource(7, "early")
	e.DetachResource(7)

	mustHandle(t, e, wire.Create{Groups: []wire.Batch{{
		7: {Token: "door", Tags: bindRequiredTags()},
	}}})
	if _, tier, _ := e.Registry().Lookup(7); tier != replica.TierPending {
		t.Error("withdrawn orphan resource must not satisfy the requirement")
	}
}
