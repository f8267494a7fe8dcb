package engine

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"

	"github.com/wippyai/replica"
	"github.com/wippyai/replica/catalog"
	"github.com/wippyai/replica/errors"
	"github.com/wippyai/replica/mutate"
	"github.com/wippyai/replica/wire"
)

// testTransport records outbound traffic.
type testTransport struct {
	mu       sync.Mutex
	requests int
	signals  []replica.EntityID
	notify   chan struct{}
}

func newTestTransport() *testTransport {
	return &testTransport{notify: make(chan struct{}, 16)}
}

func (tt *testTransport) RequestInitialData() error {
	tt.mu.Lock()
	tt.requests++
	tt.mu.Unlock()
	select {
	case tt.notify <- struct{}{}:
	default:
	}
	return nil
}

func (tt *testTransport) Signal(id replica.EntityID, _ replica.Reliability, _ ...any) error {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	tt.signals = append(tt.signals, id)
	return nil
}

func (tt *testTransport) requestCount() int {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	return tt.requests
}

// newEngine builds an engine with a single dispatch worker so listener
// invocation order is deterministic in tests.
func newEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	if opts.HubWorkers == 0 {
		opts.HubWorkers = 1
	}
	e := New(opts)
	t.Cleanup(e.Close)
	return e
}

func mustHandle(t *testing.T, e *Engine, msg wire.Message) {
	t.Helper()
	if err := e.Handle(context.Background(), msg); err != nil {
		t.Fatalf("%s failed: %v", msg.Kind(), err)
	}
}

func isKind(err error, kind errors.Kind) bool {
	var typed *errors.Error
	return stderrors.As(err, &typed) && typed.Kind == kind
}

func TestHandle_SetMutatesAndNotifies(t *testing.T) {
	e := newEngine(t, Options{})
	mustHandle(t, e, wire.Create{Groups: []wire.Batch{{
		1: {Token: "zone", Data: map[string]any{"name": "keep"}},
	}}})

	var got, old any
	var mu sync.Mutex
	e.Hub().SubscribeSet(1, []string{"name"}, func(newValue, oldValue any) {
		mu.Lock()
		got, old = newValue, oldValue
		mu.Unlock()
	})

	mustHandle(t, e, wire.Set{ID: 1, Path: []string{"name"}, Value: "bailey"})
	e.Hub().Wait()

	mu.Lock()
	defer mu.Unlock()
	if got != "bailey" || old != "keep" {
		t.Errorf("listener saw (%v, %v), want (bailey, keep)", got, old)
	}
	ent, _, _ := e.Registry().Lookup(1)
	if ent.Data["name"] != "bailey" {
		t.Errorf("data not applied: %v", ent.Data["name"])
	}
}

func TestHandle_MutationForUnknownID(t *testing.T) {
	e := newEngine(t, Options{})
	err := e.Handle(context.Background(), wire.Set{ID: 9, Path: []string{"x"}, Value: 1})
	if !isKind(err, errors.KindProtocol) {
		t.Errorf("expected protocol error, got %v", err)
	}
}

func TestHandle_WriteInvokesCatalogByID(t *testing.T) {
	src := catalog.Static(map[string]catalog.Func{
		"heal": func(_ context.Context, call *catalog.Call) ([]any, error) {
			_, err := mutate.Set(call.Pass, call.Data, []string{"hp"}, 100)
			return nil, err
		},
		"attack": func(_ context.Context, _ *catalog.Call) ([]any, error) {
			return nil, nil
		},
	})
	e := newEngine(t, Options{Sources: map[string]catalog.Source{"npc": src}})
	mustHandle(t, e, wire.Create{Groups: []wire.Batch{{
		1: {Token: "npc", Source: "npc", Data: map[string]any{"hp": 10}},
	}}})

	var called string
	var mu sync.Mutex
	e.Hub().SubscribeWrite(1, "heal", func(_ []any) {
		mu.Lock()
		called = "heal"
		mu.Unlock()
	})

	// Sorted names: attack=1, heal=2.
	mustHandle(t, e, wire.Write{ID: 1, FunctionID: 2})
	e.Hub().Wait()

	ent, _, _ := e.Registry().Lookup(1)
	if ent.Data["hp"] != 100 {
		t.Errorf("catalog function did not mutate data: %v", ent.Data["hp"])
	}
	mu.Lock()
	defer mu.Unlock()
	if called != "heal" {
		t.Error("write listener not fired")
	}
}

func TestCall_ByNameReturnsResults(t *testing.T) {
	src := catalog.Static(map[string]catalog.Func{
		"sum": func(_ context.Context, call *catalog.Call) ([]any, error) {
			total := 0
			for _, a := range call.Args {
				total += a.(int)
			}
			return []any{total}, nil
		},
	})
	e := newEngine(t, Options{Sources: map[string]catalog.Source{"math": src}})
	mustHandle(t, e, wire.Create{Groups: []wire.Batch{{
		1: {Token: "npc", Source: "math"},
	}}})

	results, err := e.Call(context.Background(), 1, "sum", 2, 3)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if len(results) != 1 || results[0] != 5 {
		t.Errorf("unexpected results: %v", results)
	}

	if _, err := e.Call(context.Background(), 1, "nope"); !isKind(err, errors.KindFunctionNotFound) {
		t.Errorf("expected function-not-found, got %v", err)
	}
}

func TestHandle_WriteUnknownFunction(t *testing.T) {
	e := newEngine(t, Options{})
	mustHandle(t, e, wire.Create{Groups: []wire.Batch{{1: {Token: "zone"}}}})

	err := e.Handle(context.Background(), wire.Write{ID: 1, FunctionID: 1})
	if !isKind(err, errors.KindFunctionNotFound) {
		t.Errorf("expected function-not-found, got %v", err)
	}
}

func TestSignal_OutboundActiveOnly(t *testing.T) {
	tt := newTestTransport()
	e := newEngine(t, Options{Transport: tt})
	mustHandle(t, e, wire.Create{Groups: []wire.Batch{{
		1: {Token: "zone"},
		2: {Token: "door", ParentID: 1, Tags: map[string]string{replica.TagBindRequired: "1"}},
	}}})

	if err := e.Signal(1, replica.Reliable, "ping"); err != nil {
		t.Fatalf("signal for active entity failed: %v", err)
	}
	if err := e.Signal(2, replica.Reliable); !isKind(err, errors.KindInvalidInput) {
		t.Errorf("expected invalid-input for pending entity, got %v", err)
	}
	if err := e.Signal(99, replica.Reliable); !isKind(err, errors.KindInvalidInput) {
		t.Errorf("expected invalid-input for unknown entity, got %v", err)
	}

	tt.mu.Lock()
	defer tt.mu.Unlock()
	if len(tt.signals) != 1 || tt.signals[0] != 1 {
		t.Errorf("unexpected outbound signals: %v", tt.signals)
	}
}

func TestHandle_InboundSignal(t *testing.T) {
	e := newEngine(t, Options{})
	mustHandle(t, e, wire.Create{Groups: []wire.Batch{{1: {Token: "zone"}}}})

	var args []any
	var mu sync.Mutex
	e.Hub().SubscribeSignal(1, func(a []any) {
		mu.Lock()
		args = a
		mu.Unlock()
	})

	mustHandle(t, e, wire.Signal{ID: 1, Args: []any{"boom"}})
	e.Hub().Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(args) != 1 || args[0] != "boom" {
		t.Errorf("unexpected signal args: %v", args)
	}
}

func TestReady_Idempotent(t *testing.T) {
	e := newEngine(t, Options{})
	mustHandle(t, e, wire.Ready{})
	mustHandle(t, e, wire.Ready{})

	select {
	case <-e.Ready():
	default:
		t.Error("ready channel not closed after handshake")
	}
}
