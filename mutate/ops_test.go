package mutate

import (
	stderrors "errors"
	"reflect"
	"testing"

	"github.com/wippyai/replica/errors"
)

func isKind(err error, kind errors.Kind) bool {
	var e *errors.Error
	if !stderrors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

func TestSet_ReplacesAndCapturesOld(t *testing.T) {
	p := Begin()
	defer p.End()

	root := map[string]any{"a": map[string]any{"b": 1}}

	old, err := Set(p, root, []string{"a", "b"}, 5)
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if old != 1 {
		t.Errorf("expected old value 1, got %v", old)
	}

	got, _ := Get(root, []string{"a", "b"})
	if got != 5 {
		t.Errorf("expected 5 at a.b, got %v", got)
	}
}

func TestSet_CreatesIntermediateContainers(t *testing.T) {
	p := Begin()
	defer p.End()

	root := map[string]any{}
	old, err := Set(p, root, []string{"x", "y", "z"}, "deep")
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if old != nil {
		t.Errorf("expected nil old value, got %v", old)
	}

	got, ok := Get(root, []string{"x", "y", "z"})
	if !ok || got != "deep" {
		t.Errorf("expected deep at x.y.z, got %v (ok=%v)", got, ok)
	}
}

func TestSet_EmptyPath(t *testing.T) {
	p := Begin()
	defer p.End()

	_, err := Set(p, map[string]any{}, nil, 1)
	if !isKind(err, errors.KindInvalidInput) {
		t.Errorf("expected invalid_input, got %v", err)
	}
}

func TestSet_TypeMismatchMidPath(t *testing.T) {
	p := Begin()
	defer p.End()

	root := map[string]any{"a": 42}
	_, err := Set(p, root, []string{"a", "b"}, 1)
	if !isKind(err, errors.KindTypeMismatch) {
		t.Errorf("expected type_mismatch, got %v", err)
	}
}

func TestSetValues_ShallowMerge(t *testing.T) {
	p := Begin()
	defer p.End()

	root := map[string]any{"cfg": map[string]any{"keep": true, "hp": 10}}
	err := SetValues(p, root, []string{"cfg"}, map[string]any{"hp": 20, "mp": 5})
	if err != nil {
		t.Fatalf("SetValues failed: %v", err)
	}

	cfg := root["cfg"].(map[string]any)
	if cfg["keep"] != true || cfg["hp"] != 20 || cfg["mp"] != 5 {
		t.Errorf("unexpected merge result: %v", cfg)
	}
}

func TestListInsert_AppendReturnsPosition(t *testing.T) {
	p := Begin()
	defer p.End()

	root := map[string]any{"items": []any{"a", "b"}}
	pos, err := ListInsert(p, root, []string{"items"}, "x", 0)
	if err != nil {
		t.Fatalf("ListInsert failed: %v", err)
	}
	if pos != 3 {
		t.Errorf("expected append position 3, got %d", pos)
	}

	want := []any{"a", "b", "x"}
	if !reflect.DeepEqual(root["items"], want) {
		t.Errorf("expected %v, got %v", want, root["items"])
	}
}

func TestListInsert_AtIndex(t *testing.T) {
	p := Begin()
	defer p.End()

	root := map[string]any{"items": []any{"a", "c"}}
	pos, err := ListInsert(p, root, []string{"items"}, "b", 2)
	if err != nil {
		t.Fatalf("ListInsert failed: %v", err)
	}
	if pos != 2 {
		t.Errorf("expected position 2, got %d", pos)
	}

	want := []any{"a", "b", "c"}
	if !reflect.DeepEqual(root["items"], want) {
		t.Errorf("expected %v, got %v", want, root["items"])
	}
}

func TestListInsert_OutOfBounds(t *testing.T) {
	p := Begin()
	defer p.End()

	root := map[string]any{"items": []any{"a"}}
	_, err := ListInsert(p, root, []string{"items"}, "x", 5)
	if !isKind(err, errors.KindOutOfBounds) {
		t.Errorf("expected out_of_bounds, got %v", err)
	}
}

func TestListRemove(t *testing.T) {
	p := Begin()
	defer p.End()

	root := map[string]any{"items": []any{"a", "b", "c"}}
	removed, err := ListRemove(p, root, []string{"items"}, 2)
	if err != nil {
		t.Fatalf("ListRemove failed: %v", err)
	}
	if removed != "b" {
		t.Errorf("expected removed b, got %v", removed)
	}

	want := []any{"a", "c"}
	if !reflect.DeepEqual(root["items"], want) {
		t.Errorf("expected %v, got %v", want, root["items"])
	}
}

func TestListRemove_Bounds(t *testing.T) {
	p := Begin()
	defer p.End()

	root := map[string]any{"items": []any{"a"}}
	for _, idx := range []int{0, 2, -1} {
		if _, err := ListRemove(p, root, []string{"items"}, idx); !isKind(err, errors.KindOutOfBounds) {
			t.Errorf("index %d: expected out_of_bounds, got %v", idx, err)
		}
	}
}

func TestListOps_NotASequence(t *testing.T) {
	p := Begin()
	defer p.End()

	root := map[string]any{"items": map[string]any{}}
	if _, err := ListInsert(p, root, []string{"items"}, "x", 0); !isKind(err, errors.KindTypeMismatch) {
		t.Errorf("expected type_mismatch, got %v", err)
	}
}

func TestGuard_NilPass(t *testing.T) {
	root := map[string]any{"a": 1}
	_, err := Set(nil, root, []string{"a"}, 2)
	if !isKind(err, errors.KindGuard) {
		t.Errorf("expected guard violation, got %v", err)
	}
	if root["a"] != 1 {
		t.Error("guarded call must not mutate")
	}
}

func TestGuard_EndedPass(t *testing.T) {
	p := Begin()
	p.End()

	if err := SetValues(p, map[string]any{}, nil, map[string]any{"a": 1}); !isKind(err, errors.KindGuard) {
		t.Errorf("expected guard violation, got %v", err)
	}
	if p.Live() {
		t.Error("ended pass must not report live")
	}
}
