package mutate

import (
	"github.com/wippyai/replica/errors"
)

// Set replaces the value at the last path segment and returns the value it
// displaced (nil when the key was absent). Intermediate mappings are
// created on demand.
func Set(p *Pass, root map[string]any, path []string, value any) (old any, err error) {
	if err := guard(p); err != nil {
		return nil, err
	}
	if len(path) == 0 {
		return nil, errors.InvalidInput(errors.PhaseMutate, "set path must not be empty")
	}

	parent, err := containerAt(root, path[:len(path)-1], true)
	if err != nil {
		return nil, err
	}

	key := path[len(path)-1]
	old = parent[key]
	parent[key] = value
	return old, nil
}

// SetValues shallow-merges fields into the mapping addressed by path. The
// addressed mapping is created on demand. There is deliberately no
// per-field old-value capture; only change listeners observe this op.
func SetValues(p *Pass, root map[string]any, path []string, fields map[string]any) error {
	if err := guard(p); err != nil {
		return err
	}

	target, err := containerAt(root, path, true)
	if err != nil {
		return err
	}

	for k, v := range fields {
		target[k] = v
	}
	return nil
}

// ListInsert inserts value into the sequence addressed by path at the
// 1-based index, or appends when index <= 0. It returns the effective
// 1-based position of the inserted element.
func ListInsert(p *Pass, root map[string]any, path []string, value any, index int) (int, error) {
	if err := guard(p); err != nil {
		return 0, err
	}

	parent, key, seq, err := sequenceAt(root, path)
	if err != nil {
		return 0, err
	}

	if index <= 0 {
		parent[key] = append(seq, value)
		return len(seq) + 1, nil
	}
	if index > len(seq)+1 {
		return 0, errors.OutOfBounds(errors.PhaseMutate, path, index, len(seq))
	}

	out := make([]any, 0, len(seq)+1)
	out = append(out, seq[:index-1]...)
	out = append(out, value)
	out = append(out, seq[index-1:]...)
	parent[key] = out
	return index, nil
}

// ListRemove removes and returns the element at the 1-based index of the
// sequence addressed by path.
func ListRemove(p *Pass, root map[string]any, path []string, index int) (any, error) {
	if err := guard(p); err != nil {
		return nil, err
	}

	parent, key, seq, err := sequenceAt(root, path)
	if err != nil {
		return nil, err
	}

	if index < 1 || index > len(seq) {
		return nil, errors.OutOfBounds(errors.PhaseMutate, path, index, len(seq))
	}

	removed := seq[index-1]
	out := make([]any, 0, len(seq)-1)
	out = append(out, seq[:index-1]...)
	out = append(out, seq[index:]...)
	parent[key] = out
	return removed, nil
}

// Get reads the value at path without requiring a pass. Reads are always
// allowed; only mutations are guarded.
func Get(root map[string]any, path []string) (any, bool) {
	if len(path) == 0 {
		return root, true
	}
	parent, err := containerAt(root, path[:len(path)-1], false)
	if err != nil {
		return nil, false
	}
	v, ok := parent[path[len(path)-1]]
	return v, ok
}
