package mutate

import (
	"github.com/wippyai/replica/errors"
)

// containerAt walks path from root, returning the mapping addressed by the
// full path. Missing intermediate mappings are created when create is set;
// otherwise the walk fails with not_found. A non-mapping value part-way
// down the path is a type mismatch.
func containerAt(root map[string]any, path []string, create bool) (map[string]any, error) {
	cur := root
	for i, seg := range path {
		next, ok := cur[seg]
		if !ok {
			if !create {
				return nil, errors.New(errors.PhaseMutate, errors.KindNotFound).
					Path(path[:i+1]...).
					Detail("no container at path").
					Build()
			}
			m := map[string]any{}
			cur[seg] = m
			cur = m
			continue
		}
		m, ok := next.(map[string]any)
		if !ok {
			return nil, errors.TypeMismatch(errors.PhaseMutate, path[:i+1], "mapping", next)
		}
		cur = m
	}
	return cur, nil
}

// sequenceAt returns the sequence addressed by the full path, along with
// the parent mapping and final key needed to store a replacement slice.
func sequenceAt(root map[string]any, path []string) (parent map[string]any, key string, seq []any, err error) {
	if len(path) == 0 {
		return nil, "", nil, errors.InvalidInput(errors.PhaseMutate, "sequence path must not be empty")
	}

	parent, err = containerAt(root, path[:len(path)-1], false)
	if err != nil {
		return nil, "", nil, err
	}

	key = path[len(path)-1]
	v, ok := parent[key]
	if !ok {
		return nil, "", nil, errors.New(errors.PhaseMutate, errors.KindNotFound).
			Path(path...).
			Detail("no sequence at path").
			Build()
	}
	seq, ok = v.([]any)
	if !ok {
		return nil, "", nil, errors.TypeMismatch(errors.PhaseMutate, path, "sequence", v)
	}
	return parent, key, seq, nil
}
