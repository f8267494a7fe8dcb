package registry

import (
	"sort"

	"github.com/wippyai/replica"
	"github.com/wippyai/replica/catalog"
)

// Entity is a node in the replicated graph. Parent/child links are held as
// ids into the registry rather than object references, which keeps the
// graph cycle-free for the garbage collector and trivially serializable.
type Entity struct {
	ID       replica.EntityID
	Token    replica.Token
	Tags     map[string]string
	Data     map[string]any
	ParentID replica.EntityID
	Children map[replica.EntityID]struct{}

	// Resource is the externally-owned handle the entity is bound to, nil
	// while detached. Cleared on demotion and destruction.
	Resource any

	// BindRequired marks the entity as unable to activate without a bound
	// resource. Set from the reserved tag at creation or by a BindNotify
	// message afterwards.
	BindRequired bool

	// Catalog is the entity's table of remote-callable functions, shared
	// across entities loaded from the same source.
	Catalog *catalog.Catalog
}

// NewEntity constructs an unlinked entity. Data is adopted as-is; pass a
// private copy when the caller retains the original.
func NewEntity(id replica.EntityID, token replica.Token, tags map[string]string, data map[string]any) *Entity {
	if data == nil {
		data = map[string]any{}
	}
	e := &Entity{
		ID:       id,
		Token:    token,
		Tags:     tags,
		Data:     data,
		Children: make(map[replica.EntityID]struct{}),
	}
	if tags != nil {
		_, e.BindRequired = tags[replica.TagBindRequired]
	}
	return e
}

// ChildIDs returns the entity's children sorted ascending by id, the
// deterministic order used for subtree walks.
func (e *Entity) ChildIDs() []replica.EntityID {
	ids := make([]replica.EntityID, 0, len(e.Children))
	for id := range e.Children {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ReleaseResource clears the bound resource, invoking its cleanup hook
// when it has one.
func (e *Entity) ReleaseResource() {
	if r, ok := e.Resource.(replica.Releaser); ok {
		r.Release()
	}
	e.Resource = nil
}
