package replica

// EntityID identifies an entity in the replicated graph.
// ID 0 is the root sentinel and never refers to a real entity.
type EntityID uint32

// RootID is the parent id used by top-level entities.
const RootID EntityID = 0

// Token is the string type discriminator for an entity. Group-level
// subscriptions are keyed by token.
type Token string

// Tier is the lifecycle tier of an entity.
type Tier uint8

const (
	// TierPending holds entities whose activation is blocked, either by a
	// missing external resource or by a Pending ancestor.
	TierPending Tier = iota

	// TierActive holds fully visible entities.
	TierActive
)

func (t Tier) String() string {
	switch t {
	case TierPending:
		return "pending"
	case TierActive:
		return "active"
	default:
		return "unknown"
	}
}

// TagBindRequired is the reserved tag key marking an entity as requiring an
// externally-supplied resource before it may become Active.
const TagBindRequired = "__bind"

// Reliability selects the delivery class for outbound signals.
type Reliability uint8

const (
	Reliable Reliability = iota
	Unreliable
)

func (r Reliability) String() string {
	if r == Unreliable {
		return "unreliable"
	}
	return "reliable"
}

// Transport is the outbound half of the peer connection. Implementations
// own serialization and delivery; the engine only decides when to send.
type Transport interface {
	// RequestInitialData asks the authoritative peer to replay the current
	// graph. Safe to call repeatedly; the peer treats it as idempotent.
	RequestInitialData() error

	// Signal forwards an opaque payload to the peer for the given entity.
	Signal(id EntityID, reliability Reliability, args ...any) error
}

// Releaser is optionally implemented by bound resource handles that need
// cleanup when an entity is demoted or destroyed.
type Releaser interface {
	Release()
}

// CloneTree deep-copies a replicated data tree. Maps and slices are copied
// recursively; all other values are shared.
func CloneTree(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, e := range tv {
			out[k] = CloneTree(e)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = CloneTree(e)
		}
		return out
	default:
		return v
	}
}

// CloneData is CloneTree specialized for an entity's top-level data mapping.
// A nil input yields an empty, writable mapping.
func CloneData(data map[string]any) map[string]any {
	if data == nil {
		return map[string]any{}
	}
	return CloneTree(data).(map[string]any)
}
