package wire

import (
	"github.com/wippyai/replica"
)

// MsgKind discriminates message payloads inside an envelope.
type MsgKind uint8

const (
	KindCreate MsgKind = iota + 1
	KindSet
	KindSetValues
	KindListInsert
	KindListRemove
	KindWrite
	KindSignal
	KindReparent
	KindBindNotify
	KindDestroy
	KindReady
)

func (k MsgKind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindSet:
		return "set"
	case KindSetValues:
		return "set_values"
	case KindListInsert:
		return "list_insert"
	case KindListRemove:
		return "list_remove"
	case KindWrite:
		return "write"
	case KindSignal:
		return "signal"
	case KindReparent:
		return "reparent"
	case KindBindNotify:
		return "bind_notify"
	case KindDestroy:
		return "destroy"
	case KindReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Message is an inbound payload, abstracted from its wire encoding.
type Message interface {
	Kind() MsgKind
}

// EntityDesc is one entity's self-description inside a creation batch.
type EntityDesc struct {
	Token    string            `cbor:"token"`
	Tags     map[string]string `cbor:"tags,omitempty"`
	Data     map[string]any    `cbor:"data,omitempty"`
	ParentID replica.EntityID  `cbor:"parent"`

	// Source names the catalog source reference for this entity, empty
	// when the entity exposes no remote-callable functions.
	Source string `cbor:"source,omitempty"`
}

// Batch maps entity ids to their descriptions; one replication group.
type Batch map[replica.EntityID]EntityDesc

// Create describes one or more replication groups to construct. An
// optional root override forces one id to be treated as top-level
// regardless of its stated parent.
type Create struct {
	Groups       []Batch          `cbor:"groups"`
	RootOverride replica.EntityID `cbor:"root,omitempty"`
}

func (Create) Kind() MsgKind { return KindCreate }

// Set replaces the value at a path.
type Set struct {
	ID    replica.EntityID `cbor:"id"`
	Path  []string         `cbor:"path"`
	Value any              `cbor:"value"`
}

func (Set) Kind() MsgKind { return KindSet }

// SetValues shallow-merges fields into the mapping at a path.
type SetValues struct {
	ID     replica.EntityID `cbor:"id"`
	Path   []string         `cbor:"path"`
	Fields map[string]any   `cbor:"fields"`
}

func (SetValues) Kind() MsgKind { return KindSetValues }

// ListInsert inserts into the sequence at a path. Index 0 means append.
type ListInsert struct {
	ID    replica.EntityID `cbor:"id"`
	Path  []string         `cbor:"path"`
	Value any              `cbor:"value"`
	Index int              `cbor:"index,omitempty"`
}

func (ListInsert) Kind() MsgKind { return KindListInsert }

// ListRemove removes the element at the 1-based index of the sequence at
// a path.
type ListRemove struct {
	ID    replica.EntityID `cbor:"id"`
	Path  []string         `cbor:"path"`
	Index int              `cbor:"index"`
}

func (ListRemove) Kind() MsgKind { return KindListRemove }

// Write invokes a catalog function by its compact integer id.
type Write struct {
	ID         replica.EntityID `cbor:"id"`
	FunctionID int              `cbor:"fn"`
	Args       []any            `cbor:"args,omitempty"`
}

func (Write) Kind() MsgKind { return KindWrite }

// Signal carries an opaque payload for entity-level observers; it is
// never applied to data.
type Signal struct {
	ID       replica.EntityID `cbor:"id"`
	Args     []any            `cbor:"args,omitempty"`
	Reliable bool             `cbor:"reliable"`
}

func (Signal) Kind() MsgKind { return KindSignal }

// Reparent moves an entity under a new parent.
type Reparent struct {
	ID          replica.EntityID `cbor:"id"`
	NewParentID replica.EntityID `cbor:"parent"`
}

func (Reparent) Kind() MsgKind { return KindReparent }

// BindNotify marks an entity as resource-requiring and triggers a
// pending-state evaluation.
type BindNotify struct {
	ID replica.EntityID `cbor:"id"`
}

func (BindNotify) Kind() MsgKind { return KindBindNotify }

// Destroy removes an entity and its subtree.
type Destroy struct {
	ID replica.EntityID `cbor:"id"`
}

func (Destroy) Kind() MsgKind { return KindDestroy }

// Ready is the first-contact acknowledgment. Idempotent; only the first
// occurrence has effect.
type Ready struct{}

func (Ready) Kind() MsgKind { return KindReady }
