package wire

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/wippyai/replica/errors"
)

// envelope wraps a message body with its kind discriminator.
type envelope struct {
	K MsgKind         `cbor:"k"`
	B cbor.RawMessage `cbor:"b"`
}

var decMode cbor.DecMode

func init() {
	// Replicated data trees are string-keyed; decode untyped maps
	// accordingly instead of cbor's map[any]any default.
	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
	decMode = dm
}

// Encode serializes a message into a self-describing envelope.
func Encode(msg Message) ([]byte, error) {
	body, err := cbor.Marshal(msg)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "encode message body")
	}
	out, err := cbor.Marshal(envelope{K: msg.Kind(), B: body})
	if err != nil {
		return nil, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "encode envelope")
	}
	return out, nil
}

// Decode parses an envelope back into its concrete message.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := decMode.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "decode envelope")
	}

	msg, err := emptyMessage(env.K)
	if err != nil {
		return nil, err
	}
	if err := decMode.Unmarshal(env.B, msg); err != nil {
		return nil, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "decode "+env.K.String())
	}
	return deref(msg), nil
}

func emptyMessage(k MsgKind) (any, error) {
	switch k {
	case KindCreate:
		return &Create{}, nil
	case KindSet:
		return &Set{}, nil
	case KindSetValues:
		return &SetValues{}, nil
	case KindListInsert:
		return &ListInsert{}, nil
	case KindListRemove:
		return &ListRemove{}, nil
	case KindWrite:
		return &Write{}, nil
	case KindSignal:
		return &Signal{}, nil
	case KindReparent:
		return &Reparent{}, nil
	case KindBindNotify:
		return &BindNotify{}, nil
	case KindDestroy:
		return &Destroy{}, nil
	case KindReady:
		return &Ready{}, nil
	default:
		return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Detail("unknown message kind %d", k).
			Build()
	}
}

func deref(msg any) Message {
	switch m := msg.(type) {
	case *Create:
		return *m
	case *Set:
		return *m
	case *SetValues:
		return *m
	case *ListInsert:
		return *m
	case *ListRemove:
		return *m
	case *Write:
		return *m
	case *Signal:
		return *m
	case *Reparent:
		return *m
	case *BindNotify:
		return *m
	case *Destroy:
		return *m
	case *Ready:
		return *m
	default:
		return nil
	}
}
