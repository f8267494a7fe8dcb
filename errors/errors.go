package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseDecode    Phase = "decode"    // wire envelope decoding
	PhaseCreate    Phase = "create"    // creation batch application
	PhaseMutate    Phase = "mutate"    // path-addressed data mutation
	PhaseWrite     Phase = "write"     // catalog function execution
	PhaseLifecycle Phase = "lifecycle" // reparent / destroy / tier moves
	PhaseDispatch  Phase = "dispatch"  // message dispatch loop
	PhaseLoad      Phase = "load"      // catalog source loading
)

// Kind categorizes the error
type Kind string

const (
	// KindProtocol marks a message referencing an id unknown to both tiers.
	// Fatal to that message only; the dispatch loop continues.
	KindProtocol Kind = "protocol"

	// KindGuard marks a mutation API call made outside applying-update
	// mode. Fatal to the caller as a programming error, never retried.
	KindGuard Kind = "guard"

	// KindFunctionNotFound marks a Write referencing an unknown catalog
	// id or name. Fatal to that message only.
	KindFunctionNotFound Kind = "function_not_found"

	KindDanglingParent Kind = "dangling_parent"
	KindNotFound       Kind = "not_found"
	KindInvalidInput   Kind = "invalid_input"
	KindTypeMismatch   Kind = "type_mismatch"
	KindOutOfBounds    Kind = "out_of_bounds"
	KindInvalidData    Kind = "invalid_data"
	KindDuplicate      Kind = "duplicate"
	KindClosed         Kind = "closed"
)

// Error is the structured error type used throughout the engine
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Entity uint32
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Entity != 0 {
		fmt.Fprintf(&b, " entity %d", e.Entity)
	}

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Entity sets the offending entity id
func (b *Builder) Entity(id uint32) *Builder {
	b.err.Entity = id
	return b
}

// Path sets the data path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Protocol creates an unknown-entity protocol error
func Protocol(phase Phase, id uint32, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindProtocol,
		Entity: id,
		Detail: detail,
	}
}

// Guard creates an applying-mode guard violation
func Guard(detail string) *Error {
	return &Error{
		Phase:  PhaseMutate,
		Kind:   KindGuard,
		Detail: detail,
	}
}

// FunctionNotFound creates an unknown catalog function error
func FunctionNotFound(id uint32, name string) *Error {
	return &Error{
		Phase:  PhaseWrite,
		Kind:   KindFunctionNotFound,
		Entity: id,
		Detail: fmt.Sprintf("catalog function %q not found", name),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// TypeMismatch creates a type mismatch error for a data path
func TypeMismatch(phase Phase, path []string, want string, got any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Path:   path,
		Detail: fmt.Sprintf("expected %s, got %T", want, got),
		Value:  got,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// Duplicate creates a duplicate registration error
func Duplicate(phase Phase, id uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDuplicate,
		Entity: id,
		Detail: "id already registered",
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
