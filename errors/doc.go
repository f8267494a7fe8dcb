// Package errors provides structured error types for the replication engine.
//
// Errors carry a Phase (where in processing they occurred) and a Kind
// (what went wrong), plus optional entity id, data path, and cause. Two
// errors match under errors.Is when Phase and Kind agree, so callers can
// classify failures without string matching:
//
//	if errors.Is(err, &enginerrors.Error{Phase: enginerrors.PhaseMutate, Kind: enginerrors.KindGuard}) {
//	    // mutation API used outside applying-update mode
//	}
//
// # Scope of impact
//
// The engine distinguishes fatal-to-message errors (KindProtocol,
// KindFunctionNotFound: that message's effect is dropped and the dispatch
// loop continues) from fatal-to-caller errors (KindGuard: a programming
// error surfaced to whoever invoked the mutation API). Neither class may
// corrupt registry state for entities unrelated to the failing message.
//
// DanglingParentsError aggregates every unresolvable entry of a creation
// batch into one error with a capped listing.
package errors
