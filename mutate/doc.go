// Package mutate applies path-addressed mutations to replicated data trees.
//
// Data trees are plain map[string]any / []any structures; paths are ordered
// key sequences and list indices are 1-based at the API boundary.
//
// # The applying-update guard
//
// Every mutation requires a *Pass, the capability token representing
// applying-update mode. The engine issues a Pass around each inbound
// update-applying message and while a catalog function executes, then ends
// it. Calling a mutation without a live Pass returns a guard violation:
// fatal to the caller, harmless to the engine. The token replaces a shared
// mode flag so that reentrant or deferred callers cannot slip a mutation
// past the guard.
package mutate
