// Package hub provides the subscription and notification hub for the
// replication engine.
//
// Five listener scopes are supported: per-(entity,path) set listeners,
// per-(entity,function) write listeners, per-entity change listeners
// covering all mutation kinds, per-entity signal listeners, and per-token
// new-entity listeners fired when an entity becomes creation-visible.
//
// Every subscribe call returns a disposable Subscription; disposal is
// idempotent and safe from within the listener's own invocation.
//
// # Dispatch isolation
//
// Listeners execute on a bounded worker pool, never on the engine's
// dispatch loop. Firing N listeners for one event does not block on a slow
// or panicking listener, and listener execution never delays the engine's
// processing of the next inbound message. The mutation is fully applied
// before any listener observing it is enqueued; ordering among listeners
// registered for the same scope is unspecified.
package hub
