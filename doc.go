// Package replica provides a client-side state-replication engine.
//
// The engine consumes an ordered stream of update messages from an
// authoritative peer and maintains a local mirror of a hierarchical entity
// graph, notifying interested observers of every mutation. It does not
// decide what to replicate; it faithfully reconstructs and exposes a graph
// from a trusted, well-ordered message stream.
//
// # Architecture
//
// The root package holds the shared model: entity ids, tokens, lifecycle
// tiers, and the outbound Transport interface. The engine itself is split
// across focused packages:
//
//   - registry: two-tier (pending/active) indexed entity storage
//   - engine:   message dispatch loop, creation sequencing, bind buffering,
//     reparenting and cascading destruction
//   - mutate:   path-addressed data mutations behind a capability token
//   - catalog:  deterministically-indexed tables of remote-callable functions
//   - hub:      subscription registries with isolated async dispatch
//   - wire:     message payload shapes and the CBOR envelope codec
//   - resource: host-side handle pool driving bind-state transitions
//
// # Lifecycle tiers
//
// Every entity lives in exactly one of two tiers. An entity is Active iff
// its entire ancestor chain is Active and it either does not require an
// external resource or that resource is currently attached. Everything
// else is Pending: registered and addressable by the update stream, but
// invisible to creation-scoped observers until promoted.
//
// # Quick start
//
//	eng := engine.New(engine.Options{Transport: tr})
//	sub := eng.Hub().SubscribeNewEntity("player", func(ent *registry.Entity) {
//	    // fires for every entity of token "player" the moment it becomes Active
//	})
//	defer sub.Dispose()
//
//	for msg := range inbound {
//	    eng.Handle(context.Background(), msg)
//	}
package replica
