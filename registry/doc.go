// Package registry provides two-tier indexed storage for replicated
// entities.
//
// The Pending and Active stores are independent id-indexed maps; an id
// lives in exactly one of them at any time. A token index over the Active
// store serves group-level lookups; Pending entities are internal-only
// and never visible through it.
//
// Registration into Active must be followed by a creation-visible
// announcement through the subscription hub. The registry deliberately
// does not announce on its own: creation batches and subtree promotions
// buffer their announcements so observers always see a parent before its
// descendants, and only the component driving the operation knows that
// order.
package registry
