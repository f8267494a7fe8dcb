// Package engine ties the replication pipeline together: it consumes
// inbound wire messages one at a time, in arrival order, and applies them
// against the registry, firing hub notifications as state changes land.
//
// Message application is strictly serialized under one mutex, which also
// covers resource attach/detach events arriving from other goroutines. A
// failing message is dropped with a logged warning; it never damages state
// already applied for other entities.
package engine
