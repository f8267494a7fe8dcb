// Package resource tracks externally-owned handles on the host side of
// the replication boundary. A Pool keys handles by entity id and forwards
// every attach and detach to a Binder, which is how a host resource
// system drives tier transitions without knowing the engine's internals.
package resource
