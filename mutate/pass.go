package mutate

import (
	"sync/atomic"

	"github.com/wippyai/replica/errors"
)

// Pass is the applying-update capability token. Every mutation operation
// requires a live Pass; the engine issues one around each inbound
// update-applying message and while executing a catalog function, and ends
// it when that work completes. A nil or ended Pass yields a guard
// violation, so callbacks that stash a Pass and use it later fail fast
// instead of corrupting state.
type Pass struct {
	ended atomic.Bool
}

// Begin issues a fresh applying-update pass. Intended for the engine's
// dispatch path and for tests; user code never constructs one.
func Begin() *Pass {
	return &Pass{}
}

// End invalidates the pass. Idempotent.
func (p *Pass) End() {
	p.ended.Store(true)
}

// Live reports whether the pass still authorizes mutations.
func (p *Pass) Live() bool {
	return p != nil && !p.ended.Load()
}

func guard(p *Pass) error {
	if p == nil {
		return errors.Guard("mutation API invoked without an applying-update pass")
	}
	if p.ended.Load() {
		return errors.Guard("mutation API invoked after the applying-update pass ended")
	}
	return nil
}
