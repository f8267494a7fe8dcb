package engine

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StartPolling launches the initial-data request task: it asks the peer for
// the starting snapshot immediately and then on every poll interval until
// the ready handshake arrives, ctx is cancelled, or the returned stop
// function is called. Request failures are logged and retried.
func (e *Engine) StartPolling(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(e.pollInterval)
		defer ticker.Stop()

		for {
			if err := e.transport.RequestInitialData(); err != nil {
				e.logger.Warn("initial data request failed", zap.Error(err))
			}
			select {
			case <-ctx.Done():
				return
			case <-e.readyCh:
				return
			case <-ticker.C:
			}
		}
	}()
	return cancel
}
