package hub

import (
	"sync"

	"go.uber.org/zap"
)

const (
	defaultWorkers = 4
	defaultQueue   = 256
)

// dispatcher runs listener callbacks on a bounded worker pool so that a
// slow or panicking listener can never stall the engine's dispatch loop or
// the other listeners of the same event. When the queue is full the task
// falls back to its own goroutine rather than blocking the producer.
type dispatcher struct {
	tasks  chan func()
	wg     sync.WaitGroup
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

func newDispatcher(workers, queue int, logger *zap.Logger) *dispatcher {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queue <= 0 {
		queue = defaultQueue
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &dispatcher{
		tasks:  make(chan func(), queue),
		logger: logger,
	}
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	return d
}

func (d *dispatcher) worker() {
	for fn := range d.tasks {
		fn()
	}
}

func (d *dispatcher) enqueue(fn func()) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	wrapped := func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("listener panicked", zap.Any("panic", r))
			}
		}()
		fn()
	}

	select {
	case d.tasks <- wrapped:
	default:
		go wrapped()
	}
}

// wait blocks until every enqueued task has finished.
func (d *dispatcher) wait() {
	d.wg.Wait()
}

func (d *dispatcher) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	d.wg.Wait()
	close(d.tasks)
}
