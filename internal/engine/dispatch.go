package engine

import (
	"context"
	"sync"
	"time"

	"github.com/brightpath/pulse/internal/logger"
)

// task is one queued backend write.
type task struct {
	name string
	call func(ctx context.Context) error
}

// dispatcher issues fire-and-forget gateway writes from a single worker
// goroutine, preserving program order of causally related writes. Enqueueing
// never blocks the caller: when the buffer is full the write is dropped,
// which is the documented at-most-once policy rather than backpressure.
type dispatcher struct {
	tasks   chan task
	closed  chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	log     logger.Logger
	timeout time.Duration
}

func newDispatcher(capacity int, timeout time.Duration, log logger.Logger) *dispatcher {
	return &dispatcher{
		tasks:   make(chan task, capacity),
		closed:  make(chan struct{}),
		log:     log,
		timeout: timeout,
	}
}

// start launches the worker goroutine.
func (d *dispatcher) start() {
	d.wg.Add(1)
	go d.run()
}

// enqueue performs a non-blocking send. It returns false when the task was
// dropped because the buffer is full or the dispatcher is closed.
func (d *dispatcher) enqueue(name string, call func(ctx context.Context) error) bool {
	select {
	case <-d.closed:
		return false
	default:
	}

	select {
	case d.tasks <- task{name: name, call: call}:
		return true
	default:
		d.log.Warn("Telemetry write dropped, dispatch buffer full",
			logger.String("op", name),
		)
		return false
	}
}

// close stops accepting tasks, drains what is already queued, and waits for
// the worker to finish. Safe to call multiple times.
func (d *dispatcher) close() {
	d.once.Do(func() {
		close(d.closed)
	})
	d.wg.Wait()
}

func (d *dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case t := <-d.tasks:
			d.execute(t)

		case <-d.closed:
			d.drain()
			return
		}
	}
}

// drain executes all remaining queued tasks.
func (d *dispatcher) drain() {
	for {
		select {
		case t := <-d.tasks:
			d.execute(t)
		default:
			return
		}
	}
}

// execute runs one task with a bounded context. Failures are logged and
// discarded; nothing is retried.
func (d *dispatcher) execute(t task) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := t.call(ctx); err != nil {
		d.log.Debug("Telemetry write failed",
			logger.String("op", t.name),
			logger.Error(err),
		)
	}
}
