// Package dispatch runs deferred background work identified by a unique
// task id. While a task with a given id is queued or running, further
// requests for that id are absorbed.
package dispatch

import (
	"context"
	"sync"

	"github.com/backkem/camlink/pkg/metrics"
	"github.com/pion/logging"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxConcurrent bounds the tasks running at once.
const DefaultMaxConcurrent = 4

// Policy decides what happens when a task id is already outstanding.
type Policy int

const (
	// KeepExisting leaves the outstanding task alone and drops the request.
	KeepExisting Policy = iota

	// Replace would cancel the outstanding task. It is not supported.
	Replace
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case KeepExisting:
		return "KeepExisting"
	case Replace:
		return "Replace"
	default:
		return "Unknown"
	}
}

// Work is a unit of deferred work.
type Work func(ctx context.Context) error

// Constraint blocks until the conditions for running work hold, such as
// network availability, or returns ctx's error.
type Constraint func(ctx context.Context) error

// Config configures a Dispatcher.
type Config struct {
	// MaxConcurrent bounds running tasks. Default: DefaultMaxConcurrent.
	MaxConcurrent int64

	// Constraint delays each task until satisfied. Optional.
	Constraint Constraint

	// Metrics records enqueue outcomes. Optional.
	Metrics *metrics.Metrics

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Dispatcher runs unique background tasks.
type Dispatcher struct {
	sem        *semaphore.Weighted
	constraint Constraint
	metrics    *metrics.Metrics
	log        logging.LeveledLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	outstanding map[string]struct{}
	closed      bool
}

// New creates a dispatcher.
func New(config Config) *Dispatcher {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = DefaultMaxConcurrent
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		sem:         semaphore.NewWeighted(config.MaxConcurrent),
		constraint:  config.Constraint,
		metrics:     config.Metrics,
		ctx:         ctx,
		cancel:      cancel,
		outstanding: make(map[string]struct{}),
	}
	if config.LoggerFactory != nil {
		d.log = config.LoggerFactory.NewLogger("dispatch")
	}
	return d
}

// EnqueueUnique schedules work under taskID. It reports whether a new task
// was created; false means a task with that id is already queued or running
// and the request was absorbed.
func (d *Dispatcher) EnqueueUnique(taskID string, policy Policy, work Work) (bool, error) {
	if taskID == "" {
		return false, ErrInvalidTaskID
	}
	if work == nil {
		return false, ErrNilWork
	}
	if policy != KeepExisting {
		return false, ErrUnsupportedPolicy
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false, ErrClosed
	}
	if _, ok := d.outstanding[taskID]; ok {
		d.metrics.ObserveEnqueue(taskID, false)
		if d.log != nil {
			d.log.Debugf("task %s already outstanding", taskID)
		}
		return false, nil
	}

	d.outstanding[taskID] = struct{}{}
	d.metrics.ObserveEnqueue(taskID, true)
	d.wg.Add(1)
	go d.run(taskID, work)
	return true, nil
}

func (d *Dispatcher) run(taskID string, work Work) {
	defer d.wg.Done()
	defer d.finish(taskID)

	if d.constraint != nil {
		if err := d.constraint(d.ctx); err != nil {
			if d.log != nil {
				d.log.Warnf("task %s: constraint not met: %v", taskID, err)
			}
			return
		}
	}

	if err := d.sem.Acquire(d.ctx, 1); err != nil {
		return
	}
	defer d.sem.Release(1)

	if err := work(d.ctx); err != nil && d.log != nil {
		d.log.Warnf("task %s failed: %v", taskID, err)
	}
}

func (d *Dispatcher) finish(taskID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.outstanding, taskID)
}

// Outstanding reports whether a task with taskID is queued or running.
func (d *Dispatcher) Outstanding(taskID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.outstanding[taskID]
	return ok
}

// Wait blocks until every task scheduled so far has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close rejects new work, cancels the context passed to running tasks and
// waits for them to return.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
	return nil
}
