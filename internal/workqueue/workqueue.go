// Package workqueue runs operations on a fixed pool of worker goroutines.
//
// Requests are queued in arrival order. A request that finds the queue full
// is not dropped: it is answered with BUSY through the engine, so it is
// logged and passed to the post-response plugins like any other.
package workqueue

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/KilimcininKorOglu/obacore/internal/config"
	"github.com/KilimcininKorOglu/obacore/internal/ldap"
	"github.com/KilimcininKorOglu/obacore/internal/logging"
	"github.com/KilimcininKorOglu/obacore/internal/operation"
)

// Default pool dimensions.
const (
	DefaultWorkers   = 16
	DefaultQueueSize = 1024
)

// Work queue errors.
var (
	// ErrQueueFull is returned when an operation was refused with BUSY.
	ErrQueueFull = errors.New("workqueue: queue is full")
	// ErrStopped is returned when an operation arrives after Stop.
	ErrStopped = errors.New("workqueue: stopped")
)

// Config holds the pool dimensions.
type Config struct {
	Workers   int
	QueueSize int
}

// NewConfig creates a Config with default settings.
func NewConfig() *Config {
	return &Config{Workers: DefaultWorkers, QueueSize: DefaultQueueSize}
}

// ApplySettings copies the workQueue section of the configuration file.
func (c *Config) ApplySettings(s config.WorkQueueConfig) {
	if s.Workers > 0 {
		c.Workers = s.Workers
	}
	if s.QueueSize > 0 {
		c.QueueSize = s.QueueSize
	}
}

// Queue feeds queued operations to the engine.
type Queue struct {
	engine *operation.Engine
	logger logging.Logger

	mu      sync.RWMutex
	ops     chan operation.Operation
	stopped bool

	group *errgroup.Group
}

// New starts a queue with cfg.Workers workers. A nil cfg uses the defaults.
func New(engine *operation.Engine, cfg *Config, logger logging.Logger) *Queue {
	if cfg == nil {
		cfg = NewConfig()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	size := cfg.QueueSize
	if size < 0 {
		size = 0
	}

	q := &Queue{
		engine: engine,
		logger: logger.Named("workqueue"),
		ops:    make(chan operation.Operation, size),
		group:  new(errgroup.Group),
	}
	for i := 0; i < workers; i++ {
		q.group.Go(q.work)
	}
	q.logger.Debug("work queue started", "workers", workers, "queue_size", size)
	return q
}

func (q *Queue) work() error {
	for op := range q.ops {
		q.engine.Run(op)
	}
	return nil
}

// Submit queues op. When the queue is full or stopped op is answered right
// away and an error is returned; the caller has nothing else to do with it.
func (q *Queue) Submit(op operation.Operation) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.stopped {
		q.engine.Reject(op, ldap.NewResultError(ldap.ResultUnavailable, "the server is shutting down"))
		return ErrStopped
	}

	select {
	case q.ops <- op:
		return nil
	default:
		q.logger.Warn("work queue full, refusing operation", "op", op.Kind().String(), "op_id", op.OperationID(), "msg_id", op.MessageID())
		q.engine.Reject(op, ldap.NewResultError(ldap.ResultBusy, "the server is too busy to process the request"))
		return ErrQueueFull
	}
}

// Len returns the number of operations waiting for a worker.
func (q *Queue) Len() int {
	return len(q.ops)
}

// Stop refuses new operations and waits for the queued ones to finish or
// for ctx to end.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.stopped {
		q.stopped = true
		close(q.ops)
	}
	q.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- q.group.Wait() }()

	select {
	case err := <-done:
		q.logger.Debug("work queue stopped")
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
