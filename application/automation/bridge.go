package automation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// workerStartTimeout bounds how long a caller waits for the worker to come
// up before failing fast.
const workerStartTimeout = 5 * time.Second

// Bridge serializes all browser-driving operations onto one worker
// goroutine, so no two driver calls ever interleave. The worker is created
// lazily on the first Run and recreated if it was stopped. Run blocks the
// caller until the operation finishes or the caller's context expires;
// an expired context abandons the wait but does not interrupt the in-flight
// driver call.
type Bridge struct {
	log *zap.Logger

	mu      sync.Mutex
	tasks   chan *bridgeTask
	quit    chan struct{}
	running bool
}

type bridgeTask struct {
	ctx  context.Context
	name string
	fn   func(context.Context) error
	done chan error
}

// NewBridge - creates a bridge with no worker yet
func NewBridge(log *zap.Logger) *Bridge {
	return &Bridge{log: log.Named("bridge")}
}

// Run executes fn on the worker and blocks until it returns.
func (b *Bridge) Run(ctx context.Context, name string, fn func(context.Context) error) error {
	if err := b.ensureWorker(); err != nil {
		return err
	}

	b.mu.Lock()
	tasks, quit := b.tasks, b.quit
	b.mu.Unlock()

	task := &bridgeTask{
		ctx:  ctx,
		name: name,
		fn:   fn,
		done: make(chan error, 1),
	}

	select {
	case tasks <- task:
	case <-quit:
		return fmt.Errorf("%w: worker stopped before accepting %q", ErrBridgeStart, name)
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-task.done:
		return err
	case <-ctx.Done():
		b.log.Warn("abandoning operation, worker keeps running it",
			zap.String("operation", name))
		return ctx.Err()
	}
}

// ensureWorker starts the worker goroutine when none is running.
func (b *Bridge) ensureWorker() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return nil
	}

	tasks := make(chan *bridgeTask)
	quit := make(chan struct{})
	ready := make(chan struct{})

	go b.worker(tasks, quit, ready)

	select {
	case <-ready:
	case <-time.After(workerStartTimeout):
		close(quit)
		return ErrBridgeStart
	}

	b.tasks = tasks
	b.quit = quit
	b.running = true
	b.log.Debug("worker started")
	return nil
}

func (b *Bridge) worker(tasks chan *bridgeTask, quit, ready chan struct{}) {
	close(ready)
	for {
		select {
		case task := <-tasks:
			started := time.Now()
			err := runGuarded(task)
			b.log.Debug("operation finished",
				zap.String("operation", task.name),
				zap.Duration("took", time.Since(started)),
				zap.Error(err))
			task.done <- err
		case <-quit:
			return
		}
	}
}

// runGuarded keeps a panicking operation from killing the worker.
func runGuarded(task *bridgeTask) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("operation %q panicked: %v", task.name, r)
		}
	}()
	return task.fn(task.ctx)
}

// Stop shuts the worker down. Idempotent; a later Run restarts it.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return
	}
	close(b.quit)
	b.running = false
	b.log.Debug("worker stopped")
}
