// Package runner drives the lifecycle of one reader or writer plugin task
// on its own goroutine.
package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/srand/jolt/datasync/pkg/communication"
	"github.com/srand/jolt/datasync/pkg/log"
	"github.com/srand/jolt/datasync/pkg/plugin"
)

var ErrPanic = errors.New("plugin panicked")

// Goroutine bookkeeping shared by reader and writer runners.
type runner struct {
	name   string
	task   plugin.Task
	tc     *plugin.TaskContext
	comm   *communication.Communication
	logger *log.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	started chan struct{}
	done    chan struct{}
	running bool
	stopped bool
}

func newRunner(name string, task plugin.Task, tc *plugin.TaskContext, comm *communication.Communication) *runner {
	logger := tc.Logger
	if logger == nil {
		logger = log.WithPrefix(fmt.Sprintf("tg-%d task-%d", tc.TaskGroupID, tc.TaskID))
	}
	return &runner{
		name:    name,
		task:    task,
		tc:      tc,
		comm:    comm,
		logger:  logger,
		started: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Launches body on a new goroutine. Only the first call has an effect.
func (r *runner) start(ctx context.Context, body func(ctx context.Context)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running || r.stopped {
		return
	}
	r.running = true

	ctx, r.cancel = context.WithCancel(ctx)

	go func() {
		defer close(r.done)
		defer r.cancel()
		close(r.started)
		body(ctx)
	}()
}

// Closed once the goroutine has begun executing.
func (r *runner) Started() <-chan struct{} {
	return r.started
}

// Closed once the goroutine has returned.
func (r *runner) Done() <-chan struct{} {
	return r.done
}

// True while the goroutine has been started and has not returned.
func (r *runner) IsAlive() bool {
	select {
	case <-r.started:
	default:
		return false
	}
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

// Requests the goroutine to stop by cancelling its context. Idempotent,
// and a runner that was never started will not start afterwards.
func (r *runner) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	if r.cancel != nil {
		r.cancel()
	}
}

// Calls Init, Prepare, body and Post, stopping at the first error.
// Destroy is always called. Panics are converted to errors.
func (r *runner) lifecycle(ctx context.Context, body func(ctx context.Context) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %s: %v", ErrPanic, r.name, rec)
			r.logger.Debugf("%s", debug.Stack())
		}
		if derr := r.destroy(); derr != nil {
			r.logger.Warnf("err - %s - destroy: %v", r.name, derr)
		}
	}()

	if err := r.task.Init(r.tc); err != nil {
		return fmt.Errorf("%s init: %w", r.name, err)
	}
	if err := r.task.Prepare(ctx); err != nil {
		return fmt.Errorf("%s prepare: %w", r.name, err)
	}
	if err := body(ctx); err != nil {
		return fmt.Errorf("%s: %w", r.name, err)
	}
	if err := r.task.Post(ctx); err != nil {
		return fmt.Errorf("%s post: %w", r.name, err)
	}
	return nil
}

func (r *runner) destroy() (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %s destroy: %v", ErrPanic, r.name, rec)
		}
	}()
	return r.task.Destroy()
}

func (r *runner) fail(err error) {
	r.logger.Errorf("err - %s - task: %d, attempt: %d, error: %v", r.name, r.tc.TaskID, r.tc.Attempt, err)
	log.DebugError(err)
	r.comm.Fail(err)
}

func (r *runner) elapsed(start time.Time) time.Duration {
	return time.Since(start).Round(time.Millisecond)
}
