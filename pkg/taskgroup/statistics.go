package taskgroup

import (
	"maps"
	"sync"
	"sync/atomic"
	"time"
)

// Task group statistics
type Statistics struct {
	// Number of tasks in the group
	Tasks int64

	// Tasks waiting to be started, including retries
	PendingTasks int64

	// Tasks currently running
	RunningTasks int64

	// Tasks that completed successfully
	SucceededTasks int64

	// Failed attempts, whether retried or not
	FailedAttempts int64

	// Attempts started after a failure
	Retries int64

	// Reports emitted
	Reports int64
}

type statistics struct {
	tasks          atomic.Int64
	pending        atomic.Int64
	running        atomic.Int64
	succeeded      atomic.Int64
	failedAttempts atomic.Int64
	retries        atomic.Int64
	reports        atomic.Int64

	mu      sync.Mutex
	elapsed map[int]time.Duration
}

func newStatistics() *statistics {
	return &statistics{elapsed: map[int]time.Duration{}}
}

func (s *statistics) snapshot() *Statistics {
	return &Statistics{
		Tasks:          s.tasks.Load(),
		PendingTasks:   s.pending.Load(),
		RunningTasks:   s.running.Load(),
		SucceededTasks: s.succeeded.Load(),
		FailedAttempts: s.failedAttempts.Load(),
		Retries:        s.retries.Load(),
		Reports:        s.reports.Load(),
	}
}

func (s *statistics) taskSucceeded(taskID int, elapsed time.Duration) {
	s.succeeded.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elapsed[taskID] = elapsed
}

// Elapsed time of each successful task.
func (s *statistics) taskElapsed() map[int]time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.elapsed)
}
