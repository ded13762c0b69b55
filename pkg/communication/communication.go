// Package communication holds the status and counters shared between a
// task's worker goroutines and the group scheduler.
package communication

import (
	"maps"
	"sync"
	"time"
)

// Counter names.
const (
	ReadSucceedRecords = "readSucceedRecords"
	ReadSucceedBytes   = "readSucceedBytes"
	ReadFailedRecords  = "readFailedRecords"
	ReadFailedBytes    = "readFailedBytes"

	WriteReceivedRecords = "writeReceivedRecords"
	WriteReceivedBytes   = "writeReceivedBytes"
	WriteFailedRecords   = "writeFailedRecords"
	WriteFailedBytes     = "writeFailedBytes"

	TransformerSucceedRecords = "totalTransformerSuccessRecords"
	TransformerFailedRecords  = "totalTransformerFailedRecords"
	TransformerFilterRecords  = "totalTransformerFilterRecords"
	TransformerUsedTime       = "totalTransformerUsedTime"

	WaitWriterTime = "waitWriterTime"
	WaitReaderTime = "waitReaderTime"

	ByteSpeed   = "byteSpeed"
	RecordSpeed = "recordSpeed"
	Stage       = "stage"
)

// Status record of a task, or of a group when collected.
//
// All accessors are safe for concurrent use. Counters only grow, and the
// state only moves toward a terminal state. Reset is the one exception and
// is reserved for the scheduler when a task is retried.
type Communication struct {
	mu        sync.RWMutex
	state     State
	counters  map[string]int64
	cause     error
	timestamp time.Time
}

func New() *Communication {
	return &Communication{
		state:     Running,
		counters:  map[string]int64{},
		timestamp: time.Now(),
	}
}

func (c *Communication) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Communication) IsFinished() bool {
	return c.State().IsFinished()
}

// Sets the state. A terminal state is never left, except that any state
// may be escalated to KILLED.
func (c *Communication) SetState(state State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setStateNoLock(state)
}

func (c *Communication) setStateNoLock(state State) {
	if c.state.IsFinished() && state != Killed {
		return
	}
	c.state = state
	c.timestamp = time.Now()
}

// Overrides the state unconditionally. Reserved for collected group
// snapshots; task records only move forward.
func (c *Communication) ForceState(state State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
	c.timestamp = time.Now()
}

// Records err as the cause, unless a cause is already present.
func (c *Communication) SetCause(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cause == nil {
		c.cause = err
	}
}

// Marks the task failed with err as cause. The first cause wins. A task
// that already finished is left untouched.
func (c *Communication) Fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.IsFinished() {
		return
	}
	if c.cause == nil {
		c.cause = err
	}
	c.setStateNoLock(Failed)
}

// Marks the task killed with err as cause.
func (c *Communication) Kill(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cause == nil {
		c.cause = err
	}
	c.setStateNoLock(Killed)
}

func (c *Communication) Cause() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cause
}

// Time of the last state or counter change.
func (c *Communication) Timestamp() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.timestamp
}

func (c *Communication) Counter(key string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counters[key]
}

func (c *Communication) IncreaseCounter(key string, delta int64) {
	if delta == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[key] += delta
	c.timestamp = time.Now()
}

func (c *Communication) SetCounter(key string, value int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[key] = value
}

// Copy of all counters.
func (c *Communication) Counters() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.counters)
}

// Restores a fresh RUNNING state with zero counters and no cause.
func (c *Communication) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Running
	c.counters = map[string]int64{}
	c.cause = nil
	c.timestamp = time.Now()
}

// Returns an independent snapshot.
func (c *Communication) Clone() *Communication {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return &Communication{
		state:     c.state,
		counters:  maps.Clone(c.counters),
		cause:     c.cause,
		timestamp: c.timestamp,
	}
}

// Folds other into c: counters are summed, states merged by precedence
// and the cause of c is kept if already set.
func (c *Communication) Merge(other *Communication) {
	if other == nil || other == c {
		return
	}

	snapshot := other.Clone()

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, value := range snapshot.counters {
		c.counters[key] += value
	}
	c.state = mergeState(c.state, snapshot.state)
	if c.cause == nil {
		c.cause = snapshot.cause
	}
	if snapshot.timestamp.After(c.timestamp) {
		c.timestamp = snapshot.timestamp
	}
}

// Records read by the reader, successful or not.
func (c *Communication) TotalReadRecords() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counters[ReadSucceedRecords] + c.counters[ReadFailedRecords]
}

func (c *Communication) TotalReadBytes() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counters[ReadSucceedBytes] + c.counters[ReadFailedBytes]
}

// Dirty records collected on either side. Records the transform chain
// failed on are collected on the reader side.
func (c *Communication) TotalErrorRecords() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counters[ReadFailedRecords] + c.counters[WriteFailedRecords]
}
