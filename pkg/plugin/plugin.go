// Package plugin defines the lifecycle contract of reader and writer
// plugins and the registry they are looked up in.
package plugin

import (
	"context"

	"github.com/srand/jolt/datasync/pkg/element"
	"github.com/srand/jolt/datasync/pkg/log"
	"github.com/srand/jolt/datasync/pkg/utils"
)

// Destination of records produced by a reader.
type RecordSender interface {
	// Blocks while the downstream queue is full.
	Send(ctx context.Context, record *element.Record) error
}

// Source of records consumed by a writer.
type RecordReceiver interface {
	// Blocks while no record is available. Returns io.EOF at end of stream.
	Receive(ctx context.Context) (*element.Record, error)
}

// Lifecycle shared by reader and writer tasks. The runner calls Init,
// Prepare, the Start method, Post and finally Destroy, which is called
// even if an earlier step failed.
type Task interface {
	Init(tc *TaskContext) error
	Prepare(ctx context.Context) error
	Post(ctx context.Context) error
	Destroy() error
}

type ReaderTask interface {
	Task

	// Produces records until the source is exhausted or ctx is cancelled.
	StartRead(ctx context.Context, sender RecordSender) error
}

type WriterTask interface {
	Task

	// Consumes records until the receiver reports io.EOF.
	StartWrite(ctx context.Context, receiver RecordReceiver) error

	// True if a failed attempt can safely be repeated from scratch.
	SupportFailOver() bool
}

// Everything a plugin task is given at Init.
type TaskContext struct {
	JobID       int64
	TaskGroupID int
	TaskID      int
	Attempt     int

	// Plugin specific parameters from the task configuration.
	Param Param

	// Sink for records the plugin could not process.
	Collector Collector

	// Filesystem used by file based plugins.
	Fs utils.Fs

	Logger *log.Logger
}

// Embeddable no-op implementation of the lifecycle steps. Init stores the
// task context.
type BaseTask struct {
	TC *TaskContext
}

func (b *BaseTask) Init(tc *TaskContext) error {
	b.TC = tc
	return nil
}

func (b *BaseTask) Prepare(context.Context) error { return nil }
func (b *BaseTask) Post(context.Context) error    { return nil }
func (b *BaseTask) Destroy() error                { return nil }

// Logger of the task, never nil.
func (b *BaseTask) Logger() *log.Logger {
	if b.TC == nil || b.TC.Logger == nil {
		return log.WithPrefix("plugin")
	}
	return b.TC.Logger
}
