package taskgroup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/srand/jolt/datasync/pkg/channel"
	"github.com/srand/jolt/datasync/pkg/communication"
	"github.com/srand/jolt/datasync/pkg/config"
	"github.com/srand/jolt/datasync/pkg/log"
	"github.com/srand/jolt/datasync/pkg/plugin"
	"github.com/srand/jolt/datasync/pkg/runner"
	"github.com/srand/jolt/datasync/pkg/transformer"
	"github.com/srand/jolt/datasync/pkg/utils"
)

// Dependencies shared by all executors of a group.
type executorEnv struct {
	jobID        int64
	groupID      int
	loader       plugin.Loader
	transformers *transformer.Registry
	comms        *communication.Manager
	transport    channel.Options
	fs           utils.Fs
	logger       *log.Logger
}

// One attempt of one task: a reader and a writer connected by a channel.
type TaskExecutor struct {
	config  *config.TaskConfig
	taskID  int
	attempt int

	comm    *communication.Communication
	channel *channel.Channel
	reader  *runner.ReaderRunner
	writer  *runner.WriterRunner
	logger  *log.Logger

	startedAt time.Time
	failedAt  time.Time
}

func newTaskExecutor(env *executorEnv, cfg *config.TaskConfig, attempt int) (*TaskExecutor, error) {
	if cfg.Reader == nil || cfg.Reader.Name == "" {
		return nil, fmt.Errorf("task %d has no reader section", cfg.TaskID)
	}
	if cfg.Writer == nil || cfg.Writer.Name == "" {
		return nil, fmt.Errorf("task %d has no writer section", cfg.TaskID)
	}

	reader, err := env.loader.LoadReader(cfg.Reader.Name)
	if err != nil {
		return nil, fmt.Errorf("task %d: %w", cfg.TaskID, err)
	}

	writer, err := env.loader.LoadWriter(cfg.Writer.Name)
	if err != nil {
		return nil, fmt.Errorf("task %d: %w", cfg.TaskID, err)
	}

	logger := env.logger.With(fmt.Sprintf("task-%d", cfg.TaskID))
	comm := env.comms.Get(cfg.TaskID)
	ch := channel.New(env.transport, comm)

	readerCollector := plugin.NewCollector(comm, plugin.ReaderSide, logger)
	writerCollector := plugin.NewCollector(comm, plugin.WriterSide, logger)

	chain, err := transformer.NewChain(cfg.Transformer, env.transformers, comm, readerCollector)
	if err != nil {
		return nil, fmt.Errorf("task %d: %w", cfg.TaskID, err)
	}

	taskContext := func(param plugin.Param, collector plugin.Collector, side string) *plugin.TaskContext {
		return &plugin.TaskContext{
			JobID:       env.jobID,
			TaskGroupID: env.groupID,
			TaskID:      cfg.TaskID,
			Attempt:     attempt,
			Param:       param,
			Collector:   collector,
			Fs:          env.fs,
			Logger:      logger.With(side),
		}
	}

	return &TaskExecutor{
		config:  cfg,
		taskID:  cfg.TaskID,
		attempt: attempt,
		comm:    comm,
		channel: ch,
		reader: runner.NewReaderRunner(reader,
			taskContext(cfg.Reader.Parameter, readerCollector, cfg.Reader.Name),
			ch, chain.Wrap(ch), comm),
		writer: runner.NewWriterRunner(writer,
			taskContext(cfg.Writer.Parameter, writerCollector, cfg.Writer.Name),
			ch, comm),
		logger: logger,
	}, nil
}

// Starts the writer, then the reader. The writer must be running before
// the reader can produce anything.
func (e *TaskExecutor) Start(ctx context.Context) error {
	e.startedAt = time.Now()

	e.writer.Start(ctx)
	<-e.writer.Started()

	if !e.writer.IsAlive() || e.comm.State() == communication.Failed {
		return fmt.Errorf("task %d: writer failed to start: %w", e.taskID, causeOr(e.comm, "writer exited"))
	}

	e.reader.Start(ctx)
	<-e.reader.Started()

	// A reader may legitimately be done already, only a failure counts.
	if !e.reader.IsAlive() && e.comm.State() == communication.Failed {
		return fmt.Errorf("task %d: reader failed to start: %w", e.taskID, causeOr(e.comm, "reader exited"))
	}

	e.logger.Debugf("run - task - attempt: %d", e.attempt)
	return nil
}

func causeOr(comm *communication.Communication, msg string) error {
	if err := comm.Cause(); err != nil {
		return err
	}
	return errors.New(msg)
}

// True when both goroutines have exited and the task reached a terminal
// state.
func (e *TaskExecutor) IsFinished() bool {
	if e.reader.IsAlive() || e.writer.IsAlive() {
		return false
	}
	return e.comm.IsFinished()
}

// Stops the attempt. Safe to call any number of times, also after the
// goroutines exited on their own.
func (e *TaskExecutor) Shutdown() {
	e.channel.Shutdown()
	if e.writer.IsAlive() {
		e.writer.Shutdown()
	}
	if e.reader.IsAlive() {
		e.reader.Shutdown()
	}
}

// True when neither goroutine is running.
func (e *TaskExecutor) IsShutdown() bool {
	return !e.reader.IsAlive() && !e.writer.IsAlive()
}

// Only the writer decides whether an attempt can be repeated.
func (e *TaskExecutor) SupportsFailover() bool {
	return e.writer.SupportFailOver()
}

func (e *TaskExecutor) TaskID() int {
	return e.taskID
}

func (e *TaskExecutor) Attempt() int {
	return e.attempt
}

func (e *TaskExecutor) Communication() *communication.Communication {
	return e.comm
}

func (e *TaskExecutor) StartedAt() time.Time {
	return e.startedAt
}

// Time the scheduler observed the failure of this attempt.
func (e *TaskExecutor) FailedAt() time.Time {
	return e.failedAt
}
