// Package taskgroup schedules the tasks of one group: it runs them with
// bounded concurrency, retries failed attempts and decides whether the
// group as a whole succeeds.
package taskgroup

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/srand/jolt/datasync/pkg/channel"
	"github.com/srand/jolt/datasync/pkg/communication"
	"github.com/srand/jolt/datasync/pkg/config"
	"github.com/srand/jolt/datasync/pkg/log"
	"github.com/srand/jolt/datasync/pkg/monitor"
	"github.com/srand/jolt/datasync/pkg/plugin"
	"github.com/srand/jolt/datasync/pkg/transformer"
	"github.com/srand/jolt/datasync/pkg/utils"
)

// Runs the tasks of one group.
type Container struct {
	config       *config.Config
	runID        string
	loader       plugin.Loader
	transformers *transformer.Registry
	monitor      monitor.Monitor
	comms        *communication.Manager
	fs           utils.Fs
	logger       *log.Logger
	stats        *statistics

	// Executors that may still have goroutines running
	executors []*TaskExecutor
}

type Option func(*Container)

// Resolve plugins with loader instead of the default registry.
func WithLoader(loader plugin.Loader) Option {
	return func(c *Container) { c.loader = loader }
}

func WithTransformers(registry *transformer.Registry) Option {
	return func(c *Container) { c.transformers = registry }
}

// Additional monitor, e.g. a remote watchdog. The local watchdog is
// always installed.
func WithMonitor(m monitor.Monitor) Option {
	return func(c *Container) { c.monitor = monitor.Multi(c.monitor, m) }
}

func WithFs(fs utils.Fs) Option {
	return func(c *Container) { c.fs = fs }
}

func WithRunID(id string) Option {
	return func(c *Container) { c.runID = id }
}

// Creates a container for a validated group configuration.
func NewContainer(cfg *config.Config, opts ...Option) *Container {
	cfg.SetDefaults()

	logger := log.WithPrefix(fmt.Sprintf("job-%d tg-%d", cfg.JobID, cfg.TaskGroupID))

	c := &Container{
		config:       cfg,
		runID:        uuid.NewString(),
		loader:       plugin.Default,
		transformers: transformer.Default,
		comms:        communication.NewManager(),
		logger:       logger,
		stats:        newStatistics(),
	}
	c.monitor = monitor.NewWatchdog(cfg.Monitor.Expire, logger.With("watchdog"))

	for _, opt := range opts {
		opt(c)
	}

	if c.fs == nil {
		c.fs = utils.NewOsFs()
	}

	c.comms.Register(c.taskIDs()...)
	c.stats.tasks.Store(int64(len(cfg.Content)))
	return c
}

func (c *Container) taskIDs() []int {
	ids := make([]int, 0, len(c.config.Content))
	for _, task := range c.config.Content {
		ids = append(ids, task.TaskID)
	}
	return ids
}

func (c *Container) RunID() string {
	return c.runID
}

// Registry of the group's task communications.
func (c *Container) Communications() *communication.Manager {
	return c.comms
}

func (c *Container) Statistics() *Statistics {
	return c.stats.snapshot()
}

func (c *Container) env() *executorEnv {
	return &executorEnv{
		jobID:        c.config.JobID,
		groupID:      c.config.TaskGroupID,
		loader:       c.loader,
		transformers: c.transformers,
		comms:        c.comms,
		transport: channel.Options{
			Capacity:    c.config.Transport.Capacity,
			ByteSpeed:   int64(c.config.Transport.ByteSpeed),
			RecordSpeed: c.config.Transport.RecordSpeed,
		},
		fs:     c.fs,
		logger: c.logger,
	}
}

// Runs the group to completion. Returns nil if every task succeeded, and
// a *GroupError otherwise. Cancelling ctx stops all tasks and fails the
// group with ErrKilled.
func (c *Container) Start(ctx context.Context) (err error) {
	start := time.Now()
	userStart, sysStart, _ := utils.ProcessCPUTime()

	c.logger.Infof("start - group - run: %s, channels: %d, tasks: %d", c.runID, c.config.Channel, len(c.config.Content))

	defer func() {
		c.teardown(err, time.Since(start), userStart, sysStart)
	}()

	defer func() {
		if r := recover(); r != nil {
			c.logger.Debugf("%s", debug.Stack())
			err = fmt.Errorf("panic: %v", r)
		}
		if err == nil {
			return
		}
		var groupErr *GroupError
		if !errors.As(err, &groupErr) {
			err = c.abort(newGroupError(ErrRuntime, err))
		}
	}()

	return c.run(ctx)
}

func (c *Container) run(ctx context.Context) error {
	cfg := c.config

	pending := slices.Clone(cfg.Content)
	configs := map[int]*config.TaskConfig{}
	for _, task := range cfg.Content {
		configs[task.TaskID] = task
	}

	running := []*TaskExecutor{}
	succeeded := []*TaskExecutor{}
	failed := map[int]*TaskExecutor{}

	var lastReport time.Time

	c.stats.pending.Store(int64(len(pending)))

	for {
		if ctx.Err() != nil {
			return c.abort(newGroupError(ErrKilled, ctx.Err()))
		}

		now := time.Now()

		// Reap finished tasks
		var fatal *GroupError
		for _, e := range slices.Clone(running) {
			comm := e.Communication()
			if !comm.IsFinished() {
				continue
			}

			running = slices.DeleteFunc(running, func(r *TaskExecutor) bool { return r == e })
			c.monitor.Remove(e.TaskID())

			switch comm.State() {
			case communication.Failed:
				e.failedAt = now
				failed[e.TaskID()] = e
				c.stats.failedAttempts.Add(1)

				if e.SupportsFailover() && e.Attempt() < cfg.Failover.MaxRetryTimes {
					c.logger.Warnf("retry - task - id: %d, attempt: %d, error: %v", e.TaskID(), e.Attempt(), comm.Cause())
					e.Shutdown()
					c.comms.Reset(e.TaskID())
					pending = append(pending, configs[e.TaskID()])
				} else {
					c.logger.Errorf("fail - task - id: %d, attempt: %d, error: %v", e.TaskID(), e.Attempt(), comm.Cause())
					fatal = newGroupError(ErrPluginRuntime, comm.Cause())
				}

			case communication.Killed:
				c.logger.Errorf("kill - task - id: %d, attempt: %d, error: %v", e.TaskID(), e.Attempt(), comm.Cause())
				fatal = newGroupError(ErrKilled, comm.Cause())

			case communication.Succeeded:
				elapsed := now.Sub(e.StartedAt())
				c.logger.Debugf("done - task - id: %d, attempt: %d, elapsed: %v", e.TaskID(), e.Attempt(), elapsed.Round(time.Millisecond))
				c.stats.taskSucceeded(e.TaskID(), elapsed)
				succeeded = append(succeeded, e)
				delete(configs, e.TaskID())
			}

			if fatal != nil {
				break
			}
		}

		c.stats.running.Store(int64(len(running)))
		c.stats.pending.Store(int64(len(pending)))

		if fatal != nil {
			return c.abort(fatal)
		}

		// Launch pending tasks
		for i := 0; i < len(pending) && len(running) < cfg.Channel; {
			task := pending[i]
			attempt := 1

			if last, ok := failed[task.TaskID]; ok {
				attempt = last.Attempt() + 1
				sinceFailure := now.Sub(last.FailedAt())

				if sinceFailure < cfg.Failover.RetryInterval {
					i++
					continue
				}

				if !last.IsShutdown() {
					if sinceFailure > cfg.Failover.MaxWait {
						cause := fmt.Errorf("task %d: attempt %d did not shut down within %v", task.TaskID, last.Attempt(), cfg.Failover.MaxWait)
						c.comms.Get(task.TaskID).Fail(cause)
						return c.abort(newGroupError(ErrWaitTimeExceeded, cause))
					}
					last.Shutdown()
					i++
					continue
				}
			}

			runConfig := task
			if cfg.Failover.MaxRetryTimes > 1 {
				runConfig = task.Clone()
			}

			e, err := newTaskExecutor(c.env(), runConfig, attempt)
			if err != nil {
				return c.abort(newGroupError(ErrConfig, err))
			}

			c.executors = append(c.executors, e)
			if err := e.Start(ctx); err != nil {
				return c.abort(newGroupError(ErrPluginRuntime, err))
			}

			if attempt > 1 {
				c.stats.retries.Add(1)
			}

			pending = slices.Delete(pending, i, i+1)
			running = append(running, e)
			c.monitor.Register(task.TaskID, e.Communication())
			delete(failed, task.TaskID)

			c.logger.Debugf("new - task - id: %d, attempt: %d", task.TaskID, attempt)
		}

		c.stats.running.Store(int64(len(running)))
		c.stats.pending.Store(int64(len(pending)))

		// Completion. Tasks launched above are reaped on the next iteration
		// even when they finish right away.
		if len(pending) == 0 && len(running) == 0 && allShutdown(succeeded) &&
			c.comms.CollectState() == communication.Succeeded {
			c.report(c.comms.Collect(), true)
			return nil
		}

		// Periodic report
		if now.Sub(lastReport) >= cfg.ReportInterval {
			c.report(c.comms.Collect(), false)
			lastReport = now

			for _, e := range running {
				c.monitor.Report(e.TaskID(), c.comms.Get(e.TaskID()))
			}
		}

		select {
		case <-ctx.Done():
			return c.abort(newGroupError(ErrKilled, ctx.Err()))
		case <-time.After(cfg.SleepInterval):
		}
	}
}

func allShutdown(executors []*TaskExecutor) bool {
	for _, e := range executors {
		if !e.IsShutdown() {
			return false
		}
	}
	return true
}

// Emits the final report for a failed group and attaches it to err.
func (c *Container) abort(err *GroupError) *GroupError {
	snapshot := c.comms.Collect()
	if err.Cause != nil {
		snapshot.SetCause(err.Cause)
	} else {
		snapshot.SetCause(err.Code)
	}

	switch {
	case errors.Is(err.Code, ErrKilled):
		snapshot.ForceState(communication.Killed)
	case snapshot.State() != communication.Killed:
		snapshot.ForceState(communication.Failed)
	}

	c.report(snapshot, true)
	err.Communication = snapshot
	return err
}

func (c *Container) report(snapshot *communication.Communication, final bool) *communication.Report {
	report := c.comms.Report(snapshot, final)
	c.stats.reports.Add(1)

	if final {
		c.logger.Infof("end - group - %s", report)
	} else {
		c.logger.Infof("rep - group - %s", report)
	}
	return report
}

// Stops whatever is still running and logs a performance summary.
func (c *Container) teardown(err error, elapsed time.Duration, userStart, sysStart time.Duration) {
	for _, e := range c.executors {
		if !e.IsShutdown() {
			e.Shutdown()
		}
	}
	c.executors = nil
	c.stats.running.Store(0)

	elapsedByTask := c.stats.taskElapsed()
	ids := make([]int, 0, len(elapsedByTask))
	for id := range elapsedByTask {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		c.logger.Debugf("perf - task - id: %d, elapsed: %v", id, elapsedByTask[id].Round(time.Millisecond))
	}

	state := communication.Succeeded
	if err != nil {
		state = communication.Failed
	}

	if user, sys, cpuErr := utils.ProcessCPUTime(); cpuErr == nil {
		c.logger.Infof("perf - group - state: %s, elapsed: %v, cpu user: %v, cpu system: %v",
			state, elapsed.Round(time.Millisecond), (user - userStart).Round(time.Millisecond), (sys - sysStart).Round(time.Millisecond))
	} else {
		c.logger.Infof("perf - group - state: %s, elapsed: %v", state, elapsed.Round(time.Millisecond))
	}

	c.comms.Close()
}
