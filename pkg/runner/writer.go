package runner

import (
	"context"
	"time"

	"github.com/srand/jolt/datasync/pkg/channel"
	"github.com/srand/jolt/datasync/pkg/communication"
	"github.com/srand/jolt/datasync/pkg/plugin"
)

// Runs a writer task, draining the channel. The writer decides the
// task's final state: SUCCEEDED once it has written everything.
type WriterRunner struct {
	*runner
	writer  plugin.WriterTask
	channel *channel.Channel
}

func NewWriterRunner(writer plugin.WriterTask, tc *plugin.TaskContext, ch *channel.Channel, comm *communication.Communication) *WriterRunner {
	return &WriterRunner{
		runner:  newRunner("writer", writer, tc, comm),
		writer:  writer,
		channel: ch,
	}
}

func (r *WriterRunner) Start(ctx context.Context) {
	r.start(ctx, r.run)
}

func (r *WriterRunner) SupportFailOver() bool {
	return r.writer.SupportFailOver()
}

func (r *WriterRunner) run(ctx context.Context) {
	start := time.Now()
	r.logger.Debugf("run - writer - task: %d, attempt: %d", r.tc.TaskID, r.tc.Attempt)

	// A reader still blocked on a full channel must not outlive the writer.
	defer r.channel.Shutdown()

	err := r.lifecycle(ctx, func(ctx context.Context) error {
		return r.writer.StartWrite(ctx, r.channel)
	})
	if err != nil {
		r.fail(err)
		return
	}

	r.comm.SetState(communication.Succeeded)
	r.logger.Debugf("end - writer - task: %d, elapsed: %v", r.tc.TaskID, r.elapsed(start))
}
