package runner

import (
	"context"
	"time"

	"github.com/srand/jolt/datasync/pkg/channel"
	"github.com/srand/jolt/datasync/pkg/communication"
	"github.com/srand/jolt/datasync/pkg/plugin"
)

// Runs a reader task, feeding its records into the channel.
type ReaderRunner struct {
	*runner
	reader  plugin.ReaderTask
	channel *channel.Channel
	sender  plugin.RecordSender
}

// Creates a reader runner. Records go through sender, which is normally
// the channel itself or a transform chain wrapping it.
func NewReaderRunner(reader plugin.ReaderTask, tc *plugin.TaskContext, ch *channel.Channel, sender plugin.RecordSender, comm *communication.Communication) *ReaderRunner {
	if sender == nil {
		sender = ch
	}
	return &ReaderRunner{
		runner:  newRunner("reader", reader, tc, comm),
		reader:  reader,
		channel: ch,
		sender:  sender,
	}
}

func (r *ReaderRunner) Start(ctx context.Context) {
	r.start(ctx, r.run)
}

// On success the channel is closed to signal end-of-stream. On failure
// the channel is shut down so that the writer stops too.
func (r *ReaderRunner) run(ctx context.Context) {
	start := time.Now()
	r.logger.Debugf("run - reader - task: %d, attempt: %d", r.tc.TaskID, r.tc.Attempt)

	err := r.lifecycle(ctx, func(ctx context.Context) error {
		return r.reader.StartRead(ctx, r.sender)
	})
	if err != nil {
		r.fail(err)
		r.channel.Shutdown()
		return
	}

	r.channel.Close()
	r.logger.Debugf("end - reader - task: %d, elapsed: %v", r.tc.TaskID, r.elapsed(start))
}
