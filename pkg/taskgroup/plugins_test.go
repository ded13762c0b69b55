package taskgroup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/srand/jolt/datasync/pkg/element"
	"github.com/srand/jolt/datasync/pkg/plugin"
)

// Shared bookkeeping of the fake plugins of one test.
type recorder struct {
	sync.Mutex
	active    int
	maxActive int
	attempts  map[int]int
	received  map[int]int
	started   map[int][]time.Time
	failedAt  map[int][]time.Time
}

func newRecorder() *recorder {
	return &recorder{
		attempts: map[int]int{},
		received: map[int]int{},
		started:  map[int][]time.Time{},
		failedAt: map[int][]time.Time{},
	}
}

func (r *recorder) enter(tc *plugin.TaskContext) {
	r.Lock()
	defer r.Unlock()
	r.active++
	r.maxActive = max(r.maxActive, r.active)
	r.attempts[tc.TaskID] = max(r.attempts[tc.TaskID], tc.Attempt)
	r.started[tc.TaskID] = append(r.started[tc.TaskID], time.Now())
}

func (r *recorder) leave(tc *plugin.TaskContext, received int, failed bool) {
	r.Lock()
	defer r.Unlock()
	r.active--
	r.received[tc.TaskID] = received
	if failed {
		r.failedAt[tc.TaskID] = append(r.failedAt[tc.TaskID], time.Now())
	}
}

func (r *recorder) Attempts(taskID int) int {
	r.Lock()
	defer r.Unlock()
	return r.attempts[taskID]
}

func (r *recorder) MaxActive() int {
	r.Lock()
	defer r.Unlock()
	return r.maxActive
}

func (r *recorder) Received(taskID int) int {
	r.Lock()
	defer r.Unlock()
	return r.received[taskID]
}

// Emits "count" records, then sleeps "delay" and fails if "fail" is set.
type sequenceReader struct {
	plugin.BaseTask
	params struct {
		Count int           `mapstructure:"count"`
		Delay time.Duration `mapstructure:"delay"`
		Fail  bool          `mapstructure:"fail"`
	}
}

func (r *sequenceReader) Init(tc *plugin.TaskContext) error {
	r.BaseTask.Init(tc)
	return tc.Param.Decode(&r.params)
}

func (r *sequenceReader) StartRead(ctx context.Context, sender plugin.RecordSender) error {
	for i := 0; i < r.params.Count; i++ {
		record := element.NewRecord(element.NewLongColumn(int64(i)), element.NewStringColumn(fmt.Sprint("row-", i)))
		if err := sender.Send(ctx, record); err != nil {
			return err
		}
	}
	if r.params.Delay > 0 {
		select {
		case <-time.After(r.params.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if r.params.Fail {
		return errors.New("source went away")
	}
	return nil
}

// Drains its input and fails on the attempts listed in "fail_attempts".
// With "block" it waits for cancellation instead of draining.
type recordingWriter struct {
	plugin.BaseTask
	recorder *recorder
	failover bool
	params   struct {
		FailAttempts []int `mapstructure:"fail_attempts"`
		Block        bool  `mapstructure:"block"`
	}
}

func (w *recordingWriter) Init(tc *plugin.TaskContext) error {
	w.BaseTask.Init(tc)
	return tc.Param.Decode(&w.params)
}

func (w *recordingWriter) SupportFailOver() bool {
	return w.failover
}

func (w *recordingWriter) StartWrite(ctx context.Context, receiver plugin.RecordReceiver) error {
	w.recorder.enter(w.TC)

	if w.params.Block {
		<-ctx.Done()
		w.recorder.leave(w.TC, 0, true)
		return ctx.Err()
	}

	received := 0
	for {
		_, err := receiver.Receive(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			w.recorder.leave(w.TC, received, true)
			return err
		}
		received++
		// Hold the slot a little so that overlapping tasks are observable.
		time.Sleep(time.Millisecond)
	}

	for _, attempt := range w.params.FailAttempts {
		if attempt == w.TC.Attempt {
			w.recorder.leave(w.TC, received, true)
			return fmt.Errorf("attempt %d: connection reset", attempt)
		}
	}

	w.recorder.leave(w.TC, received, false)
	return nil
}

// Ignores cancellation until released.
type stuckWriter struct {
	plugin.BaseTask
	release chan struct{}
}

func (w *stuckWriter) SupportFailOver() bool {
	return true
}

func (w *stuckWriter) StartWrite(ctx context.Context, receiver plugin.RecordReceiver) error {
	<-w.release
	return errors.New("released")
}

func newTestLoader(rec *recorder, failover bool) *plugin.Registry {
	registry := plugin.NewRegistry()
	registry.RegisterReader("sequencereader", func() plugin.ReaderTask { return &sequenceReader{} })
	registry.RegisterWriter("recordingwriter", func() plugin.WriterTask {
		return &recordingWriter{recorder: rec, failover: failover}
	})
	return registry
}
