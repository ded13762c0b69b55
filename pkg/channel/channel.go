// Package channel implements the bounded record queue between the reader
// and the writer of one task.
package channel

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/srand/jolt/datasync/pkg/communication"
	"github.com/srand/jolt/datasync/pkg/element"
	"golang.org/x/time/rate"
)

var (
	// Returned by blocked or subsequent calls once the channel is shut down.
	ErrShutdown = errors.New("channel shut down")

	// Returned when sending after end-of-stream was signalled.
	ErrClosed = errors.New("channel closed")
)

const DefaultCapacity = 512

type Options struct {
	// Number of records buffered before Send blocks.
	Capacity int

	// Throughput limits, zero means unlimited.
	ByteSpeed   int64
	RecordSpeed int64
}

// A bounded FIFO with exactly one producer and one consumer.
//
// Send blocks while the queue is full and Receive blocks while it is empty.
// The producer calls Close to signal end-of-stream, after which Receive
// drains the remaining records and then returns io.EOF. Shutdown aborts
// both sides: blocked and subsequent calls return ErrShutdown.
type Channel struct {
	records chan *element.Record
	comm    *communication.Communication

	// Cancelled on shutdown
	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	closeMu   sync.RWMutex
	closed    bool

	byteLimiter   *rate.Limiter
	recordLimiter *rate.Limiter
}

// Creates a channel bound to comm. Every transferred record is counted
// in comm.
func New(opts Options, comm *communication.Communication) *Channel {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if comm == nil {
		comm = communication.New()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Channel{
		records: make(chan *element.Record, opts.Capacity),
		comm:    comm,
		ctx:     ctx,
		cancel:  cancel,
	}

	if opts.ByteSpeed > 0 {
		c.byteLimiter = rate.NewLimiter(rate.Limit(opts.ByteSpeed), int(opts.ByteSpeed))
	}
	if opts.RecordSpeed > 0 {
		c.recordLimiter = rate.NewLimiter(rate.Limit(opts.RecordSpeed), int(opts.RecordSpeed))
	}

	return c
}

func (c *Channel) Communication() *communication.Communication {
	return c.comm
}

// Queues a record, blocking while the channel is full.
func (c *Channel) Send(ctx context.Context, record *element.Record) error {
	if c.IsShutdown() {
		return ErrShutdown
	}

	if err := c.throttle(ctx, record); err != nil {
		return err
	}

	c.closeMu.RLock()
	defer c.closeMu.RUnlock()

	if c.closed {
		return ErrClosed
	}

	select {
	case c.records <- record:
	default:
		start := time.Now()
		select {
		case c.records <- record:
		case <-c.ctx.Done():
			return ErrShutdown
		case <-ctx.Done():
			return ctx.Err()
		}
		c.comm.IncreaseCounter(communication.WaitWriterTime, int64(time.Since(start)))
	}

	c.comm.IncreaseCounter(communication.ReadSucceedRecords, 1)
	c.comm.IncreaseCounter(communication.ReadSucceedBytes, record.ByteSize())
	return nil
}

// Dequeues a record, blocking while the channel is empty. Returns io.EOF
// once the producer closed the channel and all records were received.
func (c *Channel) Receive(ctx context.Context) (*element.Record, error) {
	if c.IsShutdown() {
		return nil, ErrShutdown
	}

	var record *element.Record
	var ok bool

	select {
	case record, ok = <-c.records:
	default:
		start := time.Now()
		select {
		case record, ok = <-c.records:
		case <-c.ctx.Done():
			return nil, ErrShutdown
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		c.comm.IncreaseCounter(communication.WaitReaderTime, int64(time.Since(start)))
	}

	if !ok {
		return nil, io.EOF
	}

	c.comm.IncreaseCounter(communication.WriteReceivedRecords, 1)
	c.comm.IncreaseCounter(communication.WriteReceivedBytes, record.ByteSize())
	return record, nil
}

// Signals end-of-stream. Only the producer may call it.
func (c *Channel) Close() {
	c.closeOnce.Do(func() {
		c.closeMu.Lock()
		defer c.closeMu.Unlock()
		c.closed = true
		close(c.records)
	})
}

func (c *Channel) IsClosed() bool {
	c.closeMu.RLock()
	defer c.closeMu.RUnlock()
	return c.closed
}

// Aborts the transfer and wakes any blocked Send or Receive. Idempotent.
func (c *Channel) Shutdown() {
	c.cancel()
}

func (c *Channel) IsShutdown() bool {
	return c.ctx.Err() != nil
}

// Done is closed when the channel is shut down.
func (c *Channel) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Number of queued records.
func (c *Channel) Size() int {
	return len(c.records)
}

func (c *Channel) Capacity() int {
	return cap(c.records)
}

// Waits for the rate limiters, if any. A shutdown aborts the wait.
func (c *Channel) throttle(ctx context.Context, record *element.Record) error {
	if c.byteLimiter == nil && c.recordLimiter == nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	if c.recordLimiter != nil {
		if err := c.recordLimiter.Wait(ctx); err != nil {
			return c.waitError(err)
		}
	}

	if c.byteLimiter != nil {
		n := int(record.ByteSize())
		if n > c.byteLimiter.Burst() {
			n = c.byteLimiter.Burst()
		}
		if n > 0 {
			if err := c.byteLimiter.WaitN(ctx, n); err != nil {
				return c.waitError(err)
			}
		}
	}

	return nil
}

func (c *Channel) waitError(err error) error {
	if c.IsShutdown() {
		return ErrShutdown
	}
	return err
}
