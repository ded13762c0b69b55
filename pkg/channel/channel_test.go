package channel

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/srand/jolt/datasync/pkg/communication"
	"github.com/srand/jolt/datasync/pkg/element"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(s string) *element.Record {
	return element.NewRecord(element.NewStringColumn(s))
}

func TestSendReceiveFIFO(t *testing.T) {
	comm := communication.New()
	ch := New(Options{Capacity: 4}, comm)
	ctx := context.Background()

	require.NoError(t, ch.Send(ctx, record("a")))
	require.NoError(t, ch.Send(ctx, record("bc")))
	assert.Equal(t, 2, ch.Size())

	r, err := ch.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", r.Get(0).String())

	r, err = ch.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bc", r.Get(0).String())

	assert.Equal(t, int64(2), comm.Counter(communication.ReadSucceedRecords))
	assert.Equal(t, int64(3), comm.Counter(communication.ReadSucceedBytes))
	assert.Equal(t, int64(2), comm.Counter(communication.WriteReceivedRecords))
	assert.Equal(t, int64(3), comm.Counter(communication.WriteReceivedBytes))
}

func TestCloseDrainsThenEOF(t *testing.T) {
	ch := New(Options{Capacity: 4}, nil)
	ctx := context.Background()

	require.NoError(t, ch.Send(ctx, record("a")))
	ch.Close()
	ch.Close()
	assert.True(t, ch.IsClosed())

	assert.ErrorIs(t, ch.Send(ctx, record("b")), ErrClosed)

	_, err := ch.Receive(ctx)
	assert.NoError(t, err)

	_, err = ch.Receive(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestBackpressure(t *testing.T) {
	comm := communication.New()
	ch := New(Options{Capacity: 2}, comm)
	ctx := context.Background()

	require.NoError(t, ch.Send(ctx, record("1")))
	require.NoError(t, ch.Send(ctx, record("2")))

	sent := make(chan error, 1)
	go func() {
		sent <- ch.Send(ctx, record("3"))
	}()

	select {
	case <-sent:
		t.Fatal("send did not block on a full channel")
	case <-time.After(50 * time.Millisecond):
	}

	_, err := ch.Receive(ctx)
	require.NoError(t, err)

	select {
	case err := <-sent:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("send did not resume after the channel was drained")
	}

	assert.Greater(t, comm.Counter(communication.WaitWriterTime), int64(0))
}

func TestShutdownWakesBlockedReceive(t *testing.T) {
	ch := New(Options{Capacity: 1}, nil)

	received := make(chan error, 1)
	go func() {
		_, err := ch.Receive(context.Background())
		received <- err
	}()

	time.Sleep(20 * time.Millisecond)
	ch.Shutdown()
	ch.Shutdown()

	select {
	case err := <-received:
		assert.ErrorIs(t, err, ErrShutdown)
	case <-time.After(time.Second):
		t.Fatal("receive not woken by shutdown")
	}

	assert.True(t, ch.IsShutdown())
	assert.ErrorIs(t, ch.Send(context.Background(), record("x")), ErrShutdown)
}

func TestShutdownWakesBlockedSend(t *testing.T) {
	ch := New(Options{Capacity: 1}, nil)
	require.NoError(t, ch.Send(context.Background(), record("1")))

	sent := make(chan error, 1)
	go func() {
		sent <- ch.Send(context.Background(), record("2"))
	}()

	time.Sleep(20 * time.Millisecond)
	ch.Shutdown()

	select {
	case err := <-sent:
		assert.ErrorIs(t, err, ErrShutdown)
	case <-time.After(time.Second):
		t.Fatal("send not woken by shutdown")
	}
}

func TestContextCancel(t *testing.T) {
	ch := New(Options{Capacity: 1}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := ch.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRecordSpeedLimit(t *testing.T) {
	ch := New(Options{Capacity: 100, RecordSpeed: 20}, nil)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 30; i++ {
		require.NoError(t, ch.Send(ctx, record("r")))
	}

	// 20 records of burst, then 10 more at 20 per second.
	assert.GreaterOrEqual(t, time.Since(start), 400*time.Millisecond)
}

func TestByteSpeedLimitAbortedByShutdown(t *testing.T) {
	ch := New(Options{Capacity: 100, ByteSpeed: 1}, nil)
	ctx := context.Background()

	require.NoError(t, ch.Send(ctx, record("a")))

	sent := make(chan error, 1)
	go func() {
		sent <- ch.Send(ctx, record("b"))
	}()

	time.Sleep(20 * time.Millisecond)
	ch.Shutdown()

	select {
	case err := <-sent:
		assert.ErrorIs(t, err, ErrShutdown)
	case <-time.After(time.Second):
		t.Fatal("throttled send not woken by shutdown")
	}
}
