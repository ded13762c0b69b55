package communication

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStateIsFinished(t *testing.T) {
	assert.False(t, Running.IsFinished())
	assert.True(t, Succeeded.IsFinished())
	assert.True(t, Failed.IsFinished())
	assert.True(t, Killed.IsFinished())
	assert.Equal(t, "KILLED", Killed.String())
}

func TestMergeStatePrecedence(t *testing.T) {
	assert.Equal(t, Succeeded, mergeState(Succeeded, Succeeded))
	assert.Equal(t, Running, mergeState(Succeeded, Running))
	assert.Equal(t, Failed, mergeState(Running, Failed))
	assert.Equal(t, Killed, mergeState(Killed, Failed))
	assert.Equal(t, Killed, mergeState(Failed, Killed))
}

func TestTerminalStateIsSticky(t *testing.T) {
	c := New()
	c.Fail(errors.New("first"))
	c.Fail(errors.New("second"))
	c.SetState(Succeeded)
	c.SetState(Running)

	assert.Equal(t, Failed, c.State())
	assert.EqualError(t, c.Cause(), "first")

	c.Kill(errors.New("hung"))
	assert.Equal(t, Killed, c.State())
	assert.EqualError(t, c.Cause(), "first")
}

func TestReset(t *testing.T) {
	c := New()
	c.IncreaseCounter(ReadSucceedRecords, 100)
	c.Fail(errors.New("boom"))

	c.Reset()

	assert.Equal(t, Running, c.State())
	assert.Equal(t, int64(0), c.Counter(ReadSucceedRecords))
	assert.NoError(t, c.Cause())
}

func TestCloneIsIndependent(t *testing.T) {
	c := New()
	c.IncreaseCounter(ReadSucceedBytes, 10)

	snapshot := c.Clone()
	c.IncreaseCounter(ReadSucceedBytes, 5)

	assert.Equal(t, int64(10), snapshot.Counter(ReadSucceedBytes))
	assert.Equal(t, int64(15), c.Counter(ReadSucceedBytes))
}

func TestConcurrentCounters(t *testing.T) {
	c := New()
	wg := sync.WaitGroup{}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.IncreaseCounter(WriteReceivedRecords, 1)
				_ = c.Clone()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(8000), c.Counter(WriteReceivedRecords))
}

func TestTotals(t *testing.T) {
	c := New()
	c.IncreaseCounter(ReadSucceedRecords, 10)
	c.IncreaseCounter(ReadFailedRecords, 2)
	c.IncreaseCounter(ReadSucceedBytes, 100)
	c.IncreaseCounter(ReadFailedBytes, 20)
	c.IncreaseCounter(WriteFailedRecords, 1)
	c.IncreaseCounter(TransformerFailedRecords, 3)

	assert.Equal(t, int64(12), c.TotalReadRecords())
	assert.Equal(t, int64(120), c.TotalReadBytes())
	assert.Equal(t, int64(3), c.TotalErrorRecords())
}

func TestTimestampAdvances(t *testing.T) {
	c := New()
	before := c.Timestamp()
	time.Sleep(2 * time.Millisecond)
	c.IncreaseCounter(ReadSucceedRecords, 1)
	assert.True(t, c.Timestamp().After(before))
}

func TestFailAfterSuccessIsIgnored(t *testing.T) {
	c := New()
	c.SetState(Succeeded)
	c.Fail(errors.New("late"))

	assert.Equal(t, Succeeded, c.State())
	assert.NoError(t, c.Cause())
}

func TestForceState(t *testing.T) {
	c := New()
	c.SetState(Succeeded)
	c.ForceState(Failed)
	assert.Equal(t, Failed, c.State())
}
