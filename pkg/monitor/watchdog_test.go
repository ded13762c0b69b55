package monitor

import (
	"testing"
	"time"

	"github.com/srand/jolt/datasync/pkg/communication"
	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func newTestWatchdog(expire time.Duration) (*Watchdog, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	w := NewWatchdog(expire, nil)
	w.now = clock.Now
	return w, clock
}

func TestWatchdogKillsHungTask(t *testing.T) {
	w, clock := newTestWatchdog(time.Minute)
	comm := communication.New()

	w.Register(1, comm)
	clock.now = clock.now.Add(30 * time.Second)
	w.Report(1, comm)
	assert.Equal(t, communication.Running, comm.State())

	clock.now = clock.now.Add(31 * time.Second)
	w.Report(1, comm)
	assert.Equal(t, communication.Killed, comm.State())
	assert.ErrorIs(t, comm.Cause(), ErrTaskHung)
}

func TestWatchdogProgressResetsTimer(t *testing.T) {
	w, clock := newTestWatchdog(time.Minute)
	comm := communication.New()

	w.Register(1, comm)
	for i := 0; i < 5; i++ {
		clock.now = clock.now.Add(50 * time.Second)
		comm.IncreaseCounter(communication.ReadSucceedRecords, 1)
		w.Report(1, comm)
	}
	assert.Equal(t, communication.Running, comm.State())
}

func TestWatchdogIgnoresFinishedTasks(t *testing.T) {
	w, clock := newTestWatchdog(time.Minute)
	comm := communication.New()

	w.Register(1, comm)
	comm.SetState(communication.Succeeded)
	clock.now = clock.now.Add(time.Hour)
	w.Report(1, comm)
	assert.Equal(t, communication.Succeeded, comm.State())
}

func TestWatchdogNewAttemptRestartsTracking(t *testing.T) {
	w, clock := newTestWatchdog(time.Minute)
	old := communication.New()
	w.Register(1, old)

	clock.now = clock.now.Add(time.Hour)
	fresh := communication.New()
	w.Report(1, fresh)
	assert.Equal(t, communication.Running, fresh.State())

	w.Remove(1)
	assert.Equal(t, 0, w.Len())
}

type countingMonitor struct {
	registered, reported, removed int
}

func (m *countingMonitor) Register(int, *communication.Communication) { m.registered++ }
func (m *countingMonitor) Report(int, *communication.Communication)   { m.reported++ }
func (m *countingMonitor) Remove(int)                                 { m.removed++ }

func TestMulti(t *testing.T) {
	a, b := &countingMonitor{}, &countingMonitor{}
	m := Multi(a, nil, b)

	m.Register(1, communication.New())
	m.Report(1, communication.New())
	m.Report(1, communication.New())
	m.Remove(1)

	for _, c := range []*countingMonitor{a, b} {
		assert.Equal(t, 1, c.registered)
		assert.Equal(t, 2, c.reported)
		assert.Equal(t, 1, c.removed)
	}

	Nop().Register(1, nil)
	Nop().Report(1, nil)
	Nop().Remove(1)
}
