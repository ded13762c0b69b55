package monitor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/srand/jolt/datasync/pkg/communication"
	"github.com/srand/jolt/datasync/pkg/log"
)

var ErrTaskHung = errors.New("task hung")

const DefaultExpire = 48 * time.Hour

type watchedTask struct {
	comm       *communication.Communication
	progress   int64
	lastChange time.Time
}

// Local watchdog. A task whose record counters have not moved for the
// expiry period is killed, which aborts its group.
type Watchdog struct {
	sync.Mutex
	expire time.Duration
	tasks  map[int]*watchedTask
	now    func() time.Time
	logger *log.Logger
}

func NewWatchdog(expire time.Duration, logger *log.Logger) *Watchdog {
	if expire <= 0 {
		expire = DefaultExpire
	}
	if logger == nil {
		logger = log.WithPrefix("watchdog")
	}
	return &Watchdog{
		expire: expire,
		tasks:  map[int]*watchedTask{},
		now:    time.Now,
		logger: logger,
	}
}

func progressOf(comm *communication.Communication) int64 {
	return comm.TotalReadRecords() + comm.Counter(communication.WriteReceivedRecords)
}

func (w *Watchdog) Register(taskID int, comm *communication.Communication) {
	w.Lock()
	defer w.Unlock()
	w.tasks[taskID] = &watchedTask{
		comm:       comm,
		progress:   progressOf(comm),
		lastChange: w.now(),
	}
}

func (w *Watchdog) Report(taskID int, comm *communication.Communication) {
	w.Lock()
	defer w.Unlock()

	task, ok := w.tasks[taskID]
	if !ok || task.comm != comm {
		task = &watchedTask{comm: comm, progress: progressOf(comm), lastChange: w.now()}
		w.tasks[taskID] = task
		return
	}

	now := w.now()
	progress := progressOf(comm)
	if progress != task.progress {
		task.progress = progress
		task.lastChange = now
		return
	}

	idle := now.Sub(task.lastChange)
	if idle > w.expire && !comm.IsFinished() {
		w.logger.Errorf("hung - task - id: %d, idle: %v", taskID, idle.Round(time.Second))
		comm.Kill(fmt.Errorf("%w: task %d made no progress for %v", ErrTaskHung, taskID, idle.Round(time.Second)))
	}
}

func (w *Watchdog) Remove(taskID int) {
	w.Lock()
	defer w.Unlock()
	delete(w.tasks, taskID)
}

// Number of tasks being watched.
func (w *Watchdog) Len() int {
	w.Lock()
	defer w.Unlock()
	return len(w.tasks)
}
