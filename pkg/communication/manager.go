package communication

import (
	"slices"
	"sync"
	"time"

	"github.com/srand/jolt/datasync/pkg/utils"
)

// Registry of task communications for one task group. The group owns it
// and closes it when the group is torn down.
type Manager struct {
	sync.RWMutex

	// Task id to communication
	comms map[int]*Communication

	// Last report, used for differencing
	last *Report

	reports *utils.Broadcast[*Report]
	closed  bool
}

func NewManager() *Manager {
	return &Manager{
		comms:   map[int]*Communication{},
		reports: utils.NewBroadcast[*Report](16),
	}
}

// Registers a fresh communication for each task id not yet known.
func (m *Manager) Register(taskIDs ...int) {
	m.Lock()
	defer m.Unlock()
	for _, id := range taskIDs {
		if _, ok := m.comms[id]; !ok {
			m.comms[id] = New()
		}
	}
}

// Returns the communication of a task, creating it if needed.
func (m *Manager) Get(taskID int) *Communication {
	m.Lock()
	defer m.Unlock()
	comm, ok := m.comms[taskID]
	if !ok {
		comm = New()
		m.comms[taskID] = comm
	}
	return comm
}

// Replaces the communication of a task with a fresh RUNNING record.
// Goroutines of a previous attempt keep the old record and can no longer
// affect the task's state.
func (m *Manager) Reset(taskID int) *Communication {
	m.Lock()
	defer m.Unlock()
	comm := New()
	m.comms[taskID] = comm
	return comm
}

// Registered task ids in ascending order.
func (m *Manager) TaskIDs() []int {
	m.RLock()
	defer m.RUnlock()
	ids := make([]int, 0, len(m.comms))
	for id := range m.comms {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Snapshots of all task communications.
func (m *Manager) Map() map[int]*Communication {
	m.RLock()
	defer m.RUnlock()
	out := make(map[int]*Communication, len(m.comms))
	for id, comm := range m.comms {
		out[id] = comm.Clone()
	}
	return out
}

// Aggregates all task communications into a group communication.
// Counters are summed, the state is merged by precedence and the cause is
// the first one found in task id order. The Stage counter holds the number
// of finished tasks.
func (m *Manager) Collect() *Communication {
	group := New()
	group.state = Succeeded

	var finished int64
	for _, id := range m.TaskIDs() {
		m.RLock()
		comm := m.comms[id]
		m.RUnlock()
		if comm == nil {
			continue
		}
		group.Merge(comm)
		if comm.IsFinished() {
			finished++
		}
	}

	group.SetCounter(Stage, finished)
	return group
}

// Merged state of all tasks.
func (m *Manager) CollectState() State {
	m.RLock()
	defer m.RUnlock()
	state := Succeeded
	for _, comm := range m.comms {
		state = mergeState(state, comm.State())
	}
	return state
}

// Derives a report from a collected group snapshot by differencing it with
// the previous report, stores it and publishes it to subscribers.
func (m *Manager) Report(snapshot *Communication, final bool) *Report {
	m.Lock()
	report := NewReport(snapshot, m.last, len(m.comms), time.Now())
	report.Final = final
	m.last = report
	closed := m.closed
	m.Unlock()

	if !closed {
		m.reports.Send(report)
	}
	return report
}

// The most recent report, or nil.
func (m *Manager) LastReport() *Report {
	m.RLock()
	defer m.RUnlock()
	return m.last
}

// Subscribe to group reports. The consumer must be closed when done.
func (m *Manager) Subscribe() *utils.BroadcastConsumer[*Report] {
	return m.reports.NewConsumer()
}

// Closes all report subscriptions.
func (m *Manager) Close() {
	m.Lock()
	m.closed = true
	m.Unlock()
	m.reports.Close()
}
