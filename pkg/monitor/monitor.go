// Package monitor connects running tasks to a watchdog.
package monitor

import (
	"github.com/srand/jolt/datasync/pkg/communication"
)

// Watchdog hooks called by the task group scheduler.
type Monitor interface {
	// A task attempt was started.
	Register(taskID int, comm *communication.Communication)

	// Periodic liveness report for a running task.
	Report(taskID int, comm *communication.Communication)

	// The task finished, successfully or not.
	Remove(taskID int)
}

type nopMonitor struct{}

func (nopMonitor) Register(int, *communication.Communication) {}
func (nopMonitor) Report(int, *communication.Communication)   {}
func (nopMonitor) Remove(int)                                 {}

// A monitor that ignores all events.
func Nop() Monitor {
	return nopMonitor{}
}

type multiMonitor []Monitor

// Returns a monitor that forwards every event to all of monitors.
func Multi(monitors ...Monitor) Monitor {
	out := multiMonitor{}
	for _, m := range monitors {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

func (mm multiMonitor) Register(taskID int, comm *communication.Communication) {
	for _, m := range mm {
		m.Register(taskID, comm)
	}
}

func (mm multiMonitor) Report(taskID int, comm *communication.Communication) {
	for _, m := range mm {
		m.Report(taskID, comm)
	}
}

func (mm multiMonitor) Remove(taskID int) {
	for _, m := range mm {
		m.Remove(taskID)
	}
}
