package communication

import "fmt"

// Task or group state.
type State int

const (
	Running State = iota
	Succeeded
	Failed
	Killed
)

func (s State) String() string {
	switch s {
	case Running:
		return "RUNNING"
	case Succeeded:
		return "SUCCEEDED"
	case Failed:
		return "FAILED"
	case Killed:
		return "KILLED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// True for terminal states.
func (s State) IsFinished() bool {
	return s == Succeeded || s == Failed || s == Killed
}

// Precedence when merging states: KILLED > FAILED > RUNNING > SUCCEEDED.
// A merged state is only SUCCEEDED when every input is.
func (s State) rank() int {
	switch s {
	case Succeeded:
		return 0
	case Running:
		return 1
	case Failed:
		return 2
	case Killed:
		return 3
	}
	return -1
}

func mergeState(a, b State) State {
	if b.rank() > a.rank() {
		return b
	}
	return a
}
