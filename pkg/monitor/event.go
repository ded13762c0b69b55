package monitor

import (
	"fmt"
	"time"

	"github.com/srand/jolt/datasync/pkg/communication"
	"google.golang.org/protobuf/types/known/structpb"
)

type EventType string

const (
	EventRegister EventType = "register"
	EventReport   EventType = "report"
	EventRemove   EventType = "remove"
)

// A watchdog event as sent over the wire.
type Event struct {
	Type        EventType
	Node        string
	RunID       string
	JobID       int64
	TaskGroupID int
	TaskID      int
	State       string
	Cause       string
	Counters    map[string]int64
	Timestamp   time.Time
}

func newEvent(t EventType, taskID int, comm *communication.Communication) *Event {
	ev := &Event{
		Type:      t,
		TaskID:    taskID,
		Timestamp: time.Now(),
	}
	if comm != nil {
		ev.State = comm.State().String()
		ev.Counters = comm.Counters()
		if cause := comm.Cause(); cause != nil {
			ev.Cause = cause.Error()
		}
	}
	return ev
}

func (e *Event) ToStruct() (*structpb.Struct, error) {
	counters := map[string]any{}
	for key, value := range e.Counters {
		counters[key] = value
	}

	return structpb.NewStruct(map[string]any{
		"type":          string(e.Type),
		"node":          e.Node,
		"run_id":        e.RunID,
		"job_id":        e.JobID,
		"task_group_id": e.TaskGroupID,
		"task_id":       e.TaskID,
		"state":         e.State,
		"cause":         e.Cause,
		"counters":      counters,
		"timestamp":     e.Timestamp.UTC().Format(time.RFC3339Nano),
	})
}

func EventFromStruct(s *structpb.Struct) (*Event, error) {
	fields := s.GetFields()

	str := func(key string) string {
		return fields[key].GetStringValue()
	}
	num := func(key string) int64 {
		return int64(fields[key].GetNumberValue())
	}

	ev := &Event{
		Type:        EventType(str("type")),
		Node:        str("node"),
		RunID:       str("run_id"),
		JobID:       num("job_id"),
		TaskGroupID: int(num("task_group_id")),
		TaskID:      int(num("task_id")),
		State:       str("state"),
		Cause:       str("cause"),
		Counters:    map[string]int64{},
	}

	switch ev.Type {
	case EventRegister, EventReport, EventRemove:
	default:
		return nil, fmt.Errorf("unknown event type %q", ev.Type)
	}

	for key, value := range fields["counters"].GetStructValue().GetFields() {
		ev.Counters[key] = int64(value.GetNumberValue())
	}

	if ts := str("timestamp"); ts != "" {
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp %q: %w", ts, err)
		}
		ev.Timestamp = parsed
	}

	return ev, nil
}
