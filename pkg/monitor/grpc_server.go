package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/srand/jolt/datasync/pkg/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	watchdogServiceName  = "datasync.Watchdog"
	watchdogReportMethod = "/" + watchdogServiceName + "/Report"
)

// Server side of the remote watchdog.
type WatchdogServer interface {
	Report(ctx context.Context, event *structpb.Struct) (*emptypb.Empty, error)
}

func RegisterWatchdogServer(s grpc.ServiceRegistrar, srv WatchdogServer) {
	s.RegisterService(&watchdogServiceDesc, srv)
}

func watchdogReportHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(WatchdogServer).Report(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: watchdogReportMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(WatchdogServer).Report(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var watchdogServiceDesc = grpc.ServiceDesc{
	ServiceName: watchdogServiceName,
	HandlerType: (*WatchdogServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Report",
			Handler:    watchdogReportHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "datasync/watchdog",
}

// Last known status of a remote task.
type TaskStatus struct {
	Node        string
	RunID       string
	JobID       int64
	TaskGroupID int
	TaskID      int
	State       string
	Cause       string
	Records     int64
	Registered  time.Time
	LastSeen    time.Time
}

func (s TaskStatus) key() string {
	return fmt.Sprintf("%s/%s/%d/%d", s.Node, s.RunID, s.TaskGroupID, s.TaskID)
}

// A watchdog service that logs incoming events and tracks the tasks that
// are currently registered.
type watchdogService struct {
	sync.RWMutex
	tasks  map[string]*TaskStatus
	events chan *Event
}

func NewWatchdogService() *watchdogService {
	return &watchdogService{
		tasks:  map[string]*TaskStatus{},
		events: make(chan *Event, 64),
	}
}

func (s *watchdogService) Report(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	ev, err := EventFromStruct(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	task := TaskStatus{
		Node:        ev.Node,
		RunID:       ev.RunID,
		JobID:       ev.JobID,
		TaskGroupID: ev.TaskGroupID,
		TaskID:      ev.TaskID,
		State:       ev.State,
		Cause:       ev.Cause,
		Records:     ev.Counters["readSucceedRecords"] + ev.Counters["readFailedRecords"],
		LastSeen:    ev.Timestamp,
	}

	s.Lock()
	switch ev.Type {
	case EventRegister:
		task.Registered = ev.Timestamp
		s.tasks[task.key()] = &task
		log.Infof("reg - task - node: %s, group: %d, task: %d", ev.Node, ev.TaskGroupID, ev.TaskID)
	case EventReport:
		if prev, ok := s.tasks[task.key()]; ok {
			task.Registered = prev.Registered
		}
		s.tasks[task.key()] = &task
		log.Debugf("rep - task - node: %s, group: %d, task: %d, state: %s, records: %d", ev.Node, ev.TaskGroupID, ev.TaskID, ev.State, task.Records)
	case EventRemove:
		delete(s.tasks, task.key())
		log.Infof("rem - task - node: %s, group: %d, task: %d", ev.Node, ev.TaskGroupID, ev.TaskID)
	}
	s.Unlock()

	select {
	case s.events <- ev:
	default:
	}

	return &emptypb.Empty{}, nil
}

// Snapshot of the registered tasks.
func (s *watchdogService) Tasks() []TaskStatus {
	s.RLock()
	defer s.RUnlock()
	out := make([]TaskStatus, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *t)
	}
	return out
}

// Recently received events. Events are dropped when nobody reads them.
func (s *watchdogService) Events() <-chan *Event {
	return s.events
}
