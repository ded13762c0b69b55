package monitor

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/srand/jolt/datasync/pkg/communication"
	"github.com/srand/jolt/datasync/pkg/log"
	"github.com/srand/jolt/datasync/pkg/utils"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
)

const defaultCallTimeout = 5 * time.Second

// Identifies the group whose tasks are forwarded.
type Identity struct {
	RunID       string
	JobID       int64
	TaskGroupID int
}

// Forwards monitor events to a remote watchdog. Events are queued and sent
// by a background goroutine so that the scheduler never waits on the
// network. When the queue is full, events are dropped.
type GrpcMonitor struct {
	conn     *grpc.ClientConn
	identity Identity
	node     string
	timeout  time.Duration
	events   chan *Event
	dropped  atomic.Int64
	done     chan struct{}

	mu     sync.RWMutex
	closed bool
}

// Returns a stable, non-reversible id of this machine, or the hostname.
func NodeID() string {
	if id, err := machineid.ProtectedID("datasync"); err == nil {
		return id
	}
	if hostname, err := os.Hostname(); err == nil {
		return hostname
	}
	return "unknown"
}

func NewGrpcMonitor(target string, opts *utils.GRPCOptions, identity Identity, extra ...grpc.DialOption) (*GrpcMonitor, error) {
	if opts == nil {
		opts = &utils.GRPCOptions{}
	}

	conn, err := grpc.NewClient(target, append(opts.ToDialOptions(), extra...)...)
	if err != nil {
		return nil, err
	}

	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}

	m := &GrpcMonitor{
		conn:     conn,
		identity: identity,
		node:     NodeID(),
		timeout:  timeout,
		events:   make(chan *Event, 256),
		done:     make(chan struct{}),
	}

	go m.run()

	log.Debugf("new - monitor - target: %s, node: %s", target, m.node)
	return m, nil
}

func (m *GrpcMonitor) Register(taskID int, comm *communication.Communication) {
	m.enqueue(newEvent(EventRegister, taskID, comm))
}

func (m *GrpcMonitor) Report(taskID int, comm *communication.Communication) {
	m.enqueue(newEvent(EventReport, taskID, comm))
}

func (m *GrpcMonitor) Remove(taskID int) {
	m.enqueue(newEvent(EventRemove, taskID, nil))
}

func (m *GrpcMonitor) enqueue(ev *Event) {
	ev.Node = m.node
	ev.RunID = m.identity.RunID
	ev.JobID = m.identity.JobID
	ev.TaskGroupID = m.identity.TaskGroupID

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		m.dropped.Add(1)
		return
	}

	select {
	case m.events <- ev:
	default:
		n := m.dropped.Add(1)
		log.Tracef("drop - monitor - event: %s, task: %d, dropped: %d", ev.Type, ev.TaskID, n)
	}
}

func (m *GrpcMonitor) run() {
	defer close(m.done)

	for ev := range m.events {
		payload, err := ev.ToStruct()
		if err != nil {
			log.Debug("err - monitor - encode:", err)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		err = m.conn.Invoke(ctx, watchdogReportMethod, payload, &emptypb.Empty{})
		cancel()
		if err != nil {
			log.Debugf("err - monitor - event: %s, task: %d, error: %v", ev.Type, ev.TaskID, err)
		}
	}
}

// Number of events that were not queued.
func (m *GrpcMonitor) Dropped() int64 {
	return m.dropped.Load()
}

// Flushes queued events and closes the connection.
func (m *GrpcMonitor) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.events)
	m.mu.Unlock()

	<-m.done
	return m.conn.Close()
}
