package monitor

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/srand/jolt/datasync/pkg/communication"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestEventRoundTrip(t *testing.T) {
	comm := communication.New()
	comm.IncreaseCounter(communication.ReadSucceedRecords, 42)
	comm.Fail(errors.New("disk full"))

	ev := newEvent(EventReport, 7, comm)
	ev.Node = "node"
	ev.JobID = 3
	ev.TaskGroupID = 2

	payload, err := ev.ToStruct()
	require.NoError(t, err)

	decoded, err := EventFromStruct(payload)
	require.NoError(t, err)
	assert.Equal(t, EventReport, decoded.Type)
	assert.Equal(t, "node", decoded.Node)
	assert.Equal(t, int64(3), decoded.JobID)
	assert.Equal(t, 2, decoded.TaskGroupID)
	assert.Equal(t, 7, decoded.TaskID)
	assert.Equal(t, "FAILED", decoded.State)
	assert.Equal(t, "disk full", decoded.Cause)
	assert.Equal(t, int64(42), decoded.Counters[communication.ReadSucceedRecords])
	assert.True(t, ev.Timestamp.Equal(decoded.Timestamp))
}

func TestEventFromStructRejectsUnknownType(t *testing.T) {
	payload, err := structpb.NewStruct(map[string]any{"type": "explode"})
	require.NoError(t, err)
	_, err = EventFromStruct(payload)
	assert.Error(t, err)
}

type GrpcMonitorTest struct {
	suite.Suite
	listener *bufconn.Listener
	server   *grpc.Server
	service  *watchdogService
	monitor  *GrpcMonitor
}

func (s *GrpcMonitorTest) SetupTest() {
	s.listener = bufconn.Listen(1024 * 1024)
	s.server = grpc.NewServer()
	s.service = NewWatchdogService()
	RegisterWatchdogServer(s.server, s.service)
	go s.server.Serve(s.listener)

	dialer := func(ctx context.Context, _ string) (net.Conn, error) {
		return s.listener.DialContext(ctx)
	}

	var err error
	s.monitor, err = NewGrpcMonitor("passthrough:///bufnet", nil,
		Identity{RunID: "run", JobID: 1, TaskGroupID: 2},
		grpc.WithContextDialer(dialer))
	s.Require().NoError(err)
}

func (s *GrpcMonitorTest) TearDownTest() {
	s.monitor.Close()
	s.server.Stop()
}

func (s *GrpcMonitorTest) nextEvent() *Event {
	select {
	case ev := <-s.service.Events():
		return ev
	case <-time.After(5 * time.Second):
		s.FailNow("no event received")
	}
	return nil
}

func (s *GrpcMonitorTest) TestForwardsLifecycle() {
	comm := communication.New()

	s.monitor.Register(5, comm)
	ev := s.nextEvent()
	s.Equal(EventRegister, ev.Type)
	s.Equal(5, ev.TaskID)
	s.Equal("run", ev.RunID)
	s.Equal(2, ev.TaskGroupID)
	s.Len(s.service.Tasks(), 1)

	comm.IncreaseCounter(communication.ReadSucceedRecords, 10)
	s.monitor.Report(5, comm)
	ev = s.nextEvent()
	s.Equal(EventReport, ev.Type)
	s.Equal(int64(10), s.service.Tasks()[0].Records)

	s.monitor.Remove(5)
	ev = s.nextEvent()
	s.Equal(EventRemove, ev.Type)
	s.Len(s.service.Tasks(), 0)
}

func (s *GrpcMonitorTest) TestCloseDropsLateEvents() {
	s.NoError(s.monitor.Close())
	s.NoError(s.monitor.Close())

	s.monitor.Report(1, communication.New())
	s.Equal(int64(1), s.monitor.Dropped())
}

func TestGrpcMonitor(t *testing.T) {
	suite.Run(t, new(GrpcMonitorTest))
}
