package plugin

import (
	"sync/atomic"

	"github.com/srand/jolt/datasync/pkg/communication"
	"github.com/srand/jolt/datasync/pkg/element"
	"github.com/srand/jolt/datasync/pkg/log"
	"github.com/srand/jolt/datasync/pkg/utils"
)

// Receives records that a plugin or transformer rejected.
type Collector interface {
	CollectDirtyRecord(record *element.Record, err error)
}

// Which side of the task a collector counts for.
type Side int

const (
	ReaderSide Side = iota
	WriterSide
)

// Number of dirty records logged as warnings before switching to debug.
const dirtyRecordWarnLimit = 10

type dirtyRecordCollector struct {
	comm   *communication.Communication
	side   Side
	logger *log.Logger
	count  atomic.Int64
}

// Returns a collector counting dirty records in comm.
func NewCollector(comm *communication.Communication, side Side, logger *log.Logger) Collector {
	if logger == nil {
		logger = log.WithPrefix("dirty")
	}
	return &dirtyRecordCollector{comm: comm, side: side, logger: logger}
}

func (c *dirtyRecordCollector) CollectDirtyRecord(record *element.Record, err error) {
	var size int64
	if record != nil {
		size = record.ByteSize()
	}

	switch c.side {
	case ReaderSide:
		c.comm.IncreaseCounter(communication.ReadFailedRecords, 1)
		c.comm.IncreaseCounter(communication.ReadFailedBytes, size)
	case WriterSide:
		c.comm.IncreaseCounter(communication.WriteFailedRecords, 1)
		c.comm.IncreaseCounter(communication.WriteFailedBytes, size)
	}

	n := c.count.Add(1)
	if n <= dirtyRecordWarnLimit {
		c.logger.Warnf("dirty - record - n: %d, record: %v, error: %v", n, record, err)
	} else {
		c.logger.Debugf("dirty - record - n: %d, record: %v, error: %v", n, record, err)
	}

	if details, ok := utils.ErrorDetails(err); ok {
		c.logger.Debug("dirty - record - details:", details)
	}
}
