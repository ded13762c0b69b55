package communication

import (
	"fmt"
	"time"

	"github.com/srand/jolt/datasync/pkg/utils"
)

// A point-in-time group snapshot with throughput derived from the
// previous report.
type Report struct {
	Communication *Communication
	Timestamp     time.Time

	// Bytes and records per second since the previous report
	ByteSpeed   int64
	RecordSpeed int64

	// Finished tasks in percent of all tasks
	Percentage float64

	TotalTasks    int
	FinishedTasks int64

	// Set on the report emitted when the group terminates
	Final bool
}

// Builds a report from the current cumulative snapshot. Speeds are the
// difference to prev divided by the elapsed wall time. Without a previous
// report, no speed is derived.
func NewReport(now *Communication, prev *Report, totalTasks int, ts time.Time) *Report {
	report := &Report{
		Communication: now.Clone(),
		Timestamp:     ts,
		TotalTasks:    totalTasks,
		FinishedTasks: now.Counter(Stage),
	}

	if prev != nil {
		elapsed := ts.Sub(prev.Timestamp)
		if elapsed > 0 {
			bytes := now.TotalReadBytes() - prev.Communication.TotalReadBytes()
			records := now.TotalReadRecords() - prev.Communication.TotalReadRecords()
			report.ByteSpeed = int64(float64(bytes) / elapsed.Seconds())
			report.RecordSpeed = int64(float64(records) / elapsed.Seconds())
		}
	}

	if totalTasks > 0 {
		report.Percentage = float64(report.FinishedTasks) * 100 / float64(totalTasks)
	}

	report.Communication.SetCounter(ByteSpeed, report.ByteSpeed)
	report.Communication.SetCounter(RecordSpeed, report.RecordSpeed)
	return report
}

func (r *Report) State() State {
	return r.Communication.State()
}

func (r *Report) String() string {
	c := r.Communication
	return fmt.Sprintf(
		"state: %s, records: %d, bytes: %s, speed: %s, %d records/s, errors: %d, filtered: %d, wait writer: %s, wait reader: %s, progress: %.2f%%",
		c.State(),
		c.TotalReadRecords(),
		utils.HumanByteSize(c.TotalReadBytes()),
		utils.HumanByteRate(r.ByteSpeed),
		r.RecordSpeed,
		c.TotalErrorRecords(),
		c.Counter(TransformerFilterRecords),
		time.Duration(c.Counter(WaitWriterTime)).Round(time.Millisecond),
		time.Duration(c.Counter(WaitReaderTime)).Round(time.Millisecond),
		r.Percentage,
	)
}
