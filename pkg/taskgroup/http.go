package taskgroup

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/srand/jolt/datasync/pkg/communication"
)

// Progress of a task group as served by /status.
type StatusResponse struct {
	RunID         string           `json:"run_id"`
	JobID         int64            `json:"job_id"`
	TaskGroupID   int              `json:"task_group_id"`
	State         string           `json:"state"`
	Cause         string           `json:"cause,omitempty"`
	Percentage    float64          `json:"percentage"`
	TotalTasks    int              `json:"total_tasks"`
	FinishedTasks int64            `json:"finished_tasks"`
	ByteSpeed     int64            `json:"byte_speed"`
	RecordSpeed   int64            `json:"record_speed"`
	Counters      map[string]int64 `json:"counters"`
	Final         bool             `json:"final"`
}

func NewHttpHandler(container *Container, r *echo.Echo) {
	r.GET("/metrics", func(c echo.Context) error {
		stats := container.Statistics()
		snapshot := container.Communications().Collect()

		metrics := fmt.Sprintln("# TYPE datasync_tasks gauge")
		metrics += fmt.Sprintln("# HELP datasync_tasks The number of tasks in the group.")
		metrics += fmt.Sprintf("datasync_tasks %d\n", stats.Tasks)

		metrics += fmt.Sprintln("# TYPE datasync_tasks_pending gauge")
		metrics += fmt.Sprintln("# HELP datasync_tasks_pending The number of tasks waiting to be started.")
		metrics += fmt.Sprintf("datasync_tasks_pending %d\n", stats.PendingTasks)

		metrics += fmt.Sprintln("# TYPE datasync_tasks_running gauge")
		metrics += fmt.Sprintln("# HELP datasync_tasks_running The number of tasks currently running.")
		metrics += fmt.Sprintf("datasync_tasks_running %d\n", stats.RunningTasks)

		metrics += fmt.Sprintln("# TYPE datasync_tasks_succeeded_total counter")
		metrics += fmt.Sprintln("# HELP datasync_tasks_succeeded_total The total number of successful tasks.")
		metrics += fmt.Sprintf("datasync_tasks_succeeded_total %d\n", stats.SucceededTasks)

		metrics += fmt.Sprintln("# TYPE datasync_attempts_failed_total counter")
		metrics += fmt.Sprintln("# HELP datasync_attempts_failed_total The total number of failed task attempts.")
		metrics += fmt.Sprintf("datasync_attempts_failed_total %d\n", stats.FailedAttempts)

		metrics += fmt.Sprintln("# TYPE datasync_retries_total counter")
		metrics += fmt.Sprintln("# HELP datasync_retries_total The total number of retried task attempts.")
		metrics += fmt.Sprintf("datasync_retries_total %d\n", stats.Retries)

		metrics += fmt.Sprintln("# TYPE datasync_records_read_total counter")
		metrics += fmt.Sprintln("# HELP datasync_records_read_total The total number of records read.")
		metrics += fmt.Sprintf("datasync_records_read_total %d\n", snapshot.TotalReadRecords())

		metrics += fmt.Sprintln("# TYPE datasync_bytes_read_total counter")
		metrics += fmt.Sprintln("# HELP datasync_bytes_read_total The total number of bytes read.")
		metrics += fmt.Sprintf("datasync_bytes_read_total %d\n", snapshot.TotalReadBytes())

		metrics += fmt.Sprintln("# TYPE datasync_records_written_total counter")
		metrics += fmt.Sprintln("# HELP datasync_records_written_total The total number of records received by writers.")
		metrics += fmt.Sprintf("datasync_records_written_total %d\n", snapshot.Counter(communication.WriteReceivedRecords))

		metrics += fmt.Sprintln("# TYPE datasync_records_error_total counter")
		metrics += fmt.Sprintln("# HELP datasync_records_error_total The total number of dirty records.")
		metrics += fmt.Sprintf("datasync_records_error_total %d\n", snapshot.TotalErrorRecords())

		c.String(http.StatusOK, metrics)
		return nil
	})

	r.GET("/status", func(c echo.Context) error {
		report := container.Communications().LastReport()
		if report == nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "no report yet"})
		}

		status := &StatusResponse{
			RunID:         container.RunID(),
			JobID:         container.config.JobID,
			TaskGroupID:   container.config.TaskGroupID,
			State:         report.State().String(),
			Percentage:    report.Percentage,
			TotalTasks:    report.TotalTasks,
			FinishedTasks: report.FinishedTasks,
			ByteSpeed:     report.ByteSpeed,
			RecordSpeed:   report.RecordSpeed,
			Counters:      report.Communication.Counters(),
			Final:         report.Final,
		}
		if cause := report.Communication.Cause(); cause != nil {
			status.Cause = cause.Error()
		}

		return c.JSON(http.StatusOK, status)
	})
}
