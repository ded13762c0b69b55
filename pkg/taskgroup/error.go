package taskgroup

import (
	"errors"
	"fmt"

	"github.com/srand/jolt/datasync/pkg/communication"
)

var (
	// A task lacks a reader or writer section, or names an unknown plugin.
	ErrConfig = errors.New("configuration error")

	// A task failed and could not be retried.
	ErrPluginRuntime = errors.New("plugin runtime error")

	// A failed attempt did not shut down within the maximum wait.
	ErrWaitTimeExceeded = errors.New("wait time exceeded")

	// A task was killed, or the group was cancelled.
	ErrKilled = errors.New("killed")

	// Unexpected failure of the scheduler itself.
	ErrRuntime = errors.New("runtime error")
)

// Returned when a task group fails. Both Code and Cause match errors.Is.
type GroupError struct {
	// One of the Err* sentinels of this package.
	Code error

	// What made the group fail, typically the first failed task's cause.
	Cause error

	// The final group snapshot.
	Communication *communication.Communication
}

func (e *GroupError) Error() string {
	if e.Cause == nil {
		return e.Code.Error()
	}
	return fmt.Sprintf("%v: %v", e.Code, e.Cause)
}

func (e *GroupError) Unwrap() []error {
	errs := []error{e.Code}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

func newGroupError(code, cause error) *GroupError {
	return &GroupError{Code: code, Cause: cause}
}
