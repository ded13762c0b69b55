//go:build linux

package utils

import (
	"time"

	"golang.org/x/sys/unix"
)

// CPU time consumed by the process so far.
func ProcessCPUTime() (user, system time.Duration, err error) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0, 0, err
	}
	return time.Duration(ru.Utime.Nano()), time.Duration(ru.Stime.Nano()), nil
}
