//go:build !linux

package utils

import (
	"errors"
	"time"
)

func ProcessCPUTime() (user, system time.Duration, err error) {
	return 0, 0, errors.ErrUnsupported
}
