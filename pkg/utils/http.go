package utils

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/srand/jolt/datasync/pkg/log"
)

// Returns echo middleware that traces each request through logger.
func HttpLogger(logger *log.Logger) echo.MiddlewareFunc {
	if logger == nil {
		logger = log.WithPrefix("http")
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Tracef("%4s %s %v (%s)", c.Request().Method, c.Request().URL, c.Response().Status, time.Since(start).Round(time.Microsecond))
			return err
		}
	}
}
