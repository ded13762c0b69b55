package log

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"
)

type LogLevel string

const (
	FatalLevel    = "fatal"
	ErrorLevel    = "error"
	WarningLevel  = "warn"
	DebugLevel    = "debug"
	InfoLevel     = "info"
	TraceLevel    = "trace"
	DisabledLevel = "disabled"
)

var levelmap = map[LogLevel]int{
	TraceLevel:    5,
	DebugLevel:    4,
	InfoLevel:     3,
	WarningLevel:  2,
	ErrorLevel:    1,
	FatalLevel:    0,
	DisabledLevel: -1,
}

// Output sink shared by the package-level functions and every prefixed Logger.
type logWrapper struct {
	log   *log.Logger
	level atomic.Value
}

func newLogWrapper(w io.Writer) *logWrapper {
	l := &logWrapper{log: log.New(w, "", 0)}
	l.level.Store(LogLevel(InfoLevel))
	return l
}

func (l *logWrapper) Level() LogLevel {
	return l.level.Load().(LogLevel)
}

func (l *logWrapper) Println(level LogLevel, prefix string, args ...any) {
	if !ShouldLog(level, l.Level()) {
		return
	}
	ts := time.Now().Local()
	timeStr := fmt.Sprintf("%s.%03d", ts.Format("2006-01-02 15:04:05"), ts.Nanosecond()/1000000)
	levelStr := fmt.Sprintf("- %5s -", level)
	allArgs := []any{timeStr, levelStr}
	if prefix != "" {
		allArgs = append(allArgs, "["+prefix+"]")
	}
	allArgs = append(allArgs, args...)
	l.log.Println(allArgs...)
}

func (l *logWrapper) Printf(level LogLevel, prefix, format string, args ...any) {
	if !ShouldLog(level, l.Level()) {
		return
	}
	l.Println(level, prefix, fmt.Sprintf(format, args...))
}

var (
	stdoutLog *logWrapper
	stderrLog *logWrapper
)

func init() {
	stdoutLog = newLogWrapper(os.Stdout)
	stderrLog = newLogWrapper(os.Stderr)
}

// Redirect all output, both levels, to w. Used by tests and the CLI.
func SetOutput(w io.Writer) {
	stdoutLog.log.SetOutput(w)
	stderrLog.log.SetOutput(w)
}

func SetLevel(loglevel LogLevel) error {
	_, ok := levelmap[loglevel]
	if !ok {
		return fmt.Errorf("No such log level %s", loglevel)
	}

	stderrLog.level.Store(loglevel)
	stdoutLog.level.Store(loglevel)
	return nil
}

func GetLevel() LogLevel {
	return stdoutLog.Level()
}

func ValidLogLevel(level LogLevel) bool {
	_, ok := levelmap[level]
	return ok
}

func ShouldLog(logLevel, enabled LogLevel) bool {
	if !ValidLogLevel(logLevel) || !ValidLogLevel(enabled) {
		return false
	}
	return levelmap[logLevel] <= levelmap[enabled]
}

// A Logger tags every line with a fixed prefix, e.g. the group or task it
// belongs to. The zero value logs without a prefix.
type Logger struct {
	prefix string
}

// Returns a logger whose lines are tagged with the given prefix.
func WithPrefix(prefix string) *Logger {
	return &Logger{prefix: prefix}
}

// Returns a child logger with the prefix appended.
func (l *Logger) With(prefix string) *Logger {
	if l.prefix == "" {
		return WithPrefix(prefix)
	}
	return WithPrefix(l.prefix + " " + prefix)
}

func (l *Logger) Prefix() string {
	return l.prefix
}

func (l *Logger) Log(level LogLevel, msg string, args ...any) {
	if !ValidLogLevel(level) {
		return
	}
	sink := stdoutLog
	if levelmap[level] <= levelmap[WarningLevel] {
		sink = stderrLog
	}
	if len(args) > 0 {
		sink.Printf(level, l.prefix, msg, args...)
	} else {
		sink.Println(level, l.prefix, msg)
	}
}

func (l *Logger) Trace(args ...any) { stdoutLog.Println(TraceLevel, l.prefix, args...) }
func (l *Logger) Debug(args ...any) { stdoutLog.Println(DebugLevel, l.prefix, args...) }
func (l *Logger) Info(args ...any)  { stdoutLog.Println(InfoLevel, l.prefix, args...) }
func (l *Logger) Warn(args ...any)  { stderrLog.Println(WarningLevel, l.prefix, args...) }
func (l *Logger) Error(args ...any) { stderrLog.Println(ErrorLevel, l.prefix, args...) }

func (l *Logger) Tracef(format string, args ...any) {
	stdoutLog.Printf(TraceLevel, l.prefix, format, args...)
}

func (l *Logger) Debugf(format string, args ...any) {
	stdoutLog.Printf(DebugLevel, l.prefix, format, args...)
}

func (l *Logger) Infof(format string, args ...any) {
	stdoutLog.Printf(InfoLevel, l.prefix, format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	stderrLog.Printf(WarningLevel, l.prefix, format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	stderrLog.Printf(ErrorLevel, l.prefix, format, args...)
}

var root = &Logger{}

func Log(level LogLevel, msg string, args ...any) {
	root.Log(level, msg, args...)
}

func Trace(args ...any) { root.Trace(args...) }
func Debug(args ...any) { root.Debug(args...) }
func Info(args ...any)  { root.Info(args...) }
func Warn(args ...any)  { root.Warn(args...) }
func Error(args ...any) { root.Error(args...) }

func Fatal(args ...any) {
	stderrLog.Println(FatalLevel, "", args...)
	debug.PrintStack()
	os.Exit(1)
}

func Tracef(format string, args ...any) { root.Tracef(format, args...) }
func Debugf(format string, args ...any) { root.Debugf(format, args...) }
func Infof(format string, args ...any)  { root.Infof(format, args...) }
func Warnf(format string, args ...any)  { root.Warnf(format, args...) }
func Errorf(format string, args ...any) { root.Errorf(format, args...) }

func Fatalf(format string, args ...any) {
	stderrLog.Printf(FatalLevel, "", format, args...)
	debug.PrintStack()
	os.Exit(1)
}

type writeFunc func([]byte) (int, error)

func (fn writeFunc) Write(data []byte) (int, error) {
	return fn(data)
}

// Returns a writer that logs each write as one line at the given level.
// Plugins use it to route library output into the engine log.
func NewLogWriter(logger *Logger, level LogLevel) io.Writer {
	if logger == nil {
		logger = root
	}
	return writeFunc(func(data []byte) (int, error) {
		logger.Log(level, "%s", strings.TrimRight(string(data), "\n"))
		return len(data), nil
	})
}

// Logs an error chain at debug level, one line per wrapped error.
func DebugError(err error) {
	indent := 1

	Debug(err.Error())

	for {
		if err = errors.Unwrap(err); err == nil {
			break
		}

		Debugf("| %d: %s", indent, err.Error())
		indent += 1
	}
}
