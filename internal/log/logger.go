// Package log is a small leveled logger shared by every layer of this
// module — transport, dispatcher, crypto, and the bundled CLI all log
// through the same global sink rather than each taking their own
// io.Writer, so a single -debug flag turns on tracing everywhere at once.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level orders log severities from least to most verbose when compared
// against the configured threshold: a message is emitted when its Level is
// <= the threshold.
type Level int

const (
	LevelNone    Level = iota // nothing is logged
	LevelError                // failures the caller cannot recover from
	LevelWarning              // recoverable anomalies (dropped frames, retried writes)
	LevelInfo                 // connection lifecycle: scan/connect/disconnect
	LevelDebug                // per-frame tracing: chunk sizes, uuids, counters
)

var tags = map[Level]string{
	LevelDebug:   "DEBUG",
	LevelInfo:    "INFO",
	LevelWarning: "WARN",
	LevelError:   "ERROR",
}

type sink struct {
	mu    sync.Mutex
	level Level
	out   io.Writer
}

var global = &sink{out: os.Stderr}

// SetLevel changes the global threshold; messages above it are dropped
// without formatting their arguments.
func SetLevel(level Level) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.level = level
}

// SetOutput redirects log output, primarily so tests can capture it instead
// of writing to stderr.
func SetOutput(w io.Writer) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.out = w
}

func emit(level Level, format string, a ...interface{}) {
	global.mu.Lock()
	defer global.mu.Unlock()
	if level > global.level {
		return
	}
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	fmt.Fprintf(global.out, "%s [%s] %s\n", timestamp, tags[level], fmt.Sprintf(format, a...))
}

func Debug(format string, a ...interface{})   { emit(LevelDebug, format, a...) }
func Info(format string, a ...interface{})    { emit(LevelInfo, format, a...) }
func Warning(format string, a ...interface{}) { emit(LevelWarning, format, a...) }
func Error(format string, a ...interface{})   { emit(LevelError, format, a...) }
