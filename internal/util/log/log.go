// Package log provides the cascade server's process-wide structured
// logger: a go-kit logger writing JSON lines, level-filtered, rotated
// through lumberjack when configured with a log file.
package log

import (
	"os"
	"strings"
	"sync"

	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/imageflow/cascade/internal/config"
)

// Pairs is a convenience map for attaching structured fields to a log line.
type Pairs map[string]interface{}

func (p Pairs) keyvals() []interface{} {
	kv := make([]interface{}, 0, len(p)*2)
	for k, v := range p {
		kv = append(kv, k, v)
	}
	return kv
}

var (
	mu     sync.RWMutex
	logger kitlog.Logger = newLogger(os.Stdout, "INFO")
)

func newLogger(w *os.File, lvl string) kitlog.Logger {
	base := kitlog.NewJSONLogger(kitlog.NewSyncWriter(w))
	base = kitlog.With(base, "ts", kitlog.DefaultTimestampUTC, "caller", kitlog.Caller(5))
	return filtered(base, lvl)
}

func filtered(base kitlog.Logger, lvl string) kitlog.Logger {
	switch strings.ToUpper(lvl) {
	case "DEBUG":
		return level.NewFilter(base, level.AllowDebug())
	case "WARN", "WARNING":
		return level.NewFilter(base, level.AllowWarn())
	case "ERROR":
		return level.NewFilter(base, level.AllowError())
	default:
		return level.NewFilter(base, level.AllowInfo())
	}
}

// Init reconfigures the global logger from a LoggingConfig. When LogFile is
// set, output rotates through lumberjack instead of going to stdout.
func Init(cfg config.LoggingConfig) {
	mu.Lock()
	defer mu.Unlock()

	base := kitlog.NewJSONLogger(kitlog.NewSyncWriter(output(cfg.LogFile)))
	base = kitlog.With(base, "ts", kitlog.DefaultTimestampUTC, "caller", kitlog.Caller(5))
	logger = filtered(base, cfg.LogLevel)
}

func output(path string) *lumberjackWriter {
	if path == "" {
		return &lumberjackWriter{w: os.Stdout}
	}
	return &lumberjackWriter{
		w: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		},
	}
}

// lumberjackWriter adapts both os.Stdout and *lumberjack.Logger to the same
// io.Writer-shaped value so Init doesn't need two code paths.
type lumberjackWriter struct {
	w interface {
		Write([]byte) (int, error)
	}
}

func (l *lumberjackWriter) Write(p []byte) (int, error) {
	return l.w.Write(p)
}

func current() kitlog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Debug logs at debug level with structured fields.
func Debug(msg string, p Pairs) {
	_ = level.Debug(current()).Log(append([]interface{}{"event", msg}, p.keyvals()...)...)
}

// Info logs at info level with structured fields.
func Info(msg string, p Pairs) {
	_ = level.Info(current()).Log(append([]interface{}{"event", msg}, p.keyvals()...)...)
}

// Warn logs at warn level with structured fields.
func Warn(msg string, p Pairs) {
	_ = level.Warn(current()).Log(append([]interface{}{"event", msg}, p.keyvals()...)...)
}

// Error logs at error level with structured fields.
func Error(msg string, p Pairs) {
	_ = level.Error(current()).Log(append([]interface{}{"event", msg}, p.keyvals()...)...)
}

// Fatal logs at error level then exits the process with status 1.
func Fatal(msg string, p Pairs) {
	Error(msg, p)
	os.Exit(1)
}
