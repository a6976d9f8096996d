// Package logger is a thin leveled wrapper around log/slog used by every
// package of the pipeline.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

const (
	INFO = iota
	DEBUG
)

var (
	mu      sync.RWMutex
	base    *slog.Logger
	logFile *os.File
)

// InitLogger initializes the logger with a file output and console output.
func InitLogger(filename string, level int) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
	}
	logFile = f
	base = newLogger(io.MultiWriter(os.Stderr, f), level)
	return nil
}

// SetOutput redirects all log output to w. Used by tests and the CLI.
func SetOutput(w io.Writer, level int) {
	mu.Lock()
	defer mu.Unlock()
	base = newLogger(w, level)
}

func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

func newLogger(w io.Writer, level int) *slog.Logger {
	lvl := slog.LevelInfo
	if level == DEBUG {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// L returns the current logger.
func L() *slog.Logger {
	mu.RLock()
	l := base
	mu.RUnlock()
	if l == nil {
		return slog.Default()
	}
	return l
}

// With returns a logger carrying the given key/value attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}

func Debugf(format string, v ...interface{}) {
	L().Debug(fmt.Sprintf(format, v...))
}

func Info(format string, v ...interface{}) {
	L().Info(fmt.Sprintf(format, v...))
}

func Infof(format string, v ...interface{}) {
	Info(format, v...)
}

func Error(format string, v ...interface{}) {
	L().Error(fmt.Sprintf(format, v...))
}

func Errorf(format string, v ...interface{}) {
	Error(format, v...)
}

func Warn(format string, v ...interface{}) {
	L().Warn(fmt.Sprintf(format, v...))
}

func Warnf(format string, v ...interface{}) {
	Warn(format, v...)
}
