// Package notify delivers user-facing notices. Notification is fire and
// forget: sinks never return errors and callers never wait on them.
package notify

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/pterm/pterm"
)

// Level is the severity of a notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Sink receives notices.
type Sink interface {
	Notify(message string, level Level)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(message string, level Level)

func (f SinkFunc) Notify(message string, level Level) { f(message, level) }

// Nop discards every notice.
var Nop Sink = SinkFunc(func(string, Level) {})

// LogSink writes notices to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a sink logging through logger, or slog.Default() when nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "notify")}
}

func (s *LogSink) Notify(message string, level Level) {
	s.logger.Log(context.Background(), slogLevel(level), message, "level", string(level))
}

func slogLevel(level Level) slog.Level {
	switch level {
	case LevelWarning:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ConsoleSink prints notices with pterm prefixes.
type ConsoleSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleSink returns a sink printing to w, or stderr when nil.
func NewConsoleSink(w io.Writer) *ConsoleSink {
	if w == nil {
		w = os.Stderr
	}
	return &ConsoleSink{w: w}
}

func (s *ConsoleSink) Notify(message string, level Level) {
	var printer pterm.PrefixPrinter
	switch level {
	case LevelSuccess:
		printer = pterm.Success
	case LevelWarning:
		printer = pterm.Warning
	case LevelError:
		printer = pterm.Error
	default:
		printer = pterm.Info
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	printer.WithWriter(s.w).Println(message)
}

// Multi fans a notice out to every sink.
type Multi []Sink

func (m Multi) Notify(message string, level Level) {
	for _, s := range m {
		if s != nil {
			s.Notify(message, level)
		}
	}
}
