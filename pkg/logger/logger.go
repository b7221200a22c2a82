package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// CriticalLevel ranks above log.ErrorLevel. It marks diagnostics that end the process.
const CriticalLevel = log.ErrorLevel + 2

// Logger is the logging interface passed to every component.
type Logger interface {
	Debug(msg string, obj any)
	Info(msg string, obj any)
	Warn(msg string, obj any)
	Error(msg string, obj any)
	Critical(msg string, obj any)
}

// NopLogger discards all log messages.
type NopLogger struct{}

func (NopLogger) Debug(string, any)    {}
func (NopLogger) Info(string, any)     {}
func (NopLogger) Warn(string, any)     {}
func (NopLogger) Error(string, any)    {}
func (NopLogger) Critical(string, any) {}

// Options controls the console logger.
type Options struct {
	// Debug lowers the console threshold from INFO to DEBUG.
	Debug bool
	// Timestamps prefixes every line with the wall-clock time.
	Timestamps bool
}

type consoleLogger struct {
	l *log.Logger
}

// New builds a leveled console logger that writes to w.
func New(w io.Writer, opts Options) Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: opts.Timestamps,
		TimeFormat:      time.TimeOnly,
		Level:           log.InfoLevel,
	})
	if opts.Debug {
		l.SetLevel(log.DebugLevel)
	}

	styles := log.DefaultStyles()
	styles.Levels[CriticalLevel] = lipgloss.NewStyle().
		SetString("CRIT").
		Bold(true).
		MaxWidth(4).
		Foreground(lipgloss.Color("204")).
		Background(lipgloss.Color("52"))
	l.SetStyles(styles)

	return consoleLogger{l: l}
}

func (c consoleLogger) write(level log.Level, msg string, obj any) {
	if obj == nil {
		c.l.Log(level, msg)
		return
	}

	b, err := json.Marshal(obj)
	if err != nil {
		c.l.Log(level, msg, "obj", fmt.Sprintf("%+v", obj))
		return
	}
	c.l.Log(level, msg, "obj", string(b))
}

func (c consoleLogger) Debug(msg string, obj any)    { c.write(log.DebugLevel, msg, obj) }
func (c consoleLogger) Info(msg string, obj any)     { c.write(log.InfoLevel, msg, obj) }
func (c consoleLogger) Warn(msg string, obj any)     { c.write(log.WarnLevel, msg, obj) }
func (c consoleLogger) Error(msg string, obj any)    { c.write(log.ErrorLevel, msg, obj) }
func (c consoleLogger) Critical(msg string, obj any) { c.write(CriticalLevel, msg, obj) }

// OrNop returns l, or a NopLogger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return NopLogger{}
	}
	return l
}
