package gfxplugin

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/gfxplugin/internal/executor"
	"github.com/gogpu/gfxplugin/internal/hwcontext"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine,
// including the render worker.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	l := newNopLogger()
	loggerPtr.Store(l)
}

// SetLogger configures the logger for gfxplugin and all its sub-packages.
// By default, gfxplugin produces no log output. Call SetLogger to enable
// logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by gfxplugin:
//   - [slog.LevelDebug]: state transitions, executor start/stop, per-frame details
//   - [slog.LevelInfo]: lifecycle events (context active, adapter selected)
//   - [slog.LevelWarn]: degraded paths (cached context not acknowledged, HLE lists)
//   - [slog.LevelError]: failures of asynchronous render tasks
//
// Example:
//
//	gfxplugin.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	// Internal packages cannot import gfxplugin, so push the logger down.
	executor.SetLogger(l)
	hwcontext.SetLogger(l)
}

// Logger returns the current logger used by gfxplugin.
// Display backend packages (display/halbackend) call this to share the same
// logger configuration without introducing import cycles.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
