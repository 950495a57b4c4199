package gfxplugin

import (
	"errors"

	"github.com/gogpu/gfxplugin/internal/executor"
	"github.com/gogpu/gfxplugin/internal/hwcontext"
)

// Session errors.
var (
	// ErrNoRenderer is returned by BeginSession without WithRenderer.
	ErrNoRenderer = errors.New("gfxplugin: no renderer")

	// ErrInvalidConfig is returned for a Config that fails validation.
	ErrInvalidConfig = errors.New("gfxplugin: invalid config")

	// ErrSessionEnded is returned by calls on a session that has ended,
	// either through EndSession or after a failed reinit.
	ErrSessionEnded = errors.New("gfxplugin: session ended")

	// ErrInitFailed wraps context creation failures. The session does not
	// start.
	ErrInitFailed = hwcontext.ErrInitFailed

	// ErrReinitFailed wraps context rebuild failures. The session has
	// ended when it is returned.
	ErrReinitFailed = hwcontext.ErrReinitFailed

	// ErrInvalidState is returned for a lifecycle operation not allowed in
	// the current state.
	ErrInvalidState = hwcontext.ErrInvalidState

	// ErrStopped is returned when work reaches a stopped render worker.
	ErrStopped = executor.ErrStopped
)
