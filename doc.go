// Package gfxplugin is the render-context lifecycle and frame-submission
// coordinator of an emulator graphics plugin.
//
// # Overview
//
// An emulator host calls the plugin at fixed points: open ROM, process a
// display list, present a frame, close ROM. gfxplugin turns those calls into
// work for a renderer and a display backend, executed in strict order on a
// single render worker:
//
//	host call               session                 render worker
//	---------               -------                 -------------
//	open ROM           ->   BeginSession       ->   context init
//	process list       ->   ProcessDisplayList ->   BeginFrame + ProcessCommands (async)
//	show frame         ->   PresentFrame       ->   CompleteFrame + present (sync)
//	resize/fullscreen  ->   Reconfigure        ->   context reinit
//	close ROM          ->   EndSession         ->   context free, worker stop
//
// # Render Context
//
// The render context couples the display backend (surface + GPU device) and
// the renderer's hardware callbacks. Reinitialization tears both down and
// rebuilds them. A renderer that sets HWRenderCallback.CacheContext keeps
// its GPU resources across the rebuild if it acknowledges them afterwards;
// otherwise it is reset and must rebuild them.
//
// # Frame Replay
//
// The last presented frame is cached by reference. When the renderer
// produces nothing new, or the host asks for a redraw with ReplayFrame, the
// cached frame is presented again with its original geometry.
//
// # Quick Start
//
//	rdram := make([]byte, 8<<20)
//	s, err := gfxplugin.BeginSession(gfxplugin.DefaultConfig(),
//	    gfxplugin.WithRenderer(render.NewSoftware(rdram)),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.EndSession()
//
//	var vi [render.NumVIRegisters]uint32
//	s.ProcessDisplayList()
//	s.PresentFrame(render.Capture(&vi))
//
// # Logging
//
// gfxplugin is silent by default. See SetLogger.
package gfxplugin
