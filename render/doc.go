// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render defines the boundary between the frame-submission
// coordinator and the renderer that produces frames.
//
// # Key Principle
//
// The renderer RECEIVES its device from the display backend, it does NOT
// create one. When the coordinator rebuilds the display backend (window
// resize, fullscreen toggle) the renderer is told through its
// HWRenderCallback and, for cached contexts, may keep its resources.
//
// # Core Types
//
//   - Renderer: begin, process and complete frames
//   - Environment: what the coordinator exposes to a renderer
//   - HWRenderCallback: context reset/destroy hooks and the cache request
//   - ContextNegotiator: optional acknowledgement of preserved resources
//   - FrameRef: none, hardware-valid sentinel, or pixel data
//   - RegisterSnapshot: VI registers captured on the emulation goroutine
//   - DeviceHandle: GPU device access (gpucontext.DeviceProvider)
//
// # Renderer Implementations
//
//   - Software: CPU VI scanout with upscaling via golang.org/x/image/draw
//
// # Thread Safety
//
// Renderers are NOT thread-safe. The coordinator calls them from its
// single worker only. RegisterSnapshot values are plain copies and may be
// passed between goroutines freely.
package render
