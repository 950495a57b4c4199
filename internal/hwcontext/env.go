package hwcontext

import (
	"github.com/gogpu/gfxplugin/render"
)

// environment is the render.Environment handed to the renderer. It calls
// back into the controller and must only be used on the render worker.
type environment struct {
	c *Controller
}

func (e environment) SetHWRender(cb render.HWRenderCallback) bool {
	e.c.mu.Lock()
	e.c.st.HWRender = cb
	e.c.mu.Unlock()
	slogger().Debug("hwcontext: hw render callback registered", "cache_context", cb.CacheContext)
	return true
}

func (e environment) SetContextNegotiation(n render.ContextNegotiator) bool {
	e.c.mu.Lock()
	e.c.st.Negotiator = n
	e.c.mu.Unlock()
	return true
}

func (e environment) AcknowledgeCacheContext() {
	if !e.c.st.CacheContextRequested {
		return
	}
	e.c.st.CacheContextAcknowledged = true
}

func (e environment) Device() render.DeviceHandle {
	if e.c.backend == nil {
		return render.NullDeviceHandle{}
	}
	return e.c.backend.Device()
}

func (e environment) Settings() render.Settings {
	s := e.c.settings
	if f := e.c.cfg.UpscalingFactor; f > 0 {
		s.UpscalingFactor = f
	}
	return s
}

var _ render.Environment = environment{}
