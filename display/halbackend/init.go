package halbackend

import (
	"github.com/gogpu/gfxplugin/display"
)

// init registers the hal backend on package import. Once registered it is
// preferred over the headless fallback by display.Default.
//
// To use it, import this package along with a wgpu HAL backend:
//
//	import _ "github.com/gogpu/gfxplugin/display/halbackend"
//	import _ "github.com/gogpu/wgpu/hal/allbackends"
func init() {
	display.Register(display.BackendHAL, func() display.Backend {
		return New()
	})
}
