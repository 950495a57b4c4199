// Package shader holds the WGSL used by the GPU display backend and compiles
// it to SPIR-V with naga.
package shader

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// Entry points of the blit shader.
const (
	BlitVertexEntry   = "vs_main"
	BlitFragmentEntry = "fs_main"
)

// ErrCompile is returned when WGSL fails to compile.
var ErrCompile = errors.New("shader: compile failed")

//go:embed blit.wgsl
var blitSource string

// BlitSource returns the WGSL source of the frame blit shader.
func BlitSource() string {
	return blitSource
}

var blitSPIRV = sync.OnceValues(func() ([]uint32, error) {
	return Compile(blitSource)
})

// BlitSPIRV returns the compiled blit shader. It is compiled once per
// process.
func BlitSPIRV() ([]uint32, error) {
	return blitSPIRV()
}

// Compile translates WGSL to SPIR-V words.
func Compile(wgsl string) ([]uint32, error) {
	spirv, err := naga.Compile(wgsl)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompile, err)
	}
	if len(spirv)%4 != 0 {
		return nil, fmt.Errorf("%w: SPIR-V length %d is not word aligned", ErrCompile, len(spirv))
	}

	// SPIR-V words are little-endian.
	words := make([]uint32, len(spirv)/4)
	for i := range words {
		words[i] = uint32(spirv[i*4]) |
			uint32(spirv[i*4+1])<<8 |
			uint32(spirv[i*4+2])<<16 |
			uint32(spirv[i*4+3])<<24
	}
	return words, nil
}

// NewBlitModule creates the blit shader module on device.
func NewBlitModule(device hal.Device) (hal.ShaderModule, error) {
	code, err := BlitSPIRV()
	if err != nil {
		return nil, err
	}
	return device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "gfxplugin-blit",
		Source: hal.ShaderSource{SPIRV: code},
	})
}
