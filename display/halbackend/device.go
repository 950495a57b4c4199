package halbackend

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gfxplugin/render"
)

// deviceHandle exposes the HAL device to the renderer. Consumers that need
// the full API type-assert Device() to hal.Device.
type deviceHandle struct {
	device  hal.Device
	queue   hal.Queue
	adapter hal.Adapter
	format  gputypes.TextureFormat
	info    gpucontext.AdapterInfo
}

func (d deviceHandle) Device() gpucontext.Device             { return d.device }
func (d deviceHandle) Queue() gpucontext.Queue               { return d.queue }
func (d deviceHandle) Adapter() gpucontext.Adapter           { return d.adapter }
func (d deviceHandle) SurfaceFormat() gputypes.TextureFormat { return d.format }
func (d deviceHandle) AdapterInfo() gpucontext.AdapterInfo   { return d.info }

var _ render.DeviceHandle = deviceHandle{}

// adapterInfo converts HAL adapter metadata to the gpucontext form.
func adapterInfo(info gputypes.AdapterInfo) gpucontext.AdapterInfo {
	t := gpucontext.AdapterTypeUnknown
	switch info.DeviceType {
	case gputypes.DeviceTypeDiscreteGPU:
		t = gpucontext.AdapterTypeDiscrete
	case gputypes.DeviceTypeIntegratedGPU:
		t = gpucontext.AdapterTypeIntegrated
	case gputypes.DeviceTypeCPU:
		t = gpucontext.AdapterTypeSoftware
	}
	return gpucontext.AdapterInfo{Name: info.Name, Type: t}
}
