package halbackend

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gfxplugin/internal/shader"
)

// blitPipeline draws a frame texture over the whole surface.
//
// Bind group layout:
//
//	binding 0: frame texture (texture_2d<f32>, fragment)
//	binding 1: sampler (fragment)
type blitPipeline struct {
	device hal.Device

	module     hal.ShaderModule
	layout     hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	nearest    hal.Sampler
	linear     hal.Sampler
	pipeline   hal.RenderPipeline
}

// newBlitPipeline builds the pipeline for surfaces of the given format.
func newBlitPipeline(device hal.Device, format gputypes.TextureFormat) (*blitPipeline, error) {
	p := &blitPipeline{device: device}
	if err := p.create(format); err != nil {
		p.destroy()
		return nil, err
	}
	return p, nil
}

func (p *blitPipeline) create(format gputypes.TextureFormat) error {
	module, err := shader.NewBlitModule(p.device)
	if err != nil {
		return fmt.Errorf("create blit shader: %w", err)
	}
	p.module = module

	layout, err := p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "blit_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create blit bind group layout: %w", err)
	}
	p.layout = layout

	pipeLayout, err := p.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "blit_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.layout},
	})
	if err != nil {
		return fmt.Errorf("create blit pipeline layout: %w", err)
	}
	p.pipeLayout = pipeLayout

	if p.nearest, err = p.sampler("blit_nearest", gputypes.FilterModeNearest); err != nil {
		return err
	}
	if p.linear, err = p.sampler("blit_linear", gputypes.FilterModeLinear); err != nil {
		return err
	}

	pipeline, err := p.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "blit_pipeline",
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.module,
			EntryPoint: shader.BlitVertexEntry,
		},
		Fragment: &hal.FragmentState{
			Module:     p.module,
			EntryPoint: shader.BlitFragmentEntry,
			Targets: []gputypes.ColorTargetState{
				{Format: format, WriteMask: gputypes.ColorWriteMaskAll},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	})
	if err != nil {
		return fmt.Errorf("create blit pipeline: %w", err)
	}
	p.pipeline = pipeline
	return nil
}

func (p *blitPipeline) sampler(label string, filter gputypes.FilterMode) (hal.Sampler, error) {
	s, err := p.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        label,
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    filter,
		MinFilter:    filter,
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s sampler: %w", label, err)
	}
	return s, nil
}

// bindGroup binds view for sampling. Frames larger than the surface are
// filtered; others are sampled nearest so integer upscales stay sharp.
func (p *blitPipeline) bindGroup(view hal.TextureView, filtered bool) (hal.BindGroup, error) {
	s := p.nearest
	if filtered {
		s = p.linear
	}
	g, err := p.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "blit_bind",
		Layout: p.layout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.TextureViewBinding{TextureView: view.NativeHandle()}},
			{Binding: 1, Resource: gputypes.SamplerBinding{Sampler: s.NativeHandle()}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create blit bind group: %w", err)
	}
	return g, nil
}

// record draws the fullscreen triangle into target.
func (p *blitPipeline) record(enc hal.CommandEncoder, target hal.TextureView, group hal.BindGroup) {
	rp := enc.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "blit_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{
			{
				View:       target,
				LoadOp:     gputypes.LoadOpClear,
				StoreOp:    gputypes.StoreOpStore,
				ClearValue: gputypes.Color{A: 1},
			},
		},
	})
	rp.SetPipeline(p.pipeline)
	rp.SetBindGroup(0, group, nil)
	rp.Draw(3, 1, 0, 0)
	rp.End()
}

// destroy releases pipeline resources in reverse creation order.
func (p *blitPipeline) destroy() {
	if p.pipeline != nil {
		p.device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.linear != nil {
		p.device.DestroySampler(p.linear)
		p.linear = nil
	}
	if p.nearest != nil {
		p.device.DestroySampler(p.nearest)
		p.nearest = nil
	}
	if p.pipeLayout != nil {
		p.device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.layout != nil {
		p.device.DestroyBindGroupLayout(p.layout)
		p.layout = nil
	}
	if p.module != nil {
		p.device.DestroyShaderModule(p.module)
		p.module = nil
	}
}
