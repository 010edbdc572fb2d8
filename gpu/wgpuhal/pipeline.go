package wgpuhal

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

//go:embed shaders/glyph.wgsl
var glyphShaderSource string

// instanceStride is the byte size of one packed glyph instance. It must
// match the attribute offsets below and the VertexInput struct in
// glyph.wgsl.
const instanceStride = 28

// uniformSize is the byte size of the Params uniform in glyph.wgsl.
const uniformSize = 32

// pipelineConfig holds the target-dependent pipeline state.
type pipelineConfig struct {
	targetFormat gputypes.TextureFormat
	sampleCount  uint32
	depthFormat  gputypes.TextureFormat
}

func defaultPipelineConfig() pipelineConfig {
	return pipelineConfig{
		targetFormat: gputypes.TextureFormatBGRA8Unorm,
		sampleCount:  1,
	}
}

// Option configures the glyph pipeline for the host's render target.
type Option func(*pipelineConfig)

// WithTargetFormat sets the color attachment format of the render passes
// glyphs will be drawn into. Default is BGRA8Unorm.
func WithTargetFormat(format gputypes.TextureFormat) Option {
	return func(c *pipelineConfig) { c.targetFormat = format }
}

// WithSampleCount sets the MSAA sample count of the target. Default 1.
func WithSampleCount(count uint32) Option {
	return func(c *pipelineConfig) { c.sampleCount = count }
}

// WithDepthFormat adds a read-write depth state for the given
// depth attachment format. Use it together with a renderer depth
// function so overlapping text resolves by depth instead of draw order.
func WithDepthFormat(format gputypes.TextureFormat) Option {
	return func(c *pipelineConfig) { c.depthFormat = format }
}

// Pipeline holds the compiled glyph shader and its fixed state.
type Pipeline struct {
	shader        hal.ShaderModule
	uniformLayout hal.BindGroupLayout
	atlasLayout   hal.BindGroupLayout
	pipeLayout    hal.PipelineLayout
	sampler       hal.Sampler
	pipeline      hal.RenderPipeline
}

// newPipeline compiles the glyph shader and creates the render pipeline
// with premultiplied alpha blending over a triangle strip.
func newPipeline(device hal.Device, cfg pipelineConfig) (*Pipeline, error) {
	p := &Pipeline{}
	if err := p.create(device, cfg); err != nil {
		p.destroy(device)
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) create(device hal.Device, cfg pipelineConfig) error {
	spirv, err := compileShader(glyphShaderSource)
	if err != nil {
		return fmt.Errorf("wgpuhal: compile glyph shader: %w", err)
	}

	shader, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "glyph_shader",
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return fmt.Errorf("wgpuhal: create glyph shader module: %w", err)
	}
	p.shader = shader

	// Group 0: viewport params (uniform buffer, vertex stage only).
	uniformLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "glyph_uniform_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("wgpuhal: create glyph uniform layout: %w", err)
	}
	p.uniformLayout = uniformLayout

	// Group 1: atlas texture and sampler, rebound per draw batch.
	atlasLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "glyph_atlas_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
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
		return fmt.Errorf("wgpuhal: create glyph atlas layout: %w", err)
	}
	p.atlasLayout = atlasLayout

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "glyph_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.uniformLayout, p.atlasLayout},
	})
	if err != nil {
		return fmt.Errorf("wgpuhal: create glyph pipeline layout: %w", err)
	}
	p.pipeLayout = pipeLayout

	// Glyphs are rendered at the size they were rasterized, so nearest
	// sampling keeps mask edges exact.
	sampler, err := device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "glyph_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeNearest,
		MinFilter:    gputypes.FilterModeNearest,
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		return fmt.Errorf("wgpuhal: create glyph sampler: %w", err)
	}
	p.sampler = sampler

	var depthStencil *hal.DepthStencilState
	if cfg.depthFormat != gputypes.TextureFormatUndefined {
		depthStencil = &hal.DepthStencilState{
			Format:            cfg.depthFormat,
			DepthWriteEnabled: true,
			DepthCompare:      gputypes.CompareFunctionGreaterEqual,
			StencilFront: hal.StencilFaceState{
				Compare:     gputypes.CompareFunctionAlways,
				FailOp:      hal.StencilOperationKeep,
				DepthFailOp: hal.StencilOperationKeep,
				PassOp:      hal.StencilOperationKeep,
			},
			StencilBack: hal.StencilFaceState{
				Compare:     gputypes.CompareFunctionAlways,
				FailOp:      hal.StencilOperationKeep,
				DepthFailOp: hal.StencilOperationKeep,
				PassOp:      hal.StencilOperationKeep,
			},
		}
	}

	premulBlend := gputypes.BlendStatePremultiplied()
	pipeline, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "glyph_pipeline",
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: "vs_main",
			Buffers:    glyphVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     p.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    cfg.targetFormat,
					Blend:     &premulBlend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		DepthStencil: depthStencil,
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleStrip,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: cfg.sampleCount,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("wgpuhal: create glyph pipeline: %w", err)
	}
	p.pipeline = pipeline

	return nil
}

// destroy releases pipeline resources in reverse creation order. Safe to
// call on a partially created pipeline.
func (p *Pipeline) destroy(device hal.Device) {
	if device == nil {
		return
	}
	if p.pipeline != nil {
		device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.sampler != nil {
		device.DestroySampler(p.sampler)
		p.sampler = nil
	}
	if p.pipeLayout != nil {
		device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.atlasLayout != nil {
		device.DestroyBindGroupLayout(p.atlasLayout)
		p.atlasLayout = nil
	}
	if p.uniformLayout != nil {
		device.DestroyBindGroupLayout(p.uniformLayout)
		p.uniformLayout = nil
	}
	if p.shader != nil {
		device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}

// glyphVertexLayout returns the instance-stepped vertex layout. One
// instance is one glyph; the shader expands it to a 4-vertex strip.
//
//	location 0: pos (vec2<i32>), snapped pixel position
//	location 1: dim (u32), packed u16 width | height<<16
//	location 2: uv (u32), packed u16 atlas x | y<<16
//	location 3: color (u32), 0xRRGGBBAA
//	location 4: content type u16 | srgb flag<<16
//	location 5: depth (f32)
func glyphVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: instanceStride,
			StepMode:    gputypes.VertexStepModeInstance,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatSint32x2, Offset: 0, ShaderLocation: 0},
				{Format: gputypes.VertexFormatUint32, Offset: 8, ShaderLocation: 1},
				{Format: gputypes.VertexFormatUint32, Offset: 12, ShaderLocation: 2},
				{Format: gputypes.VertexFormatUint32, Offset: 16, ShaderLocation: 3},
				{Format: gputypes.VertexFormatUint32, Offset: 20, ShaderLocation: 4},
				{Format: gputypes.VertexFormatFloat32, Offset: 24, ShaderLocation: 5},
			},
		},
	}
}

// compileShader compiles WGSL to SPIR-V words via naga.
func compileShader(wgsl string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgsl)
	if err != nil {
		return nil, err
	}

	// SPIR-V is little-endian 32-bit words.
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return words, nil
}
