// Package wgpuhal implements the glyph device interface over wgpu/hal.
//
// The Device wraps a hal.Device and hal.Queue supplied by the host
// application (typically via a gpucontext device provider) and owns the
// glyph render pipeline: shader, bind group layouts, and sampler. Frames
// record their draws through Pass, a thin adapter over the host's
// hal.RenderPassEncoder.
package wgpuhal

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/textatlas/gpu"
)

// Errors returned by the wgpuhal backend.
var (
	// ErrNilDevice is returned when constructed without a hal device or queue.
	ErrNilDevice = errors.New("wgpuhal: nil device or queue")

	// ErrForeignResource is returned when a resource created by a
	// different backend is passed in.
	ErrForeignResource = errors.New("wgpuhal: resource from another backend")

	// ErrNoHalProvider is returned when a device provider does not expose
	// wgpu/hal types.
	ErrNoHalProvider = errors.New("wgpuhal: provider does not expose HAL types")
)

// Device implements gpu.Device over wgpu/hal.
type Device struct {
	device   hal.Device
	queue    hal.Queue
	pipeline *Pipeline
}

// New creates a Device over an existing hal device and queue, compiling
// the glyph pipeline for the given target. The caller keeps ownership of
// the hal device; Destroy only releases pipeline resources.
func New(device hal.Device, queue hal.Queue, opts ...Option) (*Device, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}

	cfg := defaultPipelineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	pipeline, err := newPipeline(device, cfg)
	if err != nil {
		return nil, err
	}

	return &Device{
		device:   device,
		queue:    queue,
		pipeline: pipeline,
	}, nil
}

// FromProvider creates a Device from a gpucontext-style device provider.
// The provider must implement HalDevice() any and HalQueue() any returning
// hal.Device and hal.Queue.
func FromProvider(provider any, opts ...Option) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHalProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHalProvider)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHalProvider)
	}
	return New(device, queue, opts...)
}

// Destroy releases the pipeline resources. The wrapped hal device is not
// touched; its owner destroys it.
func (d *Device) Destroy() {
	if d.pipeline != nil {
		d.pipeline.destroy(d.device)
		d.pipeline = nil
	}
}

// Pass wraps a render pass encoder the host opened on a compatible target
// so glyph draws can be recorded into it.
func (d *Device) Pass(enc hal.RenderPassEncoder) gpu.RenderPass {
	return &renderPass{enc: enc, pipeline: d.pipeline}
}

// CreateTexture creates a sampled 2D texture with a full view.
func (d *Device) CreateTexture(desc *gpu.TextureDescriptor) (gpu.Texture, error) {
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          hal.Extent3D{Width: desc.Width, Height: desc.Height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpuhal: create texture %q: %w", desc.Label, err)
	}

	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         desc.Label + "_view",
		Format:        desc.Format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		return nil, fmt.Errorf("wgpuhal: create texture view %q: %w", desc.Label, err)
	}

	return &texture{
		device: d.device,
		tex:    tex,
		view:   view,
		width:  desc.Width,
		height: desc.Height,
		format: desc.Format,
	}, nil
}

// WriteTexture uploads tightly packed texels into a region of dst.
func (d *Device) WriteTexture(dst gpu.Texture, x, y, w, h uint32, data []byte) error {
	t, ok := dst.(*texture)
	if !ok {
		return ErrForeignResource
	}

	texel := gpu.TexelSize(t.format)
	if texel == 0 || uint32(len(data)) != w*h*texel {
		return fmt.Errorf("wgpuhal: write texture %dx%d: bad data length %d", w, h, len(data))
	}

	d.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  t.tex,
			MipLevel: 0,
			Origin:   hal.Origin3D{X: x, Y: y, Z: 0},
			Aspect:   gputypes.TextureAspectAll,
		},
		data,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  w * texel,
			RowsPerImage: h,
		},
		&hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)
	return nil
}

// CreateBuffer creates a GPU buffer.
func (d *Device) CreateBuffer(desc *gpu.BufferDescriptor) (gpu.Buffer, error) {
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: desc.Usage,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpuhal: create buffer %q: %w", desc.Label, err)
	}
	return &buffer{device: d.device, buf: buf, size: desc.Size}, nil
}

// WriteBuffer uploads data into dst at the given byte offset.
func (d *Device) WriteBuffer(dst gpu.Buffer, offset uint64, data []byte) error {
	b, ok := dst.(*buffer)
	if !ok {
		return ErrForeignResource
	}
	d.queue.WriteBuffer(b.buf, offset, data)
	return nil
}

// CreateAtlasGroup binds an atlas texture and the shared glyph sampler at
// group 1.
func (d *Device) CreateAtlasGroup(tex gpu.Texture) (gpu.BindGroup, error) {
	t, ok := tex.(*texture)
	if !ok {
		return nil, ErrForeignResource
	}

	bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "glyph_atlas_bind",
		Layout: d.pipeline.atlasLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.TextureViewBinding{TextureView: t.view.NativeHandle()}},
			{Binding: 1, Resource: gputypes.SamplerBinding{Sampler: d.pipeline.sampler.NativeHandle()}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("wgpuhal: create atlas bind group: %w", err)
	}
	return &bindGroup{device: d.device, bg: bg}, nil
}

// CreateUniformGroup binds the viewport uniform buffer at group 0.
func (d *Device) CreateUniformGroup(buf gpu.Buffer) (gpu.BindGroup, error) {
	b, ok := buf.(*buffer)
	if !ok {
		return nil, ErrForeignResource
	}

	bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "glyph_uniform_bind",
		Layout: d.pipeline.uniformLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: b.buf.NativeHandle(), Offset: 0, Size: b.size,
			}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("wgpuhal: create uniform bind group: %w", err)
	}
	return &bindGroup{device: d.device, bg: bg}, nil
}

// texture implements gpu.Texture over a hal texture plus its view.
type texture struct {
	device hal.Device
	tex    hal.Texture
	view   hal.TextureView
	width  uint32
	height uint32
	format gputypes.TextureFormat
}

func (t *texture) Width() uint32                  { return t.width }
func (t *texture) Height() uint32                 { return t.height }
func (t *texture) Format() gputypes.TextureFormat { return t.format }

func (t *texture) Destroy() {
	if t.view != nil {
		t.device.DestroyTextureView(t.view)
		t.view = nil
	}
	if t.tex != nil {
		t.device.DestroyTexture(t.tex)
		t.tex = nil
	}
}

// buffer implements gpu.Buffer over a hal buffer.
type buffer struct {
	device hal.Device
	buf    hal.Buffer
	size   uint64
}

func (b *buffer) Size() uint64 { return b.size }

func (b *buffer) Destroy() {
	if b.buf != nil {
		b.device.DestroyBuffer(b.buf)
		b.buf = nil
	}
}

// bindGroup implements gpu.BindGroup over a hal bind group.
type bindGroup struct {
	device hal.Device
	bg     hal.BindGroup
}

func (g *bindGroup) Destroy() {
	if g.bg != nil {
		g.device.DestroyBindGroup(g.bg)
		g.bg = nil
	}
}

// renderPass implements gpu.RenderPass over a hal render pass encoder.
type renderPass struct {
	enc      hal.RenderPassEncoder
	pipeline *Pipeline
}

func (p *renderPass) SetPipeline() {
	p.enc.SetPipeline(p.pipeline.pipeline)
}

func (p *renderPass) SetBindGroup(index uint32, group gpu.BindGroup) {
	if g, ok := group.(*bindGroup); ok {
		p.enc.SetBindGroup(index, g.bg, nil)
	}
}

func (p *renderPass) SetVertexBuffer(slot uint32, buf gpu.Buffer, offset uint64) {
	if b, ok := buf.(*buffer); ok {
		p.enc.SetVertexBuffer(slot, b.buf, offset)
	}
}

func (p *renderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.enc.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}
