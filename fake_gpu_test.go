package textatlas

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/textatlas/gpu"
)

// fakeDevice is an in-memory gpu.Device recording every call, used to
// assert upload behavior without a GPU.
type fakeDevice struct {
	textures []*fakeTexture
	buffers  []*fakeBuffer

	textureWrites int
	bufferWrites  int

	failTexture bool
	failWrite   bool
}

type fakeTexture struct {
	label     string
	w, h      uint32
	format    gputypes.TextureFormat
	pixels    []byte
	destroyed bool
}

func (t *fakeTexture) Width() uint32                  { return t.w }
func (t *fakeTexture) Height() uint32                 { return t.h }
func (t *fakeTexture) Format() gputypes.TextureFormat { return t.format }
func (t *fakeTexture) Destroy()                       { t.destroyed = true }

type fakeBuffer struct {
	label     string
	data      []byte
	destroyed bool
}

func (b *fakeBuffer) Size() uint64 { return uint64(len(b.data)) }
func (b *fakeBuffer) Destroy()     { b.destroyed = true }

type fakeGroup struct {
	tex       *fakeTexture
	buf       *fakeBuffer
	destroyed bool
}

func (g *fakeGroup) Destroy() { g.destroyed = true }

func newFakeDevice() *fakeDevice { return &fakeDevice{} }

func (d *fakeDevice) CreateTexture(desc *gpu.TextureDescriptor) (gpu.Texture, error) {
	if d.failTexture {
		return nil, fmt.Errorf("fake: texture creation disabled")
	}
	t := &fakeTexture{
		label:  desc.Label,
		w:      desc.Width,
		h:      desc.Height,
		format: desc.Format,
		pixels: make([]byte, desc.Width*desc.Height*gpu.TexelSize(desc.Format)),
	}
	d.textures = append(d.textures, t)
	return t, nil
}

func (d *fakeDevice) WriteTexture(dst gpu.Texture, x, y, w, h uint32, data []byte) error {
	if d.failWrite {
		return fmt.Errorf("fake: writes disabled")
	}
	t := dst.(*fakeTexture)
	texel := gpu.TexelSize(t.format)
	if uint32(len(data)) != w*h*texel {
		return fmt.Errorf("fake: write size %d, want %d", len(data), w*h*texel)
	}
	if x+w > t.w || y+h > t.h {
		return fmt.Errorf("fake: write out of bounds")
	}
	for row := uint32(0); row < h; row++ {
		dstOff := ((y+row)*t.w + x) * texel
		srcOff := row * w * texel
		copy(t.pixels[dstOff:dstOff+w*texel], data[srcOff:srcOff+w*texel])
	}
	d.textureWrites++
	return nil
}

func (d *fakeDevice) CreateBuffer(desc *gpu.BufferDescriptor) (gpu.Buffer, error) {
	b := &fakeBuffer{label: desc.Label, data: make([]byte, desc.Size)}
	d.buffers = append(d.buffers, b)
	return b, nil
}

func (d *fakeDevice) WriteBuffer(dst gpu.Buffer, offset uint64, data []byte) error {
	b := dst.(*fakeBuffer)
	if offset+uint64(len(data)) > uint64(len(b.data)) {
		return fmt.Errorf("fake: buffer write out of bounds")
	}
	copy(b.data[offset:], data)
	d.bufferWrites++
	return nil
}

func (d *fakeDevice) CreateAtlasGroup(tex gpu.Texture) (gpu.BindGroup, error) {
	return &fakeGroup{tex: tex.(*fakeTexture)}, nil
}

func (d *fakeDevice) CreateUniformGroup(buf gpu.Buffer) (gpu.BindGroup, error) {
	return &fakeGroup{buf: buf.(*fakeBuffer)}, nil
}

// fakePass records draw commands.
type fakePass struct {
	pipelineSet int
	groups      map[uint32]gpu.BindGroup
	vertexBuf   gpu.Buffer
	draws       []fakeDraw
}

type fakeDraw struct {
	vertexCount   uint32
	instanceCount uint32
	firstInstance uint32
	atlasGroup    gpu.BindGroup
}

func newFakePass() *fakePass {
	return &fakePass{groups: make(map[uint32]gpu.BindGroup)}
}

func (p *fakePass) SetPipeline() { p.pipelineSet++ }

func (p *fakePass) SetBindGroup(index uint32, group gpu.BindGroup) {
	p.groups[index] = group
}

func (p *fakePass) SetVertexBuffer(slot uint32, buf gpu.Buffer, offset uint64) {
	p.vertexBuf = buf
}

func (p *fakePass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.draws = append(p.draws, fakeDraw{
		vertexCount:   vertexCount,
		instanceCount: instanceCount,
		firstInstance: firstInstance,
		atlasGroup:    p.groups[1],
	})
}

// solidMask returns a rasterize func producing a w x h mask bitmap for
// every key, counting invocations.
func solidMask(w, h int, calls *int) RasterizeFunc {
	return func(key GlyphKey) (Bitmap, error) {
		if calls != nil {
			*calls++
		}
		data := make([]byte, w*h)
		for i := range data {
			data[i] = 0xFF
		}
		return Bitmap{Width: w, Height: h, Kind: key.Kind, Left: 0, Top: h, Data: data}, nil
	}
}

// maskKey builds a mask glyph key for tests.
func maskKey(id uint16) GlyphKey {
	return GlyphKey{FontID: 1, GlyphID: id, SizeBits: SizeToBits(16), Kind: KindMask}
}
