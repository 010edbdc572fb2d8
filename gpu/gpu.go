// Package gpu defines the narrow device interface the atlas and renderer
// are written against.
//
// The package deliberately exposes only the operations glyph rendering
// needs: creating textures and buffers, uploading data, building bind
// groups, and recording draws into an externally owned render pass. A
// production backend over wgpu/hal lives in gpu/wgpuhal; tests
// substitute an in-memory fake.
package gpu

import (
	"github.com/gogpu/gputypes"
)

// TextureDescriptor describes a 2D texture to create.
type TextureDescriptor struct {
	// Label is a debug name attached to the texture.
	Label string

	// Width and Height are the texture dimensions in texels.
	Width  uint32
	Height uint32

	// Format is the texel format. Atlas pages use
	// gputypes.TextureFormatR8Unorm for alpha masks and
	// gputypes.TextureFormatRGBA8Unorm for color bitmaps.
	Format gputypes.TextureFormat
}

// BufferDescriptor describes a GPU buffer to create.
type BufferDescriptor struct {
	// Label is a debug name attached to the buffer.
	Label string

	// Size is the buffer size in bytes.
	Size uint64

	// Usage is the buffer usage bitmask, e.g.
	// gputypes.BufferUsageVertex|gputypes.BufferUsageCopyDst.
	Usage gputypes.BufferUsage
}

// Texture is a GPU texture owned by the atlas layer.
type Texture interface {
	// Width returns the texture width in texels.
	Width() uint32

	// Height returns the texture height in texels.
	Height() uint32

	// Format returns the texel format.
	Format() gputypes.TextureFormat

	// Destroy releases the texture. The texture must not be used after.
	Destroy()
}

// Buffer is a GPU buffer owned by the renderer.
type Buffer interface {
	// Size returns the buffer size in bytes.
	Size() uint64

	// Destroy releases the buffer. The buffer must not be used after.
	Destroy()
}

// BindGroup is an opaque binding of resources to a pipeline group slot.
type BindGroup interface {
	// Destroy releases the bind group.
	Destroy()
}

// Device creates and uploads the resources glyph rendering needs.
//
// All methods must be called from the thread that drives frame
// preparation; implementations are not required to be safe for
// concurrent use.
type Device interface {
	// CreateTexture creates a 2D texture usable as a sampled binding
	// and as a copy destination.
	CreateTexture(desc *TextureDescriptor) (Texture, error)

	// WriteTexture uploads tightly packed texel data into the region
	// (x, y)-(x+w, y+h) of dst. len(data) must equal w*h*bytesPerTexel
	// for the texture's format.
	WriteTexture(dst Texture, x, y, w, h uint32, data []byte) error

	// CreateBuffer creates a GPU buffer.
	CreateBuffer(desc *BufferDescriptor) (Buffer, error)

	// WriteBuffer uploads data into dst at the given byte offset.
	WriteBuffer(dst Buffer, offset uint64, data []byte) error

	// CreateAtlasGroup builds the per-atlas bind group: the atlas
	// texture view plus the shared glyph sampler.
	CreateAtlasGroup(tex Texture) (BindGroup, error)

	// CreateUniformGroup builds the per-renderer bind group holding
	// the transform uniform buffer.
	CreateUniformGroup(buf Buffer) (BindGroup, error)
}

// RenderPass records glyph draws into a render pass owned by the caller.
//
// Implementations carry the glyph pipeline internally; SetPipeline binds
// it together with its fixed state (premultiplied alpha blending,
// triangle-strip topology).
type RenderPass interface {
	// SetPipeline binds the glyph render pipeline.
	SetPipeline()

	// SetBindGroup binds a group at the given index. Index 0 is the
	// uniform group, index 1 the atlas group.
	SetBindGroup(index uint32, group BindGroup)

	// SetVertexBuffer binds the instance buffer at the given slot.
	SetVertexBuffer(slot uint32, buf Buffer, offset uint64)

	// Draw issues a non-indexed draw call.
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
}

// TexelSize returns the bytes per texel for the formats atlas pages use,
// or 0 for an unsupported format.
func TexelSize(format gputypes.TextureFormat) uint32 {
	switch format {
	case gputypes.TextureFormatR8Unorm:
		return 1
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatBGRA8Unorm:
		return 4
	default:
		return 0
	}
}
