package textatlas

import (
	"encoding/binary"
	"math"
)

// instanceStride is the byte stride per glyph instance in the glyph
// pipeline. Matches GlyphInstance in the WGSL shader:
//
//	location 0: pos        (vec2<i32>)  surface position, pixels
//	location 1: dim        (vec2<u32>)  quad size packed as 2 x u16
//	location 2: uv         (vec2<u32>)  atlas origin packed as 2 x u16
//	location 3: color      (u32)        RGBA8
//	location 4: kind_flags (vec2<u32>)  content kind, colorspace as 2 x u16
//	location 5: depth      (f32)
const instanceStride = 28

// glyphInstance is one glyph quad, expanded to four vertices by the
// vertex shader.
type glyphInstance struct {
	x, y          int32
	width, height uint16
	atlasX, atlasY uint16
	color         Color
	kind          ContentKind
	srgb          bool
	depth         float32
}

// writeInstance packs one instance record, little-endian.
func writeInstance(buf []byte, in *glyphInstance) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(in.x))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(in.y))
	binary.LittleEndian.PutUint16(buf[8:10], in.width)
	binary.LittleEndian.PutUint16(buf[10:12], in.height)
	binary.LittleEndian.PutUint16(buf[12:14], in.atlasX)
	binary.LittleEndian.PutUint16(buf[14:16], in.atlasY)
	binary.LittleEndian.PutUint32(buf[16:20], uint32(in.color))
	binary.LittleEndian.PutUint16(buf[20:22], uint16(in.kind))
	var srgb uint16
	if in.srgb {
		srgb = 1
	}
	binary.LittleEndian.PutUint16(buf[22:24], srgb)
	binary.LittleEndian.PutUint32(buf[24:28], math.Float32bits(in.depth))
}

// copyBufferAlignment is the required alignment for buffer copy sizes.
const copyBufferAlignment = 4

// nextBufferSize grows a byte size to the next power of two of the copy
// alignment, so repeated small growth does not reallocate every frame.
func nextBufferSize(size int) int {
	align := copyBufferAlignment
	if size <= align {
		return align
	}
	// Round up to a power of two, then to the alignment.
	n := 1
	for n < size {
		n <<= 1
	}
	return (n + align - 1) &^ (align - 1)
}

// uniformStride is the byte size of the viewport uniform. Matches Params
// in the WGSL shader, padded to 16-byte alignment:
//
//	resolution  vec2<f32>
//	translation vec2<f32>
//	scale       f32
//	(12 bytes padding)
const uniformStride = 32

// writeUniform packs the viewport uniform, little-endian.
func writeUniform(buf []byte, resW, resH uint32, t Transform) {
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(float32(resW)))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(float32(resH)))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(t.TranslationX))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(t.TranslationY))
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(t.scaleOr1()))
	binary.LittleEndian.PutUint32(buf[20:24], 0)
	binary.LittleEndian.PutUint32(buf[24:28], 0)
	binary.LittleEndian.PutUint32(buf[28:32], 0)
}
