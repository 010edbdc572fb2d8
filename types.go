// Package textatlas manages GPU residency for rasterized glyphs and renders
// them as textured quads inside a caller-owned render pass.
//
// The package is organized around a two-phase frame protocol:
//
//	fd, err := renderer.Prepare(regions, resolution, rasterize)
//	...
//	err = renderer.Render(pass, fd, transform)
//
// Prepare resolves every glyph to a region of a cached atlas texture,
// rasterizing and uploading only what is missing, and packs one instance
// record per visible glyph. Render binds the glyph pipeline and replays
// the instances with a viewport transform applied in the vertex shader.
// Pan and zoom therefore only change a uniform; no glyph is re-rasterized
// or re-uploaded for a pure transform change.
//
// All frame-path methods of a renderer must be called from a single
// goroutine. Use one renderer per thread to shard work.
package textatlas

// unknownStr is the string returned for unknown enum values.
const unknownStr = "Unknown"

// ContentKind tells mask glyphs apart from full-color glyphs. The two
// kinds live in separate atlases with different texel formats.
type ContentKind uint8

const (
	// KindMask is an 8-bit alpha coverage glyph (regular outlines).
	// Stored one byte per texel; tinted by the instance color.
	KindMask ContentKind = iota

	// KindColor is a full-color glyph (emoji, embedded bitmaps).
	// Stored four bytes per texel RGBA; instance color is ignored.
	KindColor
)

// String returns the string representation of the content kind.
func (k ContentKind) String() string {
	switch k {
	case KindMask:
		return "Mask"
	case KindColor:
		return "Color"
	default:
		return unknownStr
	}
}

// GlyphKey identifies one rasterized form of a glyph. Two keys are equal
// exactly when the rasterizer would produce identical pixels, so the key
// folds in everything rasterization depends on: font, glyph id, quantized
// size and subpixel bin.
//
// The struct is comparable and used directly as a map key.
type GlyphKey struct {
	// FontID identifies the source font (a hash of the font data).
	FontID uint64

	// GlyphID is the glyph index within the font.
	GlyphID uint16

	// SizeBits is the pixel size quantized to quarter pixels
	// (size * 4, rounded). Sizes above 16383px saturate.
	SizeBits uint16

	// SubX and SubY are subpixel offset bins. With binning disabled
	// both are zero. See PrepareOptions.WithSubpixel.
	SubX uint8
	SubY uint8

	// Kind selects the atlas family the glyph renders into.
	Kind ContentKind
}

// SizeToBits quantizes a pixel size for use in GlyphKey.SizeBits.
func SizeToBits(size float64) uint16 {
	q := int(size*4 + 0.5)
	if q < 0 {
		q = 0
	}
	if q > 0xFFFF {
		q = 0xFFFF
	}
	return uint16(q)
}

// Size returns the pixel size encoded in SizeBits.
func (k GlyphKey) Size() float64 {
	return float64(k.SizeBits) / 4
}

// Bitmap is the output of glyph rasterization: tightly packed pixels plus
// the placement offsets that position the bitmap relative to the glyph
// origin.
//
// Mask bitmaps store one coverage byte per pixel; color bitmaps store
// four premultiplied RGBA bytes per pixel. A bitmap with zero width or
// height is legal and marks a glyph that renders nothing (e.g. a space);
// such glyphs are cached as skip entries and never touch an atlas.
type Bitmap struct {
	Width  int
	Height int
	Kind   ContentKind

	// Left and Top place the bitmap relative to the glyph origin:
	// the top-left pixel sits at (origin.x + Left, origin.y - Top).
	Left int
	Top  int

	// Data holds Width*Height texels, row-major, no padding.
	Data []byte
}

// Empty reports whether the bitmap has no pixels.
func (b *Bitmap) Empty() bool {
	return b.Width <= 0 || b.Height <= 0
}

// RasterizeFunc produces the bitmap for a glyph key. Prepare calls it
// exactly once per cache miss. Returning an error skips the remaining
// glyphs of the batch and fails the prepare.
type RasterizeFunc func(GlyphKey) (Bitmap, error)

// Color is a straight-alpha RGBA color packed as 0xRRGGBBAA.
type Color uint32

// NewColor packs the four channels into a Color.
func NewColor(r, g, b, a uint8) Color {
	return Color(uint32(r)<<24 | uint32(g)<<16 | uint32(b)<<8 | uint32(a))
}

// RGBA returns the four channels.
func (c Color) RGBA() (r, g, b, a uint8) {
	return uint8(c >> 24), uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// PositionedGlyph is one glyph placed inside a text region. Positions are
// region-local pixels; the region's Left/Top and the render transform are
// applied later, so a moving region does not invalidate prepared data.
type PositionedGlyph struct {
	Key GlyphKey

	// X, Y is the glyph origin on the baseline, in region-local pixels.
	// Fractional positions participate in subpixel binning.
	X float64
	Y float64

	// Color tints mask glyphs. Ignored for color glyphs.
	Color Color

	// Metadata is an opaque caller value mapped to depth through
	// PrepareOptions.WithDepthFunc.
	Metadata int
}

// Rect is an integer pixel rectangle, used for clip bounds.
type Rect struct {
	MinX, MinY int
	MaxX, MaxY int
}

// Width returns the rectangle width.
func (r Rect) Width() int { return r.MaxX - r.MinX }

// Height returns the rectangle height.
func (r Rect) Height() int { return r.MaxY - r.MinY }

// Empty reports whether the rectangle contains no pixels.
func (r Rect) Empty() bool { return r.MinX >= r.MaxX || r.MinY >= r.MaxY }

// TextRegion is a batch of positioned glyphs sharing an offset, a scale
// and a clip rectangle. One Prepare call accepts any number of regions.
type TextRegion struct {
	// Glyphs are the region's glyphs in draw order.
	Glyphs []PositionedGlyph

	// Left, Top offset the region within the target surface, in pixels.
	Left float64
	Top  float64

	// Scale multiplies glyph positions (not sizes: size is part of the
	// glyph key). 0 means 1.
	Scale float64

	// Bounds clips the region's glyphs, in surface pixels. Glyphs fully
	// outside are dropped; partially covered glyphs are trimmed and
	// their texture window shifted to match.
	Bounds Rect
}

// Transform is the viewport transform applied at render time. It is the
// cheap path for pan and zoom: it goes into a uniform and never triggers
// rasterization or uploads.
type Transform struct {
	TranslationX float32
	TranslationY float32

	// Scale multiplies positions around the origin. 0 means 1.
	Scale float32
}

// scaleOr1 returns the effective scale factor.
func (t Transform) scaleOr1() float32 {
	if t.Scale == 0 {
		return 1
	}
	return t.Scale
}
