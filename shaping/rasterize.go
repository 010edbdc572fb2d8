package shaping

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"

	// Embedded color glyphs are stored as compressed images (CBDT/sbix).
	_ "image/jpeg"
	_ "image/png"

	"github.com/go-text/typesetting/font"
	ot "github.com/go-text/typesetting/font/opentype"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	"golang.org/x/image/vector"

	"github.com/gogpu/textatlas"
)

// ErrUnknownFont is returned when a glyph key references a FontID that was
// never registered with the Rasterizer.
var ErrUnknownFont = errors.New("shaping: unknown font id")

// Rasterizer turns glyph keys into bitmaps, resolving fonts by the FontID
// embedded in the key. Outline glyphs become 8-bit coverage masks; embedded
// bitmap glyphs (emoji) become premultiplied RGBA.
//
// Rasterizer is not safe for concurrent use. The prepare phase calls it
// from a single goroutine, which lets it reuse its scanline rasterizer and
// per-font caches across glyphs.
type Rasterizer struct {
	sources map[uint64]*FontSource
	faces   map[uint64]*font.Face
	ras     vector.Rasterizer
}

// NewRasterizer creates a Rasterizer with the given font sources
// registered. More can be added later with AddSource.
func NewRasterizer(sources ...*FontSource) *Rasterizer {
	r := &Rasterizer{
		sources: make(map[uint64]*FontSource, len(sources)),
		faces:   make(map[uint64]*font.Face, len(sources)),
	}
	for _, s := range sources {
		r.AddSource(s)
	}
	return r
}

// AddSource registers a font source so keys carrying its ID resolve.
func (r *Rasterizer) AddSource(s *FontSource) {
	r.sources[s.id] = s
}

// Func adapts the Rasterizer to the callback type the prepare phase takes.
func (r *Rasterizer) Func() textatlas.RasterizeFunc {
	return r.Rasterize
}

// Rasterize renders the glyph the key describes. Glyphs with no visible
// pixels (spaces, missing glyphs) return an empty bitmap and no error; the
// cache records those as skip entries.
func (r *Rasterizer) Rasterize(key textatlas.GlyphKey) (textatlas.Bitmap, error) {
	source, ok := r.sources[key.FontID]
	if !ok {
		return textatlas.Bitmap{}, fmt.Errorf("shaping: font %#x: %w", key.FontID, ErrUnknownFont)
	}

	gtFace, ok := r.faces[key.FontID]
	if !ok {
		gtFace = font.NewFace(source.font)
		r.faces[key.FontID] = gtFace
	}

	data := gtFace.GlyphData(font.GID(key.GlyphID))
	switch g := data.(type) {
	case font.GlyphOutline:
		if key.Kind != textatlas.KindMask {
			return textatlas.Bitmap{}, nil
		}
		return r.rasterizeOutline(g, gtFace, key)
	case font.GlyphBitmap:
		if key.Kind != textatlas.KindColor {
			return textatlas.Bitmap{}, nil
		}
		return rasterizeBitmap(g, key.Size())
	default:
		// No renderable data (space, .notdef without contours, SVG).
		return textatlas.Bitmap{}, nil
	}
}

// GlyphKind reports which atlas family a glyph of this face belongs to.
// Use it when building keys for fonts that mix outlines and emoji.
func GlyphKind(face *Face, gid uint16) textatlas.ContentKind {
	gtFace := font.NewFace(face.source.font)
	if _, ok := gtFace.GlyphData(font.GID(gid)).(font.GlyphBitmap); ok {
		return textatlas.KindColor
	}
	return textatlas.KindMask
}

// rasterizeOutline scan-converts an outline into an alpha mask. Contours
// arrive in font units with Y up; they are scaled to pixels, offset to the
// key's subpixel bin, and flipped to raster orientation.
func (r *Rasterizer) rasterizeOutline(g font.GlyphOutline, gtFace *font.Face, key textatlas.GlyphKey) (textatlas.Bitmap, error) {
	if len(g.Segments) == 0 {
		return textatlas.Bitmap{}, nil
	}

	scale := float32(key.Size()) / float32(gtFace.Upem())
	xOff := float32(textatlas.SubpixelOffset(key.SubX, textatlas.Subpixel4))

	// Control points bound the curve, so scanning every argument point
	// gives a conservative pixel box.
	minX := float32(math.Inf(1))
	minY := float32(math.Inf(1))
	maxX := float32(math.Inf(-1))
	maxY := float32(math.Inf(-1))
	for _, seg := range g.Segments {
		for _, p := range seg.Args[:segmentArgs(seg.Op)] {
			x := p.X*scale + xOff
			y := p.Y * scale
			minX = min(minX, x)
			minY = min(minY, y)
			maxX = max(maxX, x)
			maxY = max(maxY, y)
		}
	}

	left := int(math.Floor(float64(minX)))
	bottom := int(math.Floor(float64(minY)))
	top := int(math.Ceil(float64(maxY)))
	right := int(math.Ceil(float64(maxX)))

	w := right - left
	h := top - bottom
	if w <= 0 || h <= 0 {
		return textatlas.Bitmap{}, nil
	}

	// Map a font-space point into the raster's Y-down pixel space.
	tx := func(p font.SegmentPoint) (float32, float32) {
		return p.X*scale + xOff - float32(left), float32(top) - p.Y*scale
	}

	r.ras.Reset(w, h)
	r.ras.DrawOp = draw.Src
	for _, seg := range g.Segments {
		switch seg.Op {
		case ot.SegmentOpMoveTo:
			x, y := tx(seg.Args[0])
			r.ras.MoveTo(x, y)
		case ot.SegmentOpLineTo:
			x, y := tx(seg.Args[0])
			r.ras.LineTo(x, y)
		case ot.SegmentOpQuadTo:
			cx, cy := tx(seg.Args[0])
			x, y := tx(seg.Args[1])
			r.ras.QuadTo(cx, cy, x, y)
		case ot.SegmentOpCubeTo:
			c1x, c1y := tx(seg.Args[0])
			c2x, c2y := tx(seg.Args[1])
			x, y := tx(seg.Args[2])
			r.ras.CubeTo(c1x, c1y, c2x, c2y, x, y)
		}
	}

	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	r.ras.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})

	return textatlas.Bitmap{
		Width:  w,
		Height: h,
		Kind:   textatlas.KindMask,
		Left:   left,
		Top:    top,
		Data:   mask.Pix,
	}, nil
}

// segmentArgs returns how many of a segment's three argument slots its
// opcode uses.
func segmentArgs(op ot.SegmentOp) int {
	switch op {
	case ot.SegmentOpQuadTo:
		return 2
	case ot.SegmentOpCubeTo:
		return 3
	default:
		return 1
	}
}

// rasterizeBitmap decodes an embedded bitmap glyph and scales it to the
// requested pixel size, preserving aspect ratio.
func rasterizeBitmap(g font.GlyphBitmap, size float64) (textatlas.Bitmap, error) {
	if len(g.Data) == 0 || g.Width <= 0 || g.Height <= 0 {
		return textatlas.Bitmap{}, nil
	}
	if g.Format == font.BlackAndWhite {
		// 1-bit strikes are rare and low quality; treat as invisible.
		return textatlas.Bitmap{}, nil
	}

	img, _, err := image.Decode(bytes.NewReader(g.Data))
	if err != nil {
		return textatlas.Bitmap{}, fmt.Errorf("shaping: decode bitmap glyph: %w", err)
	}

	h := int(size + 0.5)
	if h < 1 {
		h = 1
	}
	w := int(size*float64(g.Width)/float64(g.Height) + 0.5)
	if w < 1 {
		w = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)

	return textatlas.Bitmap{
		Width:  w,
		Height: h,
		Kind:   textatlas.KindColor,
		Left:   0,
		Top:    h,
		Data:   dst.Pix,
	}, nil
}
