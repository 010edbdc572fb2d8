// Package shaping turns strings into positioned glyphs and glyph keys into
// pixel bitmaps, bridging go-text/typesetting to the atlas residency layer.
//
// The split mirrors the frame protocol of the parent package: a Shaper runs
// once per text change and produces ShapedGlyph slices; a Rasterizer runs
// lazily, only for glyphs the cache has never seen.
package shaping

import (
	"bytes"
	"errors"
	"fmt"
	"hash/fnv"
	"os"

	"github.com/go-text/typesetting/font"

	"github.com/gogpu/textatlas"
)

// ErrEmptyFontData is returned when a FontSource is created from no bytes.
var ErrEmptyFontData = errors.New("shaping: empty font data")

// FontSource represents a loaded font file (TTF or OTF).
// One FontSource can create multiple Face instances at different sizes.
// FontSource is heavyweight and should be shared across the application.
//
// The parsed font.Font is read-only and safe for concurrent use; the
// lightweight font.Face instances derived from it are not, so shapers and
// rasterizers create their own per call site.
type FontSource struct {
	font *font.Font
	id   uint64
}

// NewFontSource parses font data and returns a FontSource.
// The source's ID is a hash of the data, stable across processes, and is
// used as the FontID component of glyph keys.
func NewFontSource(data []byte) (*FontSource, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFontData
	}

	parsed, err := font.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("shaping: parse font: %w", err)
	}

	h := fnv.New64a()
	_, _ = h.Write(data)

	return &FontSource{
		font: parsed.Font,
		id:   h.Sum64(),
	}, nil
}

// NewFontSourceFromFile loads a FontSource from a font file path.
func NewFontSourceFromFile(path string) (*FontSource, error) {
	// #nosec G304 -- Font file path is provided by the user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("shaping: read font file: %w", err)
	}
	return NewFontSource(data)
}

// ID returns the source's stable identifier.
func (s *FontSource) ID() uint64 {
	return s.id
}

// Font exposes the parsed font for advanced callers.
func (s *FontSource) Font() *font.Font {
	return s.font
}

// Face creates a Face at the specified pixel size.
// Face is a lightweight value; create as many as needed.
func (s *FontSource) Face(size float64) *Face {
	return &Face{source: s, size: size}
}

// Face is a FontSource bound to a pixel size. It carries everything a
// Shaper or Rasterizer needs to identify glyphs of this font at this size.
type Face struct {
	source *FontSource
	size   float64
}

// Size returns the pixel size of the face.
func (f *Face) Size() float64 {
	return f.size
}

// Source returns the face's FontSource.
func (f *Face) Source() *FontSource {
	return f.source
}

// Glyph looks up the glyph index for a rune. The second return is false
// when the font has no glyph for it.
func (f *Face) Glyph(r rune) (uint16, bool) {
	gid, ok := font.NewFace(f.source.font).NominalGlyph(r)
	if !ok || gid > 0xFFFF {
		return 0, false
	}
	return uint16(gid), true
}

// Key builds a GlyphKey for a glyph of this face. Subpixel bins are left
// zero; the prepare phase overrides them when binning is enabled.
func (f *Face) Key(gid uint16, kind textatlas.ContentKind) textatlas.GlyphKey {
	return textatlas.GlyphKey{
		FontID:   f.source.id,
		GlyphID:  gid,
		SizeBits: textatlas.SizeToBits(f.size),
		Kind:     kind,
	}
}
