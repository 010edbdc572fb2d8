package shaping

import (
	"sync"

	"github.com/go-text/typesetting/di"
	"github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	gotext "github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"
)

// ShapedGlyph is one glyph produced by shaping, positioned relative to the
// start of its text in pixels. X grows rightward and Y is the baseline
// offset, positive downward.
type ShapedGlyph struct {
	// GID is the glyph index within the face's font.
	GID uint16

	// Cluster is the rune index of the character this glyph represents.
	// Ligatures map several runes to one glyph; all keep the first index.
	Cluster int

	// X and Y position the glyph origin relative to the run start.
	X float64
	Y float64

	// XAdvance and YAdvance are the pen movements after this glyph.
	XAdvance float64
	YAdvance float64
}

// Shaper converts a single-direction text run into positioned glyphs.
type Shaper interface {
	Shape(text string, face *Face, dir Direction) []ShapedGlyph
}

// GoTextShaper shapes text with go-text/typesetting's HarfBuzz port. It
// handles kerning, ligatures, and complex scripts.
//
// GoTextShaper is safe for concurrent use: the HarfbuzzShaper instances
// (which are not) are pooled, and each Shape call derives its own
// lightweight font.Face from the thread-safe parsed font.
type GoTextShaper struct {
	shaperPool sync.Pool
	segmenter  Segmenter
}

// NewGoTextShaper creates a new GoTextShaper.
func NewGoTextShaper() *GoTextShaper {
	return &GoTextShaper{
		shaperPool: sync.Pool{
			New: func() any {
				return &gotext.HarfbuzzShaper{}
			},
		},
	}
}

// Shape implements the Shaper interface for a run of uniform direction.
// The script is detected from the first strong character of the run.
func (s *GoTextShaper) Shape(text string, face *Face, dir Direction) []ShapedGlyph {
	if text == "" || face == nil {
		return nil
	}

	runes := []rune(text)
	gtDir := di.DirectionLTR
	if dir == DirectionRTL {
		gtDir = di.DirectionRTL
	}

	// font.Face is not safe for concurrent use; font.NewFace is cheap.
	gtFace := font.NewFace(face.source.font)

	input := gotext.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: gtDir,
		Face:      gtFace,
		Size:      floatToFixed(face.size),
		Script:    detectScript(runes),
		Language:  language.NewLanguage("en"),
	}

	hb := s.shaperPool.Get().(*gotext.HarfbuzzShaper)
	output := hb.Shape(input)
	s.shaperPool.Put(hb)

	return convertGlyphs(output.Glyphs)
}

// ShapeText segments mixed-direction text with the Unicode bidi algorithm
// and shapes each run, concatenating the results in visual order. Cluster
// indices refer to the full string.
func (s *GoTextShaper) ShapeText(text string, face *Face) []ShapedGlyph {
	segments := s.segmenter.Segment(text)
	if len(segments) == 0 {
		return nil
	}
	if len(segments) == 1 && segments[0].Direction == DirectionLTR {
		return s.Shape(text, face, DirectionLTR)
	}

	var glyphs []ShapedGlyph
	var penX float64
	for _, seg := range segments {
		run := s.Shape(seg.Text, face, seg.Direction)
		clusterBase := runeIndex(text, seg.Start)
		for _, g := range run {
			g.X += penX
			g.Cluster += clusterBase
			glyphs = append(glyphs, g)
		}
		penX += runAdvance(run)
	}
	return glyphs
}

// runAdvance returns how far a shaped run moves the pen. This is the sum
// of advances, not the last glyph's position: a glyph's X may carry an
// XOffset (combining marks), which moves the glyph but not the pen, so it
// must not leak into the next segment.
func runAdvance(run []ShapedGlyph) float64 {
	var w float64
	for _, g := range run {
		w += g.XAdvance
	}
	return w
}

// runeIndex converts a byte offset into a rune index.
func runeIndex(text string, byteOff int) int {
	n := 0
	for i := range text {
		if i >= byteOff {
			break
		}
		n++
	}
	return n
}

// detectScript returns the script of the first non-space rune, falling
// back to Latin. Mixed-script runs should be split before shaping.
func detectScript(runes []rune) language.Script {
	for _, r := range runes {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		return language.LookupScript(r)
	}
	return language.Latin
}

// floatToFixed converts a float64 pixel size to fixed.Int26_6.
func floatToFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(v * 64)
}

// fixedToFloat converts a fixed.Int26_6 value to float64.
func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64.0
}

// convertGlyphs flattens go-text output glyphs into ShapedGlyphs with
// absolute pen positions.
func convertGlyphs(glyphs []gotext.Glyph) []ShapedGlyph {
	if len(glyphs) == 0 {
		return nil
	}

	result := make([]ShapedGlyph, len(glyphs))
	var x, y float64
	for i, g := range glyphs {
		result[i] = ShapedGlyph{
			GID:      uint16(g.GlyphID), //nolint:gosec // glyph indices fit uint16 for TTF/OTF fonts
			Cluster:  g.TextIndex(),
			X:        x + fixedToFloat(g.XOffset),
			Y:        y - fixedToFloat(g.YOffset),
			XAdvance: fixedToFloat(g.XAdvance),
			YAdvance: fixedToFloat(g.YAdvance),
		}
		x += fixedToFloat(g.XAdvance)
		y += fixedToFloat(g.YAdvance)
	}
	return result
}
