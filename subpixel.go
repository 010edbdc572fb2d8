package textatlas

// SubpixelMode controls subpixel glyph positioning. Rendering a glyph at
// a fractional pixel position requires a separate rasterization per
// fractional offset; the mode bounds how many such variants the cache
// holds per glyph.
type SubpixelMode int

const (
	// SubpixelNone disables subpixel positioning.
	// Glyphs snap to whole pixels. Fastest but lower quality.
	SubpixelNone SubpixelMode = 0

	// Subpixel4 uses 4 subpixel positions (0.0, 0.25, 0.5, 0.75).
	// Good balance of quality and cache size. The default.
	Subpixel4 SubpixelMode = 4
)

// String returns the string representation of the subpixel mode.
func (m SubpixelMode) String() string {
	switch m {
	case SubpixelNone:
		return "None"
	case Subpixel4:
		return "Subpixel4"
	default:
		return unknownStr
	}
}

// IsEnabled returns true if subpixel positioning is enabled.
func (m SubpixelMode) IsEnabled() bool {
	return m > 0
}

// Divisions returns the number of subpixel divisions.
// Returns 1 for SubpixelNone.
func (m SubpixelMode) Divisions() int {
	if m <= 0 {
		return 1
	}
	return int(m)
}

// Quantize splits a fractional position into an integer pixel position
// and a subpixel bin.
//
// With Subpixel4:
//   - pos=10.0 returns (10, 0)
//   - pos=10.25 returns (10, 1)
//   - pos=10.99 returns (10, 3)
func Quantize(pos float64, mode SubpixelMode) (intPos int, bin uint8) {
	if !mode.IsEnabled() {
		// Round half up; truncation would pull negative positions
		// toward zero.
		p := pos + 0.5
		intPart := int(p)
		if p < 0 && p != float64(intPart) {
			intPart--
		}
		return intPart, 0
	}

	intPart := int(pos)
	if pos < 0 && pos != float64(intPart) {
		intPart--
	}
	frac := pos - float64(intPart)

	b := int(frac * float64(mode.Divisions()))
	if b >= mode.Divisions() {
		b = mode.Divisions() - 1
	}
	if b < 0 {
		b = 0
	}
	return intPart, uint8(b)
}

// SubpixelOffset returns the fractional rendering offset for a bin.
// For Subpixel4: 0 -> 0.0, 1 -> 0.25, 2 -> 0.5, 3 -> 0.75.
func SubpixelOffset(bin uint8, mode SubpixelMode) float64 {
	if !mode.IsEnabled() {
		return 0
	}
	return float64(bin) / float64(mode.Divisions())
}
