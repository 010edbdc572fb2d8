package textatlas

// ColorMode selects how instance colors reach the shader.
type ColorMode int

const (
	// ColorModeWeb passes colors through unchanged. Matches what
	// browsers do with CSS colors on non-linear surfaces.
	ColorModeWeb ColorMode = iota

	// ColorModeAccurate converts sRGB colors to linear in the shader,
	// for rendering into linear-colorspace surfaces.
	ColorModeAccurate
)

// String returns the string representation of the color mode.
func (m ColorMode) String() string {
	switch m {
	case ColorModeWeb:
		return "Web"
	case ColorModeAccurate:
		return "Accurate"
	default:
		return unknownStr
	}
}

// DepthFunc maps a glyph's caller-supplied metadata to a depth value
// written into the instance record. The default maps everything to 0.
type DepthFunc func(metadata int) float32

// Option configures a TextRenderer during creation.
type Option func(*rendererOptions)

// rendererOptions holds optional configuration for TextRenderer creation.
type rendererOptions struct {
	subpixel  bool
	pixelSnap bool
	colorMode ColorMode
	depthFunc DepthFunc
}

// defaultRendererOptions returns the default renderer options.
func defaultRendererOptions() rendererOptions {
	return rendererOptions{
		subpixel:  true,
		pixelSnap: false,
		colorMode: ColorModeWeb,
		depthFunc: nil, // all-zero depth
	}
}

// WithSubpixel enables or disables horizontal subpixel positioning.
// When enabled (the default), fractional glyph positions are quantized
// into four bins and each bin is rasterized separately, which keeps text
// crisp at small sizes. Disable on high-DPI displays to quarter the
// number of distinct cache entries.
func WithSubpixel(enabled bool) Option {
	return func(o *rendererOptions) {
		o.subpixel = enabled
	}
}

// WithPixelSnap rounds glyph positions to whole pixels during prepare.
// Implies no subpixel variation for the snapped axis.
func WithPixelSnap(enabled bool) Option {
	return func(o *rendererOptions) {
		o.pixelSnap = enabled
	}
}

// WithColorMode sets the color handling mode. Default: ColorModeWeb.
func WithColorMode(mode ColorMode) Option {
	return func(o *rendererOptions) {
		o.colorMode = mode
	}
}

// WithDepthFunc sets the metadata-to-depth mapping used when packing
// instances. By default every glyph gets depth 0.
func WithDepthFunc(f DepthFunc) Option {
	return func(o *rendererOptions) {
		o.depthFunc = f
	}
}
