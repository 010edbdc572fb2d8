package textatlas

import (
	"errors"
	"fmt"
)

// Sentinel errors for the textatlas package.
var (
	// ErrAtlasFull is returned by Prepare when a glyph cannot be placed:
	// every atlas of its kind is full, eviction freed nothing (all
	// resident entries are in use this frame), and the atlas count has
	// reached MaxTextures.
	ErrAtlasFull = errors.New("textatlas: atlas full")

	// ErrStaleFrame is returned by Render when the frame data was
	// prepared before a cache-mutating operation (a later Prepare or a
	// trim) and may reference reclaimed atlas regions.
	ErrStaleFrame = errors.New("textatlas: stale frame data")

	// ErrNoFrame is returned by Render when called before any
	// successful Prepare.
	ErrNoFrame = errors.New("textatlas: no prepared frame")

	// ErrAtlasGone is returned by Render when frame data references an
	// atlas that no longer exists. Unreachable when Prepare and Render
	// are sequenced correctly; kept as a guard.
	ErrAtlasGone = errors.New("textatlas: atlas no longer exists")

	// ErrGlyphOversized is returned when a single glyph bitmap is
	// larger than an empty atlas page and can never be placed.
	ErrGlyphOversized = errors.New("textatlas: glyph larger than atlas")
)

// ConfigError reports an invalid configuration field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("textatlas: invalid config: %s %s", e.Field, e.Reason)
}
