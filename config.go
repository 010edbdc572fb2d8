package textatlas

// Config holds atlas and renderer configuration.
type Config struct {
	// AtlasSize is the size of each atlas page (width = height), in
	// texels. Must be a power of 2. Default: 1024
	AtlasSize int

	// MaxTextures caps the number of atlas pages per content kind.
	// When every page is full, eviction fails and the cap is reached,
	// Prepare returns ErrAtlasFull. Default: 8
	MaxTextures int

	// Padding is the gap between glyphs inside a page, in texels,
	// preventing bilinear sampling bleed. Default: 1
	Padding int

	// InitialCapacity is the glyph count the instance buffer starts
	// sized for. The buffer grows on demand. Default: 256
	InitialCapacity int
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		AtlasSize:       1024,
		MaxTextures:     8,
		Padding:         1,
		InitialCapacity: 256,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.AtlasSize < 64 {
		return &ConfigError{Field: "AtlasSize", Reason: "must be at least 64"}
	}
	if c.AtlasSize > 8192 {
		return &ConfigError{Field: "AtlasSize", Reason: "must be at most 8192"}
	}
	if c.AtlasSize&(c.AtlasSize-1) != 0 {
		return &ConfigError{Field: "AtlasSize", Reason: "must be power of 2"}
	}
	if c.MaxTextures < 1 {
		return &ConfigError{Field: "MaxTextures", Reason: "must be at least 1"}
	}
	if c.MaxTextures > 256 {
		return &ConfigError{Field: "MaxTextures", Reason: "must be at most 256"}
	}
	if c.Padding < 0 {
		return &ConfigError{Field: "Padding", Reason: "must be non-negative"}
	}
	if c.Padding >= c.AtlasSize/4 {
		return &ConfigError{Field: "Padding", Reason: "must be less than a quarter of AtlasSize"}
	}
	if c.InitialCapacity < 1 {
		return &ConfigError{Field: "InitialCapacity", Reason: "must be at least 1"}
	}
	return nil
}
