// Package packer provides 2D rectangle packing for glyph atlas pages.
//
// The packing problem here is narrow: many small, similarly-sized
// rectangles placed into a fixed-size square texture, with individual
// rectangles released again when the owning glyph is evicted. The shelf
// algorithm handles this well without the bookkeeping cost of a full
// guillotine or skyline packer.
package packer

// Rect is a placed rectangle inside an atlas page.
// Coordinates are in texels from the top-left corner.
type Rect struct {
	X int
	Y int
	W int
	H int
}

// Allocator places rectangles into a fixed-size 2D area.
type Allocator interface {
	// Allocate finds space for a w x h rectangle.
	// Returns the placed rectangle and true, or a zero Rect and false
	// if no space remains.
	Allocate(w, h int) (Rect, bool)

	// Free releases a rectangle previously returned by Allocate,
	// making its space available for reuse. Returns false if the
	// rectangle is not a live allocation.
	Free(r Rect) bool

	// Reset discards all allocations.
	Reset()

	// Utilization returns the fraction of the area in use (0.0 to 1.0).
	Utilization() float64
}
