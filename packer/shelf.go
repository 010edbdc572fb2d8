package packer

// ShelfAllocator implements shelf-based rectangle packing with free-slot
// reuse. Rectangles are organized in horizontal "shelves": each shelf has
// a fixed height (set by the tallest item placed so far) and items are
// placed left-to-right until the shelf is full, then a new shelf is opened
// below.
//
// Unlike a pure bump allocator, freed rectangles are recorded per shelf
// and handed out again to later allocations of compatible size. A freed
// slot keeps its shelf's height, so reuse works best when glyph heights
// cluster, which they do for text rendered at a handful of sizes.
type ShelfAllocator struct {
	width   int
	height  int
	padding int
	shelves []shelf

	usedArea int
}

// shelf is a horizontal strip of the atlas.
type shelf struct {
	y      int    // Y position of the shelf top
	height int    // height of the tallest item placed so far
	x      int    // bump frontier: next free X position
	free   []slot // reusable gaps left by freed items, sorted by x
}

// slot is a reusable gap inside a shelf.
type slot struct {
	x int
	w int // padded width
}

// NewShelfAllocator creates an allocator for the given area.
// Padding is added to the right and bottom of every item so that
// bilinear sampling never bleeds between neighbors.
func NewShelfAllocator(width, height, padding int) *ShelfAllocator {
	return &ShelfAllocator{
		width:   width,
		height:  height,
		padding: padding,
		shelves: make([]shelf, 0, 16),
	}
}

// Allocate finds space for a w x h rectangle.
//
// The search order is:
//  1. a free slot on a shelf of sufficient height
//  2. the bump frontier of a shelf of sufficient height
//  3. extending the last shelf, if the item is taller than it
//  4. a new shelf below the last one
func (a *ShelfAllocator) Allocate(w, h int) (Rect, bool) {
	if w <= 0 || h <= 0 {
		return Rect{}, false
	}

	paddedW := w + a.padding
	paddedH := h + a.padding

	// Pass 1: reuse a freed slot. Exact-width gaps are preferred;
	// a wider gap is split, leaving the remainder free.
	for i := range a.shelves {
		sh := &a.shelves[i]
		if h > sh.height {
			continue
		}
		for j := range sh.free {
			if sh.free[j].w < paddedW {
				continue
			}
			x := sh.free[j].x
			if sh.free[j].w == paddedW {
				sh.free = append(sh.free[:j], sh.free[j+1:]...)
			} else {
				sh.free[j].x += paddedW
				sh.free[j].w -= paddedW
			}
			a.usedArea += w * h
			return Rect{X: x, Y: sh.y, W: w, H: h}, true
		}
	}

	// Pass 2: bump allocation on an existing shelf.
	for i := range a.shelves {
		sh := &a.shelves[i]
		if sh.x+paddedW > a.width {
			continue
		}
		if h > sh.height {
			// Taller than the shelf. The last shelf can grow downward
			// if there is room; interior shelves cannot.
			if i == len(a.shelves)-1 && sh.y+paddedH <= a.height {
				sh.height = h
				r := Rect{X: sh.x, Y: sh.y, W: w, H: h}
				sh.x += paddedW
				a.usedArea += w * h
				return r, true
			}
			continue
		}
		r := Rect{X: sh.x, Y: sh.y, W: w, H: h}
		sh.x += paddedW
		a.usedArea += w * h
		return r, true
	}

	// Pass 3: open a new shelf.
	newY := 0
	if len(a.shelves) > 0 {
		last := &a.shelves[len(a.shelves)-1]
		newY = last.y + last.height + a.padding
	}
	if newY+paddedH > a.height || paddedW > a.width {
		return Rect{}, false
	}
	a.shelves = append(a.shelves, shelf{
		y:      newY,
		height: h,
		x:      paddedW,
	})
	a.usedArea += w * h
	return Rect{X: 0, Y: newY, W: w, H: h}, true
}

// Free releases a previously allocated rectangle. The freed span is
// merged with adjacent free slots, and a span that touches the bump
// frontier retracts it instead of becoming a slot.
func (a *ShelfAllocator) Free(r Rect) bool {
	sh := a.findShelf(r.Y)
	if sh == nil || r.H > sh.height {
		return false
	}

	paddedW := r.W + a.padding
	if r.X < 0 || r.X+paddedW > sh.x {
		return false
	}

	if r.X+paddedW == sh.x {
		// Retract the frontier, then absorb any free slots that now
		// touch it from the left.
		sh.x = r.X
		for len(sh.free) > 0 {
			last := sh.free[len(sh.free)-1]
			if last.x+last.w != sh.x {
				break
			}
			sh.x = last.x
			sh.free = sh.free[:len(sh.free)-1]
		}
	} else {
		insertSlot(sh, slot{x: r.X, w: paddedW})
	}

	a.usedArea -= r.W * r.H
	if a.usedArea < 0 {
		a.usedArea = 0
	}
	return true
}

// findShelf locates the shelf whose top edge is at y.
// All rectangles on a shelf share the shelf's y coordinate.
func (a *ShelfAllocator) findShelf(y int) *shelf {
	for i := range a.shelves {
		if a.shelves[i].y == y {
			return &a.shelves[i]
		}
	}
	return nil
}

// insertSlot inserts a freed span into the shelf's free list, keeping it
// sorted by x and coalescing with adjacent spans.
func insertSlot(sh *shelf, s slot) {
	idx := len(sh.free)
	for i := range sh.free {
		if sh.free[i].x > s.x {
			idx = i
			break
		}
	}

	// Merge with the predecessor.
	if idx > 0 && sh.free[idx-1].x+sh.free[idx-1].w == s.x {
		sh.free[idx-1].w += s.w
		// Merging may have closed the gap to the successor too.
		if idx < len(sh.free) && sh.free[idx-1].x+sh.free[idx-1].w == sh.free[idx].x {
			sh.free[idx-1].w += sh.free[idx].w
			sh.free = append(sh.free[:idx], sh.free[idx+1:]...)
		}
		return
	}

	// Merge with the successor.
	if idx < len(sh.free) && s.x+s.w == sh.free[idx].x {
		sh.free[idx].x = s.x
		sh.free[idx].w += s.w
		return
	}

	sh.free = append(sh.free, slot{})
	copy(sh.free[idx+1:], sh.free[idx:])
	sh.free[idx] = s
}

// Reset clears all allocations, keeping allocated capacity.
func (a *ShelfAllocator) Reset() {
	a.shelves = a.shelves[:0]
	a.usedArea = 0
}

// Utilization returns the fraction of atlas area in use (0.0 to 1.0).
func (a *ShelfAllocator) Utilization() float64 {
	if a.width <= 0 || a.height <= 0 {
		return 0
	}
	return float64(a.usedArea) / float64(a.width*a.height)
}

// UsedArea returns the total area occupied by live allocations.
func (a *ShelfAllocator) UsedArea() int {
	return a.usedArea
}

// ShelfCount returns the number of shelves currently open.
func (a *ShelfAllocator) ShelfCount() int {
	return len(a.shelves)
}

// CanFit reports whether a w x h rectangle could possibly be placed
// without actually allocating it.
func (a *ShelfAllocator) CanFit(w, h int) bool {
	paddedW := w + a.padding
	paddedH := h + a.padding
	if paddedW > a.width || paddedH > a.height {
		return false
	}

	for i := range a.shelves {
		sh := &a.shelves[i]
		if h <= sh.height {
			for j := range sh.free {
				if sh.free[j].w >= paddedW {
					return true
				}
			}
			if sh.x+paddedW <= a.width {
				return true
			}
			continue
		}
		if i == len(a.shelves)-1 && sh.x+paddedW <= a.width && sh.y+paddedH <= a.height {
			return true
		}
	}

	newY := 0
	if len(a.shelves) > 0 {
		last := &a.shelves[len(a.shelves)-1]
		newY = last.y + last.height + a.padding
	}
	return newY+paddedH <= a.height
}
