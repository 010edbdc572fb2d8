package packer

import "testing"

func TestShelfAllocateBasic(t *testing.T) {
	a := NewShelfAllocator(256, 256, 1)

	r1, ok := a.Allocate(20, 20)
	if !ok {
		t.Fatal("first allocation failed")
	}
	if r1.X != 0 || r1.Y != 0 {
		t.Errorf("first allocation at (%d, %d), want (0, 0)", r1.X, r1.Y)
	}

	r2, ok := a.Allocate(20, 20)
	if !ok {
		t.Fatal("second allocation failed")
	}
	if r2.X != 21 || r2.Y != 0 {
		t.Errorf("second allocation at (%d, %d), want (21, 0)", r2.X, r2.Y)
	}
}

func TestShelfAllocateRejectsZeroSize(t *testing.T) {
	a := NewShelfAllocator(64, 64, 1)
	if _, ok := a.Allocate(0, 10); ok {
		t.Error("zero-width allocation succeeded")
	}
	if _, ok := a.Allocate(10, 0); ok {
		t.Error("zero-height allocation succeeded")
	}
}

func TestShelfAllocateRejectsOversized(t *testing.T) {
	a := NewShelfAllocator(64, 64, 1)
	if _, ok := a.Allocate(100, 10); ok {
		t.Error("allocation wider than atlas succeeded")
	}
	if _, ok := a.Allocate(10, 100); ok {
		t.Error("allocation taller than atlas succeeded")
	}
}

func TestShelfAllocationsDisjoint(t *testing.T) {
	a := NewShelfAllocator(128, 128, 1)

	var rects []Rect
	for i := 0; i < 100; i++ {
		w := 5 + i%13
		h := 5 + i%7
		r, ok := a.Allocate(w, h)
		if !ok {
			break
		}
		if r.X < 0 || r.Y < 0 || r.X+r.W > 128 || r.Y+r.H > 128 {
			t.Fatalf("allocation %v out of bounds", r)
		}
		rects = append(rects, r)
	}
	if len(rects) < 10 {
		t.Fatalf("only %d allocations succeeded", len(rects))
	}

	for i := range rects {
		for j := i + 1; j < len(rects); j++ {
			if overlaps(rects[i], rects[j]) {
				t.Fatalf("allocations overlap: %v and %v", rects[i], rects[j])
			}
		}
	}
}

func overlaps(a, b Rect) bool {
	return a.X < b.X+b.W && b.X < a.X+a.W && a.Y < b.Y+b.H && b.Y < a.Y+a.H
}

func TestShelfNewShelfWhenTooTall(t *testing.T) {
	a := NewShelfAllocator(256, 256, 0)

	a.Allocate(200, 10)
	a.Allocate(200, 10) // taller-than-shelf extension does not apply: same height

	r, ok := a.Allocate(10, 50)
	if !ok {
		t.Fatal("allocation failed")
	}
	if r.Y == 0 && r.H == 50 && a.ShelfCount() == 1 {
		// The last shelf may legally grow to fit a taller item, so either
		// placement is fine as long as the rect is in bounds.
		return
	}
	if r.X < 0 || r.Y < 0 || r.Y+r.H > 256 {
		t.Errorf("allocation %v out of bounds", r)
	}
}

func TestShelfFreeReuse(t *testing.T) {
	a := NewShelfAllocator(64, 64, 1)

	r1, _ := a.Allocate(10, 10)
	r2, _ := a.Allocate(10, 10)
	a.Allocate(10, 10)

	if !a.Free(r1) {
		t.Fatal("free of live allocation failed")
	}

	// A same-size allocation should land in the freed slot.
	r4, ok := a.Allocate(10, 10)
	if !ok {
		t.Fatal("allocation after free failed")
	}
	if r4 != r1 {
		t.Errorf("allocation after free at %v, want reused slot %v", r4, r1)
	}
	_ = r2
}

func TestShelfFreeRetractsFrontier(t *testing.T) {
	a := NewShelfAllocator(64, 64, 1)

	a.Allocate(10, 10)
	r2, _ := a.Allocate(10, 10)
	used := a.UsedArea()

	if !a.Free(r2) {
		t.Fatal("free failed")
	}
	if a.UsedArea() != used-100 {
		t.Errorf("used area %d after free, want %d", a.UsedArea(), used-100)
	}

	// The frontier retracted, so the next allocation lands where r2 was.
	r3, ok := a.Allocate(10, 10)
	if !ok {
		t.Fatal("allocation after free failed")
	}
	if r3 != r2 {
		t.Errorf("allocation at %v, want %v", r3, r2)
	}
}

func TestShelfFreeCoalesces(t *testing.T) {
	a := NewShelfAllocator(64, 64, 0)

	r1, _ := a.Allocate(8, 8)
	r2, _ := a.Allocate(8, 8)
	r3, _ := a.Allocate(8, 8)
	a.Allocate(8, 8) // keeps the frontier past r3

	a.Free(r1)
	a.Free(r3)
	a.Free(r2) // bridges r1 and r3 into one 24-wide slot

	r, ok := a.Allocate(24, 8)
	if !ok {
		t.Fatal("allocation into coalesced slot failed")
	}
	if r.X != r1.X || r.Y != r1.Y {
		t.Errorf("coalesced allocation at (%d, %d), want (%d, %d)", r.X, r.Y, r1.X, r1.Y)
	}
}

func TestShelfFreeRejectsBogus(t *testing.T) {
	a := NewShelfAllocator(64, 64, 1)
	a.Allocate(10, 10)

	if a.Free(Rect{X: 0, Y: 30, W: 10, H: 10}) {
		t.Error("free of rect on nonexistent shelf succeeded")
	}
	if a.Free(Rect{X: 50, Y: 0, W: 10, H: 10}) {
		t.Error("free of rect beyond frontier succeeded")
	}
}

func TestShelfReset(t *testing.T) {
	a := NewShelfAllocator(64, 64, 1)
	a.Allocate(10, 10)
	a.Allocate(10, 10)

	a.Reset()

	if a.UsedArea() != 0 {
		t.Errorf("used area %d after reset, want 0", a.UsedArea())
	}
	if a.ShelfCount() != 0 {
		t.Errorf("shelf count %d after reset, want 0", a.ShelfCount())
	}
	r, ok := a.Allocate(10, 10)
	if !ok || r.X != 0 || r.Y != 0 {
		t.Errorf("allocation after reset at %v, want (0, 0)", r)
	}
}

func TestShelfUtilization(t *testing.T) {
	a := NewShelfAllocator(100, 100, 0)
	if a.Utilization() != 0 {
		t.Errorf("empty utilization %f, want 0", a.Utilization())
	}

	a.Allocate(50, 50)
	if got := a.Utilization(); got != 0.25 {
		t.Errorf("utilization %f, want 0.25", got)
	}
}

func TestShelfCanFit(t *testing.T) {
	a := NewShelfAllocator(32, 32, 0)

	if !a.CanFit(32, 32) {
		t.Error("CanFit(32, 32) = false on empty allocator")
	}
	if a.CanFit(33, 10) {
		t.Error("CanFit(33, 10) = true, wider than atlas")
	}

	a.Allocate(32, 32)
	if a.CanFit(1, 1) {
		t.Error("CanFit(1, 1) = true on full allocator")
	}
}

func TestShelfFillsToCapacity(t *testing.T) {
	a := NewShelfAllocator(64, 64, 0)

	n := 0
	for {
		if _, ok := a.Allocate(8, 8); !ok {
			break
		}
		n++
	}
	if n != 64 {
		t.Errorf("packed %d 8x8 cells into 64x64, want 64", n)
	}
}
