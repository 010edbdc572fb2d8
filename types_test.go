package textatlas

import "testing"

func TestColorPackUnpack(t *testing.T) {
	c := NewColor(0x12, 0x34, 0x56, 0x78)
	if uint32(c) != 0x12345678 {
		t.Fatalf("packed = %#x, want 0x12345678", uint32(c))
	}
	r, g, b, a := c.RGBA()
	if r != 0x12 || g != 0x34 || b != 0x56 || a != 0x78 {
		t.Errorf("unpacked = %x %x %x %x", r, g, b, a)
	}
}

func TestSizeBitsRoundTrip(t *testing.T) {
	tests := []float64{8, 12.25, 16, 72.5, 0}
	for _, size := range tests {
		k := GlyphKey{SizeBits: SizeToBits(size)}
		if got := k.Size(); got != size {
			t.Errorf("Size() = %v, want %v", got, size)
		}
	}
	// Quantization rounds to the nearest quarter pixel.
	if got := (GlyphKey{SizeBits: SizeToBits(10.1)}).Size(); got != 10 {
		t.Errorf("10.1 quantized to %v, want 10", got)
	}
}

func TestBitmapEmpty(t *testing.T) {
	if !(&Bitmap{}).Empty() {
		t.Error("zero bitmap not empty")
	}
	if (&Bitmap{Width: 1, Height: 1, Data: []byte{0}}).Empty() {
		t.Error("1x1 bitmap reported empty")
	}
}

func TestContentKindString(t *testing.T) {
	if KindMask.String() != "Mask" || KindColor.String() != "Color" {
		t.Error("kind names wrong")
	}
	if ContentKind(9).String() != "Unknown" {
		t.Error("unknown kind name wrong")
	}
}

func TestNextBufferSize(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, 4},
		{4, 4},
		{5, 8},
		{100, 128},
		{128, 128},
		{129, 256},
	}
	for _, tt := range tests {
		if got := nextBufferSize(tt.in); got != tt.want {
			t.Errorf("nextBufferSize(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
