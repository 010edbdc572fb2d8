package textatlas

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func testRenderer(t *testing.T, opts ...Option) (*fakeDevice, *TextRenderer) {
	t.Helper()
	dev := newFakeDevice()
	cfg := Config{AtlasSize: 64, MaxTextures: 2, Padding: 0, InitialCapacity: 4}
	r, err := NewTextRenderer(dev, cfg, opts...)
	if err != nil {
		t.Fatalf("NewTextRenderer: %v", err)
	}
	return dev, r
}

func oneRegion(glyphs ...PositionedGlyph) []TextRegion {
	return []TextRegion{{Glyphs: glyphs}}
}

func TestRendererValidatesConfig(t *testing.T) {
	dev := newFakeDevice()
	cfg := DefaultConfig()
	cfg.AtlasSize = 100 // not a power of 2

	_, err := NewTextRenderer(dev, cfg)
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want *ConfigError", err)
	}
	if ce.Field != "AtlasSize" {
		t.Errorf("field = %q, want AtlasSize", ce.Field)
	}
}

func TestPrepareRenderRoundTrip(t *testing.T) {
	dev, r := testRenderer(t)
	calls := 0
	rast := solidMask(32, 32, &calls)

	fd, err := r.Prepare(oneRegion(
		PositionedGlyph{Key: maskKey(1), X: 10, Y: 40, Color: NewColor(255, 0, 0, 255)},
		PositionedGlyph{Key: maskKey(2), X: 50, Y: 40, Color: NewColor(0, 255, 0, 255)},
	), 200, 100, rast)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if fd.InstanceCount() != 2 {
		t.Fatalf("instance count = %d, want 2", fd.InstanceCount())
	}
	if calls != 2 {
		t.Errorf("rasterize calls = %d, want 2", calls)
	}

	pass := newFakePass()
	if err := r.Render(pass, fd, Transform{}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if pass.pipelineSet != 1 {
		t.Errorf("pipeline set %d times, want 1", pass.pipelineSet)
	}
	if len(pass.draws) != 1 {
		t.Fatalf("draw calls = %d, want 1 batch", len(pass.draws))
	}
	d := pass.draws[0]
	if d.vertexCount != 4 || d.instanceCount != 2 || d.firstInstance != 0 {
		t.Errorf("draw = %+v, want 4 vertices x 2 instances from 0", d)
	}
	if pass.vertexBuf == nil {
		t.Error("vertex buffer not bound")
	}
	_ = dev
}

func TestRenderTransformFastPath(t *testing.T) {
	dev, r := testRenderer(t)
	calls := 0
	rast := solidMask(32, 32, &calls)

	fd, err := r.Prepare(oneRegion(
		PositionedGlyph{Key: maskKey(1), X: 10, Y: 40},
	), 100, 100, rast)
	if err != nil {
		t.Fatal(err)
	}

	rastCalls := calls
	texWrites := dev.textureWrites

	// Pan and zoom: two renders with different transforms.
	for _, tr := range []Transform{
		{TranslationX: 15, TranslationY: -3},
		{Scale: 2.5},
	} {
		if err := r.Render(newFakePass(), fd, tr); err != nil {
			t.Fatalf("Render(%+v): %v", tr, err)
		}
	}

	if calls != rastCalls {
		t.Errorf("rasterize called %d extra times during render", calls-rastCalls)
	}
	if dev.textureWrites != texWrites {
		t.Errorf("texture written %d extra times during render", dev.textureWrites-texWrites)
	}
}

func TestRenderUniformContents(t *testing.T) {
	dev, r := testRenderer(t)
	fd, err := r.Prepare(oneRegion(
		PositionedGlyph{Key: maskKey(1), X: 0, Y: 40},
	), 640, 480, solidMask(32, 32, nil))
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Render(newFakePass(), fd, Transform{TranslationX: 5, TranslationY: 6, Scale: 2}); err != nil {
		t.Fatal(err)
	}

	uni := r.uniformBuf.(*fakeBuffer).data
	want := []float32{640, 480, 5, 6, 2}
	for i, w := range want {
		got := math.Float32frombits(binary.LittleEndian.Uint32(uni[i*4:]))
		if got != w {
			t.Errorf("uniform word %d = %f, want %f", i, got, w)
		}
	}
	_ = dev
}

func TestRenderStaleAndMissingFrames(t *testing.T) {
	_, r := testRenderer(t)
	rast := solidMask(32, 32, nil)
	glyphs := oneRegion(PositionedGlyph{Key: maskKey(1), X: 0, Y: 40})

	if err := r.Render(newFakePass(), nil, Transform{}); !errors.Is(err, ErrNoFrame) {
		t.Errorf("render before prepare = %v, want ErrNoFrame", err)
	}

	fd1, err := r.Prepare(glyphs, 100, 100, rast)
	if err != nil {
		t.Fatal(err)
	}
	fd2, err := r.Prepare(glyphs, 100, 100, rast)
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Render(newFakePass(), fd1, Transform{}); !errors.Is(err, ErrStaleFrame) {
		t.Errorf("render of superseded frame = %v, want ErrStaleFrame", err)
	}
	if err := r.Render(newFakePass(), fd2, Transform{}); err != nil {
		t.Errorf("render of current frame = %v, want nil", err)
	}

	// Trims invalidate outstanding frames too.
	r.TrimAll()
	if err := r.Render(newFakePass(), fd2, Transform{}); !errors.Is(err, ErrStaleFrame) {
		t.Errorf("render after TrimAll = %v, want ErrStaleFrame", err)
	}
}

func TestFailedPrepareInvalidatesFrames(t *testing.T) {
	dev := newFakeDevice()
	cfg := Config{AtlasSize: 64, MaxTextures: 1, Padding: 0, InitialCapacity: 4}
	r, err := NewTextRenderer(dev, cfg)
	if err != nil {
		t.Fatal(err)
	}
	rast := solidMask(32, 32, nil)

	fd1, err := r.Prepare(oneRegion(
		PositionedGlyph{Key: maskKey(1), X: 0, Y: 40},
	), 640, 480, rast)
	if err != nil {
		t.Fatal(err)
	}

	// Five 32x32 glyphs overflow the single 64x64 page: the first
	// frame's glyph is evicted and its region overwritten before the
	// overflow surfaces as ErrAtlasFull.
	glyphs := make([]PositionedGlyph, 5)
	for i := range glyphs {
		glyphs[i] = PositionedGlyph{Key: maskKey(uint16(i + 2)), X: float64(i * 40), Y: 40}
	}
	if _, err := r.Prepare(oneRegion(glyphs...), 640, 480, rast); !errors.Is(err, ErrAtlasFull) {
		t.Fatalf("overflow Prepare = %v, want ErrAtlasFull", err)
	}
	if r.cache.Lookup(maskKey(1)) != nil {
		t.Fatal("first frame's glyph still resident after overflow")
	}

	// The old frame references the overwritten region, so replaying it
	// must fail even though the Prepare that clobbered it failed too.
	if err := r.Render(newFakePass(), fd1, Transform{}); !errors.Is(err, ErrStaleFrame) {
		t.Errorf("render after failed Prepare = %v, want ErrStaleFrame", err)
	}
	_ = dev
}

func TestPrepareEmptyRegions(t *testing.T) {
	_, r := testRenderer(t)

	fd, err := r.Prepare(nil, 100, 100, solidMask(32, 32, nil))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if fd.InstanceCount() != 0 {
		t.Errorf("instance count = %d, want 0", fd.InstanceCount())
	}

	// Rendering an empty frame is a no-op, not an error.
	pass := newFakePass()
	if err := r.Render(pass, fd, Transform{}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(pass.draws) != 0 {
		t.Errorf("draws = %d, want 0", len(pass.draws))
	}
}

func TestPrepareInstanceLayout(t *testing.T) {
	_, r := testRenderer(t, WithDepthFunc(func(meta int) float32 {
		return float32(meta) / 10
	}), WithColorMode(ColorModeAccurate))

	fd, err := r.Prepare(oneRegion(PositionedGlyph{
		Key:      maskKey(1),
		X:        10,
		Y:        40,
		Color:    NewColor(0x11, 0x22, 0x33, 0x44),
		Metadata: 5,
	}), 100, 100, solidMask(32, 32, nil))
	if err != nil {
		t.Fatal(err)
	}
	if len(fd.instances) != instanceStride {
		t.Fatalf("instance bytes = %d, want %d", len(fd.instances), instanceStride)
	}

	b := fd.instances
	// The 32x32 bitmap reports Top=32, so the quad starts at y=40-32=8.
	if got := int32(binary.LittleEndian.Uint32(b[0:4])); got != 10 {
		t.Errorf("pos.x = %d, want 10", got)
	}
	if got := int32(binary.LittleEndian.Uint32(b[4:8])); got != 8 {
		t.Errorf("pos.y = %d, want 8", got)
	}
	if got := binary.LittleEndian.Uint16(b[8:10]); got != 32 {
		t.Errorf("dim.w = %d, want 32", got)
	}
	if got := binary.LittleEndian.Uint16(b[10:12]); got != 32 {
		t.Errorf("dim.h = %d, want 32", got)
	}
	// First glyph in an empty atlas lands at its origin.
	if got := binary.LittleEndian.Uint16(b[12:14]); got != 0 {
		t.Errorf("uv.x = %d, want 0", got)
	}
	if got := binary.LittleEndian.Uint16(b[14:16]); got != 0 {
		t.Errorf("uv.y = %d, want 0", got)
	}
	if got := binary.LittleEndian.Uint32(b[16:20]); got != 0x11223344 {
		t.Errorf("color = %#x, want 0x11223344", got)
	}
	if got := binary.LittleEndian.Uint16(b[20:22]); got != uint16(KindMask) {
		t.Errorf("kind = %d, want %d", got, KindMask)
	}
	if got := binary.LittleEndian.Uint16(b[22:24]); got != 1 {
		t.Errorf("srgb flag = %d, want 1 in accurate mode", got)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(b[24:28])); got != 0.5 {
		t.Errorf("depth = %f, want 0.5", got)
	}
}

func TestPrepareClipShiftsAtlasWindow(t *testing.T) {
	_, r := testRenderer(t)

	fd, err := r.Prepare([]TextRegion{{
		Glyphs: []PositionedGlyph{{Key: maskKey(1), X: 10, Y: 40}},
		Bounds: Rect{MinX: 15, MinY: 12, MaxX: 30, MaxY: 100},
	}}, 100, 100, solidMask(32, 32, nil))
	if err != nil {
		t.Fatal(err)
	}
	if fd.InstanceCount() != 1 {
		t.Fatalf("instance count = %d, want 1", fd.InstanceCount())
	}

	b := fd.instances
	// Unclipped quad is (10, 8)-(42, 40). Clip cuts 5px left, 4px top,
	// and the right edge at x=30.
	if got := int32(binary.LittleEndian.Uint32(b[0:4])); got != 15 {
		t.Errorf("pos.x = %d, want 15", got)
	}
	if got := int32(binary.LittleEndian.Uint32(b[4:8])); got != 12 {
		t.Errorf("pos.y = %d, want 12", got)
	}
	if got := binary.LittleEndian.Uint16(b[8:10]); got != 15 {
		t.Errorf("dim.w = %d, want 15", got)
	}
	if got := binary.LittleEndian.Uint16(b[10:12]); got != 28 {
		t.Errorf("dim.h = %d, want 28", got)
	}
	if got := binary.LittleEndian.Uint16(b[12:14]); got != 5 {
		t.Errorf("uv.x = %d, want 5 (left cut shifts the window)", got)
	}
	if got := binary.LittleEndian.Uint16(b[14:16]); got != 4 {
		t.Errorf("uv.y = %d, want 4 (top cut shifts the window)", got)
	}
}

func TestPrepareDropsFullyClippedGlyphs(t *testing.T) {
	_, r := testRenderer(t)

	fd, err := r.Prepare([]TextRegion{{
		Glyphs: []PositionedGlyph{{Key: maskKey(1), X: 500, Y: 40}},
	}}, 100, 100, solidMask(32, 32, nil))
	if err != nil {
		t.Fatal(err)
	}
	if fd.InstanceCount() != 0 {
		t.Errorf("instance count = %d, want 0 for off-surface glyph", fd.InstanceCount())
	}
}

func TestPrepareSubpixelBinning(t *testing.T) {
	_, r := testRenderer(t)
	calls := 0
	rast := solidMask(32, 32, &calls)

	// Same glyph at two fractional offsets lands in two bins, so it is
	// rasterized twice.
	_, err := r.Prepare(oneRegion(
		PositionedGlyph{Key: maskKey(1), X: 10.0, Y: 40},
		PositionedGlyph{Key: maskKey(1), X: 20.25, Y: 40},
	), 100, 100, rast)
	if err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("rasterize calls = %d, want 2 with subpixel bins", calls)
	}
}

func TestPrepareSubpixelDisabled(t *testing.T) {
	_, r := testRenderer(t, WithSubpixel(false))
	calls := 0
	rast := solidMask(32, 32, &calls)

	_, err := r.Prepare(oneRegion(
		PositionedGlyph{Key: maskKey(1), X: 10.0, Y: 40},
		PositionedGlyph{Key: maskKey(1), X: 20.25, Y: 40},
	), 100, 100, rast)
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("rasterize calls = %d, want 1 with subpixel disabled", calls)
	}
}

func TestPrepareRegionOffsetAndScale(t *testing.T) {
	_, r := testRenderer(t)

	fd, err := r.Prepare([]TextRegion{{
		Glyphs: []PositionedGlyph{{Key: maskKey(1), X: 10, Y: 20}},
		Left:   100,
		Top:    50,
		Scale:  2,
	}}, 640, 480, solidMask(32, 32, nil))
	if err != nil {
		t.Fatal(err)
	}

	b := fd.instances
	// Surface position: (100 + 10*2, 50 + 20*2) = (120, 90), then the
	// 32px top bearing lifts the quad to y=58.
	if got := int32(binary.LittleEndian.Uint32(b[0:4])); got != 120 {
		t.Errorf("pos.x = %d, want 120", got)
	}
	if got := int32(binary.LittleEndian.Uint32(b[4:8])); got != 58 {
		t.Errorf("pos.y = %d, want 58", got)
	}
}

func TestPrepareGrowsInstanceBuffer(t *testing.T) {
	dev, r := testRenderer(t)
	rast := solidMask(8, 8, nil)

	// The first Prepare creates the buffer at InitialCapacity (4
	// instances, rounded up to a power of two); the second outgrows it.
	if _, err := r.Prepare(oneRegion(
		PositionedGlyph{Key: maskKey(1), X: 0, Y: 40},
	), 640, 480, rast); err != nil {
		t.Fatal(err)
	}

	glyphs := make([]PositionedGlyph, 6)
	for i := range glyphs {
		glyphs[i] = PositionedGlyph{Key: maskKey(uint16(i + 1)), X: float64(i * 10), Y: 40}
	}
	if _, err := r.Prepare(oneRegion(glyphs...), 640, 480, rast); err != nil {
		t.Fatal(err)
	}

	var instanceBufs []*fakeBuffer
	for _, b := range dev.buffers {
		if b.label == "glyph-instances" {
			instanceBufs = append(instanceBufs, b)
		}
	}
	if len(instanceBufs) != 2 {
		t.Fatalf("instance buffers created = %d, want 2 (initial + grown)", len(instanceBufs))
	}
	if !instanceBufs[0].destroyed {
		t.Error("outgrown buffer not destroyed")
	}
	if instanceBufs[1].Size() < 6*instanceStride {
		t.Errorf("grown buffer size %d too small", instanceBufs[1].Size())
	}
}

func TestRendererReleaseDestroysResources(t *testing.T) {
	dev, r := testRenderer(t)
	if _, err := r.Prepare(oneRegion(
		PositionedGlyph{Key: maskKey(1), X: 0, Y: 40},
	), 100, 100, solidMask(32, 32, nil)); err != nil {
		t.Fatal(err)
	}

	r.Release()

	for i, tex := range dev.textures {
		if !tex.destroyed {
			t.Errorf("texture %d not destroyed", i)
		}
	}
	for i, buf := range dev.buffers {
		if !buf.destroyed {
			t.Errorf("buffer %d not destroyed", i)
		}
	}
	r.Release() // idempotent
}
