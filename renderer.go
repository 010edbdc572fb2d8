package textatlas

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/textatlas/gpu"
)

// DrawBatch is a run of consecutive instances sharing one atlas page.
type DrawBatch struct {
	AtlasID int
	First   uint32
	Count   uint32
}

// FrameData is the output of one Prepare call: the packed instance
// records plus the draw batches replaying them. Frame data is only valid
// until the next cache-mutating call on its renderer (a later Prepare or
// a trim); rendering stale data returns ErrStaleFrame.
type FrameData struct {
	generation uint64
	instances  []byte
	count      uint32
	batches    []DrawBatch
	resW, resH uint32
}

// InstanceCount returns the number of glyph quads in the frame.
func (fd *FrameData) InstanceCount() int { return int(fd.count) }

// Batches returns the frame's draw batches.
func (fd *FrameData) Batches() []DrawBatch { return fd.batches }

// TextRenderer prepares glyph instance data and replays it into render
// passes. It owns the atlas pages, the glyph cache, the instance buffer
// and the viewport uniform.
//
// All methods must be called from a single goroutine. A renderer is
// cheap enough to create one per thread; atlas textures are not shared
// between renderers.
type TextRenderer struct {
	device gpu.Device
	config Config
	opts   rendererOptions

	manager *AtlasManager
	cache   *GlyphCache

	// frame stamps cache entries; incremented at the top of every
	// Prepare so in-use detection never confuses two frames.
	frame uint64

	// generation invalidates outstanding FrameData. Incremented at the
	// top of every Prepare, successful or not, and by trims.
	generation uint64

	instanceBuf  gpu.Buffer
	uniformBuf   gpu.Buffer
	uniformGroup gpu.BindGroup

	released bool
}

// NewTextRenderer creates a renderer on the given device.
func NewTextRenderer(device gpu.Device, config Config, opts ...Option) (*TextRenderer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	o := defaultRendererOptions()
	for _, opt := range opts {
		opt(&o)
	}

	uniformBuf, err := device.CreateBuffer(&gpu.BufferDescriptor{
		Label: "glyph-uniform",
		Size:  uniformStride,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("textatlas: create uniform buffer: %w", err)
	}
	uniformGroup, err := device.CreateUniformGroup(uniformBuf)
	if err != nil {
		uniformBuf.Destroy()
		return nil, fmt.Errorf("textatlas: create uniform bind group: %w", err)
	}

	manager := NewAtlasManager(device, config)
	r := &TextRenderer{
		device:       device,
		config:       config,
		opts:         o,
		manager:      manager,
		cache:        NewGlyphCache(manager),
		uniformBuf:   uniformBuf,
		uniformGroup: uniformGroup,
	}
	return r, nil
}

// Cache returns the renderer's glyph cache, for statistics and lookups.
// Prefer the renderer's own Trim methods for removal: they also
// invalidate outstanding frame data.
func (r *TextRenderer) Cache() *GlyphCache { return r.cache }

// Manager returns the renderer's atlas manager.
func (r *TextRenderer) Manager() *AtlasManager { return r.manager }

// Prepare resolves every glyph of every region and packs one instance
// record per visible glyph. resW, resH is the target surface size in
// pixels; it bounds clipping and becomes part of the viewport uniform.
//
// Every Prepare supersedes all earlier frames from this renderer, even
// when it fails: a failed call (including ErrAtlasFull) may already have
// evicted entries and overwritten their atlas regions, so outstanding
// frame data must not be replayed. Resident cache entries survive a
// failure for the next attempt.
func (r *TextRenderer) Prepare(regions []TextRegion, resW, resH uint32, rasterize RasterizeFunc) (*FrameData, error) {
	r.frame++
	r.generation++

	mode := SubpixelNone
	if r.opts.subpixel && !r.opts.pixelSnap {
		mode = Subpixel4
	}

	var (
		data    []byte
		count   uint32
		batches []DrawBatch
		inst    glyphInstance
	)

	for ri := range regions {
		region := &regions[ri]
		scale := region.Scale
		if scale == 0 {
			scale = 1
		}
		clip := region.Bounds
		if clip.Empty() {
			clip = Rect{MaxX: int(resW), MaxY: int(resH)}
		}
		clampRect(&clip, int(resW), int(resH))

		for gi := range region.Glyphs {
			g := &region.Glyphs[gi]

			px := region.Left + g.X*scale
			py := region.Top + g.Y*scale
			intX, subX := Quantize(px, mode)
			intY, _ := Quantize(py, SubpixelNone)

			key := g.Key
			key.SubX = subX
			key.SubY = 0

			entry, err := r.cache.Resolve(key, r.frame, rasterize)
			if err != nil {
				return nil, err
			}
			if entry.skip {
				continue
			}

			x := intX + entry.left
			y := intY - entry.top
			rect := entry.rect
			w, h := rect.W, rect.H
			ax, ay := rect.X, rect.Y

			// Clip against the region bounds. Cutting the left or top
			// edge shifts the atlas window so the surviving pixels keep
			// their texels.
			if d := clip.MinX - x; d > 0 {
				x += d
				w -= d
				ax += d
			}
			if d := clip.MinY - y; d > 0 {
				y += d
				h -= d
				ay += d
			}
			if x+w > clip.MaxX {
				w = clip.MaxX - x
			}
			if y+h > clip.MaxY {
				h = clip.MaxY - y
			}
			if w <= 0 || h <= 0 {
				continue
			}

			var depth float32
			if r.opts.depthFunc != nil {
				depth = r.opts.depthFunc(g.Metadata)
			}

			inst = glyphInstance{
				x:      int32(x),
				y:      int32(y),
				width:  uint16(w),
				height: uint16(h),
				atlasX: uint16(ax),
				atlasY: uint16(ay),
				color:  g.Color,
				kind:   key.Kind,
				srgb:   r.opts.colorMode == ColorModeAccurate,
				depth:  depth,
			}
			data = append(data, make([]byte, instanceStride)...)
			writeInstance(data[len(data)-instanceStride:], &inst)

			if n := len(batches); n > 0 && batches[n-1].AtlasID == entry.atlasID {
				batches[n-1].Count++
			} else {
				batches = append(batches, DrawBatch{AtlasID: entry.atlasID, First: count, Count: 1})
			}
			count++
		}
	}

	if count > 0 {
		if err := r.uploadInstances(data); err != nil {
			return nil, err
		}
	}

	return &FrameData{
		generation: r.generation,
		instances:  data,
		count:      count,
		batches:    batches,
		resW:       resW,
		resH:       resH,
	}, nil
}

// uploadInstances writes the packed records into the instance buffer,
// growing it to the next power-of-two size when too small.
func (r *TextRenderer) uploadInstances(data []byte) error {
	if r.instanceBuf == nil || uint64(len(data)) > r.instanceBuf.Size() {
		size := nextBufferSize(len(data))
		if r.instanceBuf == nil {
			initial := nextBufferSize(r.config.InitialCapacity * instanceStride)
			if size < initial {
				size = initial
			}
		} else {
			slogger().Debug("textatlas: instance buffer grown",
				"from", r.instanceBuf.Size(), "to", size)
			r.instanceBuf.Destroy()
			r.instanceBuf = nil
		}
		buf, err := r.device.CreateBuffer(&gpu.BufferDescriptor{
			Label: "glyph-instances",
			Size:  uint64(size),
			Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("textatlas: create instance buffer: %w", err)
		}
		r.instanceBuf = buf
	}
	if err := r.device.WriteBuffer(r.instanceBuf, 0, data); err != nil {
		return fmt.Errorf("textatlas: write instance buffer: %w", err)
	}
	return nil
}

// Render replays prepared frame data into the given pass with a viewport
// transform. The transform is the pan/zoom fast path: it only updates
// the uniform, so rendering the same frame with a different transform
// touches no atlas, no rasterizer and no instance data.
//
// Returns ErrNoFrame before the first Prepare, ErrStaleFrame when fd was
// superseded, and ErrAtlasGone if an instance references a page that no
// longer exists.
func (r *TextRenderer) Render(pass gpu.RenderPass, fd *FrameData, t Transform) error {
	if fd == nil || fd.generation == 0 {
		return ErrNoFrame
	}
	if fd.generation != r.generation {
		return ErrStaleFrame
	}
	if fd.count == 0 {
		return nil
	}

	var uniform [uniformStride]byte
	writeUniform(uniform[:], fd.resW, fd.resH, t)
	if err := r.device.WriteBuffer(r.uniformBuf, 0, uniform[:]); err != nil {
		return fmt.Errorf("textatlas: write uniform: %w", err)
	}

	pass.SetPipeline()
	pass.SetBindGroup(0, r.uniformGroup)
	pass.SetVertexBuffer(0, r.instanceBuf, 0)

	for _, b := range fd.batches {
		atlas := r.manager.Atlas(b.AtlasID)
		if atlas == nil {
			return fmt.Errorf("%w: atlas %d", ErrAtlasGone, b.AtlasID)
		}
		pass.SetBindGroup(1, atlas.BindGroup())
		pass.Draw(4, b.Count, 0, b.First)
	}
	return nil
}

// Trim removes one glyph from the cache, releasing its atlas region.
// Outstanding frame data becomes stale.
func (r *TextRenderer) Trim(key GlyphKey) bool {
	if r.cache.Trim(key) {
		r.generation++
		return true
	}
	return false
}

// TrimAll removes every cached glyph. Atlas pages stay allocated for
// reuse. Outstanding frame data becomes stale.
func (r *TextRenderer) TrimAll() {
	r.cache.TrimAll()
	r.generation++
}

// Release destroys all GPU resources owned by the renderer. The renderer
// must not be used after.
func (r *TextRenderer) Release() {
	if r.released {
		return
	}
	r.released = true
	if r.instanceBuf != nil {
		r.instanceBuf.Destroy()
		r.instanceBuf = nil
	}
	if r.uniformGroup != nil {
		r.uniformGroup.Destroy()
		r.uniformGroup = nil
	}
	if r.uniformBuf != nil {
		r.uniformBuf.Destroy()
		r.uniformBuf = nil
	}
	r.manager.Release()
}

// clampRect clamps r to the surface [0, w) x [0, h).
func clampRect(r *Rect, w, h int) {
	if r.MinX < 0 {
		r.MinX = 0
	}
	if r.MinY < 0 {
		r.MinY = 0
	}
	if r.MaxX > w {
		r.MaxX = w
	}
	if r.MaxY > h {
		r.MaxY = h
	}
}
