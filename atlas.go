package textatlas

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/textatlas/gpu"
	"github.com/gogpu/textatlas/packer"
)

// Atlas is one fixed-size texture page holding glyphs of a single content
// kind. Pages are created lazily by the AtlasManager and live until the
// renderer is released; eviction frees regions inside a page but never
// destroys the page itself.
type Atlas struct {
	id   int
	kind ContentKind
	size int

	texture gpu.Texture
	group   gpu.BindGroup
	alloc   *packer.ShelfAllocator

	// keys tracks the glyphs resident in this page, for eviction scans
	// and for full-reset detection.
	keys map[GlyphKey]struct{}
}

// ID returns the page's stable identifier.
func (a *Atlas) ID() int { return a.id }

// Kind returns the content kind this page stores.
func (a *Atlas) Kind() ContentKind { return a.kind }

// Size returns the page edge length in texels (pages are square).
func (a *Atlas) Size() int { return a.size }

// GlyphCount returns the number of glyphs resident in this page.
func (a *Atlas) GlyphCount() int { return len(a.keys) }

// Utilization returns the fraction of the page area in use (0.0 to 1.0).
func (a *Atlas) Utilization() float64 { return a.alloc.Utilization() }

// Texture returns the page's GPU texture.
func (a *Atlas) Texture() gpu.Texture { return a.texture }

// BindGroup returns the page's render bind group.
func (a *Atlas) BindGroup() gpu.BindGroup { return a.group }

// kindFormat maps a content kind to its texel format.
func kindFormat(kind ContentKind) gputypes.TextureFormat {
	if kind == KindColor {
		return gputypes.TextureFormatRGBA8Unorm
	}
	return gputypes.TextureFormatR8Unorm
}

// AtlasManager owns the atlas pages of both content kinds and decides
// where a new glyph lands. Pages are capped at Config.MaxTextures per
// kind; ids index a flat slice and stay stable while any cache entry
// references them.
//
// The manager is not safe for concurrent use; it belongs to exactly one
// renderer and is driven from its frame thread.
type AtlasManager struct {
	device gpu.Device
	config Config

	// all holds every page ever created, indexed by id.
	all []*Atlas

	// order lists page ids per kind in creation order.
	order map[ContentKind][]int
}

// NewAtlasManager creates an atlas manager. The configuration must have
// been validated by the caller.
func NewAtlasManager(device gpu.Device, config Config) *AtlasManager {
	return &AtlasManager{
		device: device,
		config: config,
		order:  make(map[ContentKind][]int, 2),
	}
}

// Atlas returns the page with the given id, or nil.
func (m *AtlasManager) Atlas(id int) *Atlas {
	if id < 0 || id >= len(m.all) {
		return nil
	}
	return m.all[id]
}

// AtlasCount returns the number of pages of the given kind.
func (m *AtlasManager) AtlasCount(kind ContentKind) int {
	return len(m.order[kind])
}

// Allocate finds space for a w x h glyph of the given kind.
//
// The search escalates:
//  1. the newest page, then the remaining pages in creation order;
//  2. eviction inside each page via the evict callback, in the same
//     order, retrying the page after every successful eviction;
//  3. a new page, if the kind is under MaxTextures.
//
// The evict callback must release exactly one evictable glyph from the
// given page (through Free) and return true, or return false when the
// page holds nothing evictable.
func (m *AtlasManager) Allocate(kind ContentKind, w, h int, evict func(atlasID int) bool) (*Atlas, packer.Rect, error) {
	if w+m.config.Padding > m.config.AtlasSize || h+m.config.Padding > m.config.AtlasSize {
		return nil, packer.Rect{}, fmt.Errorf("%w: %dx%d into %d", ErrGlyphOversized, w, h, m.config.AtlasSize)
	}

	// Newest page first: it is the least fragmented and the most likely
	// to have room. Older pages follow in creation order.
	scan := m.scanOrder(kind)

	for _, id := range scan {
		a := m.all[id]
		if r, ok := a.alloc.Allocate(w, h); ok {
			return a, r, nil
		}
	}

	// Every page is full. Evict before promoting: a page full of stale
	// glyphs should be recycled rather than shadowed by a new texture.
	for _, id := range scan {
		a := m.all[id]
		for evict(a.id) {
			if r, ok := a.alloc.Allocate(w, h); ok {
				return a, r, nil
			}
		}
	}

	ids := m.order[kind]

	// Promote: add a page if the cap allows.
	if len(ids) < m.config.MaxTextures {
		a, err := m.createAtlas(kind)
		if err != nil {
			return nil, packer.Rect{}, err
		}
		if r, ok := a.alloc.Allocate(w, h); ok {
			return a, r, nil
		}
		// Unreachable: the oversize check above guarantees a fit in an
		// empty page.
		return nil, packer.Rect{}, ErrGlyphOversized
	}

	return nil, packer.Rect{}, fmt.Errorf("%w: %d %s atlases at capacity", ErrAtlasFull, len(ids), kind)
}

// scanOrder returns the kind's page ids with the newest moved to the
// front; the rest keep creation order.
func (m *AtlasManager) scanOrder(kind ContentKind) []int {
	ids := m.order[kind]
	if len(ids) < 2 {
		return ids
	}
	scan := make([]int, 0, len(ids))
	scan = append(scan, ids[len(ids)-1])
	scan = append(scan, ids[:len(ids)-1]...)
	return scan
}

// createAtlas creates a new page of the given kind, including its GPU
// texture and bind group.
func (m *AtlasManager) createAtlas(kind ContentKind) (*Atlas, error) {
	id := len(m.all)
	size := m.config.AtlasSize

	tex, err := m.device.CreateTexture(&gpu.TextureDescriptor{
		Label:  fmt.Sprintf("glyph-atlas-%s-%d", kind, id),
		Width:  uint32(size),
		Height: uint32(size),
		Format: kindFormat(kind),
	})
	if err != nil {
		return nil, fmt.Errorf("textatlas: create atlas texture: %w", err)
	}

	group, err := m.device.CreateAtlasGroup(tex)
	if err != nil {
		tex.Destroy()
		return nil, fmt.Errorf("textatlas: create atlas bind group: %w", err)
	}

	a := &Atlas{
		id:      id,
		kind:    kind,
		size:    size,
		texture: tex,
		group:   group,
		alloc:   packer.NewShelfAllocator(size, size, m.config.Padding),
		keys:    make(map[GlyphKey]struct{}),
	}
	m.all = append(m.all, a)
	m.order[kind] = append(m.order[kind], id)

	slogger().Debug("textatlas: atlas created",
		"id", id, "kind", kind.String(), "size", size, "count", len(m.order[kind]))
	return a, nil
}

// Upload writes a bitmap into the given page region. The data must be
// tightly packed in the page's texel format.
func (m *AtlasManager) Upload(a *Atlas, r packer.Rect, data []byte) error {
	return m.device.WriteTexture(a.texture, uint32(r.X), uint32(r.Y), uint32(r.W), uint32(r.H), data)
}

// Attach records a glyph as resident in the page.
func (m *AtlasManager) Attach(a *Atlas, key GlyphKey) {
	a.keys[key] = struct{}{}
}

// Free releases a glyph's region. When the page becomes empty its
// allocator is reset, discarding accumulated fragmentation, and the page
// is free for id-preserving reuse.
func (m *AtlasManager) Free(atlasID int, key GlyphKey, r packer.Rect) {
	a := m.Atlas(atlasID)
	if a == nil {
		return
	}
	delete(a.keys, key)
	a.alloc.Free(r)
	if len(a.keys) == 0 {
		a.alloc.Reset()
	}
}

// Release destroys all pages and their GPU resources. The manager must
// not be used after.
func (m *AtlasManager) Release() {
	for _, a := range m.all {
		if a.group != nil {
			a.group.Destroy()
		}
		if a.texture != nil {
			a.texture.Destroy()
		}
	}
	m.all = nil
	m.order = make(map[ContentKind][]int, 2)
}
