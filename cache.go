package textatlas

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/textatlas/gpu"
	"github.com/gogpu/textatlas/packer"
)

// CacheEntry records where a resident glyph lives on the GPU.
type CacheEntry struct {
	// atlasID is the page holding the pixels; -1 for skip entries.
	atlasID int

	// rect is the reserved region inside the page.
	rect packer.Rect

	// left, top are the bitmap's placement offsets relative to the
	// glyph origin.
	left int
	top  int

	// lastUsed is the frame stamp of the most recent Resolve hit.
	// Entries stamped with the current frame are never evicted.
	lastUsed uint64

	// skip marks a glyph that renders nothing (zero-size bitmap).
	// Skip entries occupy no atlas space.
	skip bool
}

// Skip reports whether the glyph renders nothing.
func (e *CacheEntry) Skip() bool { return e.skip }

// AtlasID returns the page holding the glyph, or -1 for skip entries.
func (e *CacheEntry) AtlasID() int { return e.atlasID }

// Rect returns the glyph's region inside its page.
func (e *CacheEntry) Rect() packer.Rect { return e.rect }

// Placement returns the bitmap's offsets relative to the glyph origin.
func (e *CacheEntry) Placement() (left, top int) { return e.left, e.top }

// CacheStats holds cache statistics.
type CacheStats struct {
	Hits       atomic.Uint64
	Misses     atomic.Uint64
	Evictions  atomic.Uint64
	Insertions atomic.Uint64
}

// GlyphCache maps glyph keys to their atlas placement. Misses rasterize,
// allocate and upload; hits only restamp the entry with the current
// frame. Eviction is LRU, local to one atlas page, and never touches an
// entry used in the current frame.
//
// The cache belongs to one renderer and is driven from its frame thread;
// only the statistics counters are safe to read concurrently.
type GlyphCache struct {
	manager *AtlasManager
	entries map[GlyphKey]*CacheEntry
	stats   CacheStats
}

// NewGlyphCache creates a cache backed by the given atlas manager.
func NewGlyphCache(manager *AtlasManager) *GlyphCache {
	return &GlyphCache{
		manager: manager,
		entries: make(map[GlyphKey]*CacheEntry, 256),
	}
}

// Resolve returns the placement for a glyph, rasterizing and uploading
// it on a miss. frame is the current frame stamp; entries stamped with
// it are pinned for the rest of the frame.
//
// A glyph whose bitmap has zero size is committed as a skip entry and
// resolves successfully forever after. Errors from the rasterizer, the
// allocator (ErrAtlasFull, ErrGlyphOversized) and the upload path leave
// the cache unchanged: an entry exists iff its pixels are resident.
func (c *GlyphCache) Resolve(key GlyphKey, frame uint64, rasterize RasterizeFunc) (*CacheEntry, error) {
	if e, ok := c.entries[key]; ok {
		e.lastUsed = frame
		c.stats.Hits.Add(1)
		return e, nil
	}
	c.stats.Misses.Add(1)

	bm, err := rasterize(key)
	if err != nil {
		return nil, fmt.Errorf("textatlas: rasterize %v: %w", key, err)
	}

	if bm.Empty() {
		e := &CacheEntry{atlasID: -1, skip: true, lastUsed: frame}
		c.entries[key] = e
		c.stats.Insertions.Add(1)
		return e, nil
	}

	texel := gpu.TexelSize(kindFormat(key.Kind))
	if want := bm.Width * bm.Height * int(texel); len(bm.Data) != want {
		return nil, fmt.Errorf("textatlas: bitmap for %v has %d bytes, want %d", key, len(bm.Data), want)
	}

	atlas, rect, err := c.manager.Allocate(key.Kind, bm.Width, bm.Height, func(atlasID int) bool {
		return c.evictFrom(atlasID, frame)
	})
	if err != nil {
		return nil, err
	}

	if err := c.manager.Upload(atlas, rect, bm.Data); err != nil {
		c.manager.Free(atlas.id, key, rect)
		return nil, fmt.Errorf("textatlas: upload %v: %w", key, err)
	}

	c.manager.Attach(atlas, key)
	e := &CacheEntry{
		atlasID:  atlas.id,
		rect:     rect,
		left:     bm.Left,
		top:      bm.Top,
		lastUsed: frame,
	}
	c.entries[key] = e
	c.stats.Insertions.Add(1)
	return e, nil
}

// evictFrom removes the least recently used glyph of one page, skipping
// entries used in the current frame. Returns false when the page holds
// nothing evictable.
func (c *GlyphCache) evictFrom(atlasID int, frame uint64) bool {
	var victim GlyphKey
	var victimEntry *CacheEntry
	for k, e := range c.entries {
		if e.atlasID != atlasID || e.lastUsed >= frame {
			continue
		}
		if victimEntry == nil || e.lastUsed < victimEntry.lastUsed {
			victim = k
			victimEntry = e
		}
	}
	if victimEntry == nil {
		return false
	}

	c.manager.Free(atlasID, victim, victimEntry.rect)
	delete(c.entries, victim)
	c.stats.Evictions.Add(1)
	slogger().Debug("textatlas: glyph evicted", "atlas", atlasID, "lastUsed", victimEntry.lastUsed, "frame", frame)
	return true
}

// Lookup returns the entry for a key without restamping it, or nil.
func (c *GlyphCache) Lookup(key GlyphKey) *CacheEntry {
	return c.entries[key]
}

// Trim removes one glyph, releasing its atlas region. Returns false if
// the glyph is not resident. The caller is responsible for not rendering
// frame data prepared before the trim.
func (c *GlyphCache) Trim(key GlyphKey) bool {
	e, ok := c.entries[key]
	if !ok {
		return false
	}
	if !e.skip {
		c.manager.Free(e.atlasID, key, e.rect)
	}
	delete(c.entries, key)
	return true
}

// TrimAll removes every glyph, releasing all atlas regions. Atlas pages
// themselves stay allocated and are reused by later frames.
func (c *GlyphCache) TrimAll() {
	for k, e := range c.entries {
		if !e.skip {
			c.manager.Free(e.atlasID, k, e.rect)
		}
		delete(c.entries, k)
	}
}

// Len returns the number of resident entries, including skip entries.
func (c *GlyphCache) Len() int {
	return len(c.entries)
}

// Stats returns cache statistics.
func (c *GlyphCache) Stats() (hits, misses, evictions, insertions uint64) {
	return c.stats.Hits.Load(),
		c.stats.Misses.Load(),
		c.stats.Evictions.Load(),
		c.stats.Insertions.Load()
}

// HitRate returns the cache hit rate as a percentage.
// Returns 0 if there are no accesses.
func (c *GlyphCache) HitRate() float64 {
	hits := c.stats.Hits.Load()
	misses := c.stats.Misses.Load()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

// ResetStats resets the cache statistics.
func (c *GlyphCache) ResetStats() {
	c.stats.Hits.Store(0)
	c.stats.Misses.Store(0)
	c.stats.Evictions.Store(0)
	c.stats.Insertions.Store(0)
}
