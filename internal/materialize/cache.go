package materialize

import (
	"sync"

	"github.com/golang/groupcache/lru"

	"github.com/robert-malhotra/go-chunkio/internal/hash"
)

// ChunkCache keeps recently decoded chunks so hot chunks are read and
// decoded once. It is safe for concurrent use. Cached buffers are shared
// and must be treated as read-only.
type ChunkCache struct {
	mu    sync.Mutex
	cache *lru.Cache

	hits, misses uint64
}

type cachedChunk struct {
	coord []uint64
	data  []byte
}

// NewChunkCache returns a cache holding up to maxChunks decoded chunks.
// It returns nil when maxChunks is not positive; a nil cache caches nothing.
func NewChunkCache(maxChunks int) *ChunkCache {
	if maxChunks <= 0 {
		return nil
	}
	return &ChunkCache{cache: lru.New(maxChunks)}
}

// Get returns the decoded chunk at coord.
func (c *ChunkCache) Get(coord []uint64) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.cache.Get(hash.Coord(coord))
	if ok {
		if cc := v.(*cachedChunk); hash.Equal(cc.coord, coord) {
			c.hits++
			return cc.data, true
		}
	}
	c.misses++
	return nil, false
}

// Put stores the decoded chunk at coord.
func (c *ChunkCache) Put(coord []uint64, data []byte) {
	if c == nil {
		return
	}
	key := make([]uint64, len(coord))
	copy(key, coord)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(hash.Coord(coord), &cachedChunk{coord: key, data: data})
}

// Len returns the number of cached chunks.
func (c *ChunkCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}

// Stats returns the hit and miss counts.
func (c *ChunkCache) Stats() (hits, misses uint64) {
	if c == nil {
		return 0, 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
