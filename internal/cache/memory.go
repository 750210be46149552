package cache

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/miovo/miovo/internal/ttypes"
)

// MemoryCache holds the newest synthesized payload for each line.
// It never evicts: the number of entries is bounded by the number of lines.
type MemoryCache struct {
	size    int64 // Stored size in bytes
	rawSize int64 // Size before compression

	// Entries in insertion order
	items map[string]*list.Element
	order *list.List

	codec *codec

	// Synchronization
	mu sync.RWMutex

	// Metrics
	hits     int64
	misses   int64
	replaced int64
}

// memoryCacheEntry represents an entry in the memory cache
type memoryCacheEntry struct {
	lineID     string
	value      []byte
	size       int64
	rawSize    int64
	timestamp  time.Time
	lastAccess time.Time
	hits       int64
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache(config Config) (*MemoryCache, error) {
	c := &MemoryCache{
		items: make(map[string]*list.Element),
		order: list.New(),
	}

	if config.Compress {
		codec, err := newCodec(config.CompressionLevel)
		if err != nil {
			return nil, fmt.Errorf("failed to create cache codec: %w", err)
		}
		c.codec = codec
	}

	return c, nil
}

// Get retrieves the payload cached for a line.
func (c *MemoryCache) Get(lineID string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[lineID]
	if !ok {
		c.misses++
		return nil, false
	}

	entry := elem.Value.(*memoryCacheEntry)
	value := entry.value
	if c.codec != nil {
		decoded, err := c.codec.decode(value)
		if err != nil {
			// A payload we cannot read is as good as absent
			c.removeElement(elem)
			c.misses++
			return nil, false
		}
		value = decoded
	}

	entry.hits++
	entry.lastAccess = time.Now()
	c.hits++
	return value, true
}

// Put stores the payload for a line, replacing any previous one.
func (c *MemoryCache) Put(lineID string, audio []byte) error {
	if lineID == "" {
		return ErrEmptyKey
	}
	if len(audio) == 0 {
		return ErrEmptyPayload
	}

	// Own the bytes; callers may reuse their buffer.
	value := make([]byte, len(audio))
	copy(value, audio)
	if c.codec != nil {
		value = c.codec.encode(value)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if elem, ok := c.items[lineID]; ok {
		entry := elem.Value.(*memoryCacheEntry)
		c.size += int64(len(value)) - entry.size
		c.rawSize += int64(len(audio)) - entry.rawSize

		entry.value = value
		entry.size = int64(len(value))
		entry.rawSize = int64(len(audio))
		entry.timestamp = now
		c.replaced++
		return nil
	}

	entry := &memoryCacheEntry{
		lineID:    lineID,
		value:     value,
		size:      int64(len(value)),
		rawSize:   int64(len(audio)),
		timestamp: now,
	}
	c.items[lineID] = c.order.PushBack(entry)
	c.size += entry.size
	c.rawSize += entry.rawSize
	return nil
}

// Delete removes the entry for a line. Deleting a missing line is not an error.
func (c *MemoryCache) Delete(lineID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[lineID]; ok {
		c.removeElement(elem)
		c.replaced++
	}
	return nil
}

// Clear removes all entries from the cache.
func (c *MemoryCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.size = 0
	c.rawSize = 0
	return nil
}

// Size returns the stored size in bytes.
func (c *MemoryCache) Size() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.size
}

// Len returns the number of cached lines.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// Stats returns cache statistics.
func (c *MemoryCache) Stats() ttypes.CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return ttypes.CacheStats{
		Hits:      c.hits,
		Misses:    c.misses,
		Items:     len(c.items),
		Size:      c.size,
		RawSize:   c.rawSize,
		Evictions: c.replaced,
	}
}

// Contains checks if a line has cached audio without counting a hit.
func (c *MemoryCache) Contains(lineID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.items[lineID]
	return ok
}

// Keys returns the cached line ids in insertion order.
func (c *MemoryCache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.items))
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*memoryCacheEntry).lineID)
	}
	return keys
}

// Metadata returns details about a cached line.
func (c *MemoryCache) Metadata(lineID string) (Metadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	elem, ok := c.items[lineID]
	if !ok {
		return Metadata{}, false
	}
	entry := elem.Value.(*memoryCacheEntry)
	return Metadata{
		LineID:     entry.lineID,
		Size:       entry.size,
		RawSize:    entry.rawSize,
		Timestamp:  entry.timestamp,
		LastAccess: entry.lastAccess,
		Hits:       entry.hits,
	}, true
}

// Retain drops every entry whose line id is not in keep.
func (c *MemoryCache) Retain(keep []string) int {
	wanted := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		wanted[id] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		if _, ok := wanted[elem.Value.(*memoryCacheEntry).lineID]; !ok {
			c.removeElement(elem)
			removed++
		}
		elem = next
	}
	return removed
}

// removeElement removes an element from the cache (must be called with lock held).
func (c *MemoryCache) removeElement(elem *list.Element) {
	c.order.Remove(elem)
	entry := elem.Value.(*memoryCacheEntry)
	delete(c.items, entry.lineID)
	c.size -= entry.size
	c.rawSize -= entry.rawSize
}

var _ ttypes.AudioCache = (*MemoryCache)(nil)
