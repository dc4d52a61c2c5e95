package metadata

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/arisuwu/telestream/internal/types"
	"github.com/coocood/freecache"
)

// descriptorCache is a freecache-backed, gob-encoded FileDescriptor store.
// freecache's own ring-buffer eviction already gives us a byte-capped,
// TTL-bounded cache; no separate LRU structure is layered on top of it
// (a hand-rolled one here would just duplicate what freecache evicts for
// us already).
type descriptorCache struct {
	cache        *freecache.Cache
	capacityByte int
}

func newDescriptorCache(sizeBytes int) *descriptorCache {
	return &descriptorCache{cache: freecache.NewCache(sizeBytes), capacityByte: sizeBytes}
}

func (c *descriptorCache) get(key string) (*types.FileDescriptor, bool) {
	data, err := c.cache.Get([]byte(key))
	if err != nil {
		return nil, false
	}
	var d types.FileDescriptor
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&d); err != nil {
		return nil, false
	}
	return &d, true
}

func (c *descriptorCache) set(key string, d *types.FileDescriptor, ttlSeconds int) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(d); err != nil {
		return fmt.Errorf("encoding descriptor: %w", err)
	}
	return c.cache.Set([]byte(key), buf.Bytes(), ttlSeconds)
}

func (c *descriptorCache) delete(key string) {
	c.cache.Del([]byte(key))
}

// entryCount and capacity report the cache's occupancy for the status
// dashboard's human-readable size display.
func (c *descriptorCache) entryCount() int64 {
	return c.cache.EntryCount()
}

func (c *descriptorCache) capacity() int {
	return c.capacityByte
}

func cacheKey(messageID int64) string {
	return fmt.Sprintf("descriptor:%d", messageID)
}
