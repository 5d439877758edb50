package tilecache

import (
	"sync"

	"github.com/paulmach/orb/maptile"
)

// MapStore is the unbounded store: tile source -> tile address -> entry.
// Nothing is ever evicted.
type MapStore struct {
	mu      sync.RWMutex
	sources map[string]map[maptile.Tile]Entry
	size    int
}

func NewMapStore() *MapStore {
	return &MapStore{sources: make(map[string]map[maptile.Tile]Entry)}
}

func (c *MapStore) Get(key Key) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tiles, ok := c.sources[key.Source]
	if !ok {
		return Entry{}, false
	}
	entry, ok := tiles[key.Tile]
	return entry, ok
}

func (c *MapStore) Set(key Key, entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tiles, ok := c.sources[key.Source]
	if !ok {
		tiles = make(map[maptile.Tile]Entry)
		c.sources[key.Source] = tiles
	}
	if _, exists := tiles[key.Tile]; !exists {
		c.size++
	}
	tiles[key.Tile] = entry
}

func (c *MapStore) Has(key Key) bool {
	_, ok := c.Get(key)
	return ok
}

func (c *MapStore) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.size
}

// Sources lists the tile sources with at least one entry.
func (c *MapStore) Sources() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sources := make([]string, 0, len(c.sources))
	for s := range c.sources {
		sources = append(sources, s)
	}
	return sources
}

func (c *MapStore) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sources = make(map[string]map[maptile.Tile]Entry)
	c.size = 0
}
