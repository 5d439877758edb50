package tilecache

import (
	"time"

	"github.com/karlseguin/ccache/v3"
)

// entries of a bounded store only leave it by eviction
const lruEntryTTL = 100 * 365 * 24 * time.Hour

// LRUStore is a bounded store evicting the least recently used tile.
// Eviction runs on the cache's worker goroutine, so Len may briefly
// exceed the bound after a Set.
type LRUStore struct {
	maxSize int
	cache   *ccache.Cache[Entry]
}

// NewLRUStore creates a store holding at most maxSize tiles.
func NewLRUStore(maxSize int) *LRUStore {
	if maxSize < 1 {
		maxSize = 1
	}
	return &LRUStore{
		maxSize: maxSize,
		cache: ccache.New(ccache.Configure[Entry]().
			MaxSize(int64(maxSize)).
			ItemsToPrune(1).
			GetsPerPromote(1)),
	}
}

func (c *LRUStore) Has(key Key) bool {
	_, ok := c.Get(key)
	return ok
}

func (c *LRUStore) Get(key Key) (Entry, bool) {
	item := c.cache.Get(key.String())
	if item == nil || item.Expired() {
		return Entry{}, false
	}
	return item.Value(), true
}

func (c *LRUStore) Set(key Key, entry Entry) {
	c.cache.Set(key.String(), entry, lruEntryTTL)
}

func (c *LRUStore) Len() int {
	return c.cache.ItemCount()
}

func (c *LRUStore) Clear() {
	c.cache.Clear()
}
