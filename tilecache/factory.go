package tilecache

import (
	"fmt"

	"go.uber.org/zap"
)

// NewStore creates a store based on the cache type
func NewStore(cacheType string, maxTiles int, log *zap.Logger) (Store, error) {
	switch cacheType {
	case "memory", "":
		log.Info("Using unbounded memory tile cache")
		return NewMapStore(), nil
	case "lru":
		log.Info("Using LRU tile cache", zap.Int("max_tiles", maxTiles))
		return NewLRUStore(maxTiles), nil
	case "disabled":
		log.Info("Tile cache disabled")
		return NewNoopStore(), nil
	default:
		return nil, fmt.Errorf("unknown cache type: %s (supported: memory, lru, disabled)", cacheType)
	}
}
