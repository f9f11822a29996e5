package cache

import (
	"fmt"

	"go.uber.org/zap"
)

// NewCache creates a cache instance based on the cache type
func NewCache(cacheType string, maxEntries int, log *zap.Logger) (Cache, error) {
	switch cacheType {
	case "memory":
		log.Info("Using memory cache", zap.Int("max_entries", maxEntries))
		return NewMemoryCache(maxEntries), nil
	case "disabled":
		log.Info("Cache disabled")
		return NewNoopCache(), nil
	default:
		return nil, fmt.Errorf("unknown cache type: %s (supported: memory, disabled)", cacheType)
	}
}
