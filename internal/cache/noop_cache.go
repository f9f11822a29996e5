package cache

// NoopCache never stores anything. Used when caching is disabled.
type NoopCache struct{}

func NewNoopCache() *NoopCache {
	return &NoopCache{}
}

func (c *NoopCache) Get(key string) (*Entry, bool) {
	return nil, false
}

func (c *NoopCache) Put(key string, data []byte, contentType string) {
}

func (c *NoopCache) Has(key string) bool {
	return false
}

func (c *NoopCache) Len() int {
	return 0
}

func (c *NoopCache) Clear() {
}

func (c *NoopCache) Stats() Stats {
	return Stats{}
}
