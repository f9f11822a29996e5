package cache

import "time"

// Entry is a cached upstream image keyed by its source URL.
// Data must be treated as read-only by callers.
type Entry struct {
	Key         string
	Data        []byte
	ContentType string
	InsertedAt  time.Time
}

// Fresh reports whether the entry is younger than ttl at now.
// Stale entries stay in the store until overwritten or evicted.
func (e *Entry) Fresh(ttl time.Duration, now time.Time) bool {
	return now.Sub(e.InsertedAt) < ttl
}

type Stats struct {
	Entries   int    `json:"entries"`
	Capacity  int    `json:"capacity"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

type Cache interface {
	Get(key string) (*Entry, bool)
	Put(key string, data []byte, contentType string)
	Has(key string) bool // Presence check that does not touch hit/miss counters
	Len() int
	Clear()
	Stats() Stats
}
