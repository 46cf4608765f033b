package cache

import "time"

// Cache is a TTL'd key-value cache for token metadata lookups.
type Cache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{}, ttl time.Duration) bool
	Delete(key string)
	Clear()
	Close()
	Wait()
}
