package adapters

import (
	"github.com/biorecords/biorecords/internal/server/cache"
	"github.com/biorecords/biorecords/internal/server/events"
)

// CacheInvalidator flushes the response cache on every record event.
type CacheInvalidator struct {
	cache *cache.Cache
}

// NewCacheInvalidator creates a subscriber that clears c.
func NewCacheInvalidator(c *cache.Cache) *CacheInvalidator {
	return &CacheInvalidator{cache: c}
}

// Send clears the cache for record events and ignores the rest.
func (ci *CacheInvalidator) Send(event events.Event) error {
	switch event.Type {
	case events.RecordCreated, events.RecordUpdated, events.RecordDeleted:
		ci.cache.Clear()
	}
	return nil
}

// Close is a no-op.
func (ci *CacheInvalidator) Close() error {
	return nil
}
