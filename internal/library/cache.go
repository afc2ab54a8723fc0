package library

import (
	"sync"
	"time"
)

type cacheEntry struct {
	records []Record
	at      time.Time
}

// listingCache keeps the last listing per user. Every change to a user's
// files bumps that user's generation; a listing computed under an older
// generation is never stored.
type listingCache struct {
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]cacheEntry
	gens    map[string]uint64
	now     func() time.Time
}

func newListingCache(ttl time.Duration) *listingCache {
	return &listingCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		gens:    make(map[string]uint64),
		now:     time.Now,
	}
}

func (c *listingCache) generation(uid string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gens[uid]
}

func (c *listingCache) get(uid string) ([]Record, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.RLock()
	e, ok := c.entries[uid]
	c.mu.RUnlock()

	if !ok || c.now().Sub(e.at) >= c.ttl {
		return nil, false
	}
	return cloneRecords(e.records), true
}

// put stores records unless uid changed since gen was read.
func (c *listingCache) put(uid string, gen uint64, records []Record) bool {
	if c.ttl <= 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[uid] != gen {
		return false
	}
	c.entries[uid] = cacheEntry{records: cloneRecords(records), at: c.now()}
	return true
}

// remove drops one file from a cached listing without touching its age.
func (c *listingCache) remove(uid, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gens[uid]++
	e, ok := c.entries[uid]
	if !ok {
		return
	}
	kept := e.records[:0:0]
	for _, r := range e.records {
		if r.Name != name {
			kept = append(kept, r)
		}
	}
	e.records = kept
	c.entries[uid] = e
}

func (c *listingCache) invalidate(uid string) {
	c.mu.Lock()
	c.gens[uid]++
	delete(c.entries, uid)
	c.mu.Unlock()
}

func cloneRecords(in []Record) []Record {
	out := make([]Record, len(in))
	copy(out, in)
	return out
}
