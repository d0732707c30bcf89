// Package cache holds recently read guests in process memory.
//
// A guest is stored under both its id and its token so lookups from the
// admin side and from the public link hit the same entry. The full
// listing lives in its own slot. Entries expire after a fixed TTL and
// are dropped explicitly on every write. Misses are never cached.
//
// Every invalidation bumps a generation counter. A reader that loaded from
// the store takes the generation first and stores with PutGuestAt or
// PutAllAt, which refuse the value when a write invalidated in between.
package cache

import (
	"sync"
	"time"

	"wedding-rsvp/internal/models"
)

// DefaultTTL is how long an entry stays valid after insertion
const DefaultTTL = 24 * time.Hour

type entry struct {
	guest     models.Guest
	expiresAt time.Time
}

// Cache is a dual-key TTL cache for guests, safe for concurrent use
type Cache struct {
	mu  sync.RWMutex
	ttl time.Duration
	now func() time.Time

	guests     map[string]entry
	all        []models.Guest
	allExpires time.Time
	allSet     bool
	gen        uint64
}

// New creates a cache. A zero ttl selects DefaultTTL and a nil clock uses time.Now.
func New(ttl time.Duration, now func() time.Time) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{
		ttl:    ttl,
		now:    now,
		guests: make(map[string]entry),
	}
}

func idKey(id string) string       { return "id:" + id }
func tokenKey(token string) string { return "token:" + token }

// GetByID returns the cached guest for an id
func (c *Cache) GetByID(id string) (models.Guest, bool) {
	return c.get(idKey(id))
}

// GetByToken returns the cached guest for a token
func (c *Cache) GetByToken(token string) (models.Guest, bool) {
	return c.get(tokenKey(token))
}

func (c *Cache) get(key string) (models.Guest, bool) {
	c.mu.RLock()
	e, ok := c.guests[key]
	c.mu.RUnlock()
	if !ok || !c.now().Before(e.expiresAt) {
		return models.Guest{}, false
	}
	return e.guest, true
}

// PutGuest stores a guest under its id and, when present, its token
func (c *Cache) PutGuest(g models.Guest) {
	e := entry{guest: g, expiresAt: c.now().Add(c.ttl)}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(g, e)
}

// Generation returns the current invalidation generation
func (c *Cache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// PutGuestAt stores a guest read at generation gen. It reports false and
// stores nothing when the cache was invalidated since.
func (c *Cache) PutGuestAt(g models.Guest, gen uint64) bool {
	e := entry{guest: g, expiresAt: c.now().Add(c.ttl)}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.putLocked(g, e)
	return true
}

func (c *Cache) putLocked(g models.Guest, e entry) {
	if g.ID != "" {
		c.guests[idKey(g.ID)] = e
	}
	if g.Token != "" {
		c.guests[tokenKey(g.Token)] = e
	}
}

// GetAll returns the cached full listing
func (c *Cache) GetAll() ([]models.Guest, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.allSet || !c.now().Before(c.allExpires) {
		return nil, false
	}
	out := make([]models.Guest, len(c.all))
	copy(out, c.all)
	return out, true
}

// PutAll stores the full listing
func (c *Cache) PutAll(guests []models.Guest) {
	cp := make([]models.Guest, len(guests))
	copy(cp, guests)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.setAllLocked(cp)
}

// PutAllAt stores a listing read at generation gen, like PutGuestAt
func (c *Cache) PutAllAt(guests []models.Guest, gen uint64) bool {
	cp := make([]models.Guest, len(guests))
	copy(cp, guests)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.setAllLocked(cp)
	return true
}

func (c *Cache) setAllLocked(guests []models.Guest) {
	c.all = guests
	c.allExpires = c.now().Add(c.ttl)
	c.allSet = true
}

// Invalidate drops the listing and the entries for the given id and
// tokens. Empty keys are ignored.
func (c *Cache) Invalidate(id string, tokens ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	c.all = nil
	c.allSet = false
	if id != "" {
		delete(c.guests, idKey(id))
	}
	for _, t := range tokens {
		if t != "" {
			delete(c.guests, tokenKey(t))
		}
	}
}

// InvalidateAll empties the cache
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	c.guests = make(map[string]entry)
	c.all = nil
	c.allSet = false
}

// Len reports the number of keyed entries, expired ones included
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.guests)
}
