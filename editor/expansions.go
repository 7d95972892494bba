package editor

import (
	"sync"
	"time"

	"github.com/cyp0633/recuredit/recurrence"
)

// Default bounds of the expansion cache
const (
	DefaultExpansionCacheSize = 256
	DefaultExpansionCacheTTL  = 30 * time.Minute
)

// expansionKey identifies the input an expansion was opened from. A session
// whose rule, start or zone changed no longer matches its cached expansion.
type expansionKey struct {
	ruleText string
	start    int64
	location string
}

type cachedExpansion struct {
	// mu serializes growth of exp, which is not safe for concurrent use
	mu       sync.Mutex
	key      expansionKey
	exp      *recurrence.Expansion
	lastUsed time.Time
}

// expansionCache keeps open expansions between requests so that "show more"
// continues the sweep where the previous page stopped instead of regenerating it
type expansionCache struct {
	mu         sync.Mutex
	entries    map[string]*cachedExpansion
	maxEntries int
	ttl        time.Duration
	now        func() time.Time

	hits   int64
	misses int64
}

func newExpansionCache(maxEntries int, ttl time.Duration, now func() time.Time) *expansionCache {
	return &expansionCache{
		entries:    make(map[string]*cachedExpansion),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        now,
	}
}

func (c *expansionCache) enabled() bool {
	return c != nil && c.maxEntries > 0
}

// get returns the live expansion of a session opened from key, or nil
func (c *expansionCache) get(id string, key expansionKey) *cachedExpansion {
	if !c.enabled() {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	now := c.now()
	if !ok || entry.key != key || (c.ttl > 0 && now.Sub(entry.lastUsed) > c.ttl) {
		if ok {
			delete(c.entries, id)
		}
		c.misses++
		return nil
	}

	entry.lastUsed = now
	c.hits++
	return entry
}

// put stores an expansion, evicting the least recently used entry over the cap
func (c *expansionCache) put(id string, key expansionKey, exp *recurrence.Expansion) {
	if !c.enabled() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[id] = &cachedExpansion{key: key, exp: exp, lastUsed: c.now()}

	for len(c.entries) > c.maxEntries {
		var oldestID string
		var oldest time.Time
		for eid, e := range c.entries {
			if oldestID == "" || e.lastUsed.Before(oldest) {
				oldestID, oldest = eid, e.lastUsed
			}
		}
		delete(c.entries, oldestID)
	}
}

func (c *expansionCache) drop(id string) {
	if !c.enabled() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// ExpansionStats reports expansion cache usage
type ExpansionStats struct {
	Entries int
	Hits    int64
	Misses  int64
}

func (c *expansionCache) stats() ExpansionStats {
	if c == nil {
		return ExpansionStats{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return ExpansionStats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses}
}
