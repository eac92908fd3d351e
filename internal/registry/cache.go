package registry

import (
	"sync"
	"sync/atomic"
	"time"
)

// SkillCache is a TTL-based in-memory cache with stale-while-revalidate for
// skill manifests. Uses sync.Map for lock-free reads on the hot path.
type SkillCache struct {
	store sync.Map // map[string]*skillCacheEntry
	ttl   time.Duration
}

type skillCacheEntry struct {
	skill      *Skill // nil = negative cache (skill not registered)
	expiresAt  time.Time
	refreshing atomic.Bool
}

// CacheGetResult holds the result of a cache lookup.
type CacheGetResult struct {
	Skill        *Skill // nil if not found or negative cache
	Hit          bool   // true if a value was found (fresh or stale)
	NeedsRefresh bool   // true if expired — caller should refresh in background
}

// NewSkillCache creates a cache with the given TTL.
func NewSkillCache(ttl time.Duration) *SkillCache {
	return &SkillCache{ttl: ttl}
}

// cacheKey builds the lookup key for a workspace+skill pair.
func cacheKey(workspaceID, name string) string {
	return workspaceID + "/" + name
}

// Get performs a non-blocking cache lookup.
// Returns stale entries with NeedsRefresh=true when expired.
func (c *SkillCache) Get(workspaceID, name string) CacheGetResult {
	key := cacheKey(workspaceID, name)
	val, ok := c.store.Load(key)
	if !ok {
		return CacheGetResult{Hit: false}
	}

	entry := val.(*skillCacheEntry)
	now := time.Now()

	if now.Before(entry.expiresAt) {
		// Fresh hit
		return CacheGetResult{
			Skill: entry.skill,
			Hit:   true,
		}
	}

	// Stale hit — signal refresh needed (only one goroutine wins the CAS)
	needsRefresh := entry.refreshing.CompareAndSwap(false, true)
	return CacheGetResult{
		Skill:        entry.skill,
		Hit:          true,
		NeedsRefresh: needsRefresh,
	}
}

// Set stores a skill manifest in the cache with a fresh TTL.
// Passing nil stores a negative cache entry (skill not registered).
func (c *SkillCache) Set(workspaceID, name string, skill *Skill) {
	key := cacheKey(workspaceID, name)
	c.store.Store(key, &skillCacheEntry{
		skill:     skill,
		expiresAt: time.Now().Add(c.ttl),
	})
}

// Delete removes an entry from the cache. Mutating API handlers call it so a
// write is visible on the next read instead of a TTL later.
func (c *SkillCache) Delete(workspaceID, name string) {
	key := cacheKey(workspaceID, name)
	c.store.Delete(key)
}
