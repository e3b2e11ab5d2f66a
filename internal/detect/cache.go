package detect

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"
)

// scoreCache memoizes detection verdicts by content signature so repeated
// scoring of identical text (re-processing flows, resumed jobs) skips the
// network call.
type scoreCache struct {
	mu         sync.RWMutex
	entries    map[string]scoreEntry
	ttl        time.Duration
	maxEntries int
}

type scoreEntry struct {
	result    Result
	createdAt time.Time
	expiresAt time.Time
}

func newScoreCache(ttl time.Duration, maxEntries int) *scoreCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &scoreCache{
		entries:    make(map[string]scoreEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

func (c *scoreCache) get(signature string) (Result, bool) {
	c.mu.RLock()
	entry, exists := c.entries[signature]
	c.mu.RUnlock()

	if !exists {
		return Result{}, false
	}
	if time.Now().UTC().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, signature)
		c.mu.Unlock()
		return Result{}, false
	}
	return entry.result, true
}

func (c *scoreCache) put(signature string, result Result) {
	now := time.Now().UTC()

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}
	c.entries[signature] = scoreEntry{
		result:    result,
		createdAt: now,
		expiresAt: now.Add(c.ttl),
	}
}

func (c *scoreCache) evictOldest() {
	if len(c.entries) == 0 {
		return
	}

	type pair struct {
		key   string
		entry scoreEntry
	}
	pairs := make([]pair, 0, len(c.entries))
	for key, entry := range c.entries {
		pairs = append(pairs, pair{key: key, entry: entry})
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].entry.createdAt.Before(pairs[j].entry.createdAt)
	})
	delete(c.entries, pairs[0].key)
}

func cacheSignature(text string, passThreshold float64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%.2f||%s", passThreshold, text)))
	return hex.EncodeToString(sum[:])
}
