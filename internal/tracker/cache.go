package tracker

import (
	"sync"

	"github.com/sadopc/habitlab/internal/store"
	"github.com/sadopc/habitlab/internal/telemetry"
)

type cacheKey struct {
	userID       string
	experimentID string
}

// RecordCache holds the sorted record list of each experiment, per user.
// Entries only go stale through record writes, which call Invalidate.
//
// A load reads Version before querying the store and hands it back to Put;
// Put drops the list when an Invalidate or Clear happened in between.
type RecordCache struct {
	mu       sync.RWMutex
	entries  map[cacheKey][]store.DailyRecord
	versions map[string]uint64 // experiment id -> seq at last Invalidate
	cleared  uint64            // seq at last Clear
	seq      uint64
	metrics  *telemetry.Metrics
}

func NewRecordCache(metrics *telemetry.Metrics) *RecordCache {
	return &RecordCache{
		entries:  make(map[cacheKey][]store.DailyRecord),
		versions: make(map[string]uint64),
		metrics:  metrics,
	}
}

func (c *RecordCache) Get(userID, experimentID string) ([]store.DailyRecord, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	records, ok := c.entries[cacheKey{userID, experimentID}]
	c.mu.RUnlock()
	c.metrics.CacheLookup(ok)
	if !ok {
		return nil, false
	}
	return append([]store.DailyRecord(nil), records...), true
}

// Version identifies the cache state of experimentID for a later Put.
func (c *RecordCache) Version(experimentID string) uint64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version(experimentID)
}

func (c *RecordCache) version(experimentID string) uint64 {
	return max(c.versions[experimentID], c.cleared)
}

// Put stores records loaded at version. It reports false and stores nothing
// when the experiment was invalidated since.
func (c *RecordCache) Put(userID, experimentID string, version uint64, records []store.DailyRecord) bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.version(experimentID) != version {
		return false
	}
	c.entries[cacheKey{userID, experimentID}] = append([]store.DailyRecord(nil), records...)
	return true
}

// Invalidate drops every user's entry for experimentID and rejects loads
// that started before the call.
func (c *RecordCache) Invalidate(experimentID string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.seq++
	c.versions[experimentID] = c.seq
	for k := range c.entries {
		if k.experimentID == experimentID {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}

// Clear drops every entry.
func (c *RecordCache) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.seq++
	c.cleared = c.seq
	c.entries = make(map[cacheKey][]store.DailyRecord)
	c.versions = make(map[string]uint64)
	c.mu.Unlock()
}

func (c *RecordCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
