package aurum

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/etnz/aurum/kv"
)

// DefaultTTL is the validity of a holdings snapshot.
const DefaultTTL = 5 * time.Minute

// Snapshot is the reconciled view of the holdings of one identity pair.
type Snapshot struct {
	Records     []AssetRecord `json:"records"`
	TotalTokens string        `json:"totalTokens"`
	Timestamp   int64         `json:"timestamp"` // unix milliseconds of the fetch

	// Stale is set when the snapshot is served after a failed refresh.
	Stale bool `json:"-"`
	// Warnings describes partial failures of the refresh that built it.
	Warnings []string `json:"-"`
}

// Time returns the fetch time of the snapshot.
func (s Snapshot) Time() time.Time { return time.UnixMilli(s.Timestamp) }

// clone returns a copy that shares nothing with s.
func (s Snapshot) clone() Snapshot {
	records := make([]AssetRecord, len(s.Records))
	for i, r := range s.Records {
		records[i] = r.Clone()
	}
	s.Records = records
	s.Warnings = append([]string(nil), s.Warnings...)
	return s
}

// keyPart escapes the separator of cache keys out of identities.
var keyPart = strings.NewReplacer("%", "%25", "_", "%5F")

// CacheKey returns the key of the snapshot of an identity pair.
func CacheKey(ledgerIdentity, storeIdentity string) string {
	return "goldHoldings_" + keyPart.Replace(ledgerIdentity) + "_" + keyPart.Replace(storeIdentity)
}

// CacheObserver is notified of cache lookups.
type CacheObserver interface {
	CacheHit()
	CacheMiss()
}

// SnapshotCache keeps the last snapshot of each identity pair. Snapshots
// older than the TTL are not served by Get but remain available through
// Last, as a stale fallback.
//
// When a kv.Store is set, snapshots are also persisted and survive restarts.
type SnapshotCache struct {
	TTL      time.Duration
	Store    kv.Store
	Clock    func() time.Time
	Observer CacheObserver
	Logger   *slog.Logger

	mu      sync.RWMutex
	entries map[string]Snapshot
}

func (c *SnapshotCache) now() time.Time {
	if c.Clock == nil {
		return time.Now()
	}
	return c.Clock()
}

func (c *SnapshotCache) ttl() time.Duration {
	if c.TTL <= 0 {
		return DefaultTTL
	}
	return c.TTL
}

func (c *SnapshotCache) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// Last returns the latest snapshot stored for key, whatever its age.
func (c *SnapshotCache) Last(key string) (Snapshot, bool) {
	c.mu.RLock()
	s, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return s.clone(), true
	}
	if c.Store == nil {
		return Snapshot{}, false
	}
	if err := kv.GetJSON(c.Store, key, &s); err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			c.logger().Warn("cannot read cached holdings", "key", key, "error", err)
		}
		return Snapshot{}, false
	}
	c.mu.Lock()
	if c.entries == nil {
		c.entries = make(map[string]Snapshot)
	}
	if _, ok := c.entries[key]; !ok {
		c.entries[key] = s
	}
	c.mu.Unlock()
	return s.clone(), true
}

// Get returns the snapshot stored for key if it is still valid.
func (c *SnapshotCache) Get(key string) (Snapshot, bool) {
	s, ok := c.Last(key)
	if ok && c.now().Sub(s.Time()) >= c.ttl() {
		ok = false
	}
	if c.Observer != nil {
		if ok {
			c.Observer.CacheHit()
		} else {
			c.Observer.CacheMiss()
		}
	}
	if !ok {
		return Snapshot{}, false
	}
	return s, true
}

// Put replaces the snapshot of key.
func (c *SnapshotCache) Put(key string, s Snapshot) {
	s = s.clone()
	s.Stale = false
	c.mu.Lock()
	if c.entries == nil {
		c.entries = make(map[string]Snapshot)
	}
	c.entries[key] = s
	c.mu.Unlock()
	if c.Store != nil {
		if err := kv.SetJSON(c.Store, key, s); err != nil {
			c.logger().Warn("cannot persist holdings", "key", key, "error", err)
		}
	}
}

// Invalidate removes the snapshot of key.
func (c *SnapshotCache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	if c.Store != nil {
		if err := c.Store.Delete(key); err != nil && !errors.Is(err, kv.ErrNotFound) {
			c.logger().Warn("cannot remove cached holdings", "key", key, "error", err)
		}
	}
}

// InvalidateAll removes every snapshot known to the cache.
func (c *SnapshotCache) InvalidateAll() {
	c.mu.Lock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	c.entries = nil
	c.mu.Unlock()
	for _, k := range keys {
		c.Invalidate(k)
	}
}
