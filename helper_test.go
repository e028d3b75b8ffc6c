package aurum

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/etnz/aurum/events"
)

// fakeLedger serves fixed records, or fails with err.
type fakeLedger struct {
	mu      sync.Mutex
	records []AssetRecord
	err     error
	calls   int
	nextID  int
}

func (l *fakeLedger) GoldDetails(context.Context, string) ([]AssetRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	out := make([]AssetRecord, len(l.records))
	for i, r := range l.records {
		out[i] = r.Clone()
	}
	return out, nil
}

func (l *fakeLedger) RegisterGold(_ context.Context, _ string, reg Registration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return "", l.err
	}
	l.nextID++
	id := fmt.Sprintf("0x%024x", l.nextID)
	l.records = append(l.records, AssetRecord{UniqueIdentifier: id, Weight: reg.Weight, CertificationDate: reg.CertificationDate})
	return id, nil
}

// memStore is an append-only AssetStore.
type memStore struct {
	mu       sync.Mutex
	versions []AssetRecord
	err      error
	calls    int
}

func (s *memStore) Put(_ context.Context, r AssetRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.versions = append(s.versions, r.Clone())
	return fmt.Sprintf("mem-%d", len(s.versions)), nil
}

func (s *memStore) latest() []AssetRecord {
	byID := make(map[string][]AssetRecord)
	var order []string
	for _, v := range s.versions {
		k := strings.ToLower(v.UniqueIdentifier)
		if _, ok := byID[k]; !ok {
			order = append(order, k)
		}
		byID[k] = append(byID[k], v)
	}
	var out []AssetRecord
	for _, k := range order {
		r, _ := Latest(byID[k])
		out = append(out, r.Clone())
	}
	return out
}

func (s *memStore) QueryByOwner(_ context.Context, owner string) ([]AssetRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	var out []AssetRecord
	for _, r := range s.latest() {
		if strings.EqualFold(r.Owner, owner) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) Get(_ context.Context, id string) (AssetRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return AssetRecord{}, s.err
	}
	for _, r := range s.latest() {
		if SameID(r.UniqueIdentifier, id) {
			return r, nil
		}
	}
	return AssetRecord{}, fmt.Errorf("%w: %q", ErrAssetNotFound, id)
}

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// countingObserver counts the engine signals.
type countingObserver struct {
	mu                          sync.Mutex
	hits, misses, stale, refresh int
	failed                      map[string]int
}

func (o *countingObserver) CacheHit()  { o.mu.Lock(); o.hits++; o.mu.Unlock() }
func (o *countingObserver) CacheMiss() { o.mu.Lock(); o.misses++; o.mu.Unlock() }
func (o *countingObserver) StaleServed() {
	o.mu.Lock()
	o.stale++
	o.mu.Unlock()
}
func (o *countingObserver) Refreshed(time.Duration) { o.mu.Lock(); o.refresh++; o.mu.Unlock() }
func (o *countingObserver) SourceFailed(source string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failed == nil {
		o.failed = make(map[string]int)
	}
	o.failed[source]++
}

// staticIdentity is a StoreIdentity with a fixed answer.
type staticIdentity struct {
	addr string
	err  error
}

func (s staticIdentity) StoreAddress(context.Context) (string, error) { return s.addr, s.err }

var errDown = errors.New("connection refused")

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
