package aurum

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func newTestHoldings(l *fakeLedger, s *memStore) (*Holdings, *clock, *countingObserver) {
	c := &clock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	obs := new(countingObserver)
	h := &Holdings{Clock: c.Now, Observer: obs}
	if l != nil {
		h.Ledger = l
	}
	if s != nil {
		h.Store = s
	}
	return h, c, obs
}

func TestHoldingsMerge(t *testing.T) {
	ctx := context.Background()
	l := &fakeLedger{records: []AssetRecord{
		{UniqueIdentifier: "0xabc", Weight: "5", CertificationDate: "2020-01-01", Timestamp: 10},
		{UniqueIdentifier: "0xdef", Weight: "2.5", CertificationDate: "2021-01-01", Timestamp: 30},
	}}
	s := new(memStore)
	s.Put(ctx, AssetRecord{UniqueIdentifier: "0xabc", Owner: "store-me", Weight: "5", TokenAmount: "7", Timestamp: 20})
	s.Put(ctx, AssetRecord{Owner: "store-me", Weight: "1", Timestamp: 5})

	h, _, _ := newTestHoldings(l, s)
	snap, err := h.Get(ctx, "0xLEDGER", "store-me", false)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	var ids, tokens []string
	for _, r := range snap.Records {
		ids = append(ids, r.UniqueIdentifier)
		tokens = append(tokens, r.TokenAmount)
		if len(r.Owners) == 0 || r.Owner != r.Owners[len(r.Owners)-1].Address {
			t.Errorf("record %q owner %q chain %v, want an initialized chain ending with the owner", r.UniqueIdentifier, r.Owner, r.Owners)
		}
	}
	if diff := cmp.Diff([]string{"0xdef", "0xabc", ""}, ids); diff != "" {
		t.Errorf("Get() ids mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"2", "7", "1"}, tokens); diff != "" {
		t.Errorf("Get() tokens mismatch (-want +got):\n%s", diff)
	}
	if snap.TotalTokens != "10" {
		t.Errorf("Get() TotalTokens = %q, want 10", snap.TotalTokens)
	}
	if snap.Records[0].Owner != "0xLEDGER" {
		t.Errorf("ledger record owner = %q, want the ledger identity", snap.Records[0].Owner)
	}
	if snap.Stale || len(snap.Warnings) != 0 {
		t.Errorf("Get() stale %v warnings %v, want a fresh snapshot", snap.Stale, snap.Warnings)
	}
}

func TestHoldingsIdempotent(t *testing.T) {
	ctx := context.Background()
	l := &fakeLedger{records: []AssetRecord{{UniqueIdentifier: "0x1", Weight: "3", Timestamp: 1}}}
	s := new(memStore)
	h, c, obs := newTestHoldings(l, s)

	first, err := h.Get(ctx, "l", "s", false)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	c.Advance(4 * time.Minute)
	l.records = append(l.records, AssetRecord{UniqueIdentifier: "0x2", Weight: "1"})
	second, err := h.Get(ctx, "l", "s", false)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Get() within the TTL mismatch (-first +second):\n%s", diff)
	}
	if l.calls != 1 || obs.hits != 1 {
		t.Errorf("ledger calls %d cache hits %d, want 1, 1", l.calls, obs.hits)
	}

	forced, err := h.Get(ctx, "l", "s", true)
	if err != nil {
		t.Fatalf("Get(force) error = %v", err)
	}
	if len(forced.Records) != 2 || l.calls != 2 {
		t.Errorf("Get(force) = %d records after %d calls, want 2 records after 2 calls", len(forced.Records), l.calls)
	}

	c.Advance(6 * time.Minute)
	if _, err := h.Get(ctx, "l", "s", false); err != nil || l.calls != 3 {
		t.Errorf("Get() after the TTL: error %v, ledger calls %d, want a refresh", err, l.calls)
	}
}

func TestHoldingsPartialFailure(t *testing.T) {
	ctx := context.Background()
	s := new(memStore)
	s.Put(ctx, AssetRecord{UniqueIdentifier: "s1", Owner: "me", Weight: "4", Timestamp: 1})
	l := &fakeLedger{err: errDown}
	h, _, obs := newTestHoldings(l, s)

	snap, err := h.Get(ctx, "l", "me", false)
	if err != nil {
		t.Fatalf("Get() with a failing ledger error = %v", err)
	}
	if len(snap.Records) != 1 || len(snap.Warnings) != 1 {
		t.Errorf("Get() = %d records, warnings %v, want the store record and one warning", len(snap.Records), snap.Warnings)
	}
	if obs.failed[SourceLedger] != 1 {
		t.Errorf("observer ledger failures = %d, want 1", obs.failed[SourceLedger])
	}

	l.err, s.err = nil, errDown
	l.records = []AssetRecord{{UniqueIdentifier: "l1", Weight: "1"}}
	snap, err = h.Get(ctx, "l", "me", true)
	if err != nil {
		t.Fatalf("Get() with a failing store error = %v", err)
	}
	if len(snap.Records) != 1 || snap.Records[0].UniqueIdentifier != "l1" {
		t.Errorf("Get() with a failing store = %+v, want the ledger record", snap.Records)
	}
}

func TestHoldingsStaleFallback(t *testing.T) {
	ctx := context.Background()
	l := &fakeLedger{records: []AssetRecord{{UniqueIdentifier: "0x1", Weight: "3"}}}
	s := new(memStore)
	h, c, obs := newTestHoldings(l, s)

	fresh, err := h.Get(ctx, "l", "s", false)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	l.err, s.err = errDown, errDown
	c.Advance(10 * time.Minute)
	stale, err := h.Get(ctx, "l", "s", false)
	if err != nil {
		t.Fatalf("Get() with both sources down and a cache: error = %v", err)
	}
	if !stale.Stale || stale.Timestamp != fresh.Timestamp || len(stale.Records) != 1 {
		t.Errorf("Get() = stale %v timestamp %d, want the cached snapshot from %d marked stale", stale.Stale, stale.Timestamp, fresh.Timestamp)
	}
	if obs.stale != 1 {
		t.Errorf("observer stale = %d, want 1", obs.stale)
	}

	_, err = h.Get(ctx, "other", "s", false)
	if !errors.Is(err, ErrLedgerUnavailable) || !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Get() without cache error = %v, want both source errors", err)
	}
}

func TestHoldingsForSession(t *testing.T) {
	ctx := context.Background()
	s := new(memStore)
	s.Put(ctx, AssetRecord{UniqueIdentifier: "s1", Owner: "addr", Weight: "1"})
	h, _, _ := newTestHoldings(nil, s)

	snap, err := h.ForSession(ctx, "", staticIdentity{addr: "addr"}, false)
	if err != nil || len(snap.Records) != 1 {
		t.Fatalf("ForSession() = %d records, %v, want 1 record", len(snap.Records), err)
	}
	if _, err := h.ForSession(ctx, "", staticIdentity{err: ErrSessionUnrecoverable}, false); !errors.Is(err, ErrSessionUnrecoverable) {
		t.Errorf("ForSession() error = %v, want ErrSessionUnrecoverable", err)
	}
}

func TestHoldingsInvalidate(t *testing.T) {
	ctx := context.Background()
	l := &fakeLedger{records: []AssetRecord{{UniqueIdentifier: "0x1", Weight: "3"}}}
	h, _, _ := newTestHoldings(l, nil)
	h.Get(ctx, "l", "s", false)
	h.Invalidate("l", "s")
	h.Get(ctx, "l", "s", false)
	if l.calls != 2 {
		t.Errorf("ledger calls = %d after Invalidate, want 2", l.calls)
	}
}

func TestHoldingsWatch(t *testing.T) {
	l := &fakeLedger{records: []AssetRecord{{UniqueIdentifier: "0x1", Weight: "3"}}}
	h, _, _ := newTestHoldings(l, nil)

	ctx, cancel := context.WithCancel(context.Background())
	var (
		mu    sync.Mutex
		count int
	)
	done := make(chan error)
	go func() {
		done <- h.Watch(ctx, "l", "s", time.Millisecond, func(Snapshot) {
			mu.Lock()
			defer mu.Unlock()
			count++
			if count == 3 {
				cancel()
			}
		})
	}()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Watch() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("Watch() did not refresh")
	}
	if _, err := h.Get(context.Background(), "l", "s", false); err != nil {
		t.Errorf("Get() after Watch error = %v", err)
	}
}

func TestHoldingsAfterTransfer(t *testing.T) {
	ctx := context.Background()
	l, s := new(fakeLedger), new(memStore)
	h, c, _ := newTestHoldings(l, s)
	g := &Registrar{Ledger: l, Store: s, Holdings: h, Clock: c.Now}
	tr := &Tracker{Store: s, Holdings: h, Clock: c.Now}

	r, err := g.Register(ctx, "alice", "alice", Registration{Weight: "10", Purity: "24K", CertificationDate: "2020-01-01"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if snap, err := h.Get(ctx, "alice", "alice", false); err != nil || len(snap.Records) != 1 {
		t.Fatalf("Get(alice) before transfer = %d records, %v, want 1", len(snap.Records), err)
	}

	c.Advance(time.Hour)
	if _, err := tr.TransferOwnership(ctx, r.UniqueIdentifier, "bob", "2023-06-01"); err != nil {
		t.Fatalf("TransferOwnership() error = %v", err)
	}

	alice, err := h.Get(ctx, "alice", "alice", false)
	if err != nil {
		t.Fatalf("Get(alice) error = %v", err)
	}
	if len(alice.Records) != 0 || alice.TotalTokens != "0" {
		t.Errorf("Get(alice) after transfer = %+v, %s tokens, want no records", alice.Records, alice.TotalTokens)
	}

	bob, err := h.Get(ctx, "", "bob", false)
	if err != nil || len(bob.Records) != 1 {
		t.Fatalf("Get(bob) = %d records, %v, want 1", len(bob.Records), err)
	}
	want := []Owner{{"alice", "2020-01-01"}, {"bob", "2023-06-01"}}
	if diff := cmp.Diff(want, bob.Records[0].Owners); diff != "" {
		t.Errorf("Get(bob) owners mismatch (-want +got):\n%s", diff)
	}
}

func TestHoldingsLedgerRecordTakesStoreOwnership(t *testing.T) {
	ctx := context.Background()
	l := &fakeLedger{records: []AssetRecord{{UniqueIdentifier: "0xA", Weight: "4", CertificationDate: "2020-01-01", Timestamp: 1}}}
	s := new(memStore)
	s.Put(ctx, AssetRecord{UniqueIdentifier: "0xa", Owner: "carol", Owners: []Owner{{"me", "2020-01-01"}, {"carol", "2022-02-02"}}, Weight: "4", TokenAmount: "4", CertificationDate: "2022-02-02", Timestamp: 2})
	h, _, _ := newTestHoldings(l, s)

	testCases := []struct {
		store string
		want  int
	}{
		{"carol", 1},
		{"CAROL", 1},
		{"me", 0},
	}
	for _, tc := range testCases {
		snap, err := h.Get(ctx, "me", tc.store, true)
		if err != nil {
			t.Fatalf("Get(%q) error = %v", tc.store, err)
		}
		if len(snap.Records) != tc.want {
			t.Errorf("Get(%q) = %d records, want %d", tc.store, len(snap.Records), tc.want)
			continue
		}
		if tc.want == 1 && (snap.Records[0].Owner != "carol" || snap.Records[0].CertificationDate != "2022-02-02") {
			t.Errorf("Get(%q) = %+v, want the store ownership", tc.store, snap.Records[0])
		}
	}
}
