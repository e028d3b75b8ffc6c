package aurum

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/etnz/aurum/date"
)

// DefaultRefreshInterval is the period of background refreshes.
const DefaultRefreshInterval = 2 * time.Minute

// Holdings reconciles the ledger and the durable store into cached snapshots.
//
// Either source may be nil, it is then ignored. Holdings is safe for concurrent use.
type Holdings struct {
	Ledger   Ledger
	Store    AssetStore
	Cache    *SnapshotCache
	Clock    func() time.Time
	Logger   *slog.Logger
	Observer Observer
	// Match reports whether a record owned by recordOwner belongs to owner.
	// It defaults to a case-insensitive match that also accepts records
	// without owner.
	Match func(recordOwner, owner string) bool

	once sync.Once
}

func (h *Holdings) init() {
	h.once.Do(func() {
		if h.Cache == nil {
			h.Cache = new(SnapshotCache)
		}
		if h.Clock == nil {
			h.Clock = time.Now
		}
		if h.Logger == nil {
			h.Logger = slog.Default()
		}
		if h.Cache.Clock == nil {
			h.Cache.Clock = h.Clock
		}
		if h.Match == nil {
			h.Match = func(recordOwner, owner string) bool {
				return recordOwner == "" || strings.EqualFold(recordOwner, owner)
			}
		}
		if h.Cache.Observer == nil && h.Observer != nil {
			h.Cache.Observer = h.Observer
		}
	})
}

// Get returns the holdings of the identity pair.
//
// A valid cached snapshot is returned as is unless force is set. Otherwise
// both sources are queried concurrently; a failing source degrades the
// snapshot, which then carries a warning. When every source fails the last
// cached snapshot is returned marked stale, and if there is none the joined
// source errors are returned.
func (h *Holdings) Get(ctx context.Context, ledgerIdentity, storeIdentity string, force bool) (Snapshot, error) {
	h.init()
	key := CacheKey(ledgerIdentity, storeIdentity)
	if !force {
		if s, ok := h.Cache.Get(key); ok {
			return s, nil
		}
	}

	snap, err := h.refresh(ctx, ledgerIdentity, storeIdentity)
	if err == nil {
		h.Cache.Put(key, snap)
		return snap, nil
	}

	last, ok := h.Cache.Last(key)
	if !ok {
		return Snapshot{}, err
	}
	h.Logger.Warn("serving stale holdings", "key", key, "since", last.Time(), "error", err)
	if h.Observer != nil {
		h.Observer.StaleServed()
	}
	last.Stale = true
	last.Warnings = append(last.Warnings, err.Error())
	return last, nil
}

// ForSession is like Get with the store identity taken from the session.
func (h *Holdings) ForSession(ctx context.Context, ledgerIdentity string, id StoreIdentity, force bool) (Snapshot, error) {
	addr, err := id.StoreAddress(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("cannot resolve store identity: %w", err)
	}
	return h.Get(ctx, ledgerIdentity, addr, force)
}

// refresh queries both sources and merges their records.
func (h *Holdings) refresh(ctx context.Context, ledgerIdentity, storeIdentity string) (Snapshot, error) {
	start := h.Clock()
	var (
		wg                       sync.WaitGroup
		fromLedger, fromStore    []AssetRecord
		ledgerErr, storeErr      error
		queriedLedger, queriedSt bool
	)
	if h.Ledger != nil && ledgerIdentity != "" {
		queriedLedger = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			fromLedger, ledgerErr = h.Ledger.GoldDetails(ctx, ledgerIdentity)
			if ledgerErr != nil {
				ledgerErr = fmt.Errorf("%w: %w", ErrLedgerUnavailable, ledgerErr)
			}
		}()
	}
	if h.Store != nil && storeIdentity != "" {
		queriedSt = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			fromStore, storeErr = h.Store.QueryByOwner(ctx, storeIdentity)
			if storeErr != nil {
				storeErr = fmt.Errorf("%w: %w", ErrStoreUnavailable, storeErr)
			}
		}()
	}
	wg.Wait()

	if !queriedLedger && !queriedSt {
		return Snapshot{}, errors.New("no source to query holdings from")
	}

	var warnings []string
	if ledgerErr != nil {
		h.sourceFailed(SourceLedger, ledgerIdentity, ledgerErr)
		warnings = append(warnings, ledgerErr.Error())
	}
	if storeErr != nil {
		h.sourceFailed(SourceStore, storeIdentity, storeErr)
		warnings = append(warnings, storeErr.Error())
	}
	if (!queriedLedger || ledgerErr != nil) && (!queriedSt || storeErr != nil) {
		return Snapshot{}, errors.Join(ledgerErr, storeErr)
	}

	// The ledger returns the caller's own assets.
	for i := range fromLedger {
		if fromLedger[i].Owner == "" && len(fromLedger[i].Owners) == 0 {
			fromLedger[i].Owner = ledgerIdentity
		}
	}

	if queriedSt && storeErr == nil {
		fromLedger = h.resolveOwners(ctx, fromLedger, fromStore, storeIdentity)
	}

	m := Merge(fromLedger, fromStore)
	for _, err := range m.Invalid {
		h.Logger.Warn("cannot estimate token amount", "error", err)
	}
	if m.Estimated > 0 && !m.Accumulated.Equal(m.TotalTokens) {
		h.Logger.Info("recomputed total tokens", "accumulated", m.Accumulated, "total", m.TotalTokens, "estimated", m.Estimated)
	}

	today := date.Of(start)
	for i := range m.Records {
		m.Records[i].EnsureOwners(today)
	}

	snap := Snapshot{
		Records:     m.Records,
		TotalTokens: m.TotalTokens.String(),
		Timestamp:   h.Clock().UnixMilli(),
		Warnings:    warnings,
	}
	if h.Observer != nil {
		h.Observer.Refreshed(h.Clock().Sub(start))
	}
	h.Logger.Debug("refreshed holdings", "ledger", ledgerIdentity, "store", storeIdentity, "records", len(snap.Records), "tokens", snap.TotalTokens)
	return snap, nil
}

// resolveOwners replaces the ownership data of ledger records with the latest
// store version of the same asset, and drops the records the store says now
// belong to someone other than storeIdentity. The ledger keeps listing an
// asset under whoever registered it, transfers only reach the store.
func (h *Holdings) resolveOwners(ctx context.Context, fromLedger, fromStore []AssetRecord, storeIdentity string) []AssetRecord {
	out := fromLedger[:0]
	for _, r := range fromLedger {
		latest, ok := findID(fromStore, r.UniqueIdentifier)
		if !ok && r.UniqueIdentifier != "" {
			var err error
			latest, err = h.Store.Get(ctx, r.UniqueIdentifier)
			switch {
			case err == nil:
				ok = true
			case !errors.Is(err, ErrAssetNotFound):
				h.Logger.Warn("cannot resolve the current owner", "asset", r.UniqueIdentifier, "error", err)
			}
		}
		if ok {
			r.adoptOwnership(latest)
			if !h.Match(latest.CurrentOwner(), storeIdentity) {
				h.Logger.Debug("asset transferred away", "asset", r.UniqueIdentifier, "owner", latest.CurrentOwner())
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// findID returns the record of records with the identifier id.
func findID(records []AssetRecord, id string) (AssetRecord, bool) {
	for _, r := range records {
		if SameID(r.UniqueIdentifier, id) {
			return r, true
		}
	}
	return AssetRecord{}, false
}

func (h *Holdings) sourceFailed(source, identity string, err error) {
	h.Logger.Warn("holdings source failed", "source", source, "identity", identity, "error", err)
	if h.Observer != nil {
		h.Observer.SourceFailed(source)
	}
}

// Watch refreshes the holdings of the identity pair every interval until ctx
// is done. Each refreshed snapshot is passed to onRefresh when it is not nil.
// Get keeps serving the previous snapshot while a refresh is in flight.
func (h *Holdings) Watch(ctx context.Context, ledgerIdentity, storeIdentity string, interval time.Duration, onRefresh func(Snapshot)) error {
	h.init()
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s, err := h.Get(ctx, ledgerIdentity, storeIdentity, true)
			if err != nil {
				h.Logger.Warn("background refresh failed", "ledger", ledgerIdentity, "store", storeIdentity, "error", err)
				continue
			}
			if onRefresh != nil {
				onRefresh(s)
			}
		}
	}
}

// Invalidate drops the cached snapshot of the identity pair.
func (h *Holdings) Invalidate(ledgerIdentity, storeIdentity string) {
	h.init()
	h.Cache.Invalidate(CacheKey(ledgerIdentity, storeIdentity))
}

// InvalidateAll drops every cached snapshot.
func (h *Holdings) InvalidateAll() {
	h.init()
	h.Cache.InvalidateAll()
}
