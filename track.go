package aurum

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/etnz/aurum/date"
)

// Resolver finds a single asset by identifier.
type Resolver struct {
	Ledger Ledger
	Store  AssetStore
	Clock  func() time.Time
	Logger *slog.Logger
}

// Find looks the asset up in the ledger registrations of ledgerIdentity
// first, then in the store. Identifiers match case-insensitively.
//
// A ledger record found in the store too is completed with the store's
// ownership data.
func (f *Resolver) Find(ctx context.Context, ledgerIdentity, id string) (AssetRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return AssetRecord{}, fmt.Errorf("%w: empty identifier", ErrAssetNotFound)
	}
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now
	if f.Clock != nil {
		now = f.Clock
	}

	var errs []error
	var found *AssetRecord
	if f.Ledger != nil && ledgerIdentity != "" {
		records, err := f.Ledger.GoldDetails(ctx, ledgerIdentity)
		if err != nil {
			logger.Warn("ledger lookup failed", "asset", id, "error", err)
			errs = append(errs, fmt.Errorf("%w: %w", ErrLedgerUnavailable, err))
		}
		for _, r := range records {
			if SameID(r.UniqueIdentifier, id) {
				if r.Owner == "" {
					r.Owner = ledgerIdentity
				}
				found = &r
				break
			}
		}
	}

	if f.Store != nil {
		stored, err := f.Store.Get(ctx, id)
		switch {
		case err == nil && found == nil:
			found = &stored
		case err == nil:
			found.adoptOwnership(stored)
		case !errors.Is(err, ErrAssetNotFound):
			logger.Warn("store lookup failed", "asset", id, "error", err)
			errs = append(errs, fmt.Errorf("%w: %w", ErrStoreUnavailable, err))
		}
	}

	if found == nil {
		return AssetRecord{}, errors.Join(append([]error{fmt.Errorf("%w: %q", ErrAssetNotFound, id)}, errs...)...)
	}
	r := found.Clone()
	if _, err := r.EstimateTokens(); err != nil {
		logger.Warn("cannot estimate token amount", "asset", id, "error", err)
	}
	r.EnsureOwners(date.Of(now()))
	return r, nil
}
