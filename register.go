package aurum

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/etnz/aurum/date"
	"github.com/etnz/aurum/events"
)

// Registrar registers new assets on the ledger and records them in the store.
type Registrar struct {
	Ledger    LedgerRegistrar
	Store     AssetStore
	Publisher events.Publisher // optional
	Holdings  *Holdings        // optional, its cache is invalidated after a registration
	Clock     func() time.Time
	Logger    *slog.Logger
}

// Register registers reg for owner and returns the stored record.
//
// The ledger registration is authoritative: when the store write fails the
// record is returned together with an ErrStoreUnavailable error.
func (g *Registrar) Register(ctx context.Context, owner, ledgerIdentity string, reg Registration) (AssetRecord, error) {
	logger := g.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now()
	if g.Clock != nil {
		now = g.Clock()
	}

	r := AssetRecord{
		Owner:                strings.TrimSpace(owner),
		Weight:               strings.TrimSpace(reg.Weight),
		Purity:               reg.Purity,
		Description:          reg.Description,
		CertificationDetails: reg.CertificationDetails,
		CertificationDate:    reg.CertificationDate,
		MineLocation:         reg.MineLocation,
		ParentGoldID:         reg.ParentGoldID,
		ImageDataURL:         reg.ImageDataURL,
		HasImage:             reg.ImageDataURL != "",
		Timestamp:            now.UnixMilli(),
	}
	if r.Owner == "" {
		return AssetRecord{}, fmt.Errorf("%w: owner is required", ErrInvalidAsset)
	}
	w, err := r.WeightQuantity()
	if err != nil {
		return AssetRecord{}, err
	}
	if _, err := date.Parse(reg.CertificationDate); err != nil {
		return AssetRecord{}, fmt.Errorf("%w: %w", ErrInvalidAsset, err)
	}
	r.TokenAmount = w.Floor().String()

	id, err := g.Ledger.RegisterGold(ctx, ledgerIdentity, reg)
	if err != nil {
		return AssetRecord{}, fmt.Errorf("%w: %w", ErrLedgerUnavailable, err)
	}
	r.UniqueIdentifier = id
	r.EnsureOwners(date.Of(now))
	logger.Info("gold registered", "asset", id, "owner", r.Owner, "weight", r.Weight)

	if g.Holdings != nil {
		defer g.Holdings.InvalidateAll()
	}
	if g.Publisher != nil {
		e := events.Event{Type: events.TypeRegistered, AssetID: id, Owner: r.Owner, Date: r.CertificationDate, At: now}
		if err := g.Publisher.Publish(ctx, e); err != nil {
			logger.Warn("cannot publish registration", "asset", id, "error", err)
		}
	}

	if _, err := g.Store.Put(ctx, r); err != nil {
		return r, fmt.Errorf("%w: asset %s registered but not stored: %w", ErrStoreUnavailable, id, err)
	}
	return r, nil
}
