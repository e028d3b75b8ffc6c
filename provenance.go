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

// Tracker maintains the ownership history of assets in the durable store.
type Tracker struct {
	Store     AssetStore
	Publisher events.Publisher // optional
	Holdings  *Holdings        // optional, its cache is invalidated after a transfer
	Clock     func() time.Time
	Logger    *slog.Logger
}

func (t *Tracker) now() time.Time {
	if t.Clock == nil {
		return time.Now()
	}
	return t.Clock()
}

func (t *Tracker) logger() *slog.Logger {
	if t.Logger == nil {
		return slog.Default()
	}
	return t.Logger
}

// TransferOwnership appends newOwner to the provenance chain of an asset and
// writes the full record back to the store.
//
// The certification date of the record becomes the transfer date, so that
// AcquisitionDate is the date the current owner acquired it, while
// OriginalAcquisitionDate keeps the first owner's date.
func (t *Tracker) TransferOwnership(ctx context.Context, assetID, newOwner, transferDate string) (AssetRecord, error) {
	newOwner = strings.TrimSpace(newOwner)
	if newOwner == "" {
		return AssetRecord{}, fmt.Errorf("%w: new owner is required", ErrInvalidTransfer)
	}
	if strings.TrimSpace(transferDate) == "" {
		return AssetRecord{}, fmt.Errorf("%w: transfer date is required", ErrInvalidTransfer)
	}
	on, err := date.Parse(transferDate)
	if err != nil {
		return AssetRecord{}, fmt.Errorf("%w: %w", ErrInvalidTransfer, err)
	}

	r, err := t.Store.Get(ctx, assetID)
	if err != nil {
		return AssetRecord{}, fmt.Errorf("cannot transfer %q: %w", assetID, err)
	}
	now := t.now()
	previous := r.CurrentOwner()

	r.EnsureOwners(date.Of(now))
	r.Owners = append(r.Owners, Owner{Address: newOwner, Date: on.String()})
	r.Owner = newOwner
	r.CertificationDate = on.String()
	r.UpdatedAt = now.UnixMilli()

	if _, err := t.Store.Put(ctx, r); err != nil {
		return AssetRecord{}, fmt.Errorf("cannot store transfer of %q: %w", assetID, err)
	}
	t.logger().Info("ownership transferred", "asset", assetID, "from", previous, "to", newOwner, "date", on)

	if t.Holdings != nil {
		t.Holdings.InvalidateAll()
	}
	if t.Publisher != nil {
		e := events.Event{Type: events.TypeTransferred, AssetID: r.UniqueIdentifier, Owner: newOwner, PreviousOwner: previous, Date: on.String(), At: now}
		if err := t.Publisher.Publish(ctx, e); err != nil {
			t.logger().Warn("cannot publish transfer", "asset", assetID, "error", err)
		}
	}
	return r, nil
}

// History returns the provenance chain of an asset, oldest owner first.
func (t *Tracker) History(ctx context.Context, assetID string) ([]Owner, error) {
	r, err := t.Store.Get(ctx, assetID)
	if err != nil {
		return nil, err
	}
	r.EnsureOwners(date.Of(t.now()))
	return r.Owners, nil
}
