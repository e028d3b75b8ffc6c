// Package store adapts the durable external store of asset records.
//
// Writes and queries go to the network Gateway first. On any failure the
// Adapter falls back to a local Simulation, so that development and offline
// use keep working.
//
// The store is write-once: updating an asset writes a new full version.
// Queries collapse versions by asset identifier, keeping the most recently
// written one, before applying the owner policy.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/etnz/aurum"
)

// Observer is notified when the Adapter falls back to the simulation.
type Observer interface {
	StoreFallback(op string)
}

// Adapter implements aurum.AssetStore.
type Adapter struct {
	Gateway    Gateway     // optional
	Simulation *Simulation // optional
	Match      OwnerMatch
	Logger     *slog.Logger
	Observer   Observer
	Clock      func() time.Time
}

var _ aurum.AssetStore = (*Adapter)(nil)

func (a *Adapter) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}

// fallback logs a network failure and reports whether the simulation can take over.
func (a *Adapter) fallback(op string, err error) bool {
	a.logger().Warn("store network failed", "op", op, "error", err, "fallback", a.Simulation != nil)
	if a.Simulation == nil {
		return false
	}
	if a.Observer != nil {
		a.Observer.StoreFallback(op)
	}
	return true
}

func unavailable(errs ...error) error {
	return fmt.Errorf("%w: %w", aurum.ErrStoreUnavailable, errors.Join(errs...))
}

// Put writes a full version of r and returns its record id.
func (a *Adapter) Put(ctx context.Context, r aurum.AssetRecord) (string, error) {
	now := time.Now()
	if a.Clock != nil {
		now = a.Clock()
	}
	r = complete(r, now)
	var netErr error
	if a.Gateway != nil {
		id, err := a.Gateway.Submit(ctx, r)
		if err == nil {
			return id, nil
		}
		netErr = err
		if !a.fallback("put", err) {
			return "", unavailable(err)
		}
	}
	if a.Simulation == nil {
		return "", unavailable(errors.New("no store configured"))
	}
	id, err := a.Simulation.Put(r)
	if err != nil {
		return "", unavailable(netErr, err)
	}
	return id, nil
}

// QueryByOwner returns the current records of owner.
func (a *Adapter) QueryByOwner(ctx context.Context, owner string) ([]aurum.AssetRecord, error) {
	var netErr error
	if a.Gateway != nil {
		all, err := a.network(ctx, nil)
		if err == nil {
			var out []aurum.AssetRecord
			for _, r := range all {
				if a.Match.Matches(r.CurrentOwner(), owner) {
					out = append(out, r)
				}
			}
			return out, nil
		}
		netErr = err
		if !a.fallback("query", err) {
			return nil, unavailable(err)
		}
	}
	if a.Simulation == nil {
		return nil, unavailable(errors.New("no store configured"))
	}
	out, err := a.Simulation.QueryByOwner(owner, a.Match)
	if err != nil {
		return nil, unavailable(netErr, err)
	}
	return out, nil
}

// Get returns the latest version of an asset.
func (a *Adapter) Get(ctx context.Context, assetID string) (aurum.AssetRecord, error) {
	if a.Gateway != nil {
		tags := []Tag{{TagGoldID, assetID}}
		if lower := strings.ToLower(assetID); lower != assetID {
			tags = append(tags, Tag{TagGoldID, lower})
		}
		// tags match exactly: scan every record when the tagged lookup misses.
		for _, filter := range [][]Tag{tags, nil} {
			all, err := a.network(ctx, filter)
			if err != nil {
				if !a.fallback("get", err) {
					return aurum.AssetRecord{}, unavailable(err)
				}
				break
			}
			for _, r := range all {
				if aurum.SameID(r.UniqueIdentifier, assetID) {
					return r, nil
				}
			}
		}
	}
	if a.Simulation == nil {
		return aurum.AssetRecord{}, fmt.Errorf("%w: %q", aurum.ErrAssetNotFound, assetID)
	}
	return a.Simulation.Get(assetID)
}

// network reads every record version tagged for this application, and
// additionally matching one of the Gold-ID tags when given.
//
// Owner filtering is done on the decoded records: the tag filter of the
// network is exact, and a transferred asset keeps its older versions
// tagged with the previous owner.
func (a *Adapter) network(ctx context.Context, ids []Tag) ([]aurum.AssetRecord, error) {
	base := []Tag{{TagAppName, AppName}, {TagType, RecordType}}
	queries := [][]Tag{base}
	if len(ids) > 0 {
		queries = queries[:0]
		for _, id := range ids {
			queries = append(queries, append(base[:len(base):len(base)], id))
		}
	}

	byTx := make(map[string]aurum.AssetRecord)
	for _, q := range queries {
		nodes, err := a.Gateway.Query(ctx, q)
		if err != nil {
			return nil, err
		}
		for _, n := range nodes {
			if _, ok := byTx[n.ID]; ok {
				continue
			}
			r, err := a.decode(ctx, n)
			if err != nil {
				a.logger().Warn("skipping unreadable record", "tx", n.ID, "error", err)
				continue
			}
			byTx[n.ID] = r
		}
	}
	return collapse(byTx), nil
}

// decode reads the record of a transaction, completed from its tags.
func (a *Adapter) decode(ctx context.Context, n Node) (aurum.AssetRecord, error) {
	data, err := a.Gateway.Data(ctx, n.ID)
	if err != nil {
		return aurum.AssetRecord{}, err
	}
	var r aurum.AssetRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return aurum.AssetRecord{}, fmt.Errorf("cannot decode record: %w", err)
	}
	if v, ok := n.Tag(TagTokenAmount); ok && r.TokenAmount == "" {
		r.TokenAmount = v
	}
	if v, ok := n.Tag(TagGoldID); ok && r.UniqueIdentifier == "" {
		r.UniqueIdentifier = v
	}
	if v, ok := n.Tag(TagOwner); ok && r.Owner == "" && len(r.Owners) == 0 {
		r.Owner = v
	}
	if r.ImageDataURL != "" {
		r.HasImage = true
	}
	return r, nil
}
