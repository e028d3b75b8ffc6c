package aurum

import (
	"context"
	"time"
)

// Ledger reads the authoritative registrations of an account.
type Ledger interface {
	// GoldDetails returns the assets registered by identity. Records carry no owner.
	GoldDetails(ctx context.Context, identity string) ([]AssetRecord, error)
}

// Registration holds the fields submitted to register a new asset on the ledger.
type Registration struct {
	Weight               string `json:"weight"`
	Purity               string `json:"purity"`
	Description          string `json:"description"`
	CertificationDetails string `json:"certificationDetails"`
	CertificationDate    string `json:"certificationDate"`
	MineLocation         string `json:"mineLocation"`
	ParentGoldID         string `json:"parentGoldId,omitempty"`
	ImageDataURL         string `json:"imageDataUrl,omitempty"`
}

// LedgerRegistrar registers new assets on the ledger.
type LedgerRegistrar interface {
	// RegisterGold submits a registration from identity and returns the asset identifier.
	RegisterGold(ctx context.Context, identity string, reg Registration) (string, error)
}

// AssetStore is the durable store of asset records. Records are write-once:
// updating an asset writes a full new version of it.
type AssetStore interface {
	Put(ctx context.Context, r AssetRecord) (string, error)
	QueryByOwner(ctx context.Context, owner string) ([]AssetRecord, error)
	// Get returns the latest version of an asset, ErrAssetNotFound if there is none.
	Get(ctx context.Context, assetID string) (AssetRecord, error)
}

// StoreIdentity provides the address identifying the user to the durable store.
type StoreIdentity interface {
	StoreAddress(ctx context.Context) (string, error)
}

// Observer receives the operational signals of the holdings engine.
type Observer interface {
	CacheObserver
	SourceFailed(source string)
	Refreshed(d time.Duration)
	StaleServed()
}

// Source names used in logs, warnings and metrics.
const (
	SourceLedger = "ledger"
	SourceStore  = "store"
)
