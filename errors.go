package aurum

import (
	"errors"

	"github.com/etnz/aurum/session"
)

// Recoverable failures degrade the result and are logged; only
// ErrSessionUnrecoverable and the failure of both data sources without a
// cached snapshot reach the user as a failure.
var (
	ErrLedgerUnavailable = errors.New("ledger unavailable")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrPriceUnavailable  = errors.New("price unavailable")
	ErrInvalidAsset      = errors.New("invalid asset")
	ErrTaxUnavailable    = errors.New("tax unavailable")
	ErrAssetNotFound     = errors.New("asset not found")
	ErrInvalidTransfer   = errors.New("invalid transfer")

	ErrSessionUnrecoverable = session.ErrUnrecoverable
)
