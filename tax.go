package aurum

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/etnz/aurum/date"
	"github.com/shopspring/decimal"
)

// TaxType classifies capital gains by holding period.
type TaxType string

const (
	STCG TaxType = "STCG" // short-term capital gains
	LTCG TaxType = "LTCG" // long-term capital gains
)

// LongTermMonths is the holding period from which gains are long-term.
const LongTermMonths = 36

var (
	LongTermRate  = decimal.RequireFromString("0.208")
	ShortTermRate = decimal.RequireFromString("0.30")
)

const (
	longTermNote  = "20.8% tax rate applies (including inflation indexation)."
	shortTermNote = "Tax rate depends on your income slab (showing maximum rate of 30%)."
)

// Basis selects which date starts the holding period.
type Basis string

const (
	// BasisLastTransfer starts the holding period at the most recent transfer,
	// that is the certification date of the record.
	BasisLastTransfer Basis = "last-transfer"
	// BasisOriginal starts the holding period at the first owner's date.
	BasisOriginal Basis = "original"
)

// ParseBasis parses a Basis name. The empty string is BasisLastTransfer.
func ParseBasis(s string) (Basis, error) {
	switch Basis(strings.ToLower(strings.TrimSpace(s))) {
	case "", BasisLastTransfer:
		return BasisLastTransfer, nil
	case BasisOriginal:
		return BasisOriginal, nil
	}
	return "", fmt.Errorf("unknown tax basis %q want %q or %q", s, BasisLastTransfer, BasisOriginal)
}

// TaxReport is the capital gains computation for one asset. It is derived and never persisted.
type TaxReport struct {
	AssetID                 string
	Weight                  Quantity
	Basis                   Basis
	AcquisitionDate         string // date of the last transfer, as recorded
	OriginalAcquisitionDate string // date of the first owner, as recorded
	HeldSince               date.Date
	HoldingPeriodMonths     int
	TaxType                 TaxType
	TaxRate                 decimal.Decimal
	PurchaseMonth           date.Month
	CurrentMonth            date.Month
	PurchasePrice           Money
	MarketPrice             Money
	PurchaseValue           Money
	CurrentValue            Money
	CapitalGains            Money
	TaxAmount               Money
	Notes                   []string
}

// Note returns the explanatory notes as a single sentence list.
func (r TaxReport) Note() string { return strings.Join(r.Notes, " ") }

func (r TaxReport) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Optional("assetId", r.AssetID)
	w.Append("weight", r.Weight)
	w.Append("basis", r.Basis)
	w.Append("acquisitionDate", r.AcquisitionDate)
	w.Append("originalAcquisitionDate", r.OriginalAcquisitionDate)
	w.Append("heldSince", r.HeldSince)
	w.Append("holdingPeriodMonths", r.HoldingPeriodMonths)
	w.Append("taxType", r.TaxType)
	w.Append("taxRate", r.TaxRate)
	w.Append("purchaseMonth", r.PurchaseMonth)
	w.Append("currentMonth", r.CurrentMonth)
	w.Append("purchasePrice", r.PurchasePrice)
	w.Append("marketPrice", r.MarketPrice)
	w.Append("purchaseValue", r.PurchaseValue)
	w.Append("currentValue", r.CurrentValue)
	w.Append("capitalGains", r.CapitalGains)
	w.Append("taxAmount", r.TaxAmount)
	w.Optional("note", r.Note())
	return w.MarshalJSON()
}

// TaxEngine computes capital gains tax reports.
type TaxEngine struct {
	Prices PriceSource
	Basis  Basis
	Clock  func() time.Time // defaults to time.Now
	Logger *slog.Logger
}

func (e *TaxEngine) now() time.Time {
	if e.Clock == nil {
		return time.Now()
	}
	return e.Clock()
}

func (e *TaxEngine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// holdingMonths counts started 30 day periods between two instants, to the
// millisecond.
func holdingMonths(from, to time.Time) int {
	const period = 30 * date.Day
	d := to.Sub(from).Truncate(time.Millisecond)
	if d < 0 {
		d = -d
	}
	return int((d + period - time.Millisecond) / period)
}

// heldSince resolves the start of the holding period. Bad dates degrade to today with a note.
func (e *TaxEngine) heldSince(r AssetRecord, basis Basis, today date.Date) (date.Date, string) {
	raw := r.AcquisitionDate()
	if basis == BasisOriginal {
		raw = r.OriginalAcquisitionDate()
	}
	d, err := date.Parse(raw)
	if err != nil {
		return today, fmt.Sprintf("Acquisition date %q is invalid, the current date is used instead.", raw)
	}
	if d.Year() < 2000 || d.Year() > today.Year()+1 {
		return today, fmt.Sprintf("Acquisition date %s is out of range, the current date is used instead.", d)
	}
	return d, ""
}

// Compute returns the tax report of an asset.
//
// It fails with ErrInvalidAsset when the weight is not a positive number and
// with ErrTaxUnavailable when no current price is available. Other data
// problems are reported in the notes.
func (e *TaxEngine) Compute(r AssetRecord) (TaxReport, error) {
	weight, err := r.WeightQuantity()
	if err != nil {
		return TaxReport{}, err
	}
	if e.Prices == nil {
		return TaxReport{}, fmt.Errorf("%w: no price source", ErrTaxUnavailable)
	}
	basis := e.Basis
	if basis == "" {
		basis = BasisLastTransfer
	}

	now := e.now()
	today := date.Of(now)
	rep := TaxReport{
		AssetID:                 r.UniqueIdentifier,
		Weight:                  weight,
		Basis:                   basis,
		AcquisitionDate:         r.AcquisitionDate(),
		OriginalAcquisitionDate: r.OriginalAcquisitionDate(),
		CurrentMonth:            date.MonthOf(today),
	}

	since, note := e.heldSince(r, basis, today)
	start := since.Time()
	if note != "" {
		e.logger().Warn("invalid acquisition date", "asset", r.UniqueIdentifier, "basis", basis, "date", rep.AcquisitionDate)
		rep.Notes = append(rep.Notes, note)
		start = now
	}
	rep.HeldSince = since
	rep.PurchaseMonth = date.MonthOf(since)
	rep.HoldingPeriodMonths = holdingMonths(start, now)

	current, err := e.Prices.LookupPrice(rep.CurrentMonth.String())
	if err != nil {
		return TaxReport{}, fmt.Errorf("%w: %w", ErrTaxUnavailable, err)
	}
	purchase, err := e.Prices.LookupPrice(rep.PurchaseMonth.String())
	if err != nil {
		e.logger().Warn("purchase price unavailable", "asset", r.UniqueIdentifier, "month", rep.PurchaseMonth, "error", err)
		rep.Notes = append(rep.Notes, fmt.Sprintf("No price for %s, the current month price is used instead.", rep.PurchaseMonth))
		purchase = current
	}
	rep.PurchasePrice = purchase.PurchasePrice
	rep.MarketPrice = current.MarketPrice

	rep.PurchaseValue = rep.PurchasePrice.Mul(weight)
	rep.CurrentValue = rep.MarketPrice.Mul(weight)
	rep.CapitalGains = rep.CurrentValue.Sub(rep.PurchaseValue)

	if rep.HoldingPeriodMonths >= LongTermMonths {
		rep.TaxType, rep.TaxRate = LTCG, LongTermRate
		rep.Notes = append(rep.Notes, longTermNote)
	} else {
		rep.TaxType, rep.TaxRate = STCG, ShortTermRate
		rep.Notes = append(rep.Notes, shortTermNote)
	}
	rep.TaxAmount = rep.CapitalGains.MulRate(rep.TaxRate)
	return rep, nil
}
