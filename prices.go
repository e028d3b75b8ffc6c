package aurum

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/etnz/aurum/date"
	"github.com/shopspring/decimal"
)

//go:embed prices.json
var defaultPrices []byte

// Price is the gold price of one month, per gram of 24K gold.
type Price struct {
	PurchasePrice Money
	MarketPrice   Money
}

// PriceSource looks up the price of a month given as "YYYY-MM".
type PriceSource interface {
	LookupPrice(month string) (Price, error)
}

// PriceTable is a monthly price series.
type PriceTable struct {
	prices date.History[Price]
}

// DefaultPrices returns the built-in INR series from 2020-01 to 2025-12.
func DefaultPrices() *PriceTable {
	t, err := DecodePrices(bytes.NewReader(defaultPrices))
	if err != nil {
		panic(err) // embedded data is valid
	}
	return t
}

// Set sets the price of a month.
func (t *PriceTable) Set(m date.Month, p Price) { t.prices.Append(m.FirstDay(), p) }

// Len returns the number of months in the table.
func (t *PriceTable) Len() int { return t.prices.Len() }

// Range returns the first and last month of the table.
func (t *PriceTable) Range() (first, last date.Month) {
	f, _ := t.prices.First()
	l, _ := t.prices.Latest()
	return date.MonthOf(f), date.MonthOf(l)
}

// Months returns the months in chronological order with their prices.
func (t *PriceTable) Months() ([]date.Month, []Price) {
	var months []date.Month
	var prices []Price
	for on, p := range t.prices.Values() {
		months = append(months, date.MonthOf(on))
		prices = append(prices, p)
	}
	return months, prices
}

// LookupPrice returns the price of the given month.
//
// A month outside the table is clamped to the earliest or latest month. A
// month inside the table that has no entry uses the nearest prior month.
func (t *PriceTable) LookupPrice(month string) (Price, error) {
	if t == nil || t.prices.Len() == 0 {
		return Price{}, fmt.Errorf("%w: empty price table", ErrPriceUnavailable)
	}
	m, err := date.ParseMonth(month)
	if err != nil {
		return Price{}, fmt.Errorf("%w: %w", ErrPriceUnavailable, err)
	}
	day := m.FirstDay()
	if first, p := t.prices.First(); day.Before(first) {
		return p, nil
	}
	if last, p := t.prices.Latest(); day.After(last) {
		return p, nil
	}
	p, _ := t.prices.ValueAsOf(day)
	return p, nil
}

type jsonPrice struct {
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
	MarketPrice   decimal.Decimal `json:"marketPrice"`
}

// DecodePrices reads a table from a JSON object keyed by "YYYY-MM".
func DecodePrices(r io.Reader) (*PriceTable, error) {
	var raw map[string]jsonPrice
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("could not decode price table: %w", err)
	}
	t := new(PriceTable)
	for k, v := range raw {
		m, err := date.ParseMonth(k)
		if err != nil {
			return nil, fmt.Errorf("invalid price table key: %w", err)
		}
		if string(m) != k {
			return nil, fmt.Errorf("invalid price table key %q want format %q", k, date.MonthFormat)
		}
		t.Set(m, Price{PurchasePrice: INR(v.PurchasePrice), MarketPrice: INR(v.MarketPrice)})
	}
	return t, nil
}

// LoadPrices reads a table from a JSON file.
func LoadPrices(path string) (*PriceTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodePrices(f)
}

// MarshalJSON writes a price as one entry of the table format.
func (p Price) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonPrice{p.PurchasePrice.Decimal(), p.MarketPrice.Decimal()})
}

// MarshalJSON writes the table in the format read by DecodePrices.
func (t *PriceTable) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	for on, p := range t.prices.Values() {
		w.Append(date.MonthOf(on).String(), jsonPrice{p.PurchasePrice.Decimal(), p.MarketPrice.Decimal()})
	}
	return w.MarshalJSON()
}
