package renderer

import (
	"bytes"
	"fmt"

	"github.com/etnz/aurum"
	md "github.com/nao1215/markdown"
)

// TaxMarkdown renders a tax report.
func TaxMarkdown(r aurum.TaxReport) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1(fmt.Sprintf("Capital Gains Tax %s", displayID(r.AssetID)))
	doc.Table(md.TableSet{
		Alignment: []md.TableAlignment{md.AlignLeft, md.AlignRight},
		Header:    []string{md.Bold("Tax Due"), md.Bold(r.TaxAmount.String())},
		Rows: [][]string{
			{"Classification", string(r.TaxType)},
			{"Tax Rate", r.TaxRate.Shift(2).String() + "%"},
			{"Holding Period", fmt.Sprintf("%d months", r.HoldingPeriodMonths)},
			{"Held Since", r.HeldSince.String()},
			{"Acquisition Date", r.AcquisitionDate},
			{"Original Acquisition Date", r.OriginalAcquisitionDate},
			{"Basis", string(r.Basis)},
		},
	})

	doc.H2("Valuation")
	doc.Table(md.TableSet{
		Alignment: []md.TableAlignment{md.AlignLeft, md.AlignRight, md.AlignRight, md.AlignRight},
		Header:    []string{"", "Month", "Price / g", "Value"},
		Rows: [][]string{
			{"Purchase", r.PurchaseMonth.String(), r.PurchasePrice.String(), r.PurchaseValue.String()},
			{"Current", r.CurrentMonth.String(), r.MarketPrice.String(), r.CurrentValue.String()},
			{md.Bold("Capital Gains"), "", fmt.Sprintf("%s g", r.Weight), md.Bold(r.CapitalGains.SignedString())},
		},
	})

	if len(r.Notes) > 0 {
		doc.H2("Notes")
		doc.BulletList(r.Notes...)
	}
	return doc.String()
}
