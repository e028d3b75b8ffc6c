package renderer

import (
	"bytes"

	"github.com/etnz/aurum"
	md "github.com/nao1215/markdown"
)

// PricesMarkdown renders the monthly price table.
func PricesMarkdown(t *aurum.PriceTable) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1("Gold Prices (24K, per gram)")
	table := md.TableSet{
		Alignment: []md.TableAlignment{md.AlignLeft, md.AlignRight, md.AlignRight},
		Header:    []string{"Month", "Purchase", "Market"},
	}
	months, prices := t.Months()
	for i, m := range months {
		table.Rows = append(table.Rows, []string{m.String(), prices[i].PurchasePrice.String(), prices[i].MarketPrice.String()})
	}
	doc.Table(table)
	return doc.String()
}
