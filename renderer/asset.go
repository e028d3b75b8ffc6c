package renderer

import (
	"bytes"
	"fmt"

	"github.com/etnz/aurum"
	md "github.com/nao1215/markdown"
)

// AssetMarkdown renders the details of an asset and its provenance chain.
func AssetMarkdown(r aurum.AssetRecord) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1(fmt.Sprintf("Gold %s", displayID(r.UniqueIdentifier)))
	rows := [][]string{
		{"Owner", r.CurrentOwner()},
		{"Weight (g)", r.Weight},
		{"Purity", r.Purity},
		{"Tokens", r.TokenAmount},
		{"Certification", r.CertificationDetails},
		{"Certification Date", r.CertificationDate},
		{"Mine Location", r.MineLocation},
		{"Registered", displayTime(r.Timestamp)},
	}
	if r.ParentGoldID != "" {
		rows = append(rows, []string{"Parent Gold ID", r.ParentGoldID})
	}
	if r.HasImage {
		rows = append(rows, []string{"Image", "yes"})
	}
	doc.Table(md.TableSet{
		Alignment: []md.TableAlignment{md.AlignLeft, md.AlignLeft},
		Header:    []string{md.Bold("Description"), md.Bold(r.Description)},
		Rows:      rows,
	})

	if len(r.Owners) > 0 {
		doc.H2("Provenance")
		var chain []string
		for i, o := range r.Owners {
			line := fmt.Sprintf("%s since %s", o.Address, o.Date)
			if i == len(r.Owners)-1 {
				line = md.Bold(line)
			}
			chain = append(chain, line)
		}
		doc.OrderedList(chain...)
	}
	return doc.String()
}
