// Package renderer renders reports as markdown.
package renderer

import (
	"bytes"
	"fmt"
	"time"

	"github.com/etnz/aurum"
	md "github.com/nao1215/markdown"
)

// timeFormat is the layout of fetch times in reports.
const timeFormat = "2006-01-02 15:04:05"

// HoldingsMarkdown renders a holdings snapshot.
func HoldingsMarkdown(s aurum.Snapshot) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1("Gold Holdings")
	fetched := s.Time().Format(timeFormat)
	if s.Stale {
		fetched = md.Bold("stale") + ", fetched " + fetched
	}
	doc.Table(md.TableSet{
		Alignment: []md.TableAlignment{md.AlignLeft, md.AlignRight},
		Header:    []string{md.Bold("Total Tokens"), md.Bold(s.TotalTokens)},
		Rows: [][]string{
			{"Assets", fmt.Sprint(len(s.Records))},
			{"Fetched", fetched},
		},
	})

	if len(s.Warnings) > 0 {
		doc.H2("Warnings")
		doc.BulletList(s.Warnings...)
	}

	if len(s.Records) > 0 {
		doc.H2("Assets")
		table := md.TableSet{
			Alignment: []md.TableAlignment{md.AlignLeft, md.AlignRight, md.AlignLeft, md.AlignRight, md.AlignLeft, md.AlignLeft},
			Header:    []string{"Gold ID", "Weight (g)", "Purity", "Tokens", "Certified", "Description"},
		}
		for _, r := range s.Records {
			tokens := r.TokenAmount
			if r.TokenEstimated {
				tokens += " (est.)"
			}
			table.Rows = append(table.Rows, []string{
				displayID(r.UniqueIdentifier),
				r.Weight,
				r.Purity,
				tokens,
				r.CertificationDate,
				r.Description,
			})
		}
		doc.Table(table)
	}
	return doc.String()
}

func displayID(id string) string {
	if id == "" {
		return "-"
	}
	return id
}

func displayTime(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).UTC().Format(timeFormat)
}
