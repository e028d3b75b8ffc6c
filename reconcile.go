package aurum

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Merged is the result of merging ledger and store records.
type Merged struct {
	Records     []AssetRecord
	TotalTokens Quantity // sum over Records after estimation
	Accumulated Quantity // sum of the token amounts found in the raw input
	Estimated   int      // number of records whose token amount was estimated
	Invalid     []error  // records whose estimation failed
}

// syntheticKey identifies a record without identifier. It is only used to
// deduplicate and never replaces the record's identifier.
func syntheticKey(r AssetRecord) string {
	return fmt.Sprintf("local-%d-%s", r.Timestamp, strings.ReplaceAll(uuid.NewString(), "-", "")[:9])
}

// Merge concatenates ledger and store records and returns a single view:
//
//   - records sharing an identifier are collapsed into one, preferring the
//     one carrying a non-zero token amount, else the first;
//   - records without identifier survive as distinct entries;
//   - missing token amounts are estimated to floor(weight);
//   - records are sorted by timestamp, most recent first.
//
// Merge does not modify its inputs.
func Merge(ledger, store []AssetRecord) Merged {
	var m Merged
	index := make(map[string]int)
	for _, r := range slices.Concat(ledger, store) {
		if q, ok := r.Tokens(); ok {
			m.Accumulated = m.Accumulated.Add(q)
		}
		key := strings.ToLower(r.UniqueIdentifier)
		if key == "" {
			key = syntheticKey(r)
		}
		i, seen := index[key]
		if !seen {
			index[key] = len(m.Records)
			m.Records = append(m.Records, r.Clone())
			continue
		}
		if !m.Records[i].hasTokens() && r.hasTokens() {
			m.Records[i] = r.Clone()
		}
	}

	for i := range m.Records {
		r := &m.Records[i]
		estimated, err := r.EstimateTokens()
		if estimated {
			m.Estimated++
		}
		if err != nil {
			m.Invalid = append(m.Invalid, fmt.Errorf("asset %q: %w", r.UniqueIdentifier, err))
		}
		if q, ok := r.Tokens(); ok {
			m.TotalTokens = m.TotalTokens.Add(q)
		}
	}

	slices.SortStableFunc(m.Records, func(a, b AssetRecord) int {
		switch {
		case a.Timestamp > b.Timestamp:
			return -1
		case a.Timestamp < b.Timestamp:
			return 1
		}
		return 0
	})
	return m
}
