package aurum

import (
	"fmt"
	"strings"

	"github.com/etnz/aurum/date"
	"github.com/shopspring/decimal"
)

// Owner is one link of an asset's provenance chain.
type Owner struct {
	Address string `json:"address"`
	Date    string `json:"date"`
}

// AssetRecord represents one registered gold item.
//
// Dates are kept as the strings received from the sources: they may be
// malformed, and the consumers decide how to degrade.
type AssetRecord struct {
	UniqueIdentifier     string  `json:"uniqueIdentifier"`
	Owner                string  `json:"owner"`
	Weight               string  `json:"weight"`
	Purity               string  `json:"purity"`
	Description          string  `json:"description"`
	CertificationDetails string  `json:"certificationDetails"`
	CertificationDate    string  `json:"certificationDate"`
	MineLocation         string  `json:"mineLocation"`
	ParentGoldID         string  `json:"parentGoldId,omitempty"`
	TokenAmount          string  `json:"tokenAmount,omitempty"`
	TokenEstimated       bool    `json:"tokenEstimated,omitempty"`
	Timestamp            int64   `json:"timestamp"`           // creation, unix milliseconds
	UpdatedAt            int64   `json:"updatedAt,omitempty"` // write time of this version, unix milliseconds
	Owners               []Owner `json:"owners,omitempty"`
	ImageDataURL         string  `json:"imageDataUrl,omitempty"`
	HasImage             bool    `json:"hasImage,omitempty"`
}

// Clone returns a deep copy of r.
func (r AssetRecord) Clone() AssetRecord {
	if r.Owners != nil {
		r.Owners = append([]Owner(nil), r.Owners...)
	}
	return r
}

// WeightQuantity parses the weight. A non numeric or non positive weight is an ErrInvalidAsset.
func (r AssetRecord) WeightQuantity() (Quantity, error) {
	w, err := decimal.NewFromString(strings.TrimSpace(r.Weight))
	if err != nil {
		return Quantity{}, fmt.Errorf("%w: weight %q is not a number", ErrInvalidAsset, r.Weight)
	}
	if !w.IsPositive() {
		return Quantity{}, fmt.Errorf("%w: weight %q must be positive", ErrInvalidAsset, r.Weight)
	}
	return Q(w), nil
}

// Tokens parses the token amount. It returns false when it is absent or not a number.
func (r AssetRecord) Tokens() (Quantity, bool) {
	if strings.TrimSpace(r.TokenAmount) == "" {
		return Quantity{}, false
	}
	v, err := decimal.NewFromString(strings.TrimSpace(r.TokenAmount))
	if err != nil {
		return Quantity{}, false
	}
	return Q(v), true
}

// hasTokens reports whether the record carries a non-empty, non-zero token amount.
func (r AssetRecord) hasTokens() bool {
	q, ok := r.Tokens()
	return ok && !q.IsZero()
}

// EstimateTokens sets a missing token amount to floor(weight) and reports
// whether it did. An invalid weight estimates to zero tokens.
func (r *AssetRecord) EstimateTokens() (bool, error) {
	if strings.TrimSpace(r.TokenAmount) != "" {
		return false, nil
	}
	r.TokenEstimated = true
	w, err := r.WeightQuantity()
	if err != nil {
		r.TokenAmount = "0"
		return true, err
	}
	r.TokenAmount = w.Floor().String()
	return true, nil
}

// EnsureOwners initializes the provenance chain from the current owner and the
// certification date, or on the given day when the certification date is
// empty. When the chain exists the owner is realigned on its last entry.
// A record without owner and without chain is left untouched.
func (r *AssetRecord) EnsureOwners(on date.Date) {
	if len(r.Owners) > 0 {
		r.Owner = r.Owners[len(r.Owners)-1].Address
		return
	}
	if r.Owner == "" {
		return
	}
	since := r.CertificationDate
	if strings.TrimSpace(since) == "" {
		since = on.String()
	}
	r.Owners = []Owner{{Address: r.Owner, Date: since}}
}

// CurrentOwner returns the last address of the provenance chain.
func (r AssetRecord) CurrentOwner() string {
	if len(r.Owners) == 0 {
		return r.Owner
	}
	return r.Owners[len(r.Owners)-1].Address
}

// adoptOwnership copies the ownership data of the store version s onto r.
func (r *AssetRecord) adoptOwnership(s AssetRecord) {
	r.Owner, r.Owners = s.Owner, append([]Owner(nil), s.Owners...)
	r.CertificationDate = s.CertificationDate
	r.TokenAmount, r.TokenEstimated = s.TokenAmount, s.TokenEstimated
	r.ImageDataURL, r.HasImage = s.ImageDataURL, s.HasImage
}

// AcquisitionDate is the date the current owner acquired the asset.
func (r AssetRecord) AcquisitionDate() string { return r.CertificationDate }

// OriginalAcquisitionDate is the date of the first entry of the provenance chain.
func (r AssetRecord) OriginalAcquisitionDate() string {
	if len(r.Owners) == 0 {
		return r.CertificationDate
	}
	return r.Owners[0].Date
}

// version orders write-once versions of the same asset.
func (r AssetRecord) version() int64 {
	if r.UpdatedAt != 0 {
		return r.UpdatedAt
	}
	return r.Timestamp
}

// Latest returns, among versions of the same asset, the most recently written one.
// Ties keep the earliest in the slice.
func Latest(versions []AssetRecord) (AssetRecord, bool) {
	if len(versions) == 0 {
		return AssetRecord{}, false
	}
	best := versions[0]
	for _, v := range versions[1:] {
		if v.version() > best.version() {
			best = v
		}
	}
	return best, true
}

// SameID reports whether two asset identifiers are equal, ignoring case.
func SameID(a, b string) bool { return a != "" && strings.EqualFold(a, b) }
