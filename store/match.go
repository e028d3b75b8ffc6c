package store

import (
	"fmt"
	"strings"
)

// OwnerMatch is the policy deciding whether a record belongs to an owner.
type OwnerMatch int

const (
	// MatchFoldOrOrphan matches owners case-insensitively and also matches
	// records without owner, so that locally created fixtures are not hidden.
	MatchFoldOrOrphan OwnerMatch = iota
	// MatchFold matches owners case-insensitively.
	MatchFold
	// MatchExact matches owners byte for byte.
	MatchExact
)

func (m OwnerMatch) String() string {
	switch m {
	case MatchExact:
		return "exact"
	case MatchFold:
		return "fold"
	case MatchFoldOrOrphan:
		return "fold-or-orphan"
	default:
		return fmt.Sprintf("OwnerMatch(%d)", int(m))
	}
}

// ParseOwnerMatch parses a policy name as returned by String.
func ParseOwnerMatch(s string) (OwnerMatch, error) {
	for _, m := range []OwnerMatch{MatchExact, MatchFold, MatchFoldOrOrphan} {
		if strings.EqualFold(strings.TrimSpace(s), m.String()) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown owner match policy %q want exact, fold or fold-or-orphan", s)
}

// Matches reports whether a record owned by recordOwner belongs to owner.
func (m OwnerMatch) Matches(recordOwner, owner string) bool {
	switch m {
	case MatchExact:
		return recordOwner == owner
	case MatchFold:
		return strings.EqualFold(recordOwner, owner)
	default:
		return recordOwner == "" || strings.EqualFold(recordOwner, owner)
	}
}
