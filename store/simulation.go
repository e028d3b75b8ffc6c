package store

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/etnz/aurum"
	"github.com/etnz/aurum/date"
	"github.com/etnz/aurum/kv"
	"github.com/google/uuid"
)

// SimulationKey is the well-known key of the simulated store.
const SimulationKey = "storeSimulation"

// Simulation is a local stand-in for the durable store. Every record is kept,
// in full, in a single JSON object keyed by generated id, so that queries are
// served without any round trip.
type Simulation struct {
	Store kv.Store
	Clock func() time.Time

	mu sync.Mutex
}

// NewSimulation returns a Simulation persisted in s.
func NewSimulation(s kv.Store) *Simulation { return &Simulation{Store: s} }

func (s *Simulation) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock()
}

// newID returns an id like "dev-1700000000000-3f9a1c2".
func (s *Simulation) newID() string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:7]
	return fmt.Sprintf("dev-%d-%s", s.now().UnixMilli(), random)
}

func (s *Simulation) load() (map[string]aurum.AssetRecord, error) {
	data := make(map[string]aurum.AssetRecord)
	if s.Store == nil {
		return data, nil
	}
	if err := kv.GetJSON(s.Store, SimulationKey, &data); err != nil && !errors.Is(err, kv.ErrNotFound) {
		return nil, err
	}
	return data, nil
}

// Put stores a new version of r and returns its generated id.
func (s *Simulation) Put(r aurum.AssetRecord) (string, error) {
	if s.Store == nil {
		return "", errors.New("simulation has no storage")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.load()
	if err != nil {
		return "", err
	}

	r = complete(r, s.now())
	// A new version supersedes the stored ones even within one millisecond.
	for _, v := range data {
		if aurum.SameID(v.UniqueIdentifier, r.UniqueIdentifier) && max(v.UpdatedAt, v.Timestamp) >= r.UpdatedAt {
			r.UpdatedAt = max(v.UpdatedAt, v.Timestamp) + 1
		}
	}

	id := s.newID()
	for data[id].Timestamp != 0 {
		id = s.newID()
	}
	data[id] = r
	if err := kv.SetJSON(s.Store, SimulationKey, data); err != nil {
		return "", err
	}
	return id, nil
}

// complete fills what a write derives from the record: the image flag, the
// creation and write times, and an initial provenance chain.
func complete(r aurum.AssetRecord, now time.Time) aurum.AssetRecord {
	r = r.Clone()
	if r.ImageDataURL != "" {
		r.HasImage = true
	}
	if r.Timestamp == 0 {
		r.Timestamp = now.UnixMilli()
	}
	if r.UpdatedAt == 0 {
		r.UpdatedAt = now.UnixMilli()
	}
	r.EnsureOwners(date.Of(now))
	return r
}

// versions returns the latest version of every asset, in id order.
// Records without identifier are kept apart, under their storage id.
func (s *Simulation) versions() ([]aurum.AssetRecord, error) {
	s.mu.Lock()
	data, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return collapse(data), nil
}

// QueryByOwner returns the current records belonging to owner according to match.
func (s *Simulation) QueryByOwner(owner string, match OwnerMatch) ([]aurum.AssetRecord, error) {
	all, err := s.versions()
	if err != nil {
		return nil, err
	}
	var out []aurum.AssetRecord
	for _, r := range all {
		if match.Matches(r.CurrentOwner(), owner) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Get returns the latest version of an asset, matching the identifier case-insensitively.
func (s *Simulation) Get(assetID string) (aurum.AssetRecord, error) {
	all, err := s.versions()
	if err != nil {
		return aurum.AssetRecord{}, err
	}
	for _, r := range all {
		if aurum.SameID(r.UniqueIdentifier, assetID) {
			return r, nil
		}
	}
	return aurum.AssetRecord{}, fmt.Errorf("%w: %q", aurum.ErrAssetNotFound, assetID)
}

// collapse keeps the most recently written version of every asset. The
// result is ordered by storage id so that it does not depend on map order.
func collapse(byStorageID map[string]aurum.AssetRecord) []aurum.AssetRecord {
	groups := make(map[string][]aurum.AssetRecord)
	var keys []string
	for _, sid := range slices.Sorted(maps.Keys(byStorageID)) {
		r := byStorageID[sid]
		key := strings.ToLower(r.UniqueIdentifier)
		if key == "" {
			key = "\x00" + sid
		}
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], r)
	}
	out := make([]aurum.AssetRecord, 0, len(keys))
	for _, k := range keys {
		versions := groups[k]
		// Latest keeps the first on ties, the last written wins here.
		slices.Reverse(versions)
		r, _ := aurum.Latest(versions)
		out = append(out, r)
	}
	return out
}
