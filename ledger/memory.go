package ledger

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/etnz/aurum"
	"github.com/etnz/aurum/kv"
	"golang.org/x/crypto/sha3"
)

// MemoryKey is the storage key of a persisted Memory ledger.
const MemoryKey = "ledgerSimulation"

// Memory is an in-process ledger. Identifiers are derived like the registry
// contract does, from the Keccak-256 digest of the registration.
//
// With a kv.Store it survives restarts, which makes it usable offline.
type Memory struct {
	Store kv.Store // optional

	mu     sync.Mutex
	loaded bool
	state  memoryState
}

type memoryState struct {
	Nonce   uint64              `json:"nonce"`
	Details map[string][]Detail `json:"details"` // by lower case identity
}

var _ aurum.Ledger = (*Memory)(nil)
var _ aurum.LedgerRegistrar = (*Memory)(nil)

func (m *Memory) load() error {
	if m.loaded {
		return nil
	}
	if m.Store != nil {
		if err := kv.GetJSON(m.Store, MemoryKey, &m.state); err != nil && !errors.Is(err, kv.ErrNotFound) {
			return err
		}
	}
	if m.state.Details == nil {
		m.state.Details = make(map[string][]Detail)
	}
	m.loaded = true
	return nil
}

// DeriveID returns the identifier of the nonce-th registration of identity.
func DeriveID(identity string, nonce uint64, reg aurum.Registration) string {
	h := sha3.NewLegacyKeccak256()
	fmt.Fprintf(h, "%s|%d|%s|%s|%s|%s|%s|%s", strings.ToLower(identity), nonce,
		reg.Weight, reg.Purity, reg.Description, reg.CertificationDetails, reg.CertificationDate, reg.MineLocation)
	return ("0x" + hex.EncodeToString(h.Sum(nil)))[:IDLength]
}

func (m *Memory) RegisterGold(_ context.Context, identity string, reg aurum.Registration) (string, error) {
	if identity == "" {
		return "", errors.New("a ledger identity is required to register")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.load(); err != nil {
		return "", err
	}
	m.state.Nonce++
	id := DeriveID(identity, m.state.Nonce, reg)
	p := params(reg)
	d := Detail{
		UniqueIdentifier:     id,
		Weight:               reg.Weight,
		Purity:               reg.Purity,
		Description:          reg.Description,
		CertificationDetails: reg.CertificationDetails,
		CertificationDate:    reg.CertificationDate,
		MineLocation:         reg.MineLocation,
		ParentGoldID:         p["parentGoldId"],
		HasParentGoldID:      p["parentGoldId"] != ZeroID,
	}
	key := strings.ToLower(identity)
	m.state.Details[key] = append(m.state.Details[key], d)
	if m.Store != nil {
		if err := kv.SetJSON(m.Store, MemoryKey, m.state); err != nil {
			return "", err
		}
	}
	return id, nil
}

func (m *Memory) GoldDetails(_ context.Context, identity string) ([]aurum.AssetRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.load(); err != nil {
		return nil, err
	}
	details := m.state.Details[strings.ToLower(identity)]
	records := make([]aurum.AssetRecord, len(details))
	for i, d := range details {
		records[i] = d.Record()
	}
	return records, nil
}
