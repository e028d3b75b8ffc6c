package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/etnz/aurum/kv"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("no entropy") }

var errDerive = errors.New("derivation failed")

func failingDerive(*Identity) (string, error) { return "", errDerive }

func TestLoadGeneratesAndPersists(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}

	m := New(Options{Store: store, Clock: clock.Now})
	if err := m.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if m.State() != Ready {
		t.Errorf("State() = %v, want ready", m.State())
	}
	addr := m.Address()
	if addr == "" {
		t.Fatal("Address() is empty after Load")
	}

	// A second manager on the same storage finds the same identity.
	clock.now = clock.now.Add(23 * time.Hour)
	other := New(Options{Store: store, Clock: clock.Now})
	if err := other.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if other.Address() != addr {
		t.Errorf("reloaded Address() = %q, want %q", other.Address(), addr)
	}
}

func TestLoadExpiredIdentity(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}

	m := New(Options{Store: store, Clock: clock.Now})
	if err := m.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	first := m.Address()

	clock.now = clock.now.Add(25 * time.Hour)
	other := New(Options{Store: store, Clock: clock.Now})
	if err := other.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if other.Address() == first {
		t.Errorf("expired identity was reused: %q", first)
	}
}

func TestLoadCorruptIdentity(t *testing.T) {
	store := kv.NewMemory()
	store.Set(StorageKey, []byte(`{"identity": {"kty":"RSA"}, "timestamp": 1}`))
	m := New(Options{Store: store})
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if m.State() != Ready || m.Address() == "" {
		t.Errorf("Load() on corrupt data: state %v address %q, want ready with an address", m.State(), m.Address())
	}
}

func TestReconnectFromMemory(t *testing.T) {
	ctx := context.Background()
	m := New(Options{})
	if err := m.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	addr := m.Address()
	if err := m.Reconnect(ctx); err != nil {
		t.Fatalf("Reconnect() error = %v", err)
	}
	if m.Address() != addr {
		t.Errorf("Reconnect() changed the address: %q want %q", m.Address(), addr)
	}
	if m.Attempts() != 0 {
		t.Errorf("Attempts() = %d after a successful reconnect, want 0", m.Attempts())
	}
}

func TestReconnectCapClearsIdentity(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()

	// persist a valid identity first.
	if err := New(Options{Store: store}).Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	m := New(Options{Store: store, Derive: failingDerive, Rand: failingReader{}})
	if err := m.Load(ctx); !errors.Is(err, errDerive) {
		t.Fatalf("Load() error = %v, want derivation error", err)
	}
	if m.Identity() == nil || m.Address() != "" || m.State() != Error {
		t.Fatalf("after Load: identity %v, address %q, state %v; want identity kept without address in error state", m.Identity(), m.Address(), m.State())
	}

	for i := 1; i <= DefaultMaxAttempts; i++ {
		err := m.Reconnect(ctx)
		if err == nil || errors.Is(err, ErrUnrecoverable) {
			t.Fatalf("Reconnect() #%d error = %v, want a recoverable failure", i, err)
		}
		if m.Attempts() != i {
			t.Errorf("Attempts() = %d, want %d", m.Attempts(), i)
		}
	}

	if err := m.Reconnect(ctx); !errors.Is(err, ErrUnrecoverable) {
		t.Fatalf("Reconnect() past the cap error = %v, want ErrUnrecoverable", err)
	}
	if m.Identity() != nil || m.State() != Uninitialized {
		t.Errorf("identity %v state %v, want cleared", m.Identity(), m.State())
	}
	if _, err := store.Get(StorageKey); !errors.Is(err, kv.ErrNotFound) {
		t.Errorf("persisted identity still present: %v", err)
	}
	if _, err := m.StoreAddress(ctx); !errors.Is(err, ErrUnrecoverable) {
		t.Errorf("StoreAddress() error = %v, want ErrUnrecoverable", err)
	}

	// an explicit clear lifts the condition.
	if err := m.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if err := m.Reconnect(ctx); errors.Is(err, ErrUnrecoverable) {
		t.Errorf("Reconnect() after Clear error = %v, want a regular failure", err)
	}
}

func TestReconnectCancelledCountsAttempt(t *testing.T) {
	store := kv.NewMemory()
	if err := New(Options{Store: store}).Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	m := New(Options{Store: store, Derive: failingDerive})
	m.Load(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Reconnect(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Reconnect() error = %v, want context.Canceled", err)
	}
	if m.Attempts() != 1 || m.State() != Error {
		t.Errorf("Attempts() = %d, State() = %v, want 1, error", m.Attempts(), m.State())
	}
}

func TestCheckLiveness(t *testing.T) {
	calls := 0
	flaky := func(id *Identity) (string, error) {
		calls++
		if calls == 1 {
			return "", errDerive
		}
		return DeriveAddress(id)
	}
	store := kv.NewMemory()
	if err := New(Options{Store: store}).Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	m := New(Options{Store: store, Derive: flaky})
	m.Load(context.Background())
	if m.Address() != "" {
		t.Fatalf("Address() = %q, want empty after a failed derivation", m.Address())
	}
	m.CheckLiveness(context.Background())
	if m.Address() == "" || m.State() != Ready {
		t.Errorf("after CheckLiveness: address %q state %v, want an address and ready", m.Address(), m.State())
	}

	// Nothing to do when the address is present.
	before := calls
	m.CheckLiveness(context.Background())
	if calls != before {
		t.Errorf("CheckLiveness() derived again with a valid address")
	}
}

func TestStoreAddressLoadsOnDemand(t *testing.T) {
	m := New(Options{})
	addr, err := m.StoreAddress(context.Background())
	if err != nil || addr == "" {
		t.Fatalf("StoreAddress() = %q, %v; want an address", addr, err)
	}
}

func TestTransitions(t *testing.T) {
	testCases := []struct {
		from, to State
		want     bool
	}{
		{Uninitialized, Loading, true},
		{Uninitialized, Ready, false},
		{Loading, Ready, true},
		{Loading, Reconnecting, false},
		{Ready, Reconnecting, true},
		{Reconnecting, Ready, true},
		{Reconnecting, Loading, false},
		{Error, Reconnecting, true},
		{Ready, Uninitialized, true},
	}
	for _, tc := range testCases {
		if got := canTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("canTransition(%v, %v) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestIdentityJSON(t *testing.T) {
	id, err := Generate(nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	data, err := json.Marshal(id)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	var back Identity
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	a1, _ := DeriveAddress(id)
	a2, _ := DeriveAddress(&back)
	if a1 != a2 {
		t.Errorf("address after round trip = %q, want %q", a2, a1)
	}
	if string(back.Sign([]byte("msg"))) != string(id.Sign([]byte("msg"))) {
		t.Errorf("signatures differ after round trip")
	}
}

func TestMountRecoversMissingAddress(t *testing.T) {
	store := kv.NewMemory()
	if err := New(Options{Store: store}).Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	var mu sync.Mutex
	calls := 0
	flaky := func(id *Identity) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return "", errDerive
		}
		return DeriveAddress(id)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := New(Options{Store: store, Derive: flaky, CheckInterval: 5 * time.Millisecond})
	if err := m.Mount(ctx); !errors.Is(err, errDerive) {
		t.Fatalf("Mount() error = %v, want the derivation error", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for m.State() != Ready && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if m.State() != Ready || m.Address() == "" {
		t.Errorf("after Mount: state %v address %q, want the liveness check to reconnect", m.State(), m.Address())
	}
}
