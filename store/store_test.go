package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/etnz/aurum"
	"github.com/etnz/aurum/kv"
	"github.com/etnz/aurum/session"
)

// fakeGateway is an in-memory network gateway served over HTTP.
type fakeGateway struct {
	mu   sync.Mutex
	down bool
	txs  []Transaction
	data [][]byte
}

func (f *fakeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/tx":
		var tx Transaction
		if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, err := Verify(tx)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.txs = append(f.txs, tx)
		f.data = append(f.data, data)
		fmt.Fprintf(w, `{"id": "tx-%d"}`, len(f.txs))
	case r.Method == http.MethodPost && r.URL.Path == "/graphql":
		var q struct{ Query string }
		json.NewDecoder(r.Body).Decode(&q)
		edges := []any{}
		for i, tx := range f.txs {
			// a minimal tag filter on Gold-ID.
			if strings.Contains(q.Query, `"Gold-ID"`) && !strings.Contains(q.Query, fmt.Sprintf("%q", tagValue(tx.Tags, TagGoldID))) {
				continue
			}
			edges = append(edges, map[string]any{"node": map[string]any{"id": fmt.Sprintf("tx-%d", i+1), "tags": tx.Tags}})
		}
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"transactions": map[string]any{"edges": edges}}})
	case r.Method == http.MethodGet:
		var i int
		if _, err := fmt.Sscanf(r.URL.Path, "/tx-%d", &i); err != nil || i < 1 || i > len(f.data) {
			http.NotFound(w, r)
			return
		}
		w.Write(f.data[i-1])
	default:
		http.NotFound(w, r)
	}
}

func tagValue(tags []Tag, name string) string {
	for _, t := range tags {
		if t.Name == name {
			return t.Value
		}
	}
	return ""
}

func newTestAdapter(t *testing.T) (*Adapter, *fakeGateway, *Simulation) {
	t.Helper()
	fake := new(fakeGateway)
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	keys := session.New(session.Options{})
	if err := keys.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	gw := NewHTTPGateway(srv.URL, keys)
	sim := NewSimulation(kv.NewMemory())
	return &Adapter{Gateway: gw, Simulation: sim}, fake, sim
}

func TestAdapterNetwork(t *testing.T) {
	ctx := context.Background()
	a, fake, _ := newTestAdapter(t)

	id, err := a.Put(ctx, aurum.AssetRecord{UniqueIdentifier: "0xAB", Owner: "Alice", Weight: "4", TokenAmount: "4"})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if id != "tx-1" {
		t.Errorf("Put() = %q, want the network id tx-1", id)
	}
	if got := tagValue(fake.txs[0].Tags, TagAppName); got != AppName {
		t.Errorf("App-Name tag = %q, want %q", got, AppName)
	}

	got, err := a.QueryByOwner(ctx, "alice")
	if err != nil {
		t.Fatalf("QueryByOwner() error = %v", err)
	}
	if len(got) != 1 || got[0].UniqueIdentifier != "0xAB" || len(got[0].Owners) != 1 {
		t.Errorf("QueryByOwner() = %+v, want the stored record with its chain", got)
	}

	r, err := a.Get(ctx, "0xab")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if r.Owner != "Alice" {
		t.Errorf("Get() owner = %q, want Alice", r.Owner)
	}
}

func TestAdapterTokenAmountFromTag(t *testing.T) {
	ctx := context.Background()
	a, fake, _ := newTestAdapter(t)
	if _, err := a.Put(ctx, aurum.AssetRecord{UniqueIdentifier: "0x1", Owner: "alice", Weight: "4", TokenAmount: "4"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	// the payload lost its token amount, the tag still carries it.
	fake.data[0] = []byte(`{"uniqueIdentifier": "0x1", "owner": "alice", "weight": "4"}`)
	got, err := a.QueryByOwner(ctx, "alice")
	if err != nil || len(got) != 1 || got[0].TokenAmount != "4" {
		t.Errorf("QueryByOwner() = %+v, %v, want the token amount from the tag", got, err)
	}
}

type fallbacks map[string]int

func (f fallbacks) StoreFallback(op string) { f[op]++ }

func TestAdapterFallback(t *testing.T) {
	ctx := context.Background()
	a, fake, sim := newTestAdapter(t)
	obs := fallbacks{}
	a.Observer = obs
	fake.down = true

	id, err := a.Put(ctx, aurum.AssetRecord{UniqueIdentifier: "0x1", Owner: "alice", Weight: "2"})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if !strings.HasPrefix(id, "dev-") {
		t.Errorf("Put() = %q, want a simulated id", id)
	}
	got, err := a.QueryByOwner(ctx, "ALICE")
	if err != nil || len(got) != 1 {
		t.Errorf("QueryByOwner() = %+v, %v, want the simulated record", got, err)
	}
	if _, err := a.Get(ctx, "0x1"); err != nil {
		t.Errorf("Get() error = %v", err)
	}
	if obs["put"] != 1 || obs["query"] != 1 || obs["get"] != 1 {
		t.Errorf("fallbacks = %v, want one per operation", obs)
	}
	if all, _ := sim.QueryByOwner("alice", MatchExact); len(all) != 1 {
		t.Errorf("simulation holds %d records, want 1", len(all))
	}
}

func TestAdapterUnavailable(t *testing.T) {
	ctx := context.Background()
	a, fake, _ := newTestAdapter(t)
	a.Simulation = nil
	fake.down = true

	if _, err := a.Put(ctx, aurum.AssetRecord{UniqueIdentifier: "0x1"}); !errors.Is(err, aurum.ErrStoreUnavailable) {
		t.Errorf("Put() error = %v, want ErrStoreUnavailable", err)
	}
	if _, err := a.QueryByOwner(ctx, "a"); !errors.Is(err, aurum.ErrStoreUnavailable) {
		t.Errorf("QueryByOwner() error = %v, want ErrStoreUnavailable", err)
	}
}

func TestAdapterWithoutIdentity(t *testing.T) {
	a, _, _ := newTestAdapter(t)
	a.Gateway.(*HTTPGateway).Keys = session.New(session.Options{})
	id, err := a.Put(context.Background(), aurum.AssetRecord{UniqueIdentifier: "0x1"})
	if err != nil || !strings.HasPrefix(id, "dev-") {
		t.Errorf("Put() without identity = %q, %v, want a simulated write", id, err)
	}
}

func TestAdapterVersions(t *testing.T) {
	ctx := context.Background()
	a, _, _ := newTestAdapter(t)
	a.Match = MatchExact
	a.Put(ctx, aurum.AssetRecord{UniqueIdentifier: "0x1", Owner: "alice", Timestamp: 1, UpdatedAt: 1})
	a.Put(ctx, aurum.AssetRecord{UniqueIdentifier: "0x1", Owner: "bob", Timestamp: 1, UpdatedAt: 2,
		Owners: []aurum.Owner{{Address: "alice", Date: "2020-01-01"}, {Address: "bob", Date: "2024-01-01"}}})

	if got, _ := a.QueryByOwner(ctx, "alice"); len(got) != 0 {
		t.Errorf("QueryByOwner(alice) = %+v, want nothing after the transfer", got)
	}
	if got, _ := a.QueryByOwner(ctx, "bob"); len(got) != 1 {
		t.Errorf("QueryByOwner(bob) = %d records, want 1", len(got))
	}
}

func TestGraphQL(t *testing.T) {
	got := graphQL([]Tag{{TagAppName, AppName}, {TagOwner, `a"b`}})
	want := `query { transactions(tags: [{ name: "App-Name", values: ["AurumChain"] }, { name: "Owner", values: ["a\"b"] }]) { edges { node { id tags { name value } } } } }`
	if got != want {
		t.Errorf("graphQL() = %s\nwant %s", got, want)
	}
}
