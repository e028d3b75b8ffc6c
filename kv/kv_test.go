package kv

import (
	"errors"
	"testing"
)

func testStore(t *testing.T, s Store) {
	t.Helper()
	if _, err := s.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}

	type doc struct {
		Name string `json:"name"`
	}
	if err := SetJSON(s, "goldHoldings_0xA_addr", doc{Name: "bar"}); err != nil {
		t.Fatalf("SetJSON() error = %v", err)
	}
	var got doc
	if err := GetJSON(s, "goldHoldings_0xA_addr", &got); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if got.Name != "bar" {
		t.Errorf("GetJSON() = %+v, want name bar", got)
	}

	if err := s.Delete("goldHoldings_0xA_addr"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get("goldHoldings_0xA_addr"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Delete error = %v, want ErrNotFound", err)
	}
	// deleting twice is not an error.
	if err := s.Delete("goldHoldings_0xA_addr"); err != nil {
		t.Errorf("Delete() twice error = %v", err)
	}
}

func TestMemory(t *testing.T) { testStore(t, NewMemory()) }

func TestDir(t *testing.T) {
	d, err := OpenDir(t.TempDir())
	if err != nil {
		t.Fatalf("OpenDir() error = %v", err)
	}
	testStore(t, d)
}

func TestDirUnsafeKey(t *testing.T) {
	d, err := OpenDir(t.TempDir())
	if err != nil {
		t.Fatalf("OpenDir() error = %v", err)
	}
	if err := d.Set("../escape/key", []byte("{}")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, err := d.Get("../escape/key"); err != nil {
		t.Errorf("Get() error = %v", err)
	}
}

func TestDirDistinctKeys(t *testing.T) {
	d, err := OpenDir(t.TempDir())
	if err != nil {
		t.Fatalf("OpenDir() error = %v", err)
	}
	keys := []string{"goldHoldings_a/b_c", "goldHoldings_a_b_c", "goldHoldings_a b_c", "goldHoldings_a+b_c", "goldHoldings_a%2Fb_c"}
	for i, k := range keys {
		if err := d.Set(k, []byte{byte('0' + i)}); err != nil {
			t.Fatalf("Set(%q) error = %v", k, err)
		}
	}
	for i, k := range keys {
		got, err := d.Get(k)
		if err != nil || string(got) != string(rune('0'+i)) {
			t.Errorf("Get(%q) = %q, %v, want %q", k, got, err, string(rune('0'+i)))
		}
	}
}

func TestGetJSONCorrupt(t *testing.T) {
	s := NewMemory()
	s.Set("k", []byte("{not json"))
	var v map[string]any
	if err := GetJSON(s, "k", &v); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("GetJSON() on corrupt value error = %v, want decode error", err)
	}
}
