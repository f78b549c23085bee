package canonical

import (
	"testing"
)

func TestCanonicalizeRaw_MemberOrdering(t *testing.T) {
	input := []byte(`{"editions":[],"certificateHash":"H1"}`)
	expected := `{"certificateHash":"H1","editions":[]}`

	got, err := CanonicalizeRaw(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != expected {
		t.Errorf("got %s, want %s", got, expected)
	}
}

func TestCanonicalizeRaw_NestedOrderingAndWhitespace(t *testing.T) {
	input := []byte(`{
  "editions": [
    { "timestamp": "2026-08-21T10:00:00Z", "owners": ["k1"], "certificateEditionHash": "E1" }
  ],
  "certificateHash": "H1"
}`)
	expected := `{"certificateHash":"H1","editions":[{"certificateEditionHash":"E1","owners":["k1"],"timestamp":"2026-08-21T10:00:00Z"}]}`

	got, err := CanonicalizeRaw(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != expected {
		t.Errorf("got %s, want %s", got, expected)
	}
}

func TestCanonicalizeRaw_ArrayOrderPreserved(t *testing.T) {
	// Canonicalization sorts object members, never array elements. Owner
	// ordering is the codec's job, not JCS's.
	input := []byte(`{"owners":["k9","k1","k5"]}`)
	expected := `{"owners":["k9","k1","k5"]}`

	got, err := CanonicalizeRaw(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != expected {
		t.Errorf("got %s, want %s", got, expected)
	}
}

func TestCanonicalize_MapInputsConverge(t *testing.T) {
	a := map[string]any{
		"certificateHash": "H1",
		"editions":        []any{map[string]any{"owners": []string{"k1", "k2"}, "certificateEditionHash": "E1"}},
	}
	b := map[string]any{
		"editions":        []any{map[string]any{"certificateEditionHash": "E1", "owners": []string{"k1", "k2"}}},
		"certificateHash": "H1",
	}

	ab, err := Canonicalize(a)
	if err != nil {
		t.Fatalf("canonicalize a: %v", err)
	}
	bb, err := Canonicalize(b)
	if err != nil {
		t.Fatalf("canonicalize b: %v", err)
	}
	if string(ab) != string(bb) {
		t.Errorf("expected identical bytes, got %s vs %s", ab, bb)
	}
}

func TestCanonicalizeRaw_Invalid(t *testing.T) {
	if _, err := CanonicalizeRaw([]byte(`{"broken":`)); err == nil {
		t.Fatal("expected error for truncated JSON")
	}
}

func TestFingerprint_StableAcrossKeyOrder(t *testing.T) {
	f1, err := Fingerprint(map[string]any{"a": 1, "b": 2})
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	f2, err := Fingerprint(map[string]any{"b": 2, "a": 1})
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if f1 != f2 {
		t.Errorf("fingerprints differ: %s vs %s", f1, f2)
	}
	if len(f1) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(f1))
	}
}

func TestFingerprint_DistinguishesValues(t *testing.T) {
	f1, err := Fingerprint(map[string]any{"certificateHash": "H1"})
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	f2, err := Fingerprint(map[string]any{"certificateHash": "H2"})
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if f1 == f2 {
		t.Error("expected different fingerprints for different values")
	}
}
