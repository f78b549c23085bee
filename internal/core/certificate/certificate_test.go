package certificate

import (
	"strings"
	"testing"
	"time"
)

func sampleCert() *Certificate {
	return &Certificate{
		CertificateHash: "H1",
		Editions: []Edition{
			{
				EditionHash: "E1",
				Owners:      []string{"k1"},
				Timestamp:   time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC),
			},
			{
				EditionHash: "E2",
				Owners:      []string{"k2", "k3"},
				Timestamp:   time.Date(2026, 8, 21, 11, 30, 0, 0, time.UTC),
			},
		},
	}
}

func TestEncode_CanonicalBytes(t *testing.T) {
	c := &Certificate{
		CertificateHash: "H1",
		Editions: []Edition{
			{
				EditionHash: "E1",
				Owners:      []string{"k1"},
				Timestamp:   time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC),
			},
		},
	}
	want := `{"certificateHash":"H1","editions":[{"certificateEditionHash":"E1","owners":["k1"],"timestamp":"2026-08-21T10:00:00Z"}]}`

	got, err := Encode(c)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(got) != want {
		t.Errorf("got %s\nwant %s", got, want)
	}
}

func TestEncode_OwnerOrderIndependent(t *testing.T) {
	ts := time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC)
	a := &Certificate{
		CertificateHash: "H1",
		Editions:        []Edition{{EditionHash: "E1", Owners: []string{"k3", "k1", "k2"}, Timestamp: ts}},
	}
	b := &Certificate{
		CertificateHash: "H1",
		Editions:        []Edition{{EditionHash: "E1", Owners: []string{"k2", "k3", "k1"}, Timestamp: ts}},
	}

	ab, err := Encode(a)
	if err != nil {
		t.Fatalf("encode a: %v", err)
	}
	bb, err := Encode(b)
	if err != nil {
		t.Fatalf("encode b: %v", err)
	}
	if string(ab) != string(bb) {
		t.Errorf("owner permutations encoded differently:\n%s\n%s", ab, bb)
	}
	if !strings.Contains(string(ab), `["k1","k2","k3"]`) {
		t.Errorf("owners not sorted in output: %s", ab)
	}
}

func TestEncode_DoesNotMutateInput(t *testing.T) {
	c := &Certificate{
		CertificateHash: "H1",
		Editions: []Edition{{
			EditionHash: "E1",
			Owners:      []string{"k9", "k1"},
			Timestamp:   time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC),
		}},
	}
	if _, err := Encode(c); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if c.Editions[0].Owners[0] != "k9" || c.Editions[0].Owners[1] != "k1" {
		t.Errorf("input owners mutated: %v", c.Editions[0].Owners)
	}
}

func TestRoundTrip(t *testing.T) {
	c := sampleCert()

	b, err := Encode(c)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Equal(c) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, c)
	}

	// Re-encoding the decoded value reproduces the same bytes.
	b2, err := Encode(got)
	if err != nil {
		t.Fatalf("re-encode: %v", err)
	}
	if string(b) != string(b2) {
		t.Errorf("re-encode differs:\n%s\n%s", b, b2)
	}
}

func TestRoundTrip_SubSecondTimestamp(t *testing.T) {
	c := &Certificate{
		CertificateHash: "H1",
		Editions: []Edition{{
			EditionHash: "E1",
			Owners:      []string{"k1"},
			Timestamp:   time.Date(2026, 8, 21, 10, 0, 0, 123456789, time.UTC),
		}},
	}
	b, err := Encode(c)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Editions[0].Timestamp.Equal(c.Editions[0].Timestamp) {
		t.Errorf("timestamp not preserved: got %v want %v", got.Editions[0].Timestamp, c.Editions[0].Timestamp)
	}
}

func TestDecode_RejectsForeignShapes(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"not json", `not json at all`},
		{"json scalar", `"hello"`},
		{"missing hash", `{"editions":[{"certificateEditionHash":"E1","owners":["k1"],"timestamp":"2026-08-21T10:00:00Z"}]}`},
		{"no editions", `{"certificateHash":"H1","editions":[]}`},
		{"edition without hash", `{"certificateHash":"H1","editions":[{"owners":["k1"],"timestamp":"2026-08-21T10:00:00Z"}]}`},
		{"edition without owners", `{"certificateHash":"H1","editions":[{"certificateEditionHash":"E1","owners":[],"timestamp":"2026-08-21T10:00:00Z"}]}`},
		{"bad timestamp", `{"certificateHash":"H1","editions":[{"certificateEditionHash":"E1","owners":["k1"],"timestamp":"yesterday"}]}`},
	}
	for _, tc := range cases {
		if _, err := Decode([]byte(tc.in)); err == nil {
			t.Errorf("%s: expected decode error", tc.name)
		}
	}
}

func TestLatestAndHasEdition(t *testing.T) {
	c := sampleCert()
	latest := c.Latest()
	if latest == nil || latest.EditionHash != "E2" {
		t.Fatalf("latest = %+v, want E2", latest)
	}
	if !c.HasEdition("E1") || !c.HasEdition("E2") {
		t.Error("expected E1 and E2 to be present")
	}
	if c.HasEdition("E3") {
		t.Error("did not expect E3")
	}

	var empty *Certificate
	if empty.Latest() != nil {
		t.Error("nil certificate should have no latest edition")
	}
}

func TestAppend_LeavesReceiverUntouched(t *testing.T) {
	c := sampleCert()
	before, err := Encode(c)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	next := c.Append(Edition{
		EditionHash: "E3",
		Owners:      []string{"k4"},
		Timestamp:   time.Date(2026, 8, 21, 12, 0, 0, 0, time.UTC),
	})

	after, err := Encode(c)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(before) != string(after) {
		t.Error("append mutated the receiver")
	}
	if len(next.Editions) != 3 || next.Editions[2].EditionHash != "E3" {
		t.Errorf("appended certificate wrong: %+v", next)
	}
	// Prior editions are carried over unchanged, in order.
	for i := range c.Editions {
		if !next.Editions[i].Equal(c.Editions[i]) {
			t.Errorf("edition %d changed by append", i)
		}
	}
}

func TestCanonicalOwners(t *testing.T) {
	got := CanonicalOwners([]string{"k3", "k1", "k3", "k2", "k1"})
	want := []string{"k1", "k2", "k3"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestOwnerSetsEqual(t *testing.T) {
	cases := []struct {
		a, b []string
		want bool
	}{
		{[]string{"k1", "k2"}, []string{"k2", "k1"}, true},
		{[]string{"k1", "k1", "k2"}, []string{"k2", "k1"}, true},
		{[]string{"k1"}, []string{"k9"}, false},
		{[]string{"k1", "k2"}, []string{"k1"}, false},
		{nil, nil, true},
		{[]string{}, nil, true},
	}
	for _, tc := range cases {
		if got := OwnerSetsEqual(tc.a, tc.b); got != tc.want {
			t.Errorf("OwnerSetsEqual(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestFingerprint_MatchesAcrossSubmissionOrder(t *testing.T) {
	ts := time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC)
	a := &Certificate{CertificateHash: "H1", Editions: []Edition{{EditionHash: "E1", Owners: []string{"k2", "k1"}, Timestamp: ts}}}
	b := &Certificate{CertificateHash: "H1", Editions: []Edition{{EditionHash: "E1", Owners: []string{"k1", "k2"}, Timestamp: ts}}}

	fa, err := Fingerprint(a)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	fb, err := Fingerprint(b)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if fa != fb {
		t.Errorf("fingerprints differ: %s vs %s", fa, fb)
	}
}
