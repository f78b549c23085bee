// Package certificate defines the land-certificate ledger records and the
// deterministic codec that turns them into the bytes stored under a state
// key. A certificate is the full ownership history of one land document: an
// append-only sequence of editions, each carrying its owner set and the
// ledger-assigned commit time.
package certificate

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/Cupcake-Legend/landchain-chaincode/internal/core/canonical"
)

// Edition is one state of a certificate at a point in the ownership chain.
// Once appended it is immutable.
type Edition struct {
	EditionHash string    `json:"certificateEditionHash"`
	Owners      []string  `json:"owners"`
	Timestamp   time.Time `json:"timestamp"`
}

// Certificate is the top-level ledger record for one land document, keyed in
// the substrate by its document hash. The edition sequence is append-only:
// never reordered, truncated, or mutated.
type Certificate struct {
	CertificateHash string    `json:"certificateHash"`
	Editions        []Edition `json:"editions"`
}

// Latest returns the most recently appended edition, or nil for a
// certificate with no editions.
func (c *Certificate) Latest() *Edition {
	if c == nil || len(c.Editions) == 0 {
		return nil
	}
	return &c.Editions[len(c.Editions)-1]
}

// HasEdition reports whether an edition with the given hash has already been
// appended to this certificate.
func (c *Certificate) HasEdition(editionHash string) bool {
	if c == nil {
		return false
	}
	for _, e := range c.Editions {
		if e.EditionHash == editionHash {
			return true
		}
	}
	return false
}

// Append returns a new certificate value with ed appended. The receiver and
// its edition slice are left untouched so callers holding the prior state
// never observe a partially applied transition.
func (c *Certificate) Append(ed Edition) *Certificate {
	out := &Certificate{CertificateHash: c.CertificateHash}
	out.Editions = make([]Edition, 0, len(c.Editions)+1)
	out.Editions = append(out.Editions, c.Editions...)
	out.Editions = append(out.Editions, ed)
	return out
}

// Equal reports logical equality: same hash, same editions in the same
// order, timestamps compared as instants.
func (c *Certificate) Equal(o *Certificate) bool {
	if c == nil || o == nil {
		return c == o
	}
	if c.CertificateHash != o.CertificateHash || len(c.Editions) != len(o.Editions) {
		return false
	}
	for i := range c.Editions {
		if !c.Editions[i].Equal(o.Editions[i]) {
			return false
		}
	}
	return true
}

// Equal reports logical equality of two editions.
func (e Edition) Equal(o Edition) bool {
	if e.EditionHash != o.EditionHash || !e.Timestamp.Equal(o.Timestamp) {
		return false
	}
	if len(e.Owners) != len(o.Owners) {
		return false
	}
	for i := range e.Owners {
		if e.Owners[i] != o.Owners[i] {
			return false
		}
	}
	return true
}

// CanonicalOwners returns the sorted, deduplicated owner identifier set.
// The input slice is not modified.
func CanonicalOwners(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// OwnerSetsEqual reports whether two owner identifier lists describe the
// same set, independent of order and duplicates.
func OwnerSetsEqual(a, b []string) bool {
	ca, cb := CanonicalOwners(a), CanonicalOwners(b)
	if len(ca) != len(cb) {
		return false
	}
	for i := range ca {
		if ca[i] != cb[i] {
			return false
		}
	}
	return true
}

// Encode serializes a certificate to its canonical ledger bytes: owner sets
// sorted and deduplicated, object members sorted at every nesting level,
// timestamps as RFC 3339 UTC. Logically equal certificates encode to
// identical bytes regardless of the order owners were supplied in. The input
// is not modified.
func Encode(c *Certificate) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("certificate: encode nil certificate")
	}
	norm := Certificate{
		CertificateHash: c.CertificateHash,
		Editions:        make([]Edition, len(c.Editions)),
	}
	for i, e := range c.Editions {
		norm.Editions[i] = Edition{
			EditionHash: e.EditionHash,
			Owners:      CanonicalOwners(e.Owners),
			Timestamp:   e.Timestamp.UTC(),
		}
	}
	b, err := canonical.Canonicalize(&norm)
	if err != nil {
		return nil, fmt.Errorf("certificate: encode %q: %w", c.CertificateHash, err)
	}
	return b, nil
}

// Decode parses ledger bytes back into a certificate and checks the record
// shape. Bytes that do not describe a certificate (wrong JSON shape, missing
// document hash, an edition without hash or owners) are rejected so range
// scans can surface them as opaque values instead of failing.
func Decode(b []byte) (*Certificate, error) {
	var c Certificate
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("certificate: decode: %w", err)
	}
	if c.CertificateHash == "" {
		return nil, fmt.Errorf("certificate: decode: certificateHash is empty")
	}
	if len(c.Editions) == 0 {
		return nil, fmt.Errorf("certificate: decode %q: no editions", c.CertificateHash)
	}
	for i, e := range c.Editions {
		if e.EditionHash == "" {
			return nil, fmt.Errorf("certificate: decode %q: edition %d has no hash", c.CertificateHash, i)
		}
		if len(e.Owners) == 0 {
			return nil, fmt.Errorf("certificate: decode %q: edition %q has no owners", c.CertificateHash, e.EditionHash)
		}
	}
	return &c, nil
}

// Fingerprint returns the lowercase hex SHA-256 of the canonical encoding.
// Replicas that applied the same transitions report the same fingerprint.
func Fingerprint(c *Certificate) (string, error) {
	b, err := Encode(c)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
