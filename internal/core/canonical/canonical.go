// Package canonical implements the deterministic JSON encoding discipline
// (RFC 8785 JCS) applied to every value written to or fingerprinted against
// the ledger. Independent executors must produce byte-identical encodings for
// logically equal states, so all persisted records pass through this package.
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
)

// Canonicalize marshals a Go value to JSON and applies RFC 8785 JCS
// canonicalization, returning the canonical UTF-8 bytes.
func Canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: marshal: %w", err)
	}
	return CanonicalizeRaw(raw)
}

// CanonicalizeRaw applies RFC 8785 canonicalization to raw JSON bytes:
// object members sorted at every nesting level, whitespace stripped,
// numbers in shortest round-trippable form.
func CanonicalizeRaw(raw json.RawMessage) ([]byte, error) {
	out, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonical: transform: %w", err)
	}
	return out, nil
}

// Fingerprint returns the lowercase hex SHA-256 of the canonical form of v.
// Two values with equal canonical encodings always share a fingerprint, so
// replicas can compare fingerprints to confirm they converged on the same
// bytes.
func Fingerprint(v any) (string, error) {
	b, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
