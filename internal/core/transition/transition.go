// Package transition defines the custody-transfer submission: the hash pair
// naming the certificate and the proposed edition, the transaction payload
// every participant signed, and the participant signature records. It
// provides the structural validation that gates a submission before any
// cryptographic or ledger work happens.
package transition

import (
	"encoding/base64"
	"fmt"

	"github.com/Cupcake-Legend/landchain-chaincode/internal/core/certificate"
)

// Role tags a participant's part in a transfer. Sellers relinquish
// ownership, buyers acquire it, owners hold it across the transition.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleOwner  Role = "owner"
)

// ValidRoles enumerates the accepted participant roles.
var ValidRoles = map[Role]bool{
	RoleBuyer:  true,
	RoleSeller: true,
	RoleOwner:  true,
}

// Participant describes one signer of a proposed transition. It is input
// only; nothing but the key identifier is ever persisted.
type Participant struct {
	KeyID        string `json:"kms_key_id"`
	Role         Role   `json:"role"`
	Signature    string `json:"signature"`
	PublicKeyPEM string `json:"public_key_pem,omitempty"`
	Algo         string `json:"algo,omitempty"`
}

// Request is a proposed custody transfer as submitted to the registry.
// TransactionData is the exact content every participant signed; it is
// opaque to this system.
type Request struct {
	CertificateHash string        `json:"certificateHash"`
	EditionHash     string        `json:"certificateEditionHash"`
	TransactionData string        `json:"transactionData"`
	Participants    []Participant `json:"participantKeys"`
}

// ValidateBasic checks that all required fields are present and well formed:
// non-empty hash pair and payload, at least one participant, and per
// participant a key identifier, a known role, and a decodable standard
// base64 signature. Public key material is not required here; resolving it
// is the key-resolution capability's job.
func (r *Request) ValidateBasic() error {
	if r.CertificateHash == "" {
		return fmt.Errorf("certificateHash is required")
	}
	if r.EditionHash == "" {
		return fmt.Errorf("certificateEditionHash is required")
	}
	if r.TransactionData == "" {
		return fmt.Errorf("transactionData is required")
	}
	if len(r.Participants) == 0 {
		return fmt.Errorf("participantKeys must not be empty")
	}
	for i, p := range r.Participants {
		if p.KeyID == "" {
			return fmt.Errorf("participant %d: kms_key_id is required", i)
		}
		if !ValidRoles[p.Role] {
			return fmt.Errorf("participant %q: invalid role %q", p.KeyID, p.Role)
		}
		if p.Signature == "" {
			return fmt.Errorf("participant %q: signature is required", p.KeyID)
		}
		if _, err := DecodeSignature(p.Signature); err != nil {
			return fmt.Errorf("participant %q: %w", p.KeyID, err)
		}
	}
	if len(r.NewOwners()) == 0 {
		return fmt.Errorf("no buyer or owner participants: the new edition would have no owners")
	}
	return nil
}

// PayloadBytes returns the exact bytes every participant signed.
func (r *Request) PayloadBytes() []byte {
	return []byte(r.TransactionData)
}

// NewOwners returns the sorted, deduplicated key identifiers that will own
// the proposed edition: participants tagged buyer or owner.
func (r *Request) NewOwners() []string {
	ids := make([]string, 0, len(r.Participants))
	for _, p := range r.Participants {
		if p.Role == RoleBuyer || p.Role == RoleOwner {
			ids = append(ids, p.KeyID)
		}
	}
	return certificate.CanonicalOwners(ids)
}

// ClaimedPreviousOwners returns the sorted, deduplicated key identifiers the
// submission asserts were the certificate's recorded owners: participants
// tagged seller (relinquishing) or owner (continuing). This set must equal
// the latest edition's owner set for the transition to be admitted.
func (r *Request) ClaimedPreviousOwners() []string {
	ids := make([]string, 0, len(r.Participants))
	for _, p := range r.Participants {
		if p.Role == RoleSeller || p.Role == RoleOwner {
			ids = append(ids, p.KeyID)
		}
	}
	return certificate.CanonicalOwners(ids)
}

// DecodeSignature decodes a standard base64 (RFC 4648 §4) signature string.
// URL-safe base64 is rejected; scheme-specific length checks happen at
// verification time.
func DecodeSignature(s string) ([]byte, error) {
	for _, c := range s {
		if c == '-' || c == '_' {
			return nil, fmt.Errorf("signature: invalid base64: url-safe characters not allowed")
		}
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("signature: invalid base64: %w", err)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("signature: empty after decode")
	}
	return b, nil
}
