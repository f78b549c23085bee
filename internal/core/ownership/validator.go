// Package ownership implements the chain validation that gates every
// certificate mutation: multi-party signature verification over the
// transaction payload plus the previous-owner continuity check against the
// recorded head of the edition chain.
package ownership

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Cupcake-Legend/landchain-chaincode/internal/core/certificate"
	"github.com/Cupcake-Legend/landchain-chaincode/internal/core/crypto"
	"github.com/Cupcake-Legend/landchain-chaincode/internal/core/transition"
)

// DefaultVerifyConcurrency bounds how many signature verifications run at
// once when no explicit limit is configured.
const DefaultVerifyConcurrency = 4

// LedgerContext is the transaction-scoped view of the substrate one
// transition validates against: a prior-state read plus the
// substrate-assigned commit timestamp. A ledger transaction satisfies it
// directly.
type LedgerContext interface {
	GetState(ctx context.Context, key string) ([]byte, bool, error)
	Timestamp() time.Time
}

// KeyResolver resolves a participant descriptor to PEM-encoded public key
// material. Implementations may read a key embedded in the request, a local
// keyring directory, or a remote KMS; the validator treats them uniformly.
type KeyResolver interface {
	ResolvePublicKey(ctx context.Context, p transition.Participant) ([]byte, error)
}

// Validator decides whether a proposed custody transfer is authorized.
type Validator struct {
	keys              KeyResolver
	verifyConcurrency int
}

// NewValidator builds a validator resolving participant keys through keys.
// verifyConcurrency bounds parallel signature checks; values below one fall
// back to DefaultVerifyConcurrency.
func NewValidator(keys KeyResolver, verifyConcurrency int) *Validator {
	if verifyConcurrency < 1 {
		verifyConcurrency = DefaultVerifyConcurrency
	}
	return &Validator{keys: keys, verifyConcurrency: verifyConcurrency}
}

// ProposeTransition validates one proposed custody transfer and, when every
// check passes, returns the updated certificate ready for persistence. It
// never writes: on any rejection the persisted state is left untouched.
//
// Checks run in order: input shape, duplicate-edition replay, previous-owner
// continuity, then signature verification for every participant.
// Participants with role buyer or owner form the new edition's owner set;
// participants with role seller or owner must together equal the latest
// edition's recorded owners. A certificate hash with no recorded state
// skips the continuity check and starts a fresh chain.
func (v *Validator) ProposeTransition(ctx context.Context, ledger LedgerContext, req *transition.Request) (*certificate.Certificate, error) {
	if err := req.ValidateBasic(); err != nil {
		return nil, Wrap(KindMalformedInput, "invalid transition request", err)
	}

	raw, exists, err := ledger.GetState(ctx, req.CertificateHash)
	if err != nil {
		return nil, Wrap(KindSubstrateUnavailable, "read certificate state", err)
	}

	var current *certificate.Certificate
	if exists {
		current, err = certificate.Decode(raw)
		if err != nil {
			return nil, Wrap(KindSubstrateUnavailable, fmt.Sprintf("stored state for %s is not a valid certificate", req.CertificateHash), err)
		}
		if current.HasEdition(req.EditionHash) {
			return nil, Errorf(KindDuplicateEdition, "edition %s is already recorded on certificate %s", req.EditionHash, req.CertificateHash)
		}
		latest := current.Latest()
		claimed := req.ClaimedPreviousOwners()
		if !certificate.OwnerSetsEqual(claimed, latest.Owners) {
			return nil, Errorf(KindOwnershipMismatch, "claimed previous owners %v do not match recorded owners %v", claimed, latest.Owners)
		}
	}

	if err := v.verifyAll(ctx, req); err != nil {
		return nil, err
	}

	ed := certificate.Edition{
		EditionHash: req.EditionHash,
		Owners:      req.NewOwners(),
		Timestamp:   ledger.Timestamp().UTC(),
	}
	if current == nil {
		return &certificate.Certificate{
			CertificateHash: req.CertificateHash,
			Editions:        []certificate.Edition{ed},
		}, nil
	}
	return current.Append(ed), nil
}

// verifyAll checks every participant's signature over the transaction
// payload. Verification fans out across participants but never
// short-circuits: every signature is checked even after a failure, so the
// outcome of each participant is available for auditing and the reported
// error does not depend on scheduling. A signature failure outranks a key
// resolution failure; within a class the first participant in submission
// order is reported.
func (v *Validator) verifyAll(ctx context.Context, req *transition.Request) error {
	payload := req.PayloadBytes()
	results := make([]error, len(req.Participants))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.verifyConcurrency)
	for i, p := range req.Participants {
		g.Go(func() error {
			results[i] = v.verifyOne(gctx, payload, p)
			return nil
		})
	}
	_ = g.Wait()

	var resolution error
	for _, res := range results {
		if res == nil {
			continue
		}
		if KindOf(res) == KindKeyResolutionFailure {
			if resolution == nil {
				resolution = res
			}
			continue
		}
		return res
	}
	return resolution
}

func (v *Validator) verifyOne(ctx context.Context, payload []byte, p transition.Participant) error {
	pemBytes, err := v.keys.ResolvePublicKey(ctx, p)
	if err != nil {
		return &Error{Kind: KindKeyResolutionFailure, KeyID: p.KeyID, Message: "resolve public key", Cause: err}
	}
	pub, err := crypto.ParsePublicKeyPEM(pemBytes)
	if err != nil {
		return &Error{Kind: KindKeyResolutionFailure, KeyID: p.KeyID, Message: "parse public key material", Cause: err}
	}
	sig, err := transition.DecodeSignature(p.Signature)
	if err != nil {
		// ValidateBasic screens signatures up front; this covers direct callers.
		return &Error{Kind: KindMalformedInput, KeyID: p.KeyID, Message: "decode signature", Cause: err}
	}
	if err := crypto.Verify(pub, payload, sig, p.Algo); err != nil {
		if errors.Is(err, crypto.ErrInvalidKey) {
			return &Error{Kind: KindKeyResolutionFailure, KeyID: p.KeyID, Message: "unusable public key", Cause: err}
		}
		return &Error{Kind: KindSignatureInvalid, KeyID: p.KeyID, Message: "signature verification failed", Cause: err}
	}
	return nil
}
