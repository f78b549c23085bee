// Package registry orchestrates custody transfers end to end: it serializes
// submissions per certificate, runs each one through the ownership validator
// inside a single substrate transaction, persists the canonical certificate
// bytes, and fans committed transitions out to event subscribers. It is the
// component boundary an HTTP gateway talks to; everything underneath stays
// transport-agnostic.
package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"

	"github.com/Cupcake-Legend/landchain-chaincode/internal/core/canonical"
	"github.com/Cupcake-Legend/landchain-chaincode/internal/core/certificate"
	"github.com/Cupcake-Legend/landchain-chaincode/internal/core/ownership"
	"github.com/Cupcake-Legend/landchain-chaincode/internal/core/transition"
	"github.com/Cupcake-Legend/landchain-chaincode/internal/ledger"
)

// ErrNotFound reports that no certificate exists under the requested hash.
var ErrNotFound = errors.New("registry: certificate not found")

// List pagination bounds. Callers asking for less than one record get the
// default page size; callers asking for more than the cap get the cap.
const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

// TransitionValidator decides whether a submitted transition extends a
// certificate's ownership chain, reading committed state through the given
// ledger context. ProposeTransition returns the updated certificate without
// writing it; persistence stays with the caller.
type TransitionValidator interface {
	ProposeTransition(ctx context.Context, lc ownership.LedgerContext, req *transition.Request) (*certificate.Certificate, error)
}

// Receipt describes one committed transition: the certificate as stored, the
// substrate transaction that carried it, and the fingerprint of the stored
// bytes. Replicas that applied the same transitions report the same
// fingerprint.
type Receipt struct {
	Certificate      *certificate.Certificate `json:"certificate"`
	TxID             string                   `json:"txId"`
	StateFingerprint string                   `json:"stateFingerprint"`
}

// EditionCheck answers the existence and latest-edition query for one
// certificate. EditionKnown and EditionMatch are only meaningful when the
// caller supplied a claimed edition hash.
type EditionCheck struct {
	Exists        bool     `json:"exists"`
	LatestEdition string   `json:"latestEdition,omitempty"`
	LatestOwners  []string `json:"latestOwners,omitempty"`
	EditionKnown  bool     `json:"editionKnown"`
	EditionMatch  bool     `json:"editionMatch"`
}

// Record is one row of a certificate listing. Certificate is set when the
// stored bytes decode; otherwise Raw carries the opaque value so operators
// can see corrupt entries instead of losing the whole page.
type Record struct {
	Key         string                   `json:"key"`
	Certificate *certificate.Certificate `json:"certificate,omitempty"`
	Raw         []byte                   `json:"raw,omitempty"`
}

// Page is one listing page. NextCursor is the key to resume after; empty
// means the listing is exhausted.
type Page struct {
	Records    []Record `json:"records"`
	NextCursor string   `json:"nextCursor,omitempty"`
}

// Service wires the substrate, the validator, and the event hub together.
type Service struct {
	sub       ledger.Substrate
	validator TransitionValidator
	events    *Hub
	locks     certLocker
}

// New returns a Service over the given substrate and validator. events may
// be nil when no subscriber feed is wanted.
func New(sub ledger.Substrate, validator TransitionValidator, events *Hub) *Service {
	return &Service{sub: sub, validator: validator, events: events}
}

// SubmitTransition runs one custody transfer to commit or rejection.
// Submissions for the same certificate are serialized; the whole transfer
// happens inside a single substrate transaction, so a rejection leaves no
// trace in state or history. On success the updated certificate is persisted
// under its document hash and subscribers are notified.
func (s *Service) SubmitTransition(ctx context.Context, req *transition.Request) (*Receipt, error) {
	if req == nil {
		return nil, ownership.New(ownership.KindMalformedInput, "transition request is required")
	}

	s.locks.Lock(req.CertificateHash)
	defer s.locks.Unlock(req.CertificateHash)

	tx, err := s.sub.Begin(ctx)
	if err != nil {
		return nil, ownership.Wrap(ownership.KindSubstrateUnavailable, "begin substrate transaction", err)
	}
	defer tx.Rollback(ctx)

	cert, err := s.validator.ProposeTransition(ctx, tx, req)
	if err != nil {
		s.auditRejection(req, err)
		return nil, err
	}

	encoded, err := certificate.Encode(cert)
	if err != nil {
		return nil, ownership.Wrap(ownership.KindSubstrateUnavailable, "encode certificate", err)
	}
	if err := tx.PutState(ctx, cert.CertificateHash, encoded); err != nil {
		return nil, ownership.Wrap(ownership.KindSubstrateUnavailable, "write certificate state", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, ownership.Wrap(ownership.KindSubstrateUnavailable, "commit transition", err)
	}

	sum := sha256.Sum256(encoded)
	fp := hex.EncodeToString(sum[:])
	latest := cert.Latest()

	log.Printf("[registry] transition committed cert=%s edition=%s owners=%d tx=%s",
		cert.CertificateHash, latest.EditionHash, len(latest.Owners), tx.TxID())

	if s.events != nil {
		s.events.Publish(Event{
			CertificateHash:  cert.CertificateHash,
			EditionHash:      latest.EditionHash,
			Owners:           certificate.CanonicalOwners(latest.Owners),
			Timestamp:        latest.Timestamp,
			TxID:             tx.TxID(),
			StateFingerprint: fp,
		})
	}

	return &Receipt{Certificate: cert, TxID: tx.TxID(), StateFingerprint: fp}, nil
}

// auditRejection logs a rejected submission with the canonical fingerprint
// of the request, so operators can correlate repeated replays of the same
// payload across log lines without the log carrying signatures.
func (s *Service) auditRejection(req *transition.Request, cause error) {
	fp, err := canonical.Fingerprint(req)
	if err != nil {
		fp = "unavailable"
	}
	log.Printf("[registry] transition rejected cert=%s kind=%s request=%s: %v",
		req.CertificateHash, ownership.KindOf(cause), fp, cause)
}

// GetCertificate returns the committed certificate stored under certHash, or
// ErrNotFound.
func (s *Service) GetCertificate(ctx context.Context, certHash string) (*certificate.Certificate, error) {
	if certHash == "" {
		return nil, ownership.New(ownership.KindMalformedInput, "certificateHash is required")
	}

	tx, err := s.sub.Begin(ctx)
	if err != nil {
		return nil, ownership.Wrap(ownership.KindSubstrateUnavailable, "begin substrate transaction", err)
	}
	defer tx.Rollback(ctx)

	raw, ok, err := tx.GetState(ctx, certHash)
	if err != nil {
		return nil, ownership.Wrap(ownership.KindSubstrateUnavailable, "read certificate state", err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	cert, err := certificate.Decode(raw)
	if err != nil {
		return nil, ownership.Wrap(ownership.KindSubstrateUnavailable, "stored state is not a certificate", err)
	}
	return cert, nil
}

// CheckEdition reports whether a certificate exists and how a claimed
// edition hash relates to its chain. An absent certificate is an answer, not
// an error. editionHash may be empty to ask about existence alone.
func (s *Service) CheckEdition(ctx context.Context, certHash, editionHash string) (*EditionCheck, error) {
	cert, err := s.GetCertificate(ctx, certHash)
	if errors.Is(err, ErrNotFound) {
		return &EditionCheck{}, nil
	}
	if err != nil {
		return nil, err
	}

	latest := cert.Latest()
	check := &EditionCheck{
		Exists:        true,
		LatestEdition: latest.EditionHash,
		LatestOwners:  certificate.CanonicalOwners(latest.Owners),
	}
	if editionHash != "" {
		check.EditionKnown = cert.HasEdition(editionHash)
		check.EditionMatch = latest.EditionHash == editionHash
	}
	return check, nil
}

// ListCertificates returns one page of stored certificates in key order.
// afterKey resumes a listing: only keys strictly greater are returned. Rows
// whose value does not decode as a certificate are returned raw.
func (s *Service) ListCertificates(ctx context.Context, limit int, afterKey string) (*Page, error) {
	if limit < 1 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	tx, err := s.sub.Begin(ctx)
	if err != nil {
		return nil, ownership.Wrap(ownership.KindSubstrateUnavailable, "begin substrate transaction", err)
	}
	defer tx.Rollback(ctx)

	startKey := ""
	if afterKey != "" {
		startKey = afterKey + "\x00"
	}
	it, err := tx.GetStateByRange(ctx, startKey, "")
	if err != nil {
		return nil, ownership.Wrap(ownership.KindSubstrateUnavailable, "scan certificates", err)
	}
	defer it.Close()

	page := &Page{Records: make([]Record, 0, limit)}
	more := false
	for it.Next() {
		if len(page.Records) == limit {
			more = true
			break
		}
		rec := Record{Key: it.Key()}
		if cert, derr := certificate.Decode(it.Value()); derr == nil {
			rec.Certificate = cert
		} else {
			rec.Raw = append([]byte(nil), it.Value()...)
		}
		page.Records = append(page.Records, rec)
	}
	if err := it.Err(); err != nil {
		return nil, ownership.Wrap(ownership.KindSubstrateUnavailable, "scan certificates", err)
	}
	if more {
		page.NextCursor = page.Records[limit-1].Key
	}
	return page, nil
}

// History returns the committed modification records for one certificate,
// oldest first. Each row carries the certificate bytes as stored at that
// point; callers decode them per row so one corrupt historical value does
// not hide the rest. Returns ErrNotFound for a certificate that has never
// been committed.
func (s *Service) History(ctx context.Context, certHash string) ([]ledger.KeyModification, error) {
	if certHash == "" {
		return nil, ownership.New(ownership.KindMalformedInput, "certificateHash is required")
	}

	tx, err := s.sub.Begin(ctx)
	if err != nil {
		return nil, ownership.Wrap(ownership.KindSubstrateUnavailable, "begin substrate transaction", err)
	}
	defer tx.Rollback(ctx)

	it, err := tx.GetHistoryForKey(ctx, certHash)
	if err != nil {
		return nil, ownership.Wrap(ownership.KindSubstrateUnavailable, "read certificate history", err)
	}
	defer it.Close()

	var mods []ledger.KeyModification
	for it.Next() {
		mods = append(mods, it.Modification())
	}
	if err := it.Err(); err != nil {
		return nil, ownership.Wrap(ownership.KindSubstrateUnavailable, "read certificate history", err)
	}
	if len(mods) == 0 {
		return nil, ErrNotFound
	}
	return mods, nil
}
