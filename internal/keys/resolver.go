// Package keys resolves participant key identifiers to PEM-encoded public
// key material. Resolvers cover the three places key material can live:
// embedded in the request, a local keyring directory, or AWS KMS, with
// Chain composing them in preference order.
package keys

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Cupcake-Legend/landchain-chaincode/internal/core/transition"
)

// ErrUnresolvable is returned when a resolver has no key material for a
// participant. Chain moves past it; any other error stops the chain.
var ErrUnresolvable = errors.New("keys: no key material for participant")

// Resolver turns a participant descriptor into PEM public key material.
type Resolver interface {
	ResolvePublicKey(ctx context.Context, p transition.Participant) ([]byte, error)
}

// Embedded resolves from the public_key_pem field carried on the
// participant record itself.
type Embedded struct{}

var _ Resolver = Embedded{}

func (Embedded) ResolvePublicKey(_ context.Context, p transition.Participant) ([]byte, error) {
	if strings.TrimSpace(p.PublicKeyPEM) == "" {
		return nil, fmt.Errorf("%w: %s carries no public_key_pem", ErrUnresolvable, p.KeyID)
	}
	return []byte(p.PublicKeyPEM), nil
}

// Dir resolves from a local keyring directory holding one <kms_key_id>.pem
// file per key.
type Dir struct {
	Root string
}

var _ Resolver = Dir{}

func (d Dir) ResolvePublicKey(_ context.Context, p transition.Participant) ([]byte, error) {
	if p.KeyID == "" || strings.ContainsAny(p.KeyID, `/\`) || strings.Contains(p.KeyID, "..") {
		return nil, fmt.Errorf("%w: key id %q is not a safe file name", ErrUnresolvable, p.KeyID)
	}
	b, err := os.ReadFile(filepath.Join(d.Root, p.KeyID+".pem"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: no keyring entry for %s", ErrUnresolvable, p.KeyID)
	}
	if err != nil {
		return nil, fmt.Errorf("read keyring entry for %s: %w", p.KeyID, err)
	}
	return b, nil
}

// Chain tries each resolver in order. A resolver reporting ErrUnresolvable
// passes the participant to the next; any other error is an infrastructure
// failure and stops the chain immediately.
type Chain []Resolver

var _ Resolver = Chain(nil)

func (c Chain) ResolvePublicKey(ctx context.Context, p transition.Participant) ([]byte, error) {
	for _, r := range c {
		b, err := r.ResolvePublicKey(ctx, p)
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, ErrUnresolvable) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnresolvable, p.KeyID)
}
