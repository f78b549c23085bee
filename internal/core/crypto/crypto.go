// Package crypto verifies participant signatures over transaction payloads.
// Key material arrives as PEM (PKIX for ed25519, ECDSA P-256, and RSA; raw
// SEC1 points for secp256k1) and the scheme is derived from the key type, so
// callers never branch on algorithms themselves. Verification is a pure
// function: same payload, key, and signature always produce the same result.
package crypto

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

// Scheme names accepted in a participant's algo hint.
const (
	SchemeEd25519   = "ed25519"
	SchemeECDSAP256 = "ecdsa-p256"
	SchemeSecp256k1 = "secp256k1-eth"
	SchemeRSA       = "rsa-pkcs1v15"
)

// ErrInvalidKey is returned when key material cannot be parsed.
var ErrInvalidKey = errors.New("invalid public key material")

// ErrInvalidSignature is returned when a signature fails verification.
var ErrInvalidSignature = errors.New("signature verification failed")

// ErrSchemeMismatch is returned when a participant's algo hint does not
// match the resolved key's scheme.
var ErrSchemeMismatch = errors.New("algo does not match key type")

// ParsePublicKeyPEM decodes PEM public key material. PKIX (the usual
// "PUBLIC KEY" block) covers ed25519, ECDSA P-256, and RSA; secp256k1 keys,
// which PKIX cannot carry, are accepted as raw 65-byte uncompressed or
// 33-byte compressed SEC1 points inside the block.
func ParsePublicKeyPEM(data []byte) (crypto.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrInvalidKey)
	}

	if pub, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		switch pub.(type) {
		case ed25519.PublicKey, *ecdsa.PublicKey, *rsa.PublicKey:
			return pub, nil
		default:
			return nil, fmt.Errorf("%w: unsupported key type %T", ErrInvalidKey, pub)
		}
	}

	// secp256k1 fallback: raw SEC1 point bytes.
	switch len(block.Bytes) {
	case 65:
		pub, err := ethcrypto.UnmarshalPubkey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		return pub, nil
	case 33:
		pub, err := ethcrypto.DecompressPubkey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		return pub, nil
	}
	return nil, fmt.Errorf("%w: not PKIX and not a SEC1 secp256k1 point", ErrInvalidKey)
}

// SchemeFor returns the signature scheme implied by a parsed public key.
func SchemeFor(pub crypto.PublicKey) (string, error) {
	switch k := pub.(type) {
	case ed25519.PublicKey:
		return SchemeEd25519, nil
	case *rsa.PublicKey:
		return SchemeRSA, nil
	case *ecdsa.PublicKey:
		if isSecp256k1(k.Curve) {
			return SchemeSecp256k1, nil
		}
		if k.Curve == elliptic.P256() {
			return SchemeECDSAP256, nil
		}
		return "", fmt.Errorf("%w: unsupported ECDSA curve %s", ErrInvalidKey, k.Curve.Params().Name)
	default:
		return "", fmt.Errorf("%w: unsupported key type %T", ErrInvalidKey, pub)
	}
}

// Verify checks sig over the exact payload bytes using the scheme implied by
// the key. algoHint, when non-empty, must name that scheme; a wrong hint is
// reported as ErrSchemeMismatch rather than a bad signature.
func Verify(pub crypto.PublicKey, payload, sig []byte, algoHint string) error {
	scheme, err := SchemeFor(pub)
	if err != nil {
		return err
	}
	if algoHint != "" && algoHint != scheme {
		return fmt.Errorf("%w: hint %q, key is %q", ErrSchemeMismatch, algoHint, scheme)
	}

	switch scheme {
	case SchemeEd25519:
		k := pub.(ed25519.PublicKey)
		if len(sig) != ed25519.SignatureSize {
			return fmt.Errorf("%w: expected %d signature bytes, got %d", ErrInvalidSignature, ed25519.SignatureSize, len(sig))
		}
		if !ed25519.Verify(k, payload, sig) {
			return ErrInvalidSignature
		}
		return nil

	case SchemeECDSAP256:
		k := pub.(*ecdsa.PublicKey)
		digest := sha256.Sum256(payload)
		if !ecdsa.VerifyASN1(k, digest[:], sig) {
			return ErrInvalidSignature
		}
		return nil

	case SchemeSecp256k1:
		k := pub.(*ecdsa.PublicKey)
		// Accept both the 65-byte [R||S||V] form eth tooling emits and a
		// bare 64-byte [R||S].
		switch len(sig) {
		case 65:
			sig = sig[:64]
		case 64:
		default:
			return fmt.Errorf("%w: expected 64 or 65 signature bytes, got %d", ErrInvalidSignature, len(sig))
		}
		if !ethcrypto.VerifySignature(ethcrypto.CompressPubkey(k), Keccak256(payload), sig) {
			return ErrInvalidSignature
		}
		return nil

	case SchemeRSA:
		k := pub.(*rsa.PublicKey)
		digest := sha256.Sum256(payload)
		if err := rsa.VerifyPKCS1v15(k, crypto.SHA256, digest[:], sig); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return nil
	}
	return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidKey, scheme)
}

// Keccak256 computes the legacy keccak256 hash used by the secp256k1-eth
// scheme's preimage.
func Keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

func isSecp256k1(c elliptic.Curve) bool {
	return c == ethcrypto.S256() || c.Params().Name == "secp256k1"
}
