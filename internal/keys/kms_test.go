package keys

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/kms"

	"github.com/Cupcake-Legend/landchain-chaincode/internal/core/crypto"
	"github.com/Cupcake-Legend/landchain-chaincode/internal/core/transition"
)

type fakeKMS struct {
	keys  map[string][]byte
	err   error
	calls int
}

func (f *fakeKMS) GetPublicKeyWithContext(_ aws.Context, in *kms.GetPublicKeyInput, _ ...request.Option) (*kms.GetPublicKeyOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	der, ok := f.keys[aws.StringValue(in.KeyId)]
	if !ok {
		return nil, awserr.New(kms.ErrCodeNotFoundException, "key not found", nil)
	}
	return &kms.GetPublicKeyOutput{PublicKey: der}, nil
}

func TestKMS_ResolveAndCache(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}

	fake := &fakeKMS{keys: map[string][]byte{"arn:aws:kms:k1": der}}
	r := NewKMSWithClient(fake)
	p := transition.Participant{KeyID: "arn:aws:kms:k1"}

	pemBytes, err := r.ResolvePublicKey(context.Background(), p)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	parsed, err := crypto.ParsePublicKeyPEM(pemBytes)
	if err != nil {
		t.Fatalf("parse resolved PEM: %v", err)
	}
	got, ok := parsed.(ed25519.PublicKey)
	if !ok {
		t.Fatalf("parsed key type = %T, want ed25519.PublicKey", parsed)
	}
	if !got.Equal(pub) {
		t.Error("resolved key does not match the one KMS returned")
	}

	if _, err := r.ResolvePublicKey(context.Background(), p); err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if fake.calls != 1 {
		t.Errorf("kms calls = %d, want 1 (second hit should come from cache)", fake.calls)
	}
}

func TestKMS_NotFound(t *testing.T) {
	r := NewKMSWithClient(&fakeKMS{keys: map[string][]byte{}})
	_, err := r.ResolvePublicKey(context.Background(), transition.Participant{KeyID: "missing"})
	if !errors.Is(err, ErrUnresolvable) {
		t.Fatalf("err = %v, want ErrUnresolvable", err)
	}
}

func TestKMS_HardErrorIsNotUnresolvable(t *testing.T) {
	r := NewKMSWithClient(&fakeKMS{err: awserr.New("InternalFailure", "kms melted", nil)})
	_, err := r.ResolvePublicKey(context.Background(), transition.Participant{KeyID: "k1"})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrUnresolvable) {
		t.Fatalf("infrastructure error reported as unresolvable: %v", err)
	}
}

func TestKMS_EmptyMaterial(t *testing.T) {
	r := NewKMSWithClient(&fakeKMS{keys: map[string][]byte{"k1": {}}})
	_, err := r.ResolvePublicKey(context.Background(), transition.Participant{KeyID: "k1"})
	if !errors.Is(err, ErrUnresolvable) {
		t.Fatalf("err = %v, want ErrUnresolvable", err)
	}
}
