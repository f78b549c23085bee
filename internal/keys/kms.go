package keys

import (
	"context"
	"encoding/pem"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/kms"

	"github.com/Cupcake-Legend/landchain-chaincode/internal/core/transition"
)

// kmsClient is the slice of the KMS API this resolver needs.
type kmsClient interface {
	GetPublicKeyWithContext(ctx aws.Context, input *kms.GetPublicKeyInput, opts ...request.Option) (*kms.GetPublicKeyOutput, error)
}

// KMS resolves key identifiers through AWS KMS GetPublicKey. Responses are
// cached for the process lifetime: KMS public keys are immutable per key id,
// and caching keeps the remote dependency off the hot path.
type KMS struct {
	client kmsClient
	cache  sync.Map
}

var _ Resolver = (*KMS)(nil)

// NewKMS builds a resolver against the given region. A non-empty endpoint
// overrides the AWS default, which is how local KMS stand-ins are wired.
func NewKMS(region, endpoint string) (*KMS, error) {
	cfg := aws.NewConfig().WithRegion(region)
	if endpoint != "" {
		cfg = cfg.WithEndpoint(endpoint)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("aws session: %w", err)
	}
	return &KMS{client: kms.New(sess)}, nil
}

// NewKMSWithClient builds a resolver around an existing client.
func NewKMSWithClient(client kmsClient) *KMS {
	return &KMS{client: client}
}

func (k *KMS) ResolvePublicKey(ctx context.Context, p transition.Participant) ([]byte, error) {
	if v, ok := k.cache.Load(p.KeyID); ok {
		return v.([]byte), nil
	}

	out, err := k.client.GetPublicKeyWithContext(ctx, &kms.GetPublicKeyInput{
		KeyId: aws.String(p.KeyID),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == kms.ErrCodeNotFoundException {
			return nil, fmt.Errorf("%w: kms has no key %s", ErrUnresolvable, p.KeyID)
		}
		return nil, fmt.Errorf("kms get public key %s: %w", p.KeyID, err)
	}
	if len(out.PublicKey) == 0 {
		return nil, fmt.Errorf("%w: kms returned empty key material for %s", ErrUnresolvable, p.KeyID)
	}

	block := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: out.PublicKey})
	k.cache.Store(p.KeyID, block)
	return block, nil
}
