// Package v1 serves the legacy x402 v1 protocol on Solana networks.
// Networks are identified by alias names ("solana", "solana-devnet") and
// payloads carry scheme/network at the top level; the scheme semantics are
// shared with the parent package.
package v1

import (
	"context"
	"fmt"

	x402 "github.com/x402-foundation/x402-go"
	"github.com/x402-foundation/x402-go/mechanisms/svm"
)

// ExactSvmClientV1 builds payment transactions in the v1 wire shape.
type ExactSvmClientV1 struct {
	inner *svm.ExactSvmClient
}

// NewExactSvmClientV1 creates a v1 client mechanism backed by the given
// signer.
func NewExactSvmClientV1(signer svm.ClientSvmSigner, config ...svm.ClientConfig) *ExactSvmClientV1 {
	return &ExactSvmClientV1{inner: svm.NewExactSvmClient(signer, config...)}
}

// Scheme returns the scheme identifier.
func (c *ExactSvmClientV1) Scheme() string {
	return svm.SchemeExact
}

// CreatePaymentPayload assembles and partially signs a payment transaction,
// returning a partial payload with the v1 top-level scheme and network set.
func (c *ExactSvmClientV1) CreatePaymentPayload(
	ctx context.Context,
	version int,
	requirements x402.PaymentRequirements,
) (x402.PartialPaymentPayload, error) {
	if version != 1 {
		return x402.PartialPaymentPayload{}, fmt.Errorf("v1 mechanism only supports x402 version 1, got %d", version)
	}

	partial, err := c.inner.CreatePaymentPayload(ctx, version, requirements)
	if err != nil {
		return x402.PartialPaymentPayload{}, err
	}

	partial.Scheme = svm.SchemeExact
	partial.Network = requirements.Network
	return partial, nil
}
