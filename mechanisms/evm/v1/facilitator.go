package v1

import (
	"context"
	"fmt"

	x402 "github.com/x402-foundation/x402-go"
	"github.com/x402-foundation/x402-go/mechanisms/evm"
)

// ExactEvmFacilitatorV1 verifies and settles v1 payments by delegating the
// scheme checks to the parent package's facilitator.
type ExactEvmFacilitatorV1 struct {
	inner *evm.ExactEvmFacilitator
}

// NewExactEvmFacilitatorV1 creates a v1 facilitator mechanism backed by the
// given signer.
func NewExactEvmFacilitatorV1(signer evm.FacilitatorEvmSigner) *ExactEvmFacilitatorV1 {
	return &ExactEvmFacilitatorV1{inner: evm.NewExactEvmFacilitator(signer)}
}

// Scheme returns the scheme identifier.
func (f *ExactEvmFacilitatorV1) Scheme() string {
	return evm.SchemeExact
}

// CaipFamily returns the network family pattern. V1 alias networks still
// belong to the eip155 family.
func (f *ExactEvmFacilitatorV1) CaipFamily() string {
	return evm.CaipFamilyEvm
}

// GetExtra returns nil; the v1 exact scheme advertises no kind metadata.
func (f *ExactEvmFacilitatorV1) GetExtra(network x402.Network) map[string]interface{} {
	return nil
}

// GetSigners returns the facilitator's settlement addresses.
func (f *ExactEvmFacilitatorV1) GetSigners(network x402.Network) []string {
	return f.inner.GetSigners(network)
}

// Verify checks a v1 payment payload against requirements.
func (f *ExactEvmFacilitatorV1) Verify(
	ctx context.Context,
	payload x402.PaymentPayload,
	requirements x402.PaymentRequirements,
) (x402.VerifyResponse, error) {
	if payload.X402Version != 1 {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: fmt.Sprintf("v1 mechanism only supports x402 version 1, got %d", payload.X402Version),
		}, nil
	}
	if payload.Scheme != evm.SchemeExact {
		return x402.VerifyResponse{IsValid: false, InvalidReason: "invalid scheme"}, nil
	}
	if payload.Network != requirements.Network {
		return x402.VerifyResponse{IsValid: false, InvalidReason: "network mismatch"}, nil
	}

	evmPayload, err := evm.PayloadFromMap(payload.Payload)
	if err != nil {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: fmt.Sprintf("invalid payload: %v", err),
		}, nil
	}

	return f.inner.VerifyAuthorization(ctx, evmPayload, requirements)
}

// Settle verifies the payment and submits transferWithAuthorization.
func (f *ExactEvmFacilitatorV1) Settle(
	ctx context.Context,
	payload x402.PaymentPayload,
	requirements x402.PaymentRequirements,
) (x402.SettleResponse, error) {
	verifyResp, err := f.Verify(ctx, payload, requirements)
	if err != nil {
		return x402.SettleResponse{}, err
	}
	if !verifyResp.IsValid {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: verifyResp.InvalidReason,
			Network:     requirements.Network,
		}, nil
	}

	evmPayload, err := evm.PayloadFromMap(payload.Payload)
	if err != nil {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: fmt.Sprintf("invalid payload: %v", err),
			Network:     requirements.Network,
		}, nil
	}

	return f.inner.SettleAuthorization(ctx, evmPayload, requirements)
}
