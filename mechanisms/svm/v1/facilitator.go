package v1

import (
	"context"
	"fmt"

	x402 "github.com/x402-foundation/x402-go"
	"github.com/x402-foundation/x402-go/mechanisms/svm"
)

// ExactSvmFacilitatorV1 verifies and settles v1 payments by delegating the
// scheme checks to the parent package's facilitator.
type ExactSvmFacilitatorV1 struct {
	inner *svm.ExactSvmFacilitator
}

// NewExactSvmFacilitatorV1 creates a v1 facilitator mechanism backed by the
// given signer.
func NewExactSvmFacilitatorV1(signer svm.FacilitatorSvmSigner) *ExactSvmFacilitatorV1 {
	return &ExactSvmFacilitatorV1{inner: svm.NewExactSvmFacilitator(signer)}
}

// Scheme returns the scheme identifier.
func (f *ExactSvmFacilitatorV1) Scheme() string {
	return svm.SchemeExact
}

// CaipFamily returns the network family pattern. V1 alias networks still
// belong to the solana family.
func (f *ExactSvmFacilitatorV1) CaipFamily() string {
	return svm.CaipFamilySvm
}

// GetExtra advertises the fee payer address, same as the v2 mechanism.
func (f *ExactSvmFacilitatorV1) GetExtra(network x402.Network) map[string]interface{} {
	return f.inner.GetExtra(network)
}

// GetSigners returns the facilitator's fee payer addresses.
func (f *ExactSvmFacilitatorV1) GetSigners(network x402.Network) []string {
	return f.inner.GetSigners(network)
}

// Verify checks a v1 payment payload against requirements.
func (f *ExactSvmFacilitatorV1) Verify(
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
	if payload.Scheme != svm.SchemeExact {
		return x402.VerifyResponse{IsValid: false, InvalidReason: svm.ErrInvalidScheme}, nil
	}
	if payload.Network != requirements.Network {
		return x402.VerifyResponse{IsValid: false, InvalidReason: svm.ErrInvalidNetwork}, nil
	}

	svmPayload, err := svm.PayloadFromMap(payload.Payload)
	if err != nil {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: fmt.Sprintf("invalid payload: %v", err),
		}, nil
	}

	return f.inner.VerifyTransaction(ctx, svmPayload, requirements)
}

// Settle verifies the payment and broadcasts the transaction.
func (f *ExactSvmFacilitatorV1) Settle(
	ctx context.Context,
	payload x402.PaymentPayload,
	requirements x402.PaymentRequirements,
) (x402.SettleResponse, error) {
	verifyResponse, err := f.Verify(ctx, payload, requirements)
	if err != nil {
		return x402.SettleResponse{}, err
	}
	if !verifyResponse.IsValid {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: verifyResponse.InvalidReason,
			Network:     requirements.Network,
		}, nil
	}

	svmPayload, err := svm.PayloadFromMap(payload.Payload)
	if err != nil {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: fmt.Sprintf("invalid payload: %v", err),
			Network:     requirements.Network,
		}, nil
	}

	response, err := f.inner.SettleTransaction(ctx, svmPayload, requirements)
	if err != nil {
		return x402.SettleResponse{}, err
	}
	response.Payer = verifyResponse.Payer
	return response, nil
}
