package integration_test

import (
	"context"

	x402 "github.com/x402-foundation/x402-go"
)

// localFacilitatorClient adapts an in-process facilitator to the
// bytes-boundary FacilitatorClient interface, standing in for the HTTP
// facilitator client.
type localFacilitatorClient struct {
	facilitator *x402.X402Facilitator
}

func newLocalFacilitatorClient(facilitator *x402.X402Facilitator) *localFacilitatorClient {
	return &localFacilitatorClient{facilitator: facilitator}
}

func (l *localFacilitatorClient) Verify(ctx context.Context, payloadBytes []byte, requirementsBytes []byte) (*x402.VerifyResponse, error) {
	response, err := l.facilitator.Verify(ctx, payloadBytes, requirementsBytes)
	if err != nil {
		return nil, err
	}
	return &response, nil
}

func (l *localFacilitatorClient) Settle(ctx context.Context, payloadBytes []byte, requirementsBytes []byte) (*x402.SettleResponse, error) {
	response, err := l.facilitator.Settle(ctx, payloadBytes, requirementsBytes)
	if err != nil {
		return nil, err
	}
	return &response, nil
}

func (l *localFacilitatorClient) GetSupported(ctx context.Context) (*x402.SupportedResponse, error) {
	response := l.facilitator.GetSupported()
	return &response, nil
}
