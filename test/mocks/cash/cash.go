// Package cash implements a toy "cash" payment scheme used to exercise the
// client, resource server, and facilitator cores without any chain
// dependencies. A payment is a handshake: the payload carries the payer's
// name and a "~name" signature with an expiry.
package cash

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	x402 "github.com/x402-foundation/x402-go"
)

// Scheme is the cash scheme identifier.
const Scheme = "cash"

// Network is the synthetic network cash payments settle on.
const Network = x402.Network("x402:cash")

// SchemeNetworkClient is the client half of the cash scheme.
type SchemeNetworkClient struct {
	payer string
}

// NewSchemeNetworkClient creates a cash client signing as payer.
func NewSchemeNetworkClient(payer string) *SchemeNetworkClient {
	return &SchemeNetworkClient{payer: payer}
}

func (c *SchemeNetworkClient) Scheme() string {
	return Scheme
}

// CreatePaymentPayload produces a "~name" signature valid for the
// requirement's timeout window.
func (c *SchemeNetworkClient) CreatePaymentPayload(ctx context.Context, version int, requirements x402.PaymentRequirements) (x402.PartialPaymentPayload, error) {
	validUntil := time.Now().Add(time.Duration(requirements.MaxTimeoutSeconds) * time.Second).Unix()

	return x402.PartialPaymentPayload{
		X402Version: version,
		Payload: map[string]interface{}{
			"signature":  fmt.Sprintf("~%s", c.payer),
			"validUntil": strconv.FormatInt(validUntil, 10),
			"name":       c.payer,
		},
	}, nil
}

// SchemeNetworkFacilitator is the facilitator half of the cash scheme.
type SchemeNetworkFacilitator struct{}

// NewSchemeNetworkFacilitator creates a cash facilitator.
func NewSchemeNetworkFacilitator() *SchemeNetworkFacilitator {
	return &SchemeNetworkFacilitator{}
}

func (f *SchemeNetworkFacilitator) Scheme() string {
	return Scheme
}

func (f *SchemeNetworkFacilitator) CaipFamily() string {
	return "x402:*"
}

func (f *SchemeNetworkFacilitator) GetExtra(network x402.Network) map[string]interface{} {
	return nil
}

func (f *SchemeNetworkFacilitator) GetSigners(network x402.Network) []string {
	return nil
}

// Verify checks that the signature is "~" plus the payer name and has not
// expired.
func (f *SchemeNetworkFacilitator) Verify(ctx context.Context, payload x402.PaymentPayload, requirements x402.PaymentRequirements) (x402.VerifyResponse, error) {
	signature, ok := payload.Payload["signature"].(string)
	if !ok {
		return invalid("missing_signature"), nil
	}
	name, ok := payload.Payload["name"].(string)
	if !ok {
		return invalid("missing_name"), nil
	}
	validUntilStr, ok := payload.Payload["validUntil"].(string)
	if !ok {
		return invalid("missing_valid_until"), nil
	}

	if signature != fmt.Sprintf("~%s", name) {
		return invalid("invalid_signature"), nil
	}

	validUntil, err := strconv.ParseInt(validUntilStr, 10, 64)
	if err != nil {
		return invalid("invalid_valid_until"), nil
	}
	if validUntil < time.Now().Unix() {
		return invalid("expired_signature"), nil
	}

	return x402.VerifyResponse{IsValid: true, Payer: name}, nil
}

// Settle re-verifies and records a human-readable transfer line as the
// transaction.
func (f *SchemeNetworkFacilitator) Settle(ctx context.Context, payload x402.PaymentPayload, requirements x402.PaymentRequirements) (x402.SettleResponse, error) {
	verifyResponse, err := f.Verify(ctx, payload, requirements)
	if err != nil {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: err.Error(),
			Network:     requirements.Network,
		}, nil
	}
	if !verifyResponse.IsValid {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: verifyResponse.InvalidReason,
			Network:     requirements.Network,
		}, nil
	}

	return x402.SettleResponse{
		Success:     true,
		Transaction: fmt.Sprintf("%s transferred %s %s to %s", verifyResponse.Payer, requirements.Amount, requirements.Asset, requirements.PayTo),
		Network:     requirements.Network,
		Payer:       verifyResponse.Payer,
	}, nil
}

func invalid(reason string) x402.VerifyResponse {
	return x402.VerifyResponse{IsValid: false, InvalidReason: reason}
}

// SchemeNetworkServer is the resource-server half of the cash scheme.
// Prices are plain USD decimals.
type SchemeNetworkServer struct{}

// NewSchemeNetworkServer creates a cash scheme server.
func NewSchemeNetworkServer() *SchemeNetworkServer {
	return &SchemeNetworkServer{}
}

func (s *SchemeNetworkServer) Scheme() string {
	return Scheme
}

// ParsePrice accepts AssetAmount passthrough, "$10" / "10 USD" strings, and
// bare numbers.
func (s *SchemeNetworkServer) ParsePrice(price x402.Price, network x402.Network) (x402.AssetAmount, error) {
	switch p := price.(type) {
	case x402.AssetAmount:
		return p, nil
	case *x402.AssetAmount:
		return *p, nil
	case string:
		clean := strings.TrimPrefix(p, "$")
		clean = strings.TrimSuffix(clean, "USD")
		clean = strings.TrimSpace(clean)
		return x402.AssetAmount{Amount: clean, Asset: "USD"}, nil
	case float64:
		return x402.AssetAmount{Amount: fmt.Sprintf("%.2f", p), Asset: "USD"}, nil
	case int:
		return x402.AssetAmount{Amount: strconv.Itoa(p), Asset: "USD"}, nil
	default:
		return x402.AssetAmount{}, fmt.Errorf("invalid price format: %v", price)
	}
}

// EnhancePaymentRequirements is a no-op; cash needs no extra fields.
func (s *SchemeNetworkServer) EnhancePaymentRequirements(ctx context.Context, requirements x402.PaymentRequirements, supportedKind x402.SupportedKind, facilitatorExtensions []string) (x402.PaymentRequirements, error) {
	return requirements, nil
}

// FacilitatorClient adapts an in-process X402Facilitator to the
// bytes-boundary FacilitatorClient interface the resource server consumes.
type FacilitatorClient struct {
	facilitator *x402.X402Facilitator
}

// NewFacilitatorClient wraps an in-process facilitator.
func NewFacilitatorClient(facilitator *x402.X402Facilitator) *FacilitatorClient {
	return &FacilitatorClient{facilitator: facilitator}
}

func (c *FacilitatorClient) Verify(ctx context.Context, payloadBytes []byte, requirementsBytes []byte) (*x402.VerifyResponse, error) {
	response, err := c.facilitator.Verify(ctx, payloadBytes, requirementsBytes)
	if err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *FacilitatorClient) Settle(ctx context.Context, payloadBytes []byte, requirementsBytes []byte) (*x402.SettleResponse, error) {
	response, err := c.facilitator.Settle(ctx, payloadBytes, requirementsBytes)
	if err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *FacilitatorClient) GetSupported(ctx context.Context) (*x402.SupportedResponse, error) {
	response := c.facilitator.GetSupported()
	return &response, nil
}

// BuildPaymentRequirements creates a cash payment requirement.
func BuildPaymentRequirements(payTo string, asset string, amount string) x402.PaymentRequirements {
	return x402.PaymentRequirements{
		Scheme:            Scheme,
		Network:           Network,
		Asset:             asset,
		Amount:            amount,
		PayTo:             payTo,
		MaxTimeoutSeconds: 1000,
	}
}

var (
	_ x402.SchemeNetworkClient      = (*SchemeNetworkClient)(nil)
	_ x402.SchemeNetworkServer      = (*SchemeNetworkServer)(nil)
	_ x402.SchemeNetworkFacilitator = (*SchemeNetworkFacilitator)(nil)
	_ x402.FacilitatorClient        = (*FacilitatorClient)(nil)
)
