// Package integration_test exercises the client, resource server, and
// facilitator cores together, end to end, over the same bytes boundaries
// the transports use.
package integration_test

import (
	"context"
	"encoding/json"
	"testing"

	x402 "github.com/x402-foundation/x402-go"
	"github.com/x402-foundation/x402-go/test/mocks/cash"
)

func TestCoreIntegration(t *testing.T) {
	ctx := context.Background()

	client := x402.Newx402Client()
	client.RegisterScheme(cash.Network, cash.NewSchemeNetworkClient("John"))

	facilitator := x402.Newx402Facilitator()
	facilitator.Register([]x402.Network{cash.Network}, cash.NewSchemeNetworkFacilitator())

	facilitatorClient := cash.NewFacilitatorClient(facilitator)

	server := x402.Newx402ResourceServer(
		x402.WithFacilitatorClient(facilitatorClient),
	)
	server.Register(cash.Network, cash.NewSchemeNetworkServer())

	if err := server.Initialize(ctx); err != nil {
		t.Fatalf("failed to initialize server: %v", err)
	}

	// Server builds the 402 response body.
	accepts := []x402.PaymentRequirements{
		cash.BuildPaymentRequirements("Company Co.", "USD", "1"),
	}
	resource := x402.ResourceInfo{
		URL:         "https://company.co",
		Description: "Company Co. resource",
		MimeType:    "application/json",
	}
	paymentRequired := server.CreatePaymentRequiredResponse(accepts, resource, "", nil)
	if paymentRequired.X402Version != 2 {
		t.Fatalf("expected version 2, got %d", paymentRequired.X402Version)
	}

	// Client answers with a payment payload.
	payload, err := client.CreatePaymentPayload(ctx, paymentRequired)
	if err != nil {
		t.Fatalf("failed to create payment payload: %v", err)
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}

	// Server binds the payload to one of its configured requirements.
	accepted := server.FindMatchingRequirements(accepts, payloadBytes)
	if accepted == nil {
		t.Fatal("no matching payment requirements found")
	}
	acceptedBytes, err := json.Marshal(accepted)
	if err != nil {
		t.Fatalf("failed to marshal accepted requirements: %v", err)
	}

	verifyResponse, err := server.VerifyPayment(ctx, payloadBytes, acceptedBytes)
	if err != nil {
		t.Fatalf("failed to verify payment: %v", err)
	}
	if !verifyResponse.IsValid {
		t.Fatalf("payment verification failed: %s", verifyResponse.InvalidReason)
	}
	if verifyResponse.Payer != "John" {
		t.Errorf("expected payer John, got %s", verifyResponse.Payer)
	}

	// The resource handler would run here.

	settleResponse, err := server.SettlePayment(ctx, payloadBytes, acceptedBytes)
	if err != nil {
		t.Fatalf("failed to settle payment: %v", err)
	}
	if !settleResponse.Success {
		t.Fatalf("payment settlement failed: %s", settleResponse.ErrorReason)
	}

	expectedTransaction := "John transferred 1 USD to Company Co."
	if settleResponse.Transaction != expectedTransaction {
		t.Errorf("expected transaction %q, got %q", expectedTransaction, settleResponse.Transaction)
	}
}

func TestCoreIntegrationRejectsForgedPayload(t *testing.T) {
	ctx := context.Background()

	facilitator := x402.Newx402Facilitator()
	facilitator.Register([]x402.Network{cash.Network}, cash.NewSchemeNetworkFacilitator())

	server := x402.Newx402ResourceServer(
		x402.WithFacilitatorClient(cash.NewFacilitatorClient(facilitator)),
	)
	server.Register(cash.Network, cash.NewSchemeNetworkServer())
	if err := server.Initialize(ctx); err != nil {
		t.Fatalf("failed to initialize server: %v", err)
	}

	requirements := cash.BuildPaymentRequirements("Company Co.", "USD", "1")
	forged := x402.PaymentPayload{
		X402Version: 2,
		Accepted:    requirements,
		Payload: map[string]interface{}{
			"signature":  "~Mallory",
			"validUntil": "9999999999",
			"name":       "John",
		},
	}
	payloadBytes, _ := json.Marshal(forged)
	requirementsBytes, _ := json.Marshal(requirements)

	verifyResponse, err := server.VerifyPayment(ctx, payloadBytes, requirementsBytes)
	if err != nil {
		t.Fatalf("failed to verify payment: %v", err)
	}
	if verifyResponse.IsValid {
		t.Fatal("expected forged payload to be rejected")
	}
	if verifyResponse.InvalidReason != "invalid_signature" {
		t.Errorf("expected invalid_signature, got %s", verifyResponse.InvalidReason)
	}

	settleResponse, err := server.SettlePayment(ctx, payloadBytes, requirementsBytes)
	if err != nil {
		t.Fatalf("failed to settle payment: %v", err)
	}
	if settleResponse.Success {
		t.Fatal("expected settlement of forged payload to fail")
	}
}
