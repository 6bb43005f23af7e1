package integration_test

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	x402 "github.com/x402-foundation/x402-go"
	"github.com/x402-foundation/x402-go/mechanisms/evm"
	evmv1 "github.com/x402-foundation/x402-go/mechanisms/evm/v1"
	"github.com/x402-foundation/x402-go/types"
)

type mockClientEvmSigner struct {
	address string
}

func (m *mockClientEvmSigner) Address() string {
	if m.address == "" {
		return "0x1234567890123456789012345678901234567890"
	}
	return m.address
}

func (m *mockClientEvmSigner) SignTypedData(
	ctx context.Context,
	domain evm.TypedDataDomain,
	typedDataTypes map[string][]evm.TypedDataField,
	primaryType string,
	message map[string]interface{},
) ([]byte, error) {
	sig := make([]byte, 65)
	sig[64] = 27
	return sig, nil
}

type mockFacilitatorEvmSigner struct {
	validAddress string
	writtenTx    string
}

func newMockFacilitatorEvmSigner(validAddress string) *mockFacilitatorEvmSigner {
	return &mockFacilitatorEvmSigner{validAddress: validAddress}
}

func (m *mockFacilitatorEvmSigner) GetAddresses() []string {
	return []string{"0xFaC1117a70Fac1117aFac1117aFac1117aFac111"}
}

func (m *mockFacilitatorEvmSigner) ReadContract(ctx context.Context, address string, abi []byte, functionName string, args ...interface{}) (interface{}, error) {
	if functionName == evm.FunctionAuthorizationState {
		return false, nil
	}
	return nil, nil
}

func (m *mockFacilitatorEvmSigner) WriteContract(ctx context.Context, address string, abi []byte, functionName string, args ...interface{}) (string, error) {
	m.writtenTx = "0x1234567890abcdef1234567890abcdef1234567890abcdef1234567890abcdef"
	return m.writtenTx, nil
}

func (m *mockFacilitatorEvmSigner) WaitForTransactionReceipt(ctx context.Context, txHash string) (*evm.TransactionReceipt, error) {
	return &evm.TransactionReceipt{Status: evm.TxStatusSuccess}, nil
}

func (m *mockFacilitatorEvmSigner) VerifyTypedData(
	ctx context.Context,
	address string,
	domain evm.TypedDataDomain,
	typedDataTypes map[string][]evm.TypedDataField,
	primaryType string,
	message map[string]interface{},
	signature []byte,
) (bool, error) {
	return address == m.validAddress, nil
}

func (m *mockFacilitatorEvmSigner) GetBalance(ctx context.Context, address string, tokenAddress string) (*big.Int, error) {
	return big.NewInt(10_000_000_000), nil
}

func (m *mockFacilitatorEvmSigner) GetCode(ctx context.Context, address string) ([]byte, error) {
	return nil, nil
}

func TestEVMIntegrationV2(t *testing.T) {
	ctx := context.Background()

	clientSigner := &mockClientEvmSigner{}
	client := x402.Newx402Client()
	client.RegisterScheme("eip155:8453", evm.NewExactEvmClient(clientSigner))

	facilitatorSigner := newMockFacilitatorEvmSigner(clientSigner.Address())
	facilitator := x402.Newx402Facilitator()
	facilitator.Register([]x402.Network{"eip155:8453"}, evm.NewExactEvmFacilitator(facilitatorSigner))

	server := x402.Newx402ResourceServer(
		x402.WithFacilitatorClient(newLocalFacilitatorClient(facilitator)),
	)
	server.Register("eip155:8453", evm.NewExactEvmServer())
	if err := server.Initialize(ctx); err != nil {
		t.Fatalf("failed to initialize server: %v", err)
	}

	accepts := []x402.PaymentRequirements{
		{
			Scheme:  evm.SchemeExact,
			Network: "eip155:8453",
			Asset:   "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
			Amount:  "5000000",
			PayTo:   "0x9876543210987654321098765432109876543210",
			Extra: map[string]interface{}{
				"name":    "USD Coin",
				"version": "2",
			},
		},
	}
	resource := x402.ResourceInfo{
		URL:         "https://api.example.com/premium",
		Description: "Premium API access",
		MimeType:    "application/json",
	}
	paymentRequired := server.CreatePaymentRequiredResponse(accepts, resource, "", nil)
	if paymentRequired.X402Version != 2 {
		t.Fatalf("expected version 2, got %d", paymentRequired.X402Version)
	}

	payload, err := client.CreatePaymentPayload(ctx, paymentRequired)
	if err != nil {
		t.Fatalf("failed to create payment payload: %v", err)
	}
	if payload.X402Version != 2 {
		t.Errorf("expected payload version 2, got %d", payload.X402Version)
	}

	evmPayload, err := evm.PayloadFromMap(payload.Payload)
	if err != nil {
		t.Fatalf("failed to parse evm payload: %v", err)
	}
	if evmPayload.Authorization.From != clientSigner.Address() {
		t.Errorf("expected from %s, got %s", clientSigner.Address(), evmPayload.Authorization.From)
	}
	if evmPayload.Authorization.Value != "5000000" {
		t.Errorf("expected value 5000000, got %s", evmPayload.Authorization.Value)
	}

	payloadBytes, _ := json.Marshal(payload)
	accepted := server.FindMatchingRequirements(accepts, payloadBytes)
	if accepted == nil {
		t.Fatal("no matching payment requirements found")
	}
	acceptedBytes, _ := json.Marshal(accepted)

	verifyResponse, err := server.VerifyPayment(ctx, payloadBytes, acceptedBytes)
	if err != nil {
		t.Fatalf("failed to verify payment: %v", err)
	}
	if !verifyResponse.IsValid {
		t.Fatalf("payment verification failed: %s", verifyResponse.InvalidReason)
	}
	if verifyResponse.Payer != clientSigner.Address() {
		t.Errorf("expected payer %s, got %s", clientSigner.Address(), verifyResponse.Payer)
	}

	settleResponse, err := server.SettlePayment(ctx, payloadBytes, acceptedBytes)
	if err != nil {
		t.Fatalf("failed to settle payment: %v", err)
	}
	if !settleResponse.Success {
		t.Fatalf("payment settlement failed: %s", settleResponse.ErrorReason)
	}
	if settleResponse.Transaction != facilitatorSigner.writtenTx {
		t.Errorf("expected transaction %s, got %s", facilitatorSigner.writtenTx, settleResponse.Transaction)
	}
	if settleResponse.Network != "eip155:8453" {
		t.Errorf("expected network eip155:8453, got %s", settleResponse.Network)
	}
}

func TestEVMIntegrationV1(t *testing.T) {
	ctx := context.Background()

	clientSigner := &mockClientEvmSigner{
		address: "0xAbCDef1234567890123456789012345678901234",
	}
	client := x402.Newx402Client()
	client.RegisterSchemeV1("base-sepolia", evmv1.NewExactEvmClientV1(clientSigner))

	facilitatorSigner := newMockFacilitatorEvmSigner(clientSigner.Address())
	facilitator := x402.Newx402Facilitator()
	facilitator.RegisterV1([]x402.Network{"base-sepolia"}, evmv1.NewExactEvmFacilitatorV1(facilitatorSigner))

	server := x402.Newx402ResourceServer(
		x402.WithFacilitatorClient(newLocalFacilitatorClient(facilitator)),
	)
	server.Register("base-sepolia", evm.NewExactEvmServer())
	if err := server.Initialize(ctx); err != nil {
		t.Fatalf("failed to initialize server: %v", err)
	}

	accepts := []x402.PaymentRequirements{
		{
			Scheme:  evm.SchemeExact,
			Network: "base-sepolia",
			Asset:   "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
			Amount:  "10000000",
			PayTo:   "0x5555666677778888999900001111222233334444",
			Extra: map[string]interface{}{
				"name":    "USDC",
				"version": "2",
			},
		},
	}

	payload, err := client.CreatePaymentPayload(ctx, x402.PaymentRequired{
		X402Version: 1,
		Accepts:     accepts,
	})
	if err != nil {
		t.Fatalf("failed to create payment payload: %v", err)
	}
	if payload.X402Version != 1 {
		t.Errorf("expected payload version 1, got %d", payload.X402Version)
	}
	if payload.Scheme != evm.SchemeExact {
		t.Errorf("expected scheme %s, got %s", evm.SchemeExact, payload.Scheme)
	}
	if payload.Network != "base-sepolia" {
		t.Errorf("expected network base-sepolia, got %s", payload.Network)
	}

	evmPayload, err := evm.PayloadFromMap(payload.Payload)
	if err != nil {
		t.Fatalf("failed to parse evm payload: %v", err)
	}
	if evmPayload.Authorization.ValidAfter == "" || evmPayload.Authorization.ValidBefore == "" {
		t.Error("expected validity window to be set")
	}

	// Serialize in the v1 wire shape, as an HTTP transport would.
	payloadBytes, err := json.Marshal(types.PaymentPayloadV1{
		X402Version: 1,
		Scheme:      payload.Scheme,
		Network:     string(payload.Network),
		Payload:     payload.Payload,
	})
	if err != nil {
		t.Fatalf("failed to marshal v1 payload: %v", err)
	}

	accepted := server.FindMatchingRequirements(accepts, payloadBytes)
	if accepted == nil {
		t.Fatal("no matching payment requirements found")
	}

	// Requirements travel in the v1 wire shape alongside a v1 payload.
	extraBytes, _ := json.Marshal(accepted.Extra)
	extraRaw := json.RawMessage(extraBytes)
	acceptedBytes, err := json.Marshal(types.PaymentRequirementsV1{
		Scheme:            accepted.Scheme,
		Network:           string(accepted.Network),
		MaxAmountRequired: accepted.Amount,
		PayTo:             accepted.PayTo,
		Asset:             accepted.Asset,
		MaxTimeoutSeconds: accepted.MaxTimeoutSeconds,
		Extra:             &extraRaw,
	})
	if err != nil {
		t.Fatalf("failed to marshal v1 requirements: %v", err)
	}

	verifyResponse, err := server.VerifyPayment(ctx, payloadBytes, acceptedBytes)
	if err != nil {
		t.Fatalf("failed to verify payment: %v", err)
	}
	if !verifyResponse.IsValid {
		t.Fatalf("payment verification failed: %s", verifyResponse.InvalidReason)
	}
	if verifyResponse.Payer != clientSigner.Address() {
		t.Errorf("expected payer %s, got %s", clientSigner.Address(), verifyResponse.Payer)
	}

	settleResponse, err := server.SettlePayment(ctx, payloadBytes, acceptedBytes)
	if err != nil {
		t.Fatalf("failed to settle payment: %v", err)
	}
	if !settleResponse.Success {
		t.Fatalf("payment settlement failed: %s", settleResponse.ErrorReason)
	}
	if settleResponse.Network != "base-sepolia" {
		t.Errorf("expected network base-sepolia, got %s", settleResponse.Network)
	}
}

func TestEVMVersionMismatch(t *testing.T) {
	ctx := context.Background()

	requirements := x402.PaymentRequirements{
		Scheme:  evm.SchemeExact,
		Network: "eip155:8453",
		Asset:   "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		Amount:  "1000000",
		PayTo:   "0x9876543210987654321098765432109876543210",
	}

	t.Run("v1 client with v2 payment required", func(t *testing.T) {
		client := x402.Newx402Client()
		client.RegisterSchemeV1("eip155:8453", evmv1.NewExactEvmClientV1(&mockClientEvmSigner{}))

		_, err := client.CreatePaymentPayload(ctx, x402.PaymentRequired{
			X402Version: 2,
			Accepts:     []x402.PaymentRequirements{requirements},
		})
		if err == nil {
			t.Error("expected error creating a v2 payment with only a v1 mechanism registered")
		}
	})

	t.Run("v2 client with v1 payment required", func(t *testing.T) {
		client := x402.Newx402Client()
		client.RegisterScheme("eip155:8453", evm.NewExactEvmClient(&mockClientEvmSigner{}))

		_, err := client.CreatePaymentPayload(ctx, x402.PaymentRequired{
			X402Version: 1,
			Accepts:     []x402.PaymentRequirements{requirements},
		})
		if err == nil {
			t.Error("expected error creating a v1 payment with only a v2 mechanism registered")
		}
	})
}

func TestEVMDualVersionSupport(t *testing.T) {
	ctx := context.Background()

	clientSigner := &mockClientEvmSigner{}
	client := x402.Newx402Client()
	client.RegisterSchemeV1("base-sepolia", evmv1.NewExactEvmClientV1(clientSigner))
	client.RegisterScheme("eip155:84532", evm.NewExactEvmClient(clientSigner))

	v1Requirements := x402.PaymentRequirements{
		Scheme:  evm.SchemeExact,
		Network: "base-sepolia",
		Asset:   "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		Amount:  "2000000",
		PayTo:   "0x1111222233334444555566667777888899990000",
		Extra: map[string]interface{}{
			"name":    "USDC",
			"version": "2",
		},
	}
	v2Requirements := v1Requirements
	v2Requirements.Network = "eip155:84532"
	v2Requirements.Amount = "3000000"

	t.Run("handles v1 requirements", func(t *testing.T) {
		payload, err := client.CreatePaymentPayload(ctx, x402.PaymentRequired{
			X402Version: 1,
			Accepts:     []x402.PaymentRequirements{v1Requirements},
		})
		if err != nil {
			t.Fatalf("failed to create v1 payload: %v", err)
		}
		if payload.X402Version != 1 {
			t.Errorf("expected version 1, got %d", payload.X402Version)
		}
		if payload.Accepted.Scheme != "" {
			t.Error("v1 payload should not carry an accepted requirement")
		}

		evmPayload, err := evm.PayloadFromMap(payload.Payload)
		if err != nil {
			t.Fatalf("failed to parse evm payload: %v", err)
		}
		if evmPayload.Authorization.Value != "2000000" {
			t.Errorf("expected value 2000000, got %s", evmPayload.Authorization.Value)
		}
	})

	t.Run("handles v2 requirements", func(t *testing.T) {
		payload, err := client.CreatePaymentPayload(ctx, x402.PaymentRequired{
			X402Version: 2,
			Accepts:     []x402.PaymentRequirements{v2Requirements},
		})
		if err != nil {
			t.Fatalf("failed to create v2 payload: %v", err)
		}
		if payload.X402Version != 2 {
			t.Errorf("expected version 2, got %d", payload.X402Version)
		}
		if payload.Accepted.Network != v2Requirements.Network {
			t.Errorf("expected accepted network %s, got %s", v2Requirements.Network, payload.Accepted.Network)
		}
		if payload.Accepted.Amount != v2Requirements.Amount {
			t.Errorf("expected accepted amount %s, got %s", v2Requirements.Amount, payload.Accepted.Amount)
		}
	})
}
