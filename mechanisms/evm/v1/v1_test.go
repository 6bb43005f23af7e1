package v1

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x402 "github.com/x402-foundation/x402-go"
	"github.com/x402-foundation/x402-go/mechanisms/evm"
)

const (
	testPayer = "0x1111111111111111111111111111111111111111"
	testPayTo = "0x2222222222222222222222222222222222222222"
)

type mockClientSigner struct{}

func (m *mockClientSigner) Address() string { return testPayer }

func (m *mockClientSigner) SignTypedData(ctx context.Context, domain evm.TypedDataDomain, types map[string][]evm.TypedDataField, primaryType string, message map[string]interface{}) ([]byte, error) {
	return make([]byte, 65), nil
}

type mockFacilitatorSigner struct {
	writeCalls int
}

func (m *mockFacilitatorSigner) GetAddresses() []string {
	return []string{"0x3333333333333333333333333333333333333333"}
}

func (m *mockFacilitatorSigner) ReadContract(ctx context.Context, address string, abi []byte, functionName string, args ...interface{}) (interface{}, error) {
	if functionName == evm.FunctionAuthorizationState {
		return false, nil
	}
	return true, nil
}

func (m *mockFacilitatorSigner) WriteContract(ctx context.Context, address string, abi []byte, functionName string, args ...interface{}) (string, error) {
	m.writeCalls++
	return "0xv1tx", nil
}

func (m *mockFacilitatorSigner) WaitForTransactionReceipt(ctx context.Context, txHash string) (*evm.TransactionReceipt, error) {
	return &evm.TransactionReceipt{Status: evm.TxStatusSuccess, TxHash: txHash}, nil
}

func (m *mockFacilitatorSigner) VerifyTypedData(ctx context.Context, address string, domain evm.TypedDataDomain, types map[string][]evm.TypedDataField, primaryType string, message map[string]interface{}, signature []byte) (bool, error) {
	return true, nil
}

func (m *mockFacilitatorSigner) GetBalance(ctx context.Context, address string, tokenAddress string) (*big.Int, error) {
	return big.NewInt(5_000_000), nil
}

func (m *mockFacilitatorSigner) GetCode(ctx context.Context, address string) ([]byte, error) {
	return nil, nil
}

func v1Requirements() x402.PaymentRequirements {
	return x402.PaymentRequirements{
		Scheme:            evm.SchemeExact,
		Network:           "base-sepolia",
		Asset:             "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		Amount:            "1000000",
		PayTo:             testPayTo,
		MaxTimeoutSeconds: 300,
	}
}

func v1Payload(requirements x402.PaymentRequirements) x402.PaymentPayload {
	now := time.Now().Unix()
	evmPayload := &evm.ExactEIP3009Payload{
		Signature: "0x" + strings.Repeat("cd", 65),
		Authorization: evm.ExactEIP3009Authorization{
			From:        testPayer,
			To:          testPayTo,
			Value:       "1000000",
			ValidAfter:  fmt.Sprintf("%d", now-600),
			ValidBefore: fmt.Sprintf("%d", now+300),
			Nonce:       "0x" + strings.Repeat("44", 32),
		},
	}
	return x402.PaymentPayload{
		X402Version: 1,
		Scheme:      evm.SchemeExact,
		Network:     requirements.Network,
		Payload:     evmPayload.ToMap(),
	}
}

func TestClientV1CreatePaymentPayload(t *testing.T) {
	client := NewExactEvmClientV1(&mockClientSigner{})

	partial, err := client.CreatePaymentPayload(context.Background(), 1, v1Requirements())
	require.NoError(t, err)

	assert.Equal(t, 1, partial.X402Version)
	assert.Equal(t, evm.SchemeExact, partial.Scheme)
	assert.Equal(t, x402.Network("base-sepolia"), partial.Network)

	auth, ok := partial.Payload["authorization"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, testPayer, auth["from"])

	// validAfter is backdated to absorb clock skew.
	validAfter, ok := new(big.Int).SetString(auth["validAfter"].(string), 10)
	require.True(t, ok)
	assert.Less(t, validAfter.Int64(), time.Now().Unix())
}

func TestClientV1RejectsV2(t *testing.T) {
	client := NewExactEvmClientV1(&mockClientSigner{})

	_, err := client.CreatePaymentPayload(context.Background(), 2, v1Requirements())
	assert.Error(t, err)
}

func TestFacilitatorV1Verify(t *testing.T) {
	facilitator := NewExactEvmFacilitatorV1(&mockFacilitatorSigner{})

	requirements := v1Requirements()
	resp, err := facilitator.Verify(context.Background(), v1Payload(requirements), requirements)
	require.NoError(t, err)
	assert.True(t, resp.IsValid)
	assert.Equal(t, testPayer, resp.Payer)
}

func TestFacilitatorV1RejectsV2Payload(t *testing.T) {
	facilitator := NewExactEvmFacilitatorV1(&mockFacilitatorSigner{})

	requirements := v1Requirements()
	payload := v1Payload(requirements)
	payload.X402Version = 2

	resp, err := facilitator.Verify(context.Background(), payload, requirements)
	require.NoError(t, err)
	assert.False(t, resp.IsValid)
	assert.Contains(t, resp.InvalidReason, "version 1")
}

func TestFacilitatorV1Settle(t *testing.T) {
	signer := &mockFacilitatorSigner{}
	facilitator := NewExactEvmFacilitatorV1(signer)

	requirements := v1Requirements()
	resp, err := facilitator.Settle(context.Background(), v1Payload(requirements), requirements)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "0xv1tx", resp.Transaction)
	assert.Equal(t, 1, signer.writeCalls)
}
