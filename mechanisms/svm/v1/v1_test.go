package v1

import (
	"context"
	"testing"

	solana "github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x402 "github.com/x402-foundation/x402-go"
	"github.com/x402-foundation/x402-go/mechanisms/svm"
)

var (
	testPayer    = solana.NewWallet()
	testPayTo    = solana.NewWallet()
	testFeePayer = solana.NewWallet()
	testMint     = solana.MustPublicKeyFromBase58("4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU")
)

type mockClientSigner struct{}

func (m *mockClientSigner) Address() solana.PublicKey {
	return testPayer.PublicKey()
}

func (m *mockClientSigner) SignTransaction(ctx context.Context, tx *solana.Transaction) error {
	return nil
}

type mockFacilitatorSigner struct {
	sendCalls int
}

func (m *mockFacilitatorSigner) GetAddresses(network x402.Network) []solana.PublicKey {
	return []solana.PublicKey{testFeePayer.PublicKey()}
}

func (m *mockFacilitatorSigner) SignTransaction(ctx context.Context, tx *solana.Transaction, feePayer solana.PublicKey, network x402.Network) error {
	return nil
}

func (m *mockFacilitatorSigner) SimulateTransaction(ctx context.Context, tx *solana.Transaction, network x402.Network) error {
	return nil
}

func (m *mockFacilitatorSigner) SendTransaction(ctx context.Context, tx *solana.Transaction, network x402.Network) (solana.Signature, error) {
	m.sendCalls++
	return solana.Signature{9, 9, 9}, nil
}

func (m *mockFacilitatorSigner) ConfirmTransaction(ctx context.Context, signature solana.Signature, network x402.Network) error {
	return nil
}

func v1Requirements() x402.PaymentRequirements {
	return x402.PaymentRequirements{
		Scheme:            svm.SchemeExact,
		Network:           "solana-devnet",
		Asset:             testMint.String(),
		Amount:            "1000000",
		PayTo:             testPayTo.PublicKey().String(),
		MaxTimeoutSeconds: 60,
		Extra: map[string]interface{}{
			"feePayer": testFeePayer.PublicKey().String(),
		},
	}
}

func buildTransaction(t *testing.T) string {
	t.Helper()

	limit, err := computebudget.NewSetComputeUnitLimitInstructionBuilder().
		SetUnits(svm.DefaultComputeUnitLimit).
		ValidateAndBuild()
	require.NoError(t, err)
	price, err := computebudget.NewSetComputeUnitPriceInstructionBuilder().
		SetMicroLamports(svm.DefaultComputeUnitPriceMicroLamports).
		ValidateAndBuild()
	require.NoError(t, err)

	sourceATA, _, err := solana.FindAssociatedTokenAddress(testPayer.PublicKey(), testMint)
	require.NoError(t, err)
	destATA, _, err := solana.FindAssociatedTokenAddress(testPayTo.PublicKey(), testMint)
	require.NoError(t, err)

	transfer, err := token.NewTransferCheckedInstructionBuilder().
		SetAmount(1_000_000).
		SetDecimals(6).
		SetSourceAccount(sourceATA).
		SetMintAccount(testMint).
		SetDestinationAccount(destATA).
		SetOwnerAccount(testPayer.PublicKey()).
		ValidateAndBuild()
	require.NoError(t, err)

	memo, err := svm.NewMemoInstruction()
	require.NoError(t, err)

	tx, err := solana.NewTransactionBuilder().
		AddInstruction(limit).
		AddInstruction(price).
		AddInstruction(transfer).
		AddInstruction(memo).
		SetFeePayer(testFeePayer.PublicKey()).
		SetRecentBlockHash(solana.Hash(testPayer.PublicKey())).
		Build()
	require.NoError(t, err)

	encoded, err := svm.EncodeTransaction(tx)
	require.NoError(t, err)
	return encoded
}

func v1Payload(t *testing.T, requirements x402.PaymentRequirements) x402.PaymentPayload {
	return x402.PaymentPayload{
		X402Version: 1,
		Scheme:      svm.SchemeExact,
		Network:     requirements.Network,
		Payload:     (&svm.ExactSvmPayload{Transaction: buildTransaction(t)}).ToMap(),
	}
}

func TestClientV1RejectsV2(t *testing.T) {
	client := NewExactSvmClientV1(&mockClientSigner{})

	_, err := client.CreatePaymentPayload(context.Background(), 2, v1Requirements())
	assert.ErrorContains(t, err, "version 1")
}

func TestFacilitatorV1Verify(t *testing.T) {
	facilitator := NewExactSvmFacilitatorV1(&mockFacilitatorSigner{})

	requirements := v1Requirements()
	response, err := facilitator.Verify(context.Background(), v1Payload(t, requirements), requirements)
	require.NoError(t, err)
	assert.True(t, response.IsValid, response.InvalidReason)
	assert.Equal(t, testPayer.PublicKey().String(), response.Payer)
}

func TestFacilitatorV1RejectsV2Payload(t *testing.T) {
	facilitator := NewExactSvmFacilitatorV1(&mockFacilitatorSigner{})

	requirements := v1Requirements()
	payload := v1Payload(t, requirements)
	payload.X402Version = 2

	response, err := facilitator.Verify(context.Background(), payload, requirements)
	require.NoError(t, err)
	assert.False(t, response.IsValid)
	assert.Contains(t, response.InvalidReason, "version 1")
}

func TestFacilitatorV1Settle(t *testing.T) {
	signer := &mockFacilitatorSigner{}
	facilitator := NewExactSvmFacilitatorV1(signer)

	requirements := v1Requirements()
	response, err := facilitator.Settle(context.Background(), v1Payload(t, requirements), requirements)
	require.NoError(t, err)
	assert.True(t, response.Success, response.ErrorReason)
	assert.NotEmpty(t, response.Transaction)
	assert.Equal(t, testPayer.PublicKey().String(), response.Payer)
	assert.Equal(t, 1, signer.sendCalls)
}
