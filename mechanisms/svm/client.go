package svm

import (
	"context"
	"fmt"
	"strconv"

	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"

	x402 "github.com/x402-foundation/x402-go"
)

// ExactSvmClient builds partially signed SPL token payment transactions.
type ExactSvmClient struct {
	signer ClientSvmSigner
	rpcURL string
}

// NewExactSvmClient creates a client mechanism backed by the given signer.
// An optional config may override the network's default RPC endpoint.
func NewExactSvmClient(signer ClientSvmSigner, config ...ClientConfig) *ExactSvmClient {
	client := &ExactSvmClient{signer: signer}
	if len(config) > 0 {
		client.rpcURL = config[0].RPCURL
	}
	return client
}

// Scheme returns the scheme identifier.
func (c *ExactSvmClient) Scheme() string {
	return SchemeExact
}

// CreatePaymentPayload assembles and partially signs a payment transaction:
// compute budget instructions, a TransferChecked moving the required amount
// to the recipient's associated token account, and a random memo. The fee
// payer named in the requirements is left unsigned for the facilitator.
func (c *ExactSvmClient) CreatePaymentPayload(
	ctx context.Context,
	version int,
	requirements x402.PaymentRequirements,
) (x402.PartialPaymentPayload, error) {
	config, err := GetNetworkConfig(string(requirements.Network))
	if err != nil {
		return x402.PartialPaymentPayload{}, err
	}
	rpcURL := c.rpcURL
	if rpcURL == "" {
		rpcURL = config.RPCURL
	}

	amount, err := strconv.ParseUint(requirements.Amount, 10, 64)
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("invalid amount %q: %w", requirements.Amount, err)
	}

	feePayer, err := feePayerFromRequirements(requirements)
	if err != nil {
		return x402.PartialPaymentPayload{}, err
	}

	assetAddress := requirements.Asset
	if assetAddress == "" {
		assetAddress = config.DefaultAsset.Address
	}
	mint, err := solana.PublicKeyFromBase58(assetAddress)
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("invalid asset address %q: %w", assetAddress, err)
	}
	payTo, err := solana.PublicKeyFromBase58(requirements.PayTo)
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("invalid payTo address %q: %w", requirements.PayTo, err)
	}

	rpcClient := rpc.New(rpcURL)

	tokenProgram, decimals, err := resolveMint(ctx, rpcClient, mint)
	if err != nil {
		return x402.PartialPaymentPayload{}, err
	}

	owner := c.signer.Address()
	sourceATA, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("failed to derive source token account: %w", err)
	}
	destATA, _, err := solana.FindAssociatedTokenAddress(payTo, mint)
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("failed to derive destination token account: %w", err)
	}

	blockhash, err := rpcClient.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("failed to fetch recent blockhash: %w", err)
	}

	limitInstruction, err := computebudget.NewSetComputeUnitLimitInstructionBuilder().
		SetUnits(DefaultComputeUnitLimit).
		ValidateAndBuild()
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("failed to build compute unit limit: %w", err)
	}
	priceInstruction, err := computebudget.NewSetComputeUnitPriceInstructionBuilder().
		SetMicroLamports(DefaultComputeUnitPriceMicroLamports).
		ValidateAndBuild()
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("failed to build compute unit price: %w", err)
	}
	transferBuilt, err := token.NewTransferCheckedInstructionBuilder().
		SetAmount(amount).
		SetDecimals(decimals).
		SetSourceAccount(sourceATA).
		SetMintAccount(mint).
		SetDestinationAccount(destATA).
		SetOwnerAccount(owner).
		ValidateAndBuild()
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("failed to build transfer: %w", err)
	}
	var transferInstruction solana.Instruction = transferBuilt
	if tokenProgram.Equals(solana.Token2022ProgramID) {
		// The builder targets the legacy token program; Token-2022 mints
		// use the same instruction layout under the newer program id.
		data, err := transferBuilt.Data()
		if err != nil {
			return x402.PartialPaymentPayload{}, fmt.Errorf("failed to build transfer: %w", err)
		}
		transferInstruction = solana.NewInstruction(solana.Token2022ProgramID, transferBuilt.Accounts(), data)
	}
	memoInstruction, err := NewMemoInstruction()
	if err != nil {
		return x402.PartialPaymentPayload{}, err
	}

	tx, err := solana.NewTransactionBuilder().
		AddInstruction(limitInstruction).
		AddInstruction(priceInstruction).
		AddInstruction(transferInstruction).
		AddInstruction(memoInstruction).
		SetFeePayer(feePayer).
		SetRecentBlockHash(blockhash.Value.Blockhash).
		Build()
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("failed to build transaction: %w", err)
	}

	if err := c.signer.SignTransaction(ctx, tx); err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	encoded, err := EncodeTransaction(tx)
	if err != nil {
		return x402.PartialPaymentPayload{}, err
	}

	svmPayload := &ExactSvmPayload{Transaction: encoded}
	return x402.PartialPaymentPayload{
		X402Version: version,
		Payload:     svmPayload.ToMap(),
	}, nil
}

// resolveMint reads the mint account and returns its owning token program
// and decimal count.
func resolveMint(ctx context.Context, rpcClient *rpc.Client, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	account, err := rpcClient.GetAccountInfo(ctx, mint)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("failed to fetch mint account %s: %w", mint, err)
	}
	if account.Value == nil {
		return solana.PublicKey{}, 0, fmt.Errorf("mint account %s does not exist", mint)
	}
	owner := account.Value.Owner
	if !owner.Equals(solana.TokenProgramID) && !owner.Equals(solana.Token2022ProgramID) {
		return solana.PublicKey{}, 0, fmt.Errorf("account %s is not an SPL token mint", mint)
	}
	var mintData token.Mint
	if err := bin.NewBinDecoder(account.Value.Data.GetBinary()).Decode(&mintData); err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("failed to decode mint account %s: %w", mint, err)
	}
	return owner, mintData.Decimals, nil
}

// feePayerFromRequirements reads the facilitator fee payer advertised in the
// requirements extra.
func feePayerFromRequirements(requirements x402.PaymentRequirements) (solana.PublicKey, error) {
	raw, ok := requirements.Extra["feePayer"].(string)
	if !ok || raw == "" {
		return solana.PublicKey{}, fmt.Errorf("requirements missing extra.feePayer")
	}
	feePayer, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid fee payer %q: %w", raw, err)
	}
	return feePayer, nil
}
