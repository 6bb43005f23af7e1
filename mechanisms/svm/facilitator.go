package svm

import (
	"context"
	"fmt"
	"strconv"

	solana "github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/token"

	x402 "github.com/x402-foundation/x402-go"
)

// ExactSvmFacilitator verifies and settles exact SPL token payments. It
// co-signs client transactions as the fee payer, so clients need no SOL.
type ExactSvmFacilitator struct {
	signer FacilitatorSvmSigner
}

// NewExactSvmFacilitator creates a facilitator mechanism backed by the given
// signer.
func NewExactSvmFacilitator(signer FacilitatorSvmSigner) *ExactSvmFacilitator {
	return &ExactSvmFacilitator{signer: signer}
}

// Scheme returns the scheme identifier.
func (f *ExactSvmFacilitator) Scheme() string {
	return SchemeExact
}

// CaipFamily returns the network family pattern.
func (f *ExactSvmFacilitator) CaipFamily() string {
	return CaipFamilySvm
}

// GetExtra advertises the fee payer address clients must set on their
// transactions.
func (f *ExactSvmFacilitator) GetExtra(network x402.Network) map[string]interface{} {
	addresses := f.signer.GetAddresses(network)
	if len(addresses) == 0 {
		return nil
	}
	return map[string]interface{}{
		"feePayer": addresses[0].String(),
	}
}

// GetSigners returns the facilitator's fee payer addresses for the network.
func (f *ExactSvmFacilitator) GetSigners(network x402.Network) []string {
	addresses := f.signer.GetAddresses(network)
	signers := make([]string, len(addresses))
	for i, address := range addresses {
		signers[i] = address.String()
	}
	return signers
}

// Verify checks a payment payload against requirements without broadcasting.
func (f *ExactSvmFacilitator) Verify(
	ctx context.Context,
	payload x402.PaymentPayload,
	requirements x402.PaymentRequirements,
) (x402.VerifyResponse, error) {
	if payload.X402Version != 2 {
		return invalid(fmt.Sprintf("unsupported x402 version: %d", payload.X402Version)), nil
	}
	if payload.Accepted.Scheme != SchemeExact {
		return invalid(ErrInvalidScheme), nil
	}
	if payload.Accepted.Network != requirements.Network {
		return invalid(ErrInvalidNetwork), nil
	}

	svmPayload, err := PayloadFromMap(payload.Payload)
	if err != nil {
		return invalid(fmt.Sprintf("%s: %v", ErrInvalidTransaction, err)), nil
	}

	return f.VerifyTransaction(ctx, svmPayload, requirements)
}

// VerifyTransaction decodes the payment transaction, validates its
// instruction layout, co-signs it as fee payer and simulates it with
// signature verification enabled. Shared by the v1 subpackage.
func (f *ExactSvmFacilitator) VerifyTransaction(
	ctx context.Context,
	svmPayload *ExactSvmPayload,
	requirements x402.PaymentRequirements,
) (x402.VerifyResponse, error) {
	feePayer, response, ok := f.requireFeePayer(requirements)
	if !ok {
		return response, nil
	}

	tx, err := DecodeTransaction(svmPayload.Transaction)
	if err != nil {
		return invalid(fmt.Sprintf("%s: %v", ErrInvalidTransaction, err)), nil
	}

	payer, reason := validatePaymentTransaction(tx, feePayer.String(), requirements)
	if reason != "" {
		return invalid(reason), nil
	}

	if err := f.signer.SignTransaction(ctx, tx, feePayer, requirements.Network); err != nil {
		return x402.VerifyResponse{}, fmt.Errorf("failed to sign as fee payer: %w", err)
	}
	if err := f.signer.SimulateTransaction(ctx, tx, requirements.Network); err != nil {
		return invalid(fmt.Sprintf("%s: %v", ErrSimulationFailed, err)), nil
	}

	return x402.VerifyResponse{IsValid: true, Payer: payer}, nil
}

// Settle verifies the payment, then broadcasts the transaction and waits for
// confirmation.
func (f *ExactSvmFacilitator) Settle(
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

	svmPayload, err := PayloadFromMap(payload.Payload)
	if err != nil {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: fmt.Sprintf("%s: %v", ErrInvalidTransaction, err),
			Network:     requirements.Network,
		}, nil
	}

	response, err := f.SettleTransaction(ctx, svmPayload, requirements)
	if err != nil {
		return x402.SettleResponse{}, err
	}
	response.Payer = verifyResponse.Payer
	return response, nil
}

// SettleTransaction co-signs and broadcasts the payment transaction, then
// polls for confirmation. Shared by the v1 subpackage.
func (f *ExactSvmFacilitator) SettleTransaction(
	ctx context.Context,
	svmPayload *ExactSvmPayload,
	requirements x402.PaymentRequirements,
) (x402.SettleResponse, error) {
	feePayer, verifyResponse, ok := f.requireFeePayer(requirements)
	if !ok {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: verifyResponse.InvalidReason,
			Network:     requirements.Network,
		}, nil
	}

	tx, err := DecodeTransaction(svmPayload.Transaction)
	if err != nil {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: fmt.Sprintf("%s: %v", ErrInvalidTransaction, err),
			Network:     requirements.Network,
		}, nil
	}

	if err := f.signer.SignTransaction(ctx, tx, feePayer, requirements.Network); err != nil {
		return x402.SettleResponse{}, fmt.Errorf("failed to sign as fee payer: %w", err)
	}

	signature, err := f.signer.SendTransaction(ctx, tx, requirements.Network)
	if err != nil {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: fmt.Sprintf("failed to broadcast transaction: %v", err),
			Network:     requirements.Network,
		}, nil
	}

	if err := f.signer.ConfirmTransaction(ctx, signature, requirements.Network); err != nil {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: fmt.Sprintf("transaction not confirmed: %v", err),
			Transaction: signature.String(),
			Network:     requirements.Network,
		}, nil
	}

	return x402.SettleResponse{
		Success:     true,
		Transaction: signature.String(),
		Network:     requirements.Network,
	}, nil
}

func (f *ExactSvmFacilitator) requireFeePayer(requirements x402.PaymentRequirements) (solana.PublicKey, x402.VerifyResponse, bool) {
	raw, ok := requirements.Extra["feePayer"].(string)
	if !ok || raw == "" {
		return solana.PublicKey{}, invalid(ErrMissingFeePayer), false
	}
	feePayer, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, invalid(fmt.Sprintf("%s: %v", ErrMissingFeePayer, err)), false
	}
	return feePayer, x402.VerifyResponse{}, true
}

// validatePaymentTransaction checks the instruction layout and returns the
// paying authority, or a failure reason. Swig smart-wallet transactions are
// flattened before validation.
func validatePaymentTransaction(tx *solana.Transaction, feePayer string, requirements x402.PaymentRequirements) (string, string) {
	instructions := tx.Message.Instructions
	if IsSwigTransaction(tx) {
		parsed, err := ParseSwigTransaction(tx)
		if err != nil {
			return "", fmt.Sprintf("%s: %v", ErrInvalidTransaction, err)
		}
		instructions = parsed.Instructions
	}

	if len(instructions) < MinPaymentInstructions || len(instructions) > MaxPaymentInstructions {
		return "", fmt.Sprintf("%s: got %d, want %d to %d",
			ErrInstructionCount, len(instructions), MinPaymentInstructions, MaxPaymentInstructions)
	}

	if reason := verifyComputeLimitInstruction(tx, instructions[0]); reason != "" {
		return "", reason
	}
	if reason := verifyComputePriceInstruction(tx, instructions[1]); reason != "" {
		return "", reason
	}

	memoProgram := solana.MustPublicKeyFromBase58(MemoProgramAddress)
	payer := ""
	for _, instruction := range instructions[2:] {
		if int(instruction.ProgramIDIndex) >= len(tx.Message.AccountKeys) {
			return "", ErrInvalidTransaction
		}
		programID := tx.Message.AccountKeys[instruction.ProgramIDIndex]
		switch {
		case programID.Equals(solana.TokenProgramID) || programID.Equals(solana.Token2022ProgramID):
			if payer != "" {
				return "", ErrUnexpectedInstruction
			}
			authority, reason := verifyTransferInstruction(tx, instruction, feePayer, requirements)
			if reason != "" {
				return "", reason
			}
			payer = authority
		case programID.Equals(memoProgram):
			// Uniqueness memo, nothing to validate.
		default:
			return "", fmt.Sprintf("%s: program %s", ErrUnexpectedInstruction, programID)
		}
	}
	if payer == "" {
		return "", ErrNoTransferInstruction
	}
	return payer, ""
}

func verifyComputeLimitInstruction(tx *solana.Transaction, instruction solana.CompiledInstruction) string {
	if !isComputeBudgetInstruction(tx, instruction, ComputeUnitLimitDiscriminator) {
		return ErrComputeLimitInstruction
	}
	return ""
}

func verifyComputePriceInstruction(tx *solana.Transaction, instruction solana.CompiledInstruction) string {
	if !isComputeBudgetInstruction(tx, instruction, ComputeUnitPriceDiscriminator) {
		return ErrComputePriceInstruction
	}
	accounts, err := instruction.ResolveInstructionAccounts(&tx.Message)
	if err != nil {
		return ErrComputePriceInstruction
	}
	decoded, err := computebudget.DecodeInstruction(accounts, instruction.Data)
	if err != nil {
		return ErrComputePriceInstruction
	}
	price, ok := decoded.Impl.(*computebudget.SetComputeUnitPrice)
	if !ok {
		return ErrComputePriceInstruction
	}
	// MicroLamports per CU against the cap in lamports per CU.
	if price.MicroLamports > MaxComputeUnitPrice*1_000_000 {
		return ErrComputePriceTooHigh
	}
	return ""
}

func isComputeBudgetInstruction(tx *solana.Transaction, instruction solana.CompiledInstruction, discriminator byte) bool {
	if int(instruction.ProgramIDIndex) >= len(tx.Message.AccountKeys) {
		return false
	}
	if !tx.Message.AccountKeys[instruction.ProgramIDIndex].Equals(solana.ComputeBudget) {
		return false
	}
	return len(instruction.Data) > 0 && instruction.Data[0] == discriminator
}

// verifyTransferInstruction validates the TransferChecked against the
// requirements and returns the transfer authority.
func verifyTransferInstruction(
	tx *solana.Transaction,
	instruction solana.CompiledInstruction,
	feePayer string,
	requirements x402.PaymentRequirements,
) (string, string) {
	accounts, err := instruction.ResolveInstructionAccounts(&tx.Message)
	if err != nil {
		return "", ErrNoTransferInstruction
	}
	decoded, err := token.DecodeInstruction(accounts, instruction.Data)
	if err != nil {
		return "", ErrNoTransferInstruction
	}
	transfer, ok := decoded.Impl.(*token.TransferChecked)
	if !ok {
		return "", ErrNoTransferInstruction
	}
	if len(accounts) < 4 {
		return "", ErrNoTransferInstruction
	}

	// TransferChecked accounts: source, mint, destination, authority.
	mint := accounts[1].PublicKey
	destination := accounts[2].PublicKey
	authority := accounts[3].PublicKey

	if authority.String() == feePayer {
		return "", ErrFeePayerIsAuthority
	}

	assetInfo, err := GetAssetInfo(string(requirements.Network), requirements.Asset)
	if err != nil {
		return "", fmt.Sprintf("%s: %v", ErrMintMismatch, err)
	}
	if mint.String() != assetInfo.Address {
		return "", ErrMintMismatch
	}

	payTo, err := solana.PublicKeyFromBase58(requirements.PayTo)
	if err != nil {
		return "", fmt.Sprintf("%s: %v", ErrRecipientMismatch, err)
	}
	expectedDestination, _, err := solana.FindAssociatedTokenAddress(payTo, mint)
	if err != nil {
		return "", fmt.Sprintf("%s: %v", ErrRecipientMismatch, err)
	}
	if !destination.Equals(expectedDestination) {
		return "", ErrRecipientMismatch
	}

	required, err := strconv.ParseUint(requirements.Amount, 10, 64)
	if err != nil {
		return "", fmt.Sprintf("invalid required amount %q", requirements.Amount)
	}
	if transfer.Amount == nil || *transfer.Amount < required {
		return "", ErrInsufficientAmount
	}

	return authority.String(), ""
}

func invalid(reason string) x402.VerifyResponse {
	return x402.VerifyResponse{IsValid: false, InvalidReason: reason}
}
