package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	x402 "github.com/x402-foundation/x402-go"
)

// ExactEvmFacilitator verifies and settles EIP-3009 payments. It implements
// x402.SchemeNetworkFacilitator for v2 CAIP-2 networks; the v1 subpackage
// wraps it for legacy alias networks.
type ExactEvmFacilitator struct {
	signer FacilitatorEvmSigner
}

// NewExactEvmFacilitator creates a facilitator mechanism backed by the given
// signer.
func NewExactEvmFacilitator(signer FacilitatorEvmSigner) *ExactEvmFacilitator {
	return &ExactEvmFacilitator{signer: signer}
}

// Scheme returns the scheme identifier.
func (f *ExactEvmFacilitator) Scheme() string {
	return SchemeExact
}

// CaipFamily returns the network family pattern this mechanism serves.
func (f *ExactEvmFacilitator) CaipFamily() string {
	return CaipFamilyEvm
}

// GetExtra returns nil: the exact EVM scheme advertises no per-network
// metadata in supported kinds.
func (f *ExactEvmFacilitator) GetExtra(network x402.Network) map[string]interface{} {
	return nil
}

// GetSigners returns the facilitator's settlement addresses.
func (f *ExactEvmFacilitator) GetSigners(network x402.Network) []string {
	return f.signer.GetAddresses()
}

// Verify checks a v2 payment payload against requirements without touching
// chain state beyond reads.
func (f *ExactEvmFacilitator) Verify(
	ctx context.Context,
	payload x402.PaymentPayload,
	requirements x402.PaymentRequirements,
) (x402.VerifyResponse, error) {
	if payload.X402Version != 2 {
		return invalid(fmt.Sprintf("unsupported x402 version: %d", payload.X402Version)), nil
	}
	if payload.Accepted.Scheme != SchemeExact {
		return invalid("invalid scheme"), nil
	}
	if payload.Accepted.Network != requirements.Network {
		return invalid("network mismatch"), nil
	}

	evmPayload, err := PayloadFromMap(payload.Payload)
	if err != nil {
		return invalid(fmt.Sprintf("invalid payload: %v", err)), nil
	}

	return f.VerifyAuthorization(ctx, evmPayload, requirements)
}

// VerifyAuthorization runs the scheme checks shared by v1 and v2: recipient,
// amount, validity window, nonce freshness, payer balance, and signature.
func (f *ExactEvmFacilitator) VerifyAuthorization(
	ctx context.Context,
	evmPayload *ExactEIP3009Payload,
	requirements x402.PaymentRequirements,
) (x402.VerifyResponse, error) {
	if evmPayload.Signature == "" {
		return invalid(ErrInvalidSignature), nil
	}

	networkStr := string(requirements.Network)
	config, err := GetNetworkConfig(networkStr)
	if err != nil {
		return x402.VerifyResponse{}, err
	}
	assetInfo, err := GetAssetInfo(networkStr, requirements.Asset)
	if err != nil {
		return x402.VerifyResponse{}, err
	}

	if !strings.EqualFold(evmPayload.Authorization.To, requirements.PayTo) {
		return invalid(ErrRecipientMismatch), nil
	}

	authValue, ok := new(big.Int).SetString(evmPayload.Authorization.Value, 10)
	if !ok {
		return invalid(ErrInvalidAuthorization), nil
	}
	requiredValue, ok := new(big.Int).SetString(requirements.Amount, 10)
	if !ok {
		return invalid(fmt.Sprintf("invalid required amount: %s", requirements.Amount)), nil
	}
	if authValue.Cmp(requiredValue) < 0 {
		return invalid(ErrInsufficientAmount), nil
	}

	if reason := checkValidityWindow(evmPayload.Authorization); reason != "" {
		return invalid(reason), nil
	}

	nonceUsed, err := f.checkNonceUsed(ctx, evmPayload.Authorization.From, evmPayload.Authorization.Nonce, assetInfo.Address)
	if err != nil {
		return x402.VerifyResponse{}, fmt.Errorf("failed to check nonce: %w", err)
	}
	if nonceUsed {
		return invalid(ErrNonceAlreadyUsed), nil
	}

	balance, err := f.signer.GetBalance(ctx, evmPayload.Authorization.From, assetInfo.Address)
	if err != nil {
		return x402.VerifyResponse{}, fmt.Errorf("failed to get balance: %w", err)
	}
	if balance.Cmp(authValue) < 0 {
		return invalid(ErrInsufficientBalance), nil
	}

	tokenName, tokenVersion := tokenDomain(assetInfo, requirements.Extra)

	signatureBytes, err := HexToBytes(evmPayload.Signature)
	if err != nil {
		return invalid(ErrInvalidSignature), nil
	}

	valid, err := f.verifySignature(ctx, evmPayload.Authorization, signatureBytes, config.ChainID, assetInfo.Address, tokenName, tokenVersion)
	if err != nil {
		return x402.VerifyResponse{}, fmt.Errorf("failed to verify signature: %w", err)
	}
	if !valid {
		return invalid(ErrInvalidSignature), nil
	}

	return x402.VerifyResponse{
		IsValid: true,
		Payer:   evmPayload.Authorization.From,
	}, nil
}

// Settle verifies the payment and then submits transferWithAuthorization.
func (f *ExactEvmFacilitator) Settle(
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

	evmPayload, err := PayloadFromMap(payload.Payload)
	if err != nil {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: fmt.Sprintf("invalid payload: %v", err),
			Network:     requirements.Network,
		}, nil
	}

	return f.SettleAuthorization(ctx, evmPayload, requirements)
}

// SettleAuthorization submits the transfer on chain and waits for the
// receipt. Callers are expected to have verified the authorization first.
func (f *ExactEvmFacilitator) SettleAuthorization(
	ctx context.Context,
	evmPayload *ExactEIP3009Payload,
	requirements x402.PaymentRequirements,
) (x402.SettleResponse, error) {
	networkStr := string(requirements.Network)
	assetInfo, err := GetAssetInfo(networkStr, requirements.Asset)
	if err != nil {
		return x402.SettleResponse{}, err
	}

	signatureBytes, err := HexToBytes(evmPayload.Signature)
	if err != nil {
		return settleFailure("invalid signature format", requirements.Network), nil
	}
	if len(signatureBytes) != 65 {
		return settleFailure("invalid signature length", requirements.Network), nil
	}

	var r, s [32]byte
	copy(r[:], signatureBytes[0:32])
	copy(s[:], signatureBytes[32:64])
	v := signatureBytes[64]

	value, ok := new(big.Int).SetString(evmPayload.Authorization.Value, 10)
	if !ok {
		return settleFailure(ErrInvalidAuthorization, requirements.Network), nil
	}
	validAfter, _ := new(big.Int).SetString(evmPayload.Authorization.ValidAfter, 10)
	validBefore, _ := new(big.Int).SetString(evmPayload.Authorization.ValidBefore, 10)
	nonce, err := NonceToBytes32(evmPayload.Authorization.Nonce)
	if err != nil {
		return settleFailure(ErrInvalidAuthorization, requirements.Network), nil
	}

	txHash, err := f.signer.WriteContract(
		ctx,
		assetInfo.Address,
		TransferWithAuthorizationABI,
		FunctionTransferWithAuthorization,
		evmPayload.Authorization.From,
		evmPayload.Authorization.To,
		value,
		validAfter,
		validBefore,
		nonce,
		v,
		r,
		s,
	)
	if err != nil {
		return settleFailure(fmt.Sprintf("failed to execute transfer: %v", err), requirements.Network), nil
	}

	receipt, err := f.signer.WaitForTransactionReceipt(ctx, txHash)
	if err != nil {
		return settleFailure(fmt.Sprintf("failed to get receipt: %v", err), requirements.Network), nil
	}
	if receipt.Status != TxStatusSuccess {
		resp := settleFailure("transaction reverted", requirements.Network)
		resp.Transaction = txHash
		return resp, nil
	}

	return x402.SettleResponse{
		Success:     true,
		Transaction: txHash,
		Network:     requirements.Network,
		Payer:       evmPayload.Authorization.From,
	}, nil
}

// checkNonceUsed reads authorizationState on the token contract.
func (f *ExactEvmFacilitator) checkNonceUsed(ctx context.Context, from string, nonce string, tokenAddress string) (bool, error) {
	nonceBytes, err := NonceToBytes32(nonce)
	if err != nil {
		return false, err
	}

	result, err := f.signer.ReadContract(
		ctx,
		tokenAddress,
		AuthorizationStateABI,
		FunctionAuthorizationState,
		from,
		nonceBytes,
	)
	if err != nil {
		return false, err
	}

	used, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("unexpected result type from authorizationState")
	}
	return used, nil
}

// verifySignature verifies the EIP-712 signature. 65-byte signatures take
// the EOA ecrecover path through the signer; longer or wrapped signatures
// go through the ERC-6492 universal validator, which also covers deployed
// EIP-1271 wallets.
func (f *ExactEvmFacilitator) verifySignature(
	ctx context.Context,
	authorization ExactEIP3009Authorization,
	signature []byte,
	chainID *big.Int,
	verifyingContract string,
	tokenName string,
	tokenVersion string,
) (bool, error) {
	if len(signature) != 65 || isERC6492Wrapped(signature) {
		digest, err := HashEIP3009Authorization(authorization, chainID, verifyingContract, tokenName, tokenVersion)
		if err != nil {
			return false, err
		}
		var hash [32]byte
		copy(hash[:], digest)
		return VerifyERC6492Signature(ctx, f.signer, authorization.From, hash, signature)
	}

	domain := TypedDataDomain{
		Name:              tokenName,
		Version:           tokenVersion,
		ChainID:           chainID,
		VerifyingContract: verifyingContract,
	}
	message, err := eip3009Message(authorization)
	if err != nil {
		return false, err
	}
	return f.signer.VerifyTypedData(ctx, authorization.From, domain, eip3009Types(), "TransferWithAuthorization", message, signature)
}

// checkValidityWindow enforces the authorization's time bounds, with a small
// buffer so a payment does not expire between verify and settle.
func checkValidityWindow(authorization ExactEIP3009Authorization) string {
	now := time.Now().Unix()

	validAfter, ok := new(big.Int).SetString(authorization.ValidAfter, 10)
	if !ok {
		return ErrInvalidAuthorization
	}
	validBefore, ok := new(big.Int).SetString(authorization.ValidBefore, 10)
	if !ok {
		return ErrInvalidAuthorization
	}

	if validAfter.Cmp(big.NewInt(now)) > 0 {
		return ErrAuthorizationNotYet
	}
	if validBefore.Cmp(big.NewInt(now+6)) < 0 {
		return ErrAuthorizationExpired
	}
	return ""
}

// isERC6492Wrapped reports whether the signature carries the ERC-6492 magic
// suffix.
func isERC6492Wrapped(signature []byte) bool {
	magic, _ := HexToBytes(ERC6492MagicValue)
	if len(signature) < len(magic) {
		return false
	}
	tail := signature[len(signature)-len(magic):]
	for i := range magic {
		if tail[i] != magic[i] {
			return false
		}
	}
	return true
}

func invalid(reason string) x402.VerifyResponse {
	return x402.VerifyResponse{IsValid: false, InvalidReason: reason}
}

func settleFailure(reason string, network x402.Network) x402.SettleResponse {
	return x402.SettleResponse{Success: false, ErrorReason: reason, Network: network}
}
