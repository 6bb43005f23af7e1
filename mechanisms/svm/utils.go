package svm

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"
)

// IsValidNetwork reports whether the network is a known CAIP-2 identifier or
// legacy alias.
func IsValidNetwork(network string) bool {
	if _, ok := NetworkConfigs[network]; ok {
		return true
	}
	_, ok := V1ToV2NetworkMap[network]
	return ok
}

// GetNetworkConfig returns the configuration for a CAIP-2 network identifier
// or legacy alias.
func GetNetworkConfig(network string) (*NetworkConfig, error) {
	if caip2, ok := V1ToV2NetworkMap[network]; ok {
		network = caip2
	}
	config, ok := NetworkConfigs[network]
	if !ok {
		return nil, fmt.Errorf("unsupported network: %s", network)
	}
	return &config, nil
}

// GetAssetInfo resolves an asset reference (mint address, symbol, or empty
// for the network default) to asset info. Unknown mints get the default
// decimal count; callers that need exact decimals read the mint account.
func GetAssetInfo(network string, asset string) (*AssetInfo, error) {
	config, err := GetNetworkConfig(network)
	if err != nil {
		return nil, err
	}
	defaultAsset := config.DefaultAsset
	if asset == "" || asset == defaultAsset.Address || strings.EqualFold(asset, defaultAsset.Symbol) {
		return &defaultAsset, nil
	}
	if _, err := solana.PublicKeyFromBase58(asset); err != nil {
		return nil, fmt.Errorf("unsupported asset %q on network %s", asset, network)
	}
	return &AssetInfo{Address: asset, Decimals: defaultAsset.Decimals}, nil
}

// ParseAmount converts a decimal amount string ("0.10") to base units.
func ParseAmount(amount string, decimals uint8) (uint64, error) {
	parts := strings.SplitN(amount, ".", 2)
	whole := parts[0]
	frac := ""
	if len(parts) == 2 {
		frac = parts[1]
	}
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("invalid amount: %s", amount)
	}
	if len(frac) > int(decimals) {
		return 0, fmt.Errorf("amount %s has more than %d decimal places", amount, decimals)
	}
	frac += strings.Repeat("0", int(decimals)-len(frac))
	if whole == "" {
		whole = "0"
	}
	value, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok || value.Sign() < 0 {
		return 0, fmt.Errorf("invalid amount: %s", amount)
	}
	if !value.IsUint64() {
		return 0, fmt.Errorf("amount %s overflows uint64", amount)
	}
	return value.Uint64(), nil
}

// EncodeTransaction serializes a transaction to the base64 wire form.
func EncodeTransaction(tx *solana.Transaction) (string, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeTransaction parses a base64-encoded transaction.
func DecodeTransaction(encoded string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 transaction: %w", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}
	return tx, nil
}

// NewMemoInstruction builds a memo instruction carrying 16 random bytes in
// hex, making every payment transaction unique even for identical
// requirements.
func NewMemoInstruction() (solana.Instruction, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate memo nonce: %w", err)
	}
	memoProgram := solana.MustPublicKeyFromBase58(MemoProgramAddress)
	return solana.NewInstruction(memoProgram, solana.AccountMetaSlice{}, []byte(hex.EncodeToString(nonce))), nil
}
