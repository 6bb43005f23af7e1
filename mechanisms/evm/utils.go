package evm

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var errMissingAuthorization = errors.New("missing or invalid authorization field")

// IsValidNetwork reports whether the network has a configuration, under
// either its CAIP-2 identifier or its legacy alias.
func IsValidNetwork(network string) bool {
	_, ok := NetworkConfigs[network]
	return ok
}

// GetNetworkConfig returns the configuration for a network.
func GetNetworkConfig(network string) (*NetworkConfig, error) {
	config, ok := NetworkConfigs[network]
	if !ok {
		return nil, fmt.Errorf("unsupported network: %s", network)
	}
	return &config, nil
}

// GetAssetInfo resolves an asset for a network. An empty asset or the
// default asset's address resolves to the default asset; any other address
// is accepted with USDC-like defaults so custom EIP-3009 tokens work when
// the requirements carry name/version in Extra.
func GetAssetInfo(network string, asset string) (*AssetInfo, error) {
	config, err := GetNetworkConfig(network)
	if err != nil {
		return nil, err
	}
	if asset == "" || strings.EqualFold(asset, config.DefaultAsset.Address) {
		info := config.DefaultAsset
		return &info, nil
	}
	if !IsValidAddress(asset) {
		return nil, fmt.Errorf("invalid asset address: %s", asset)
	}
	return &AssetInfo{
		Address:  common.HexToAddress(asset).Hex(),
		Name:     "",
		Version:  "",
		Decimals: DefaultDecimals,
	}, nil
}

// IsValidAddress reports whether s is a well-formed hex address.
func IsValidAddress(s string) bool {
	return common.IsHexAddress(s)
}

// CreateNonce generates a random 32-byte EIP-3009 nonce as 0x-prefixed hex.
func CreateNonce() (string, error) {
	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return "0x" + hex.EncodeToString(nonce), nil
}

// CreateValidityWindow returns validAfter/validBefore for an authorization
// valid from now for the given duration.
func CreateValidityWindow(period time.Duration) (*big.Int, *big.Int) {
	now := time.Now().Unix()
	return big.NewInt(now), big.NewInt(now + int64(period.Seconds()))
}

// BytesToHex encodes bytes as 0x-prefixed hex.
func BytesToHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// HexToBytes decodes 0x-prefixed (or bare) hex.
func HexToBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	return hex.DecodeString(s)
}

// NonceToBytes32 decodes an EIP-3009 nonce, enforcing the 32-byte length.
func NonceToBytes32(nonce string) ([32]byte, error) {
	var out [32]byte
	b, err := HexToBytes(nonce)
	if err != nil {
		return out, fmt.Errorf("invalid nonce: %w", err)
	}
	if len(b) != 32 {
		return out, fmt.Errorf("invalid nonce length: %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}

// ParseAmount converts a decimal amount string ("1.50") into atomic units
// for the given decimal count.
func ParseAmount(amount string, decimals int) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("empty amount")
	}

	whole := amount
	frac := ""
	if idx := strings.Index(amount, "."); idx >= 0 {
		whole = amount[:idx]
		frac = amount[idx+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > decimals {
		return nil, fmt.Errorf("amount %s has more than %d decimal places", amount, decimals)
	}
	frac += strings.Repeat("0", decimals-len(frac))

	result, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", amount)
	}
	return result, nil
}

// FormatAmount converts atomic units back into a decimal string, trimming
// trailing zeros.
func FormatAmount(amount *big.Int, decimals int) string {
	s := amount.String()
	if decimals == 0 {
		return s
	}
	negative := strings.HasPrefix(s, "-")
	if negative {
		s = s[1:]
	}
	for len(s) <= decimals {
		s = "0" + s
	}
	whole := s[:len(s)-decimals]
	frac := strings.TrimRight(s[len(s)-decimals:], "0")
	out := whole
	if frac != "" {
		out += "." + frac
	}
	if negative {
		out = "-" + out
	}
	return out
}

// eip3009Types is the EIP-712 type set for TransferWithAuthorization.
func eip3009Types() map[string][]TypedDataField {
	return map[string][]TypedDataField{
		"EIP712Domain": {
			{Name: "name", Type: "string"},
			{Name: "version", Type: "string"},
			{Name: "chainId", Type: "uint256"},
			{Name: "verifyingContract", Type: "address"},
		},
		"TransferWithAuthorization": {
			{Name: "from", Type: "address"},
			{Name: "to", Type: "address"},
			{Name: "value", Type: "uint256"},
			{Name: "validAfter", Type: "uint256"},
			{Name: "validBefore", Type: "uint256"},
			{Name: "nonce", Type: "bytes32"},
		},
	}
}
