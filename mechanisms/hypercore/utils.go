package hypercore

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// GetNetworkConfig returns the configuration for a Hypercore network.
func GetNetworkConfig(network string) (*NetworkConfig, error) {
	config, ok := NetworkConfigs[network]
	if !ok {
		return nil, fmt.Errorf("unsupported network: %s", network)
	}
	return &config, nil
}

// FormatAmount renders a base-unit amount as the fixed-precision decimal
// string sendAsset actions carry.
func FormatAmount(amount string, decimals int) (string, error) {
	amountInt, err := strconv.ParseInt(amount, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid amount: %w", err)
	}
	return fmt.Sprintf("%.*f", decimals, float64(amountInt)/math.Pow10(decimals)), nil
}

// ParseAmount converts a decimal amount string (optionally "$"-prefixed) to
// base units.
func ParseAmount(amount string, decimals int) (string, error) {
	cleaned := strings.TrimSpace(strings.TrimPrefix(amount, "$"))
	amountFloat, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return "", fmt.Errorf("invalid amount: %w", err)
	}
	if amountFloat < 0 {
		return "", fmt.Errorf("amount cannot be negative: %s", amount)
	}
	return strconv.FormatInt(int64(math.Floor(amountFloat*math.Pow10(decimals))), 10), nil
}

// ParseAmountToInteger converts a decimal amount string to a base-unit
// integer.
func ParseAmountToInteger(amount string, decimals int) (*big.Int, error) {
	amountFloat, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}
	return big.NewInt(int64(math.Floor(amountFloat * math.Pow10(decimals)))), nil
}

// IsNonceFresh reports whether a millisecond-timestamp nonce is recent
// enough to accept. Future nonces are rejected.
func IsNonceFresh(nonce int64, maxAge time.Duration) bool {
	ageMs := time.Now().UnixMilli() - nonce
	return ageMs >= 0 && time.Duration(ageMs)*time.Millisecond <= maxAge
}

// NormalizeAddress lowercases an EVM address for comparison; Hyperliquid
// stores destinations lowercased.
func NormalizeAddress(address string) string {
	return strings.ToLower(address)
}
