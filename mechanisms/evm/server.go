package evm

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	x402 "github.com/x402-foundation/x402-go"
)

// ExactEvmServer is the resource-server half of the scheme: it prices routes
// in the network's default stablecoin and injects the EIP-712 domain fields
// clients need to sign. It implements x402.SchemeNetworkServer.
type ExactEvmServer struct{}

// NewExactEvmServer creates the server mechanism.
func NewExactEvmServer() *ExactEvmServer {
	return &ExactEvmServer{}
}

// Scheme returns the scheme identifier.
func (s *ExactEvmServer) Scheme() string {
	return SchemeExact
}

// ParsePrice converts a configured price into an atomic-unit AssetAmount.
// Accepted forms: an AssetAmount (passed through), a number (USD), or a
// string like "$1.00", "1.00 USD", "0.10 USDC", or "1000000" (atomic units).
func (s *ExactEvmServer) ParsePrice(price x402.Price, network x402.Network) (x402.AssetAmount, error) {
	config, err := GetNetworkConfig(string(network))
	if err != nil {
		return x402.AssetAmount{}, err
	}

	switch p := price.(type) {
	case x402.AssetAmount:
		return p, nil
	case *x402.AssetAmount:
		return *p, nil
	case float64:
		return usdAmount(strconv.FormatFloat(p, 'f', -1, 64), config)
	case int:
		return usdAmount(strconv.Itoa(p), config)
	case string:
		return parsePriceString(p, config)
	default:
		return parsePriceString(fmt.Sprintf("%v", price), config)
	}
}

func parsePriceString(price string, config *NetworkConfig) (x402.AssetAmount, error) {
	cleaned := strings.TrimSpace(price)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.TrimSuffix(cleaned, " USD")
	cleaned = strings.TrimSuffix(cleaned, " USDC")
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		return x402.AssetAmount{}, fmt.Errorf("invalid price: %q", price)
	}

	// A decimal point means a human-readable amount; a bare integer is
	// already atomic units.
	if strings.Contains(cleaned, ".") {
		return usdAmount(cleaned, config)
	}

	amount, ok := new(big.Int).SetString(cleaned, 10)
	if !ok {
		return x402.AssetAmount{}, fmt.Errorf("invalid price: %q", price)
	}
	return x402.AssetAmount{
		Asset:  config.DefaultAsset.Address,
		Amount: amount.String(),
	}, nil
}

func usdAmount(decimal string, config *NetworkConfig) (x402.AssetAmount, error) {
	amount, err := ParseAmount(decimal, config.DefaultAsset.Decimals)
	if err != nil {
		return x402.AssetAmount{}, fmt.Errorf("failed to parse price: %w", err)
	}
	return x402.AssetAmount{
		Asset:  config.DefaultAsset.Address,
		Amount: amount.String(),
	}, nil
}

// EnhancePaymentRequirements fills in the default asset, normalizes decimal
// amounts to atomic units, and injects the token's EIP-712 name/version into
// Extra for the client to sign against.
func (s *ExactEvmServer) EnhancePaymentRequirements(
	ctx context.Context,
	requirements x402.PaymentRequirements,
	supportedKind x402.SupportedKind,
	facilitatorExtensions []string,
) (x402.PaymentRequirements, error) {
	networkStr := string(requirements.Network)
	config, err := GetNetworkConfig(networkStr)
	if err != nil {
		return requirements, err
	}

	var assetInfo *AssetInfo
	if requirements.Asset != "" {
		assetInfo, err = GetAssetInfo(networkStr, requirements.Asset)
		if err != nil {
			return requirements, err
		}
	} else {
		info := config.DefaultAsset
		assetInfo = &info
		requirements.Asset = assetInfo.Address
	}

	if requirements.Amount != "" && strings.Contains(requirements.Amount, ".") {
		amount, err := ParseAmount(requirements.Amount, assetInfo.Decimals)
		if err != nil {
			return requirements, fmt.Errorf("failed to parse amount: %w", err)
		}
		requirements.Amount = amount.String()
	}

	if requirements.Extra == nil {
		requirements.Extra = make(map[string]interface{})
	}

	// Keep caller-supplied domain values; they may target a non-default
	// EIP-3009 token.
	if _, ok := requirements.Extra["name"]; !ok && assetInfo.Name != "" {
		requirements.Extra["name"] = assetInfo.Name
	}
	if _, ok := requirements.Extra["version"]; !ok && assetInfo.Version != "" {
		requirements.Extra["version"] = assetInfo.Version
	}

	if supportedKind.Extra != nil {
		for _, key := range facilitatorExtensions {
			if val, ok := supportedKind.Extra[key]; ok {
				requirements.Extra[key] = val
			}
		}
	}

	return requirements, nil
}

// USDCMoneyParser returns a MoneyParser that converts USD float amounts into
// the network's default stablecoin, for use with money-parser chains.
func USDCMoneyParser() x402.MoneyParser {
	return func(amount float64, network string) (*x402.AssetAmount, error) {
		config, err := GetNetworkConfig(network)
		if err != nil {
			return nil, err
		}
		parsed, err := ParseAmount(strconv.FormatFloat(amount, 'f', -1, 64), config.DefaultAsset.Decimals)
		if err != nil {
			return nil, err
		}
		return &x402.AssetAmount{
			Asset:  config.DefaultAsset.Address,
			Amount: parsed.String(),
		}, nil
	}
}
