package svm

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	x402 "github.com/x402-foundation/x402-go"
)

// ExactSvmServer is the resource-server half of the scheme: it prices routes
// in SPL tokens and injects the facilitator's fee payer into the payment
// requirements. It implements x402.SchemeNetworkServer.
type ExactSvmServer struct{}

// NewExactSvmServer creates the server mechanism.
func NewExactSvmServer() *ExactSvmServer {
	return &ExactSvmServer{}
}

// Scheme returns the scheme identifier.
func (s *ExactSvmServer) Scheme() string {
	return SchemeExact
}

// ParsePrice converts a configured price into a base-unit AssetAmount.
// Accepted forms: an AssetAmount (passed through), a number (in the default
// stablecoin), or a string like "$1.00", "0.10 USDC", or "1000000" (base
// units).
func (s *ExactSvmServer) ParsePrice(price x402.Price, network x402.Network) (x402.AssetAmount, error) {
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
		return defaultAssetAmount(strconv.FormatFloat(p, 'f', -1, 64), config)
	case int:
		return defaultAssetAmount(strconv.Itoa(p), config)
	case string:
		return parsePriceString(p, config)
	default:
		return parsePriceString(fmt.Sprintf("%v", price), config)
	}
}

func parsePriceString(price string, config *NetworkConfig) (x402.AssetAmount, error) {
	cleaned := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(price), "$"))
	parts := strings.Fields(cleaned)

	switch len(parts) {
	case 2:
		// "0.10 USDC" style: amount plus token symbol.
		symbol := parts[1]
		if strings.EqualFold(symbol, "USD") {
			symbol = config.DefaultAsset.Symbol
		}
		assetInfo, err := GetAssetInfo(config.CAIP2, symbol)
		if err != nil {
			return x402.AssetAmount{}, err
		}
		amount, err := ParseAmount(parts[0], assetInfo.Decimals)
		if err != nil {
			return x402.AssetAmount{}, fmt.Errorf("failed to parse price: %w", err)
		}
		return x402.AssetAmount{
			Asset:  assetInfo.Address,
			Amount: strconv.FormatUint(amount, 10),
		}, nil
	case 1:
		// A decimal point means a human-readable amount; a bare integer
		// is already base units.
		if strings.Contains(parts[0], ".") {
			return defaultAssetAmount(parts[0], config)
		}
		if _, err := strconv.ParseUint(parts[0], 10, 64); err != nil {
			return x402.AssetAmount{}, fmt.Errorf("invalid price: %q", price)
		}
		return x402.AssetAmount{
			Asset:  config.DefaultAsset.Address,
			Amount: parts[0],
		}, nil
	default:
		return x402.AssetAmount{}, fmt.Errorf("invalid price: %q", price)
	}
}

func defaultAssetAmount(decimal string, config *NetworkConfig) (x402.AssetAmount, error) {
	amount, err := ParseAmount(decimal, config.DefaultAsset.Decimals)
	if err != nil {
		return x402.AssetAmount{}, fmt.Errorf("failed to parse price: %w", err)
	}
	return x402.AssetAmount{
		Asset:  config.DefaultAsset.Address,
		Amount: strconv.FormatUint(amount, 10),
	}, nil
}

// EnhancePaymentRequirements fills in the default asset, normalizes decimal
// amounts to base units, and copies the facilitator's fee payer (plus any
// negotiated extension values) into Extra.
func (s *ExactSvmServer) EnhancePaymentRequirements(
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
		requirements.Amount = strconv.FormatUint(amount, 10)
	}

	if requirements.Extra == nil {
		requirements.Extra = make(map[string]interface{})
	}

	// The facilitator fronts transaction fees; clients must set its address
	// as the transaction fee payer.
	if supportedKind.Extra != nil {
		if feePayer, ok := supportedKind.Extra["feePayer"]; ok {
			requirements.Extra["feePayer"] = feePayer
		}
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
			Amount: strconv.FormatUint(parsed, 10),
		}, nil
	}
}
