package hypercore

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"

	x402 "github.com/x402-foundation/x402-go"
)

var _ x402.SchemeNetworkServer = (*ExactHypercoreServer)(nil)

// ExactHypercoreServer is the resource-server half of the scheme: it prices
// routes in USDH by default and runs caller-registered money parsers first.
type ExactHypercoreServer struct {
	moneyParsers []x402.MoneyParser
}

// NewExactHypercoreServer creates the server mechanism.
func NewExactHypercoreServer() *ExactHypercoreServer {
	return &ExactHypercoreServer{}
}

// RegisterMoneyParser adds a parser tried before the default USDH
// conversion. Parsers returning (nil, nil) pass to the next one.
func (s *ExactHypercoreServer) RegisterMoneyParser(parser x402.MoneyParser) *ExactHypercoreServer {
	s.moneyParsers = append(s.moneyParsers, parser)
	return s
}

// Scheme returns the scheme identifier.
func (s *ExactHypercoreServer) Scheme() string {
	return SchemeExact
}

// ParsePrice converts a configured price into a base-unit AssetAmount,
// consulting registered money parsers before the default USDH conversion.
func (s *ExactHypercoreServer) ParsePrice(price x402.Price, network x402.Network) (x402.AssetAmount, error) {
	if assetAmount, ok := price.(x402.AssetAmount); ok {
		if assetAmount.Asset == "" {
			return x402.AssetAmount{}, fmt.Errorf("asset required for AssetAmount on %s", network)
		}
		return assetAmount, nil
	}
	if assetAmount, ok := price.(*x402.AssetAmount); ok {
		if assetAmount.Asset == "" {
			return x402.AssetAmount{}, fmt.Errorf("asset required for AssetAmount on %s", network)
		}
		return *assetAmount, nil
	}

	decimalAmount, err := parseMoneyToDecimal(price)
	if err != nil {
		return x402.AssetAmount{}, err
	}

	for _, parser := range s.moneyParsers {
		result, err := parser(decimalAmount, string(network))
		if err == nil && result != nil {
			return *result, nil
		}
	}

	return defaultMoneyConversion(decimalAmount, string(network))
}

var priceDigits = regexp.MustCompile(`[\d.]+`)

func parseMoneyToDecimal(price x402.Price) (float64, error) {
	priceStr := fmt.Sprintf("%v", price)
	matched := priceDigits.FindString(priceStr)
	if matched == "" {
		return 0, fmt.Errorf("invalid price format: %s", priceStr)
	}
	return strconv.ParseFloat(matched, 64)
}

func defaultMoneyConversion(amount float64, network string) (x402.AssetAmount, error) {
	config, err := GetNetworkConfig(network)
	if err != nil {
		return x402.AssetAmount{}, fmt.Errorf("no default asset for network %s", network)
	}

	asset := config.DefaultAsset
	return x402.AssetAmount{
		Amount: strconv.FormatInt(int64(amount*math.Pow10(asset.Decimals)), 10),
		Asset:  asset.Token,
		Extra: map[string]interface{}{
			"name": asset.Name,
		},
	}, nil
}

// EnhancePaymentRequirements fills in the default asset and the signing
// metadata clients need.
func (s *ExactHypercoreServer) EnhancePaymentRequirements(
	ctx context.Context,
	requirements x402.PaymentRequirements,
	supportedKind x402.SupportedKind,
	facilitatorExtensions []string,
) (x402.PaymentRequirements, error) {
	config, err := GetNetworkConfig(string(requirements.Network))
	if err != nil {
		return requirements, err
	}

	if requirements.Asset == "" {
		requirements.Asset = config.DefaultAsset.Token
	}

	if requirements.Extra == nil {
		requirements.Extra = make(map[string]interface{})
	}
	requirements.Extra["signatureChainId"] = SignatureChainID
	requirements.Extra["isMainnet"] = supportedKind.Network == NetworkMainnet

	if supportedKind.Extra != nil {
		for _, key := range facilitatorExtensions {
			if val, ok := supportedKind.Extra[key]; ok {
				requirements.Extra[key] = val
			}
		}
	}

	return requirements, nil
}
