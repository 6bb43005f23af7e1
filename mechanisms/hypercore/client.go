package hypercore

import (
	"context"
	"fmt"
	"time"

	x402 "github.com/x402-foundation/x402-go"
)

// ExactHypercoreClient builds signed sendAsset payment payloads.
type ExactHypercoreClient struct {
	signer HyperliquidSigner
}

// NewExactHypercoreClient creates a client mechanism backed by the given
// signer.
func NewExactHypercoreClient(signer HyperliquidSigner) *ExactHypercoreClient {
	return &ExactHypercoreClient{signer: signer}
}

// Scheme returns the scheme identifier.
func (c *ExactHypercoreClient) Scheme() string {
	return SchemeExact
}

// CreatePaymentPayload signs a spot sendAsset action for the required amount
// with a fresh millisecond-timestamp nonce.
func (c *ExactHypercoreClient) CreatePaymentPayload(
	ctx context.Context,
	version int,
	requirements x402.PaymentRequirements,
) (x402.PartialPaymentPayload, error) {
	networkStr := string(requirements.Network)
	config, err := GetNetworkConfig(networkStr)
	if err != nil {
		return x402.PartialPaymentPayload{}, err
	}

	isMainnet := networkStr == NetworkMainnet
	if val, ok := requirements.Extra["isMainnet"].(bool); ok {
		isMainnet = val
	}
	hyperliquidChain := "Mainnet"
	if !isMainnet {
		hyperliquidChain = "Testnet"
	}

	asset := requirements.Asset
	if asset == "" {
		asset = config.DefaultAsset.Token
	}

	amount, err := FormatAmount(requirements.Amount, config.DefaultAsset.Decimals)
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("failed to format amount: %w", err)
	}

	nonce := time.Now().UnixMilli()
	action := SendAssetAction{
		Type:             "sendAsset",
		HyperliquidChain: hyperliquidChain,
		SignatureChainID: SignatureChainIDHex,
		Destination:      NormalizeAddress(requirements.PayTo),
		SourceDex:        "spot",
		DestinationDex:   "spot",
		Token:            asset,
		Amount:           amount,
		FromSubAccount:   "",
		Nonce:            nonce,
	}

	signature, err := c.signer.SignSendAsset(ctx, action)
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("failed to sign action: %w", err)
	}

	hypercorePayload := &ExactHypercorePayload{
		Action:    action,
		Signature: signature,
		Nonce:     nonce,
	}

	return x402.PartialPaymentPayload{
		X402Version: version,
		Payload:     hypercorePayload.ToMap(),
	}, nil
}
