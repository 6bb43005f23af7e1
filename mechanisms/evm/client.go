package evm

import (
	"context"
	"fmt"
	"math/big"
	"time"

	x402 "github.com/x402-foundation/x402-go"
)

// ExactEvmClient builds signed EIP-3009 payment payloads. It implements
// x402.SchemeNetworkClient for v2 CAIP-2 networks.
type ExactEvmClient struct {
	signer ClientEvmSigner
}

// NewExactEvmClient creates a client mechanism backed by the given signer.
func NewExactEvmClient(signer ClientEvmSigner) *ExactEvmClient {
	return &ExactEvmClient{signer: signer}
}

// Scheme returns the scheme identifier.
func (c *ExactEvmClient) Scheme() string {
	return SchemeExact
}

// CreatePaymentPayload signs a TransferWithAuthorization for the given
// requirements and returns the minimal scheme payload.
func (c *ExactEvmClient) CreatePaymentPayload(
	ctx context.Context,
	version int,
	requirements x402.PaymentRequirements,
) (x402.PartialPaymentPayload, error) {
	networkStr := string(requirements.Network)
	config, err := GetNetworkConfig(networkStr)
	if err != nil {
		return x402.PartialPaymentPayload{}, err
	}

	assetInfo, err := GetAssetInfo(networkStr, requirements.Asset)
	if err != nil {
		return x402.PartialPaymentPayload{}, err
	}

	// Requirements.Amount is already in atomic units.
	value, ok := new(big.Int).SetString(requirements.Amount, 10)
	if !ok {
		return x402.PartialPaymentPayload{}, fmt.Errorf("invalid amount: %s", requirements.Amount)
	}

	nonce, err := CreateNonce()
	if err != nil {
		return x402.PartialPaymentPayload{}, err
	}

	period := time.Duration(DefaultValidityPeriod) * time.Second
	if requirements.MaxTimeoutSeconds > 0 {
		period = time.Duration(requirements.MaxTimeoutSeconds) * time.Second
	}
	validAfter, validBefore := CreateValidityWindow(period)

	tokenName, tokenVersion := tokenDomain(assetInfo, requirements.Extra)

	authorization := ExactEIP3009Authorization{
		From:        c.signer.Address(),
		To:          requirements.PayTo,
		Value:       value.String(),
		ValidAfter:  validAfter.String(),
		ValidBefore: validBefore.String(),
		Nonce:       nonce,
	}

	signature, err := c.signAuthorization(ctx, authorization, config.ChainID, assetInfo.Address, tokenName, tokenVersion)
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("failed to sign authorization: %w", err)
	}

	evmPayload := &ExactEIP3009Payload{
		Signature:     BytesToHex(signature),
		Authorization: authorization,
	}

	// The payment client wraps this with accepted/resource/extensions.
	return x402.PartialPaymentPayload{
		X402Version: version,
		Payload:     evmPayload.ToMap(),
	}, nil
}

func (c *ExactEvmClient) signAuthorization(
	ctx context.Context,
	authorization ExactEIP3009Authorization,
	chainID *big.Int,
	verifyingContract string,
	tokenName string,
	tokenVersion string,
) ([]byte, error) {
	domain := TypedDataDomain{
		Name:              tokenName,
		Version:           tokenVersion,
		ChainID:           chainID,
		VerifyingContract: verifyingContract,
	}

	message, err := eip3009Message(authorization)
	if err != nil {
		return nil, err
	}

	return c.signer.SignTypedData(ctx, domain, eip3009Types(), "TransferWithAuthorization", message)
}

// tokenDomain resolves the EIP-712 domain name and version for the asset,
// preferring values the resource server put in Extra.
func tokenDomain(assetInfo *AssetInfo, extra map[string]interface{}) (string, string) {
	name := assetInfo.Name
	version := assetInfo.Version
	if extra != nil {
		if n, ok := extra["name"].(string); ok {
			name = n
		}
		if v, ok := extra["version"].(string); ok {
			version = v
		}
	}
	return name, version
}
