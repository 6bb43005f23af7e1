// Package v1 serves the legacy x402 v1 protocol on EVM networks. Networks
// are identified by alias names ("base", "base-sepolia") and payloads carry
// scheme/network at the top level; the scheme semantics are shared with the
// parent package.
package v1

import (
	"context"
	"fmt"
	"math/big"
	"time"

	x402 "github.com/x402-foundation/x402-go"
	"github.com/x402-foundation/x402-go/mechanisms/evm"
)

// v1ValidAfterBuffer backdates validAfter so clock skew between client and
// chain cannot make a fresh authorization "not yet valid".
const v1ValidAfterBuffer = 600

// ExactEvmClientV1 builds signed EIP-3009 payloads in the v1 wire shape.
type ExactEvmClientV1 struct {
	signer evm.ClientEvmSigner
}

// NewExactEvmClientV1 creates a v1 client mechanism backed by the given
// signer.
func NewExactEvmClientV1(signer evm.ClientEvmSigner) *ExactEvmClientV1 {
	return &ExactEvmClientV1{signer: signer}
}

// Scheme returns the scheme identifier.
func (c *ExactEvmClientV1) Scheme() string {
	return evm.SchemeExact
}

// CreatePaymentPayload signs a TransferWithAuthorization and returns a
// partial payload with the v1 top-level scheme and network set.
func (c *ExactEvmClientV1) CreatePaymentPayload(
	ctx context.Context,
	version int,
	requirements x402.PaymentRequirements,
) (x402.PartialPaymentPayload, error) {
	if version != 1 {
		return x402.PartialPaymentPayload{}, fmt.Errorf("v1 mechanism only supports x402 version 1, got %d", version)
	}

	networkStr := string(requirements.Network)
	config, err := evm.GetNetworkConfig(networkStr)
	if err != nil {
		return x402.PartialPaymentPayload{}, err
	}
	assetInfo, err := evm.GetAssetInfo(networkStr, requirements.Asset)
	if err != nil {
		return x402.PartialPaymentPayload{}, err
	}

	value, ok := new(big.Int).SetString(requirements.Amount, 10)
	if !ok {
		return x402.PartialPaymentPayload{}, fmt.Errorf("invalid amount: %s", requirements.Amount)
	}

	nonce, err := evm.CreateNonce()
	if err != nil {
		return x402.PartialPaymentPayload{}, err
	}

	now := time.Now().Unix()
	timeout := int64(v1ValidAfterBuffer)
	if requirements.MaxTimeoutSeconds > 0 {
		timeout = int64(requirements.MaxTimeoutSeconds)
	}
	validAfter := big.NewInt(now - v1ValidAfterBuffer)
	validBefore := big.NewInt(now + timeout)

	tokenName := assetInfo.Name
	tokenVersion := assetInfo.Version
	if requirements.Extra != nil {
		if name, ok := requirements.Extra["name"].(string); ok {
			tokenName = name
		}
		if v, ok := requirements.Extra["version"].(string); ok {
			tokenVersion = v
		}
	}

	authorization := evm.ExactEIP3009Authorization{
		From:        c.signer.Address(),
		To:          requirements.PayTo,
		Value:       value.String(),
		ValidAfter:  validAfter.String(),
		ValidBefore: validBefore.String(),
		Nonce:       nonce,
	}

	domain := evm.TypedDataDomain{
		Name:              tokenName,
		Version:           tokenVersion,
		ChainID:           config.ChainID,
		VerifyingContract: assetInfo.Address,
	}
	digestMessage, err := authorizationMessage(authorization)
	if err != nil {
		return x402.PartialPaymentPayload{}, err
	}

	signature, err := c.signer.SignTypedData(ctx, domain, transferWithAuthorizationTypes(), "TransferWithAuthorization", digestMessage)
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("failed to sign authorization: %w", err)
	}

	evmPayload := &evm.ExactEIP3009Payload{
		Signature:     evm.BytesToHex(signature),
		Authorization: authorization,
	}

	return x402.PartialPaymentPayload{
		X402Version: 1,
		Scheme:      evm.SchemeExact,
		Network:     requirements.Network,
		Payload:     evmPayload.ToMap(),
	}, nil
}

func authorizationMessage(authorization evm.ExactEIP3009Authorization) (map[string]interface{}, error) {
	value, ok := new(big.Int).SetString(authorization.Value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid authorization value: %s", authorization.Value)
	}
	validAfter, _ := new(big.Int).SetString(authorization.ValidAfter, 10)
	validBefore, _ := new(big.Int).SetString(authorization.ValidBefore, 10)
	nonceBytes, err := evm.HexToBytes(authorization.Nonce)
	if err != nil {
		return nil, fmt.Errorf("invalid nonce: %w", err)
	}
	return map[string]interface{}{
		"from":        authorization.From,
		"to":          authorization.To,
		"value":       value,
		"validAfter":  validAfter,
		"validBefore": validBefore,
		"nonce":       nonceBytes,
	}, nil
}

func transferWithAuthorizationTypes() map[string][]evm.TypedDataField {
	return map[string][]evm.TypedDataField{
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
