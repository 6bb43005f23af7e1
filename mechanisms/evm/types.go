package evm

import (
	"context"
	"math/big"
)

// ExactEIP3009Authorization is the TransferWithAuthorization message a payer
// signs. All numeric fields are decimal strings; Nonce is 32 bytes hex.
type ExactEIP3009Authorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// ExactEIP3009Payload is the scheme-specific payload carried inside a
// PaymentPayload for the exact scheme on EVM networks.
type ExactEIP3009Payload struct {
	Signature     string                    `json:"signature,omitempty"`
	Authorization ExactEIP3009Authorization `json:"authorization"`
}

// ToMap converts the payload to the generic map form used on the wire.
func (p *ExactEIP3009Payload) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"authorization": map[string]interface{}{
			"from":        p.Authorization.From,
			"to":          p.Authorization.To,
			"value":       p.Authorization.Value,
			"validAfter":  p.Authorization.ValidAfter,
			"validBefore": p.Authorization.ValidBefore,
			"nonce":       p.Authorization.Nonce,
		},
	}
	if p.Signature != "" {
		result["signature"] = p.Signature
	}
	return result
}

// PayloadFromMap decodes the generic map form into an ExactEIP3009Payload.
func PayloadFromMap(data map[string]interface{}) (*ExactEIP3009Payload, error) {
	payload := &ExactEIP3009Payload{}

	if sig, ok := data["signature"].(string); ok {
		payload.Signature = sig
	}

	auth, ok := data["authorization"].(map[string]interface{})
	if !ok {
		return nil, errMissingAuthorization
	}
	if from, ok := auth["from"].(string); ok {
		payload.Authorization.From = from
	}
	if to, ok := auth["to"].(string); ok {
		payload.Authorization.To = to
	}
	if value, ok := auth["value"].(string); ok {
		payload.Authorization.Value = value
	}
	if validAfter, ok := auth["validAfter"].(string); ok {
		payload.Authorization.ValidAfter = validAfter
	}
	if validBefore, ok := auth["validBefore"].(string); ok {
		payload.Authorization.ValidBefore = validBefore
	}
	if nonce, ok := auth["nonce"].(string); ok {
		payload.Authorization.Nonce = nonce
	}

	return payload, nil
}

// ClientEvmSigner is what a payment client needs from a wallet: its address
// and the ability to sign EIP-712 typed data.
type ClientEvmSigner interface {
	// Address returns the signer's Ethereum address.
	Address() string

	// SignTypedData signs EIP-712 typed data and returns a 65-byte signature.
	SignTypedData(ctx context.Context, domain TypedDataDomain, types map[string][]TypedDataField, primaryType string, message map[string]interface{}) ([]byte, error)
}

// FacilitatorEvmSigner is what the facilitator needs from its connected
// account: contract reads and writes on the target network plus signature
// verification. Implementations may rotate between multiple funded keys.
type FacilitatorEvmSigner interface {
	// GetAddresses returns all addresses this facilitator can submit from.
	GetAddresses() []string

	// ReadContract calls a view function and returns the decoded result.
	ReadContract(ctx context.Context, address string, abi []byte, functionName string, args ...interface{}) (interface{}, error)

	// WriteContract submits a state-changing transaction and returns its hash.
	WriteContract(ctx context.Context, address string, abi []byte, functionName string, args ...interface{}) (string, error)

	// WaitForTransactionReceipt blocks until the transaction is mined.
	WaitForTransactionReceipt(ctx context.Context, txHash string) (*TransactionReceipt, error)

	// VerifyTypedData verifies an EIP-712 signature against an EOA address.
	VerifyTypedData(ctx context.Context, address string, domain TypedDataDomain, types map[string][]TypedDataField, primaryType string, message map[string]interface{}, signature []byte) (bool, error)

	// GetBalance returns the ERC-20 balance of an address.
	GetBalance(ctx context.Context, address string, tokenAddress string) (*big.Int, error)

	// GetCode returns the bytecode at an address; empty for EOAs.
	GetCode(ctx context.Context, address string) ([]byte, error)
}

// TypedDataDomain is the EIP-712 domain separator.
type TypedDataDomain struct {
	Name              string   `json:"name"`
	Version           string   `json:"version"`
	ChainID           *big.Int `json:"chainId"`
	VerifyingContract string   `json:"verifyingContract"`
}

// TypedDataField is one field of an EIP-712 struct type.
type TypedDataField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TransactionReceipt is the subset of a mined transaction's receipt the
// settlement path needs.
type TransactionReceipt struct {
	Status      uint64 `json:"status"`
	BlockNumber uint64 `json:"blockNumber"`
	TxHash      string `json:"transactionHash"`
}

// AssetInfo describes an EIP-3009 capable ERC-20 token. Name and Version
// feed the EIP-712 domain.
type AssetInfo struct {
	Address  string
	Name     string
	Version  string
	Decimals int
}

// NetworkConfig is the per-chain configuration: chain id plus the default
// settlement asset.
type NetworkConfig struct {
	ChainID      *big.Int
	DefaultAsset AssetInfo
}
