package svm

import (
	"context"
	"encoding/json"
	"fmt"

	solana "github.com/gagliardetto/solana-go"

	x402 "github.com/x402-foundation/x402-go"
)

// ExactSvmPayload is the scheme payload: a base64-encoded, partially signed
// Solana transaction.
type ExactSvmPayload struct {
	Transaction string `json:"transaction"`
}

// ToMap converts the payload to the generic map carried in a PaymentPayload.
func (p *ExactSvmPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"transaction": p.Transaction,
	}
}

// PayloadFromMap parses the generic payload map into an ExactSvmPayload.
func PayloadFromMap(m map[string]interface{}) (*ExactSvmPayload, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	var payload ExactSvmPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	if payload.Transaction == "" {
		return nil, fmt.Errorf("payload missing transaction")
	}
	return &payload, nil
}

// ClientSvmSigner signs payment transactions on behalf of the paying wallet.
type ClientSvmSigner interface {
	// Address returns the payer's public key.
	Address() solana.PublicKey
	// SignTransaction adds the payer's signature to the transaction in
	// place. The fee payer's signature slot is left empty.
	SignTransaction(ctx context.Context, tx *solana.Transaction) error
}

// FacilitatorSvmSigner co-signs and submits payment transactions as the fee
// payer. Implementations own the RPC connection per network.
type FacilitatorSvmSigner interface {
	// GetAddresses returns the fee payer public keys available for the
	// network.
	GetAddresses(network x402.Network) []solana.PublicKey
	// SignTransaction adds the fee payer's signature to the transaction in
	// place.
	SignTransaction(ctx context.Context, tx *solana.Transaction, feePayer solana.PublicKey, network x402.Network) error
	// SimulateTransaction simulates the fully signed transaction with
	// signature verification enabled and returns an error if it would fail.
	SimulateTransaction(ctx context.Context, tx *solana.Transaction, network x402.Network) error
	// SendTransaction broadcasts the transaction.
	SendTransaction(ctx context.Context, tx *solana.Transaction, network x402.Network) (solana.Signature, error)
	// ConfirmTransaction blocks until the signature is confirmed or the
	// attempt budget is exhausted.
	ConfirmTransaction(ctx context.Context, signature solana.Signature, network x402.Network) error
}

// AssetInfo describes an SPL token.
type AssetInfo struct {
	Address  string
	Symbol   string
	Decimals uint8
}

// NetworkConfig holds the settings for one Solana network.
type NetworkConfig struct {
	Name         string
	CAIP2        string
	RPCURL       string
	DefaultAsset AssetInfo
}

// ClientConfig holds optional client-side overrides.
type ClientConfig struct {
	// RPCURL overrides the network's default RPC endpoint.
	RPCURL string
}
