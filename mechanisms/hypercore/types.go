package hypercore

import (
	"context"
	"encoding/json"
	"fmt"
)

// SendAssetAction is the Hyperliquid spot transfer a payment signs and
// submits.
type SendAssetAction struct {
	Type             string `json:"type"`
	HyperliquidChain string `json:"hyperliquidChain"`
	SignatureChainID string `json:"signatureChainId"`
	Destination      string `json:"destination"`
	SourceDex        string `json:"sourceDex"`
	DestinationDex   string `json:"destinationDex"`
	Token            string `json:"token"`
	Amount           string `json:"amount"`
	FromSubAccount   string `json:"fromSubAccount"`
	Nonce            int64  `json:"nonce"`
}

// Signature is a split secp256k1 signature in Hyperliquid's wire form.
type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V int    `json:"v"`
}

// ExactHypercorePayload is the scheme payload: a signed sendAsset action.
type ExactHypercorePayload struct {
	Action    SendAssetAction `json:"action"`
	Signature Signature       `json:"signature"`
	Nonce     int64           `json:"nonce"`
}

// ToMap converts the payload to the generic map carried in a PaymentPayload.
func (p *ExactHypercorePayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"action":    p.Action,
		"signature": p.Signature,
		"nonce":     p.Nonce,
	}
}

// PayloadFromMap parses the generic payload map into an
// ExactHypercorePayload.
func PayloadFromMap(m map[string]interface{}) (*ExactHypercorePayload, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	var payload ExactHypercorePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return &payload, nil
}

// HyperliquidSigner signs sendAsset actions on behalf of the paying
// account.
type HyperliquidSigner interface {
	// Address returns the payer's EVM address.
	Address() string
	// SignSendAsset signs the action with the HyperliquidSignTransaction
	// EIP-712 domain.
	SignSendAsset(ctx context.Context, action SendAssetAction) (Signature, error)
}

// AssetInfo describes a Hypercore spot token.
type AssetInfo struct {
	Token    string
	Name     string
	Decimals int
}

// NetworkConfig holds the settings for one Hypercore network.
type NetworkConfig struct {
	APIURL       string
	DefaultAsset AssetInfo
}

// exchangeResponse is the /exchange endpoint's reply envelope.
type exchangeResponse struct {
	Status string `json:"status"`
}

// LedgerUpdate is one entry from userNonFundingLedgerUpdates.
type LedgerUpdate struct {
	Time  int64       `json:"time"`
	Hash  string      `json:"hash"`
	Delta LedgerDelta `json:"delta"`
}

// LedgerDelta is the typed delta of a ledger update; only send deltas carry
// the fields used for transaction hash matching.
type LedgerDelta struct {
	Type        string  `json:"type"`
	Destination *string `json:"destination,omitempty"`
	Nonce       *int64  `json:"nonce,omitempty"`
}
