package x402

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ProtocolVersion is the current x402 protocol version.
// Version 1 is supported as a legacy compatibility mode.
const ProtocolVersion = 2

// Network is a CAIP-2 network identifier ("eip155:8453", "solana:mainnet")
// or a registration pattern ("eip155:*", "*:*"). V1 legacy aliases
// ("base-sepolia") are also carried in this type; they never contain a colon.
type Network string

// Family returns the chain family portion of the identifier
// ("eip155" for "eip155:8453"). Alias networks return themselves.
func (n Network) Family() string {
	if idx := strings.Index(string(n), ":"); idx >= 0 {
		return string(n)[:idx]
	}
	return string(n)
}

// IsWildcard reports whether the network is a pattern rather than a
// concrete identifier.
func (n Network) IsWildcard() bool {
	return strings.HasSuffix(string(n), ":*")
}

// Match reports whether n and pattern refer to the same network, where
// either side may be a pattern: equal strings match, "<family>:*" matches
// any concrete network of that family, and "*:*" matches everything.
func (n Network) Match(pattern Network) bool {
	if n == pattern {
		return true
	}
	if matchesPattern(n, pattern) {
		return true
	}
	return matchesPattern(pattern, n)
}

func matchesPattern(concrete, pattern Network) bool {
	if !pattern.IsWildcard() {
		return false
	}
	if pattern == "*:*" {
		return true
	}
	return concrete.Family() == pattern.Family() && strings.Contains(string(concrete), ":")
}

// Price is what resource owners configure for a route: a string like
// "$0.001", a bare number (USD), or a scheme-native AssetAmount.
type Price interface{}

// AssetAmount is an exact amount of a specific asset, in atomic units.
type AssetAmount struct {
	Amount string                 `json:"amount"`
	Asset  string                 `json:"asset"`
	Extra  map[string]interface{} `json:"extra,omitempty"`
}

// PaymentRequirements is one payment option offered by a resource server.
// This is the canonical (v2) in-memory form; v1 wire messages are converted
// at the transport boundary.
type PaymentRequirements struct {
	Scheme            string                 `json:"scheme"`
	Network           Network                `json:"network"`
	Asset             string                 `json:"asset"`
	Amount            string                 `json:"amount"`
	PayTo             string                 `json:"payTo"`
	MaxTimeoutSeconds int                    `json:"maxTimeoutSeconds,omitempty"`
	Extra             map[string]interface{} `json:"extra,omitempty"`
}

// ResourceInfo describes the resource being paid for.
type ResourceInfo struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// PaymentRequired is the body of a 402 response.
type PaymentRequired struct {
	X402Version int                    `json:"x402Version"`
	Error       string                 `json:"error,omitempty"`
	Resource    *ResourceInfo          `json:"resource,omitempty"`
	Accepts     []PaymentRequirements  `json:"accepts"`
	Extensions  map[string]interface{} `json:"extensions,omitempty"`
}

// PartialPaymentPayload is what a scheme mechanism produces: the signed
// scheme-specific payload before the client wraps it into a full
// PaymentPayload. V1 mechanisms also set Scheme and Network, which v1 wire
// messages carry at the top level.
type PartialPaymentPayload struct {
	X402Version int                    `json:"x402Version"`
	Payload     map[string]interface{} `json:"payload"`
	Scheme      string                 `json:"scheme,omitempty"`
	Network     Network                `json:"network,omitempty"`
}

// PaymentPayload is the canonical payment message a client sends with its
// retry request. For v2 the chosen requirement is nested in Accepted; for
// v1 the legacy top-level Scheme/Network fields are set instead.
type PaymentPayload struct {
	X402Version int                    `json:"x402Version"`
	Payload     map[string]interface{} `json:"payload"`
	Accepted    PaymentRequirements    `json:"accepted,omitempty"`
	Resource    *ResourceInfo          `json:"resource,omitempty"`
	Extensions  map[string]interface{} `json:"extensions,omitempty"`
	Scheme      string                 `json:"scheme,omitempty"`
	Network     Network                `json:"network,omitempty"`
}

// VerifyResponse is the result of payment verification.
type VerifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

// SettleResponse is the result of payment settlement.
type SettleResponse struct {
	Success     bool    `json:"success"`
	ErrorReason string  `json:"errorReason,omitempty"`
	Payer       string  `json:"payer,omitempty"`
	Transaction string  `json:"transaction"`
	Network     Network `json:"network"`
}

// SupportedKind is one (version, scheme, network) combination a facilitator
// can verify and settle.
type SupportedKind struct {
	X402Version int                    `json:"x402Version"`
	Scheme      string                 `json:"scheme"`
	Network     Network                `json:"network"`
	Extra       map[string]interface{} `json:"extra,omitempty"`
}

// SupportedResponse enumerates a facilitator's capabilities.
type SupportedResponse struct {
	Kinds      []SupportedKind     `json:"kinds"`
	Extensions []string            `json:"extensions,omitempty"`
	Signers    map[string][]string `json:"signers,omitempty"`
}

// ResourceConfig is the per-route configuration a resource server uses to
// build payment requirements.
type ResourceConfig struct {
	Scheme            string
	Network           Network
	PayTo             string
	Price             Price
	Description       string
	MimeType          string
	MaxTimeoutSeconds int
	Extra             map[string]interface{}
}

// DeepEqual compares two values by JSON normalization. Used where payload
// maps may differ in concrete numeric types after a decode round-trip.
func DeepEqual(a, b interface{}) bool {
	aBytes, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bBytes, err := json.Marshal(b)
	if err != nil {
		return false
	}

	var aNorm, bNorm interface{}
	if err := json.Unmarshal(aBytes, &aNorm); err != nil {
		return false
	}
	if err := json.Unmarshal(bBytes, &bNorm); err != nil {
		return false
	}

	return fmt.Sprintf("%v", aNorm) == fmt.Sprintf("%v", bNorm)
}
