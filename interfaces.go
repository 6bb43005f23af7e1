package x402

import "context"

// SchemeNetworkClient is the client half of a payment mechanism: it turns a
// chosen PaymentRequirements into a signed scheme-specific payload.
type SchemeNetworkClient interface {
	// Scheme returns the scheme identifier, e.g. "exact".
	Scheme() string

	// CreatePaymentPayload builds the signed authorization for the given
	// requirements. version is 1 or 2; v1 mechanisms set Scheme/Network on
	// the returned partial payload.
	CreatePaymentPayload(ctx context.Context, version int, requirements PaymentRequirements) (PartialPaymentPayload, error)
}

// SchemeNetworkServer is the resource-server half of a mechanism: it prices
// routes and injects the scheme-specific extra fields clients need to sign.
type SchemeNetworkServer interface {
	Scheme() string

	// ParsePrice converts a configured Price ("$0.001", a number, or an
	// AssetAmount) into an atomic-unit AssetAmount for the network.
	ParsePrice(price Price, network Network) (AssetAmount, error)

	// EnhancePaymentRequirements injects scheme-specific extra fields
	// (EIP-712 domain, fee payer, chain id) into base requirements.
	EnhancePaymentRequirements(ctx context.Context, requirements PaymentRequirements, supportedKind SupportedKind, facilitatorExtensions []string) (PaymentRequirements, error)
}

// SchemeNetworkFacilitator is the facilitator half of a mechanism: it
// verifies signed payloads and settles them on chain.
type SchemeNetworkFacilitator interface {
	Scheme() string

	// CaipFamily returns the network family pattern this mechanism serves,
	// e.g. "eip155:*".
	CaipFamily() string

	// GetExtra returns scheme metadata surfaced in SupportedResponse for a
	// concrete network, or nil.
	GetExtra(network Network) map[string]interface{}

	// GetSigners returns facilitator-controlled addresses for a network
	// (e.g. the SVM fee-payer pool).
	GetSigners(network Network) []string

	Verify(ctx context.Context, payload PaymentPayload, requirements PaymentRequirements) (VerifyResponse, error)
	Settle(ctx context.Context, payload PaymentPayload, requirements PaymentRequirements) (SettleResponse, error)
}

// FacilitatorClient is how a resource server reaches a facilitator, remote
// or in-process. The server boundary is bytes: payloads and requirements
// arrive serialized from the transport and are decoded exactly once on the
// facilitator side.
type FacilitatorClient interface {
	Verify(ctx context.Context, payloadBytes []byte, requirementsBytes []byte) (*VerifyResponse, error)
	Settle(ctx context.Context, payloadBytes []byte, requirementsBytes []byte) (*SettleResponse, error)
	GetSupported(ctx context.Context) (*SupportedResponse, error)
}

// PaymentRequirementsSelector picks one requirement from the candidates that
// survived capability filtering and policies.
type PaymentRequirementsSelector func(version int, candidates []PaymentRequirements) PaymentRequirements

// PaymentPolicy filters candidate requirements. Policies run in
// registration order and must never fabricate candidates: the returned
// slice is a subset (possibly reordered) of the input.
type PaymentPolicy func(version int, candidates []PaymentRequirements) []PaymentRequirements

// MoneyParser converts a decimal fiat amount into a scheme-native
// AssetAmount for a network. Returning (nil, error) passes to the next
// parser in the chain.
type MoneyParser func(amount float64, network string) (*AssetAmount, error)
