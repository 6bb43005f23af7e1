package hypercore

import (
	x402 "github.com/x402-foundation/x402-go"
)

// HypercoreClientConfig configures NewHypercoreClient.
type HypercoreClientConfig struct {
	// Signer creates and signs payment payloads.
	Signer HyperliquidSigner
	// PaymentRequirementsSelector overrides the default requirement choice.
	PaymentRequirementsSelector x402.PaymentRequirementsSelector
	// Policies filter candidate requirements before selection.
	Policies []x402.PaymentPolicy
}

// NewHypercoreClient builds an X402Client ready to pay on Hypercore
// networks, registered under the hypercore:* wildcard.
func NewHypercoreClient(config HypercoreClientConfig) *x402.X402Client {
	opts := []x402.ClientOption{}
	if config.PaymentRequirementsSelector != nil {
		opts = append(opts, x402.WithPaymentSelector(config.PaymentRequirementsSelector))
	}
	for _, policy := range config.Policies {
		opts = append(opts, x402.WithPolicy(policy))
	}

	client := x402.Newx402Client(opts...)
	client.RegisterScheme(CaipFamilyHypercore, NewExactHypercoreClient(config.Signer))
	return client
}

// RegisterFacilitator registers the Hypercore mechanism on a facilitator
// for the given concrete networks (plus wildcard routing).
func RegisterFacilitator(facilitator *x402.X402Facilitator, networks ...x402.Network) *x402.X402Facilitator {
	if len(networks) == 0 {
		networks = []x402.Network{NetworkMainnet, NetworkTestnet}
	}
	return facilitator.Register(networks, NewExactHypercoreFacilitator())
}
