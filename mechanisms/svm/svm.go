package svm

import (
	x402 "github.com/x402-foundation/x402-go"
)

// SvmClientConfig configures NewSvmClient.
type SvmClientConfig struct {
	// Signer creates and signs payment transactions.
	Signer ClientSvmSigner
	// ClientConfig optionally overrides per-network RPC settings.
	ClientConfig *ClientConfig
	// PaymentRequirementsSelector overrides the default requirement choice.
	PaymentRequirementsSelector x402.PaymentRequirementsSelector
	// Policies filter candidate requirements before selection.
	Policies []x402.PaymentPolicy
	// NewSvmClientV1 is the v1 mechanism factory, injected to avoid an
	// import cycle with the v1 subpackage. Nil disables v1 support.
	NewSvmClientV1 func(ClientSvmSigner, ...ClientConfig) x402.SchemeNetworkClient
}

// NewSvmClient builds an X402Client ready to pay on Solana networks: the v2
// mechanism is registered under the solana:* wildcard, and the v1 mechanism
// (when a factory is supplied) under each legacy alias.
func NewSvmClient(config SvmClientConfig) *x402.X402Client {
	opts := []x402.ClientOption{}
	if config.PaymentRequirementsSelector != nil {
		opts = append(opts, x402.WithPaymentSelector(config.PaymentRequirementsSelector))
	}
	for _, policy := range config.Policies {
		opts = append(opts, x402.WithPolicy(policy))
	}

	var clientConfig []ClientConfig
	if config.ClientConfig != nil {
		clientConfig = append(clientConfig, *config.ClientConfig)
	}

	client := x402.Newx402Client(opts...)
	client.RegisterScheme(CaipFamilySvm, NewExactSvmClient(config.Signer, clientConfig...))

	if config.NewSvmClientV1 != nil {
		v1Client := config.NewSvmClientV1(config.Signer, clientConfig...)
		for _, network := range V1Networks {
			client.RegisterSchemeV1(x402.Network(network), v1Client)
		}
	}

	return client
}

// RegisterFacilitator registers the v2 SVM mechanism on a facilitator for
// the given concrete networks (plus wildcard routing).
func RegisterFacilitator(facilitator *x402.X402Facilitator, signer FacilitatorSvmSigner, networks ...x402.Network) *x402.X402Facilitator {
	if len(networks) == 0 {
		networks = []x402.Network{NetworkSolanaMainnet, NetworkSolanaDevnet}
	}
	return facilitator.Register(networks, NewExactSvmFacilitator(signer))
}
