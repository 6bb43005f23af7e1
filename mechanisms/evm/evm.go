package evm

import (
	x402 "github.com/x402-foundation/x402-go"
)

// V1Networks are the legacy alias names served by the v1 subpackage. Only
// networks with a NetworkConfigs entry can actually settle.
var V1Networks = []x402.Network{
	"base",
	"base-sepolia",
}

// EvmClientConfig configures NewEvmClient.
type EvmClientConfig struct {
	// Signer creates and signs payment payloads.
	Signer ClientEvmSigner
	// PaymentRequirementsSelector overrides the default requirement choice.
	PaymentRequirementsSelector x402.PaymentRequirementsSelector
	// Policies filter candidate requirements before selection.
	Policies []x402.PaymentPolicy
	// NewEvmClientV1 is the v1 mechanism factory, injected to avoid an
	// import cycle with the v1 subpackage. Nil disables v1 support.
	NewEvmClientV1 func(ClientEvmSigner) x402.SchemeNetworkClient
}

// NewEvmClient builds an X402Client ready to pay on EVM networks: the v2
// mechanism is registered under the eip155:* wildcard, and the v1 mechanism
// (when a factory is supplied) under each legacy alias.
//
//	client := evm.NewEvmClient(evm.EvmClientConfig{
//	    Signer: signer,
//	    NewEvmClientV1: func(s evm.ClientEvmSigner) x402.SchemeNetworkClient {
//	        return evmv1.NewExactEvmClientV1(s)
//	    },
//	})
func NewEvmClient(config EvmClientConfig) *x402.X402Client {
	opts := []x402.ClientOption{}
	if config.PaymentRequirementsSelector != nil {
		opts = append(opts, x402.WithPaymentSelector(config.PaymentRequirementsSelector))
	}
	for _, policy := range config.Policies {
		opts = append(opts, x402.WithPolicy(policy))
	}

	client := x402.Newx402Client(opts...)
	client.RegisterScheme(CaipFamilyEvm, NewExactEvmClient(config.Signer))

	if config.NewEvmClientV1 != nil {
		v1Client := config.NewEvmClientV1(config.Signer)
		for _, network := range V1Networks {
			client.RegisterSchemeV1(network, v1Client)
		}
	}

	return client
}

// RegisterFacilitator registers the v2 EVM mechanism on a facilitator for
// the given concrete networks (plus wildcard routing).
func RegisterFacilitator(facilitator *x402.X402Facilitator, signer FacilitatorEvmSigner, networks ...x402.Network) *x402.X402Facilitator {
	if len(networks) == 0 {
		networks = []x402.Network{"eip155:8453", "eip155:84532"}
	}
	return facilitator.Register(networks, NewExactEvmFacilitator(signer))
}
