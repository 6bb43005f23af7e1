package x402

import (
	"fmt"
	"strings"
)

// The scheme registries used by the client, server, and facilitator share
// one shape: version → network pattern → scheme → mechanism. The helpers
// below implement registration and specificity-ordered lookup over that
// shape generically.

// registerScheme inserts a mechanism under (version, network, scheme),
// replacing any prior registration of the same triple.
func registerScheme[T any](schemes map[int]map[Network]map[string]T, version int, network Network, scheme string, mechanism T) {
	if schemes[version] == nil {
		schemes[version] = make(map[Network]map[string]T)
	}
	if schemes[version][network] == nil {
		schemes[version][network] = make(map[string]T)
	}
	schemes[version][network][scheme] = mechanism
}

// findByNetworkAndScheme resolves the mechanism for a concrete network and
// scheme at a version. Pattern specificity: an exact network entry wins over
// a family wildcard ("eip155:*"), which wins over the universal "*:*".
func findByNetworkAndScheme[T any](schemes map[int]map[Network]map[string]T, version int, network Network, scheme string) (T, bool) {
	var zero T

	versionMap, ok := schemes[version]
	if !ok {
		return zero, false
	}

	// Exact match first
	if networkMap, ok := versionMap[network]; ok {
		if mechanism, ok := networkMap[scheme]; ok {
			return mechanism, true
		}
	}

	// Family wildcard
	family := network.Family()
	if networkMap, ok := versionMap[Network(family+":*")]; ok {
		if mechanism, ok := networkMap[scheme]; ok {
			return mechanism, true
		}
	}

	// Universal wildcard
	if networkMap, ok := versionMap[Network("*:*")]; ok {
		if mechanism, ok := networkMap[scheme]; ok {
			return mechanism, true
		}
	}

	return zero, false
}

// findSchemesByNetwork collects every scheme with a mechanism matching the
// concrete network at a version. When multiple patterns carry the same
// scheme, the most specific registration wins.
func findSchemesByNetwork[T any](schemes map[int]map[Network]map[string]T, version int, network Network) map[string]T {
	result := make(map[string]T)

	versionMap, ok := schemes[version]
	if !ok {
		return result
	}

	// Least specific first so later tiers overwrite.
	if networkMap, ok := versionMap[Network("*:*")]; ok {
		for scheme, mechanism := range networkMap {
			result[scheme] = mechanism
		}
	}
	if networkMap, ok := versionMap[Network(network.Family()+":*")]; ok {
		for scheme, mechanism := range networkMap {
			result[scheme] = mechanism
		}
	}
	if networkMap, ok := versionMap[network]; ok {
		for scheme, mechanism := range networkMap {
			result[scheme] = mechanism
		}
	}

	return result
}

// registeredSchemes summarizes a registry for error reporting:
// version → ["network/scheme", ...].
func registeredSchemes[T any](schemes map[int]map[Network]map[string]T) map[int][]string {
	summary := make(map[int][]string)
	for version, versionMap := range schemes {
		for network, networkMap := range versionMap {
			for scheme := range networkMap {
				summary[version] = append(summary[version], fmt.Sprintf("%s/%s", network, scheme))
			}
		}
	}
	return summary
}

// ValidatePaymentRequirements checks the structural invariants every
// requirement must satisfy regardless of scheme.
func ValidatePaymentRequirements(requirements PaymentRequirements) error {
	if requirements.Scheme == "" {
		return &PaymentError{Code: ErrCodeInvalidRequirements, Message: "scheme is required"}
	}
	if requirements.Network == "" {
		return &PaymentError{Code: ErrCodeInvalidRequirements, Message: "network is required"}
	}
	if requirements.PayTo == "" {
		return &PaymentError{Code: ErrCodeInvalidRequirements, Message: "payTo is required"}
	}
	if err := validateAmount(requirements.Amount); err != nil {
		return err
	}
	return nil
}

// ValidatePaymentPayload checks the structural invariants of a canonical
// payload before it is routed anywhere.
func ValidatePaymentPayload(payload PaymentPayload) error {
	switch payload.X402Version {
	case 1:
		if payload.Scheme == "" || payload.Network == "" {
			return &PaymentError{Code: ErrCodeInvalidPayload, Message: "v1 payload requires top-level scheme and network"}
		}
	case 2:
		if payload.Accepted.Scheme == "" || payload.Accepted.Network == "" {
			return &PaymentError{Code: ErrCodeInvalidPayload, Message: "v2 payload requires accepted.scheme and accepted.network"}
		}
	default:
		return NewUnsupportedVersionError(payload.X402Version)
	}
	if payload.Payload == nil {
		return &PaymentError{Code: ErrCodeInvalidPayload, Message: "payload is required"}
	}
	return nil
}

// validateAmount requires a non-negative integer in string form.
func validateAmount(amount string) error {
	if amount == "" {
		return &PaymentError{Code: ErrCodeInvalidRequirements, Message: "amount is required"}
	}
	if strings.HasPrefix(amount, "-") {
		return &PaymentError{Code: ErrCodeInvalidRequirements, Message: fmt.Sprintf("amount must be non-negative: %s", amount)}
	}
	for _, r := range amount {
		if r < '0' || r > '9' {
			return &PaymentError{Code: ErrCodeInvalidRequirements, Message: fmt.Sprintf("amount must be an integer in atomic units: %s", amount)}
		}
	}
	return nil
}
