package x402

import "math/big"

// Built-in payment policies. A policy filters or reorders candidates but
// never fabricates them.

// PreferNetwork stable-moves requirements on the given network (or pattern)
// to the front of the candidate list.
func PreferNetwork(network Network) PaymentPolicy {
	return func(version int, candidates []PaymentRequirements) []PaymentRequirements {
		preferred := make([]PaymentRequirements, 0, len(candidates))
		rest := make([]PaymentRequirements, 0, len(candidates))
		for _, req := range candidates {
			if req.Network.Match(network) {
				preferred = append(preferred, req)
			} else {
				rest = append(rest, req)
			}
		}
		return append(preferred, rest...)
	}
}

// PreferScheme stable-moves requirements with the given scheme to the front.
func PreferScheme(scheme string) PaymentPolicy {
	return func(version int, candidates []PaymentRequirements) []PaymentRequirements {
		preferred := make([]PaymentRequirements, 0, len(candidates))
		rest := make([]PaymentRequirements, 0, len(candidates))
		for _, req := range candidates {
			if req.Scheme == scheme {
				preferred = append(preferred, req)
			} else {
				rest = append(rest, req)
			}
		}
		return append(preferred, rest...)
	}
}

// MaxAmount filters out requirements whose amount exceeds cap (atomic
// units). When asset is given, only requirements for that asset are
// considered; others pass through unfiltered.
func MaxAmount(cap string, asset ...string) PaymentPolicy {
	capInt, capOK := new(big.Int).SetString(cap, 10)
	return func(version int, candidates []PaymentRequirements) []PaymentRequirements {
		if !capOK {
			return candidates
		}
		filtered := make([]PaymentRequirements, 0, len(candidates))
		for _, req := range candidates {
			if len(asset) > 0 && req.Asset != asset[0] {
				filtered = append(filtered, req)
				continue
			}
			amount, ok := new(big.Int).SetString(req.Amount, 10)
			if !ok {
				continue
			}
			if amount.Cmp(capInt) <= 0 {
				filtered = append(filtered, req)
			}
		}
		return filtered
	}
}
