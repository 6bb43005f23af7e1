package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// versionProbe reads only the version discriminator shared by every x402
// wire message.
type versionProbe struct {
	X402Version int `json:"x402Version"`
}

// RequirementsInfo is the routing key extracted from serialized payment
// requirements without committing to a wire version.
type RequirementsInfo struct {
	Scheme  string
	Network string
}

// DetectVersion reads the x402Version discriminator from a serialized
// message. Both v1 and v2 shapes carry it at the top level.
func DetectVersion(data []byte) (int, error) {
	var probe versionProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0, fmt.Errorf("failed to parse x402 message: %w", err)
	}
	switch probe.X402Version {
	case 1, 2:
		return probe.X402Version, nil
	case 0:
		return 0, fmt.Errorf("missing x402Version")
	default:
		return 0, fmt.Errorf("unsupported x402 version: %d", probe.X402Version)
	}
}

// ExtractRequirementsInfo reads the scheme and network from serialized
// requirements. Both wire versions carry these two fields under the same
// names, so no version detection is needed.
func ExtractRequirementsInfo(data []byte) (*RequirementsInfo, error) {
	var probe struct {
		Scheme  string `json:"scheme"`
		Network string `json:"network"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse payment requirements: %w", err)
	}
	if probe.Scheme == "" || probe.Network == "" {
		return nil, fmt.Errorf("payment requirements missing scheme or network")
	}
	return &RequirementsInfo{Scheme: probe.Scheme, Network: probe.Network}, nil
}

// MatchPayloadToRequirements reports whether a serialized payload was
// created for the given serialized requirements. For v1 the top-level
// scheme and network must match; for v2 the accepted requirement must
// equal the offered one field for field.
func MatchPayloadToRequirements(version int, payloadBytes, requirementsBytes []byte) (bool, error) {
	switch version {
	case 1:
		payload, err := ToPaymentPayloadV1(payloadBytes)
		if err != nil {
			return false, err
		}
		requirements, err := ToPaymentRequirementsV1(requirementsBytes)
		if err != nil {
			return false, err
		}
		return payload.Scheme == requirements.Scheme && payload.Network == requirements.Network, nil

	case 2:
		payload, err := ToPaymentPayloadV2(payloadBytes)
		if err != nil {
			return false, err
		}
		requirements, err := ToPaymentRequirementsV2(requirementsBytes)
		if err != nil {
			return false, err
		}
		accepted := payload.Accepted
		return accepted.Scheme == requirements.Scheme &&
			accepted.Network == requirements.Network &&
			accepted.Asset == requirements.Asset &&
			accepted.Amount == requirements.Amount &&
			strings.EqualFold(accepted.PayTo, requirements.PayTo), nil

	default:
		return false, fmt.Errorf("unsupported x402 version: %d", version)
	}
}
