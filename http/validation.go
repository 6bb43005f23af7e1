package http

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
)

var base64Regex = regexp.MustCompile(`^[A-Za-z0-9+/]+={0,2}$`)

// ValidateAndDecodePaymentHeader validates a payment header and returns the
// decoded payload bytes. Structural problems yield errors prefixed with
// "invalid payment header format" so transports can map them to 402
// responses without inspecting the cause.
func ValidateAndDecodePaymentHeader(paymentHeader string) ([]byte, error) {
	if paymentHeader == "" {
		return nil, fmt.Errorf("payment header is empty")
	}

	if !base64Regex.MatchString(paymentHeader) {
		return nil, fmt.Errorf("invalid payment header format: not valid base64")
	}

	decoded, err := base64.StdEncoding.DecodeString(paymentHeader)
	if err != nil {
		return nil, fmt.Errorf("invalid payment header format: base64 decoding failed - %v", err)
	}

	var rawPayload map[string]interface{}
	if err := json.Unmarshal(decoded, &rawPayload); err != nil {
		return nil, fmt.Errorf("invalid payment header format: not valid JSON - %v", err)
	}

	versionRaw, exists := rawPayload["x402Version"]
	if !exists {
		return nil, fmt.Errorf("invalid payment header format: missing required field: x402Version")
	}
	versionNum, ok := versionRaw.(float64)
	if !ok {
		return nil, fmt.Errorf("invalid payment header format: x402Version must be a number")
	}
	version := int(versionNum)

	if _, ok := rawPayload["payload"].(map[string]interface{}); !ok {
		return nil, fmt.Errorf("invalid payment header format: payload must be an object")
	}

	switch version {
	case 1:
		if _, ok := rawPayload["scheme"].(string); !ok {
			return nil, fmt.Errorf("invalid payment header format: v1 requires top-level scheme")
		}
		if _, ok := rawPayload["network"].(string); !ok {
			return nil, fmt.Errorf("invalid payment header format: v1 requires top-level network")
		}
	case 2:
		accepted, ok := rawPayload["accepted"].(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("invalid payment header format: accepted must be an object")
		}
		if _, ok := accepted["scheme"].(string); !ok {
			return nil, fmt.Errorf("invalid payment header format: accepted.scheme must be a string")
		}
		if _, ok := accepted["network"].(string); !ok {
			return nil, fmt.Errorf("invalid payment header format: accepted.network must be a string")
		}
	default:
		return nil, fmt.Errorf("invalid payment header format: unsupported x402 version: %d", version)
	}

	return decoded, nil
}

// ValidateHeaderVersion checks that a payload's wire version matches the
// header it arrived in: v2 payloads travel in PAYMENT-SIGNATURE, v1 payloads
// in X-PAYMENT. A mismatch is a format error, not a routing decision.
func ValidateHeaderVersion(headerName string, version int) error {
	expected := 2
	if headerName == HeaderPaymentV1 {
		expected = 1
	}
	if version != expected {
		return fmt.Errorf("invalid payment header format: v%d payload in %s header", version, headerName)
	}
	return nil
}
