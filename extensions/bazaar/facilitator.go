package bazaar

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	x402 "github.com/x402-foundation/x402-go"
	"github.com/x402-foundation/x402-go/extensions/types"
	x402types "github.com/x402-foundation/x402-go/types"
)

// ValidationResult reports whether a discovery declaration's info matches
// its schema.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// DiscoveredResource is one catalog entry: a paid resource observed in a
// verified payment.
type DiscoveredResource struct {
	ResourceURL   string               `json:"resourceUrl"`
	Method        string               `json:"method"`
	X402Version   int                  `json:"x402Version"`
	DiscoveryInfo *types.DiscoveryInfo `json:"discoveryInfo,omitempty"`
}

// ValidateDiscoveryExtension validates a declaration's info against its
// embedded JSON Schema.
func ValidateDiscoveryExtension(extension types.DiscoveryExtension) ValidationResult {
	schemaJSON, err := json.Marshal(extension.Schema)
	if err != nil {
		return ValidationResult{Valid: false, Errors: []string{fmt.Sprintf("failed to marshal schema: %v", err)}}
	}
	infoJSON, err := json.Marshal(extension.Info)
	if err != nil {
		return ValidationResult{Valid: false, Errors: []string{fmt.Sprintf("failed to marshal info: %v", err)}}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewBytesLoader(infoJSON),
	)
	if err != nil {
		return ValidationResult{Valid: false, Errors: []string{fmt.Sprintf("schema validation failed: %v", err)}}
	}

	if result.Valid() {
		return ValidationResult{Valid: true}
	}

	var errors []string
	for _, desc := range result.Errors() {
		errors = append(errors, fmt.Sprintf("%s: %s", desc.Context().String(), desc.Description()))
	}
	return ValidationResult{Valid: false, Errors: errors}
}

// ExtractDiscoveryInfo pulls discovery information out of a verified
// payment. V2 payloads carry it in extensions; v1 requirements carry it in
// outputSchema. A payment with no discovery info returns (nil, nil).
func ExtractDiscoveryInfo(payloadBytes, requirementsBytes []byte, validate bool) (*DiscoveredResource, error) {
	version, err := x402types.DetectVersion(payloadBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse version: %w", err)
	}

	var discoveryInfo *types.DiscoveryInfo
	var resourceURL string

	switch version {
	case 2:
		var payload x402.PaymentPayload
		if err := json.Unmarshal(payloadBytes, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal v2 payload: %w", err)
		}

		if payload.Resource != nil {
			resourceURL = payload.Resource.URL
		}

		bazaarExt, ok := payload.Extensions[types.BAZAAR]
		if !ok {
			return nil, nil
		}

		extensionJSON, err := json.Marshal(bazaarExt)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal bazaar extension: %w", err)
		}
		var extension types.DiscoveryExtension
		if err := json.Unmarshal(extensionJSON, &extension); err != nil {
			return nil, fmt.Errorf("v2 discovery extension extraction failed: %w", err)
		}

		if validate {
			result := ValidateDiscoveryExtension(extension)
			if !result.Valid {
				return nil, fmt.Errorf("v2 discovery extension validation failed: %s", result.Errors)
			}
		}
		discoveryInfo = &extension.Info

	case 1:
		var requirementsV1 x402types.PaymentRequirementsV1
		if err := json.Unmarshal(requirementsBytes, &requirementsV1); err != nil {
			return nil, fmt.Errorf("failed to unmarshal v1 requirements: %w", err)
		}

		resourceURL = requirementsV1.Resource

		if requirementsV1.OutputSchema == nil {
			return nil, nil
		}
		var info types.DiscoveryInfo
		if err := json.Unmarshal(*requirementsV1.OutputSchema, &info); err != nil {
			return nil, fmt.Errorf("v1 discovery extraction failed: %w", err)
		}
		discoveryInfo = &info

	default:
		return nil, fmt.Errorf("unsupported version: %d", version)
	}

	if discoveryInfo == nil {
		return nil, nil
	}

	method := extractMethod(discoveryInfo)
	if method == "" {
		return nil, fmt.Errorf("failed to extract method from discovery info")
	}

	return &DiscoveredResource{
		ResourceURL:   resourceURL,
		Method:        method,
		X402Version:   version,
		DiscoveryInfo: discoveryInfo,
	}, nil
}

// extractMethod reads the method out of the declared input, which after a
// JSON round-trip arrives as a plain map.
func extractMethod(info *types.DiscoveryInfo) string {
	switch input := info.Input.(type) {
	case types.QueryInput:
		return string(input.Method)
	case types.BodyInput:
		return string(input.Method)
	case map[string]interface{}:
		if method, ok := input["method"].(string); ok {
			return method
		}
	}
	return ""
}
