package paymentidentifier

import (
	"encoding/json"
	"fmt"

	x402 "github.com/x402-foundation/x402-go"
)

// ExtractPaymentIdentifier returns the payment ID carried in a payload, or
// empty string when the extension is absent. With validate set, a malformed
// ID is an error rather than an empty result.
func ExtractPaymentIdentifier(payload x402.PaymentPayload, validate bool) (string, error) {
	if payload.Extensions == nil {
		return "", nil
	}

	ext, ok := payload.Extensions[PAYMENT_IDENTIFIER]
	if !ok {
		return "", nil
	}

	extBytes, err := json.Marshal(ext)
	if err != nil {
		return "", fmt.Errorf("failed to marshal extension: %w", err)
	}
	var paymentExt PaymentIdentifierExtension
	if err := json.Unmarshal(extBytes, &paymentExt); err != nil {
		return "", fmt.Errorf("failed to unmarshal extension: %w", err)
	}

	if paymentExt.Info.ID == "" {
		return "", nil
	}
	if validate && !IsValidPaymentID(paymentExt.Info.ID) {
		return "", fmt.Errorf("invalid payment ID format")
	}
	return paymentExt.Info.ID, nil
}

// ExtractPaymentIdentifierFromBytes extracts the payment ID from raw
// payload bytes. V1 payloads have no extensions and always yield "".
func ExtractPaymentIdentifierFromBytes(payloadBytes []byte, validate bool) (string, error) {
	var versionCheck struct {
		X402Version int `json:"x402Version"`
	}
	if err := json.Unmarshal(payloadBytes, &versionCheck); err != nil {
		return "", fmt.Errorf("failed to parse version: %w", err)
	}

	if versionCheck.X402Version == 1 {
		return "", nil
	}

	var payload x402.PaymentPayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return "", fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return ExtractPaymentIdentifier(payload, validate)
}

// ValidatePaymentIdentifier checks the structure of an extension payload
// and the format of its ID when present.
func ValidatePaymentIdentifier(extension interface{}) ValidationResult {
	if extension == nil {
		return ValidationResult{Valid: false, Errors: []string{"extension must be an object"}}
	}

	extBytes, err := json.Marshal(extension)
	if err != nil {
		return ValidationResult{Valid: false, Errors: []string{fmt.Sprintf("failed to marshal extension: %v", err)}}
	}

	var ext PaymentIdentifierExtension
	if err := json.Unmarshal(extBytes, &ext); err != nil {
		return ValidationResult{Valid: false, Errors: []string{fmt.Sprintf("extension must have an 'info' property: %v", err)}}
	}

	if ext.Info.ID != "" && !IsValidPaymentID(ext.Info.ID) {
		return ValidationResult{
			Valid: false,
			Errors: []string{fmt.Sprintf(
				"invalid payment ID format: must be %d-%d characters of alphanumerics, hyphens, and underscores",
				PAYMENT_ID_MIN_LENGTH, PAYMENT_ID_MAX_LENGTH)},
		}
	}
	return ValidationResult{Valid: true}
}

// HasPaymentIdentifier reports whether a payload carries the extension.
func HasPaymentIdentifier(payload x402.PaymentPayload) bool {
	if payload.Extensions == nil {
		return false
	}
	_, ok := payload.Extensions[PAYMENT_IDENTIFIER]
	return ok
}

// IsPaymentIdentifierRequired reads the required flag from a declaration.
func IsPaymentIdentifierRequired(extension interface{}) bool {
	if extension == nil {
		return false
	}
	extBytes, err := json.Marshal(extension)
	if err != nil {
		return false
	}
	var ext PaymentIdentifierExtension
	if err := json.Unmarshal(extBytes, &ext); err != nil {
		return false
	}
	return ext.Info.Required
}

// ValidatePaymentIdentifierRequirement checks that a payload satisfies the
// server's declaration: required and missing or malformed is invalid.
func ValidatePaymentIdentifierRequirement(payload x402.PaymentPayload, serverRequired bool) ValidationResult {
	if !serverRequired {
		return ValidationResult{Valid: true}
	}

	id, err := ExtractPaymentIdentifier(payload, false)
	if err != nil {
		return ValidationResult{Valid: false, Errors: []string{fmt.Sprintf("failed to extract payment identifier: %v", err)}}
	}
	if id == "" {
		return ValidationResult{Valid: false, Errors: []string{"server requires a payment identifier but none was provided"}}
	}
	if !IsValidPaymentID(id) {
		return ValidationResult{
			Valid: false,
			Errors: []string{fmt.Sprintf(
				"invalid payment ID format: must be %d-%d characters of alphanumerics, hyphens, and underscores",
				PAYMENT_ID_MIN_LENGTH, PAYMENT_ID_MAX_LENGTH)},
		}
	}
	return ValidationResult{Valid: true}
}

// ExtractPaymentIdentifierFromPaymentRequired reads the required flag from
// a serialized 402 response, for clients deciding whether to enrich.
func ExtractPaymentIdentifierFromPaymentRequired(paymentRequiredBytes []byte) (bool, error) {
	var versionCheck struct {
		X402Version int `json:"x402Version"`
	}
	if err := json.Unmarshal(paymentRequiredBytes, &versionCheck); err != nil {
		return false, fmt.Errorf("failed to parse version: %w", err)
	}

	if versionCheck.X402Version == 1 {
		return false, nil
	}

	var paymentRequired struct {
		Extensions map[string]interface{} `json:"extensions"`
	}
	if err := json.Unmarshal(paymentRequiredBytes, &paymentRequired); err != nil {
		return false, fmt.Errorf("failed to unmarshal payment required: %w", err)
	}

	ext, ok := paymentRequired.Extensions[PAYMENT_IDENTIFIER]
	if !ok {
		return false, nil
	}
	return IsPaymentIdentifierRequired(ext), nil
}
