// Package http carries the HTTP transport binding of the x402 protocol:
// header codec, payment-aware client, remote facilitator client, and
// net/http middleware.
package http

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	x402 "github.com/x402-foundation/x402-go"
	"github.com/x402-foundation/x402-go/types"
)

// Protocol headers. V2 uses the PAYMENT-* family; v1 keeps the legacy X-*
// names for interoperability.
const (
	HeaderPaymentRequired   = "PAYMENT-REQUIRED"
	HeaderPaymentSignature  = "PAYMENT-SIGNATURE"
	HeaderPaymentResponse   = "PAYMENT-RESPONSE"
	HeaderPaymentV1         = "X-PAYMENT"
	HeaderPaymentResponseV1 = "X-PAYMENT-RESPONSE"
)

// EncodePaymentRequiredHeader encodes a 402 body for the v2 response header.
func EncodePaymentRequiredHeader(required x402.PaymentRequired) (string, error) {
	data, err := json.Marshal(required)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payment required: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodePaymentRequiredHeader decodes a v2 PAYMENT-REQUIRED header.
func DecodePaymentRequiredHeader(header string) (x402.PaymentRequired, error) {
	data, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return x402.PaymentRequired{}, fmt.Errorf("invalid base64 encoding: %w", err)
	}
	var required x402.PaymentRequired
	if err := json.Unmarshal(data, &required); err != nil {
		return x402.PaymentRequired{}, fmt.Errorf("invalid payment required JSON: %w", err)
	}
	return required, nil
}

// EncodePaymentResponseHeader encodes a settlement result for the response
// header. The same encoding serves both header names.
func EncodePaymentResponseHeader(response x402.SettleResponse) (string, error) {
	data, err := json.Marshal(response)
	if err != nil {
		return "", fmt.Errorf("failed to marshal settle response: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodePaymentResponseHeader decodes a PAYMENT-RESPONSE or
// X-PAYMENT-RESPONSE header.
func DecodePaymentResponseHeader(header string) (x402.SettleResponse, error) {
	data, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return x402.SettleResponse{}, fmt.Errorf("invalid base64 encoding: %w", err)
	}
	var response x402.SettleResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return x402.SettleResponse{}, fmt.Errorf("invalid settle response JSON: %w", err)
	}
	return response, nil
}

// PaymentHeaderName returns the request header a payload version travels in.
func PaymentHeaderName(version int) string {
	if version == 1 {
		return HeaderPaymentV1
	}
	return HeaderPaymentSignature
}

// PaymentResponseHeaderName returns the response header for a version.
func PaymentResponseHeaderName(version int) string {
	if version == 1 {
		return HeaderPaymentResponseV1
	}
	return HeaderPaymentResponse
}

// ExtractPaymentHeader finds the payment header on a request, checking the
// v2 name first, case-insensitively.
func ExtractPaymentHeader(headers map[string]string) (string, bool) {
	normalized := make(map[string]string, len(headers))
	for k, v := range headers {
		normalized[strings.ToUpper(k)] = v
	}
	if value, ok := normalized[HeaderPaymentSignature]; ok && value != "" {
		return value, true
	}
	if value, ok := normalized[HeaderPaymentV1]; ok && value != "" {
		return value, true
	}
	return "", false
}

// marshalPaymentPayload serializes a canonical payload into its wire shape.
func marshalPaymentPayload(payload x402.PaymentPayload) ([]byte, error) {
	if payload.X402Version == 1 {
		return json.Marshal(types.PaymentPayloadV1{
			X402Version: 1,
			Scheme:      payload.Scheme,
			Network:     string(payload.Network),
			Payload:     payload.Payload,
		})
	}
	return json.Marshal(payload)
}
