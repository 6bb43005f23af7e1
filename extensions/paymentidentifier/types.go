// Package paymentidentifier implements the payment-identifier extension:
// client-supplied idempotency keys attached to payment payloads.
package paymentidentifier

import (
	"regexp"

	"github.com/x402-foundation/x402-go/extensions/types"
)

// PAYMENT_IDENTIFIER is the extension key in extensions maps.
const PAYMENT_IDENTIFIER = types.PAYMENT_IDENTIFIER

// Payment ID format constraints.
const (
	PAYMENT_ID_MIN_LENGTH = 16
	PAYMENT_ID_MAX_LENGTH = 128
)

// PAYMENT_ID_PATTERN restricts IDs to URL-safe characters.
var PAYMENT_ID_PATTERN = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// PaymentIdentifierInfo is the info half of the extension declaration.
// Servers set Required; clients fill ID.
type PaymentIdentifierInfo struct {
	Required bool   `json:"required"`
	ID       string `json:"id,omitempty"`
}

// PaymentIdentifierExtension is the full extension payload.
type PaymentIdentifierExtension struct {
	Info   PaymentIdentifierInfo  `json:"info"`
	Schema map[string]interface{} `json:"schema,omitempty"`
}

// ValidationResult reports whether an extension payload is well formed.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// DeclarePaymentIdentifierExtension builds the server-side declaration for
// a PaymentRequired response.
func DeclarePaymentIdentifierExtension(required bool) PaymentIdentifierExtension {
	return PaymentIdentifierExtension{
		Info: PaymentIdentifierInfo{Required: required},
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"info": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"required": map[string]interface{}{"type": "boolean"},
						"id": map[string]interface{}{
							"type":      "string",
							"minLength": PAYMENT_ID_MIN_LENGTH,
							"maxLength": PAYMENT_ID_MAX_LENGTH,
							"pattern":   PAYMENT_ID_PATTERN.String(),
						},
					},
					"required": []string{"required"},
				},
			},
			"required": []string{"info"},
		},
	}
}
