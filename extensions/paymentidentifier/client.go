package paymentidentifier

import (
	"encoding/json"
	"fmt"

	x402 "github.com/x402-foundation/x402-go"
)

// EnrichPaymentPayload fills in a generated payment ID when the server
// declared the payment-identifier extension. Payloads whose server did not
// declare the extension pass through unchanged, per the declaration-gated
// rule: clients never volunteer the extension.
func EnrichPaymentPayload(payload x402.PaymentPayload, prefix string) (x402.PaymentPayload, error) {
	if payload.X402Version == 1 || payload.Extensions == nil {
		return payload, nil
	}

	declared, ok := payload.Extensions[PAYMENT_IDENTIFIER]
	if !ok {
		return payload, nil
	}

	extBytes, err := json.Marshal(declared)
	if err != nil {
		return payload, fmt.Errorf("failed to marshal extension: %w", err)
	}
	var ext PaymentIdentifierExtension
	if err := json.Unmarshal(extBytes, &ext); err != nil {
		return payload, fmt.Errorf("malformed payment-identifier declaration: %w", err)
	}

	// Already enriched.
	if ext.Info.ID != "" {
		return payload, nil
	}

	ext.Info.ID = GeneratePaymentID(prefix)

	extensions := make(map[string]interface{}, len(payload.Extensions))
	for k, v := range payload.Extensions {
		extensions[k] = v
	}
	extensions[PAYMENT_IDENTIFIER] = ext
	payload.Extensions = extensions

	return payload, nil
}
