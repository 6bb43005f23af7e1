package http

import (
	"encoding/json"
	"strings"
	"testing"

	x402 "github.com/x402-foundation/x402-go"
	"github.com/x402-foundation/x402-go/types"
)

func TestPaymentRequiredHeaderRoundTrip(t *testing.T) {
	required := x402.PaymentRequired{
		X402Version: 2,
		Error:       "Payment required",
		Accepts: []x402.PaymentRequirements{
			{
				Scheme:  "exact",
				Network: "eip155:8453",
				Asset:   "0xAsset",
				Amount:  "1000",
				PayTo:   "0xPayTo",
			},
		},
	}

	header, err := EncodePaymentRequiredHeader(required)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := DecodePaymentRequiredHeader(header)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.X402Version != 2 || len(decoded.Accepts) != 1 {
		t.Fatalf("unexpected decoded value: %+v", decoded)
	}
	if decoded.Accepts[0].Amount != "1000" {
		t.Errorf("unexpected amount: %s", decoded.Accepts[0].Amount)
	}
}

func TestDecodePaymentRequiredHeaderErrors(t *testing.T) {
	if _, err := DecodePaymentRequiredHeader("!!not-base64!!"); err == nil {
		t.Error("expected invalid base64 to error")
	}
	if _, err := DecodePaymentRequiredHeader("bm90IGpzb24="); err == nil {
		t.Error("expected invalid JSON to error")
	}
}

func TestPaymentResponseHeaderRoundTrip(t *testing.T) {
	response := x402.SettleResponse{
		Success:     true,
		Transaction: "0xabc",
		Network:     "eip155:8453",
		Payer:       "0xPayer",
	}

	header, err := EncodePaymentResponseHeader(response)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := DecodePaymentResponseHeader(header)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !decoded.Success || decoded.Transaction != "0xabc" || decoded.Payer != "0xPayer" {
		t.Errorf("unexpected decoded value: %+v", decoded)
	}
}

func TestPaymentHeaderNames(t *testing.T) {
	if got := PaymentHeaderName(1); got != HeaderPaymentV1 {
		t.Errorf("expected %s for v1, got %s", HeaderPaymentV1, got)
	}
	if got := PaymentHeaderName(2); got != HeaderPaymentSignature {
		t.Errorf("expected %s for v2, got %s", HeaderPaymentSignature, got)
	}
	if got := PaymentResponseHeaderName(1); got != HeaderPaymentResponseV1 {
		t.Errorf("expected %s for v1, got %s", HeaderPaymentResponseV1, got)
	}
	if got := PaymentResponseHeaderName(2); got != HeaderPaymentResponse {
		t.Errorf("expected %s for v2, got %s", HeaderPaymentResponse, got)
	}
}

func TestExtractPaymentHeader(t *testing.T) {
	value, ok := ExtractPaymentHeader(map[string]string{"payment-signature": "abc"})
	if !ok || value != "abc" {
		t.Errorf("expected case-insensitive lookup, got %q %v", value, ok)
	}

	value, ok = ExtractPaymentHeader(map[string]string{"X-Payment": "legacy"})
	if !ok || value != "legacy" {
		t.Errorf("expected legacy header to be found, got %q %v", value, ok)
	}

	// V2 wins when both are present.
	value, ok = ExtractPaymentHeader(map[string]string{
		"PAYMENT-SIGNATURE": "new",
		"X-PAYMENT":         "legacy",
	})
	if !ok || value != "new" {
		t.Errorf("expected the v2 header to win, got %q %v", value, ok)
	}

	if _, ok := ExtractPaymentHeader(map[string]string{"Content-Type": "application/json"}); ok {
		t.Error("expected no payment header to be found")
	}
	if _, ok := ExtractPaymentHeader(map[string]string{"PAYMENT-SIGNATURE": ""}); ok {
		t.Error("expected an empty header to count as absent")
	}
}

func TestValidateHeaderVersion(t *testing.T) {
	if err := ValidateHeaderVersion(HeaderPaymentSignature, 2); err != nil {
		t.Errorf("expected v2 in PAYMENT-SIGNATURE to be accepted, got %v", err)
	}
	if err := ValidateHeaderVersion(HeaderPaymentV1, 1); err != nil {
		t.Errorf("expected v1 in X-PAYMENT to be accepted, got %v", err)
	}

	err := ValidateHeaderVersion(HeaderPaymentSignature, 1)
	if err == nil {
		t.Fatal("expected a v1 payload in the v2 header to be rejected")
	}
	if !strings.Contains(err.Error(), "invalid payment header format") {
		t.Errorf("unexpected error: %v", err)
	}

	if err := ValidateHeaderVersion(HeaderPaymentV1, 2); err == nil {
		t.Error("expected a v2 payload in the v1 header to be rejected")
	}
}

func TestMarshalPaymentPayloadWireShapes(t *testing.T) {
	v1 := x402.PaymentPayload{
		X402Version: 1,
		Scheme:      "exact",
		Network:     "base-sepolia",
		Payload:     map[string]interface{}{"signature": "0x0"},
	}
	data, err := marshalPaymentPayload(v1)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var wireV1 types.PaymentPayloadV1
	if err := json.Unmarshal(data, &wireV1); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if wireV1.Scheme != "exact" || wireV1.Network != "base-sepolia" {
		t.Errorf("unexpected v1 wire payload: %+v", wireV1)
	}

	v2 := x402.PaymentPayload{
		X402Version: 2,
		Accepted:    x402.PaymentRequirements{Scheme: "exact", Network: "eip155:8453"},
		Payload:     map[string]interface{}{"signature": "0x0"},
	}
	data, err = marshalPaymentPayload(v2)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var wireV2 x402.PaymentPayload
	if err := json.Unmarshal(data, &wireV2); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if wireV2.Accepted.Scheme != "exact" {
		t.Errorf("unexpected v2 wire payload: %+v", wireV2)
	}
}
