package mcp

import (
	"encoding/json"
	"testing"

	x402 "github.com/x402-foundation/x402-go"
)

func TestExtractPaymentFromMeta(t *testing.T) {
	tests := []struct {
		name    string
		params  map[string]interface{}
		wantNil bool
	}{
		{
			name:    "no _meta",
			params:  map[string]interface{}{"name": "test"},
			wantNil: true,
		},
		{
			name:    "no payment in _meta",
			params:  map[string]interface{}{"_meta": map[string]interface{}{}},
			wantNil: true,
		},
		{
			name: "payment without payload",
			params: map[string]interface{}{
				"_meta": map[string]interface{}{
					MCP_PAYMENT_META_KEY: map[string]interface{}{"x402Version": 2},
				},
			},
			wantNil: true,
		},
		{
			name: "valid payment",
			params: map[string]interface{}{
				"_meta": map[string]interface{}{
					MCP_PAYMENT_META_KEY: map[string]interface{}{
						"x402Version": 2,
						"accepted": map[string]interface{}{
							"scheme":  "exact",
							"network": "eip155:84532",
						},
						"payload": map[string]interface{}{"signature": "0x123"},
					},
				},
			},
			wantNil: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ExtractPaymentFromMeta(tt.params)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantNil && result != nil {
				t.Errorf("expected nil payload, got %v", result)
			}
			if !tt.wantNil && result == nil {
				t.Error("expected payload, got nil")
			}
		})
	}
}

func TestAttachPaymentToMeta(t *testing.T) {
	payload := x402.PaymentPayload{
		X402Version: 2,
		Payload:     map[string]interface{}{"signature": "0x123"},
	}
	params := map[string]interface{}{
		"name":      "test",
		"arguments": map[string]interface{}{"city": "NYC"},
	}

	result := AttachPaymentToMeta(params, payload)

	meta, ok := result["_meta"].(map[string]interface{})
	if !ok {
		t.Fatal("expected _meta to be set")
	}
	if meta[MCP_PAYMENT_META_KEY] == nil {
		t.Fatal("expected payment under the payment meta key")
	}
	if _, mutated := params["_meta"]; mutated {
		t.Error("input params must not be mutated")
	}
}

func TestExtractPaymentRequiredFromResult(t *testing.T) {
	paymentRequired := x402.PaymentRequired{
		X402Version: 2,
		Accepts: []x402.PaymentRequirements{
			{Scheme: "exact", Network: "eip155:84532", Amount: "1000"},
		},
	}

	body, _ := json.Marshal(paymentRequired)
	var structured map[string]interface{}
	if err := json.Unmarshal(body, &structured); err != nil {
		t.Fatalf("failed to build structured content: %v", err)
	}

	// structuredContent path.
	extracted, err := ExtractPaymentRequiredFromResult(MCPToolResult{
		IsError:           true,
		StructuredContent: structured,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if extracted == nil || len(extracted.Accepts) != 1 || extracted.Accepts[0].Scheme != "exact" {
		t.Fatalf("expected payment required from structured content, got %v", extracted)
	}

	// content[0].text fallback.
	extracted, err = ExtractPaymentRequiredFromResult(MCPToolResult{
		IsError: true,
		Content: []MCPContentItem{{Type: "text", Text: string(body)}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if extracted == nil || extracted.Accepts[0].Network != "eip155:84532" {
		t.Fatalf("expected payment required from text content, got %v", extracted)
	}

	// Non-error results never yield payment required.
	extracted, _ = ExtractPaymentRequiredFromResult(MCPToolResult{
		IsError:           false,
		StructuredContent: structured,
	})
	if extracted != nil {
		t.Error("expected nil for non-error result")
	}
}

func TestPaymentResponseMetaRoundTrip(t *testing.T) {
	response := x402.SettleResponse{
		Success:     true,
		Transaction: "0xabc",
		Network:     "eip155:8453",
		Payer:       "0xpayer",
	}

	result := AttachPaymentResponseToMeta(MCPToolResult{}, response)
	extracted, err := ExtractPaymentResponseFromMeta(result)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if extracted == nil || extracted.Transaction != "0xabc" {
		t.Fatalf("expected round-tripped settle response, got %v", extracted)
	}

	// The decoded-JSON shape (map) extracts too.
	result.Meta[MCP_PAYMENT_RESPONSE_META_KEY] = map[string]interface{}{
		"success":     true,
		"transaction": "0xdef",
		"network":     "eip155:8453",
	}
	extracted, err = ExtractPaymentResponseFromMeta(result)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if extracted == nil || extracted.Transaction != "0xdef" {
		t.Fatalf("expected settle response from map, got %v", extracted)
	}
}

func TestCreateToolResourceUrl(t *testing.T) {
	if got := CreateToolResourceUrl("weather", ""); got != "mcp://tool/weather" {
		t.Errorf("expected mcp://tool/weather, got %s", got)
	}
	if got := CreateToolResourceUrl("weather", "https://api.example.com/weather"); got != "https://api.example.com/weather" {
		t.Errorf("expected custom URL to win, got %s", got)
	}
}

func TestExtractPaymentRequiredFromError(t *testing.T) {
	paymentRequired := map[string]interface{}{
		"x402Version": float64(2),
		"accepts": []interface{}{
			map[string]interface{}{"scheme": "exact", "network": "eip155:84532"},
		},
	}

	pr, err := ExtractPaymentRequiredFromError(map[string]interface{}{
		"code": float64(402),
		"data": paymentRequired,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pr == nil || pr.Accepts[0].Scheme != "exact" {
		t.Fatalf("expected payment required from 402 error, got %v", pr)
	}

	pr, _ = ExtractPaymentRequiredFromError(map[string]interface{}{
		"code": float64(500),
		"data": paymentRequired,
	})
	if pr != nil {
		t.Error("expected nil for non-402 error")
	}

	pr, _ = ExtractPaymentRequiredFromError("not an object")
	if pr != nil {
		t.Error("expected nil for non-object error")
	}
}

func TestIsPaymentRequiredError(t *testing.T) {
	err := CreatePaymentRequiredError("Payment required", nil)
	if !IsPaymentRequiredError(err) {
		t.Error("expected PaymentRequiredError to be detected")
	}
	if IsPaymentRequiredError(nil) {
		t.Error("expected nil to not be a PaymentRequiredError")
	}
	if err.Code != MCP_PAYMENT_REQUIRED_CODE {
		t.Errorf("expected code 402, got %d", err.Code)
	}
}
