package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	x402 "github.com/x402-foundation/x402-go"
)

// ExtractPaymentFromMeta pulls the payment payload out of a request's _meta
// field. Absent or malformed payments return (nil, nil): "no payment" is a
// state, not an error.
func ExtractPaymentFromMeta(params map[string]interface{}) (*x402.PaymentPayload, error) {
	meta, ok := params["_meta"].(map[string]interface{})
	if !ok {
		return nil, nil
	}
	return extractPaymentFromMetaMap(meta)
}

func extractPaymentFromMetaMap(meta map[string]interface{}) (*x402.PaymentPayload, error) {
	paymentData, ok := meta[MCP_PAYMENT_META_KEY]
	if !ok {
		return nil, nil
	}

	// The payment may arrive as a typed struct (same-process calls) or a
	// decoded JSON map; round-trip through JSON to normalize.
	paymentBytes, err := json.Marshal(paymentData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment data: %w", err)
	}

	var payload x402.PaymentPayload
	if err := json.Unmarshal(paymentBytes, &payload); err != nil {
		return nil, nil
	}
	if payload.X402Version == 0 || payload.Payload == nil {
		return nil, nil
	}
	return &payload, nil
}

// AttachPaymentToMeta returns a copy of params with the payment payload set
// under the _meta payment key.
func AttachPaymentToMeta(params map[string]interface{}, payload x402.PaymentPayload) map[string]interface{} {
	result := make(map[string]interface{}, len(params)+1)
	for k, v := range params {
		result[k] = v
	}

	meta := make(map[string]interface{})
	if existingMeta, ok := result["_meta"].(map[string]interface{}); ok {
		for k, v := range existingMeta {
			meta[k] = v
		}
	}

	meta[MCP_PAYMENT_META_KEY] = payload
	result["_meta"] = meta
	return result
}

// ExtractPaymentResponseFromMeta reads the settlement result a server
// attached to a tool result.
func ExtractPaymentResponseFromMeta(result MCPToolResult) (*x402.SettleResponse, error) {
	if result.Meta == nil {
		return nil, nil
	}
	responseData, ok := result.Meta[MCP_PAYMENT_RESPONSE_META_KEY]
	if !ok {
		return nil, nil
	}

	if settleResp, ok := responseData.(x402.SettleResponse); ok {
		return &settleResp, nil
	}

	responseBytes, err := json.Marshal(responseData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment response: %w", err)
	}
	var response x402.SettleResponse
	if err := json.Unmarshal(responseBytes, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payment response: %w", err)
	}
	return &response, nil
}

// AttachPaymentResponseToMeta sets the settlement result on a tool result.
func AttachPaymentResponseToMeta(result MCPToolResult, response x402.SettleResponse) MCPToolResult {
	if result.Meta == nil {
		result.Meta = make(map[string]interface{})
	}
	result.Meta[MCP_PAYMENT_RESPONSE_META_KEY] = response
	return result
}

// ExtractPaymentRequiredFromResult recovers a PaymentRequired body from an
// error tool result, preferring structuredContent over content[0].text.
func ExtractPaymentRequiredFromResult(result MCPToolResult) (*x402.PaymentRequired, error) {
	if !result.IsError {
		return nil, nil
	}

	if result.StructuredContent != nil {
		if pr := extractPaymentRequiredFromObject(result.StructuredContent); pr != nil {
			return pr, nil
		}
	}

	if len(result.Content) > 0 {
		first := result.Content[0]
		if first.Type == "text" && first.Text != "" {
			var parsed map[string]interface{}
			if err := json.Unmarshal([]byte(first.Text), &parsed); err == nil {
				if pr := extractPaymentRequiredFromObject(parsed); pr != nil {
					return pr, nil
				}
			}
		}
	}

	return nil, nil
}

func extractPaymentRequiredFromObject(obj map[string]interface{}) *x402.PaymentRequired {
	if _, hasVersion := obj["x402Version"]; !hasVersion {
		return nil
	}
	accepts, ok := obj["accepts"].([]interface{})
	if !ok || len(accepts) == 0 {
		return nil
	}

	bytes, err := json.Marshal(obj)
	if err != nil {
		return nil
	}
	var pr x402.PaymentRequired
	if err := json.Unmarshal(bytes, &pr); err != nil {
		return nil
	}
	return &pr
}

// CreateToolResourceUrl derives the resource URL for a tool, preferring a
// caller-supplied URL over the mcp://tool/ convention.
func CreateToolResourceUrl(toolName string, customUrl string) string {
	if customUrl != "" {
		return customUrl
	}
	return "mcp://tool/" + toolName
}

// toolNameFromResourceURL is the inverse of CreateToolResourceUrl for
// mcp://tool/ URLs.
func toolNameFromResourceURL(url string) string {
	return strings.TrimPrefix(url, "mcp://tool/")
}

// IsObject reports whether value is a non-nil JSON object.
func IsObject(value interface{}) bool {
	if value == nil {
		return false
	}
	_, ok := value.(map[string]interface{})
	return ok
}

// CreatePaymentRequiredError builds a PaymentRequiredError carrying the 402
// body.
func CreatePaymentRequiredError(message string, paymentRequired *x402.PaymentRequired) *PaymentRequiredError {
	return &PaymentRequiredError{
		Code:            MCP_PAYMENT_REQUIRED_CODE,
		Message:         message,
		PaymentRequired: paymentRequired,
	}
}

// IsPaymentRequiredError reports whether err is (or wraps) a
// PaymentRequiredError.
func IsPaymentRequiredError(err error) bool {
	if err == nil {
		return false
	}
	var target *PaymentRequiredError
	return errors.As(err, &target)
}

// ExtractPaymentRequiredFromError recovers a PaymentRequired body from a
// decoded JSON-RPC error object with code 402.
func ExtractPaymentRequiredFromError(err interface{}) (*x402.PaymentRequired, error) {
	if !IsObject(err) {
		return nil, nil
	}
	errObj := err.(map[string]interface{})

	codeFloat, ok := errObj["code"].(float64)
	if !ok || int(codeFloat) != MCP_PAYMENT_REQUIRED_CODE {
		return nil, nil
	}

	dataObj, ok := errObj["data"].(map[string]interface{})
	if !ok {
		return nil, nil
	}
	return extractPaymentRequiredFromObject(dataObj), nil
}
