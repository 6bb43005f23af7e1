package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	x402 "github.com/x402-foundation/x402-go"
)

// ToolHandler is the official SDK's tool handler signature.
type ToolHandler func(ctx context.Context, request *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error)

// PaymentWrapper gates tool handlers behind the verify/execute/settle flow.
type PaymentWrapper struct {
	server *x402.X402ResourceServer
	config PaymentWrapperConfig
}

// NewPaymentWrapper builds a wrapper for the given resource server and
// config. Panics when config.Accepts is empty: a paid tool without payment
// options is a programming error.
func NewPaymentWrapper(server *x402.X402ResourceServer, config PaymentWrapperConfig) *PaymentWrapper {
	if len(config.Accepts) == 0 {
		panic("PaymentWrapperConfig.Accepts must have at least one payment requirement")
	}
	return &PaymentWrapper{server: server, config: config}
}

// CreatePaymentWrapper is the functional form of NewPaymentWrapper:
//
//	wrap := mcp.CreatePaymentWrapper(server, config)
//	mcpServer.AddTool(tool, wrap(handler))
func CreatePaymentWrapper(server *x402.X402ResourceServer, config PaymentWrapperConfig) func(handler ToolHandler) ToolHandler {
	return NewPaymentWrapper(server, config).Wrap
}

// Wrap returns a handler that requires a verified payment before running
// the tool and settles it after the tool succeeds. A tool-level error result
// skips settlement, so callers are never charged for failed executions.
func (w *PaymentWrapper) Wrap(handler ToolHandler) ToolHandler {
	return func(ctx context.Context, request *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		toolName := request.Params.Name
		if toolName == "" {
			toolName = "paid_tool"
			if w.config.Resource != nil && w.config.Resource.URL != "" {
				toolName = toolNameFromResourceURL(w.config.Resource.URL)
			}
		}

		var args map[string]interface{}
		if len(request.Params.Arguments) > 0 {
			_ = json.Unmarshal(request.Params.Arguments, &args)
		}

		payload, err := extractPaymentFromMetaMap(map[string]interface{}(request.Params.Meta))
		if err != nil || payload == nil {
			return w.paymentRequiredResult(toolName, "Payment required to access this tool")
		}

		payloadBytes, err := json.Marshal(payload)
		if err != nil {
			return w.paymentRequiredResult(toolName, fmt.Sprintf("invalid payment payload: %v", err))
		}

		matched := w.server.FindMatchingRequirements(w.config.Accepts, payloadBytes)
		if matched == nil {
			return w.paymentRequiredResult(toolName, "No matching payment requirements found")
		}
		requirementsBytes, err := json.Marshal(matched)
		if err != nil {
			return w.paymentRequiredResult(toolName, fmt.Sprintf("invalid payment requirements: %v", err))
		}

		verifyResult, err := w.server.VerifyPayment(ctx, payloadBytes, requirementsBytes)
		if err != nil {
			return w.paymentRequiredResult(toolName, fmt.Sprintf("Payment verification error: %v", err))
		}
		if !verifyResult.IsValid {
			reason := verifyResult.InvalidReason
			if reason == "" {
				reason = "Payment verification failed"
			}
			return w.paymentRequiredResult(toolName, reason)
		}

		hookContext := ServerHookContext{
			ToolName:            toolName,
			Arguments:           args,
			PaymentRequirements: *matched,
			PaymentPayload:      *payload,
		}

		if w.config.Hooks != nil && w.config.Hooks.OnBeforeExecution != nil {
			proceed, hookErr := (*w.config.Hooks.OnBeforeExecution)(hookContext)
			if hookErr != nil {
				return w.paymentRequiredResult(toolName, hookErr.Error())
			}
			if !proceed {
				return w.paymentRequiredResult(toolName, "Execution blocked by hook")
			}
		}

		result, err := handler(ctx, request)
		if err != nil {
			return result, err
		}

		if w.config.Hooks != nil && w.config.Hooks.OnAfterExecution != nil {
			_ = (*w.config.Hooks.OnAfterExecution)(AfterExecutionContext{
				ServerHookContext: hookContext,
				Result:            toMCPToolResult(result),
			})
		}

		if result.IsError {
			return result, nil
		}

		settleResult, err := w.server.SettlePayment(ctx, payloadBytes, requirementsBytes)
		if err != nil || !settleResult.Success {
			reason := settleResult.ErrorReason
			if err != nil {
				reason = err.Error()
			}
			return w.settlementFailedResult(toolName, matched.Network, reason)
		}

		if w.config.Hooks != nil && w.config.Hooks.OnAfterSettlement != nil {
			_ = (*w.config.Hooks.OnAfterSettlement)(SettlementContext{
				ServerHookContext: hookContext,
				Settlement:        settleResult,
			})
		}

		if result.Meta == nil {
			result.Meta = mcpsdk.Meta{}
		}
		result.Meta[MCP_PAYMENT_RESPONSE_META_KEY] = settleResult

		return result, nil
	}
}

// paymentRequiredResult builds the 402-equivalent tool result: IsError with
// the PaymentRequired body in both structuredContent and content[0].text.
func (w *PaymentWrapper) paymentRequiredResult(toolName string, errorMessage string) (*mcpsdk.CallToolResult, error) {
	paymentRequired := w.server.CreatePaymentRequiredResponse(
		w.config.Accepts,
		w.resourceInfo(toolName),
		errorMessage,
		nil,
	)

	body, err := json.Marshal(paymentRequired)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment required: %w", err)
	}
	var structured map[string]interface{}
	if err := json.Unmarshal(body, &structured); err != nil {
		return nil, fmt.Errorf("failed to build structured content: %w", err)
	}

	return &mcpsdk.CallToolResult{
		IsError:           true,
		StructuredContent: structured,
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(body)},
		},
	}, nil
}

// settlementFailedResult is a payment-required result that also carries the
// failed settlement under the payment-response key, so clients see why their
// verified payment did not go through.
func (w *PaymentWrapper) settlementFailedResult(toolName string, network x402.Network, errorMessage string) (*mcpsdk.CallToolResult, error) {
	paymentRequired := w.server.CreatePaymentRequiredResponse(
		w.config.Accepts,
		w.resourceInfo(toolName),
		fmt.Sprintf("Payment settlement failed: %s", errorMessage),
		nil,
	)

	body, err := json.Marshal(paymentRequired)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment required: %w", err)
	}
	var structured map[string]interface{}
	if err := json.Unmarshal(body, &structured); err != nil {
		return nil, fmt.Errorf("failed to build structured content: %w", err)
	}

	structured[MCP_PAYMENT_RESPONSE_META_KEY] = map[string]interface{}{
		"success":     false,
		"errorReason": errorMessage,
		"transaction": "",
		"network":     network,
	}

	text, err := json.Marshal(structured)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settlement failure: %w", err)
	}

	return &mcpsdk.CallToolResult{
		IsError:           true,
		StructuredContent: structured,
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(text)},
		},
	}, nil
}

func (w *PaymentWrapper) resourceInfo(toolName string) x402.ResourceInfo {
	if w.config.Resource != nil {
		return x402.ResourceInfo{
			URL:         CreateToolResourceUrl(toolName, w.config.Resource.URL),
			Description: w.config.Resource.Description,
			MimeType:    w.config.Resource.MimeType,
		}
	}
	return x402.ResourceInfo{URL: CreateToolResourceUrl(toolName, "")}
}

// toMCPToolResult converts an SDK result into the transport-neutral shape
// used by hook contexts.
func toMCPToolResult(result *mcpsdk.CallToolResult) MCPToolResult {
	if result == nil {
		return MCPToolResult{}
	}

	content := make([]MCPContentItem, 0, len(result.Content))
	for _, item := range result.Content {
		if text, ok := item.(*mcpsdk.TextContent); ok {
			content = append(content, MCPContentItem{Type: "text", Text: text.Text})
		}
	}

	out := MCPToolResult{
		Content: content,
		IsError: result.IsError,
	}
	if structured, ok := result.StructuredContent.(map[string]interface{}); ok {
		out.StructuredContent = structured
	}
	if result.Meta != nil {
		out.Meta = map[string]interface{}(result.Meta)
	}
	return out
}
