package mcp

import (
	x402 "github.com/x402-foundation/x402-go"
)

const (
	// MCP_PAYMENT_REQUIRED_CODE is the JSON-RPC error code for payment
	// required, matching the HTTP status it mirrors.
	MCP_PAYMENT_REQUIRED_CODE = 402

	// MCP_PAYMENT_META_KEY is the _meta key carrying the payment payload
	// (client to server).
	MCP_PAYMENT_META_KEY = "x402/payment"

	// MCP_PAYMENT_RESPONSE_META_KEY is the _meta key carrying the settlement
	// result (server to client).
	MCP_PAYMENT_RESPONSE_META_KEY = "x402/payment-response"
)

// MCPToolContext describes the tool call being processed.
type MCPToolContext struct {
	ToolName  string
	Arguments map[string]interface{}
	Meta      map[string]interface{}
}

// PaymentRequiredContext is handed to client-side hooks when a tool demands
// payment.
type PaymentRequiredContext struct {
	ToolName        string
	Arguments       map[string]interface{}
	PaymentRequired x402.PaymentRequired
}

// PaymentRequiredHookResult lets a hook take over the payment decision:
// Abort cancels the call, a non-nil Payment is sent instead of creating one.
type PaymentRequiredHookResult struct {
	Payment *x402.PaymentPayload
	Abort   bool
}

// PaymentRequiredHook runs when a payment-required result is received.
type PaymentRequiredHook func(context PaymentRequiredContext) (*PaymentRequiredHookResult, error)

// BeforePaymentHook runs before the client creates a payment.
type BeforePaymentHook func(context PaymentRequiredContext) error

// AfterPaymentContext is handed to hooks after a paid call completes.
type AfterPaymentContext struct {
	ToolName       string
	PaymentPayload x402.PaymentPayload
	Result         MCPToolResult
	SettleResponse *x402.SettleResponse
}

// AfterPaymentHook runs after a payment was submitted with a tool call.
type AfterPaymentHook func(context AfterPaymentContext) error

// Options configures client-side payment behavior.
type Options struct {
	// AutoPayment controls whether payment-required results are paid
	// automatically. Nil defaults to true; set BoolPtr(false) to require
	// explicit CallToolWithPayment.
	AutoPayment *bool

	// OnPaymentRequested approves or denies a payment before it is created.
	// Return (false, nil) to deny.
	OnPaymentRequested func(context PaymentRequiredContext) (bool, error)
}

// BoolPtr is a convenience for Options.AutoPayment.
func BoolPtr(b bool) *bool {
	return &b
}

// MCPToolResult is the transport-neutral view of a tool call result.
type MCPToolResult struct {
	Content           []MCPContentItem
	IsError           bool
	Meta              map[string]interface{}
	StructuredContent map[string]interface{}
}

// MCPContentItem is one content block of a tool result.
type MCPContentItem struct {
	Type string
	Text string
}

// MCPToolCallResult is what the payment-aware client returns: the tool
// result plus what happened payment-wise.
type MCPToolCallResult struct {
	Content         []MCPContentItem
	IsError         bool
	PaymentResponse *x402.SettleResponse
	PaymentMade     bool
}

// PaymentWrapperConfig configures a server-side payment wrapper.
type PaymentWrapperConfig struct {
	Accepts  []x402.PaymentRequirements
	Resource *ResourceInfo
	Hooks    *PaymentWrapperHooks
}

// ResourceInfo is the tool's resource metadata for 402 responses.
type ResourceInfo struct {
	URL         string
	Description string
	MimeType    string
}

// PaymentWrapperHooks are the server-side extension points of a wrapped
// tool.
type PaymentWrapperHooks struct {
	OnBeforeExecution *BeforeExecutionHook
	OnAfterExecution  *AfterExecutionHook
	OnAfterSettlement *AfterSettlementHook
}

// ServerHookContext is the shared context of server-side hooks.
type ServerHookContext struct {
	ToolName            string
	Arguments           map[string]interface{}
	PaymentRequirements x402.PaymentRequirements
	PaymentPayload      x402.PaymentPayload
}

// BeforeExecutionHook runs after verification, before the tool executes.
// Returning false blocks execution.
type BeforeExecutionHook func(context ServerHookContext) (bool, error)

// AfterExecutionContext extends ServerHookContext with the tool result.
type AfterExecutionContext struct {
	ServerHookContext
	Result MCPToolResult
}

// AfterExecutionHook runs after the tool executes, before settlement.
// Errors are logged-and-ignored; they never fail the call.
type AfterExecutionHook func(context AfterExecutionContext) error

// SettlementContext extends ServerHookContext with the settlement result.
type SettlementContext struct {
	ServerHookContext
	Settlement x402.SettleResponse
}

// AfterSettlementHook runs after successful settlement.
type AfterSettlementHook func(context SettlementContext) error

// PaymentRequiredError is returned by the client when a tool demands payment
// and auto-payment is disabled or denied.
type PaymentRequiredError struct {
	Code            int
	Message         string
	PaymentRequired *x402.PaymentRequired
}

func (e *PaymentRequiredError) Error() string {
	return e.Message
}

// SchemeRegistration pairs a network with a client-side payment mechanism
// for the factory constructors. X402Version 0 means the current version.
type SchemeRegistration struct {
	Network     x402.Network
	Client      x402.SchemeNetworkClient
	X402Version int
}
