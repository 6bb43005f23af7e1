package mcp

import (
	"context"
	"fmt"

	x402 "github.com/x402-foundation/x402-go"
)

// X402MCPClient wraps an MCP client with automatic x402 payment handling:
// a payment-required tool result is paid and the call retried, transparently
// to the caller.
type X402MCPClient struct {
	mcpClient            MCPClientInterface
	paymentClient        *x402.X402Client
	options              Options
	paymentRequiredHooks []PaymentRequiredHook
	beforePaymentHooks   []BeforePaymentHook
	afterPaymentHooks    []AfterPaymentHook
}

// NewX402MCPClient wraps mcpClient with payment handling backed by
// paymentClient.
func NewX402MCPClient(mcpClient MCPClientInterface, paymentClient *x402.X402Client, options Options) *X402MCPClient {
	return &X402MCPClient{
		mcpClient:     mcpClient,
		paymentClient: paymentClient,
		options:       options,
	}
}

// NewX402MCPClientFromConfig builds the payment client from scheme
// registrations and wraps mcpClient with it.
func NewX402MCPClientFromConfig(mcpClient MCPClientInterface, schemes []SchemeRegistration, options Options) *X402MCPClient {
	paymentClient := x402.Newx402Client()
	for _, reg := range schemes {
		if reg.Client == nil {
			continue
		}
		if reg.X402Version == 1 {
			paymentClient.RegisterSchemeV1(reg.Network, reg.Client)
		} else {
			paymentClient.RegisterScheme(reg.Network, reg.Client)
		}
	}
	return NewX402MCPClient(mcpClient, paymentClient, options)
}

// WrapMCPClientWithPayment is an alias for NewX402MCPClient kept for
// symmetry with the HTTP package's WrapHTTPClientWithPayment.
func WrapMCPClientWithPayment(mcpClient MCPClientInterface, paymentClient *x402.X402Client, options Options) *X402MCPClient {
	return NewX402MCPClient(mcpClient, paymentClient, options)
}

// Client returns the underlying MCP client.
func (c *X402MCPClient) Client() MCPClientInterface {
	return c.mcpClient
}

// PaymentClient returns the underlying payment client.
func (c *X402MCPClient) PaymentClient() *x402.X402Client {
	return c.paymentClient
}

// OnPaymentRequired registers a hook that can abort the payment or supply a
// pre-built payload.
func (c *X402MCPClient) OnPaymentRequired(hook PaymentRequiredHook) *X402MCPClient {
	c.paymentRequiredHooks = append(c.paymentRequiredHooks, hook)
	return c
}

// OnBeforePayment registers a hook that runs before payment creation.
func (c *X402MCPClient) OnBeforePayment(hook BeforePaymentHook) *X402MCPClient {
	c.beforePaymentHooks = append(c.beforePaymentHooks, hook)
	return c
}

// OnAfterPayment registers a hook that runs after a paid call returns.
// Its errors are swallowed.
func (c *X402MCPClient) OnAfterPayment(hook AfterPaymentHook) *X402MCPClient {
	c.afterPaymentHooks = append(c.afterPaymentHooks, hook)
	return c
}

// CallTool calls a tool, paying automatically if the tool demands it and
// auto-payment is enabled (the default).
func (c *X402MCPClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*MCPToolCallResult, error) {
	result, err := c.mcpClient.CallTool(ctx, map[string]interface{}{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call tool: %w", err)
	}

	paymentRequired, err := ExtractPaymentRequiredFromResult(result)
	if err != nil {
		return nil, fmt.Errorf("failed to extract payment required: %w", err)
	}

	if paymentRequired == nil || len(paymentRequired.Accepts) == 0 {
		// Either a free tool, or a call that already carried payment and
		// came back with a settlement in _meta.
		settleResponse, err := ExtractPaymentResponseFromMeta(result)
		if err != nil {
			return nil, fmt.Errorf("failed to extract payment response: %w", err)
		}
		return &MCPToolCallResult{
			Content:         result.Content,
			IsError:         result.IsError,
			PaymentResponse: settleResponse,
			PaymentMade:     settleResponse != nil,
		}, nil
	}

	prCtx := PaymentRequiredContext{
		ToolName:        name,
		Arguments:       args,
		PaymentRequired: *paymentRequired,
	}

	for _, hook := range c.paymentRequiredHooks {
		hookResult, hookErr := hook(prCtx)
		if hookErr != nil {
			return nil, fmt.Errorf("payment required hook error: %w", hookErr)
		}
		if hookResult == nil {
			continue
		}
		if hookResult.Abort {
			return nil, CreatePaymentRequiredError("Payment aborted by hook", paymentRequired)
		}
		if hookResult.Payment != nil {
			return c.CallToolWithPayment(ctx, name, args, *hookResult.Payment)
		}
	}

	autoPayment := true
	if c.options.AutoPayment != nil {
		autoPayment = *c.options.AutoPayment
	}
	if !autoPayment {
		return nil, CreatePaymentRequiredError("Payment required", paymentRequired)
	}

	if c.options.OnPaymentRequested != nil {
		approved, reqErr := c.options.OnPaymentRequested(prCtx)
		if reqErr != nil {
			return nil, fmt.Errorf("payment request hook error: %w", reqErr)
		}
		if !approved {
			return nil, CreatePaymentRequiredError("Payment request denied", paymentRequired)
		}
	}

	for _, hook := range c.beforePaymentHooks {
		if hookErr := hook(prCtx); hookErr != nil {
			return nil, fmt.Errorf("before payment hook error: %w", hookErr)
		}
	}

	payload, err := c.paymentClient.CreatePaymentPayload(ctx, *paymentRequired)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment payload: %w", err)
	}

	return c.CallToolWithPayment(ctx, name, args, payload)
}

// CallToolWithPayment calls a tool carrying an explicit payment payload.
func (c *X402MCPClient) CallToolWithPayment(ctx context.Context, name string, args map[string]interface{}, payload x402.PaymentPayload) (*MCPToolCallResult, error) {
	params := AttachPaymentToMeta(map[string]interface{}{
		"name":      name,
		"arguments": args,
	}, payload)

	result, err := c.mcpClient.CallTool(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to call tool with payment: %w", err)
	}

	settleResponse, err := ExtractPaymentResponseFromMeta(result)
	if err != nil {
		return nil, fmt.Errorf("failed to extract payment response: %w", err)
	}

	afterCtx := AfterPaymentContext{
		ToolName:       name,
		PaymentPayload: payload,
		Result:         result,
		SettleResponse: settleResponse,
	}
	for _, hook := range c.afterPaymentHooks {
		_ = hook(afterCtx)
	}

	return &MCPToolCallResult{
		Content:         result.Content,
		IsError:         result.IsError,
		PaymentResponse: settleResponse,
		PaymentMade:     true,
	}, nil
}

// GetToolPaymentRequirements probes a tool for its payment requirements.
// This calls the tool without payment, so free tools WILL execute.
func (c *X402MCPClient) GetToolPaymentRequirements(ctx context.Context, name string, args map[string]interface{}) (*x402.PaymentRequired, error) {
	result, err := c.mcpClient.CallTool(ctx, map[string]interface{}{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call tool: %w", err)
	}
	return ExtractPaymentRequiredFromResult(result)
}

// Passthroughs to the underlying MCP client.

func (c *X402MCPClient) Connect(ctx context.Context, transport interface{}) error {
	return c.mcpClient.Connect(ctx, transport)
}

func (c *X402MCPClient) Close(ctx context.Context) error {
	return c.mcpClient.Close(ctx)
}

func (c *X402MCPClient) ListTools(ctx context.Context) (interface{}, error) {
	return c.mcpClient.ListTools(ctx)
}

func (c *X402MCPClient) ListResources(ctx context.Context) (interface{}, error) {
	return c.mcpClient.ListResources(ctx)
}

func (c *X402MCPClient) ReadResource(ctx context.Context, uri string) (interface{}, error) {
	return c.mcpClient.ReadResource(ctx, uri)
}

func (c *X402MCPClient) ListResourceTemplates(ctx context.Context) (interface{}, error) {
	return c.mcpClient.ListResourceTemplates(ctx)
}

func (c *X402MCPClient) SubscribeResource(ctx context.Context, uri string) error {
	return c.mcpClient.SubscribeResource(ctx, uri)
}

func (c *X402MCPClient) UnsubscribeResource(ctx context.Context, uri string) error {
	return c.mcpClient.UnsubscribeResource(ctx, uri)
}

func (c *X402MCPClient) ListPrompts(ctx context.Context) (interface{}, error) {
	return c.mcpClient.ListPrompts(ctx)
}

func (c *X402MCPClient) GetPrompt(ctx context.Context, name string) (interface{}, error) {
	return c.mcpClient.GetPrompt(ctx, name)
}

func (c *X402MCPClient) Ping(ctx context.Context) error {
	return c.mcpClient.Ping(ctx)
}

func (c *X402MCPClient) Complete(ctx context.Context, prompt string, cursor int) (interface{}, error) {
	return c.mcpClient.Complete(ctx, prompt, cursor)
}

func (c *X402MCPClient) SetLoggingLevel(ctx context.Context, level string) error {
	return c.mcpClient.SetLoggingLevel(ctx, level)
}

func (c *X402MCPClient) GetServerCapabilities(ctx context.Context) (interface{}, error) {
	return c.mcpClient.GetServerCapabilities(ctx)
}

func (c *X402MCPClient) GetServerVersion(ctx context.Context) (interface{}, error) {
	return c.mcpClient.GetServerVersion(ctx)
}

func (c *X402MCPClient) GetInstructions(ctx context.Context) (string, error) {
	return c.mcpClient.GetInstructions(ctx)
}

func (c *X402MCPClient) SendRootsListChanged(ctx context.Context) error {
	return c.mcpClient.SendRootsListChanged(ctx)
}
