package mcp

import (
	"context"
	"encoding/json"
	"testing"

	x402 "github.com/x402-foundation/x402-go"
)

// mockMCPClient scripts CallTool responses and records the calls it saw.
type mockMCPClient struct {
	calls    []map[string]interface{}
	callFunc func(call int, params map[string]interface{}) (MCPToolResult, error)
}

func (m *mockMCPClient) CallTool(ctx context.Context, params map[string]interface{}) (MCPToolResult, error) {
	call := len(m.calls)
	m.calls = append(m.calls, params)
	return m.callFunc(call, params)
}

func (m *mockMCPClient) Connect(ctx context.Context, transport interface{}) error { return nil }
func (m *mockMCPClient) Close(ctx context.Context) error                          { return nil }
func (m *mockMCPClient) ListTools(ctx context.Context) (interface{}, error)       { return nil, nil }
func (m *mockMCPClient) ListResources(ctx context.Context) (interface{}, error)   { return nil, nil }
func (m *mockMCPClient) ReadResource(ctx context.Context, uri string) (interface{}, error) {
	return nil, nil
}
func (m *mockMCPClient) ListResourceTemplates(ctx context.Context) (interface{}, error) {
	return nil, nil
}
func (m *mockMCPClient) SubscribeResource(ctx context.Context, uri string) error   { return nil }
func (m *mockMCPClient) UnsubscribeResource(ctx context.Context, uri string) error { return nil }
func (m *mockMCPClient) ListPrompts(ctx context.Context) (interface{}, error)      { return nil, nil }
func (m *mockMCPClient) GetPrompt(ctx context.Context, name string) (interface{}, error) {
	return nil, nil
}
func (m *mockMCPClient) GetServerCapabilities(ctx context.Context) (interface{}, error) {
	return nil, nil
}
func (m *mockMCPClient) GetServerVersion(ctx context.Context) (interface{}, error) { return nil, nil }
func (m *mockMCPClient) GetInstructions(ctx context.Context) (string, error)       { return "", nil }
func (m *mockMCPClient) Ping(ctx context.Context) error                            { return nil }
func (m *mockMCPClient) Complete(ctx context.Context, prompt string, cursor int) (interface{}, error) {
	return nil, nil
}
func (m *mockMCPClient) SetLoggingLevel(ctx context.Context, level string) error { return nil }
func (m *mockMCPClient) SendRootsListChanged(ctx context.Context) error          { return nil }

// cashClientScheme signs by prefixing the payer name with a tilde.
type cashClientScheme struct{}

func (c *cashClientScheme) Scheme() string { return "cash" }

func (c *cashClientScheme) CreatePaymentPayload(ctx context.Context, version int, requirements x402.PaymentRequirements) (x402.PartialPaymentPayload, error) {
	return x402.PartialPaymentPayload{
		X402Version: version,
		Payload:     map[string]interface{}{"signature": "~alice"},
	}, nil
}

func paymentRequiredResult(t *testing.T) MCPToolResult {
	t.Helper()
	body, err := json.Marshal(x402.PaymentRequired{
		X402Version: 2,
		Error:       "Payment required",
		Accepts: []x402.PaymentRequirements{
			{Scheme: "cash", Network: "x402:cash", Amount: "1000", PayTo: "bob"},
		},
	})
	if err != nil {
		t.Fatalf("failed to marshal payment required: %v", err)
	}
	var structured map[string]interface{}
	if err := json.Unmarshal(body, &structured); err != nil {
		t.Fatalf("failed to unmarshal payment required: %v", err)
	}
	return MCPToolResult{
		IsError:           true,
		StructuredContent: structured,
		Content:           []MCPContentItem{{Type: "text", Text: string(body)}},
	}
}

func newCashPaymentClient() *x402.X402Client {
	return x402.Newx402Client().RegisterScheme("x402:cash", &cashClientScheme{})
}

func TestClientCallToolFreeTool(t *testing.T) {
	mock := &mockMCPClient{
		callFunc: func(call int, params map[string]interface{}) (MCPToolResult, error) {
			return MCPToolResult{Content: []MCPContentItem{{Type: "text", Text: "free"}}}, nil
		},
	}
	client := NewX402MCPClient(mock, newCashPaymentClient(), Options{})

	result, err := client.CallTool(context.Background(), "free_tool", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.PaymentMade {
		t.Error("expected no payment for a free tool")
	}
	if len(mock.calls) != 1 {
		t.Errorf("expected 1 call, got %d", len(mock.calls))
	}
}

func TestClientCallToolAutoPayment(t *testing.T) {
	settle := x402.SettleResponse{Success: true, Transaction: "tx1", Network: "x402:cash"}
	mock := &mockMCPClient{}
	mock.callFunc = func(call int, params map[string]interface{}) (MCPToolResult, error) {
		if call == 0 {
			return paymentRequiredResult(t), nil
		}
		// The retry must carry the payment in _meta.
		meta, ok := params["_meta"].(map[string]interface{})
		if !ok || meta[MCP_PAYMENT_META_KEY] == nil {
			t.Error("expected payment attached to retry")
		}
		return AttachPaymentResponseToMeta(MCPToolResult{
			Content: []MCPContentItem{{Type: "text", Text: "paid"}},
		}, settle), nil
	}

	client := NewX402MCPClient(mock, newCashPaymentClient(), Options{})

	result, err := client.CallTool(context.Background(), "paid_tool", map[string]interface{}{"q": "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.PaymentMade {
		t.Error("expected payment to be made")
	}
	if result.PaymentResponse == nil || result.PaymentResponse.Transaction != "tx1" {
		t.Errorf("expected settle response, got %v", result.PaymentResponse)
	}
	if len(mock.calls) != 2 {
		t.Errorf("expected 2 calls, got %d", len(mock.calls))
	}
}

func TestClientCallToolAutoPaymentDisabled(t *testing.T) {
	mock := &mockMCPClient{
		callFunc: func(call int, params map[string]interface{}) (MCPToolResult, error) {
			return paymentRequiredResult(t), nil
		},
	}
	client := NewX402MCPClient(mock, newCashPaymentClient(), Options{AutoPayment: BoolPtr(false)})

	_, err := client.CallTool(context.Background(), "paid_tool", nil)
	if !IsPaymentRequiredError(err) {
		t.Fatalf("expected PaymentRequiredError, got %v", err)
	}
	if len(mock.calls) != 1 {
		t.Errorf("expected no retry, got %d calls", len(mock.calls))
	}
}

func TestClientCallToolPaymentDenied(t *testing.T) {
	mock := &mockMCPClient{
		callFunc: func(call int, params map[string]interface{}) (MCPToolResult, error) {
			return paymentRequiredResult(t), nil
		},
	}
	client := NewX402MCPClient(mock, newCashPaymentClient(), Options{
		OnPaymentRequested: func(context PaymentRequiredContext) (bool, error) {
			return false, nil
		},
	})

	_, err := client.CallTool(context.Background(), "paid_tool", nil)
	if !IsPaymentRequiredError(err) {
		t.Fatalf("expected PaymentRequiredError on denial, got %v", err)
	}
}

func TestClientPaymentRequiredHookAbort(t *testing.T) {
	mock := &mockMCPClient{
		callFunc: func(call int, params map[string]interface{}) (MCPToolResult, error) {
			return paymentRequiredResult(t), nil
		},
	}
	client := NewX402MCPClient(mock, newCashPaymentClient(), Options{})
	client.OnPaymentRequired(func(context PaymentRequiredContext) (*PaymentRequiredHookResult, error) {
		return &PaymentRequiredHookResult{Abort: true}, nil
	})

	_, err := client.CallTool(context.Background(), "paid_tool", nil)
	if !IsPaymentRequiredError(err) {
		t.Fatalf("expected PaymentRequiredError on abort, got %v", err)
	}
	if len(mock.calls) != 1 {
		t.Errorf("expected no retry after abort, got %d calls", len(mock.calls))
	}
}

func TestClientHooksRunInOrder(t *testing.T) {
	var order []string
	mock := &mockMCPClient{}
	mock.callFunc = func(call int, params map[string]interface{}) (MCPToolResult, error) {
		if call == 0 {
			return paymentRequiredResult(t), nil
		}
		return AttachPaymentResponseToMeta(MCPToolResult{}, x402.SettleResponse{Success: true, Transaction: "tx"}), nil
	}

	client := NewX402MCPClient(mock, newCashPaymentClient(), Options{})
	client.OnBeforePayment(func(context PaymentRequiredContext) error {
		order = append(order, "before")
		return nil
	})
	client.OnAfterPayment(func(context AfterPaymentContext) error {
		order = append(order, "after")
		return nil
	})

	if _, err := client.CallTool(context.Background(), "paid_tool", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 2 || order[0] != "before" || order[1] != "after" {
		t.Errorf("expected before,after order, got %v", order)
	}
}

func TestNewX402MCPClientFromConfig(t *testing.T) {
	mock := &mockMCPClient{
		callFunc: func(call int, params map[string]interface{}) (MCPToolResult, error) {
			return MCPToolResult{}, nil
		},
	}
	client := NewX402MCPClientFromConfig(mock, []SchemeRegistration{
		{Network: "x402:cash", Client: &cashClientScheme{}},
	}, Options{})

	if client.PaymentClient() == nil {
		t.Fatal("expected payment client to be constructed")
	}
	if client.Client() != mock {
		t.Error("expected underlying client to be retained")
	}
}
