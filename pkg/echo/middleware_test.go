package echo

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	x402 "github.com/x402-foundation/x402-go"
	x402http "github.com/x402-foundation/x402-go/http"
	"github.com/x402-foundation/x402-go/test/mocks/cash"
)

func newCashServer(t *testing.T, client x402.FacilitatorClient) *x402.X402ResourceServer {
	t.Helper()

	server := x402.Newx402ResourceServer(x402.WithFacilitatorClient(client))
	server.Register(cash.Network, cash.NewSchemeNetworkServer())
	if err := server.Initialize(context.Background()); err != nil {
		t.Fatalf("failed to initialize server: %v", err)
	}
	return server
}

func newCashFacilitatorClient() *cash.FacilitatorClient {
	facilitator := x402.Newx402Facilitator()
	facilitator.Register([]x402.Network{cash.Network}, cash.NewSchemeNetworkFacilitator())
	return cash.NewFacilitatorClient(facilitator)
}

func newPremiumEcho(server *x402.X402ResourceServer) *echo.Echo {
	e := echo.New()
	e.GET("/premium", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"data": "premium"})
	}, PaymentMiddleware(server, Config{
		Resource: x402.ResourceConfig{
			Scheme:  cash.Scheme,
			Network: cash.Network,
			PayTo:   "merchant@example.com",
			Price:   "$0.10",
		},
	}))
	return e
}

func paymentHeaderFor(t *testing.T, e *echo.Echo, payer string) string {
	t.Helper()

	unpaid := httptest.NewRecorder()
	e.ServeHTTP(unpaid, httptest.NewRequest(http.MethodGet, "/premium", nil))
	if unpaid.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 without payment, got %d", unpaid.Code)
	}

	var required x402.PaymentRequired
	if err := json.Unmarshal(unpaid.Body.Bytes(), &required); err != nil {
		t.Fatalf("failed to decode 402 body: %v", err)
	}

	client := x402.Newx402Client()
	client.RegisterScheme(cash.Network, cash.NewSchemeNetworkClient(payer))
	payload, err := client.CreatePaymentPayload(context.Background(), required)
	if err != nil {
		t.Fatalf("failed to create payload: %v", err)
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	return base64.StdEncoding.EncodeToString(payloadBytes)
}

func TestPaymentMiddlewareRequiresPayment(t *testing.T) {
	e := newPremiumEcho(newCashServer(t, newCashFacilitatorClient()))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/premium", nil))

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", rec.Code)
	}
	if rec.Header().Get(x402http.HeaderPaymentRequired) == "" {
		t.Error("expected the PAYMENT-REQUIRED header")
	}
	var required x402.PaymentRequired
	if err := json.Unmarshal(rec.Body.Bytes(), &required); err != nil {
		t.Fatalf("failed to decode 402 body: %v", err)
	}
	if len(required.Accepts) != 1 {
		t.Errorf("expected one payment option, got %d", len(required.Accepts))
	}
}

func TestPaymentMiddlewarePaidFlow(t *testing.T) {
	e := newPremiumEcho(newCashServer(t, newCashFacilitatorClient()))
	header := paymentHeaderFor(t, e, "John")

	req := httptest.NewRequest(http.MethodGet, "/premium", nil)
	req.Header.Set(x402http.HeaderPaymentSignature, header)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after payment, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "premium") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}

	settleHeader := rec.Header().Get(x402http.HeaderPaymentResponse)
	if settleHeader == "" {
		t.Fatal("expected a settlement header")
	}
	settlement, err := x402http.DecodePaymentResponseHeader(settleHeader)
	if err != nil {
		t.Fatalf("failed to decode settlement header: %v", err)
	}
	if !settlement.Success || settlement.Payer != "John" {
		t.Errorf("unexpected settlement: %+v", settlement)
	}
}

// failingSettleClient verifies normally but fails every settlement.
type failingSettleClient struct {
	*cash.FacilitatorClient
}

func (c *failingSettleClient) Settle(ctx context.Context, payloadBytes []byte, requirementsBytes []byte) (*x402.SettleResponse, error) {
	return &x402.SettleResponse{
		Success:     false,
		ErrorReason: "broadcast failed",
		Network:     cash.Network,
	}, nil
}

func TestPaymentMiddlewareSettlementFailure(t *testing.T) {
	server := newCashServer(t, &failingSettleClient{FacilitatorClient: newCashFacilitatorClient()})
	e := newPremiumEcho(server)
	header := paymentHeaderFor(t, e, "John")

	req := httptest.NewRequest(http.MethodGet, "/premium", nil)
	req.Header.Set(x402http.HeaderPaymentSignature, header)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 when settlement fails, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "premium") {
		t.Fatal("resource must not be served when settlement fails")
	}
	var required x402.PaymentRequired
	if err := json.Unmarshal(rec.Body.Bytes(), &required); err != nil {
		t.Fatalf("failed to decode 402 body: %v", err)
	}
	if !strings.Contains(required.Error, "broadcast failed") {
		t.Errorf("expected the settlement reason in the 402, got %q", required.Error)
	}
}

func TestPaymentMiddlewareHeaderVersionMismatch(t *testing.T) {
	e := newPremiumEcho(newCashServer(t, newCashFacilitatorClient()))

	v1Payload := `{"x402Version":1,"scheme":"cash","network":"x402:cash","payload":{"signature":"~John","validUntil":"9999999999","name":"John"}}`
	req := httptest.NewRequest(http.MethodGet, "/premium", nil)
	req.Header.Set(x402http.HeaderPaymentSignature, base64.StdEncoding.EncodeToString([]byte(v1Payload)))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 for a v1 payload in the v2 header, got %d", rec.Code)
	}
	var required x402.PaymentRequired
	if err := json.Unmarshal(rec.Body.Bytes(), &required); err != nil {
		t.Fatalf("failed to decode 402 body: %v", err)
	}
	if !strings.Contains(strings.ToLower(required.Error), "invalid payment header format") {
		t.Errorf("expected a format error, got %q", required.Error)
	}
}
