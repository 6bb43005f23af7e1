package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	x402 "github.com/x402-foundation/x402-go"
	"github.com/x402-foundation/x402-go/extensions/paymentidentifier"
)

// X402HTTPClient binds an X402Client to the HTTP transport: it reads 402
// responses, creates payment payloads, and encodes them into request
// headers.
type X402HTTPClient struct {
	client *x402.X402Client
}

// Newx402HTTPClient creates an HTTP-aware payment client.
func Newx402HTTPClient(client *x402.X402Client) *X402HTTPClient {
	return &X402HTTPClient{client: client}
}

// Client returns the underlying payment client for registration calls.
func (c *X402HTTPClient) Client() *x402.X402Client {
	return c.client
}

// EncodePaymentSignatureHeader encodes serialized payload bytes into the
// header for their wire version.
func (c *X402HTTPClient) EncodePaymentSignatureHeader(payloadBytes []byte) (map[string]string, error) {
	var probe struct {
		X402Version int `json:"x402Version"`
	}
	if err := json.Unmarshal(payloadBytes, &probe); err != nil {
		return nil, fmt.Errorf("failed to detect payload version: %w", err)
	}

	encoded := base64.StdEncoding.EncodeToString(payloadBytes)
	switch probe.X402Version {
	case 2:
		return map[string]string{HeaderPaymentSignature: encoded}, nil
	case 1:
		return map[string]string{HeaderPaymentV1: encoded}, nil
	default:
		return nil, fmt.Errorf("unsupported x402 version: %d", probe.X402Version)
	}
}

// GetPaymentRequiredResponse extracts a PaymentRequired from a 402
// response. V2 travels in the PAYMENT-REQUIRED header; v1 in the body.
func (c *X402HTTPClient) GetPaymentRequiredResponse(headers map[string]string, body []byte) (x402.PaymentRequired, error) {
	normalized := make(map[string]string, len(headers))
	for k, v := range headers {
		normalized[strings.ToUpper(k)] = v
	}

	if header, exists := normalized[HeaderPaymentRequired]; exists {
		return DecodePaymentRequiredHeader(header)
	}

	if len(body) > 0 {
		var required x402.PaymentRequired
		if err := json.Unmarshal(body, &required); err == nil && required.X402Version >= 1 {
			return required, nil
		}
	}

	return x402.PaymentRequired{}, fmt.Errorf("no payment required information found in response")
}

// GetPaymentSettleResponse extracts the settlement result from response
// headers, accepting both header generations.
func (c *X402HTTPClient) GetPaymentSettleResponse(headers map[string]string) (x402.SettleResponse, error) {
	normalized := make(map[string]string, len(headers))
	for k, v := range headers {
		normalized[strings.ToUpper(k)] = v
	}

	if header, exists := normalized[HeaderPaymentResponse]; exists {
		return DecodePaymentResponseHeader(header)
	}
	if header, exists := normalized[HeaderPaymentResponseV1]; exists {
		return DecodePaymentResponseHeader(header)
	}

	return x402.SettleResponse{}, fmt.Errorf("payment response header not found")
}

// WrapHTTPClientWithPayment installs payment handling on a standard HTTP
// client. Requests that hit a 402 are retried once with a payment header.
func WrapHTTPClientWithPayment(client *http.Client, x402Client *X402HTTPClient) *http.Client {
	if client == nil {
		client = http.DefaultClient
	}

	transport := client.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	client.Transport = &PaymentRoundTripper{
		Transport:  transport,
		x402Client: x402Client,
		retryCount: &sync.Map{},
	}
	return client
}

// PaymentRoundTripper is an http.RoundTripper that transparently pays for
// 402 responses.
type PaymentRoundTripper struct {
	Transport  http.RoundTripper
	x402Client *X402HTTPClient

	// retryCount bounds payment retries per request.
	retryCount *sync.Map
}

// RoundTrip implements http.RoundTripper.
func (t *PaymentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	requestID := fmt.Sprintf("%p", req)
	count, _ := t.retryCount.LoadOrStore(requestID, 0)
	retries := count.(int)

	if retries > 1 {
		t.retryCount.Delete(requestID)
		return nil, fmt.Errorf("payment retry limit exceeded")
	}

	resp, err := t.Transport.RoundTrip(req)
	if err != nil {
		t.retryCount.Delete(requestID)
		return nil, err
	}

	if resp.StatusCode != http.StatusPaymentRequired {
		t.retryCount.Delete(requestID)
		return resp, nil
	}

	t.retryCount.Store(requestID, retries+1)

	headers := make(map[string]string)
	for k, v := range resp.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	var body []byte
	if resp.Body != nil {
		body, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			t.retryCount.Delete(requestID)
			return nil, fmt.Errorf("failed to read 402 response body: %w", err)
		}
	}

	paymentRequired, err := t.x402Client.GetPaymentRequiredResponse(headers, body)
	if err != nil {
		t.retryCount.Delete(requestID)
		return nil, fmt.Errorf("failed to parse payment requirements: %w", err)
	}

	ctx := req.Context()

	payload, err := t.x402Client.client.CreatePaymentPayload(ctx, paymentRequired)
	if err != nil {
		t.retryCount.Delete(requestID)
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	// Declaration-gated: payloads whose server never declared the
	// payment-identifier extension pass through unchanged.
	payload, err = paymentidentifier.EnrichPaymentPayload(payload, "")
	if err != nil {
		t.retryCount.Delete(requestID)
		return nil, fmt.Errorf("failed to attach payment identifier: %w", err)
	}

	payloadBytes, err := marshalPaymentPayload(payload)
	if err != nil {
		t.retryCount.Delete(requestID)
		return nil, fmt.Errorf("failed to marshal payment: %w", err)
	}

	paymentHeaders, err := t.x402Client.EncodePaymentSignatureHeader(payloadBytes)
	if err != nil {
		t.retryCount.Delete(requestID)
		return nil, err
	}

	paymentReq := req.Clone(ctx)
	for k, v := range paymentHeaders {
		paymentReq.Header.Set(k, v)
	}

	newResp, err := t.Transport.RoundTrip(paymentReq)
	t.retryCount.Delete(requestID)
	return newResp, err
}

// DoWithPayment performs a request with automatic payment handling.
func (c *X402HTTPClient) DoWithPayment(ctx context.Context, req *http.Request) (*http.Response, error) {
	client := &http.Client{
		Transport: &PaymentRoundTripper{
			Transport:  http.DefaultTransport,
			x402Client: c,
			retryCount: &sync.Map{},
		},
	}
	return client.Do(req.WithContext(ctx))
}

// GetWithPayment performs a GET request with automatic payment handling.
func (c *X402HTTPClient) GetWithPayment(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.DoWithPayment(ctx, req)
}

// PostWithPayment performs a POST request with automatic payment handling.
func (c *X402HTTPClient) PostWithPayment(ctx context.Context, url string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	return c.DoWithPayment(ctx, req)
}
