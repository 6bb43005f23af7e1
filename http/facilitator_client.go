package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	x402 "github.com/x402-foundation/x402-go"
	"github.com/x402-foundation/x402-go/types"
)

// HTTPFacilitatorClient talks to a remote facilitator service. It
// implements x402.FacilitatorClient for both wire versions.
type HTTPFacilitatorClient struct {
	url          string
	httpClient   *http.Client
	authProvider AuthProvider
	identifier   string
}

// AuthProvider generates authentication headers for facilitator requests.
type AuthProvider interface {
	GetAuthHeaders(ctx context.Context) (AuthHeaders, error)
}

// AuthHeaders carries per-endpoint authentication headers.
type AuthHeaders struct {
	Verify    map[string]string
	Settle    map[string]string
	Supported map[string]string
}

// FacilitatorConfig configures the HTTP facilitator client.
type FacilitatorConfig struct {
	// URL is the base URL of the facilitator service.
	URL string

	// HTTPClient overrides the default client.
	HTTPClient *http.Client

	// AuthProvider provides authentication headers.
	AuthProvider AuthProvider

	// Timeout applies when no HTTPClient is given. Defaults to 30s.
	Timeout time.Duration

	// Identifier names this facilitator in logs and caches.
	Identifier string
}

// DefaultFacilitatorURL is the public facilitator.
const DefaultFacilitatorURL = "https://x402.org/facilitator"

const (
	getSupportedRetries        = 3
	getSupportedRetryBaseDelay = 1 * time.Second
)

// NewHTTPFacilitatorClient creates an HTTP facilitator client.
func NewHTTPFacilitatorClient(config *FacilitatorConfig) *HTTPFacilitatorClient {
	if config == nil {
		config = &FacilitatorConfig{}
	}

	url := config.URL
	if url == "" {
		url = DefaultFacilitatorURL
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	identifier := config.Identifier
	if identifier == "" {
		identifier = url
	}

	return &HTTPFacilitatorClient{
		url:          url,
		httpClient:   httpClient,
		authProvider: config.AuthProvider,
		identifier:   identifier,
	}
}

// Identifier returns the configured facilitator identifier.
func (c *HTTPFacilitatorClient) Identifier() string {
	return c.identifier
}

// Verify posts the payment to the facilitator's /verify endpoint.
func (c *HTTPFacilitatorClient) Verify(ctx context.Context, payloadBytes []byte, requirementsBytes []byte) (*x402.VerifyResponse, error) {
	version, err := types.DetectVersion(payloadBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to detect version: %w", err)
	}

	responseBody, statusCode, err := c.post(ctx, "/verify", version, payloadBytes, requirementsBytes, func(h AuthHeaders) map[string]string { return h.Verify })
	if err != nil {
		return nil, err
	}

	var verifyResponse x402.VerifyResponse
	if err := json.Unmarshal(responseBody, &verifyResponse); err != nil {
		return nil, fmt.Errorf("failed to decode verify response (%d): %s", statusCode, string(responseBody))
	}

	if statusCode != http.StatusOK {
		reqInfo, _ := types.ExtractRequirementsInfo(requirementsBytes)
		network, scheme := x402.Network(""), ""
		if reqInfo != nil {
			network, scheme = x402.Network(reqInfo.Network), reqInfo.Scheme
		}
		if verifyResponse.InvalidReason != "" {
			return nil, x402.NewVerifyError(verifyResponse.InvalidReason, network, scheme, nil)
		}
		return nil, fmt.Errorf("facilitator verify failed (%d): %s", statusCode, string(responseBody))
	}

	return &verifyResponse, nil
}

// Settle posts the payment to the facilitator's /settle endpoint.
func (c *HTTPFacilitatorClient) Settle(ctx context.Context, payloadBytes []byte, requirementsBytes []byte) (*x402.SettleResponse, error) {
	version, err := types.DetectVersion(payloadBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to detect version: %w", err)
	}

	responseBody, statusCode, err := c.post(ctx, "/settle", version, payloadBytes, requirementsBytes, func(h AuthHeaders) map[string]string { return h.Settle })
	if err != nil {
		return nil, err
	}

	var settleResponse x402.SettleResponse
	if err := json.Unmarshal(responseBody, &settleResponse); err != nil {
		return nil, fmt.Errorf("facilitator settle failed (%d): %s", statusCode, string(responseBody))
	}

	if statusCode != http.StatusOK {
		reqInfo, _ := types.ExtractRequirementsInfo(requirementsBytes)
		network, scheme := x402.Network(""), ""
		if reqInfo != nil {
			network, scheme = x402.Network(reqInfo.Network), reqInfo.Scheme
		}
		if settleResponse.ErrorReason != "" {
			return nil, x402.NewSettleError(settleResponse.ErrorReason, network, scheme, settleResponse.Transaction, fmt.Errorf("facilitator returned %d", statusCode))
		}
		return nil, fmt.Errorf("facilitator settle failed (%d): %s", statusCode, string(responseBody))
	}

	return &settleResponse, nil
}

// GetSupported fetches the facilitator's capabilities, retrying up to 3
// times with exponential backoff on 429.
func (c *HTTPFacilitatorClient) GetSupported(ctx context.Context) (*x402.SupportedResponse, error) {
	var lastErr error

	for attempt := 0; attempt < getSupportedRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/supported", nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create supported request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		if c.authProvider != nil {
			authHeaders, err := c.authProvider.GetAuthHeaders(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to get auth headers: %w", err)
			}
			for k, v := range authHeaders.Supported {
				req.Header.Set(k, v)
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("supported request failed: %w", err)
		}

		responseBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode == http.StatusOK {
			var supported x402.SupportedResponse
			if err := json.Unmarshal(responseBody, &supported); err != nil {
				return nil, fmt.Errorf("failed to decode supported response: %w", err)
			}
			return &supported, nil
		}

		lastErr = fmt.Errorf("facilitator supported failed (%d): %s", resp.StatusCode, string(responseBody))

		if resp.StatusCode == http.StatusTooManyRequests && attempt < getSupportedRetries-1 {
			delay := getSupportedRetryBaseDelay * time.Duration(1<<uint(attempt))
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		return nil, lastErr
	}

	return nil, lastErr
}

// post sends the shared {x402Version, paymentPayload, paymentRequirements}
// envelope to a facilitator endpoint.
func (c *HTTPFacilitatorClient) post(
	ctx context.Context,
	path string,
	version int,
	payloadBytes, requirementsBytes []byte,
	pickAuth func(AuthHeaders) map[string]string,
) ([]byte, int, error) {
	var payloadMap, requirementsMap map[string]interface{}
	if err := json.Unmarshal(payloadBytes, &payloadMap); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	if err := json.Unmarshal(requirementsBytes, &requirementsMap); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal requirements: %w", err)
	}

	body, err := json.Marshal(map[string]interface{}{
		"x402Version":         version,
		"paymentPayload":      payloadMap,
		"paymentRequirements": requirementsMap,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+path, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.authProvider != nil {
		authHeaders, err := c.authProvider.GetAuthHeaders(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to get auth headers: %w", err)
		}
		for k, v := range pickAuth(authHeaders) {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response body: %w", err)
	}

	return responseBody, resp.StatusCode, nil
}
