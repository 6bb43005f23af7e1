package facilitatorserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x402 "github.com/x402-foundation/x402-go"
	"github.com/x402-foundation/x402-go/extensions/bazaar"
	"github.com/x402-foundation/x402-go/extensions/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubFacilitator struct {
	verifyResult x402.VerifyResponse
	verifyErr    error
	settleResult x402.SettleResponse
	settleErr    error
	supported    x402.SupportedResponse
}

func (s *stubFacilitator) Verify(ctx context.Context, payloadBytes, requirementsBytes []byte) (x402.VerifyResponse, error) {
	return s.verifyResult, s.verifyErr
}

func (s *stubFacilitator) Settle(ctx context.Context, payloadBytes, requirementsBytes []byte) (x402.SettleResponse, error) {
	return s.settleResult, s.settleErr
}

func (s *stubFacilitator) GetSupported() x402.SupportedResponse {
	return s.supported
}

const paymentBody = `{"x402Version":2,"paymentPayload":{"x402Version":2},"paymentRequirements":{"x402Version":2}}`

func doRequest(t *testing.T, server *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, req)
	return recorder
}

func TestVerifyEndpoint(t *testing.T) {
	server := NewServer(Config{Facilitator: &stubFacilitator{
		verifyResult: x402.VerifyResponse{IsValid: true, Payer: "0xpayer"},
	}})

	recorder := doRequest(t, server, http.MethodPost, "/verify", paymentBody)
	require.Equal(t, http.StatusOK, recorder.Code)

	var result x402.VerifyResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	assert.True(t, result.IsValid)
	assert.Equal(t, "0xpayer", result.Payer)
}

func TestVerifyPipelineErrorIsNot5xx(t *testing.T) {
	server := NewServer(Config{Facilitator: &stubFacilitator{
		verifyErr: x402.NewVerifyError("rpc unavailable", "eip155:8453", "exact", nil),
	}})

	recorder := doRequest(t, server, http.MethodPost, "/verify", paymentBody)
	require.Equal(t, http.StatusOK, recorder.Code)

	var result x402.VerifyResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	assert.False(t, result.IsValid)
	assert.Contains(t, result.InvalidReason, "rpc unavailable")
}

func TestSettleEndpoint(t *testing.T) {
	server := NewServer(Config{Facilitator: &stubFacilitator{
		settleResult: x402.SettleResponse{Success: true, Transaction: "0xabc", Network: "eip155:8453"},
	}})

	recorder := doRequest(t, server, http.MethodPost, "/settle", paymentBody)
	require.Equal(t, http.StatusOK, recorder.Code)

	var result x402.SettleResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, "0xabc", result.Transaction)
}

func TestSettleFailureShape(t *testing.T) {
	server := NewServer(Config{Facilitator: &stubFacilitator{
		settleResult: x402.SettleResponse{Success: false, Network: "eip155:8453"},
		settleErr:    x402.NewSettleError("insufficient_funds", "eip155:8453", "exact", "", nil),
	}})

	recorder := doRequest(t, server, http.MethodPost, "/settle", paymentBody)
	require.Equal(t, http.StatusOK, recorder.Code)

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	assert.Equal(t, false, result["success"])
	assert.Contains(t, result["errorReason"], "insufficient_funds")
	assert.Equal(t, "eip155:8453", result["network"])
	assert.Equal(t, "", result["transaction"])
}

func TestMalformedBodyIsBadRequest(t *testing.T) {
	server := NewServer(Config{Facilitator: &stubFacilitator{}})

	recorder := doRequest(t, server, http.MethodPost, "/verify", `not json`)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = doRequest(t, server, http.MethodPost, "/settle", `{"x402Version":2}`)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestSupportedEndpoint(t *testing.T) {
	server := NewServer(Config{Facilitator: &stubFacilitator{
		supported: x402.SupportedResponse{
			Kinds: []x402.SupportedKind{
				{X402Version: 2, Scheme: "exact", Network: "eip155:8453"},
			},
			Extensions: []string{"bazaar"},
		},
	}})

	recorder := doRequest(t, server, http.MethodGet, "/supported", "")
	require.Equal(t, http.StatusOK, recorder.Code)

	var result x402.SupportedResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	require.Len(t, result.Kinds, 1)
	assert.Equal(t, "exact", result.Kinds[0].Scheme)
	assert.Equal(t, []string{"bazaar"}, result.Extensions)
}

func TestDiscoveryEndpoint(t *testing.T) {
	catalog := bazaar.NewCatalog()
	for _, url := range []string{"https://api.example.com/a", "https://api.example.com/b", "https://api.example.com/c"} {
		catalog.Register(bazaar.DiscoveredResource{
			ResourceURL: url,
			Method:      "GET",
			X402Version: 2,
			DiscoveryInfo: &types.DiscoveryInfo{
				Input: map[string]interface{}{"type": "http", "method": "GET"},
			},
		})
	}

	server := NewServer(Config{Facilitator: &stubFacilitator{}, Catalog: catalog})

	recorder := doRequest(t, server, http.MethodGet, "/discovery/resources?limit=2&offset=1", "")
	require.Equal(t, http.StatusOK, recorder.Code)

	var result discoveryResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	assert.Equal(t, x402.ProtocolVersion, result.X402Version)
	require.Len(t, result.Items, 2)
	assert.Equal(t, "https://api.example.com/b", result.Items[0].ResourceURL)
	assert.Equal(t, 3, result.Pagination.Total)
	assert.Equal(t, 2, result.Pagination.Limit)
	assert.Equal(t, 1, result.Pagination.Offset)
}

func TestDiscoveryDefaultsAndEmptyCatalog(t *testing.T) {
	server := NewServer(Config{Facilitator: &stubFacilitator{}})

	recorder := doRequest(t, server, http.MethodGet, "/discovery/resources", "")
	require.Equal(t, http.StatusOK, recorder.Code)

	var result discoveryResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	assert.Empty(t, result.Items)
	assert.Equal(t, DefaultDiscoveryLimit, result.Pagination.Limit)
	assert.Equal(t, 0, result.Pagination.Total)
}
