// Package facilitatorserver exposes a facilitator over HTTP with gin. It
// serves the verify/settle/supported endpoints a resource server's
// HTTPFacilitatorClient expects, plus the bazaar discovery catalog.
package facilitatorserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	x402 "github.com/x402-foundation/x402-go"
	"github.com/x402-foundation/x402-go/extensions/bazaar"
)

// DefaultDiscoveryLimit caps a discovery page when the client does not ask
// for a limit.
const DefaultDiscoveryLimit = 20

// Facilitator is the byte-level facilitator surface the server fronts.
// Both *x402.X402Facilitator and *idempotency.IdempotentFacilitator satisfy
// it.
type Facilitator interface {
	Verify(ctx context.Context, payloadBytes []byte, requirementsBytes []byte) (x402.VerifyResponse, error)
	Settle(ctx context.Context, payloadBytes []byte, requirementsBytes []byte) (x402.SettleResponse, error)
	GetSupported() x402.SupportedResponse
}

// Config configures a facilitator server.
type Config struct {
	Facilitator Facilitator
	// Catalog backs GET /discovery/resources. Nil serves an empty catalog.
	Catalog *bazaar.Catalog
}

// Server is a gin-based facilitator service.
type Server struct {
	facilitator Facilitator
	catalog     *bazaar.Catalog
	engine      *gin.Engine
}

// settleRequest is the body of POST /verify and POST /settle.
type settleRequest struct {
	X402Version         int             `json:"x402Version"`
	PaymentPayload      json.RawMessage `json:"paymentPayload"`
	PaymentRequirements json.RawMessage `json:"paymentRequirements"`
}

// discoveryPagination describes the served page of the catalog.
type discoveryPagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

// discoveryResponse is the body of GET /discovery/resources.
type discoveryResponse struct {
	X402Version int                         `json:"x402Version"`
	Items       []bazaar.DiscoveredResource `json:"items"`
	Pagination  discoveryPagination         `json:"pagination"`
}

// NewServer builds a Server and its routes.
func NewServer(config Config) *Server {
	s := &Server{
		facilitator: config.Facilitator,
		catalog:     config.Catalog,
	}
	if s.catalog == nil {
		s.catalog = bazaar.NewCatalog()
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.POST("/verify", s.handleVerify)
	engine.POST("/settle", s.handleSettle)
	engine.GET("/supported", s.handleSupported)
	engine.GET("/discovery/resources", s.handleDiscovery)

	s.engine = engine
	return s
}

// Router returns the underlying gin engine, e.g. to mount extra routes or
// serve it from an existing http.Server.
func (s *Server) Router() *gin.Engine {
	return s.engine
}

// Run serves on addr until the listener fails.
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

// handleVerify checks a payment. Pipeline failures surface as an invalid
// verdict with HTTP 200; only a malformed request body is a client error.
func (s *Server) handleVerify(c *gin.Context) {
	req, ok := bindPaymentRequest(c)
	if !ok {
		return
	}

	result, err := s.facilitator.Verify(c.Request.Context(), req.PaymentPayload, req.PaymentRequirements)
	if err != nil {
		c.JSON(http.StatusOK, x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleSettle executes a payment. Settlement failures return
// {success: false, errorReason, network, transaction: ""} with HTTP 200 so
// clients can distinguish payment rejection from transport trouble.
func (s *Server) handleSettle(c *gin.Context) {
	req, ok := bindPaymentRequest(c)
	if !ok {
		return
	}

	result, err := s.facilitator.Settle(c.Request.Context(), req.PaymentPayload, req.PaymentRequirements)
	if err != nil {
		if result.ErrorReason == "" {
			result.ErrorReason = err.Error()
		}
		result.Success = false
		c.JSON(http.StatusOK, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleSupported(c *gin.Context) {
	c.JSON(http.StatusOK, s.facilitator.GetSupported())
}

func (s *Server) handleDiscovery(c *gin.Context) {
	limit := queryInt(c, "limit", DefaultDiscoveryLimit)
	offset := queryInt(c, "offset", 0)
	if limit <= 0 {
		limit = DefaultDiscoveryLimit
	}
	if offset < 0 {
		offset = 0
	}

	items, total := s.catalog.List(limit, offset)

	c.JSON(http.StatusOK, discoveryResponse{
		X402Version: x402.ProtocolVersion,
		Items:       items,
		Pagination: discoveryPagination{
			Limit:  limit,
			Offset: offset,
			Total:  total,
		},
	})
}

// bindPaymentRequest parses the shared verify/settle body. A malformed body
// is the one case that earns a 400.
func bindPaymentRequest(c *gin.Context) (settleRequest, bool) {
	var req settleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return settleRequest{}, false
	}
	if len(req.PaymentPayload) == 0 || len(req.PaymentRequirements) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "paymentPayload and paymentRequirements are required"})
		return settleRequest{}, false
	}
	return req, true
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
