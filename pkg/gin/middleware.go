// Package gin adapts the x402 payment flow to gin handlers.
package gin

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	x402 "github.com/x402-foundation/x402-go"
	x402http "github.com/x402-foundation/x402-go/http"
	"github.com/x402-foundation/x402-go/types"
)

// GinRequestContext is the transport context handed to resource-server
// extensions for gin requests.
type GinRequestContext struct {
	Context *gin.Context
}

// TransportMethod returns the HTTP method of the request.
func (c *GinRequestContext) TransportMethod() string {
	if c.Context == nil || c.Context.Request == nil {
		return ""
	}
	return c.Context.Request.Method
}

// Config configures the payment middleware for one protected route.
type Config struct {
	Resource   x402.ResourceConfig
	Extensions map[string]interface{}
}

// PaymentMiddleware protects gin routes with the x402 payment flow. The
// same verify-then-settle semantics as the net/http middleware, with the
// settlement header attached after the handler succeeds.
func PaymentMiddleware(server *x402.X402ResourceServer, config Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		resourceInfo := x402.ResourceInfo{
			URL:         requestURL(c),
			Description: config.Resource.Description,
			MimeType:    config.Resource.MimeType,
		}

		extensions := server.EnrichExtensions(config.Extensions, &GinRequestContext{Context: c})

		var payload *x402.PaymentPayload
		var payloadBytes []byte
		if header, headerName := extractPaymentHeader(c); header != "" {
			decoded, err := x402http.ValidateAndDecodePaymentHeader(header)
			if err != nil {
				abortPaymentRequired(c, server, config, resourceInfo, extensions, err.Error())
				return
			}
			canonical, err := decodeCanonicalPayload(decoded)
			if err != nil {
				abortPaymentRequired(c, server, config, resourceInfo, extensions, err.Error())
				return
			}
			if err := x402http.ValidateHeaderVersion(headerName, canonical.X402Version); err != nil {
				abortPaymentRequired(c, server, config, resourceInfo, extensions, err.Error())
				return
			}
			payload = canonical
			payloadBytes = decoded
		}

		result, err := server.ProcessPaymentRequest(ctx, payload, config.Resource, resourceInfo, extensions)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if result.RequiresPayment != nil {
			writeRequired(c, *result.RequiresPayment)
			return
		}

		if !result.Success {
			abortPaymentRequired(c, server, config, resourceInfo, extensions, result.Error)
			return
		}

		// Capture the handler response so the settlement header can be set
		// after it runs.
		writer := &bodyCaptureWriter{ResponseWriter: c.Writer, statusCode: http.StatusOK}
		c.Writer = writer

		c.Next()

		c.Writer = writer.ResponseWriter
		if c.IsAborted() {
			flush(c, writer)
			return
		}

		if writer.statusCode < 400 && result.MatchedRequirements != nil {
			requirementsBytes, rerr := json.Marshal(result.MatchedRequirements)
			if rerr == nil {
				settlement, serr := server.SettlePayment(ctx, payloadBytes, requirementsBytes)
				if serr != nil || !settlement.Success {
					// The handler already ran, but the payer was never
					// charged; discard its response and demand payment again.
					reason := settlement.ErrorReason
					if serr != nil {
						reason = serr.Error()
					}
					abortPaymentRequired(c, server, config, resourceInfo, extensions, "Payment settlement failed: "+reason)
					return
				}
				if encoded, eerr := x402http.EncodePaymentResponseHeader(settlement); eerr == nil {
					c.Header(x402http.PaymentResponseHeaderName(payload.X402Version), encoded)
				}
			}
		}

		flush(c, writer)
	}
}

func extractPaymentHeader(c *gin.Context) (string, string) {
	if value := c.GetHeader(x402http.HeaderPaymentSignature); value != "" {
		return value, x402http.HeaderPaymentSignature
	}
	return c.GetHeader(x402http.HeaderPaymentV1), x402http.HeaderPaymentV1
}

func decodeCanonicalPayload(payloadBytes []byte) (*x402.PaymentPayload, error) {
	version, err := types.DetectVersion(payloadBytes)
	if err != nil {
		return nil, err
	}

	if version == 1 {
		payloadV1, err := types.ToPaymentPayloadV1(payloadBytes)
		if err != nil {
			return nil, err
		}
		return &x402.PaymentPayload{
			X402Version: 1,
			Payload:     payloadV1.Payload,
			Scheme:      payloadV1.Scheme,
			Network:     x402.Network(payloadV1.Network),
		}, nil
	}

	var payload x402.PaymentPayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func abortPaymentRequired(
	c *gin.Context,
	server *x402.X402ResourceServer,
	config Config,
	resourceInfo x402.ResourceInfo,
	extensions map[string]interface{},
	errorMsg string,
) {
	requirements, err := server.BuildPaymentRequirements(c.Request.Context(), config.Resource)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	required := server.CreatePaymentRequiredResponse(requirements, resourceInfo, errorMsg, extensions)
	writeRequired(c, required)
}

func writeRequired(c *gin.Context, required x402.PaymentRequired) {
	if encoded, err := x402http.EncodePaymentRequiredHeader(required); err == nil {
		c.Header(x402http.HeaderPaymentRequired, encoded)
	}
	c.AbortWithStatusJSON(http.StatusPaymentRequired, required)
}

func flush(c *gin.Context, writer *bodyCaptureWriter) {
	c.Writer.WriteHeader(writer.statusCode)
	c.Writer.Write([]byte(writer.body.String()))
}

// bodyCaptureWriter buffers the handler's body and status.
type bodyCaptureWriter struct {
	gin.ResponseWriter
	body       strings.Builder
	statusCode int
	written    bool
}

func (w *bodyCaptureWriter) WriteHeader(code int) {
	if !w.written {
		w.statusCode = code
		w.written = true
	}
}

func (w *bodyCaptureWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	w.body.Write(b)
	return len(b), nil
}

func (w *bodyCaptureWriter) WriteString(s string) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	return w.body.WriteString(s)
}

func requestURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host + c.Request.URL.Path
}
