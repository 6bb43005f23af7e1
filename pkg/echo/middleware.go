// Package echo adapts the x402 payment flow to echo handlers.
package echo

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	x402 "github.com/x402-foundation/x402-go"
	x402http "github.com/x402-foundation/x402-go/http"
	"github.com/x402-foundation/x402-go/types"
)

// EchoRequestContext is the transport context handed to resource-server
// extensions for echo requests.
type EchoRequestContext struct {
	Context echo.Context
}

// TransportMethod returns the HTTP method of the request.
func (c *EchoRequestContext) TransportMethod() string {
	if c.Context == nil || c.Context.Request() == nil {
		return ""
	}
	return c.Context.Request().Method
}

// Config configures the payment middleware for one protected route.
type Config struct {
	Resource   x402.ResourceConfig
	Extensions map[string]interface{}
}

// PaymentMiddleware protects echo routes with the x402 payment flow,
// mirroring the net/http middleware semantics.
func PaymentMiddleware(server *x402.X402ResourceServer, config Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			resourceInfo := x402.ResourceInfo{
				URL:         requestURL(c),
				Description: config.Resource.Description,
				MimeType:    config.Resource.MimeType,
			}

			extensions := server.EnrichExtensions(config.Extensions, &EchoRequestContext{Context: c})

			var payload *x402.PaymentPayload
			var payloadBytes []byte
			if header, headerName := extractPaymentHeader(c); header != "" {
				decoded, err := x402http.ValidateAndDecodePaymentHeader(header)
				if err != nil {
					return respondPaymentRequired(c, server, config, resourceInfo, extensions, err.Error())
				}
				canonical, err := decodeCanonicalPayload(decoded)
				if err != nil {
					return respondPaymentRequired(c, server, config, resourceInfo, extensions, err.Error())
				}
				if err := x402http.ValidateHeaderVersion(headerName, canonical.X402Version); err != nil {
					return respondPaymentRequired(c, server, config, resourceInfo, extensions, err.Error())
				}
				payload = canonical
				payloadBytes = decoded
			}

			result, err := server.ProcessPaymentRequest(ctx, payload, config.Resource, resourceInfo, extensions)
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
			}

			if result.RequiresPayment != nil {
				return writeRequired(c, *result.RequiresPayment)
			}

			if !result.Success {
				return respondPaymentRequired(c, server, config, resourceInfo, extensions, result.Error)
			}

			// Buffer the handler response so the settlement header can be
			// set after it runs.
			res := c.Response()
			original := res.Writer
			buffer := newBufferedWriter()
			res.Writer = buffer

			handlerErr := next(c)

			res.Writer = original

			if handlerErr == nil && buffer.status < 400 && result.MatchedRequirements != nil {
				requirementsBytes, rerr := json.Marshal(result.MatchedRequirements)
				if rerr == nil {
					settlement, serr := server.SettlePayment(ctx, payloadBytes, requirementsBytes)
					if serr != nil || !settlement.Success {
						// The handler already ran, but the payer was never
						// charged; discard its response and demand payment
						// again. The handler committed into the buffer, so
						// the response state has to be reopened first.
						reason := settlement.ErrorReason
						if serr != nil {
							reason = serr.Error()
						}
						res.Committed = false
						res.Size = 0
						return respondPaymentRequired(c, server, config, resourceInfo, extensions, "Payment settlement failed: "+reason)
					}
					if encoded, eerr := x402http.EncodePaymentResponseHeader(settlement); eerr == nil {
						buffer.header.Set(x402http.PaymentResponseHeaderName(payload.X402Version), encoded)
					}
				}
			}

			buffer.flush(original)
			return handlerErr
		}
	}
}

// bufferedWriter captures a handler's response.
type bufferedWriter struct {
	header http.Header
	body   []byte
	status int
}

func newBufferedWriter() *bufferedWriter {
	return &bufferedWriter{header: make(http.Header), status: http.StatusOK}
}

func (b *bufferedWriter) Header() http.Header {
	return b.header
}

func (b *bufferedWriter) Write(data []byte) (int, error) {
	b.body = append(b.body, data...)
	return len(data), nil
}

func (b *bufferedWriter) WriteHeader(status int) {
	b.status = status
}

func (b *bufferedWriter) flush(w http.ResponseWriter) {
	for k, values := range b.header {
		for _, v := range values {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(b.status)
	w.Write(b.body)
}

func extractPaymentHeader(c echo.Context) (string, string) {
	if value := c.Request().Header.Get(x402http.HeaderPaymentSignature); value != "" {
		return value, x402http.HeaderPaymentSignature
	}
	return c.Request().Header.Get(x402http.HeaderPaymentV1), x402http.HeaderPaymentV1
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

func respondPaymentRequired(
	c echo.Context,
	server *x402.X402ResourceServer,
	config Config,
	resourceInfo x402.ResourceInfo,
	extensions map[string]interface{},
	errorMsg string,
) error {
	requirements, err := server.BuildPaymentRequirements(c.Request().Context(), config.Resource)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	required := server.CreatePaymentRequiredResponse(requirements, resourceInfo, errorMsg, extensions)
	return writeRequired(c, required)
}

func writeRequired(c echo.Context, required x402.PaymentRequired) error {
	if encoded, err := x402http.EncodePaymentRequiredHeader(required); err == nil {
		c.Response().Header().Set(x402http.HeaderPaymentRequired, encoded)
	}
	return c.JSON(http.StatusPaymentRequired, required)
}

func requestURL(c echo.Context) string {
	scheme := c.Scheme()
	return scheme + "://" + c.Request().Host + c.Request().URL.Path
}
