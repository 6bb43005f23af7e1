package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	x402 "github.com/x402-foundation/x402-go"
	"github.com/x402-foundation/x402-go/extensions/paymentidentifier"
	"github.com/x402-foundation/x402-go/types"
)

// HTTPRequestContext is the transport context handed to resource-server
// extensions when enriching declarations for HTTP requests.
type HTTPRequestContext struct {
	Request *http.Request
}

// TransportMethod returns the HTTP method of the request.
func (c *HTTPRequestContext) TransportMethod() string {
	if c.Request == nil {
		return ""
	}
	return c.Request.Method
}

// MiddlewareConfig configures the payment middleware for one protected
// route.
type MiddlewareConfig struct {
	// Resource is the route's payment configuration.
	Resource x402.ResourceConfig

	// Extensions are declared extension payloads, enriched per request.
	Extensions map[string]interface{}

	// PaymentIDCache, when set, makes payments carrying a
	// payment-identifier idempotent: a repeated ID within the cache TTL is
	// served with the prior settlement instead of being verified and
	// settled again.
	PaymentIDCache *paymentidentifier.Cache
}

// Middleware protects a handler with the x402 payment flow: no payment →
// 402 with requirements; payment present → verify, run the handler, settle,
// and attach the settlement header.
func Middleware(server *x402.X402ResourceServer, config MiddlewareConfig, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		resourceInfo := x402.ResourceInfo{
			URL:         requestURL(r),
			Description: config.Resource.Description,
			MimeType:    config.Resource.MimeType,
		}

		extensions := server.EnrichExtensions(config.Extensions, &HTTPRequestContext{Request: r})

		var payload *x402.PaymentPayload
		if header, headerName, ok := extractRequestPaymentHeader(r); ok {
			payloadBytes, err := ValidateAndDecodePaymentHeader(header)
			if err != nil {
				writePaymentRequired(w, server, ctx, config, resourceInfo, extensions, err.Error())
				return
			}
			decoded, err := decodeCanonicalPayload(payloadBytes)
			if err != nil {
				writePaymentRequired(w, server, ctx, config, resourceInfo, extensions, err.Error())
				return
			}
			if err := ValidateHeaderVersion(headerName, decoded.X402Version); err != nil {
				writePaymentRequired(w, server, ctx, config, resourceInfo, extensions, err.Error())
				return
			}
			payload = decoded
		}

		if payload != nil {
			if declared, ok := extensions[paymentidentifier.PAYMENT_IDENTIFIER]; ok {
				required := paymentidentifier.IsPaymentIdentifierRequired(declared)
				check := paymentidentifier.ValidatePaymentIdentifierRequirement(*payload, required)
				if !check.Valid {
					writePaymentRequired(w, server, ctx, config, resourceInfo, extensions, strings.Join(check.Errors, "; "))
					return
				}
			}
		}

		// A replayed payment ID short-circuits the flow: the handler runs,
		// but the prior settlement is reused instead of charging again.
		var paymentID string
		if payload != nil && config.PaymentIDCache != nil {
			if id, err := paymentidentifier.ExtractPaymentIdentifier(*payload, false); err == nil {
				paymentID = id
			}
			if paymentID != "" {
				if cached, ok := config.PaymentIDCache.Get(paymentID); ok {
					fingerprint, ferr := paymentidentifier.PayloadFingerprint(*payload)
					if ferr != nil || fingerprint != cached.Fingerprint {
						writePaymentRequired(w, server, ctx, config, resourceInfo, extensions, "payment identifier reuse with a different payload")
						return
					}
					recorder := &bufferedResponseWriter{header: make(http.Header)}
					next.ServeHTTP(recorder, r)
					if cached.Settle != nil {
						if encoded, eerr := EncodePaymentResponseHeader(*cached.Settle); eerr == nil {
							recorder.header.Set(PaymentResponseHeaderName(payload.X402Version), encoded)
						}
					}
					recorder.flush(w)
					return
				}
			}
		}

		result, err := server.ProcessPaymentRequest(ctx, payload, config.Resource, resourceInfo, extensions)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		if result.RequiresPayment != nil {
			writeRequiredResponse(w, *result.RequiresPayment)
			return
		}

		if !result.Success {
			writePaymentRequired(w, server, ctx, config, resourceInfo, extensions, result.Error)
			return
		}

		// Buffer the handler response so the settlement header can still be
		// set after the handler runs.
		recorder := &bufferedResponseWriter{header: make(http.Header)}
		next.ServeHTTP(recorder, r)

		if recorder.status < 400 && payload != nil && result.MatchedRequirements != nil {
			payloadBytes, perr := marshalPaymentPayload(*payload)
			requirementsBytes, rerr := json.Marshal(result.MatchedRequirements)
			if perr == nil && rerr == nil {
				settlement, serr := server.SettlePayment(ctx, payloadBytes, requirementsBytes)
				if serr != nil || !settlement.Success {
					// The handler already ran, but the payer was never
					// charged; discard its response and demand payment again.
					reason := settlement.ErrorReason
					if serr != nil {
						reason = serr.Error()
					}
					writePaymentRequired(w, server, ctx, config, resourceInfo, extensions, "Payment settlement failed: "+reason)
					return
				}
				if encoded, eerr := EncodePaymentResponseHeader(settlement); eerr == nil {
					recorder.header.Set(PaymentResponseHeaderName(payload.X402Version), encoded)
				}
				if paymentID != "" && config.PaymentIDCache != nil && result.VerificationResult != nil {
					if fingerprint, ferr := paymentidentifier.PayloadFingerprint(*payload); ferr == nil {
						config.PaymentIDCache.Put(paymentID, paymentidentifier.CachedResult{
							Fingerprint: fingerprint,
							Verify:      *result.VerificationResult,
							Settle:      &settlement,
						})
					}
				}
			}
		}

		recorder.flush(w)
	})
}

// extractRequestPaymentHeader reads the payment header from a request,
// v2 name first, and reports which header carried it.
func extractRequestPaymentHeader(r *http.Request) (string, string, bool) {
	if value := r.Header.Get(HeaderPaymentSignature); value != "" {
		return value, HeaderPaymentSignature, true
	}
	if value := r.Header.Get(HeaderPaymentV1); value != "" {
		return value, HeaderPaymentV1, true
	}
	return "", "", false
}

// decodeCanonicalPayload converts wire payload bytes into the canonical
// form for either version.
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

// writePaymentRequired builds fresh requirements and writes a 402.
func writePaymentRequired(
	w http.ResponseWriter,
	server *x402.X402ResourceServer,
	ctx context.Context,
	config MiddlewareConfig,
	resourceInfo x402.ResourceInfo,
	extensions map[string]interface{},
	errorMsg string,
) {
	requirements, err := server.BuildPaymentRequirements(ctx, config.Resource)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	required := server.CreatePaymentRequiredResponse(requirements, resourceInfo, errorMsg, extensions)
	writeRequiredResponse(w, required)
}

// writeRequiredResponse writes a 402 with the PAYMENT-REQUIRED header and a
// JSON body, so both header-reading v2 clients and body-reading v1 clients
// can proceed.
func writeRequiredResponse(w http.ResponseWriter, required x402.PaymentRequired) {
	body, err := json.Marshal(required)
	if err != nil {
		http.Error(w, "failed to encode payment requirements", http.StatusInternalServerError)
		return
	}

	if encoded, err := EncodePaymentRequiredHeader(required); err == nil {
		w.Header().Set(HeaderPaymentRequired, encoded)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusPaymentRequired)
	w.Write(body)
}

// bufferedResponseWriter captures a handler's response so headers can be
// added after it returns.
type bufferedResponseWriter struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func (b *bufferedResponseWriter) Header() http.Header {
	return b.header
}

func (b *bufferedResponseWriter) Write(data []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(data)
}

func (b *bufferedResponseWriter) WriteHeader(status int) {
	if b.status == 0 {
		b.status = status
	}
}

func (b *bufferedResponseWriter) flush(w http.ResponseWriter) {
	for k, values := range b.header {
		for _, v := range values {
			w.Header().Add(k, v)
		}
	}
	status := b.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	w.Write(b.body.Bytes())
}

func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.Path
}
