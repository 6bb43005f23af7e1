// Package types holds the shared declaration shapes of the built-in
// protocol extensions.
package types

// Extension keys as they appear in PaymentRequired and PaymentPayload
// extensions maps.
const (
	PAYMENT_IDENTIFIER = "payment-identifier"
	BAZAAR             = "bazaar"
)

// QueryParamMethods are the HTTP methods a query-input resource accepts.
type QueryParamMethods string

// BodyMethods are the HTTP methods a body-input resource accepts.
type BodyMethods string

const (
	QueryMethodGET    QueryParamMethods = "GET"
	QueryMethodDELETE QueryParamMethods = "DELETE"
	BodyMethodPOST    BodyMethods       = "POST"
	BodyMethodPUT     BodyMethods       = "PUT"
	BodyMethodPATCH   BodyMethods       = "PATCH"
)

// QueryInput describes a resource that takes its input as query parameters.
type QueryInput struct {
	Type   string                 `json:"type"`
	Method QueryParamMethods      `json:"method"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// BodyInput describes a resource that takes its input as a request body.
type BodyInput struct {
	Type     string                 `json:"type"`
	Method   BodyMethods            `json:"method"`
	BodyType string                 `json:"bodyType,omitempty"`
	Body     map[string]interface{} `json:"body,omitempty"`
}

// DiscoveryInfo is what a resource server publishes about a paid resource
// so it can be discovered and called.
type DiscoveryInfo struct {
	Input  interface{}            `json:"input,omitempty"`
	Output map[string]interface{} `json:"output,omitempty"`
}

// DiscoveryExtension is the bazaar declaration: the discovery info plus the
// JSON Schema the info must satisfy.
type DiscoveryExtension struct {
	Info   DiscoveryInfo          `json:"info"`
	Schema map[string]interface{} `json:"schema"`
}
