package bazaar

import (
	"github.com/x402-foundation/x402-go/extensions/types"
)

// TransportContext abstracts the transport so bazaar does not depend on a
// concrete HTTP package. Any context exposing TransportMethod() string
// (http.HTTPRequestContext, the gin and echo equivalents) satisfies it.
type TransportContext interface {
	TransportMethod() string
}

type bazaarResourceServerExtension struct{}

func (e *bazaarResourceServerExtension) Key() string {
	return types.BAZAAR
}

// EnrichDeclaration stamps the transport method into the declared input so
// the catalog records how the resource is actually called.
func (e *bazaarResourceServerExtension) EnrichDeclaration(
	declaration interface{},
	transportContext interface{},
) interface{} {
	tc, ok := transportContext.(TransportContext)
	if !ok {
		return declaration
	}

	extension, ok := declaration.(types.DiscoveryExtension)
	if !ok {
		return declaration
	}

	method := tc.TransportMethod()
	if method == "" {
		return extension
	}

	switch input := extension.Info.Input.(type) {
	case types.QueryInput:
		input.Method = types.QueryParamMethods(method)
		extension.Info.Input = input
	case types.BodyInput:
		input.Method = types.BodyMethods(method)
		extension.Info.Input = input
	}

	return extension
}

// BazaarResourceServerExtension is the singleton registered with a resource
// server via RegisterExtension.
var BazaarResourceServerExtension = &bazaarResourceServerExtension{}
