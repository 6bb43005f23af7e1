// Package bazaar implements the discovery extension: resource servers
// declare how a paid resource is called, facilitators catalog what they see
// verified, and the catalog is served from a discovery endpoint.
package bazaar

import (
	"fmt"

	"github.com/x402-foundation/x402-go/extensions/types"
)

// BAZAAR is the extension key in extensions maps.
const BAZAAR = types.BAZAAR

// DeclareDiscoveryExtension builds a server-side discovery declaration for
// a PaymentRequired response. The schema is generated to match the input
// shape so facilitators can validate what they catalog.
func DeclareDiscoveryExtension(input interface{}, output map[string]interface{}) (types.DiscoveryExtension, error) {
	switch input.(type) {
	case types.QueryInput, types.BodyInput:
	default:
		return types.DiscoveryExtension{}, fmt.Errorf("input must be a QueryInput or BodyInput")
	}

	return types.DiscoveryExtension{
		Info: types.DiscoveryInfo{
			Input:  input,
			Output: output,
		},
		Schema: discoverySchema(),
	}, nil
}

// discoverySchema is the JSON Schema a discovery declaration must satisfy.
func discoverySchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"input": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"type":   map[string]interface{}{"type": "string"},
					"method": map[string]interface{}{"type": "string"},
				},
				"required": []string{"type"},
			},
			"output": map[string]interface{}{
				"type": "object",
			},
		},
		"required": []string{"input"},
	}
}
