package types

// ResourceServerExtension enriches a declared extension payload before it
// is sent in a 402 response. Implementations may use the transport context
// to vary the enrichment per transport (HTTP, MCP).
type ResourceServerExtension interface {
	Key() string
	EnrichDeclaration(declaration interface{}, transportContext interface{}) interface{}
}
