// Package mcp carries x402 payments over the Model Context Protocol.
//
// Payments ride in the `_meta` field of tool calls: clients attach a signed
// payment under the "x402/payment" key, servers attach the settlement result
// under "x402/payment-response". A tool that needs payment returns an error
// result whose structuredContent (and content[0].text) is the PaymentRequired
// body, mirroring an HTTP 402.
//
// Server side, wrap a tool handler:
//
//	wrapper := mcp.NewPaymentWrapper(resourceServer, mcp.PaymentWrapperConfig{
//	    Accepts: accepts,
//	})
//	mcpServer.AddTool(tool, wrapper.Wrap(handler))
//
// Client side, wrap a connected session so payment happens automatically:
//
//	adapter := mcp.NewMCPClientAdapter(sdkClient, session)
//	x402Mcp := mcp.NewX402MCPClientFromConfig(adapter, []mcp.SchemeRegistration{
//	    {Network: "eip155:84532", Client: evmClientScheme},
//	}, mcp.Options{})
//	result, err := x402Mcp.CallTool(ctx, "get_weather", args)
package mcp
