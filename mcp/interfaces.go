package mcp

import (
	"context"
)

// MCPClientInterface is the MCP client surface the payment layer builds on.
// It is deliberately SDK-agnostic; NewMCPClientAdapter bridges the official
// Go SDK to it.
type MCPClientInterface interface {
	Connect(ctx context.Context, transport interface{}) error
	Close(ctx context.Context) error

	CallTool(ctx context.Context, params map[string]interface{}) (MCPToolResult, error)
	ListTools(ctx context.Context) (interface{}, error)

	ListResources(ctx context.Context) (interface{}, error)
	ReadResource(ctx context.Context, uri string) (interface{}, error)
	ListResourceTemplates(ctx context.Context) (interface{}, error)
	SubscribeResource(ctx context.Context, uri string) error
	UnsubscribeResource(ctx context.Context, uri string) error

	ListPrompts(ctx context.Context) (interface{}, error)
	GetPrompt(ctx context.Context, name string) (interface{}, error)

	GetServerCapabilities(ctx context.Context) (interface{}, error)
	GetServerVersion(ctx context.Context) (interface{}, error)
	GetInstructions(ctx context.Context) (string, error)

	Ping(ctx context.Context) error
	Complete(ctx context.Context, prompt string, cursor int) (interface{}, error)
	SetLoggingLevel(ctx context.Context, level string) error
	SendRootsListChanged(ctx context.Context) error
}
