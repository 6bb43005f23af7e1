package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// sdkAdapter bridges the official Go MCP SDK's Client/ClientSession pair to
// MCPClientInterface.
type sdkAdapter struct {
	client  *mcpsdk.Client
	session *mcpsdk.ClientSession
}

// NewMCPClientAdapter wraps a connected SDK session so it can back an
// X402MCPClient:
//
//	mcpClient := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "my-agent", Version: "1.0.0"}, nil)
//	session, err := mcpClient.Connect(ctx, transport, nil)
//	adapter := mcp.NewMCPClientAdapter(mcpClient, session)
func NewMCPClientAdapter(client *mcpsdk.Client, session *mcpsdk.ClientSession) MCPClientInterface {
	return &sdkAdapter{client: client, session: session}
}

// Connect is a no-op: the session handed to NewMCPClientAdapter is already
// connected.
func (a *sdkAdapter) Connect(ctx context.Context, transport interface{}) error {
	return nil
}

func (a *sdkAdapter) Close(ctx context.Context) error {
	return a.session.Close()
}

func (a *sdkAdapter) CallTool(ctx context.Context, params map[string]interface{}) (MCPToolResult, error) {
	name, _ := params["name"].(string)
	args, _ := params["arguments"].(map[string]interface{})
	meta, _ := params["_meta"].(map[string]interface{})

	callParams := &mcpsdk.CallToolParams{
		Name:      name,
		Arguments: args,
	}
	if meta != nil {
		callParams.Meta = mcpsdk.Meta(meta)
	}

	result, err := a.session.CallTool(ctx, callParams)
	if err != nil {
		return MCPToolResult{}, err
	}

	content := make([]MCPContentItem, 0, len(result.Content))
	for _, item := range result.Content {
		if textContent, ok := item.(*mcpsdk.TextContent); ok {
			content = append(content, MCPContentItem{Type: "text", Text: textContent.Text})
		}
	}

	mcpResult := MCPToolResult{
		Content: content,
		IsError: result.IsError,
	}

	if structured, ok := result.StructuredContent.(map[string]interface{}); ok {
		mcpResult.StructuredContent = structured
	}

	// Meta carries the settlement response; losing it would make every paid
	// call look unpaid to the client.
	if result.Meta != nil {
		metaMap := result.Meta.GetMeta()
		if len(metaMap) > 0 {
			mcpResult.Meta = make(map[string]interface{}, len(metaMap))
			for k, v := range metaMap {
				mcpResult.Meta[k] = v
			}
		}
	}

	return mcpResult, nil
}

func (a *sdkAdapter) ListTools(ctx context.Context) (interface{}, error) {
	return a.session.ListTools(ctx, nil)
}

func (a *sdkAdapter) ListResources(ctx context.Context) (interface{}, error) {
	return a.session.ListResources(ctx, nil)
}

func (a *sdkAdapter) ReadResource(ctx context.Context, uri string) (interface{}, error) {
	return a.session.ReadResource(ctx, &mcpsdk.ReadResourceParams{URI: uri})
}

func (a *sdkAdapter) ListResourceTemplates(ctx context.Context) (interface{}, error) {
	return a.session.ListResourceTemplates(ctx, nil)
}

func (a *sdkAdapter) SubscribeResource(ctx context.Context, uri string) error {
	return a.session.Subscribe(ctx, &mcpsdk.SubscribeParams{URI: uri})
}

func (a *sdkAdapter) UnsubscribeResource(ctx context.Context, uri string) error {
	return a.session.Unsubscribe(ctx, &mcpsdk.UnsubscribeParams{URI: uri})
}

func (a *sdkAdapter) ListPrompts(ctx context.Context) (interface{}, error) {
	return a.session.ListPrompts(ctx, nil)
}

func (a *sdkAdapter) GetPrompt(ctx context.Context, name string) (interface{}, error) {
	return a.session.GetPrompt(ctx, &mcpsdk.GetPromptParams{Name: name})
}

func (a *sdkAdapter) GetServerCapabilities(ctx context.Context) (interface{}, error) {
	initResult := a.session.InitializeResult()
	if initResult == nil {
		return nil, fmt.Errorf("session not initialized")
	}
	return initResult.Capabilities, nil
}

func (a *sdkAdapter) GetServerVersion(ctx context.Context) (interface{}, error) {
	initResult := a.session.InitializeResult()
	if initResult == nil {
		return nil, fmt.Errorf("session not initialized")
	}
	return initResult.ServerInfo.Version, nil
}

func (a *sdkAdapter) GetInstructions(ctx context.Context) (string, error) {
	initResult := a.session.InitializeResult()
	if initResult == nil {
		return "", fmt.Errorf("session not initialized")
	}
	return initResult.Instructions, nil
}

func (a *sdkAdapter) Ping(ctx context.Context) error {
	return a.session.Ping(ctx, &mcpsdk.PingParams{})
}

func (a *sdkAdapter) Complete(ctx context.Context, prompt string, cursor int) (interface{}, error) {
	return a.session.Complete(ctx, &mcpsdk.CompleteParams{
		Ref: &mcpsdk.CompleteReference{
			Type: "ref/prompt",
			Name: prompt,
		},
		Argument: mcpsdk.CompleteParamsArgument{
			Name:  "argument",
			Value: prompt,
		},
	})
}

func (a *sdkAdapter) SetLoggingLevel(ctx context.Context, level string) error {
	return a.session.SetLoggingLevel(ctx, &mcpsdk.SetLoggingLevelParams{Level: mcpsdk.LoggingLevel(level)})
}

// SendRootsListChanged is a no-op: the SDK sends the notification itself
// when roots are added or removed on the underlying client.
func (a *sdkAdapter) SendRootsListChanged(ctx context.Context) error {
	return nil
}
