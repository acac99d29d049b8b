package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	log "github.com/sirupsen/logrus"

	"github.com/craftpad/payload-mcp/internal/payload"
)

const defaultLoginTimeout = 300 * time.Second

func (s *Server) handleCreateObject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	collection, err := request.RequireString("collection_name")
	if err != nil {
		return mcp.NewToolResultError("collection_name is required"), nil
	}

	data, _ := request.GetArguments()["data"].(map[string]any)
	if len(data) == 0 {
		return mcp.NewToolResultError("data is required"), nil
	}

	result, errCreate := s.client.Create(ctx, collection, data)
	if errCreate != nil {
		return toolError(errCreate), nil
	}
	return jsonResult(result), nil
}

func (s *Server) handleSearchObjects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	collection, err := request.RequireString("collection_name")
	if err != nil {
		return mcp.NewToolResultError("collection_name is required"), nil
	}

	args := request.GetArguments()
	opts := payload.SearchOptions{
		Sort:   stringArg(args, "sort"),
		Locale: stringArg(args, "locale"),
		Limit:  intArg(args, "limit"),
		Page:   intArg(args, "page"),
		Depth:  intArg(args, "depth"),
	}
	if query, ok := args["query"].(map[string]any); ok {
		opts.Where = query
	}
	if sel, ok := args["select"].(map[string]any); ok {
		opts.Select = sel
	}
	if populate, ok := args["populate"].(map[string]any); ok {
		opts.Populate = populate
	}

	result, errSearch := s.client.Search(ctx, collection, opts)
	if errSearch != nil {
		return toolError(errSearch), nil
	}
	return jsonResult(result), nil
}

func (s *Server) handleUpdateObject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	collection, err := request.RequireString("collection_name")
	if err != nil {
		return mcp.NewToolResultError("collection_name is required"), nil
	}
	objectID, err := request.RequireString("object_id")
	if err != nil {
		return mcp.NewToolResultError("object_id is required"), nil
	}

	data, _ := request.GetArguments()["data"].(map[string]any)
	if len(data) == 0 {
		return mcp.NewToolResultError("data is required"), nil
	}

	result, errUpdate := s.client.Update(ctx, collection, objectID, data)
	if errUpdate != nil {
		return toolError(errUpdate), nil
	}
	return jsonResult(result), nil
}

func (s *Server) handleAuthStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := json.MarshalIndent(s.auth.AuthStatus(), "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to format auth status: %v", err)), nil
	}
	return mcp.NewToolResultText(string(status)), nil
}

// handleBrowserLogin starts the interactive flow and blocks until the user
// completes the login in their browser or the timeout elapses.
func (s *Server) handleBrowserLogin(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	timeout := defaultLoginTimeout
	if t := intArg(request.GetArguments(), "timeout"); t != nil && *t > 0 {
		timeout = time.Duration(*t) * time.Second
	}

	if err := s.auth.StartBrowserAuth(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to start browser authentication: %v", err)), nil
	}

	if !s.auth.WaitForBrowserAuth(ctx, timeout) {
		return mcp.NewToolResultError("browser authentication did not complete before the timeout"), nil
	}
	return mcp.NewToolResultText("Authentication successful"), nil
}

// toolError maps client errors onto MCP error results, logging server-side.
func toolError(err error) *mcp.CallToolResult {
	log.Errorf("tool call failed: %v", err)
	switch {
	case payload.IsAuthenticationError(err):
		return mcp.NewToolResultError(fmt.Sprintf("Authentication error: %v. Use the browser_login tool to re-authenticate.", err))
	case payload.IsConnectionError(err):
		return mcp.NewToolResultError(fmt.Sprintf("Connection error: %v", err))
	default:
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err))
	}
}

// jsonResult pretty-prints an API response for the tool caller.
func jsonResult(raw []byte) *mcp.CallToolResult {
	var buf map[string]any
	if err := json.Unmarshal(raw, &buf); err == nil {
		if pretty, errMarshal := json.MarshalIndent(buf, "", "  "); errMarshal == nil {
			return mcp.NewToolResultText(string(pretty))
		}
	}
	return mcp.NewToolResultText(string(raw))
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

// intArg reads an optional numeric argument. JSON numbers arrive as float64.
func intArg(args map[string]any, key string) *int {
	if v, ok := args[key].(float64); ok {
		n := int(v)
		return &n
	}
	return nil
}
