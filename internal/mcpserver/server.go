// Package mcpserver exposes the Payload CMS operations as MCP tools over
// stdio, for consumption by AI assistants and other MCP clients.
package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	log "github.com/sirupsen/logrus"

	"github.com/craftpad/payload-mcp/internal/auth"
	"github.com/craftpad/payload-mcp/internal/payload"
)

const (
	serverName    = "payload-mcp-server"
	serverVersion = "0.1.0"
)

// Server bridges MCP tool calls to the Payload client and the auth manager.
type Server struct {
	client    *payload.Client
	auth      *auth.Manager
	mcpServer *server.MCPServer
}

// New creates the MCP server and registers all tools.
func New(client *payload.Client, authManager *auth.Manager) *Server {
	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		client:    client,
		auth:      authManager,
		mcpServer: mcpServer,
	}
	s.registerTools()
	return s
}

// Start serves the MCP protocol over stdio. It blocks until the stdio
// connection is closed by the client.
func (s *Server) Start(ctx context.Context) error {
	log.Info("starting Payload MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	createTool := mcp.NewTool("create_object",
		mcp.WithDescription("Create a new object in a specified collection"),
		mcp.WithString("collection_name",
			mcp.Required(),
			mcp.Description("Name of the collection to create the object in"),
		),
		mcp.WithObject("data",
			mcp.Required(),
			mcp.Description("Object data to create"),
		),
	)
	s.mcpServer.AddTool(createTool, s.handleCreateObject)

	searchTool := mcp.NewTool("search_objects",
		mcp.WithDescription("Search objects in a collection"),
		mcp.WithString("collection_name",
			mcp.Required(),
			mcp.Description("Name of the collection to search in"),
		),
		mcp.WithObject("query",
			mcp.Description("MongoDB-style filters, e.g. {\"title\": {\"contains\": \"news\"}}"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results per page"),
		),
		mcp.WithNumber("page",
			mcp.Description("Page number for pagination"),
		),
		mcp.WithString("sort",
			mcp.Description("Field to sort by, prefix with '-' for descending"),
		),
		mcp.WithNumber("depth",
			mcp.Description("Relationship population depth"),
		),
		mcp.WithString("locale",
			mcp.Description("Locale for retrieving documents"),
		),
		mcp.WithObject("select",
			mcp.Description("Fields to include in the result"),
		),
		mcp.WithObject("populate",
			mcp.Description("Fields to populate from related documents"),
		),
	)
	s.mcpServer.AddTool(searchTool, s.handleSearchObjects)

	updateTool := mcp.NewTool("update_object",
		mcp.WithDescription("Update an object by ID"),
		mcp.WithString("collection_name",
			mcp.Required(),
			mcp.Description("Name of the collection containing the object"),
		),
		mcp.WithString("object_id",
			mcp.Required(),
			mcp.Description("ID of the object to update"),
		),
		mcp.WithObject("data",
			mcp.Required(),
			mcp.Description("Updated object data"),
		),
	)
	s.mcpServer.AddTool(updateTool, s.handleUpdateObject)

	statusTool := mcp.NewTool("auth_status",
		mcp.WithDescription("Report the current authentication state: token presence, expiry, stored credentials"),
	)
	s.mcpServer.AddTool(statusTool, s.handleAuthStatus)

	loginTool := mcp.NewTool("browser_login",
		mcp.WithDescription("Open a browser-based login page and wait for the user to authenticate"),
		mcp.WithNumber("timeout",
			mcp.Description("Seconds to wait for the login to complete (default 300)"),
		),
	)
	s.mcpServer.AddTool(loginTool, s.handleBrowserLogin)
}

// VerifyConnection issues a probe request against the users collection so a
// misconfigured endpoint is reported at startup. Failure is logged, not
// fatal; the server still starts so the user can fix configuration or log in
// interactively.
func (s *Server) VerifyConnection(ctx context.Context) {
	limit := 1
	result, err := s.client.Search(ctx, s.auth.Collection(), payload.SearchOptions{Limit: &limit})
	if err != nil {
		log.Errorf("connection test failed: %v", err)
		return
	}
	log.Infof("connection test successful (%d bytes)", len(result))
}
