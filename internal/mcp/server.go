package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"flowport/backend/internal/export"
	"flowport/backend/internal/importer"
)

type Server struct {
	mcpServer *server.MCPServer
	exporter  *export.Exporter
	importer  *importer.Importer
}

func NewServer(exporter *export.Exporter, imp *importer.Importer) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Workflow Bundles",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		exporter: exporter,
		importer: imp,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"export_bundle",
			mcp.WithDescription("Export workflows into a portable bundle"),
			mcp.WithString("workflow_ids", mcp.Required(),
				mcp.Description("Comma-separated internal ids of the workflows to export")),
		),
		s.handleExportBundle,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"validate_bundle",
			mcp.WithDescription("Dry-run a bundle through header, schema and dependency validation without writing anything"),
			mcp.WithString("bundle", mcp.Required(), mcp.Description("The bundle JSON document")),
		),
		s.handleValidateBundle,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"import_bundle",
			mcp.WithDescription("Import a bundle as one all-or-nothing transaction"),
			mcp.WithString("bundle", mcp.Required(), mcp.Description("The bundle JSON document")),
			mcp.WithBoolean("force", mcp.Description("Overwrite existing workflows matched by key")),
		),
		s.handleImportBundle,
	)
}

func (s *Server) handleExportBundle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	idsArg, ok := args["workflow_ids"].(string)
	if !ok || idsArg == "" {
		return mcp.NewToolResultError("Missing required parameter: workflow_ids"), nil
	}

	var ids []string
	for _, id := range strings.Split(idsArg, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	raw, err := s.exporter.Export(ctx, ids)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to export: %v", err)), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func (s *Server) handleValidateBundle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	raw, ok := args["bundle"].(string)
	if !ok || raw == "" {
		return mcp.NewToolResultError("Missing required parameter: bundle"), nil
	}

	if err := s.importer.Validate(ctx, []byte(raw)); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Bundle is invalid: %v", err)), nil
	}
	return mcp.NewToolResultText("Bundle is valid"), nil
}

func (s *Server) handleImportBundle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	raw, ok := args["bundle"].(string)
	if !ok || raw == "" {
		return mcp.NewToolResultError("Missing required parameter: bundle"), nil
	}
	force, _ := args["force"].(bool)

	report, err := s.importer.Import(ctx, []byte(raw), importer.Options{Force: force})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to import: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(report)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	// Use SSE server for /mcp/sse and /mcp/message endpoints
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		// Direct POST for tool calls
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	// SSE endpoints
	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
