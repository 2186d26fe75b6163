// Package mcp provides Model Context Protocol server functionality.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/codescope/codescope/domain/store"
	"github.com/codescope/codescope/domain/unit"
	"github.com/codescope/codescope/infrastructure/toolserver"
	"github.com/codescope/codescope/internal/log"
)

// Resource URIs exposed by the server.
const (
	ResourceManifest     = "codebase://manifest"
	ResourceGraph        = "codebase://graph"
	ResourceUnitTemplate = "codebase://unit/{identifier}"
	ResourceTypeTemplate = "codebase://type/{type}"
)

// Server adapts the tool registry to the Model Context Protocol. Every
// registered tool is exposed one to one; the index files are exposed as
// resources.
type Server struct {
	mcpServer *server.MCPServer
	registry  *toolserver.Registry
	metadata  store.MetadataStore
	indexDir  string
	logger    *log.Logger
}

// NewServer creates an MCP server over the registry and the index.
func NewServer(registry *toolserver.Registry, metadata store.MetadataStore, indexDir string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Discard()
	}

	s := &Server{
		registry: registry,
		metadata: metadata,
		indexDir: indexDir,
		logger:   logger,
	}

	mcpServer := server.NewMCPServer(
		"codescope",
		"0.1.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, true),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.mcpServer = mcpServer
	return s
}

// registerTools mirrors every registry tool into the MCP tool list.
func (s *Server) registerTools(mcpServer *server.MCPServer) {
	for _, name := range s.registry.Names() {
		tool, ok := s.registry.Lookup(name)
		if !ok {
			continue
		}
		mcpServer.AddTool(buildTool(tool), s.toolHandler(tool.Name))
	}
}

// buildTool translates a registry schema into MCP tool options.
func buildTool(t toolserver.Tool) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(t.Description)}

	for name, prop := range t.Schema.Properties {
		propOpts := []mcp.PropertyOption{mcp.Description(prop.Description)}
		if isRequired(t.Schema.Required, name) {
			propOpts = append(propOpts, mcp.Required())
		}
		if len(prop.Enum) > 0 {
			propOpts = append(propOpts, mcp.Enum(prop.Enum...))
		}

		switch prop.Type {
		case "integer", "number":
			opts = append(opts, mcp.WithNumber(name, propOpts...))
		case "boolean":
			opts = append(opts, mcp.WithBoolean(name, propOpts...))
		case "object":
			opts = append(opts, mcp.WithObject(name, propOpts...))
		default:
			opts = append(opts, mcp.WithString(name, propOpts...))
		}
	}
	return mcp.NewTool(t.Name, opts...)
}

// toolHandler dispatches an MCP call through the registry so that schema
// validation, deadlines, and error typing behave identically on every
// transport.
func (s *Server) toolHandler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		params := request.GetArguments()
		if params == nil {
			params = map[string]any{}
		}

		resp := s.registry.Dispatch(ctx, toolserver.Request{Tool: name, Params: params})
		if !resp.OK {
			s.logger.Warn("mcp tool failed", "tool", name, "error_type", resp.ErrorType, "error", resp.Error)
			return mcp.NewToolResultError(fmt.Sprintf("%s: %s", resp.ErrorType, resp.Error)), nil
		}

		jsonBytes, err := json.Marshal(resp.Result)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcp.NewToolResultText(string(jsonBytes)), nil
	}
}

func (s *Server) registerResources(mcpServer *server.MCPServer) {
	mcpServer.AddResource(mcp.NewResource(
		ResourceManifest,
		"Extraction manifest",
		mcp.WithResourceDescription("Unit counts, git revision and extraction time of the current index"),
		mcp.WithMIMEType("application/json"),
	), s.fileResource(unit.ManifestFileName))

	mcpServer.AddResource(mcp.NewResource(
		ResourceGraph,
		"Dependency graph",
		mcp.WithResourceDescription("The full dependency graph export"),
		mcp.WithMIMEType("application/json"),
	), s.fileResource(unit.GraphFileName))

	mcpServer.AddResourceTemplate(mcp.NewResourceTemplate(
		ResourceUnitTemplate,
		"Extracted unit",
		mcp.WithTemplateDescription("One extracted unit by identifier"),
		mcp.WithTemplateMIMEType("application/json"),
	), s.handleUnitResource)

	mcpServer.AddResourceTemplate(mcp.NewResourceTemplate(
		ResourceTypeTemplate,
		"Units by type",
		mcp.WithTemplateDescription("Every unit of one type"),
		mcp.WithTemplateMIMEType("application/json"),
	), s.handleTypeResource)
}

// fileResource serves one JSON file from the index directory verbatim.
func (s *Server) fileResource(fileName string) server.ResourceHandlerFunc {
	return func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := os.ReadFile(filepath.Join(s.indexDir, fileName))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fileName, err)
		}
		return []mcp.ResourceContents{mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}}, nil
	}
}

func (s *Server) handleUnitResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	identifier := strings.TrimPrefix(request.Params.URI, "codebase://unit/")
	if identifier == "" || identifier == request.Params.URI {
		return nil, fmt.Errorf("invalid unit URI: %s", request.Params.URI)
	}

	u, err := s.metadata.Find(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", identifier, err)
	}
	jsonBytes, err := json.MarshalIndent(u, "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{mcp.TextResourceContents{
		URI:      request.Params.URI,
		MIMEType: "application/json",
		Text:     string(jsonBytes),
	}}, nil
}

func (s *Server) handleTypeResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	typeName := strings.TrimPrefix(request.Params.URI, "codebase://type/")
	if !unit.Type(typeName).IsValid() {
		return nil, fmt.Errorf("unknown unit type: %s", typeName)
	}

	units, err := s.metadata.FindByType(ctx, unit.Type(typeName))
	if err != nil {
		return nil, fmt.Errorf("find by type %s: %w", typeName, err)
	}

	type entry struct {
		Identifier string `json:"identifier"`
		FilePath   string `json:"file_path"`
	}
	entries := make([]entry, len(units))
	for i, u := range units {
		entries[i] = entry{Identifier: u.Identifier, FilePath: u.FilePath}
	}
	jsonBytes, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{mcp.TextResourceContents{
		URI:      request.Params.URI,
		MIMEType: "application/json",
		Text:     string(jsonBytes),
	}}, nil
}

func isRequired(required []string, name string) bool {
	for _, r := range required {
		if r == name {
			return true
		}
	}
	return false
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio runs the MCP server on stdio.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
