// ABOUTME: MCP server speaking JSON-RPC 2.0 over stdio for agents like Claude Code
// ABOUTME: Serves the catalogued Bioclin tools plus local session-management tools

package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vindhyads/bioclin-gateway/internal/api"
	"github.com/vindhyads/bioclin-gateway/internal/browser"
	"github.com/vindhyads/bioclin-gateway/internal/session"
	"github.com/vindhyads/bioclin-gateway/internal/tools"
)

// protocolVersion is advertised in initialize responses.
const protocolVersion = "2025-03-26"

// maxLineSize bounds one JSON-RPC message on stdin (1MB).
const maxLineSize = 1 << 20

// JSON-RPC 2.0 types

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Standard JSON-RPC error codes
const (
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCInvalidParams  = -32602
	JSONRPCInternalError  = -32603
)

// MCP-specific types

// MCPToolInfo represents an MCP tool definition.
type MCPToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// MCPListToolsResult is the result for tools/list.
type MCPListToolsResult struct {
	Tools []MCPToolInfo `json:"tools"`
}

// MCPCallToolParams are the params for tools/call.
type MCPCallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// MCPCallToolResult is the result for tools/call.
type MCPCallToolResult struct {
	Content []MCPContent `json:"content"`
	IsError bool         `json:"isError,omitempty"`
}

// MCPContent represents content in a tool result.
type MCPContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// LoginFlow opens a browser login and returns the captured cookies. Injected
// so the server does not hard-wire a real browser.
type LoginFlow func(ctx context.Context) (*browser.Capture, error)

// Config holds configuration for the MCP server.
type Config struct {
	Router     *tools.Router
	Client     *api.Client
	Store      *session.Store
	LoginFlow  LoginFlow
	SessionTTL time.Duration
	Version    string
	Logger     *slog.Logger
}

// Server serves the Bioclin tool surface over the MCP stdio transport: one
// JSON-RPC message per line on stdin, one response per line on stdout. All
// logging goes to the logger, never to the transport stream.
type Server struct {
	router     *tools.Router
	client     *api.Client
	store      *session.Store
	loginFlow  LoginFlow
	sessionTTL time.Duration
	version    string
	logger     *slog.Logger
}

// NewServer creates a new MCP server with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Router == nil {
		return nil, errors.New("router is required")
	}
	if cfg.Client == nil {
		return nil, errors.New("client is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	return &Server{
		router:     cfg.Router,
		client:     cfg.Client,
		store:      cfg.Store,
		loginFlow:  cfg.LoginFlow,
		sessionTTL: cfg.SessionTTL,
		version:    version,
		logger:     logger,
	}, nil
}

// Run reads JSON-RPC messages from in until EOF, writing responses to out.
// EOF is the normal shutdown path and returns nil. Cancelling ctx aborts the
// in-flight call; the read loop itself ends when the client closes stdin.
func (s *Server) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	encoder := json.NewEncoder(out)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req JSONRPCRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.send(encoder, errorResponse(nil, JSONRPCParseError, "invalid JSON", nil))
			continue
		}
		if req.JSONRPC != "2.0" {
			s.send(encoder, errorResponse(req.ID, JSONRPCInvalidRequest, "invalid JSON-RPC version", nil))
			continue
		}

		resp := s.dispatch(ctx, req)
		if resp == nil {
			continue // notification, nothing to send
		}
		s.send(encoder, *resp)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading transport stream: %w", err)
	}
	return nil
}

// dispatch routes one message. Notifications (no ID) return nil.
func (s *Server) dispatch(ctx context.Context, req JSONRPCRequest) *JSONRPCResponse {
	isNotification := len(req.ID) == 0 || string(req.ID) == "null"

	s.logger.Debug("mcp request", "method", req.Method, "is_notification", isNotification)

	if isNotification {
		return nil
	}

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "ping":
		return resultResponse(req.ID, map[string]any{})
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	default:
		resp := errorResponse(req.ID, JSONRPCMethodNotFound, "method not found", nil)
		return &resp
	}
}

// handleInitialize handles the MCP initialize handshake.
func (s *Server) handleInitialize(req JSONRPCRequest) *JSONRPCResponse {
	s.logger.Info("mcp session initialized", "protocol_version", protocolVersion)
	return resultResponse(req.ID, map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    "bioclin-gateway",
			"version": s.version,
		},
	})
}

// handleToolsList returns the catalogued API tools plus the local
// session-management tools.
func (s *Server) handleToolsList(req JSONRPCRequest) *JSONRPCResponse {
	routes := s.router.Catalogue().Routes()
	result := MCPListToolsResult{
		Tools: make([]MCPToolInfo, 0, len(routes)+len(metaTools)),
	}
	for _, route := range routes {
		result.Tools = append(result.Tools, MCPToolInfo{
			Name:        route.Name,
			Description: route.Description,
			InputSchema: route.SchemaJSON(),
		})
	}
	result.Tools = append(result.Tools, metaTools...)

	s.logger.Debug("tools/list", "count", len(result.Tools))
	return resultResponse(req.ID, result)
}

// handleToolsCall executes one tool call. Tool-level failures come back as
// isError results so the agent can read and react to them; only malformed
// requests become JSON-RPC errors.
func (s *Server) handleToolsCall(ctx context.Context, req JSONRPCRequest) *JSONRPCResponse {
	var params MCPCallToolParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			resp := errorResponse(req.ID, JSONRPCInvalidParams, "invalid params", nil)
			return &resp
		}
	}
	if params.Name == "" {
		resp := errorResponse(req.ID, JSONRPCInvalidParams, "tool name is required", nil)
		return &resp
	}

	// Request ID for log correlation across the call.
	requestID := uuid.New().String()
	s.logger.Debug("tools/call", "tool_name", params.Name, "request_id", requestID)

	var result MCPCallToolResult
	if handler, ok := metaHandlers[params.Name]; ok {
		result = handler(s, ctx, params.Arguments)
	} else {
		result = s.callAPITool(ctx, params.Name, params.Arguments)
	}

	s.logger.Debug("tools/call complete",
		"tool_name", params.Name,
		"request_id", requestID,
		"is_error", result.IsError,
	)
	return resultResponse(req.ID, result)
}

// callAPITool routes one catalogued tool call to the REST API.
func (s *Server) callAPITool(ctx context.Context, name string, args map[string]any) MCPCallToolResult {
	res, err := s.router.Call(ctx, name, args)
	if err != nil {
		return errorResult(s.formatToolError(err))
	}
	return textResult(formatResult(res))
}

// formatToolError turns a call failure into guidance the agent can act on.
// Auth failures are classified against the local store so "log in first",
// "log in again", and "the server rejected you" read differently.
func (s *Server) formatToolError(err error) string {
	if errors.Is(err, tools.ErrUnknownTool) {
		return err.Error()
	}

	if api.IsAuthFailure(err) {
		status, _ := s.store.Status()
		switch status {
		case session.StatusAbsent:
			return "Not logged in to Bioclin. Run the bioclin_browser_login tool, or `bioclin-auth login` from a terminal, then retry."
		case session.StatusExpired:
			return "The stored Bioclin login has expired. Run the bioclin_browser_login tool to log in again, then retry."
		default:
			return fmt.Sprintf("Bioclin rejected the current session (%v). The session may have been revoked; log in again with bioclin_browser_login.", err)
		}
	}

	var te *api.TransportError
	if errors.As(err, &te) {
		return fmt.Sprintf("Cannot reach the Bioclin API: %v. Check the network and the configured base URL.", te.Err)
	}

	var he *api.HTTPError
	if errors.As(err, &he) {
		return fmt.Sprintf("Bioclin API error: %v", he)
	}

	return err.Error()
}

// formatResult renders a successful API result as tool output text.
func formatResult(res *api.Result) string {
	switch {
	case res.NoContent:
		return fmt.Sprintf("OK (HTTP %d, no content)", res.StatusCode)
	case res.Data != nil:
		pretty, err := json.MarshalIndent(res.Data, "", "  ")
		if err != nil {
			return fmt.Sprintf("%v", res.Data)
		}
		return string(pretty)
	default:
		return res.Text
	}
}

func textResult(text string) MCPCallToolResult {
	return MCPCallToolResult{Content: []MCPContent{{Type: "text", Text: text}}}
}

func errorResult(text string) MCPCallToolResult {
	return MCPCallToolResult{Content: []MCPContent{{Type: "text", Text: text}}, IsError: true}
}

func resultResponse(id json.RawMessage, result any) *JSONRPCResponse {
	return &JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result}
}

func errorResponse(id json.RawMessage, code int, message string, data any) JSONRPCResponse {
	return JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &JSONRPCError{Code: code, Message: message, Data: data},
	}
}

func (s *Server) send(encoder *json.Encoder, resp JSONRPCResponse) {
	if err := encoder.Encode(resp); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}
