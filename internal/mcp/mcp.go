// Package mcp exposes the forecast kinds as Model Context Protocol tools over
// JSON-RPC, so agent runtimes can request forecasts directly.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gridcast/gridcast/internal/completion"
	"github.com/gridcast/gridcast/internal/forecaster"
	"github.com/gridcast/gridcast/internal/models"
)

const (
	protocolVersion = "2024-11-05"
	toolPrefix      = "forecast_"
	maxBodyBytes    = 8 << 20
)

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

// Request represents an MCP protocol request
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response represents an MCP protocol response
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents an MCP error
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ToolDefinition represents an MCP tool definition
type ToolDefinition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema interface{} `json:"inputSchema"`
}

// ToolResult is the result of tools/call. Pipeline failures are reported with
// IsError set rather than as protocol errors.
type ToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// Content is one block of tool output.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Server answers MCP requests by running the forecast pipeline.
type Server struct {
	forecaster     *forecaster.Forecaster
	name           string
	version        string
	requestTimeout time.Duration
	logger         *slog.Logger
}

// NewServer creates an MCP server. requestTimeout bounds each tools/call; zero
// means no bound beyond the caller's context.
func NewServer(f *forecaster.Forecaster, name, version string, requestTimeout time.Duration, logger *slog.Logger) *Server {
	return &Server{
		forecaster:     f,
		name:           name,
		version:        version,
		requestTimeout: requestTimeout,
		logger:         logger,
	}
}

// ServeHTTP handles MCP JSON-RPC requests
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeResponse(w, s.logger, errorResponse(nil, codeParseError, "Parse error"))
		return
	}

	writeResponse(w, s.logger, s.Handle(r.Context(), req))
}

// Handle dispatches one request.
func (s *Server) Handle(ctx context.Context, req Request) Response {
	s.logger.Info("MCP request received", "method", req.Method, "id", req.ID)

	switch req.Method {
	case "initialize":
		return resultResponse(req.ID, map[string]interface{}{
			"protocolVersion": protocolVersion,
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    s.name,
				"version": s.version,
			},
		})
	case "tools/list":
		return resultResponse(req.ID, map[string]interface{}{"tools": s.Tools()})
	case "tools/call":
		return s.callTool(ctx, req)
	default:
		return errorResponse(req.ID, codeMethodNotFound, "Method not found: "+req.Method)
	}
}

// Tools returns one tool per registered forecast kind.
func (s *Server) Tools() []ToolDefinition {
	specs := s.forecaster.Registry().Specs()
	tools := make([]ToolDefinition, 0, len(specs))
	for _, spec := range specs {
		tools = append(tools, ToolDefinition{
			Name:        ToolName(spec.Kind),
			Description: spec.Description,
			InputSchema: inputSchema(spec),
		})
	}
	return tools
}

// ToolName maps a kind to its tool name, e.g. bill-history to
// forecast_bill_history.
func ToolName(kind models.ForecastKind) string {
	return toolPrefix + strings.ReplaceAll(string(kind), "-", "_")
}

func kindForTool(name string) (models.ForecastKind, bool) {
	if !strings.HasPrefix(name, toolPrefix) {
		return "", false
	}
	return models.ForecastKind(strings.ReplaceAll(strings.TrimPrefix(name, toolPrefix), "_", "-")), true
}

func inputSchema(spec models.PromptSpec) map[string]interface{} {
	properties := map[string]interface{}{}
	required := []string{}

	if spec.UsesRecords() {
		item := map[string]interface{}{"type": "object"}
		if len(spec.RequiredFields) > 0 {
			item["required"] = spec.RequiredFields
		}
		properties[spec.InputKey] = map[string]interface{}{
			"type":        "array",
			"items":       item,
			"description": "Input records; only the first " + strconv.Itoa(spec.SampleCap) + " are sent to the model",
		}
		required = append(required, spec.InputKey)
	}

	for _, field := range spec.ContextFields {
		prop := map[string]interface{}{"type": "string"}
		if field.Default != "" {
			prop["default"] = field.Default
		}
		properties[field.Name] = prop
		if field.Required {
			required = append(required, field.Name)
		}
	}

	return map[string]interface{}{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func (s *Server) callTool(ctx context.Context, req Request) Response {
	var params struct {
		Name      string                     `json:"name"`
		Arguments map[string]json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, codeInvalidParams, "Invalid params")
	}

	kind, ok := kindForTool(params.Name)
	if !ok {
		return errorResponse(req.ID, codeInvalidParams, "Unknown tool: "+params.Name)
	}
	if _, ok := s.forecaster.Registry().Lookup(kind); !ok {
		return errorResponse(req.ID, codeInvalidParams, "Unknown tool: "+params.Name)
	}

	arguments := params.Arguments
	if arguments == nil {
		arguments = map[string]json.RawMessage{}
	}

	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	requestID := uuid.NewString()
	result, err := s.forecaster.Run(ctx, kind, requestID, arguments)
	if err != nil {
		return s.toolError(req.ID, requestID, err)
	}

	return resultResponse(req.ID, ToolResult{
		Content: []Content{{Type: "text", Text: string(result.Body)}},
		IsError: result.Outcome == models.OutcomeUnparsable,
	})
}

func (s *Server) toolError(id interface{}, requestID string, err error) Response {
	var validationErr *forecaster.ValidationError
	var upstreamErr *completion.UpstreamError

	var message string
	switch {
	case errors.As(err, &validationErr):
		message = validationErr.Message
	case errors.As(err, &upstreamErr) && upstreamErr.Timeout():
		message = "Upstream completion service timed out"
	case errors.Is(err, completion.ErrUpstream):
		message = "Upstream completion service unavailable"
	default:
		s.logger.Error("MCP tool call failed", "request_id", requestID, "error", err)
		return errorResponse(id, codeInternalError, "Internal error")
	}

	return resultResponse(id, ToolResult{
		Content: []Content{{Type: "text", Text: message}},
		IsError: true,
	})
}

func resultResponse(id interface{}, result interface{}) Response {
	return Response{JSONRPC: "2.0", ID: id, Result: result}
}

func errorResponse(id interface{}, code int, message string) Response {
	return Response{JSONRPC: "2.0", ID: id, Error: &Error{Code: code, Message: message}}
}

// writeResponse always answers 200; MCP carries errors in the envelope.
func writeResponse(w http.ResponseWriter, logger *slog.Logger, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error("failed to encode MCP response", "error", err)
	}
}
