// Package server exposes the pipeline over MCP (stdio) and HTTP.
package server

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/docqa/internal/service"
	"github.com/raphaelgruber/docqa/internal/tools"
)

// Chatter runs the full question-answer-evaluate pipeline.
type Chatter interface {
	Chat(ctx context.Context, message string, opts service.ChatOptions) (*service.ChatResponse, error)
}

// MCPServer wraps the MCP server with dependencies and lifecycle management.
type MCPServer struct {
	mcp    *mcp.Server
	logger *slog.Logger
}

// NewMCP creates an MCP server exposing vector_search, general_knowledge
// and ask.
func NewMCP(version string, deps *tools.Dependencies, chat Chatter, logger *slog.Logger) *MCPServer {
	if logger == nil {
		logger = slog.Default()
	}
	impl := &mcp.Implementation{
		Name:    "docqa",
		Version: version,
	}

	mcpServer := mcp.NewServer(impl, nil)
	mcpServer.AddReceivingMiddleware(LoggingMiddleware(logger))

	tools.RegisterAll(mcpServer, deps)
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question about the uploaded documents, falling back to general knowledge, and score the answer.",
	}, NewAskHandler(chat, logger))

	return &MCPServer{
		mcp:    mcpServer,
		logger: logger,
	}
}

// Run starts the server on stdio transport and blocks until disconnect or context cancellation.
func (s *MCPServer) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server", "transport", "stdio")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// Server returns the underlying MCP server.
func (s *MCPServer) Server() *mcp.Server {
	return s.mcp
}

// AskInput defines the input schema for the ask tool.
type AskInput struct {
	Question       string `json:"question" jsonschema:"The question to answer"`
	SkipEvaluation bool   `json:"skip_evaluation,omitempty" jsonschema:"Skip scoring the answer"`
}

// NewAskHandler creates the ask tool handler.
func NewAskHandler(chat Chatter, logger *slog.Logger) mcp.ToolHandlerFor[AskInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AskInput) (
		*mcp.CallToolResult, any, error,
	) {
		if input.Question == "" {
			return tools.ErrorResult("Question cannot be empty", "Provide a question"), nil, nil
		}
		resp, err := chat.Chat(ctx, input.Question, service.ChatOptions{SkipEvaluation: input.SkipEvaluation})
		if err != nil {
			logger.Error("ask failed", "error", err)
			return tools.ErrorResult("Failed to process question", err.Error()), nil, nil
		}
		return tools.JSONResult(resp), nil, nil
	}
}
