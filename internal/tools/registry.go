package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/docqa/internal/models"
)

// Tool descriptions shown to MCP clients.
const (
	RetrievalDescription = "Search through uploaded documents to find relevant information. Use this when the user asks about their uploaded PDFs or audio files."
	KnowledgeDescription = "Answer questions using AI general knowledge. Use this when documents do not contain the answer or for general questions."
)

// RegisterAll registers vector_search and general_knowledge with the MCP server.
func RegisterAll(server *mcp.Server, deps *Dependencies) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        string(models.ToolRetrieval),
		Description: RetrievalDescription,
	}, NewRetrievalHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        string(models.ToolKnowledge),
		Description: KnowledgeDescription,
	}, NewKnowledgeHandler(deps))
}

// NewRetrievalHandler creates the vector_search handler. A failed search is a
// normal not-found result, not a tool error.
func NewRetrievalHandler(deps *Dependencies) mcp.ToolHandlerFor[RetrievalInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input RetrievalInput) (
		*mcp.CallToolResult, any, error,
	) {
		if input.Query == "" {
			return ErrorResult("Query cannot be empty", "Provide a search query"), nil, nil
		}
		result := deps.Retrieval.Run(ctx, input)
		deps.Logger.Info("vector_search completed", "found", result.Found, "passages", len(result.Passages))
		return JSONResult(result), nil, nil
	}
}

// NewKnowledgeHandler creates the general_knowledge handler.
func NewKnowledgeHandler(deps *Dependencies) mcp.ToolHandlerFor[KnowledgeInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input KnowledgeInput) (
		*mcp.CallToolResult, any, error,
	) {
		if input.Question == "" {
			return ErrorResult("Question cannot be empty", "Provide a question"), nil, nil
		}
		result, err := deps.Knowledge.Run(ctx, input)
		if err != nil {
			deps.Logger.Error("general_knowledge failed", "error", err)
			return ErrorResult("Failed to generate answer", "The language model may be unavailable"), nil, nil
		}
		return JSONResult(result), nil, nil
	}
}
