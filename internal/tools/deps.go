// Package tools provides the retrieval and knowledge tools and their MCP
// registration.
package tools

import (
	"log/slog"
)

// Dependencies holds shared services for tool handlers.
// Passed to handler factories via closure capture.
type Dependencies struct {
	Retrieval *Retrieval
	Knowledge *Knowledge
	Logger    *slog.Logger
}
