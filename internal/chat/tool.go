package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/parkbase/parkbot/internal/log"
	"github.com/parkbase/parkbot/internal/retriever"
)

// SearchToolName is the Genkit tool name for knowledge base search.
const SearchToolName = "searchKnowledgeBase"

const searchToolDescription = "Search the trampoline park knowledge base for information " +
	"about opening hours, pricing, safety rules, party bookings, facilities and policies. " +
	"Use this tool for every factual question about the park. " +
	"Returns relevant excerpts from park documents, or a notice when nothing relevant exists."

// The model sees these strings as tool output. Retrieval failures are
// reported as content rather than errors so the conversation continues.
const (
	noResultsMessage = "No relevant information found in the trampoline park knowledge base."
	toolErrorMessage = "Error searching the knowledge base."
)

// SearchInput is the model-facing input schema for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema_description:"The question to search the knowledge base for"`
}

// Retriever finds knowledge base chunks relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]retriever.Match, error)
}

// DefineSearchTool registers the knowledge base search tool with Genkit.
func DefineSearchTool(g *genkit.Genkit, r Retriever, logger log.Logger) ai.Tool {
	if logger == nil {
		logger = log.NewNop()
	}
	return genkit.DefineTool(g, SearchToolName, searchToolDescription, searchHandler(r, logger))
}

// searchHandler returns the tool implementation. Split out so tests can call
// it without a Genkit registry.
func searchHandler(r Retriever, logger log.Logger) func(*ai.ToolContext, SearchInput) (string, error) {
	return func(toolCtx *ai.ToolContext, input SearchInput) (string, error) {
		logger.Info("knowledge base search", "query", input.Query)

		matches, err := r.Retrieve(toolCtx, input.Query)
		if err != nil {
			logger.Warn("knowledge base search failed", "query", input.Query, "error", err)
			return toolErrorMessage, nil
		}
		if len(matches) == 0 {
			logger.Debug("knowledge base search empty", "query", input.Query)
			return noResultsMessage, nil
		}

		logger.Debug("knowledge base search done", "query", input.Query, "matches", len(matches))
		return formatMatches(matches), nil
	}
}

// formatMatches renders matches as a numbered list the model can cite from.
func formatMatches(matches []retriever.Match) string {
	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = fmt.Sprintf("[%d] %s", i+1, m.Content)
	}
	return strings.Join(parts, "\n\n")
}
