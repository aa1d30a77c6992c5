package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentloom/agentloom/core"
)

// RegisterBuiltins installs the stock tool catalogue. The handlers are
// deliberately self-contained stand-ins so workflows can exercise the tool
// path without external services; callers replace them via Register when real
// integrations exist.
func RegisterBuiltins(r *Registry) {
	r.Register(Definition{
		Name:        "web_search",
		Description: "Search the web for current information on a topic",
		Parameters: []Parameter{
			{Name: "query", Type: "string", Description: "Search query", Required: true},
			{Name: "max_results", Type: "integer", Description: "Maximum results to return", Default: 5},
		},
		Handler: func(_ context.Context, params map[string]any) (any, error) {
			query := params["query"].(string)
			max, _ := params["max_results"].(int)
			results := make([]map[string]any, 0, max)
			for i := 1; i <= max; i++ {
				results = append(results, map[string]any{
					"title":   fmt.Sprintf("Result %d for %q", i, query),
					"snippet": fmt.Sprintf("Summary of finding %d related to %s.", i, query),
					"url":     fmt.Sprintf("https://example.com/search/%d", i),
				})
			}
			return map[string]any{"query": query, "results": results}, nil
		},
	})

	r.Register(Definition{
		Name:        "execute_code",
		Description: "Execute a code snippet in a sandbox and return its output",
		Parameters: []Parameter{
			{Name: "code", Type: "string", Description: "Source code to run", Required: true},
			{Name: "language", Type: "string", Description: "Language of the snippet", Default: "python", Enum: []any{"python", "javascript", "bash"}},
		},
		RequiresConfirmation: true,
		Handler: func(_ context.Context, params map[string]any) (any, error) {
			code := params["code"].(string)
			lang := params["language"].(string)
			return map[string]any{
				"language": lang,
				"stdout":   fmt.Sprintf("[sandbox] executed %d bytes of %s", len(code), lang),
				"exit":     0,
			}, nil
		},
	})

	r.Register(Definition{
		Name:        "analyze_data",
		Description: "Run a statistical or structural analysis over provided data",
		Parameters: []Parameter{
			{Name: "data", Type: "string", Description: "Raw data to analyze", Required: true},
			{Name: "analysis_type", Type: "string", Description: "Kind of analysis to perform", Default: "summary", Enum: []any{"summary", "trends", "outliers"}},
		},
		Handler: func(_ context.Context, params map[string]any) (any, error) {
			data := params["data"].(string)
			kind := params["analysis_type"].(string)
			fields := strings.Fields(data)
			return map[string]any{
				"analysis_type": kind,
				"tokens":        len(fields),
				"summary":       fmt.Sprintf("%s analysis over %d tokens", kind, len(fields)),
			}, nil
		},
	})

	r.Register(Definition{
		Name:        "file_operations",
		Description: "Read, write, or list files in the workspace",
		Parameters: []Parameter{
			{Name: "operation", Type: "string", Description: "Operation to perform", Required: true, Enum: []any{"read", "write", "list"}},
			{Name: "path", Type: "string", Description: "Target path", Required: true},
			{Name: "content", Type: "string", Description: "Content for write operations"},
		},
		RequiresConfirmation: true,
		Handler: func(_ context.Context, params map[string]any) (any, error) {
			op := params["operation"].(string)
			path := params["path"].(string)
			switch op {
			case "read":
				return map[string]any{"path": path, "content": fmt.Sprintf("[workspace] contents of %s", path)}, nil
			case "write":
				content, _ := params["content"].(string)
				return map[string]any{"path": path, "written": len(content)}, nil
			case "list":
				return map[string]any{"path": path, "entries": []string{}}, nil
			default:
				return nil, fmt.Errorf("unsupported operation %q", op)
			}
		},
	})
}

// RegisterRetrieval installs the retrieve_information tool backed by a real
// retriever. Registered separately because it needs a live vector store.
func RegisterRetrieval(r *Registry, retriever core.Retriever) {
	r.Register(Definition{
		Name:        "retrieve_information",
		Description: "Retrieve relevant documents from the knowledge base",
		Parameters: []Parameter{
			{Name: "query", Type: "string", Description: "Retrieval query", Required: true},
			{Name: "top_k", Type: "integer", Description: "Number of documents to retrieve", Default: 4},
			{Name: "collection", Type: "string", Description: "Collection to search"},
			{Name: "score_threshold", Type: "number", Description: "Minimum similarity score", Default: 0.0},
		},
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			query := params["query"].(string)
			topK, _ := params["top_k"].(int)
			collection, _ := params["collection"].(string)
			threshold, _ := params["score_threshold"].(float64)
			docs, err := retriever.SimilaritySearch(ctx, query, topK, collection, threshold)
			if err != nil {
				return nil, err
			}
			out := make([]map[string]any, 0, len(docs))
			for _, d := range docs {
				out = append(out, map[string]any{
					"content":  d.Content,
					"metadata": d.Metadata,
					"score":    d.Score,
				})
			}
			return map[string]any{"query": query, "documents": out}, nil
		},
	})
}
