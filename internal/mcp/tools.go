package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/renderinc/gitpress/internal/content"
	"github.com/renderinc/gitpress/internal/errs"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeNotReady      = -32001 // No generation has been published yet
	ErrorCodeEmptyQuery    = -32004 // Query parameter is empty
)

func (s *Server) handleLookupDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	url, ok := args["url"].(string)
	if !ok || url == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "url parameter is required", map[string]interface{}{
			"param":  "url",
			"reason": "missing or empty",
		})
	}
	if !s.store.Ready() {
		return nil, newMCPError(ErrorCodeNotReady, "documents are still loading", nil)
	}

	doc, ok := s.store.LookupByURL(url)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("no document at %s", url)), nil
	}

	response := summary(doc)
	response["body"] = doc.Body
	if len(doc.Meta) > 0 {
		response["meta"] = doc.Meta
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

func (s *Server) handleListDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	count := getIntDefault(args, "count", 10)
	order := getStringDefault(args, "order", "newest")
	if order != "newest" && order != "oldest" {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid order", map[string]interface{}{
			"param":   "order",
			"value":   order,
			"allowed": []string{"newest", "oldest"},
		})
	}

	docs := s.store.ListIndex(count, order == "newest")
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"count":     len(docs),
		"documents": summaries(docs),
	})), nil
}

func (s *Server) handleListByAuthor(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	author, ok := args["author"].(string)
	if !ok || author == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "author parameter is required", map[string]interface{}{
			"param":  "author",
			"reason": "missing or empty",
		})
	}

	key := content.Slugify(author)
	docs := s.store.ListByAuthor(key)
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"author":    key,
		"count":     len(docs),
		"documents": summaries(docs),
	})), nil
}

func (s *Server) handleListByTimeRange(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	bounds := make(map[string]time.Time, 2)
	for _, param := range []string{"from", "to"} {
		v, _ := args[param].(string)
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid "+param, map[string]interface{}{
				"param":  param,
				"reason": "expected RFC 3339 time",
			})
		}
		bounds[param] = t
	}

	docs := s.store.ListByTimeRange(bounds["from"], bounds["to"])
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"count":     len(docs),
		"documents": summaries(docs),
	})), nil
}

func (s *Server) handleSearchDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", 10)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	hits, err := s.store.Search(query, limit)
	if err != nil {
		if errors.Is(err, errs.ErrQuery) {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid query", map[string]interface{}{
				"param":  "query",
				"reason": err.Error(),
			})
		}
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, len(hits))
	for i, h := range hits {
		r := summary(h.Document)
		r["score"] = h.Score
		if len(h.Fragments) > 0 {
			r["fragments"] = h.Fragments
		}
		results[i] = r
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"query":   query,
		"count":   len(results),
		"results": results,
	})), nil
}

func (s *Server) handleTriggerUpdate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	gen, err := s.store.TriggerUpdate(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("update failed (%s): %v", errs.Kind(err), err)), nil
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"generation": gen.ID.String(),
		"head":       gen.Head,
		"documents":  gen.Len(),
		"built_at":   gen.BuiltAt.Format(time.RFC3339),
	})), nil
}

// Helper functions

func summary(d *content.Document) map[string]interface{} {
	out := map[string]interface{}{
		"kind":        d.Kind.String(),
		"path":        d.Path,
		"title":       d.Title,
		"url":         d.URL,
		"create_time": d.CreateTime.Format(time.RFC3339),
		"modify_time": d.ModifyTime.Format(time.RFC3339),
	}
	if d.Author != nil {
		out["author"] = d.Author.Name
	}
	return out
}

func summaries(docs []*content.Document) []map[string]interface{} {
	out := make([]map[string]interface{}, len(docs))
	for i, d := range docs {
		out[i] = summary(d)
	}
	return out
}

// arguments returns the tool arguments; a call without arguments is an
// empty map
func arguments(request mcp.CallToolRequest) (map[string]interface{}, error) {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}, nil
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	return args, nil
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
