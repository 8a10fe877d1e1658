package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func lookupDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "lookup_document",
		Description: "Fetch one published document, including its markdown body, by URL",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"url": map[string]interface{}{
					"type":        "string",
					"description": "Document URL path, e.g. /2024/3/5/hello-world",
				},
			},
			Required: []string{"url"},
		},
	}
}

func listDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_documents",
		Description: "List posts ordered by creation time",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"count": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of posts; 0 returns all",
					"default":     10,
					"minimum":     0,
				},
				"order": map[string]interface{}{
					"type":        "string",
					"description": "newest or oldest first",
					"enum":        []string{"newest", "oldest"},
					"default":     "newest",
				},
			},
		},
	}
}

func listByAuthorTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_by_author",
		Description: "List the documents created by an author",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"author": map[string]interface{}{
					"type":        "string",
					"description": "Author name or author key",
				},
			},
			Required: []string{"author"},
		},
	}
}

func listByTimeRangeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_by_time_range",
		Description: "List posts created within an inclusive time range",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"from": map[string]interface{}{
					"type":        "string",
					"description": "Start of the range, RFC 3339",
				},
				"to": map[string]interface{}{
					"type":        "string",
					"description": "End of the range, RFC 3339",
				},
			},
			Required: []string{"from", "to"},
		},
	}
}

func searchDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_documents",
		Description: "Full-text search over titles, bodies and authors",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Query string; supports field:term and quoted phrases",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
			},
			Required: []string{"query"},
		},
	}
}

func triggerUpdateTool() mcp.Tool {
	return mcp.Tool{
		Name:        "trigger_update",
		Description: "Fetch the repository and publish a new generation of documents",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
