package main

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

// toolJSONResult marshals v and wraps it as a successful tool text result.
func toolJSONResult(v interface{}) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}
