package main

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/anelcanto/recall/internal/apiclient"
)

func main() {
	apiURL := os.Getenv("RECALL_API_URL")
	token := os.Getenv("RECALL_API_TOKEN")

	bridge := &recallBridge{client: apiclient.New(apiURL, token)}

	s := server.NewMCPServer(
		"recall",
		"0.1.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(
			"Use these tools to persist and retrieve memories across sessions. "+
				"Search before answering questions about the user's projects or preferences. "+
				"Store key decisions, user preferences, and project context proactively.",
		),
	)

	s.AddTool(storeMemoryTool(), bridge.storeMemory)
	s.AddTool(searchMemoriesTool(), bridge.searchMemories)
	s.AddTool(listMemoriesTool(), bridge.listMemories)
	s.AddTool(deleteMemoryTool(), bridge.deleteMemory)
	s.AddTool(checkHealthTool(), bridge.checkHealth)

	if err := server.ServeStdio(s); err != nil {
		log.Fatalf("recall-mcp: %v", err)
	}
}

// recallBridge holds the HTTP client shared by every tool handler.
type recallBridge struct {
	client *apiclient.Client
}

func storeMemoryTool() mcp.Tool {
	return mcp.NewTool("store_memory",
		mcp.WithDescription("Store a new memory in the recall database."),
		mcp.WithString("text", mcp.Required(), mcp.Description("The content to remember.")),
		mcp.WithArray("tags", mcp.Description(`Optional tags for organisation (e.g. ["project:recall", "preference"]).`)),
		mcp.WithString("source", mcp.Description(`Source identifier (default: "claude").`)),
		mcp.WithString("dedupe_key", mcp.Description("Optional key to prevent duplicates; storing with the same key updates in place.")),
	)
}

func (b *recallBridge) storeMemory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	source := req.GetString("source", "claude")
	dedupeKey := req.GetString("dedupe_key", "")
	tags := req.GetStringSlice("tags", nil)

	payload := apiclient.StoreRequest{Text: text, Tags: tags, Source: source, DedupeKey: dedupeKey}

	var resp apiclient.StoreResponse
	if err := b.client.Do(ctx, "POST", "/memory", nil, payload, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return toolJSONResult(resp)
}

func searchMemoriesTool() mcp.Tool {
	return mcp.NewTool("search_memories",
		mcp.WithDescription("Search memories by semantic similarity."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural-language search query.")),
		mcp.WithNumber("top_k", mcp.Description("Maximum number of results to return (default: 5).")),
	)
}

func (b *recallBridge) searchMemories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	topK := int(req.GetFloat("top_k", 5))

	payload := apiclient.SearchRequest{Query: query, TopK: topK, IncludeText: true}

	var body struct {
		Results []apiclient.SearchResultItem `json:"results"`
	}
	if err := b.client.Do(ctx, "POST", "/search", nil, payload, &body); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return toolJSONResult(body)
}

func listMemoriesTool() mcp.Tool {
	return mcp.NewTool("list_memories",
		mcp.WithDescription("List recently stored memories."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of memories to return (default: 20).")),
	)
}

func (b *recallBridge) listMemories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := int(req.GetFloat("limit", 20))

	q := url.Values{"limit": {strconv.Itoa(limit)}}
	var body struct {
		Memories   []apiclient.ListMemoryItem `json:"memories"`
		NextCursor *string                    `json:"next_cursor"`
	}
	if err := b.client.Do(ctx, "GET", "/memories", q, nil, &body); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return toolJSONResult(body)
}

func deleteMemoryTool() mcp.Tool {
	return mcp.NewTool("delete_memory",
		mcp.WithDescription("Delete a memory by its ID."),
		mcp.WithString("memory_id", mcp.Required(), mcp.Description("The UUID of the memory to delete.")),
	)
}

func (b *recallBridge) deleteMemory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("memory_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := b.client.Do(ctx, "DELETE", "/memory/"+id, nil, nil, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return toolJSONResult(map[string]string{"message": fmt.Sprintf("memory %s deleted", id)})
}

func checkHealthTool() mcp.Tool {
	return mcp.NewTool("check_health",
		mcp.WithDescription("Check the health of the recall API, Qdrant, and Ollama."),
	)
}

func (b *recallBridge) checkHealth(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var resp apiclient.HealthResponse
	if err := b.client.Do(ctx, "GET", "/health", nil, nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return toolJSONResult(resp)
}
