// Package mcpserver exposes the worker's memory store as MCP tools, so a
// coding assistant can query captured observations directly instead of
// going through the HTTP API.
package mcpserver

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/memory-service/memoryd/internal/store"
	"github.com/memory-service/memoryd/pkg/types"
)

// NewServer builds an MCP server exposing search, timeline, and
// get_observations tools over st, generalizing the teacher's single
// calculator tool server to three read-only tools backed by the relational
// store.
func NewServer(st *store.Store) *server.MCPServer {
	s := server.NewMCPServer(
		"memoryd",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	searchTool := mcp.NewTool("search",
		mcp.WithDescription("Full-text search over captured observations, ranked by relevance to the query"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
		mcp.WithString("project", mcp.Description("Restrict results to one project")),
		mcp.WithNumber("limit", mcp.Description("Maximum results to return, default 50")),
	)
	s.AddTool(searchTool, newSearchHandler(st))

	timelineTool := mcp.NewTool("timeline",
		mcp.WithDescription("Observations chronologically surrounding one anchor observation"),
		mcp.WithNumber("anchor", mcp.Required(), mcp.Description("Anchor observation id")),
		mcp.WithNumber("radius", mcp.Description("Observations to include on each side of the anchor, default 10")),
	)
	s.AddTool(timelineTool, newTimelineHandler(st))

	getTool := mcp.NewTool("get_observations",
		mcp.WithDescription("Fetch observations by id, in the order given"),
		mcp.WithArray("ids",
			mcp.Required(),
			mcp.Description("Observation ids to fetch"),
			mcp.Items(map[string]any{"type": "number"}),
		),
	)
	s.AddTool(getTool, newGetObservationsHandler(st))

	return s
}

func newSearchHandler(st *store.Store) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		query, _ := args["query"].(string)
		if query == "" {
			return mcp.NewToolResultError("query argument is required"), nil
		}
		project, _ := args["project"].(string)
		limit := 50
		if n, err := toInt(args["limit"]); err == nil && n > 0 {
			limit = n
		}

		obs, err := st.SearchByText(query, project, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatObservations(obs)), nil
	}
}

func newTimelineHandler(st *store.Store) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		anchor, err := toInt64(args["anchor"])
		if err != nil {
			return mcp.NewToolResultError("anchor argument must be an observation id"), nil
		}
		radius := 10
		if n, err := toInt(args["radius"]); err == nil && n > 0 {
			radius = n
		}

		obs, err := st.GetTimeline(anchor, radius)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("timeline failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatObservations(obs)), nil
	}
}

func newGetObservationsHandler(st *store.Store) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		idsArg, ok := args["ids"]
		if !ok {
			return mcp.NewToolResultError("ids argument is required"), nil
		}
		ids, err := toInt64Slice(idsArg)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid ids: %v", err)), nil
		}

		obs, err := st.GetObservationsByIDs(ids)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("get_observations failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatObservations(obs)), nil
	}
}

func formatObservations(obs []*types.Observation) string {
	if len(obs) == 0 {
		return "no observations found"
	}
	var b strings.Builder
	for _, o := range obs {
		fmt.Fprintf(&b, "#%d [%s] %s: %s\n", o.ID, o.Type, o.Title, o.Narrative)
	}
	return b.String()
}

func toInt(v any) (int, error) {
	n, err := toInt64(v)
	return int(n), err
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

func toInt64Slice(v any) ([]int64, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected array, got %T", v)
	}
	out := make([]int64, len(arr))
	for i, e := range arr {
		n, err := toInt64(e)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = n
	}
	return out, nil
}
