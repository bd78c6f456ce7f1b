// Command memoryd-mcp runs the worker's read-only MCP tool surface
// (search, timeline, get_observations) over stdio, for a coding assistant
// host to launch directly rather than going through the HTTP API.
package main

import (
	"log"

	"github.com/mark3labs/mcp-go/server"

	"github.com/memory-service/memoryd/internal/config"
	"github.com/memory-service/memoryd/internal/mcpserver"
	"github.com/memory-service/memoryd/internal/store"
)

func main() {
	paths := config.Resolve()

	st, err := store.Open(paths.StorePath())
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	s := mcpserver.NewServer(st)
	if err := server.ServeStdio(s); err != nil {
		log.Fatalf("mcp server: %v", err)
	}
}
