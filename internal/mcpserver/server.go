// Package mcpserver exposes the contextual memory store as MCP (Model
// Context Protocol) tools over stdio JSON-RPC, so AI CLI tools can query
// and extend their own history mid-session.
package mcpserver

import (
	"context"
	"log"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/memtrail/memtrail/internal/config"
	"github.com/memtrail/memtrail/internal/db"
	"github.com/memtrail/memtrail/internal/knowledge"
	"github.com/memtrail/memtrail/internal/recorder"
	"github.com/memtrail/memtrail/internal/retriever"
	"github.com/memtrail/memtrail/internal/summary"
)

// Server holds the components behind the MCP tool handlers.
type Server struct {
	recorder   *recorder.Recorder
	retriever  *retriever.Retriever
	knowledge  *knowledge.Store
	summarizer *summary.Summarizer
}

// NewServer wires the tool handlers over an open database.
func NewServer(database *db.DB) *Server {
	return &Server{
		recorder:   recorder.New(database),
		retriever:  retriever.New(database),
		knowledge:  knowledge.New(database),
		summarizer: summary.New(database),
	}
}

// Run opens the database and serves MCP over stdio. It blocks until
// stdin is closed.
func Run(cfg config.Config) error {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()

	s := NewServer(database)

	mcpServer := server.NewMCPServer(
		"memtrail",
		config.Version,
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTools(
		server.ServerTool{Tool: getContextTool(), Handler: s.handleGetContext},
		server.ServerTool{Tool: addKnowledgeTool(), Handler: s.handleAddKnowledge},
		server.ServerTool{Tool: searchKnowledgeTool(), Handler: s.handleSearchKnowledge},
		server.ServerTool{Tool: recordNoteTool(), Handler: s.handleRecordNote},
		server.ServerTool{Tool: weeklySummaryTool(), Handler: s.handleWeeklySummary},
		server.ServerTool{Tool: getStatsTool(), Handler: s.handleGetStats},
		server.ServerTool{Tool: addEntityTool(), Handler: s.handleAddEntity},
		server.ServerTool{Tool: addRelationTool(), Handler: s.handleAddRelation},
		server.ServerTool{Tool: exportGraphTool(), Handler: s.handleExportGraph},
	)

	stdio := server.NewStdioServer(mcpServer)
	stdio.SetErrorLogger(log.New(os.Stderr, "[mcp] ", log.LstdFlags))

	return stdio.Listen(context.Background(), os.Stdin, os.Stdout)
}
