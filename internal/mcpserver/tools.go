package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/memtrail/memtrail/internal/summary"
)

// --- Tool Definitions ---

func getContextTool() mcp.Tool {
	return mcp.NewToolWithRawSchema(
		"get_context",
		"Retrieve prior context for a working directory: recent sessions, project patterns, and relevant knowledge.",
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"working_dir": {
					"type": "string",
					"description": "Absolute path of the working directory"
				},
				"tool": {
					"type": "string",
					"description": "Limit recent sessions to one CLI tool (optional)"
				},
				"limit": {
					"type": "integer",
					"description": "Maximum number of recent sessions (default 10)"
				}
			},
			"required": ["working_dir"]
		}`),
	)
}

func addKnowledgeTool() mcp.Tool {
	return mcp.NewToolWithRawSchema(
		"add_knowledge",
		"Capture a reusable fact. Repeated captures of the same category and title merge and gain frequency.",
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"category": {
					"type": "string",
					"description": "Knowledge category (pattern, solution, gotcha, preference, ...)"
				},
				"title": {
					"type": "string",
					"description": "Short unique title within the category"
				},
				"description": {
					"type": "string",
					"description": "Full description (optional)"
				},
				"context": {
					"type": "string",
					"description": "Where this applies (optional)"
				},
				"session_id": {
					"type": "string",
					"description": "Session that produced this fact (optional)"
				}
			},
			"required": ["category", "title"]
		}`),
	)
}

func searchKnowledgeTool() mcp.Tool {
	return mcp.NewToolWithRawSchema(
		"search_knowledge",
		"List knowledge entries ranked by frequency and recency, optionally filtered by category.",
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"category": {
					"type": "string",
					"description": "Filter to one category (optional)"
				},
				"limit": {
					"type": "integer",
					"description": "Maximum entries to return (default 50)"
				}
			}
		}`),
	)
}

func recordNoteTool() mcp.Tool {
	return mcp.NewToolWithRawSchema(
		"record_note",
		"Attach a typed context note (decision, error, solution, ...) to a session.",
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"session_id": {
					"type": "string",
					"description": "Session the note belongs to"
				},
				"type": {
					"type": "string",
					"description": "Note type (decision, error, solution, ...)"
				},
				"data": {
					"type": "string",
					"description": "Note payload, usually JSON (optional)"
				}
			},
			"required": ["session_id", "type"]
		}`),
	)
}

func weeklySummaryTool() mcp.Tool {
	return mcp.NewToolWithRawSchema(
		"weekly_summary",
		"Build (or rebuild) the weekly rollup for a tool and return it. Pass year and week to summarize a past ISO week.",
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"tool": {
					"type": "string",
					"description": "CLI tool to summarize"
				},
				"year": {
					"type": "integer",
					"description": "ISO year of the week to summarize (default: current week)"
				},
				"week": {
					"type": "integer",
					"description": "ISO week number to summarize"
				}
			},
			"required": ["tool"]
		}`),
	)
}

func getStatsTool() mcp.Tool {
	return mcp.NewToolWithRawSchema(
		"get_stats",
		"Usage statistics: per-tool totals, last week of activity, and top projects.",
		json.RawMessage(`{"type": "object", "properties": {}}`),
	)
}

func addEntityTool() mcp.Tool {
	return mcp.NewToolWithRawSchema(
		"add_entity",
		"Add a node to the entity graph with optional observations.",
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"name": {
					"type": "string",
					"description": "Entity name"
				},
				"entity_type": {
					"type": "string",
					"description": "Entity type (person, project, technology, file, concept)"
				},
				"observations": {
					"type": "array",
					"items": {"type": "string"},
					"description": "Facts about the entity (optional)"
				}
			},
			"required": ["name", "entity_type"]
		}`),
	)
}

func addRelationTool() mcp.Tool {
	return mcp.NewToolWithRawSchema(
		"add_relation",
		"Relate two entities with a typed, strength-scored edge. Missing entities are created.",
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"from": {
					"type": "string",
					"description": "Source entity name"
				},
				"from_type": {
					"type": "string",
					"description": "Source entity type"
				},
				"to": {
					"type": "string",
					"description": "Target entity name"
				},
				"to_type": {
					"type": "string",
					"description": "Target entity type"
				},
				"relation_type": {
					"type": "string",
					"description": "Edge type (uses, works_on, depends_on, ...)"
				},
				"strength": {
					"type": "number",
					"description": "Edge strength in [0, 1] (default 0.5)"
				}
			},
			"required": ["from", "from_type", "to", "to_type", "relation_type"]
		}`),
	)
}

func exportGraphTool() mcp.Tool {
	return mcp.NewToolWithRawSchema(
		"export_graph",
		"Export the whole entity graph in MCP memory-server format.",
		json.RawMessage(`{"type": "object", "properties": {}}`),
	)
}

// --- Tool Handlers ---

type getContextArgs struct {
	WorkingDir string `json:"working_dir"`
	Tool       string `json:"tool"`
	Limit      int    `json:"limit"`
}

func (s *Server) handleGetContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args getContextArgs
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if args.WorkingDir == "" {
		return mcp.NewToolResultError("working_dir is required"), nil
	}

	payload, err := s.retriever.GetContext(args.WorkingDir, args.Tool, args.Limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get context: %v", err)), nil
	}
	return resultJSON(payload)
}

type addKnowledgeArgs struct {
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Context     string `json:"context"`
	SessionID   string `json:"session_id"`
}

type addKnowledgeResult struct {
	ID int64 `json:"id"`
}

func (s *Server) handleAddKnowledge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args addKnowledgeArgs
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	id, err := s.knowledge.AddKnowledge(args.Category, args.Title, args.Description, args.Context, args.SessionID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("add knowledge: %v", err)), nil
	}
	return resultJSON(addKnowledgeResult{ID: id})
}

type searchKnowledgeArgs struct {
	Category string `json:"category"`
	Limit    int    `json:"limit"`
}

type knowledgeResult struct {
	Category    string  `json:"category"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Context     *string `json:"context,omitempty"`
	Frequency   int     `json:"frequency"`
	LastUsed    *string `json:"last_used,omitempty"`
}

func (s *Server) handleSearchKnowledge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args searchKnowledgeArgs
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	entries, err := s.knowledge.ListKnowledge(args.Category, args.Limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search knowledge: %v", err)), nil
	}

	results := make([]knowledgeResult, len(entries))
	for i, e := range entries {
		results[i] = knowledgeResult{
			Category:    e.Category,
			Title:       e.Title,
			Description: e.Description,
			Context:     e.Context,
			Frequency:   e.Frequency,
			LastUsed:    e.LastUsed,
		}
	}
	return resultJSON(results)
}

type recordNoteArgs struct {
	SessionID string `json:"session_id"`
	Type      string `json:"type"`
	Data      string `json:"data"`
}

func (s *Server) handleRecordNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args recordNoteArgs
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	if err := s.recorder.LogContext(args.SessionID, args.Type, args.Data); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("record note: %v", err)), nil
	}
	return mcp.NewToolResultText(`{"ok":true}`), nil
}

type weeklySummaryArgs struct {
	Tool string `json:"tool"`
	Year int    `json:"year"`
	Week int    `json:"week"`
}

func (s *Server) handleWeeklySummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args weeklySummaryArgs
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if (args.Year == 0) != (args.Week == 0) {
		return mcp.NewToolResultError("year and week must be given together"), nil
	}

	ref := time.Now()
	if args.Year != 0 {
		ref = summary.WeekRef(args.Year, args.Week)
	}
	report, err := s.summarizer.Summarize(args.Tool, ref)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("weekly summary: %v", err)), nil
	}
	return resultJSON(report)
}

func (s *Server) handleGetStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.retriever.Stats()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("stats: %v", err)), nil
	}
	return resultJSON(stats)
}

type addEntityArgs struct {
	Name         string   `json:"name"`
	EntityType   string   `json:"entity_type"`
	Observations []string `json:"observations"`
}

func (s *Server) handleAddEntity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args addEntityArgs
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	id, err := s.knowledge.AddEntity(args.Name, args.EntityType, args.Observations)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("add entity: %v", err)), nil
	}
	return resultJSON(addKnowledgeResult{ID: id})
}

type addRelationArgs struct {
	From         string  `json:"from"`
	FromType     string  `json:"from_type"`
	To           string  `json:"to"`
	ToType       string  `json:"to_type"`
	RelationType string  `json:"relation_type"`
	Strength     float64 `json:"strength"`
}

func (s *Server) handleAddRelation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args addRelationArgs
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if args.Strength == 0 {
		args.Strength = 0.5
	}

	if err := s.knowledge.Relate(args.From, args.FromType, args.To, args.ToType, args.RelationType, args.Strength); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("add relation: %v", err)), nil
	}
	return mcp.NewToolResultText(`{"ok":true}`), nil
}

func (s *Server) handleExportGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	graph, err := s.knowledge.ExportGraph()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("export graph: %v", err)), nil
	}
	return resultJSON(graph)
}

// resultJSON marshals v to JSON and returns it as a tool result.
func resultJSON(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
