// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the memory bank as tools for LLM agents via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/halvard/munin/internal/block"
	"github.com/halvard/munin/internal/membank"
)

// Server wraps the MCP server with Munin tools.
type Server struct {
	mcp  *server.MCPServer
	bank *membank.Bank
}

// New creates a new MCP server with all memory tools registered.
func New(bank *membank.Bank) *Server {
	s := &Server{bank: bank}

	s.mcp = server.NewMCPServer(
		"Munin",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("remember",
		mcp.WithDescription("Store a new memory block. Content MUST follow the canonical "+
			"block format (typed, with metadata matching the type's schema). Read the "+
			"contract first via the get_block_contract tool or the munin://block-format resource."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Block type (knowledge, task, project, doc, log)")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Primary content text")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags")),
		mcp.WithString("metadata", mcp.Description("JSON object with type-specific metadata")),
	), s.remember)

	s.mcp.AddTool(mcp.NewTool("recall",
		mcp.WithDescription("Semantic similarity search over stored memory blocks."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural-language query")),
	), s.recall)

	s.mcp.AddTool(mcp.NewTool("read_block",
		mcp.WithDescription("Read a memory block by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Block id")),
	), s.readBlock)

	s.mcp.AddTool(mcp.NewTool("link_blocks",
		mcp.WithDescription("Add a typed link from one memory block to another."),
		mcp.WithString("from_id", mcp.Required(), mcp.Description("Source block id")),
		mcp.WithString("to_id", mcp.Required(), mcp.Description("Target block id")),
		mcp.WithString("relation", mcp.Required(),
			mcp.Description("Relation kind: related_to, subtask_of, depends_on, child_of, mentions")),
	), s.linkBlocks)

	s.mcp.AddTool(mcp.NewTool("blocks_by_tag",
		mcp.WithDescription("Find memory blocks carrying the given tags."),
		mcp.WithString("tags", mcp.Required(), mcp.Description("Comma-separated tags")),
		mcp.WithString("match", mcp.Description("'all' to require every tag, default any")),
	), s.blocksByTag)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all memory blocks that link to the specified block."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Block id to find backlinks for")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("get_block_contract",
		mcp.WithDescription("Returns the canonical memory block contract. "+
			"Call this before storing blocks to ensure correct structure."),
	), s.getBlockContract)

	// Resource: block format contract.
	s.mcp.AddResource(
		mcp.NewResource("munin://block-format", "Memory Block Contract",
			mcp.WithResourceDescription("Canonical memory block format that all stored blocks must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readBlockFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) remember(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	b := block.New("", typ, text)
	if raw := req.GetString("tags", ""); raw != "" {
		b.Tags = splitCSV(raw)
	}
	if raw := req.GetString("metadata", ""); raw != "" {
		if err := json.Unmarshal([]byte(raw), &b.Metadata); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("metadata is not valid JSON: %v", err)), nil
		}
	}

	if err := s.bank.CreateBlock(ctx, b); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("stored: %s", b.ID)), nil
}

func (s *Server) recall(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	blocks, err := s.bank.QuerySemantic(ctx, query, 10)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(blocks) == 0 {
		return mcp.NewToolResultText("no matching memories"), nil
	}
	out, _ := json.MarshalIndent(blocks, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	b, err := s.bank.GetBlock(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	out, _ := json.MarshalIndent(b, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) linkBlocks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fromID, err := req.RequireString("from_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	toID, err := req.RequireString("to_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	relation, err := req.RequireString("relation")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rel := block.Relation(relation)
	if !rel.Valid() {
		return mcp.NewToolResultError(fmt.Sprintf("unknown relation %q", relation)), nil
	}

	existing, err := s.bank.GetBlock(ctx, fromID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", fromID)), nil
	}
	links := append(existing.Links, block.Link{ToID: toID, Relation: rel})
	if _, err := s.bank.UpdateBlock(ctx, fromID, block.Patch{Links: &links}); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("linked: %s -[%s]-> %s", fromID, rel, toID)), nil
}

func (s *Server) blocksByTag(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("tags")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	matchAll := req.GetString("match", "") == "all"
	blocks, err := s.bank.BlocksByTags(ctx, splitCSV(raw), matchAll)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(blocks) == 0 {
		return mcp.NewToolResultText("no matching blocks"), nil
	}
	var ids []string
	for _, b := range blocks {
		ids = append(ids, b.ID)
	}
	return mcp.NewToolResultText(strings.Join(ids, "\n")), nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	links, err := s.bank.Backlinks(ctx, id, "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(links) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	var lines []string
	for _, l := range links {
		lines = append(lines, fmt.Sprintf("%s (%s)", l.ToID, l.Relation))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getBlockContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(BlockFormatContract), nil
}

func (s *Server) readBlockFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "munin://block-format",
			MIMEType: "text/markdown",
			Text:     BlockFormatContract,
		},
	}, nil
}

func splitCSV(raw string) []string {
	var out []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
