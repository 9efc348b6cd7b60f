// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes murmur's collections to LLM clients over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/murmur/internal/apperr"
	"github.com/starford/murmur/internal/noteservice"
	"github.com/starford/murmur/internal/search"
)

const noteFormatURI = "murmur://note-format"

// Server wraps the MCP server with murmur tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *noteservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"murmur",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Search notes across every enabled collection. "+
			"Tag terms match any tag by case-insensitive substring; text matches titles "+
			"(and note bodies when include_content is true). Newest first."),
		mcp.WithString("text", mcp.Description("Text to look for in titles")),
		mcp.WithArray("tags", mcp.Description("Tag substrings; a note matches if any term matches any tag"),
			mcp.Items(map[string]any{"type": "string"})),
		mcp.WithArray("collections", mcp.Description("Restrict to these collection names (exact match)"),
			mcp.Items(map[string]any{"type": "string"})),
		mcp.WithBoolean("include_content", mcp.Description("Also match text against note bodies")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (0 = no limit)")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a Markdown note."),
		mcp.WithString("collection", mcp.Required(), mcp.Description("Collection name as shown by list_collections")),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path relative to the collection root (e.g. folder/note.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("topic_index",
		mcp.WithDescription("Aggregate tags across all collections: per-topic counts, "+
			"recent activity and per-collection statistics."),
		mcp.WithNumber("top", mcp.Description("Only return the first N topics (0 = all)")),
	), s.topicIndex)

	s.mcp.AddTool(mcp.NewTool("rebuild_topic_index",
		mcp.WithDescription("Regenerate the Markdown topic index report in the primary collection."),
	), s.rebuildTopicIndex)

	s.mcp.AddTool(mcp.NewTool("list_collections",
		mcp.WithDescription("List the registered collections with their enabled flag and reachability."),
	), s.listCollections)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all notes whose [[wikilinks]] point at a note stem or title."),
		mcp.WithString("target", mcp.Required(), mcp.Description("Link target, e.g. roadmap")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("import_recordings",
		mcp.WithDescription("Fetch new voice recordings from the recording API and store them as notes."),
	), s.importRecordings)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the note format murmur reads: front-matter, titles, tags and links."),
	), s.getNoteContract)

	s.mcp.AddResource(
		mcp.NewResource(noteFormatURI, "Note Format",
			mcp.WithResourceDescription("How murmur reads Markdown notes."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
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

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 0)
	if limit < 0 {
		return mcp.NewToolResultError("limit must not be negative"), nil
	}
	res, err := s.svc.Search(ctx, search.Query{
		Text:           req.GetString("text", ""),
		Tags:           req.GetStringSlice("tags", nil),
		Collections:    req.GetStringSlice("collections", nil),
		Limit:          limit,
		IncludeContent: req.GetBool("include_content", false),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	coll, err := req.RequireString("collection")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNote(ctx, coll, path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s/%s", coll, path)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(note.Content), nil
}

type topicIndexResult struct {
	Topics      any      `json:"topics"`
	Recent      []string `json:"recent"`
	Collections any      `json:"collections"`
	Warnings    any      `json:"warnings"`
}

func (s *Server) topicIndex(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	idx, warnings, err := s.svc.Topics(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entries := idx.Topics
	if top := req.GetInt("top", 0); top > 0 && top < len(entries) {
		entries = entries[:top]
	}
	recent := make([]string, len(idx.Recent))
	for i, d := range idx.Recent {
		recent[i] = fmt.Sprintf("%s: %s (%s)", d.Collection, d.Path, d.Title)
	}
	return jsonResult(topicIndexResult{
		Topics:      entries,
		Recent:      recent,
		Collections: idx.Stats,
		Warnings:    warnings,
	})
}

func (s *Server) rebuildTopicIndex(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.svc.Rebuild(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) listCollections(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.Collections(ctx))
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target, err := req.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	refs, err := s.svc.Backlinks(ctx, target)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(refs) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	lines := make([]string, len(refs))
	for i, r := range refs {
		lines[i] = r.Collection + ": " + r.Path
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) importRecordings(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.svc.Import(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) getNoteContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      noteFormatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
