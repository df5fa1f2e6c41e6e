// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the ansuz notes store to LLM clients over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/notes"
	"github.com/starford/ansuz/internal/search"
	"github.com/starford/ansuz/internal/share"
	"github.com/starford/ansuz/internal/uploads"
)

const contractURI = "ansuz://note-format"

// Deps are the repositories the tools operate on. Search may be nil, in
// which case search_notes is not registered.
type Deps struct {
	Notes     *notes.Repository
	Uploads   *uploads.Repository
	Share     *share.Service
	Search    *search.DB
	Logger    *slog.Logger
	PublicURL string
}

// Server wraps the MCP server with the ansuz tools.
type Server struct {
	mcp       *server.MCPServer
	notes     *notes.Repository
	uploads   *uploads.Repository
	share     *share.Service
	search    *search.DB
	logger    *slog.Logger
	publicURL string
	fetcher   *fetcher
}

// New creates an MCP server with all tools registered.
func New(d Deps, version string) *Server {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		notes:     d.Notes,
		uploads:   d.Uploads,
		share:     d.Share,
		search:    d.Search,
		logger:    logger,
		publicURL: strings.TrimRight(d.PublicURL, "/"),
		fetcher:   newFetcher(d.Uploads.MaxBytes()),
	}

	s.mcp = server.NewMCPServer(
		"Ansuz",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List the notes index: display name and path of every note and markdown upload."),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Note path as returned by list_notes (e.g. notes/2026-01-20_093000_Standup.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new Markdown note. Read the format via get_note_contract "+
			"or the "+contractURI+" resource first."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Display name of the note")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content")),
		mcp.WithString("slug", mcp.Description("Optional stable file name; the note is stored as notes/<slug>.md")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("update_note",
		mcp.WithDescription("Replace the content of an existing note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Note path")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New Markdown content")),
	), s.updateNote)

	s.mcp.AddTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Delete a note and remove it from the index."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Note path")),
	), s.deleteNote)

	s.mcp.AddTool(mcp.NewTool("share_note",
		mcp.WithDescription("Create a public share link for a note. Sharing again rotates the link."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Note path")),
		mcp.WithBoolean("burn_after_reading", mcp.Description("Delete the note after the first successful read")),
		mcp.WithString("password", mcp.Description("Optional password readers must supply")),
	), s.shareNote)

	s.mcp.AddTool(mcp.NewTool("upload_file",
		mcp.WithDescription("Store a file from an http(s) URL or a base64 data: URI in uploads/. "+
			"Returns the stored path and a Markdown snippet referencing it."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data: URI")),
		mcp.WithString("filename", mcp.Description("Optional file name; derived from the URL when empty")),
	), s.uploadFile)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the note format description. Call this before creating notes."),
	), s.getNoteContract)

	if s.search != nil {
		s.mcp.AddTool(mcp.NewTool("search_notes",
			mcp.WithDescription("Full-text search through note names, titles and content."),
			mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
		), s.searchNotes)
	}

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Note Format",
			mcp.WithResourceDescription("Markdown note format used by this server."),
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

// toolError turns err into a tool-level error result. Errors outside the
// taxonomy are logged and reported generically.
func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	if apperr.Public(err) {
		return mcp.NewToolResultError(err.Error())
	}
	s.logger.Error("mcp: tool failed", slog.String("tool", tool), slog.String("error", err.Error()))
	return mcp.NewToolResultError("internal error")
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

type noteItem struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Slug   string `json:"slug,omitempty"`
	Shared bool   `json:"shared,omitempty"`
}

func (s *Server) listNotes(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := s.notes.List(ctx)
	if err != nil {
		return s.toolError("list_notes", err), nil
	}
	out := make([]noteItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, noteItem{Name: e.Name, Path: e.Path, Slug: e.Slug, Shared: e.Shared()})
	}
	return jsonResult(out), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := s.notes.Read(ctx, path)
	if err != nil {
		return s.toolError("read_note", err), nil
	}
	return mcp.NewToolResultText(content), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entry, err := s.notes.Create(ctx, notes.CreateInput{
		Name:    name,
		Content: content,
		Slug:    req.GetString("slug", ""),
	})
	if err != nil {
		return s.toolError("create_note", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", entry.Path)), nil
}

func (s *Server) updateNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.notes.Update(ctx, path, content); err != nil {
		return s.toolError("update_note", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated: %s", path)), nil
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.notes.Delete(ctx, path); err != nil {
		return s.toolError("delete_note", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", path)), nil
}

type shareResult struct {
	Token             string `json:"token"`
	URL               string `json:"url,omitempty"`
	BurnAfterReading  bool   `json:"burnAfterReading"`
	PasswordProtected bool   `json:"passwordProtected"`
}

func (s *Server) shareNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	link, err := s.share.Create(ctx, share.CreateInput{
		Path:             path,
		BurnAfterReading: req.GetBool("burn_after_reading", false),
		Password:         req.GetString("password", ""),
	})
	if err != nil {
		return s.toolError("share_note", err), nil
	}
	res := shareResult{
		Token:             link.Token,
		BurnAfterReading:  link.BurnAfterReading,
		PasswordProtected: link.Protected,
	}
	if s.publicURL != "" {
		res.URL = share.URL(s.publicURL, link.Token)
	}
	return jsonResult(res), nil
}

func (s *Server) searchNotes(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.search.Search(query, req.GetInt("limit", search.DefaultLimit))
	if err != nil {
		return s.toolError("search_notes", err), nil
	}
	return jsonResult(results), nil
}

func (s *Server) getNoteContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
