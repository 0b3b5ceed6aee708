// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes vaultlinker tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/vaultlinker/internal/ai"
	"github.com/starford/vaultlinker/internal/apperr"
	"github.com/starford/vaultlinker/internal/batch"
	"github.com/starford/vaultlinker/internal/knowledge"
	"github.com/starford/vaultlinker/internal/linker"
	"github.com/starford/vaultlinker/internal/linkservice"
)

// Server wraps the MCP server with vaultlinker tools.
type Server struct {
	mcp    *server.MCPServer
	svc    *linkservice.Service
	logger *slog.Logger
}

// New creates a new MCP server with all tools registered.
func New(svc *linkservice.Service, version string, logger *slog.Logger) *Server {
	s := &Server{svc: svc, logger: logger}

	s.mcp = server.NewMCPServer(
		"vaultlinker",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("knowledge_lookup",
		mcp.WithDescription("Look up information from external knowledge sources "+
			"(Wikipedia, DBpedia, Wikidata, GitHub, OpenLibrary, arXiv, MusicBrainz, Shodan)."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query")),
		mcp.WithString("provider", mcp.Description("Knowledge provider, or auto to try providers in order"),
			mcp.DefaultString(knowledge.Auto)),
		mcp.WithNumber("max_results", mcp.Description("Maximum number of results (default 5)")),
		mcp.WithString("language", mcp.Description("Language code for Wikipedia (default 'en')")),
		mcp.WithBoolean("skip_cache", mcp.Description("Bypass the lookup cache")),
	), s.knowledgeLookup)

	s.mcp.AddTool(mcp.NewTool("list_knowledge_providers",
		mcp.WithDescription("List knowledge providers and link suggestion backends with their availability."),
	), s.listProviders)

	s.mcp.AddTool(mcp.NewTool("clear_knowledge_cache",
		mcp.WithDescription("Drop every cached knowledge lookup."),
	), s.clearCache)

	s.mcp.AddTool(mcp.NewTool("suggest_links",
		mcp.WithDescription("Ask an AI backend which other notes the given note should link to."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. folder/note.md)")),
		mcp.WithString("backend", mcp.Description("Suggestion backend (openai, anthropic, gemini, ollama); empty for the default")),
	), s.suggestLinks)

	s.mcp.AddTool(mcp.NewTool("insert_links",
		mcp.WithDescription("Insert wikilinks for the given suggestions into a note. "+
			"See the "+LinkRulesURI+" resource for what is and is not modified."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note")),
		mcp.WithArray("suggestions", mcp.Required(), mcp.Description("Suggestions to insert"),
			mcp.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"targetNote":    map[string]any{"type": "string"},
					"confidence":    map[string]any{"type": "number"},
					"reason":        map[string]any{"type": "string"},
					"suggestedText": map[string]any{"type": "string"},
				},
				"required": []string{"targetNote", "confidence"},
			})),
		mcp.WithBoolean("dry_run", mcp.Description("Report changes without writing the note")),
		mcp.WithBoolean("first_match_only", mcp.Description("Link only the first occurrence of each target")),
		mcp.WithNumber("max_links_per_target", mcp.Description("Occurrences linked per target when first_match_only is false")),
		mcp.WithBoolean("use_display_text", mcp.Description("Use the suggestion's suggestedText as link alias")),
	), s.insertLinks)

	s.mcp.AddTool(mcp.NewTool("link_note",
		mcp.WithDescription("Suggest links for a note and insert them in one step."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note")),
		mcp.WithString("backend", mcp.Description("Suggestion backend; empty for the default")),
		mcp.WithBoolean("dry_run", mcp.Description("Report changes without writing the note")),
	), s.linkNote)

	s.mcp.AddTool(mcp.NewTool("batch_suggest_links",
		mcp.WithDescription("Collect link suggestions for every note in a folder. "+
			"Pass the returned JSON as 'run' to batch_apply_links."),
		mcp.WithString("folder", mcp.Description("Folder relative to the vault root; empty for the whole vault")),
		mcp.WithString("backend", mcp.Description("Suggestion backend; empty for the default")),
		mcp.WithNumber("concurrency", mcp.Description("Documents processed at once (default 3)")),
		mcp.WithNumber("min_confidence", mcp.Description("Minimum confidence to keep a suggestion (default 0.5)")),
		mcp.WithNumber("max_suggestions", mcp.Description("Maximum suggestions per document (default 5)")),
		mcp.WithArray("include", mcp.Description("Glob patterns to include"), mcp.WithStringItems()),
		mcp.WithArray("exclude", mcp.Description("Glob patterns to exclude"), mcp.WithStringItems()),
	), s.batchSuggest)

	s.mcp.AddTool(mcp.NewTool("batch_apply_links",
		mcp.WithDescription("Insert links for a batch run. Either pass 'run' from batch_suggest_links, "+
			"or a 'folder' to suggest and apply in one step."),
		mcp.WithObject("run", mcp.Description("Result of batch_suggest_links")),
		mcp.WithString("folder", mcp.Description("Folder to suggest and apply when no run is given")),
		mcp.WithString("backend", mcp.Description("Suggestion backend when suggesting; empty for the default")),
		mcp.WithBoolean("dry_run", mcp.Description("Report changes without writing notes")),
	), s.batchApply)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through notes content and titles."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 20)")),
	), s.searchNotes)

	s.mcp.AddResource(
		mcp.NewResource(LinkRulesURI, "Link Insertion Rules",
			mcp.WithResourceDescription("How suggested links are written into notes."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLinkRules,
	)

	return s
}

// ServeStdio serves MCP over in/out until ctx is cancelled or in is closed.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	s.logger.Info("mcp: serving on stdio")
	return stdio.Listen(ctx, in, out)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) knowledgeLookup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	provider := req.GetString("provider", knowledge.Auto)
	res := s.svc.Lookup(ctx, query, provider, knowledge.LookupOptions{
		MaxResults: req.GetInt("max_results", 0),
		Language:   req.GetString("language", ""),
		SkipCache:  req.GetBool("skip_cache", false),
	})
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "lookup failed"
		}
		return mcp.NewToolResultError(msg), nil
	}
	header := fmt.Sprintf("Found %d results from %s:\n\n", len(res.Entries), res.Provider)
	return mcp.NewToolResultText(header + knowledge.FormatEntries(res.Entries)), nil
}

func (s *Server) listProviders(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{
		"providers": s.svc.Providers(ctx),
		"backends":  s.svc.Backends(),
	})
}

func (s *Server) clearCache(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n := s.svc.ClearCache()
	return mcp.NewToolResultText(fmt.Sprintf("cleared %d cached lookups", n)), nil
}

func (s *Server) suggestLinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.SuggestLinks(ctx, path, req.GetString("backend", ""))
	if err != nil {
		return serviceError(path, err), nil
	}
	if !res.Success {
		return mcp.NewToolResultError(res.Error), nil
	}
	return jsonResult(res)
}

func (s *Server) insertLinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var suggestions []ai.LinkSuggestion
	if err := decodeArg(req, "suggestions", &suggestions); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	defaults := s.svc.Settings().Linker
	opts := linker.Options{
		FirstMatchOnly:    req.GetBool("first_match_only", defaults.FirstMatchOnly),
		MaxLinksPerTarget: req.GetInt("max_links_per_target", defaults.MaxLinksPerTarget),
		UseDisplayText:    req.GetBool("use_display_text", defaults.UseDisplayText),
	}
	res, err := s.svc.InsertLinks(ctx, path, suggestions, opts, req.GetBool("dry_run", false))
	if err != nil {
		return serviceError(path, err), nil
	}
	return jsonResult(res)
}

func (s *Server) linkNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.LinkDocument(ctx, path, req.GetString("backend", ""), req.GetBool("dry_run", false))
	if err != nil {
		return serviceError(path, err), nil
	}
	if !res.Suggestions.Success {
		return mcp.NewToolResultError(res.Suggestions.Error), nil
	}
	return jsonResult(res)
}

func (s *Server) batchSuggest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.svc.BatchSuggest(ctx, s.batchOptions(req))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) batchApply(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var run batch.SuggestResult
	if _, ok := req.GetArguments()["run"]; ok {
		if err := decodeArg(req, "run", &run); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	} else {
		var err error
		run, err = s.svc.BatchSuggest(ctx, s.batchOptions(req))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	settings := s.svc.Settings()
	res := s.svc.BatchApply(ctx, run, batch.ApplyOptions{
		DryRun: req.GetBool("dry_run", settings.BatchDryRun),
		Linker: settings.Linker,
	})
	return jsonResult(res)
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no notes found"), nil
	}
	return jsonResult(results)
}

func (s *Server) readLinkRules(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      LinkRulesURI,
			MIMEType: "text/markdown",
			Text:     LinkRules,
		},
	}, nil
}

func (s *Server) batchOptions(req mcp.CallToolRequest) batch.SuggestOptions {
	opts := s.svc.BatchOptions(req.GetString("folder", ""), req.GetString("backend", ""))
	opts.Concurrency = req.GetInt("concurrency", opts.Concurrency)
	opts.MinConfidence = req.GetFloat("min_confidence", opts.MinConfidence)
	opts.MaxSuggestions = req.GetInt("max_suggestions", opts.MaxSuggestions)
	opts.Include = req.GetStringSlice("include", opts.Include)
	opts.Exclude = req.GetStringSlice("exclude", opts.Exclude)
	return opts
}

// decodeArg converts a structured argument into v through its JSON form.
func decodeArg(req mcp.CallToolRequest, key string, v any) error {
	raw, ok := req.GetArguments()[key]
	if !ok {
		return fmt.Errorf("required argument %q not found", key)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	return nil
}

func serviceError(path string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found: " + path)
	case errors.Is(err, apperr.ErrInvalidArgument):
		return mcp.NewToolResultError(strings.TrimPrefix(err.Error(), "linkservice: "))
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(out)), nil
}
