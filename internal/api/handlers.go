package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/starford/vaultlinker/internal/batch"
	"github.com/starford/vaultlinker/internal/knowledge"
	"github.com/starford/vaultlinker/internal/linkservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *linkservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *linkservice.Service) *Handler {
	return &Handler{svc: svc}
}

// Providers handles GET /api/providers.
//
//	@Summary		List knowledge providers and suggestion backends
//	@Tags			knowledge
//	@Produce		json
//	@Success		200	{object}	ProvidersResponse
//	@Security		BearerAuth
//	@Router			/providers [get]
func (h *Handler) Providers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ProvidersResponse{
		Providers: h.svc.Providers(r.Context()),
		Backends:  h.svc.Backends(),
	})
}

// Lookup handles GET /api/lookup.
//
//	@Summary		Look up a term in external knowledge sources
//	@Tags			knowledge
//	@Produce		json
//	@Param			q			query		string	true	"Search query"
//	@Param			provider	query		string	false	"Provider name or auto"
//	@Param			max			query		int		false	"Max results"
//	@Param			lang		query		string	false	"Language code"
//	@Param			skip_cache	query		bool	false	"Bypass the lookup cache"
//	@Success		200			{object}	knowledge.LookupResult
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/lookup [get]
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	maxResults, _ := strconv.Atoi(q.Get("max"))
	skip, _ := strconv.ParseBool(q.Get("skip_cache"))

	res := h.svc.Lookup(r.Context(), query, q.Get("provider"), knowledge.LookupOptions{
		MaxResults: maxResults,
		Language:   q.Get("lang"),
		SkipCache:  skip,
	})
	writeJSON(w, http.StatusOK, res)
}

// ClearCache handles DELETE /api/cache.
//
//	@Summary		Clear the knowledge lookup cache
//	@Tags			knowledge
//	@Produce		json
//	@Success		200	{object}	ClearCacheResponse
//	@Security		BearerAuth
//	@Router			/cache [delete]
func (h *Handler) ClearCache(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ClearCacheResponse{Cleared: h.svc.ClearCache()})
}

// Suggest handles POST /api/suggest.
//
//	@Summary		Suggest links for a note
//	@Tags			links
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SuggestRequest	true	"Note and backend"
//	@Success		200		{object}	ai.SuggestLinksResult
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/suggest [post]
func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	var req SuggestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	res, err := h.svc.SuggestLinks(r.Context(), req.Path, req.Backend)
	if err != nil {
		writeServiceError(w, "suggest links", err, slog.String("path", req.Path))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Link handles POST /api/link.
//
//	@Summary		Suggest and insert links into a note
//	@Tags			links
//	@Accept			json
//	@Produce		json
//	@Param			body	body		LinkRequest	true	"Note, backend and dry-run flag"
//	@Success		200		{object}	linkservice.LinkResult
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/link [post]
func (h *Handler) Link(w http.ResponseWriter, r *http.Request) {
	var req LinkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	res, err := h.svc.LinkDocument(r.Context(), req.Path, req.Backend, req.DryRun)
	if err != nil {
		writeServiceError(w, "link note", err, slog.String("path", req.Path))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Insert handles POST /api/insert.
//
//	@Summary		Insert the given link suggestions into a note
//	@Tags			links
//	@Accept			json
//	@Produce		json
//	@Param			body	body		InsertRequest	true	"Note, suggestions and linker options"
//	@Success		200		{object}	linker.Result
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/insert [post]
func (h *Handler) Insert(w http.ResponseWriter, r *http.Request) {
	var req InsertRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	opts := h.svc.Settings().Linker
	if req.Options != nil {
		opts = *req.Options
	}
	res, err := h.svc.InsertLinks(r.Context(), req.Path, req.Suggestions, opts, req.DryRun)
	if err != nil {
		writeServiceError(w, "insert links", err, slog.String("path", req.Path))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// BatchSuggest handles POST /api/batch/suggest.
//
//	@Summary		Collect link suggestions for every note in a folder
//	@Tags			batch
//	@Accept			json
//	@Produce		json
//	@Param			body	body		BatchSuggestRequest	true	"Folder and batch options"
//	@Success		200		{object}	batch.SuggestResult
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/batch/suggest [post]
func (h *Handler) BatchSuggest(w http.ResponseWriter, r *http.Request) {
	var req BatchSuggestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	opts := h.svc.BatchOptions(req.Folder, req.Backend)
	if req.Concurrency > 0 {
		opts.Concurrency = req.Concurrency
	}
	if req.MinConfidence != nil {
		opts.MinConfidence = *req.MinConfidence
	}
	if req.MaxSuggestions > 0 {
		opts.MaxSuggestions = req.MaxSuggestions
	}
	if len(req.Include) > 0 {
		opts.Include = req.Include
	}
	if len(req.Exclude) > 0 {
		opts.Exclude = req.Exclude
	}

	res, err := h.svc.BatchSuggest(r.Context(), opts)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// BatchApply handles POST /api/batch/apply.
//
//	@Summary		Insert the suggestions of a batch run
//	@Tags			batch
//	@Accept			json
//	@Produce		json
//	@Param			body	body		BatchApplyRequest	true	"Batch suggest result and apply options"
//	@Success		200		{object}	batch.ApplyResult
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/batch/apply [post]
func (h *Handler) BatchApply(w http.ResponseWriter, r *http.Request) {
	var req BatchApplyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	settings := h.svc.Settings()
	opts := batch.ApplyOptions{DryRun: settings.BatchDryRun, Linker: settings.Linker}
	if req.Options != nil {
		opts.Linker = *req.Options
	}
	if req.DryRun != nil {
		opts.DryRun = *req.DryRun
	}
	writeJSON(w, http.StatusOK, h.svc.BatchApply(r.Context(), req.Run, opts))
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across notes
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeServiceError(w, "search", err, slog.String("query", q))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
