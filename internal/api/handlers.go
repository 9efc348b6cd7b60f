package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/murmur/internal/apperr"
	"github.com/starford/murmur/internal/noteservice"
	"github.com/starford/murmur/internal/recordings"
	"github.com/starford/murmur/internal/search"
)

// Handler holds API route handlers.
type Handler struct {
	svc       *noteservice.Service
	onRebuild RebuildHook
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service, onRebuild RebuildHook) *Handler {
	return &Handler{svc: svc, onRebuild: onRebuild}
}

// notePath extracts the note path from the URL (everything after the
// collection segment). Supports encoded slashes (e.g. plans%2Froadmap.md).
func notePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// multiParam collects a repeatable query parameter, also splitting
// comma-separated values.
func multiParam(q url.Values, key string) []string {
	var out []string
	for _, v := range q[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Search handles GET /api/search.
//
//	@Summary		Search notes across all enabled collections
//	@Tags			search
//	@Produce		json
//	@Param			q			query		string	false	"Text matched against titles (and content with content=true)"
//	@Param			tag			query		string	false	"Tag substring; repeatable or comma-separated"
//	@Param			collection	query		string	false	"Collection name; repeatable"
//	@Param			content		query		bool	false	"Also match note bodies"
//	@Param			limit		query		int		false	"Max results (0 = all)"
//	@Success		200			{object}	SearchResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := search.Query{
		Text:        q.Get("q"),
		Tags:        multiParam(q, "tag"),
		Collections: multiParam(q, "collection"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		query.Limit = n
	}
	if v := q.Get("content"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "content must be a boolean")
			return
		}
		query.IncludeContent = b
	}

	res, err := h.svc.Search(r.Context(), query)
	if err != nil {
		slog.Error("search failed", slog.String("query", query.Text), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Topics handles GET /api/topics.
//
//	@Summary		Build the topic index in memory
//	@Tags			topics
//	@Produce		json
//	@Success		200	{object}	TopicsResponse
//	@Security		BearerAuth
//	@Router			/topics [get]
func (h *Handler) Topics(w http.ResponseWriter, r *http.Request) {
	idx, warnings, err := h.svc.Topics(r.Context())
	if err != nil {
		slog.Error("topics failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, newTopicsResponse(idx, warnings))
}

// RebuildTopics handles POST /api/topics/rebuild.
//
//	@Summary		Regenerate the topic index report in the primary collection
//	@Tags			topics
//	@Produce		json
//	@Success		200	{object}	RebuildResponse
//	@Security		BearerAuth
//	@Router			/topics/rebuild [post]
func (h *Handler) RebuildTopics(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Rebuild(r.Context())
	if err != nil {
		slog.Error("rebuild failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if h.onRebuild != nil {
		h.onRebuild(res)
	}
	writeJSON(w, http.StatusOK, res)
}

// Collections handles GET /api/collections.
//
//	@Summary		List registered collections with reachability
//	@Tags			collections
//	@Produce		json
//	@Success		200	{object}	CollectionsResponse
//	@Security		BearerAuth
//	@Router			/collections [get]
func (h *Handler) Collections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CollectionsResponse{Collections: h.svc.Collections(r.Context())})
}

// GetNote handles GET /api/notes/{collection}/*.
//
//	@Summary		Read one note
//	@Tags			notes
//	@Produce		json
//	@Param			collection	path		string	true	"Collection name"
//	@Param			path		path		string	true	"Note path"
//	@Success		200			{object}	NoteDetail
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{collection}/{path} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	coll, err := url.PathUnescape(chi.URLParam(r, "collection"))
	if err != nil {
		coll = chi.URLParam(r, "collection")
	}
	path := notePath(r)
	if coll == "" || path == "" {
		writeError(w, http.StatusBadRequest, "collection and path are required")
		return
	}
	note, err := h.svc.GetNote(r.Context(), coll, path)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeError(w, http.StatusNotFound, "not found")
		case errors.Is(err, apperr.ErrNotText):
			writeError(w, http.StatusUnsupportedMediaType, "not a text document")
		default:
			slog.Error("get note failed",
				slog.String("collection", coll),
				slog.String("path", path),
				slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// Backlinks handles GET /api/backlinks.
//
//	@Summary		Find notes linking to a target
//	@Tags			notes
//	@Produce		json
//	@Param			target	query		string	true	"Link target (note stem or title)"
//	@Success		200		{object}	BacklinksResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/backlinks [get]
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("target")
	if target == "" {
		writeError(w, http.StatusBadRequest, "query parameter 'target' is required")
		return
	}
	refs, err := h.svc.Backlinks(r.Context(), target)
	if err != nil {
		slog.Error("backlinks failed", slog.String("target", target), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Target: target, Backlinks: refs})
}

// Import handles POST /api/import.
//
//	@Summary		Import new recordings into the primary collection
//	@Tags			recordings
//	@Produce		json
//	@Success		200	{object}	ImportResponse
//	@Failure		429	{object}	errResponse
//	@Failure		501	{object}	errResponse
//	@Failure		502	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/import [post]
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Import(r.Context())
	if err != nil {
		var rl *recordings.RateLimitError
		switch {
		case errors.Is(err, apperr.ErrNotConfigured):
			writeError(w, http.StatusNotImplemented, "recordings import is not configured")
		case errors.As(err, &rl):
			if rl.RetryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(rl.RetryAfter.Seconds()+0.5)))
			}
			writeError(w, http.StatusTooManyRequests, "recording API rate limit reached")
		default:
			slog.Error("import failed", slog.String("run_id", res.RunID), slog.String("error", err.Error()))
			writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, ImportResponse{
		RunID:   res.RunID,
		Fetched: res.Fetched,
		Written: res.Written,
		Skipped: res.Skipped,
		Paths:   nonNil(res.Paths),
	})
}
