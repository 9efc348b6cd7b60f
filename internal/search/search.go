// Package search implements substring search across every registered
// collection. Each call re-reads the file system; there is no index.
package search

import (
	"context"
	"log/slog"
	"strings"

	"github.com/starford/murmur/internal/collection"
	"github.com/starford/murmur/internal/models"
)

// Query describes one search.
type Query struct {
	// Text is matched case-insensitively against titles, and against the
	// body (front-matter excluded) when IncludeContent is set. Empty
	// matches everything.
	Text string
	// Tags keeps documents having at least one tag that contains at least
	// one of these terms (case-insensitive substring).
	Tags []string
	// Collections restricts the search to these exact collection names.
	Collections []string
	// Limit caps the result count when positive.
	Limit          int
	IncludeContent bool
}

// Engine runs queries against a registry.
type Engine struct {
	registry *collection.Registry
	loader   *collection.Loader
	logger   *slog.Logger
}

// NewEngine creates a search engine. A nil logger uses slog.Default().
func NewEngine(registry *collection.Registry, loader *collection.Loader, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{registry: registry, loader: loader, logger: logger}
}

// Search returns the documents matching q, newest first. Unreachable
// collections and unparseable files are skipped and reported as warnings;
// they never fail the call. ctx is only checked between collections.
func (e *Engine) Search(ctx context.Context, q Query) ([]*models.Document, []models.Warning) {
	candidates := e.candidates(q.Collections)

	var (
		docs     []*models.Document
		warnings []models.Warning
	)
	for _, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		batches, ws := e.registry.Gather(e.loader, []models.Collection{c})
		warnings = append(warnings, ws...)
		docs = append(docs, collection.Flatten(batches)...)
	}

	out := Filter(docs, q)

	e.logger.Debug("search",
		slog.String("text", q.Text),
		slog.Int("candidates", len(candidates)),
		slog.Int("scanned", len(docs)),
		slog.Int("results", len(out)),
		slog.Int("warnings", len(warnings)))
	return out, warnings
}

func (e *Engine) candidates(names []string) []models.Collection {
	enabled := e.registry.Enabled()
	if len(names) == 0 {
		return enabled
	}
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}
	var out []models.Collection
	for _, c := range enabled {
		if _, ok := want[c.Name]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Filter applies the tag and text filters of q to docs, sorts the
// survivors newest first and truncates to q.Limit. docs is not modified.
func Filter(docs []*models.Document, q Query) []*models.Document {
	// Terms that normalize to nothing still count as a tag filter, one
	// that no document can satisfy.
	tagFilter := len(q.Tags) > 0
	terms := lowerAll(q.Tags)
	text := strings.ToLower(q.Text)

	out := make([]*models.Document, 0, len(docs))
	for _, d := range docs {
		if tagFilter && !matchTags(d.Tags, terms) {
			continue
		}
		if text != "" && !matchText(d, text, q.IncludeContent) {
			continue
		}
		out = append(out, d)
	}

	models.SortByModTime(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func matchTags(tags, terms []string) bool {
	for _, tag := range tags {
		lt := strings.ToLower(tag)
		for _, term := range terms {
			if strings.Contains(lt, term) {
				return true
			}
		}
	}
	return false
}

func matchText(d *models.Document, text string, content bool) bool {
	if strings.Contains(strings.ToLower(d.Title), text) {
		return true
	}
	return content && strings.Contains(strings.ToLower(d.Body), text)
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "#")))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
