// Package noteservice ties the cross-collection engine together for the
// HTTP, MCP and CLI front ends.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/murmur/internal/apperr"
	"github.com/starford/murmur/internal/checksum"
	"github.com/starford/murmur/internal/collection"
	"github.com/starford/murmur/internal/models"
	"github.com/starford/murmur/internal/parser"
	"github.com/starford/murmur/internal/recordings"
	"github.com/starford/murmur/internal/search"
	"github.com/starford/murmur/internal/storage"
	"github.com/starford/murmur/internal/topics"
)

// NoteRef points at a note in a collection.
type NoteRef struct {
	Collection string `json:"collection"`
	Path       string `json:"path"`
	Title      string `json:"title"`
}

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	Collection  string                  `json:"collection"`
	Path        string                  `json:"path"`
	Title       string                  `json:"title"`
	Content     string                  `json:"content"`
	Checksum    string                  `json:"checksum"`
	Tags        []string                `json:"tags"`
	Links       []string                `json:"links"`
	Frontmatter map[string]models.Value `json:"frontmatter,omitempty"`
	Backlinks   []NoteRef               `json:"backlinks"`
	Modified    time.Time               `json:"modified"`
	Size        int64                   `json:"size"`
}

// NoteListItem is a lightweight search hit.
type NoteListItem struct {
	Collection string    `json:"collection"`
	Path       string    `json:"path"`
	Title      string    `json:"title"`
	Tags       []string  `json:"tags"`
	Modified   time.Time `json:"modified"`
	Size       int64     `json:"size"`
}

// SearchResult is the outcome of a cross-collection search.
type SearchResult struct {
	Results  []NoteListItem   `json:"results"`
	Warnings []models.Warning `json:"warnings"`
}

// RebuildResult is the outcome of regenerating the topic index report.
type RebuildResult struct {
	Path     string           `json:"path"`
	Written  bool             `json:"written"`
	Topics   int              `json:"topics"`
	Warnings []models.Warning `json:"warnings"`
}

// CollectionStatus describes one registered collection and whether it can
// currently be read.
type CollectionStatus struct {
	Name      string                `json:"name"`
	Root      string                `json:"root"`
	Kind      models.CollectionKind `json:"kind"`
	Enabled   bool                  `json:"enabled"`
	Icon      string                `json:"icon,omitempty"`
	Reachable bool                  `json:"reachable"`
	Error     string                `json:"error,omitempty"`
}

// Deps are the components a Service is built from. Importer may be nil when
// no recording API is configured.
type Deps struct {
	Registry *collection.Registry
	Loader   *collection.Loader
	Engine   *search.Engine
	Indexer  *topics.Indexer
	Writer   *topics.Writer
	Importer *recordings.Importer
	Logger   *slog.Logger
}

// Service coordinates collections, search, topic indexing and imports.
type Service struct {
	registry *collection.Registry
	loader   *collection.Loader
	engine   *search.Engine
	indexer  *topics.Indexer
	writer   *topics.Writer
	importer *recordings.Importer
	logger   *slog.Logger
}

// NewService creates a new note service.
func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry: d.Registry,
		loader:   d.Loader,
		engine:   d.Engine,
		indexer:  d.Indexer,
		writer:   d.Writer,
		importer: d.Importer,
		logger:   logger,
	}
}

// Search runs q against the enabled collections.
func (s *Service) Search(ctx context.Context, q search.Query) (*SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	docs, warnings := s.engine.Search(ctx, q)
	items := make([]NoteListItem, len(docs))
	for i, d := range docs {
		items[i] = NoteListItem{
			Collection: d.Collection,
			Path:       d.Path,
			Title:      d.Title,
			Tags:       nonNilSlice(d.Tags),
			Modified:   d.ModTime,
			Size:       d.Size,
		}
	}
	return &SearchResult{Results: items, Warnings: nonNilSlice(warnings)}, nil
}

// Topics builds the topic index without writing it.
func (s *Service) Topics(ctx context.Context) (*topics.Index, []models.Warning, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	idx, warnings := s.indexer.Build(ctx)
	return idx, nonNilSlice(warnings), nil
}

// Report renders the topic index report without writing it.
func (s *Service) Report(ctx context.Context) ([]byte, []models.Warning, error) {
	idx, warnings, err := s.Topics(ctx)
	if err != nil {
		return nil, nil, err
	}
	return s.writer.Render(idx), warnings, nil
}

// Rebuild builds the topic index and writes the report into the primary
// collection.
func (s *Service) Rebuild(ctx context.Context) (*RebuildResult, error) {
	idx, warnings, err := s.Topics(ctx)
	if err != nil {
		return nil, err
	}
	written, err := s.writer.Write(ctx, idx)
	if err != nil {
		return nil, err
	}
	return &RebuildResult{
		Path:     s.writer.Path(),
		Written:  written,
		Topics:   len(idx.Topics),
		Warnings: warnings,
	}, nil
}

// Collections reports every registered collection in registry order.
func (s *Service) Collections(_ context.Context) []CollectionStatus {
	all := s.registry.All()
	out := make([]CollectionStatus, len(all))
	for i, c := range all {
		st := CollectionStatus{
			Name:      c.Name,
			Root:      c.Root,
			Kind:      c.Kind,
			Enabled:   c.Enabled,
			Icon:      c.Icon,
			Reachable: true,
		}
		if err := s.registry.Validate(c); err != nil {
			st.Reachable = false
			st.Error = err.Error()
		}
		out[i] = st
	}
	return out
}

// GetNote reads one note from the named collection. When several enabled
// collections share the name, the first one holding the path wins.
// Backlinks are collected from every enabled collection.
func (s *Service) GetNote(ctx context.Context, collectionName, notePath string) (*NoteDetail, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !strings.HasSuffix(notePath, storage.NoteExt) {
		return nil, fmt.Errorf("%w: %s", apperr.ErrNotFound, notePath)
	}
	for _, c := range s.registry.Lookup(collectionName) {
		if !c.Enabled {
			continue
		}
		store, err := collection.FSProvider(c)
		if err != nil {
			return nil, err
		}
		data, err := store.Read(notePath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			if errors.Is(err, storage.ErrInvalidPath) {
				return nil, fmt.Errorf("%w: %s", apperr.ErrNotFound, notePath)
			}
			return nil, err
		}
		doc, err := parser.Parse(notePath, data)
		if err != nil {
			return nil, err
		}
		return &NoteDetail{
			Collection:  c.Name,
			Path:        notePath,
			Title:       doc.Title,
			Content:     string(data),
			Checksum:    checksum.Sum(data),
			Tags:        nonNilSlice(doc.Tags),
			Links:       nonNilSlice(doc.Links),
			Frontmatter: doc.FrontMatter,
			Backlinks:   s.backlinks(doc.Title, notePath),
			Size:        int64(len(data)),
			Modified:    s.modTime(c, notePath),
		}, nil
	}
	return nil, fmt.Errorf("%w: %s/%s", apperr.ErrNotFound, collectionName, notePath)
}

// Backlinks returns every note whose [[links]] point at the given note
// stem or title.
func (s *Service) Backlinks(ctx context.Context, target string) ([]NoteRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.backlinks(target, target), nil
}

// Import pulls new recordings into the primary collection.
func (s *Service) Import(ctx context.Context) (recordings.Result, error) {
	if s.importer == nil {
		return recordings.Result{}, fmt.Errorf("recordings import: %w", apperr.ErrNotConfigured)
	}
	return s.importer.Import(ctx)
}

func (s *Service) backlinks(title, notePath string) []NoteRef {
	stem := strings.TrimSuffix(notePath, path.Ext(notePath))
	base := path.Base(stem)
	batches, _ := s.registry.Gather(s.loader, s.registry.Enabled())

	refs := []NoteRef{}
	for _, d := range collection.Flatten(batches) {
		if d.Path == notePath {
			continue
		}
		for _, l := range d.Links {
			if l == stem || l == base || strings.EqualFold(l, title) {
				refs = append(refs, NoteRef{Collection: d.Collection, Path: d.Path, Title: d.Title})
				break
			}
		}
	}
	return refs
}

func (s *Service) modTime(c models.Collection, notePath string) time.Time {
	info, err := os.Stat(filepath.Join(c.Root, filepath.FromSlash(notePath)))
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
