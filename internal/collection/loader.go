package collection

import (
	"log/slog"

	"github.com/starford/murmur/internal/models"
	"github.com/starford/murmur/internal/parser"
	"github.com/starford/murmur/internal/storage"
)

// ProviderFunc opens a storage provider for a collection.
type ProviderFunc func(c models.Collection) (storage.Provider, error)

// FSProvider opens collections on the local file system.
func FSProvider(c models.Collection) (storage.Provider, error) {
	return storage.NewFS(c.Name, c.Root)
}

// Loader reads a whole collection into memory. Nothing is cached: every
// Load walks the collection again.
type Loader struct {
	open   ProviderFunc
	logger *slog.Logger
}

// NewLoader creates a Loader. A nil open uses FSProvider; a nil logger uses
// slog.Default().
func NewLoader(open ProviderFunc, logger *slog.Logger) *Loader {
	if open == nil {
		open = FSProvider
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{open: open, logger: logger}
}

// Load scans, reads and parses every note in c. Files that cannot be read
// or decoded are skipped and reported as warnings; the rest are returned in
// scan order.
func (l *Loader) Load(c models.Collection) ([]*models.Document, []models.Warning) {
	store, err := l.open(c)
	if err != nil {
		w := models.Warning{Collection: c.Name, Err: err}
		l.logWarning(w)
		return nil, []models.Warning{w}
	}

	files, warnings := store.Scan()
	for _, w := range warnings {
		l.logWarning(w)
	}

	docs := make([]*models.Document, 0, len(files))
	for _, f := range files {
		data, err := store.Read(f.Path)
		if err != nil {
			w := models.Warning{Collection: c.Name, Path: f.Path, Err: err}
			l.logWarning(w)
			warnings = append(warnings, w)
			continue
		}
		doc, err := parser.Parse(f.Path, data)
		if err != nil {
			w := models.Warning{Collection: c.Name, Path: f.Path, Err: err}
			l.logWarning(w)
			warnings = append(warnings, w)
			continue
		}
		doc.Collection = c.Name
		doc.ModTime = f.ModTime
		doc.Size = f.Size
		docs = append(docs, doc)
	}

	l.logger.Debug("collection loaded",
		slog.String("collection", c.Name),
		slog.Int("documents", len(docs)),
		slog.Int("warnings", len(warnings)))
	return docs, warnings
}

func (l *Loader) logWarning(w models.Warning) {
	l.logger.Warn("skipped",
		slog.String("collection", w.Collection),
		slog.String("path", w.Path),
		slog.String("error", w.Err.Error()))
}

// Batch is the parsed content of one collection.
type Batch struct {
	Collection models.Collection
	Documents  []*models.Document
}

// Gather validates and loads each collection in order. Unreachable
// collections produce a warning and no batch.
func (r *Registry) Gather(l *Loader, cs []models.Collection) ([]Batch, []models.Warning) {
	var (
		batches  []Batch
		warnings []models.Warning
	)
	for _, c := range cs {
		if err := r.Validate(c); err != nil {
			l.logger.Warn("collection skipped",
				slog.String("collection", c.Name),
				slog.String("root", c.Root),
				slog.String("error", err.Error()))
			warnings = append(warnings, models.Warning{Collection: c.Name, Err: err})
			continue
		}
		docs, ws := l.Load(c)
		warnings = append(warnings, ws...)
		batches = append(batches, Batch{Collection: c, Documents: docs})
	}
	return batches, warnings
}

// Flatten concatenates the documents of every batch in order.
func Flatten(batches []Batch) []*models.Document {
	n := 0
	for _, b := range batches {
		n += len(b.Documents)
	}
	out := make([]*models.Document, 0, n)
	for _, b := range batches {
		out = append(out, b.Documents...)
	}
	return out
}
