package topics

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/starford/murmur/internal/checksum"
	"github.com/starford/murmur/internal/models"
	"github.com/starford/murmur/internal/storage"
)

// Default icons used when a collection has none configured.
const (
	DefaultPrimaryIcon  = "🎙️"
	DefaultExternalIcon = "📁"
)

// RenderOptions carries the collection details the report needs.
type RenderOptions struct {
	// Primary is the name of the collection the report is written into.
	Primary string
	// Icons maps collection names to display icons.
	Icons map[string]string
}

func (o RenderOptions) icon(name string) string {
	if i := o.Icons[name]; i != "" {
		return i
	}
	if name == o.Primary {
		return DefaultPrimaryIcon
	}
	return DefaultExternalIcon
}

// Render produces the Markdown topic index report. The output depends only
// on idx contents (GeneratedAt is not rendered), so an unchanged corpus
// renders byte-identical reports.
func Render(idx *Index, opts RenderOptions) []byte {
	icon := opts.icon

	var b strings.Builder
	b.WriteString("---\ntitle: Topic Index\ngenerated: true\n---\n\n")
	b.WriteString("# Topic Index\n\n")

	b.WriteString("## Topics\n\n")
	if len(idx.Topics) == 0 {
		b.WriteString("_No topics yet._\n\n")
	} else {
		b.WriteString("| Topic | Documents | Collections |\n|---|---:|---|\n")
		for _, t := range idx.Topics {
			marks := make([]string, len(t.Collections))
			for i, c := range t.Collections {
				marks[i] = icon(c)
			}
			fmt.Fprintf(&b, "| %s | %d | %s |\n", cell(t.Topic), t.Count, strings.Join(marks, " "))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Recent activity\n\n")
	if len(idx.Recent) == 0 {
		b.WriteString("_Nothing yet._\n\n")
	} else {
		for _, d := range idx.Recent {
			fmt.Fprintf(&b, "- %s %s %s\n", d.ModTime.Format("2006-01-02"), icon(d.Collection), recentLink(d, opts.Primary))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Collections\n\n")
	b.WriteString("| Collection | Documents | Size |\n|---|---:|---:|\n")
	for _, s := range idx.Stats {
		fmt.Fprintf(&b, "| %s %s | %d | %s |\n", icon(s.Collection), cell(s.Collection), s.Documents, humanize.Bytes(uint64(s.TotalSize)))
	}
	return []byte(b.String())
}

// recentLink links documents of the primary collection by path (the target
// keeps its ".md" so it is never read back as a topic) and names the others.
func recentLink(d *models.Document, primary string) string {
	if d.Collection == primary {
		return fmt.Sprintf("[[%s|%s]]", d.Path, strings.ReplaceAll(d.Title, "|", "-"))
	}
	return fmt.Sprintf("%s (%s: `%s`)", d.Title, d.Collection, d.Path)
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// Writer persists rendered reports into the primary collection.
type Writer struct {
	store  storage.Provider
	path   string
	opts   RenderOptions
	logger *slog.Logger
}

// NewWriter creates a Writer that stores the report at path (relative to
// the store root).
func NewWriter(store storage.Provider, path string, opts RenderOptions, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{store: store, path: path, opts: opts, logger: logger}
}

// Path returns the report path relative to the primary collection.
func (w *Writer) Path() string {
	return w.path
}

// Render renders idx with the writer's collection details.
func (w *Writer) Render(idx *Index) []byte {
	return Render(idx, w.opts)
}

// Write renders idx and writes it, overwriting any previous report. When
// the rendered bytes match what is on disk nothing is written and written
// is false.
func (w *Writer) Write(ctx context.Context, idx *Index) (written bool, err error) {
	unlock, err := w.store.Lock(ctx)
	if err != nil {
		return false, fmt.Errorf("topics: %w", err)
	}
	defer func() { _ = unlock() }()

	data := w.Render(idx)
	if existing, err := w.store.Read(w.path); err == nil && checksum.Equal(data, checksum.Sum(existing)) {
		w.logger.Debug("topic index unchanged", slog.String("path", w.path))
		return false, nil
	}
	if err := w.store.Write(w.path, data); err != nil {
		return false, fmt.Errorf("topics: write report: %w", err)
	}
	w.logger.Info("topic index written",
		slog.String("path", w.path),
		slog.String("checksum", checksum.Sum(data)))
	return true, nil
}
