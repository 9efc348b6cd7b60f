package recordings

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/starford/murmur/internal/collection"
	"github.com/starford/murmur/internal/models"
	"github.com/starford/murmur/internal/storage"
)

// maxPages bounds a single import run against a misbehaving cursor.
const maxPages = 1000

// Result summarizes one import run.
type Result struct {
	RunID   string   `json:"run_id"`
	Fetched int      `json:"fetched"`
	Written int      `json:"written"`
	Skipped int      `json:"skipped"`
	Paths   []string `json:"paths"`
}

// Importer copies recordings from a Source into the primary collection.
type Importer struct {
	source  Source
	store   storage.Provider
	primary models.Collection
	loader  *collection.Loader
	subdir  string
	logger  *slog.Logger
}

// NewImporter creates an Importer writing notes under subdir of primary.
func NewImporter(source Source, store storage.Provider, primary models.Collection, loader *collection.Loader, subdir string, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		source:  source,
		store:   store,
		primary: primary,
		loader:  loader,
		subdir:  strings.Trim(subdir, "/"),
		logger:  logger,
	}
}

// Import pages through the source and writes every recording not already
// present. Recordings are matched by the recording_id front-matter field of
// notes in the recordings directory, so re-running an import is a no-op.
// On error the result covers the pages processed so far.
func (im *Importer) Import(ctx context.Context) (Result, error) {
	res := Result{RunID: uuid.NewString()}
	logger := im.logger.With(slog.String("run_id", res.RunID))

	unlock, err := im.store.Lock(ctx)
	if err != nil {
		return res, fmt.Errorf("recordings: %w", err)
	}
	defer func() { _ = unlock() }()

	known := im.knownIDs()
	logger.Info("import started", slog.Int("known", len(known)))

	cursor := ""
	for page := 0; page < maxPages; page++ {
		p, err := im.source.List(ctx, cursor)
		if err != nil {
			logger.Warn("import stopped", slog.String("error", err.Error()))
			return res, fmt.Errorf("recordings: list page %d: %w", page+1, err)
		}
		for _, rec := range p.Items {
			res.Fetched++
			if rec.ID == "" {
				res.Skipped++
				continue
			}
			if _, ok := known[rec.ID]; ok {
				res.Skipped++
				continue
			}
			rel := im.notePath(rec, false)
			if im.store.Exists(rel) {
				// Known IDs were filtered above, so the short name belongs
				// to another recording or to a note without recording_id.
				full := im.notePath(rec, true)
				if full == rel || im.store.Exists(full) {
					logger.Warn("recording skipped, note name taken",
						slog.String("id", rec.ID), slog.String("path", rel))
					res.Skipped++
					continue
				}
				logger.Info("note name taken, using full recording id",
					slog.String("id", rec.ID), slog.String("taken", rel), slog.String("path", full))
				rel = full
			}
			if err := im.store.Write(rel, RenderNote(rec)); err != nil {
				return res, fmt.Errorf("recordings: write %s: %w", rel, err)
			}
			known[rec.ID] = struct{}{}
			res.Written++
			res.Paths = append(res.Paths, rel)
			logger.Debug("recording imported", slog.String("id", rec.ID), slog.String("path", rel))
		}
		if p.Next == "" || p.Next == cursor {
			break
		}
		cursor = p.Next
	}

	logger.Info("import finished",
		slog.Int("fetched", res.Fetched),
		slog.Int("written", res.Written),
		slog.Int("skipped", res.Skipped))
	return res, nil
}

func (im *Importer) knownIDs() map[string]struct{} {
	known := make(map[string]struct{})
	docs, _ := im.loader.Load(im.primary)
	prefix := im.subdir + "/"
	for _, d := range docs {
		if !strings.HasPrefix(d.Path, prefix) {
			continue
		}
		if v, ok := d.FrontMatter["recording_id"]; ok {
			known[v.String()] = struct{}{}
		}
	}
	return known
}

// notePath names a recording's note by date, title slug and the first
// eight ID characters, or the whole ID when fullID is set.
func (im *Importer) notePath(rec Recording, fullID bool) string {
	name := rec.CreatedAt.UTC().Format("2006-01-02")
	if s := Slug(rec.Title); s != "" {
		name += "-" + s
	}
	id := rec.ID
	if len(id) > 8 && !fullID {
		id = id[:8]
	}
	name += "-" + Slug(id) + storage.NoteExt
	return path.Join(im.subdir, name)
}

// Slug lowercases s and joins its letter and digit runs with "-",
// truncated to 60 characters.
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	out := b.String()
	for len(out) > 60 {
		r := []rune(out)
		out = strings.TrimRight(string(r[:len(r)-1]), "-")
	}
	return out
}

// RenderNote formats a recording as a Markdown note in the shape the
// parser reads back: front-matter, H1 title, summary, transcript.
func RenderNote(rec Recording) []byte {
	title := strings.TrimSpace(rec.Title)
	if title == "" {
		title = "Recording " + rec.CreatedAt.UTC().Format("2006-01-02 15:04")
	}

	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "recording_id: %q\n", rec.ID)
	fmt.Fprintf(&b, "created: %s\n", rec.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "duration: %d\n", int(rec.Duration+0.5))
	b.WriteString("source: recording\n")
	if len(rec.Tags) > 0 {
		quoted := make([]string, 0, len(rec.Tags))
		for _, t := range rec.Tags {
			t = strings.TrimSpace(strings.TrimPrefix(t, "#"))
			if t != "" {
				quoted = append(quoted, fmt.Sprintf("%q", t))
			}
		}
		fmt.Fprintf(&b, "tags: [%s]\n", strings.Join(quoted, ", "))
	}
	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "# %s\n\n", title)
	if s := strings.TrimSpace(rec.Summary); s != "" {
		b.WriteString("## Summary\n\n")
		b.WriteString(s)
		b.WriteString("\n\n")
	}
	b.WriteString("## Transcript\n\n")
	if t := strings.TrimSpace(rec.Transcript); t != "" {
		b.WriteString(t)
	} else {
		b.WriteString("_No transcript available._")
	}
	b.WriteString("\n")
	return []byte(b.String())
}
