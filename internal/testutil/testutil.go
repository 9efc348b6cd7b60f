// Package testutil provides shared test helpers for building collections on disk.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/murmur/internal/models"
)

// Collection creates a temporary collection directory.
func Collection(t *testing.T, name string, kind models.CollectionKind) models.Collection {
	t.Helper()
	return models.Collection{
		Name:    name,
		Root:    t.TempDir(),
		Enabled: true,
		Kind:    kind,
	}
}

// MissingCollection returns a collection whose root does not exist.
func MissingCollection(t *testing.T, name string) models.Collection {
	t.Helper()
	return models.Collection{
		Name:    name,
		Root:    filepath.Join(t.TempDir(), "missing"),
		Enabled: true,
		Kind:    models.KindExternal,
	}
}

// WriteNote writes content to rel inside c and sets its modification time.
// A zero mod leaves the current time.
func WriteNote(t *testing.T, c models.Collection, rel, content string, mod time.Time) {
	t.Helper()
	p := filepath.Join(c.Root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if !mod.IsZero() {
		if err := os.Chtimes(p, mod, mod); err != nil {
			t.Fatal(err)
		}
	}
}

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}
