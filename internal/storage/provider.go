// Package storage provides file-system access to a single collection root:
// recursive Markdown enumeration plus guarded reads and atomic writes.
package storage

import (
	"context"

	"github.com/starford/murmur/internal/models"
)

// NoteExt is the recognized note file extension.
const NoteExt = ".md"

// Provider is the interface for collection file operations.
type Provider interface {
	// Root returns the absolute collection root.
	Root() string
	// Scan lists every note under the root. Problems are returned as warnings.
	Scan() ([]FileInfo, []models.Warning)
	// Read returns the raw bytes of the file at path (relative to root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to root).
	Write(path string, content []byte) error
	// Exists reports whether a file is present at path (relative to root).
	Exists(path string) bool
	// Lock takes the cross-process write lock for the root.
	Lock(ctx context.Context) (unlock func() error, err error)
}
