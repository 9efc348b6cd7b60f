package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/murmur/internal/models"
)

// ExcludedDirs are directory names never descended into. Matching is by
// exact name.
var ExcludedDirs = map[string]struct{}{
	".git":      {},
	".hg":       {},
	".svn":      {},
	".obsidian": {},
	".trash":    {},
	StateDir:    {},
}

// ErrInvalidPath is returned for paths that are absolute or escape the
// collection root.
var ErrInvalidPath = errors.New("storage: invalid path")

// FileInfo describes one note found by Scan.
type FileInfo struct {
	Path    string // slash-separated, relative to root
	Size    int64
	ModTime time.Time
}

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to collection directory
	name string // collection name used in warnings
}

// NewFS creates a provider rooted at root. The directory is not required to
// exist; Scan reports a missing root as a warning.
func NewFS(name, root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	return &FS{root: abs, name: name}, nil
}

// Root returns the absolute collection root.
func (f *FS) Root() string {
	return f.root
}

// safePath resolves a relative path against the root and rejects any
// result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("%w: absolute paths not allowed: %s", ErrInvalidPath, rel)
	}
	abs, err := filepath.Abs(filepath.Join(f.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("%w: escapes collection root: %s", ErrInvalidPath, rel)
	}
	return abs, nil
}

// ResolveRoot returns the absolute form of root with symlinks evaluated.
// The root must exist.
func ResolveRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// Scan walks the root and returns every file ending in NoteExt. A symlinked
// root is followed. Excluded directories are skipped; unreadable directories
// are reported and skipped while the walk continues with their siblings.
func (f *FS) Scan() ([]FileInfo, []models.Warning) {
	var (
		out      []FileInfo
		warnings []models.Warning
	)
	root, err := ResolveRoot(f.root)
	if err != nil {
		return nil, []models.Warning{{Collection: f.name, Err: fmt.Errorf("storage: resolve root: %w", err)}}
	}
	warn := func(p string, err error) {
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil || rel == "." {
			rel = ""
		}
		warnings = append(warnings, models.Warning{
			Collection: f.name,
			Path:       filepath.ToSlash(rel),
			Err:        err,
		})
	}

	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			warn(p, walkErr)
			if d != nil && d.IsDir() && p != root {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if _, skip := ExcludedDirs[d.Name()]; skip && p != root {
				return fs.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), NoteExt) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			warn(p, err)
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			warn(p, err)
			return nil
		}
		out = append(out, FileInfo{
			Path:    filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	return out, warnings
}

// Read returns the raw bytes of a collection file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Exists reports whether a regular file is present at path.
func (f *FS) Exists(path string) bool {
	abs, err := f.safePath(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(abs)
	return err == nil && info.Mode().IsRegular()
}

// Write atomically writes content: tmp file, fsync, rename.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	if abs == f.root {
		return fmt.Errorf("storage: cannot write to collection root")
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".murmur-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}
