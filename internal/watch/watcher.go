// Package watch observes collection roots and reports settled note changes.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/murmur/internal/models"
	"github.com/starford/murmur/internal/storage"
)

// Change kinds.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
)

// Change is one note event inside a watched collection.
type Change struct {
	Collection string
	Path       string // slash-separated, relative to the collection root
	Kind       string
}

// Handler receives watcher output. OnChange is called for every relevant
// note event; OnSettle once the collections have been quiet for the
// debounce interval after at least one change.
type Handler struct {
	OnChange func(Change)
	OnSettle func(ctx context.Context)
}

type root struct {
	abs  string
	name string
}

// Watcher watches several collection roots recursively.
type Watcher struct {
	roots    []root
	debounce time.Duration
	ignored  map[string]struct{}
	logger   *slog.Logger
}

// New creates a Watcher for the given collections. Roots that do not exist
// are skipped at Run time with a warning.
func New(cs []models.Collection, debounce time.Duration, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = time.Second
	}
	w := &Watcher{debounce: debounce, ignored: make(map[string]struct{}), logger: logger}
	for _, c := range cs {
		abs, err := rootPath(c.Root)
		if err != nil {
			logger.Warn("watcher: resolve root failed",
				slog.String("collection", c.Name),
				slog.String("error", err.Error()))
			continue
		}
		w.roots = append(w.roots, root{abs: abs, name: c.Name})
	}
	// Longest root first so nested collections resolve to the innermost.
	sort.SliceStable(w.roots, func(i, j int) bool { return len(w.roots[i].abs) > len(w.roots[j].abs) })
	return w
}

// Ignore suppresses events for one note, such as a generated report.
func (w *Watcher) Ignore(collectionRoot, rel string) {
	base, err := rootPath(collectionRoot)
	if err == nil {
		w.ignored[filepath.Join(base, filepath.FromSlash(rel))] = struct{}{}
	}
}

// rootPath resolves symlinks so event paths share the watched prefix. A root
// that does not exist yet keeps its absolute form and is reported by Run.
func rootPath(p string) (string, error) {
	resolved, err := storage.ResolveRoot(p)
	if err == nil {
		return resolved, nil
	}
	return filepath.Abs(p)
}

// Run processes file system events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, h Handler) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	watched := 0
	for _, r := range w.roots {
		if err := addDirsRecursive(fw, r.abs); err != nil {
			w.logger.Warn("watcher: collection not watched",
				slog.String("collection", r.name),
				slog.String("root", r.abs),
				slog.String("error", err.Error()))
			continue
		}
		watched++
		w.logger.Info("watcher: started", slog.String("collection", r.name), slog.String("root", r.abs))
	}
	if watched == 0 {
		return errors.New("watch: no collection root could be watched")
	}

	var (
		settle   *time.Timer
		settleCh <-chan time.Time
	)
	schedule := func() {
		if settle == nil {
			settle = time.NewTimer(w.debounce)
			settleCh = settle.C
			return
		}
		if !settle.Stop() {
			select {
			case <-settle.C:
			default:
			}
		}
		settle.Reset(w.debounce)
	}

	for {
		select {
		case <-ctx.Done():
			if settle != nil {
				settle.Stop()
			}
			w.logger.Info("watcher: stopped")
			return nil

		case <-settleCh:
			settleCh = nil
			settle = nil
			if h.OnSettle != nil {
				h.OnSettle(ctx)
			}

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if _, skip := storage.ExcludedDirs[info.Name()]; skip {
						continue
					}
					if addErr := addDirsRecursive(fw, ev.Name); addErr != nil {
						w.logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					schedule()
					continue
				}
			}

			change, ok := w.resolve(ev)
			if !ok {
				continue
			}
			w.logger.Debug("watcher: change",
				slog.String("collection", change.Collection),
				slog.String("path", change.Path),
				slog.String("op", change.Kind))
			if h.OnChange != nil {
				h.OnChange(change)
			}
			schedule()

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// resolve maps a raw event onto a note change, dropping everything that is
// not a visible, non-ignored note.
func (w *Watcher) resolve(ev fsnotify.Event) (Change, bool) {
	if !strings.HasSuffix(ev.Name, storage.NoteExt) {
		return Change{}, false
	}
	if _, skip := w.ignored[ev.Name]; skip {
		return Change{}, false
	}

	var kind string
	switch {
	case ev.Op&fsnotify.Create != 0:
		kind = KindCreated
	case ev.Op&fsnotify.Write != 0:
		kind = KindUpdated
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		kind = KindDeleted
	default:
		return Change{}, false
	}

	for _, r := range w.roots {
		rel, err := filepath.Rel(r.abs, ev.Name)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		for _, part := range strings.Split(filepath.Dir(rel), string(filepath.Separator)) {
			if _, skip := storage.ExcludedDirs[part]; skip {
				return Change{}, false
			}
		}
		return Change{Collection: r.name, Path: filepath.ToSlash(rel), Kind: kind}, true
	}
	return Change{}, false
}

// addDirsRecursive adds root and its subdirectories, minus excluded ones.
func addDirsRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if _, skip := storage.ExcludedDirs[d.Name()]; skip && path != root {
			return fs.SkipDir
		}
		return fw.Add(path)
	})
}
