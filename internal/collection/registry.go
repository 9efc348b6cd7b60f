// Package collection holds the set of known note collections and turns a
// collection into parsed documents on demand.
package collection

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/starford/murmur/internal/apperr"
	"github.com/starford/murmur/internal/models"
)

// Registry is the fixed set of collections known to the process: one
// primary collection followed by the external ones in configuration order.
// It is built once and never mutated.
type Registry struct {
	all []models.Collection
}

// NewRegistry creates a registry. The primary collection is always enabled
// and always first. Duplicate names are kept as configured.
func NewRegistry(primary models.Collection, external []models.Collection) *Registry {
	primary.Kind = models.KindPrimary
	primary.Enabled = true

	all := make([]models.Collection, 0, len(external)+1)
	all = append(all, primary)
	for _, c := range external {
		c.Kind = models.KindExternal
		all = append(all, c)
	}
	return &Registry{all: all}
}

// All returns every collection, including disabled ones.
func (r *Registry) All() []models.Collection {
	out := make([]models.Collection, len(r.all))
	copy(out, r.all)
	return out
}

// Enabled returns the collections whose enabled flag is set.
func (r *Registry) Enabled() []models.Collection {
	var out []models.Collection
	for _, c := range r.all {
		if c.Enabled {
			out = append(out, c)
		}
	}
	return out
}

// Primary returns the managed collection.
func (r *Registry) Primary() models.Collection {
	return r.all[0]
}

// Lookup returns every collection named name, in registry order.
func (r *Registry) Lookup(name string) []models.Collection {
	var out []models.Collection
	for _, c := range r.all {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Icons maps collection names to their display icons. With duplicate names
// the first configured icon wins.
func (r *Registry) Icons() map[string]string {
	out := make(map[string]string, len(r.all))
	for _, c := range r.all {
		if _, ok := out[c.Name]; !ok {
			out[c.Name] = c.Icon
		}
	}
	return out
}

// Validate reports whether the collection root was reachable at check time:
// it exists, is a directory, and can be opened. The result is advisory and
// can be stale by the time the caller scans.
func (r *Registry) Validate(c models.Collection) error {
	return Validate(c)
}

// Validate is the registry-independent reachability check.
func Validate(c models.Collection) error {
	info, err := os.Stat(c.Root)
	if err != nil {
		return fmt.Errorf("collection %q: %w: %v", c.Name, apperr.ErrUnreachable, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("collection %q: %w: %s is not a directory", c.Name, apperr.ErrUnreachable, c.Root)
	}
	f, err := os.Open(c.Root)
	if err != nil {
		return fmt.Errorf("collection %q: %w: %v", c.Name, apperr.ErrUnreachable, err)
	}
	defer f.Close()
	if _, err := f.Readdirnames(1); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("collection %q: %w: %v", c.Name, apperr.ErrUnreachable, err)
	}
	return nil
}
