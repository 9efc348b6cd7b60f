// Package models defines the domain types for murmur.
package models

// CollectionKind distinguishes the managed collection from registered ones.
type CollectionKind string

const (
	KindPrimary  CollectionKind = "primary"
	KindExternal CollectionKind = "external"
)

// Collection is a named root directory holding Markdown documents.
type Collection struct {
	Name    string         `json:"name"`
	Root    string         `json:"root"`
	Enabled bool           `json:"enabled"`
	Kind    CollectionKind `json:"kind"`
	Icon    string         `json:"icon,omitempty"`
}

// IsPrimary reports whether c is the managed collection.
func (c Collection) IsPrimary() bool {
	return c.Kind == KindPrimary
}
