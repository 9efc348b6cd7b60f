package models

import (
	"sort"
	"time"
)

// Document is one parsed Markdown file. It is built fresh on every scan and
// never shared between calls.
type Document struct {
	Collection  string           `json:"collection"`
	Path        string           `json:"path"`
	Title       string           `json:"title"`
	Content     string           `json:"-"`
	Body        string           `json:"-"`
	Tags        []string         `json:"tags"`
	Links       []string         `json:"links,omitempty"`
	FrontMatter map[string]Value `json:"frontmatter,omitempty"`
	ModTime     time.Time        `json:"modified"`
	Size        int64            `json:"size"`
}

// HasTag reports whether tag is one of the document's tags (case-sensitive).
func (d *Document) HasTag(tag string) bool {
	i := sort.SearchStrings(d.Tags, tag)
	return i < len(d.Tags) && d.Tags[i] == tag
}

// SortByModTime orders docs newest first. Ties keep their scan order.
func SortByModTime(docs []*Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].ModTime.After(docs[j].ModTime)
	})
}
