// Package parser turns Markdown files into documents: front-matter, title,
// tags and wikilinks.
package parser

import (
	"fmt"
	"math"
	"path"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/starford/murmur/internal/apperr"
	"github.com/starford/murmur/internal/models"
)

const delim = "---"

var (
	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	tagRe      = regexp.MustCompile(`#([A-Za-z0-9_-]+)`)
	headingRe  = regexp.MustCompile(`^#[ \t]+(\S.*)$`)
)

// Parse builds a Document from the raw bytes of the file at rel (a
// slash-separated path relative to its collection root). Collection,
// modification time and size are left for the caller to fill in.
func Parse(rel string, data []byte) (*models.Document, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("parser: %s: %w", rel, apperr.ErrNotText)
	}
	content := string(data)
	fm, body := splitFrontmatter(content)
	links := extractLinks(body)

	return &models.Document{
		Path:        rel,
		Title:       deriveTitle(rel, body),
		Content:     content,
		Body:        body,
		Tags:        extractTags(body, fm, links),
		Links:       links,
		FrontMatter: fm,
	}, nil
}

// splitFrontmatter separates a leading front-matter block from the body.
// The block must open on the very first line; without a closing delimiter
// the whole content is body.
func splitFrontmatter(content string) (map[string]models.Value, string) {
	lines := strings.Split(content, "\n")
	if len(lines) == 0 || strings.TrimRight(lines[0], "\r") != delim {
		return nil, content
	}
	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], "\r") == delim {
			end = i
			break
		}
	}
	if end < 0 {
		return nil, content
	}
	return parseBlock(lines[1:end]), strings.Join(lines[end+1:], "\n")
}

// parseBlock reads "key: value" lines. Lines that do not fit are skipped.
// Indented "- item" lines after a key with an empty value become its list.
func parseBlock(lines []string) map[string]models.Value {
	fm := make(map[string]models.Value)
	var listKey string
	var items []models.Value

	flush := func() {
		if listKey != "" && len(items) > 0 {
			fm[listKey] = models.ListValue(items...)
		}
		listKey, items = "", nil
	}

	for _, raw := range lines {
		line := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if listKey != "" && strings.HasPrefix(trimmed, "- ") && line != trimmed {
			items = append(items, parseValue(strings.TrimSpace(trimmed[2:])))
			continue
		}
		flush()

		key, value, ok := strings.Cut(line, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" || strings.HasPrefix(key, "-") {
			continue
		}
		value = strings.TrimSpace(value)
		fm[key] = parseValue(value)
		if value == "" {
			listKey = key
		}
	}
	flush()

	if len(fm) == 0 {
		return nil
	}
	return fm
}

// parseValue interprets raw as a YAML flow literal and falls back to the raw
// text with surrounding quotes stripped.
func parseValue(raw string) models.Value {
	if raw == "" {
		return models.StringValue("")
	}
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil || len(doc.Content) == 0 {
		return models.StringValue(unquote(raw))
	}
	if v, ok := nodeValue(doc.Content[0]); ok {
		return v
	}
	return models.StringValue(unquote(raw))
}

func nodeValue(n *yaml.Node) (models.Value, bool) {
	switch n.Kind {
	case yaml.ScalarNode:
		switch n.Tag {
		case "!!int", "!!float":
			var f float64
			if err := n.Decode(&f); err != nil {
				return models.Value{}, false
			}
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return models.StringValue(n.Value), true
			}
			return models.NumberValue(f), true
		case "!!bool":
			var b bool
			if err := n.Decode(&b); err != nil {
				return models.Value{}, false
			}
			return models.BoolValue(b), true
		case "!!null":
			return models.Value{}, false
		default:
			return models.StringValue(n.Value), true
		}
	case yaml.SequenceNode:
		items := make([]models.Value, 0, len(n.Content))
		for _, c := range n.Content {
			v, ok := nodeValue(c)
			if !ok {
				v = models.StringValue(c.Value)
			}
			items = append(items, v)
		}
		return models.ListValue(items...), true
	default:
		return models.Value{}, false
	}
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// extractLinks returns de-duplicated wikilink targets with aliases removed.
func extractLinks(body string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		target, _, _ := strings.Cut(m[1], "|")
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// extractTags unions front-matter tags, inline #tags and concept-style
// wikilinks (targets without "." or "/"). The result is sorted.
func extractTags(body string, fm map[string]models.Value, links []string) []string {
	seen := make(map[string]struct{})
	add := func(t string) {
		t = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(t), "#"))
		if t != "" {
			seen[t] = struct{}{}
		}
	}

	if v, ok := fm["tags"]; ok {
		for _, s := range v.Strings() {
			add(s)
		}
	}
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	for _, l := range links {
		if !strings.ContainsAny(l, "./") {
			add(l)
		}
	}

	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// deriveTitle returns the first level-1 heading, otherwise a title made
// from the file name.
func deriveTitle(rel, body string) string {
	for _, line := range strings.Split(body, "\n") {
		if m := headingRe.FindStringSubmatch(strings.TrimRight(line, "\r")); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return TitleFromPath(rel)
}

// TitleFromPath derives a title from a file name: directory and extension
// are dropped and "-" / "_" become spaces.
func TitleFromPath(rel string) string {
	base := path.Base(strings.ReplaceAll(rel, "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	return strings.NewReplacer("-", " ", "_", " ").Replace(base)
}
