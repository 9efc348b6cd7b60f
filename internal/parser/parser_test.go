package parser

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/starford/murmur/internal/apperr"
	"github.com/starford/murmur/internal/models"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntags: [\"x\", \"y\"]\n---\n# Hello\nBody #z text")
	d, err := Parse("notes/hello.md", input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Title != "Hello" {
		t.Errorf("title = %q, want %q", d.Title, "Hello")
	}
	if want := []string{"x", "y", "z"}; !reflect.DeepEqual(d.Tags, want) {
		t.Errorf("tags = %v, want %v", d.Tags, want)
	}
	if d.Content != string(input) {
		t.Errorf("content = %q", d.Content)
	}
}

func TestParse_FirstHeadingWins(t *testing.T) {
	d, err := Parse("a.md", []byte("intro\n## Sub\n#  First  \n# Second\n"))
	if err != nil {
		t.Fatal(err)
	}
	if d.Title != "First" {
		t.Errorf("title = %q, want %q", d.Title, "First")
	}
}

func TestParse_TitleFromFilename(t *testing.T) {
	d, err := Parse("deep/dir/My-daily_Note.md", []byte("no heading here\n"))
	if err != nil {
		t.Fatal(err)
	}
	if d.Title != "My daily Note" {
		t.Errorf("title = %q, want %q", d.Title, "My daily Note")
	}
}

func TestParse_FrontmatterAndInlineTagsAgree(t *testing.T) {
	fm, err := Parse("a.md", []byte("---\ntags: [\"a\",\"b\"]\n---\nplain body\n"))
	if err != nil {
		t.Fatal(err)
	}
	inline, err := Parse("b.md", []byte("#a #b\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(fm.Tags, inline.Tags) {
		t.Errorf("front-matter tags %v != inline tags %v", fm.Tags, inline.Tags)
	}
}

func TestParse_NotText(t *testing.T) {
	_, err := Parse("bin.md", []byte{0xff, 0xfe, 0x00, 0x81})
	if !errors.Is(err, apperr.ErrNotText) {
		t.Fatalf("err = %v, want ErrNotText", err)
	}
}

func TestParse_FrontmatterOnlyAtStart(t *testing.T) {
	d, err := Parse("a.md", []byte("# Title\n---\ntags: [\"hidden\"]\n---\n"))
	if err != nil {
		t.Fatal(err)
	}
	if d.FrontMatter != nil {
		t.Errorf("front-matter = %v, want nil", d.FrontMatter)
	}
	if d.HasTag("hidden") {
		t.Error("front-matter outside the start must be ignored")
	}
}

func TestParse_UnclosedFrontmatter(t *testing.T) {
	d, err := Parse("a.md", []byte("---\ntitle: x\n# Heading\n"))
	if err != nil {
		t.Fatal(err)
	}
	if d.FrontMatter != nil {
		t.Errorf("expected no front-matter, got %v", d.FrontMatter)
	}
	if d.Title != "Heading" {
		t.Errorf("title = %q", d.Title)
	}
}

func TestParseBlock_Values(t *testing.T) {
	fm := parseBlock([]string{
		"count: 42",
		"ratio: 0.5",
		"draft: true",
		`quoted: "hello: world"`,
		"single: 'x'",
		"list: [1, two, false]",
		"created: 2024-03-01",
		"title: Meeting: notes",
		"no colon here",
		": empty key",
	})

	checks := map[string]models.Value{
		"count":   models.NumberValue(42),
		"ratio":   models.NumberValue(0.5),
		"draft":   models.BoolValue(true),
		"quoted":  models.StringValue("hello: world"),
		"single":  models.StringValue("x"),
		"list":    models.ListValue(models.NumberValue(1), models.StringValue("two"), models.BoolValue(false)),
		"created": models.StringValue("2024-03-01"),
		"title":   models.StringValue("Meeting: notes"),
	}
	for k, want := range checks {
		got, ok := fm[k]
		if !ok {
			t.Errorf("missing key %q", k)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("%s = %v (%s), want %v (%s)", k, got, got.Kind(), want, want.Kind())
		}
	}
	if len(fm) != len(checks) {
		t.Errorf("len(fm) = %d, want %d: %v", len(fm), len(checks), fm)
	}
}

func TestParseBlock_BlockList(t *testing.T) {
	fm := parseBlock([]string{"tags:", "  - go", "  - notes", "title: T"})
	items, ok := fm["tags"].List()
	if !ok || len(items) != 2 {
		t.Fatalf("tags = %v, want list of 2", fm["tags"])
	}
	if s, _ := items[1].Str(); s != "notes" {
		t.Errorf("items[1] = %v", items[1])
	}
	if s, _ := fm["title"].Str(); s != "T" {
		t.Errorf("title = %v", fm["title"])
	}
}

func TestExtractTags_Sources(t *testing.T) {
	fm := map[string]models.Value{"tags": models.StringValue("#solo")}
	body := "Text #beta and [[Concept]] plus [[notes/file]] and [[image.png]] and [[Alias Target|shown]]."
	links := extractLinks(body)
	tags := extractTags(body, fm, links)
	want := []string{"Alias Target", "Concept", "beta", "solo"}
	if !reflect.DeepEqual(tags, want) {
		t.Errorf("tags = %v, want %v", tags, want)
	}
}

func TestExtractTags_FrontmatterCommentValue(t *testing.T) {
	// "#work" reads as a YAML comment; the raw text must survive.
	fm := parseBlock([]string{"tags: #work"})
	tags := extractTags("", fm, nil)
	if !reflect.DeepEqual(tags, []string{"work"}) {
		t.Errorf("tags = %v, want [work]", tags)
	}
}

func TestExtractLinks_Basic(t *testing.T) {
	body := "See [[Note A]] and [[Note B|alias]].\nAlso [[Note A]] again."
	links := extractLinks(body)
	if len(links) != 2 {
		t.Fatalf("len(links) = %d, want 2", len(links))
	}
	if links[0] != "Note A" || links[1] != "Note B" {
		t.Errorf("links = %v", links)
	}
}

func TestExtractLinks_EmptyTarget(t *testing.T) {
	links := extractLinks("see [[ ]] and [[|alias]]")
	if len(links) != 0 {
		t.Errorf("expected no links, got %v", links)
	}
}

func TestParse_NonFiniteNumbersStayText(t *testing.T) {
	d, err := Parse("n.md", []byte("---\nscore: .nan\nhigh: .inf\nlow: -.inf\nlist: [1, .nan]\n---\n# N\n"))
	if err != nil {
		t.Fatal(err)
	}
	for key, want := range map[string]string{"score": ".nan", "high": ".inf", "low": "-.inf"} {
		got, ok := d.FrontMatter[key].Str()
		if !ok || got != want {
			t.Errorf("%s = %v (%s), want string %q", key, d.FrontMatter[key], d.FrontMatter[key].Kind(), want)
		}
	}
	if _, err := json.Marshal(d); err != nil {
		t.Fatalf("document with non-finite front-matter must encode: %v", err)
	}
}
