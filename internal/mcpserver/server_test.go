package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/murmur/internal/collection"
	"github.com/starford/murmur/internal/models"
	"github.com/starford/murmur/internal/noteservice"
	"github.com/starford/murmur/internal/search"
	"github.com/starford/murmur/internal/storage"
	"github.com/starford/murmur/internal/testutil"
	"github.com/starford/murmur/internal/topics"
)

var base = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func testServer(t *testing.T) (*Server, models.Collection, models.Collection) {
	t.Helper()
	p := testutil.Collection(t, "Main", models.KindPrimary)
	w := testutil.Collection(t, "Work", models.KindExternal)

	logger := testutil.Logger()
	reg := collection.NewRegistry(p, []models.Collection{w})
	loader := collection.NewLoader(nil, logger)
	store, err := storage.NewFS(p.Name, p.Root)
	if err != nil {
		t.Fatal(err)
	}
	svc := noteservice.NewService(noteservice.Deps{
		Registry: reg,
		Loader:   loader,
		Engine:   search.NewEngine(reg, loader, logger),
		Indexer:  topics.NewIndexer(reg, loader, logger, topics.WithExclude(p.Name, "Topic Index.md")),
		Writer:   topics.NewWriter(store, "Topic Index.md", topics.RenderOptions{Primary: p.Name}, logger),
		Logger:   logger,
	})
	return New(svc, "test"), p, w
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var (
		result *mcp.CallToolResult
		err    error
	)
	switch name {
	case "search_notes":
		result, err = srv.searchNotes(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "topic_index":
		result, err = srv.topicIndex(ctx, req)
	case "rebuild_topic_index":
		result, err = srv.rebuildTopicIndex(ctx, req)
	case "list_collections":
		result, err = srv.listCollections(ctx, req)
	case "get_backlinks":
		result, err = srv.getBacklinks(ctx, req)
	case "import_recordings":
		result, err = srv.importRecordings(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestSearchNotes(t *testing.T) {
	srv, p, w := testServer(t)
	testutil.WriteNote(t, p, "a.md", "# Alpha\n#finance", base)
	testutil.WriteNote(t, w, "b.md", "# Beta\n#legal", base)

	r := callTool(t, srv, "search_notes", map[string]interface{}{
		"tags": []interface{}{"FIN"},
	})
	if r.IsError {
		t.Fatalf("error result: %s", resultText(r))
	}
	var res noteservice.SearchResult
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Results) != 1 || res.Results[0].Title != "Alpha" {
		t.Errorf("results = %+v", res.Results)
	}
}

func TestSearchNotes_NegativeLimit(t *testing.T) {
	srv, _, _ := testServer(t)
	r := callTool(t, srv, "search_notes", map[string]interface{}{"limit": -1})
	if !r.IsError {
		t.Error("expected error for negative limit")
	}
}

func TestReadNote(t *testing.T) {
	srv, _, w := testServer(t)
	testutil.WriteNote(t, w, "x/note.md", "# Note\nHello", base)

	r := callTool(t, srv, "read_note", map[string]interface{}{"collection": "Work", "path": "x/note.md"})
	if text := resultText(r); text != "# Note\nHello" {
		t.Errorf("read result = %q", text)
	}
}

func TestReadNoteMissing(t *testing.T) {
	srv, _, _ := testServer(t)
	r := callTool(t, srv, "read_note", map[string]interface{}{"collection": "Main", "path": "nope.md"})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
	r = callTool(t, srv, "read_note", map[string]interface{}{"path": "nope.md"})
	if !r.IsError {
		t.Error("expected error for missing collection argument")
	}
}

func TestTopicIndex(t *testing.T) {
	srv, p, w := testServer(t)
	testutil.WriteNote(t, p, "a.md", "#go #notes", base)
	testutil.WriteNote(t, w, "b.md", "#go", base)

	r := callTool(t, srv, "topic_index", map[string]interface{}{"top": 1})
	var res struct {
		Topics []topics.TopicEntry `json:"topics"`
		Recent []string            `json:"recent"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Topics) != 1 || res.Topics[0].Topic != "go" || len(res.Topics[0].Collections) != 2 {
		t.Errorf("topics = %+v", res.Topics)
	}
	if len(res.Recent) != 2 {
		t.Errorf("recent = %v", res.Recent)
	}
}

func TestRebuildTopicIndex(t *testing.T) {
	srv, p, _ := testServer(t)
	testutil.WriteNote(t, p, "a.md", "#go", base)

	r := callTool(t, srv, "rebuild_topic_index", nil)
	if r.IsError || !strings.Contains(resultText(r), `"written": true`) {
		t.Errorf("rebuild = %s", resultText(r))
	}
}

func TestListCollections(t *testing.T) {
	srv, _, _ := testServer(t)
	r := callTool(t, srv, "list_collections", nil)
	text := resultText(r)
	if !strings.Contains(text, `"Main"`) || !strings.Contains(text, `"Work"`) {
		t.Errorf("collections = %s", text)
	}
}

func TestGetBacklinks(t *testing.T) {
	srv, p, _ := testServer(t)
	testutil.WriteNote(t, p, "a.md", "links to [[b]]", base)

	r := callTool(t, srv, "get_backlinks", map[string]interface{}{"target": "b"})
	if text := resultText(r); text != "Main: a.md" {
		t.Errorf("backlinks = %q, want %q", text, "Main: a.md")
	}
}

func TestImportRecordings_NotConfigured(t *testing.T) {
	srv, _, _ := testServer(t)
	r := callTool(t, srv, "import_recordings", nil)
	if !r.IsError {
		t.Error("expected error without a recording API")
	}
}
