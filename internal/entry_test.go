package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/murmur/internal/apperr"
	"github.com/starford/murmur/internal/recordings"
	"github.com/starford/murmur/internal/search"
	"github.com/starford/murmur/internal/testutil"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.Primary.Path = filepath.Join(t.TempDir(), "vault")
	work := t.TempDir()
	cfg.Collections = []CollectionConfig{{Name: "Work", Path: work}}
	return cfg
}

func TestNew_CreatesPrimaryAndWiresService(t *testing.T) {
	cfg := testConfig(t)
	app, err := New(WithConfig(cfg), WithLogger(testutil.Logger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if info, err := os.Stat(cfg.Primary.Path); err != nil || !info.IsDir() {
		t.Fatalf("primary dir not created: %v", err)
	}

	if err := os.WriteFile(filepath.Join(cfg.Collections[0].Path, "n.md"), []byte("# N\n#work"), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := app.Service().Search(context.Background(), search.Query{Tags: []string{"work"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Results) != 1 || res.Results[0].Collection != "Work" {
		t.Errorf("results = %+v", res.Results)
	}

	rb, err := app.Service().Rebuild(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Primary.Path, rb.Path)); err != nil {
		t.Errorf("report not written: %v", err)
	}
}

func TestNew_RequiresConfig(t *testing.T) {
	if _, err := New(); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestNew_RecordingsNeedToken(t *testing.T) {
	cfg := testConfig(t)
	cfg.Recordings.BaseURL = "https://api.example.com/v1"
	if _, err := New(WithConfig(cfg), WithLogger(testutil.Logger())); err == nil {
		t.Fatal("expected error for recordings without token")
	}

	cfg.Recordings.Token = "t"
	if _, err := New(WithConfig(cfg), WithLogger(testutil.Logger())); err != nil {
		t.Fatalf("New with token: %v", err)
	}
}

func TestNew_ImportDisabledWithoutBaseURL(t *testing.T) {
	app, err := New(WithConfig(testConfig(t)), WithLogger(testutil.Logger()))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := app.Service().Import(context.Background()); !errors.Is(err, apperr.ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestNextImport(t *testing.T) {
	every := time.Minute
	limited := fmt.Errorf("import: list: %w", &recordings.RateLimitError{RetryAfter: 10 * time.Minute})

	cases := []struct {
		name string
		err  error
		want time.Duration
	}{
		{"success", nil, every},
		{"rate limited", limited, 10 * time.Minute},
		{"short retry-after", &recordings.RateLimitError{RetryAfter: time.Second}, every},
		{"other failure after rate limit", errors.New("recordings: HTTP 502"), every},
	}
	for _, tc := range cases {
		if got := nextImport(tc.err, every); got != tc.want {
			t.Errorf("%s: nextImport = %s, want %s", tc.name, got, tc.want)
		}
	}
}
