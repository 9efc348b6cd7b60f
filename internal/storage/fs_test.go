package storage

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"
	"time"
)

func tempCollection(t *testing.T) *FS {
	t.Helper()
	fs, err := NewFS("test", t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func scannedPaths(files []FileInfo) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	sort.Strings(out)
	return out
}

func TestWriteAndRead(t *testing.T) {
	s := tempCollection(t)
	content := []byte("# Hello\nWorld\n")
	if err := s.Write("note.md", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("note.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
	if !s.Exists("note.md") {
		t.Error("Exists = false after write")
	}
	if s.Exists("missing.md") {
		t.Error("Exists = true for missing file")
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempCollection(t)
	if err := s.Write("a/b/c.md", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a/b/c.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestScan_FindsNotesAndSkipsExcluded(t *testing.T) {
	s := tempCollection(t)
	_ = s.Write("a.md", []byte("a"))
	_ = s.Write("sub/b.md", []byte("bb"))
	_ = s.Write("readme.txt", []byte("not md"))
	_ = s.Write(".git/HEAD.md", []byte("x"))
	_ = s.Write(".obsidian/workspace.md", []byte("x"))
	_ = s.Write("sub/.trash/old.md", []byte("x"))
	_ = s.Write(".hidden-but-not-excluded/c.md", []byte("x"))

	files, warnings := s.Scan()
	if len(warnings) != 0 {
		t.Fatalf("warnings = %v", warnings)
	}
	got := scannedPaths(files)
	want := []string{".hidden-but-not-excluded/c.md", "a.md", "sub/b.md"}
	if len(got) != len(want) {
		t.Fatalf("paths = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	for _, f := range files {
		if f.Path == "sub/b.md" && f.Size != 2 {
			t.Errorf("size = %d, want 2", f.Size)
		}
	}
}

func TestScan_MissingRoot(t *testing.T) {
	s, err := NewFS("gone", filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatal(err)
	}
	files, warnings := s.Scan()
	if len(files) != 0 {
		t.Errorf("files = %v", files)
	}
	if len(warnings) != 1 || warnings[0].Collection != "gone" {
		t.Errorf("warnings = %v", warnings)
	}
}

func TestScan_UnreadableDirContinues(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits not enforced")
	}
	s := tempCollection(t)
	_ = s.Write("ok/a.md", []byte("a"))
	_ = s.Write("locked/b.md", []byte("b"))
	_ = s.Write("z.md", []byte("z"))

	locked := filepath.Join(s.Root(), "locked")
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	files, warnings := s.Scan()
	if got := scannedPaths(files); len(got) != 2 || got[0] != "ok/a.md" || got[1] != "z.md" {
		t.Errorf("paths = %v", got)
	}
	if len(warnings) != 1 || warnings[0].Path != "locked" {
		t.Errorf("warnings = %v", warnings)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempCollection(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.md",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := tempCollection(t)
	_ = s.Write("atomic.md", []byte("original content"))

	updated := []byte("updated content")
	if err := s.Write("atomic.md", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.md")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, ".murmur-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestLock_ExclusiveAndHidden(t *testing.T) {
	s := tempCollection(t)
	unlock, err := s.Lock(context.Background())
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if _, err := s.Lock(ctx); err == nil {
		t.Fatal("second Lock succeeded while held")
	}

	if err := unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	unlock, err = s.Lock(context.Background())
	if err != nil {
		t.Fatalf("Lock after unlock: %v", err)
	}
	_ = unlock()

	_ = s.Write("note.md", []byte("x"))
	_ = os.WriteFile(filepath.Join(s.Root(), StateDir, "stray.md"), []byte("x"), 0o644)
	files, _ := s.Scan()
	if got := scannedPaths(files); len(got) != 1 || got[0] != "note.md" {
		t.Errorf("paths = %v, state dir must be skipped", got)
	}
}

func TestScan_SymlinkedRoot(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	target := t.TempDir()
	if err := os.WriteFile(filepath.Join(target, "a.md"), []byte("# A"), 0o644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(t.TempDir(), "vault")
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}

	s, err := NewFS("Ext", link)
	if err != nil {
		t.Fatal(err)
	}
	files, warnings := s.Scan()
	if len(warnings) != 0 {
		t.Fatalf("warnings = %v", warnings)
	}
	if got := scannedPaths(files); len(got) != 1 || got[0] != "a.md" {
		t.Fatalf("paths = %v, want [a.md]", got)
	}
	data, err := s.Read("a.md")
	if err != nil || string(data) != "# A" {
		t.Errorf("Read through symlinked root = %q, %v", data, err)
	}
}

func TestScan_DanglingSymlinkRootWarns(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	link := filepath.Join(t.TempDir(), "vault")
	if err := os.Symlink(filepath.Join(t.TempDir(), "gone"), link); err != nil {
		t.Fatal(err)
	}
	s, _ := NewFS("Ext", link)
	files, warnings := s.Scan()
	if len(files) != 0 || len(warnings) != 1 {
		t.Fatalf("files = %v, warnings = %v", files, warnings)
	}
}
