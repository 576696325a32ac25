package copyup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prismafs/prismafs/internal/config"
	"github.com/prismafs/prismafs/internal/layer"
	"github.com/prismafs/prismafs/internal/vpath"
	"github.com/prismafs/prismafs/internal/whiteout"
)

func newTestEngine(t *testing.T) (*Engine, config.Config) {
	t.Helper()
	cfg := config.Config{
		SessionRoot: t.TempDir(),
		BaseRoots:   []string{t.TempDir()},
	}
	wh := whiteout.New(cfg)
	probe := layer.New(cfg, wh)
	return New(cfg, probe), cfg
}

func TestEnsureCopiesUpFromBase(t *testing.T) {
	e, cfg := newTestEngine(t)
	baseFile := filepath.Join(cfg.BaseRoots[0], "file.txt")
	if err := os.WriteFile(baseFile, []byte("hello world"), 0644); err != nil {
		t.Fatal(err)
	}

	hostPath, err := e.Ensure(vpath.MustNew("/file.txt"))
	if err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(hostPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello world" {
		t.Fatalf("copied content = %q, want %q", got, "hello world")
	}
}

func TestEnsureIsIdempotent(t *testing.T) {
	e, cfg := newTestEngine(t)
	baseFile := filepath.Join(cfg.BaseRoots[0], "file.txt")
	if err := os.WriteFile(baseFile, []byte("original"), 0644); err != nil {
		t.Fatal(err)
	}

	v := vpath.MustNew("/file.txt")
	hostPath, err := e.Ensure(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(hostPath, []byte("modified"), 0644); err != nil {
		t.Fatal(err)
	}

	// A second Ensure must not re-copy over the now-modified session file.
	hostPath2, err := e.Ensure(v)
	if err != nil {
		t.Fatal(err)
	}
	if hostPath2 != hostPath {
		t.Fatalf("Ensure returned different host paths: %q vs %q", hostPath, hostPath2)
	}
	got, err := os.ReadFile(hostPath2)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "modified" {
		t.Fatalf("second Ensure clobbered session content: got %q", got)
	}
}

func TestEnsureSingleLevelParentOnly(t *testing.T) {
	e, cfg := newTestEngine(t)
	baseFile := filepath.Join(cfg.BaseRoots[0], "a", "b", "file.txt")
	if err := os.MkdirAll(filepath.Dir(baseFile), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(baseFile, []byte("deep"), 0644); err != nil {
		t.Fatal(err)
	}

	// Session has neither "a" nor "a/b": the immediate parent "a/b" is
	// missing *and* its own parent "a" is missing, so a single-level
	// mkdir of "a/b" must fail.
	if _, err := e.Ensure(vpath.MustNew("/a/b/file.txt")); err == nil {
		t.Fatal("expected error when grandparent directory is also missing")
	}
}
