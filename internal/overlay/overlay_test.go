package overlay

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prismafs/prismafs/internal/config"
	"github.com/prismafs/prismafs/internal/vpath"
)

func newTestOverlay(t *testing.T, numBases int) (*Overlay, config.Config) {
	t.Helper()
	cfg := config.Config{SessionRoot: t.TempDir()}
	for i := 0; i < numBases; i++ {
		cfg.BaseRoots = append(cfg.BaseRoots, t.TempDir())
	}
	return New(cfg), cfg
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func asOverlayErr(t *testing.T, err error) *Error {
	t.Helper()
	oe, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *overlay.Error, got %T: %v", err, err)
	}
	return oe
}

func TestStatSyntheticNodes(t *testing.T) {
	ov, _ := newTestOverlay(t, 0)

	for _, p := range []string{"/", "/dev"} {
		info, err := ov.Stat(vpath.MustNew(p))
		if err != nil {
			t.Fatalf("Stat(%q): %v", p, err)
		}
		if !info.IsDir() {
			t.Fatalf("Stat(%q) expected a directory", p)
		}
	}

	info, err := ov.Stat(vpath.MustNew("/dev/cpu"))
	if err != nil {
		t.Fatal(err)
	}
	if info.IsDir() {
		t.Fatal("/dev/cpu must not be a directory")
	}
	if info.Size == 0 {
		t.Fatal("/dev/cpu must report a non-zero synthetic size")
	}
}

func TestListRootIncludesSyntheticDev(t *testing.T) {
	ov, cfg := newTestOverlay(t, 0)
	writeFile(t, cfg.SessionRoot, "real-file.txt", "x")

	entries, err := ov.List(vpath.MustNew("/"))
	if err != nil {
		t.Fatal(err)
	}
	var sawReal, sawDev bool
	for _, e := range entries {
		if e.Name == "real-file.txt" {
			sawReal = true
		}
		if e.Name == "dev" && e.IsDir {
			sawDev = true
		}
	}
	if !sawReal || !sawDev {
		t.Fatalf("List(/) = %v, want both real-file.txt and dev", entries)
	}
}

func TestListDevCPUIsNotADirectory(t *testing.T) {
	ov, _ := newTestOverlay(t, 0)
	_, err := ov.List(vpath.MustNew("/dev/cpu"))
	oe := asOverlayErr(t, err)
	if oe.Kind != KindNotADirectory {
		t.Fatalf("List(/dev/cpu) kind = %v, want KindNotADirectory", oe.Kind)
	}
}

func TestWriteCopiesUpThenPersists(t *testing.T) {
	ov, cfg := newTestOverlay(t, 1)
	writeFile(t, cfg.BaseRoots[0], "file.txt", "0123456789")

	v := vpath.MustNew("/file.txt")
	n, err := ov.Write(v, 2, []byte("XX"))
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("Write() wrote %d bytes, want 2", n)
	}

	sessionPath := filepath.Join(cfg.SessionRoot, "file.txt")
	got, err := os.ReadFile(sessionPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "01XX456789" {
		t.Fatalf("session content = %q, want %q", got, "01XX456789")
	}

	// The base copy must be untouched.
	baseGot, err := os.ReadFile(filepath.Join(cfg.BaseRoots[0], "file.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(baseGot) != "0123456789" {
		t.Fatalf("base content mutated: %q", baseGot)
	}
}

func TestCreateDoesNotConsultBase(t *testing.T) {
	ov, cfg := newTestOverlay(t, 1)
	writeFile(t, cfg.BaseRoots[0], "new.txt", "base")
	v := vpath.MustNew("/new.txt")
	if err := ov.Create(v, 0644); err != nil {
		t.Fatal(err)
	}
	if err := ov.Create(v, 0644); err == nil {
		t.Fatal("expected second Create of the same path to fail")
	} else {
		oe := asOverlayErr(t, err)
		if oe.Kind != KindExists {
			t.Fatalf("second Create() kind = %v, want KindExists", oe.Kind)
		}
	}
}

func TestUnlinkSessionEntryRemovesDirectly(t *testing.T) {
	ov, cfg := newTestOverlay(t, 0)
	writeFile(t, cfg.SessionRoot, "file.txt", "x")

	if err := ov.Unlink(vpath.MustNew("/file.txt")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Lstat(filepath.Join(cfg.SessionRoot, "file.txt")); !os.IsNotExist(err) {
		t.Fatal("expected session file to be removed")
	}
}

func TestUnlinkBaseOnlyEntryCreatesWhiteout(t *testing.T) {
	ov, cfg := newTestOverlay(t, 1)
	writeFile(t, cfg.BaseRoots[0], "file.txt", "x")

	v := vpath.MustNew("/file.txt")
	if err := ov.Unlink(v); err != nil {
		t.Fatal(err)
	}

	// The base copy survives; the path should now resolve as not-found.
	if _, err := os.Lstat(filepath.Join(cfg.BaseRoots[0], "file.txt")); err != nil {
		t.Fatal("base file must not be removed by unlink")
	}
	if _, err := ov.Stat(v); err == nil {
		t.Fatal("expected whited-out path to be not-found after unlink")
	}
}

func TestUnlinkMissingPathIsNotFound(t *testing.T) {
	ov, _ := newTestOverlay(t, 0)
	err := ov.Unlink(vpath.MustNew("/nope.txt"))
	oe := asOverlayErr(t, err)
	if oe.Kind != KindNotFound {
		t.Fatalf("Unlink(missing) kind = %v, want KindNotFound", oe.Kind)
	}
}

func TestRmdirDoesNotCreateWhiteout(t *testing.T) {
	ov, cfg := newTestOverlay(t, 1)
	if err := os.MkdirAll(filepath.Join(cfg.BaseRoots[0], "shared"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(cfg.SessionRoot, "shared"), 0755); err != nil {
		t.Fatal(err)
	}

	if err := ov.Rmdir(vpath.MustNew("/shared")); err != nil {
		t.Fatal(err)
	}

	// The base directory resolves again once the session copy is gone,
	// since rmdir creates no whiteout marker.
	info, err := ov.Stat(vpath.MustNew("/shared"))
	if err != nil {
		t.Fatal(err)
	}
	if !info.IsDir() {
		t.Fatal("expected base directory to remain visible after rmdir")
	}
}

func TestChmodFallsBackToBaseEscapeHatch(t *testing.T) {
	ov, cfg := newTestOverlay(t, 1)
	writeFile(t, cfg.BaseRoots[0], "file.txt", "x")

	if err := ov.Chmod(vpath.MustNew("/file.txt"), 0600); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(filepath.Join(cfg.BaseRoots[0], "file.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("base file mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestReadDevCPUClipsToOffsetAndSize(t *testing.T) {
	ov, _ := newTestOverlay(t, 0)
	v := vpath.MustNew("/dev/cpu")

	full, err := ov.Read(v, 0, 4096)
	if err != nil {
		t.Fatal(err)
	}
	if len(full) == 0 {
		t.Fatal("expected non-empty /dev/cpu content")
	}

	partial, err := ov.Read(v, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if string(partial) != string(full[1:3]) {
		t.Fatalf("clipped read = %q, want %q", partial, full[1:3])
	}
}
