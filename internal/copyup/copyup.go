// Package copyup implements the Copy-Up Engine: materialising a
// base-layer file into the session layer on first write or truncate.
package copyup

import (
	"io"
	"os"
	"path/filepath"

	"github.com/prismafs/prismafs/internal/config"
	"github.com/prismafs/prismafs/internal/layer"
	"github.com/prismafs/prismafs/internal/vpath"
)

// chunkSize is the minimum read/write chunk used while streaming a
// copy-up.
const chunkSize = 8 * 1024

// Engine materialises base-layer files into the session layer.
type Engine struct {
	cfg   config.Config
	probe *layer.Probe
}

// New builds a copy-up Engine over the given Probe.
func New(cfg config.Config, probe *layer.Probe) *Engine {
	return &Engine{cfg: cfg, probe: probe}
}

// Ensure guarantees a session-layer entry exists for v, copying up from
// the effective base entry if one is not already present. On success it
// returns the session-side host path. Idempotent: if a session entry
// already exists, no copy is performed and the mutation targets it
// directly.
func (e *Engine) Ensure(v vpath.Path) (string, error) {
	sessionHost, err := v.ComposeHost(e.cfg.SessionRoot)
	if err != nil {
		return "", err
	}

	if _, err := os.Lstat(sessionHost); err == nil {
		return sessionHost, nil
	} else if !os.IsNotExist(err) {
		return "", err
	}

	entry, err := e.probe.Resolve(v)
	if err != nil {
		// Nothing to copy up from; the caller is responsible for
		// deciding whether a missing base entry is an error.
		return sessionHost, err
	}
	if entry.Tag == layer.Session {
		// Raced with another copy-up/create; the path now exists.
		return sessionHost, nil
	}

	// Single-level only: mkdir the immediate parent, matching the original
	// program's single mkdir(dir_path, 0755) call. A session tree whose
	// intermediate directories are themselves missing is not copied up
	// recursively — see DESIGN.md.
	if err := os.Mkdir(filepath.Dir(sessionHost), 0755); err != nil && !os.IsExist(err) {
		return "", err
	}

	if err := streamCopy(entry.HostPath, sessionHost); err != nil {
		return "", err
	}

	return sessionHost, nil
}

// streamCopy copies src to dst in chunkSize-or-larger reads, creating dst
// with mode 0644 if it does not exist. Errors during the copy surface as
// the operation's failure; a partially written dst is left in place,
// with no rollback of the session file.
func streamCopy(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer out.Close()

	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(out, in, buf); err != nil {
		return err
	}
	return nil
}
