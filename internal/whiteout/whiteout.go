// Package whiteout implements the Whiteout Registry: deletion markers
// recorded as sibling files with a reserved suffix in the session layer.
package whiteout

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/prismafs/prismafs/internal/config"
	"github.com/prismafs/prismafs/internal/vpath"
)

// Suffix is the reserved marker suffix. Names ending in Suffix are
// reserved in the virtual namespace; this implementation also filters
// any name *containing* Suffix as a substring when merging directory
// listings, preserving the original program's
// strstr(name, ".deleted") behaviour for compatibility with existing
// session layers.
const Suffix = ".deleted"

// Registry encodes and queries whiteout markers against a session root.
type Registry struct {
	sessionRoot string
}

// New builds a Registry rooted at the mount's session layer.
func New(cfg config.Config) *Registry {
	return &Registry{sessionRoot: cfg.SessionRoot}
}

// markerHostPath returns the session-side marker path "D/N.deleted" for
// virtual path v, decomposed into parent D and name N.
func (r *Registry) markerHostPath(v vpath.Path) (string, error) {
	parent, name := v.Split()
	if name == "" {
		// Root has no parent to mark a whiteout under.
		return "", os.ErrInvalid
	}
	parentHost, err := parent.ComposeHost(r.sessionRoot)
	if err != nil {
		return "", err
	}
	return filepath.Join(parentHost, name+Suffix), nil
}

// IsWhitedOut reports whether the session layer holds a marker hiding v.
func (r *Registry) IsWhitedOut(v vpath.Path) (bool, error) {
	marker, err := r.markerHostPath(v)
	if err != nil {
		if err == os.ErrInvalid {
			return false, nil
		}
		return false, err
	}
	if _, err := os.Lstat(marker); err == nil {
		return true, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}
	return false, nil
}

// Add ensures the session-side parent directory exists (mode 0755) and
// creates an empty marker file (mode 0644), recording that v is hidden
// from the union.
func (r *Registry) Add(v vpath.Path) error {
	marker, err := r.markerHostPath(v)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(marker), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(marker, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	return f.Close()
}

// IsReservedName reports whether name is reserved by the whiteout
// convention: it contains Suffix anywhere, not only as a trailing
// component. This mirrors the original's substring filter exactly.
func IsReservedName(name string) bool {
	return strings.Contains(name, Suffix)
}

// MarkerFor returns the marker file name for a plain entry name N, i.e.
// "N.deleted", used by the Directory Merger to test per-child markers
// without round-tripping through vpath.
func MarkerFor(name string) string {
	return name + Suffix
}
