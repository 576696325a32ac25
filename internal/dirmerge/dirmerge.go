// Package dirmerge implements the Directory Merger: a deduplicated,
// whiteout-aware union of directory contents across the session layer
// and base layers.
package dirmerge

import (
	"errors"
	"os"
	"strings"
	"syscall"

	"github.com/prismafs/prismafs/internal/config"
	"github.com/prismafs/prismafs/internal/vpath"
	"github.com/prismafs/prismafs/internal/whiteout"
)

// Entry is one surviving name in a merged listing.
type Entry struct {
	Name  string
	IsDir bool
}

// Merger produces union listings for a given mount configuration.
type Merger struct {
	cfg config.Config
}

// New builds a Merger over the given configuration.
func New(cfg config.Config) *Merger {
	return &Merger{cfg: cfg}
}

// Merge produces a union listing for an ordinary (non-synthetic) virtual
// directory: session children first, then each base layer in order,
// skipping dotfiles, whiteout markers (by reserved-substring, per the
// original's exact filtering behaviour), and names already seen.
//
// The dedup set is local to this call, never process-global.
func (m *Merger) Merge(dir vpath.Path) ([]Entry, error) {
	seen := make(map[string]struct{})
	var out []Entry
	foundAnyDir := false

	sessionHost, err := dir.ComposeHost(m.cfg.SessionRoot)
	if err != nil {
		return nil, err
	}
	if ents, ok, err := readDirEntries(sessionHost); err != nil {
		return nil, err
	} else if ok {
		foundAnyDir = true
		for _, de := range ents {
			name := de.Name()
			if strings.HasPrefix(name, ".") || whiteout.IsReservedName(name) {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, Entry{Name: name, IsDir: de.IsDir()})
		}
	}

	for _, root := range m.cfg.BaseRoots {
		baseHost, err := dir.ComposeHost(root)
		if err != nil {
			return nil, err
		}
		ents, ok, err := readDirEntries(baseHost)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		foundAnyDir = true
		for _, de := range ents {
			name := de.Name()
			if strings.HasPrefix(name, ".") {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			if marked, err := hasSessionMarker(sessionHost, name); err != nil {
				return nil, err
			} else if marked {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, Entry{Name: name, IsDir: de.IsDir()})
		}
	}

	if !foundAnyDir {
		return nil, os.ErrNotExist
	}
	return out, nil
}

// hasSessionMarker reports whether <sessionDirHost>/<name>.deleted exists.
func hasSessionMarker(sessionDirHost, name string) (bool, error) {
	marker := sessionDirHost + "/" + whiteout.MarkerFor(name)
	if _, err := os.Lstat(marker); err == nil {
		return true, nil
	} else if os.IsNotExist(err) {
		return false, nil
	} else {
		return false, err
	}
}

// readDirEntries lists a host directory. The second return reports
// whether hostPath exists as a directory at all (false, not an error, if
// it's simply absent) so callers can distinguish "this layer doesn't
// have this directory" from "this directory is empty".
func readDirEntries(hostPath string) ([]os.DirEntry, bool, error) {
	ents, err := os.ReadDir(hostPath)
	if err != nil {
		if os.IsNotExist(err) || errors.Is(err, syscall.ENOTDIR) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return ents, true, nil
}
