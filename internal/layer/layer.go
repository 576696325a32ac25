// Package layer implements the Layer Probe: mapping a VirtualPath to the
// effective backing entry across the session layer and N ordered base
// layers.
package layer

import (
	"os"

	"github.com/prismafs/prismafs/internal/config"
	"github.com/prismafs/prismafs/internal/vpath"
	"github.com/prismafs/prismafs/internal/whiteout"
)

// Tag identifies which layer a BackingEntry was resolved against.
type Tag int

const (
	// Session is the sole writable layer.
	Session Tag = iota
	// Base identifies a read-mostly layer; Index gives its precedence order.
	Base
)

// Entry is the tuple (layer, host path, stat info) produced for a
// VirtualPath when an effective entry exists.
type Entry struct {
	Tag      Tag
	Index    int // meaningful only when Tag == Base
	HostPath string
	Info     os.FileInfo
}

// Probe locates the effective BackingEntry for a VirtualPath by
// consulting the session layer first, then each base layer in order.
type Probe struct {
	cfg config.Config
	wh  *whiteout.Registry
}

// New builds a Probe over the given configuration and whiteout registry.
func New(cfg config.Config, wh *whiteout.Registry) *Probe {
	return &Probe{cfg: cfg, wh: wh}
}

// ErrWhitedOut is a sentinel: the path resolves as hidden by a whiteout
// marker and no session entry supersedes it.
var ErrWhitedOut = whiteoutError{}

type whiteoutError struct{}

func (whiteoutError) Error() string { return "layer: path is whited out" }

// SessionPath composes the session-layer host path for a virtual path,
// without checking existence.
func (p *Probe) SessionPath(v vpath.Path) (string, error) {
	return v.ComposeHost(p.cfg.SessionRoot)
}

// BasePath composes the host path for a virtual path under base layer i,
// without checking existence.
func (p *Probe) BasePath(i int, v vpath.Path) (string, error) {
	return v.ComposeHost(p.cfg.BaseRoots[i])
}

// NumBaseLayers returns the configured number of base layers.
func (p *Probe) NumBaseLayers() int {
	return len(p.cfg.BaseRoots)
}

// Resolve composes the session path; if a whiteout marker shadows this
// path and the session entry itself does not exist, report ErrWhitedOut.
// Otherwise probe the session layer, then each base layer in order,
// returning the first existing entry. Returns os.ErrNotExist (via
// errors.Is) when nothing matches.
func (p *Probe) Resolve(v vpath.Path) (Entry, error) {
	sessionHost, err := v.ComposeHost(p.cfg.SessionRoot)
	if err != nil {
		return Entry{}, err
	}

	if info, err := lstat(sessionHost); err == nil {
		return Entry{Tag: Session, HostPath: sessionHost, Info: info}, nil
	}

	whited, err := p.wh.IsWhitedOut(v)
	if err != nil {
		return Entry{}, err
	}
	if whited {
		return Entry{}, ErrWhitedOut
	}

	for i, root := range p.cfg.BaseRoots {
		hostPath, err := v.ComposeHost(root)
		if err != nil {
			return Entry{}, err
		}
		if info, err := lstat(hostPath); err == nil {
			return Entry{Tag: Base, Index: i, HostPath: hostPath, Info: info}, nil
		}
	}

	return Entry{}, os.ErrNotExist
}

// lstat stats without following the final symlink.
func lstat(hostPath string) (os.FileInfo, error) {
	return os.Lstat(hostPath)
}
