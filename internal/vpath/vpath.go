// Package vpath models the virtual, slash-separated paths that cross the
// protocol bridge boundary, and the composition of those paths against a
// host-side layer root.
package vpath

import (
	"errors"
	"path"
	"strings"
)

// maxHostPath bounds the length of a composed host path. It equals the
// usual Linux PATH_MAX of 4096: a generous but finite limit so length
// overflow is a reportable error instead of a silent truncation.
const maxHostPath = 4096

// ErrNotAbsolute is returned when a VirtualPath does not start with "/".
var ErrNotAbsolute = errors.New("vpath: path must be absolute")

// ErrTooLong is returned when composing a host path would exceed maxHostPath.
var ErrTooLong = errors.New("vpath: composed host path exceeds length limit")

// Path is an absolute, slash-separated path in the exported namespace.
// It is opaque apart from separator handling: no symlink resolution,
// no case folding.
type Path struct {
	clean string
}

// New validates and normalises a virtual path. It must start with "/".
// Duplicate separators and "." segments are collapsed; ".." is not
// special-cased beyond what path.Clean does, since the core never needs
// to escape the virtual root.
func New(p string) (Path, error) {
	if p == "" || p[0] != '/' {
		return Path{}, ErrNotAbsolute
	}
	return Path{clean: path.Clean(p)}, nil
}

// MustNew is New but panics on error; used for compile-time-known
// constants such as the synthetic paths.
func MustNew(p string) Path {
	v, err := New(p)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the normalised virtual path.
func (p Path) String() string {
	return p.clean
}

// IsRoot reports whether this path is the virtual root "/".
func (p Path) IsRoot() bool {
	return p.clean == "/"
}

// Split decomposes the path into its parent directory and final
// component, both as virtual paths / names (not host paths).
func (p Path) Split() (parent Path, name string) {
	if p.clean == "/" {
		return p, ""
	}
	dir, base := path.Split(p.clean)
	d := path.Clean(dir)
	return Path{clean: d}, base
}

// Join appends a child name to this path, returning a new virtual path.
func (p Path) Join(name string) Path {
	return Path{clean: path.Join(p.clean, name)}
}

// ComposeHost joins a host-side layer root with this virtual path,
// normalising the separator at the join point: if root ends in "/" and
// the virtual path starts with "/", one of them is dropped so the result
// has exactly one separator there. Fails only when the result would
// exceed the host path length limit.
func (p Path) ComposeHost(root string) (string, error) {
	var b strings.Builder
	b.Grow(len(root) + len(p.clean))
	b.WriteString(root)

	// p.clean always starts with "/" (Path invariant). If root also ends
	// in "/", drop one so the join has exactly one separator.
	vp := p.clean
	if strings.HasSuffix(root, "/") {
		vp = vp[1:]
	}
	b.WriteString(vp)

	out := b.String()
	if len(out) > maxHostPath {
		return "", ErrTooLong
	}
	return out, nil
}
