// Package fusebridge translates go-fuse's node-based callbacks into
// calls against the stateless Operation Dispatcher (internal/overlay).
package fusebridge

import (
	"context"
	"log/slog"
	"os"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/prismafs/prismafs/internal/overlay"
	"github.com/prismafs/prismafs/internal/vpath"
)

// pathNode is embedded by both dirNode and fileNode: it carries the
// virtual path this Inode represents and a reference to the shared
// Overlay. Every callback is a thin adapter: build/reuse a VirtualPath,
// call into Overlay, translate the result.
type pathNode struct {
	fs.Inode
	vp vpath.Path
	ov *overlay.Overlay
}

func infoToAttr(out *fuse.Attr, info overlay.Info) {
	typeBit := uint32(syscall.S_IFREG)
	if info.IsDir() {
		typeBit = syscall.S_IFDIR
	}
	out.Mode = typeBit | uint32(info.Mode.Perm())
	out.Size = uint64(info.Size)
	mt := uint64(info.ModTime.Unix())
	out.Mtime = mt
	out.Atime = mt
	out.Ctime = mt
}

// newChildInode stats childPath and builds the right node type (dir or
// file) for it, or translates a stat failure into an errno.
func newChildInode(ctx context.Context, parent *fs.Inode, ov *overlay.Overlay, childVP vpath.Path, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	info, err := ov.Stat(childVP)
	if err != nil {
		return nil, toErrno(err)
	}
	infoToAttr(&out.Attr, info)

	if info.IsDir() {
		child := &dirNode{pathNode{vp: childVP, ov: ov}}
		return parent.NewInode(ctx, child, fs.StableAttr{Mode: fuse.S_IFDIR}), fs.OK
	}
	child := &fileNode{pathNode{vp: childVP, ov: ov}}
	return parent.NewInode(ctx, child, fs.StableAttr{}), fs.OK
}

var _ = (fs.NodeGetattrer)((*pathNode)(nil))

func (n *pathNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	info, err := n.ov.Stat(n.vp)
	if err != nil {
		return toErrno(err)
	}
	infoToAttr(&out.Attr, info)
	return fs.OK
}

var _ = (fs.NodeAccesser)((*pathNode)(nil))

func (n *pathNode) Access(ctx context.Context, mask uint32) syscall.Errno {
	if err := n.ov.Access(n.vp, mask); err != nil {
		return toErrno(err)
	}
	return fs.OK
}

var _ = (fs.NodeStatfser)((*pathNode)(nil))

func (n *pathNode) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	res, err := n.ov.Statfs(n.vp)
	if err != nil {
		return toErrno(err)
	}
	out.Bsize = res.BlockSize
	out.Blocks = res.TotalBlocks
	out.Bfree = res.FreeBlocks
	out.Bavail = res.FreeBlocks
	out.NameLen = res.NameMax
	return fs.OK
}

var _ = (fs.NodeSetattrer)((*pathNode)(nil))

// Setattr covers truncate/chmod/utimens: each field present in in.Valid
// is applied via the matching Dispatcher call.
func (n *pathNode) Setattr(ctx context.Context, fh fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if sz, ok := in.GetSize(); ok {
		if err := n.ov.Truncate(n.vp, int64(sz)); err != nil {
			return toErrno(err)
		}
	}
	if mode, ok := in.GetMode(); ok {
		if err := n.ov.Chmod(n.vp, os.FileMode(mode)); err != nil {
			return toErrno(err)
		}
	}
	if atime, mok := in.GetATime(); mok {
		mtime, _ := in.GetMTime()
		if err := n.ov.Utimens(n.vp, atime, mtime); err != nil {
			return toErrno(err)
		}
	} else if mtime, mok := in.GetMTime(); mok {
		if err := n.ov.Utimens(n.vp, mtime, mtime); err != nil {
			return toErrno(err)
		}
	}

	info, err := n.ov.Stat(n.vp)
	if err != nil {
		slog.Debug("setattr: stat after apply failed", "path", n.vp.String(), "error", err)
		return fs.OK
	}
	infoToAttr(&out.Attr, info)
	return fs.OK
}
