package fusebridge

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// fileNode represents a regular file anywhere in the virtual namespace,
// including the synthetic /dev/cpu node.
type fileNode struct {
	pathNode
}

var (
	_ = (fs.NodeOpener)((*fileNode)(nil))
	_ = (fs.NodeReader)((*fileNode)(nil))
	_ = (fs.NodeWriter)((*fileNode)(nil))
	_ = (fs.NodeReleaser)((*fileNode)(nil))
)

// fileHandle carries no state: the Dispatcher re-resolves the effective
// entry on every Read/Write call, so there is nothing to retain between
// Open and Release. A retained handle referring to a fixed host path
// would otherwise risk silently retargeting after a copy-up; re-resolving
// sidesteps the problem entirely rather than needing to guard against it.
type fileHandle struct{}

func (f *fileNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if err := f.ov.Open(f.vp, int(flags)); err != nil {
		return nil, 0, toErrno(err)
	}
	return &fileHandle{}, fuse.FOPEN_DIRECT_IO, fs.OK
}

func (f *fileNode) Read(ctx context.Context, fh fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	data, err := f.ov.Read(f.vp, off, len(dest))
	if err != nil {
		return nil, toErrno(err)
	}
	return fuse.ReadResultData(data), fs.OK
}

func (f *fileNode) Write(ctx context.Context, fh fs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	n, err := f.ov.Write(f.vp, off, data)
	if err != nil {
		return uint32(n), toErrno(err)
	}
	return uint32(n), fs.OK
}

func (f *fileNode) Release(ctx context.Context, fh fs.FileHandle) syscall.Errno {
	return fs.OK
}
