package fusebridge

import (
	"context"
	"os"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// dirNode represents a directory anywhere in the virtual namespace:
// the synthetic root, the synthetic /dev, or any ordinary overlaid
// directory. All of its logic is a call into the Dispatcher.
type dirNode struct {
	pathNode
}

var (
	_ = (fs.NodeLookuper)((*dirNode)(nil))
	_ = (fs.NodeReaddirer)((*dirNode)(nil))
	_ = (fs.NodeMkdirer)((*dirNode)(nil))
	_ = (fs.NodeCreater)((*dirNode)(nil))
	_ = (fs.NodeUnlinker)((*dirNode)(nil))
	_ = (fs.NodeRmdirer)((*dirNode)(nil))
)

func (d *dirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	child := d.vp.Join(name)
	return newChildInode(ctx, &d.Inode, d.ov, child, out)
}

func (d *dirNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries, err := d.ov.List(d.vp)
	if err != nil {
		return nil, toErrno(err)
	}
	fuseEntries := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		mode := uint32(syscall.S_IFREG)
		if e.IsDir {
			mode = syscall.S_IFDIR
		}
		fuseEntries = append(fuseEntries, fuse.DirEntry{Name: e.Name, Mode: mode})
	}
	return fs.NewListDirStream(fuseEntries), fs.OK
}

func (d *dirNode) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	child := d.vp.Join(name)
	if err := d.ov.Mkdir(child, modeFromUnix(mode)); err != nil {
		return nil, toErrno(err)
	}
	return newChildInode(ctx, &d.Inode, d.ov, child, out)
}

func (d *dirNode) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	child := d.vp.Join(name)
	if err := d.ov.Create(child, modeFromUnix(mode)); err != nil {
		return nil, nil, 0, toErrno(err)
	}
	inode, errno := newChildInode(ctx, &d.Inode, d.ov, child, out)
	if errno != fs.OK {
		return nil, nil, 0, errno
	}
	return inode, &fileHandle{}, fuse.FOPEN_DIRECT_IO, fs.OK
}

func (d *dirNode) Unlink(ctx context.Context, name string) syscall.Errno {
	return toErrno(d.ov.Unlink(d.vp.Join(name)))
}

func (d *dirNode) Rmdir(ctx context.Context, name string) syscall.Errno {
	return toErrno(d.ov.Rmdir(d.vp.Join(name)))
}

// modeFromUnix strips the file-type bits the kernel includes in create
// and mkdir requests, leaving a plain permission value.
func modeFromUnix(mode uint32) os.FileMode {
	return os.FileMode(mode &^ syscall.S_IFMT)
}
