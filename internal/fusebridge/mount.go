package fusebridge

import (
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/prismafs/prismafs/internal/overlay"
	"github.com/prismafs/prismafs/internal/vpath"
)

// Mount starts serving ov at mountPoint, forwarding extraOpts verbatim as
// go-fuse -o style options.
func Mount(mountPoint string, ov *overlay.Overlay, extraOpts []string) (*fuse.Server, error) {
	root := &dirNode{pathNode{vp: vpath.MustNew("/"), ov: ov}}

	return fs.Mount(mountPoint, root, &fs.Options{
		MountOptions: fuse.MountOptions{
			AllowOther:  false,
			Name:        "prismafs",
			DirectMount: true,
			Options:     extraOpts,
		},
	})
}
