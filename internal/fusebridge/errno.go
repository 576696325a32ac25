package fusebridge

import (
	"syscall"

	"github.com/prismafs/prismafs/internal/overlay"
)

// toErrno translates an overlay.Error into the syscall.Errno go-fuse
// expects at the protocol boundary.
func toErrno(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	oe, ok := err.(*overlay.Error)
	if !ok {
		return syscall.EIO
	}
	switch oe.Kind {
	case overlay.KindNotFound:
		return syscall.ENOENT
	case overlay.KindPermissionDenied:
		return syscall.EACCES
	case overlay.KindExists:
		return syscall.EEXIST
	case overlay.KindNotADirectory:
		return syscall.ENOTDIR
	case overlay.KindIsADirectory:
		return syscall.EISDIR
	case overlay.KindNameTooLong:
		return syscall.ENAMETOOLONG
	case overlay.KindInvalidArgument:
		return syscall.EINVAL
	case overlay.KindUnsupported:
		return syscall.ENOSYS
	default:
		return syscall.EIO
	}
}
