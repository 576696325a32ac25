package overlay

import (
	"errors"
	"os"
	"syscall"

	"github.com/prismafs/prismafs/internal/layer"
	"github.com/prismafs/prismafs/internal/vpath"
)

// Kind enumerates the error kinds the bridge boundary reports. The core
// never distinguishes transient from permanent errors; every failure is
// one of these nine kinds.
type Kind int

const (
	KindNotFound Kind = iota
	KindPermissionDenied
	KindExists
	KindNotADirectory
	KindIsADirectory
	KindIOError
	KindNameTooLong
	KindInvalidArgument
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not-found"
	case KindPermissionDenied:
		return "permission-denied"
	case KindExists:
		return "exists"
	case KindNotADirectory:
		return "not-a-directory"
	case KindIsADirectory:
		return "is-a-directory"
	case KindIOError:
		return "io-error"
	case KindNameTooLong:
		return "name-too-long"
	case KindInvalidArgument:
		return "invalid-argument"
	case KindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Error is the Dispatcher's failure type: a classified Kind wrapping the
// underlying host error, if any.
type Error struct {
	Kind Kind
	Op   string
	Path string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.Op + " " + e.Path + ": " + e.Kind.String() + ": " + e.err.Error()
	}
	return e.Op + " " + e.Path + ": " + e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.err
}

func newErr(op string, p vpath.Path, k Kind, cause error) *Error {
	return &Error{Kind: k, Op: op, Path: p.String(), err: cause}
}

// classify maps a host error (from os/syscall) onto a Kind and
// propagates it directly: the core never recovers locally or retries.
func classify(err error) Kind {
	switch {
	case err == nil:
		return KindNotFound // unreachable; callers only classify non-nil errors
	case errors.Is(err, os.ErrNotExist), errors.Is(err, layer.ErrWhitedOut):
		return KindNotFound
	case errors.Is(err, os.ErrPermission):
		return KindPermissionDenied
	case errors.Is(err, os.ErrExist):
		return KindExists
	case errors.Is(err, syscall.ENOTDIR):
		return KindNotADirectory
	case errors.Is(err, syscall.EISDIR):
		return KindIsADirectory
	case errors.Is(err, syscall.ENAMETOOLONG), errors.Is(err, vpath.ErrTooLong):
		return KindNameTooLong
	case errors.Is(err, syscall.EINVAL), errors.Is(err, os.ErrInvalid), errors.Is(err, vpath.ErrNotAbsolute):
		return KindInvalidArgument
	case errors.Is(err, syscall.ENOSYS):
		return KindUnsupported
	default:
		return KindIOError
	}
}

func wrap(op string, p vpath.Path, err error) error {
	if err == nil {
		return nil
	}
	return newErr(op, p, classify(err), err)
}
