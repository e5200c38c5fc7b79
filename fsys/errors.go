package fsys

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is the error taxonomy every adapter maps its protocol-native
// errors onto at the boundary. Callers switch on Kind, never on the
// underlying protocol error.
type Kind int

const (
	// KindOther is returned when no more specific kind applies.
	KindOther Kind = iota
	KindNotConnected
	KindAuthFailed
	KindNetwork
	KindNoSuchFile
	KindAlreadyExists
	KindNotADirectory
	KindPermissionDenied
	KindUnsupportedFeature
	KindIo
	KindSyntax
	KindBadEncoding
	KindAborted
)

func (k Kind) String() string {
	switch k {
	case KindNotConnected:
		return "not connected"
	case KindAuthFailed:
		return "authentication failed"
	case KindNetwork:
		return "network error"
	case KindNoSuchFile:
		return "no such file"
	case KindAlreadyExists:
		return "already exists"
	case KindNotADirectory:
		return "not a directory"
	case KindPermissionDenied:
		return "permission denied"
	case KindUnsupportedFeature:
		return "unsupported feature"
	case KindIo:
		return "io error"
	case KindSyntax:
		return "syntax error"
	case KindBadEncoding:
		return "bad encoding"
	case KindAborted:
		return "aborted"
	default:
		return "error"
	}
}

// Error is the concrete error type returned by every fsys.FS operation.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %s: %s", e.Op, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is match on Kind alone: any *Error target with the
// same Kind matches, whatever its op, path or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewError wraps cause with op/path context under the given Kind,
// following the teacher's errors.Wrap convention so the original cause
// remains reachable via errors.Cause/errors.Unwrap.
func NewError(kind Kind, op, path string, cause error) *Error {
	if cause == nil {
		cause = errors.New(kind.String())
	}
	return &Error{Kind: kind, Op: op, Path: path, Err: errors.WithStack(cause)}
}

// Sentinel kinds for errors.Is(err, fsys.ErrNoSuchFile) comparisons.
var (
	ErrNotConnected       = &Error{Kind: KindNotConnected}
	ErrAuthFailed         = &Error{Kind: KindAuthFailed}
	ErrNetwork            = &Error{Kind: KindNetwork}
	ErrNoSuchFile         = &Error{Kind: KindNoSuchFile}
	ErrAlreadyExists      = &Error{Kind: KindAlreadyExists}
	ErrNotADirectory      = &Error{Kind: KindNotADirectory}
	ErrPermissionDenied   = &Error{Kind: KindPermissionDenied}
	ErrUnsupportedFeature = &Error{Kind: KindUnsupportedFeature}
	ErrIo                 = &Error{Kind: KindIo}
	ErrSyntax             = &Error{Kind: KindSyntax}
	ErrBadEncoding        = &Error{Kind: KindBadEncoding}
	ErrAborted            = &Error{Kind: KindAborted}
)

// KindOf extracts the Kind from err, returning KindOther if err is not
// (or does not wrap) an *Error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindOther
}
