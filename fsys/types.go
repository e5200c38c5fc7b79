// Package fsys defines the RemoteFs capability (spec §4.1): the reduction
// of seven heterogeneous file-transfer protocols and the local host
// filesystem to a single synchronous vocabulary. Every protocol adapter
// in internal/backend implements the FS interface defined here; callers
// (the transfer pipeline, the explorer, the sync-browsing coordinator)
// are generic over "something implementing FS" and never type-switch on
// the concrete adapter.
package fsys

import (
	"context"
	"io"
	"time"
)

// FileType is the entry kind the explorer and pipeline reason about.
// Special and unknown raw types are retained in Metadata but hidden from
// the explorer's listing per spec §3.
type FileType int

const (
	TypeDirectory FileType = iota
	TypeRegular
	TypeSymlink
	TypeSpecial
)

func (t FileType) String() string {
	switch t {
	case TypeDirectory:
		return "directory"
	case TypeRegular:
		return "regular"
	case TypeSymlink:
		return "symlink"
	default:
		return "special"
	}
}

// Permissions is a POSIX-style rwx triple for one of owner/group/other.
type Permissions struct {
	Read, Write, Execute bool
}

// Mode holds the three owner/group/other permission triples, when known.
type Mode struct {
	Known             bool
	Owner, Group, All Permissions
}

// Metadata describes a single filesystem entry. Size is the logical
// content length; directories always report 0. SymlinkTarget carries the
// raw, unresolved target string when Type is TypeSymlink.
type Metadata struct {
	Type           FileType
	Size           int64
	Mode           Mode
	Owner          string
	Group          string
	Created        time.Time
	Modified       time.Time
	Accessed       time.Time
	SymlinkTarget  string
}

// File pairs an absolute path with its Metadata. Path is always
// absolute; a trailing slash present on a directory path supplied to
// ListDir is preserved by joining parent+name, never double-slashed.
type File struct {
	Path string
	Meta Metadata
}

// Name returns the final path component.
func (f File) Name() string {
	return basename(f.Path)
}

// IsDir reports whether the entry is a directory.
func (f File) IsDir() bool { return f.Meta.Type == TypeDirectory }

// MetadataDelta describes a partial update for SetStat: nil fields are
// left untouched.
type MetadataDelta struct {
	Mode     *Mode
	Modified *time.Time
	Accessed *time.Time
}

// Welcome is returned by Connect and may carry a server banner.
type Welcome struct {
	Banner string
}

// ReadStream is a read handle returned by OpenFile, paired with the
// expected total size (used to seed transfer progress).
type ReadStream struct {
	io.ReadCloser
	Size int64
}

// WriteStream is a write handle returned by CreateFile. FinalizeWrite
// must be called (via FS.FinalizeWrite) after the last Write to flush
// and release protocol-level resources (e.g. the S3 and WebDAV adapters
// buffer the body and upload it in one request on close).
type WriteStream struct {
	io.WriteCloser
}

// ExecResult is the outcome of FS.Exec.
type ExecResult struct {
	ExitCode int
	Stdout   string
}

// FS is the capability every protocol adapter and the local host bridge
// implement. All operations are synchronous at the contract level: an
// adapter may perform asynchronous I/O internally but never hands the
// caller a callback or a future. UnsupportedFeature is a first-class
// result callers must be prepared to see and to recover from (the
// transfer pipeline's tricky-copy fallback, in particular).
type FS interface {
	// Connect establishes the session. Calling it twice is implementation
	// defined; IsConnected must become true on success.
	Connect(ctx context.Context) (Welcome, error)
	// Disconnect releases the session. It is always safe to call,
	// including when not connected.
	Disconnect(ctx context.Context) error
	IsConnected() bool

	// IsLocalhost reports whether this FS is the local filesystem. Only
	// the host bridge may answer true; it lets edit-in-place short-circuit
	// the download step (spec §9).
	IsLocalhost() bool

	Pwd(ctx context.Context) (string, error)
	ChangeDir(ctx context.Context, path string) (string, error)
	ListDir(ctx context.Context, path string) ([]File, error)
	Stat(ctx context.Context, path string) (File, error)
	Exists(ctx context.Context, path string) (bool, error)
	SetStat(ctx context.Context, path string, delta MetadataDelta) error

	RemoveFile(ctx context.Context, path string) error
	RemoveDirAll(ctx context.Context, path string) error
	CreateDir(ctx context.Context, path string, mode Mode) error
	Symlink(ctx context.Context, path, target string) error

	Copy(ctx context.Context, src, dst string) error
	Mov(ctx context.Context, src, dst string) error
	Exec(ctx context.Context, shellCommand string) (ExecResult, error)

	OpenFile(ctx context.Context, path string) (*ReadStream, error)
	CreateFile(ctx context.Context, path string, meta Metadata) (*WriteStream, error)
	FinalizeWrite(ctx context.Context, w *WriteStream) error

	Find(ctx context.Context, glob string) ([]File, error)
}

func basename(p string) string {
	i := len(p) - 1
	for i >= 0 && p[i] == '/' {
		i--
	}
	end := i + 1
	for i >= 0 && p[i] != '/' {
		i--
	}
	if i+1 >= end {
		return "/"
	}
	return p[i+1 : end]
}
