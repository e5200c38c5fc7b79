// Package local implements the host bridge (spec §4.3): an fsys.FS over
// the machine's own filesystem. It is the default host side of a
// session; a second protocol adapter takes its place for
// remote-to-remote sessions. Only this implementation reports
// IsLocalhost() == true.
package local

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/veeso-termscp/termscp-core/fsys"
)

var log = logrus.WithField("component", "backend.local")

// FS is the local-disk implementation of fsys.FS.
type FS struct {
	cwd       string
	connected bool
}

// New builds a local host bridge rooted at the process's working
// directory at construction time, mirroring the teacher's local backend
// which resolves an absolute root eagerly rather than lazily.
func New() (*FS, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fsys.NewError(fsys.KindIo, "new", "", err)
	}
	return &FS{cwd: wd}, nil
}

func (f *FS) Connect(ctx context.Context) (fsys.Welcome, error) {
	f.connected = true
	return fsys.Welcome{}, nil
}

func (f *FS) Disconnect(ctx context.Context) error {
	f.connected = false
	return nil
}

func (f *FS) IsConnected() bool { return f.connected }
func (f *FS) IsLocalhost() bool { return true }

func (f *FS) Pwd(ctx context.Context) (string, error) {
	if !f.connected {
		return "", fsys.NewError(fsys.KindNotConnected, "pwd", "", nil)
	}
	return f.cwd, nil
}

func (f *FS) ChangeDir(ctx context.Context, path string) (string, error) {
	if !f.connected {
		return "", fsys.NewError(fsys.KindNotConnected, "change_dir", path, nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", mapErr("change_dir", path, err)
	}
	if !info.IsDir() {
		return "", fsys.NewError(fsys.KindNotADirectory, "change_dir", path, nil)
	}
	f.cwd = path
	return f.cwd, nil
}

func (f *FS) ListDir(ctx context.Context, dir string) ([]fsys.File, error) {
	if !f.connected {
		return nil, fsys.NewError(fsys.KindNotConnected, "list_dir", dir, nil)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, mapErr("list_dir", dir, err)
	}
	base := strings.TrimSuffix(dir, "/")
	out := make([]fsys.File, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			log.WithError(err).Warnf("skipping unreadable entry %s", e.Name())
			continue
		}
		out = append(out, fileFromInfo(base+"/"+e.Name(), info))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (f *FS) Stat(ctx context.Context, path string) (fsys.File, error) {
	if !f.connected {
		return fsys.File{}, fsys.NewError(fsys.KindNotConnected, "stat", path, nil)
	}
	info, err := os.Lstat(path)
	if err != nil {
		return fsys.File{}, mapErr("stat", path, err)
	}
	ff := fileFromInfo(path, info)
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(path)
		if err == nil {
			ff.Meta.SymlinkTarget = target
		}
	}
	return ff, nil
}

func (f *FS) Exists(ctx context.Context, path string) (bool, error) {
	if !f.connected {
		return false, fsys.NewError(fsys.KindNotConnected, "exists", path, nil)
	}
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, mapErr("exists", path, err)
}

func (f *FS) SetStat(ctx context.Context, path string, delta fsys.MetadataDelta) error {
	if !f.connected {
		return fsys.NewError(fsys.KindNotConnected, "set_stat", path, nil)
	}
	if delta.Mode != nil && delta.Mode.Known {
		if err := os.Chmod(path, modeToOS(*delta.Mode)); err != nil {
			return mapErr("set_stat", path, err)
		}
	}
	if delta.Modified != nil {
		atime := time.Now()
		if delta.Accessed != nil {
			atime = *delta.Accessed
		}
		if err := os.Chtimes(path, atime, *delta.Modified); err != nil {
			return mapErr("set_stat", path, err)
		}
	}
	return nil
}

func (f *FS) RemoveFile(ctx context.Context, path string) error {
	if !f.connected {
		return fsys.NewError(fsys.KindNotConnected, "remove_file", path, nil)
	}
	if err := os.Remove(path); err != nil {
		return mapErr("remove_file", path, err)
	}
	return nil
}

func (f *FS) RemoveDirAll(ctx context.Context, path string) error {
	if !f.connected {
		return fsys.NewError(fsys.KindNotConnected, "remove_dir_all", path, nil)
	}
	if err := os.RemoveAll(path); err != nil {
		return mapErr("remove_dir_all", path, err)
	}
	return nil
}

func (f *FS) CreateDir(ctx context.Context, path string, mode fsys.Mode) error {
	if !f.connected {
		return fsys.NewError(fsys.KindNotConnected, "create_dir", path, nil)
	}
	perm := os.FileMode(0o755)
	if mode.Known {
		perm = modeToOS(mode)
	}
	if _, err := os.Stat(path); err == nil {
		return fsys.NewError(fsys.KindAlreadyExists, "create_dir", path, nil)
	}
	if err := os.Mkdir(path, perm); err != nil {
		return mapErr("create_dir", path, err)
	}
	return nil
}

func (f *FS) Symlink(ctx context.Context, path, target string) error {
	if !f.connected {
		return fsys.NewError(fsys.KindNotConnected, "symlink", path, nil)
	}
	if err := os.Symlink(target, path); err != nil {
		return mapErr("symlink", path, err)
	}
	return nil
}

func (f *FS) Copy(ctx context.Context, src, dst string) error {
	if !f.connected {
		return fsys.NewError(fsys.KindNotConnected, "copy", src, nil)
	}
	in, err := os.Open(src)
	if err != nil {
		return mapErr("copy", src, err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return mapErr("copy", dst, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return fsys.NewError(fsys.KindIo, "copy", dst, err)
	}
	return nil
}

func (f *FS) Mov(ctx context.Context, src, dst string) error {
	if !f.connected {
		return fsys.NewError(fsys.KindNotConnected, "mov", src, nil)
	}
	if err := os.Rename(src, dst); err != nil {
		return mapErr("mov", src, err)
	}
	return nil
}

func (f *FS) Exec(ctx context.Context, shellCommand string) (fsys.ExecResult, error) {
	return fsys.ExecResult{}, fsys.NewError(fsys.KindUnsupportedFeature, "exec", "", nil)
}

func (f *FS) OpenFile(ctx context.Context, path string) (*fsys.ReadStream, error) {
	if !f.connected {
		return nil, fsys.NewError(fsys.KindNotConnected, "open_file", path, nil)
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, mapErr("open_file", path, err)
	}
	info, err := fh.Stat()
	if err != nil {
		fh.Close()
		return nil, fsys.NewError(fsys.KindIo, "open_file", path, err)
	}
	return &fsys.ReadStream{ReadCloser: fh, Size: info.Size()}, nil
}

func (f *FS) CreateFile(ctx context.Context, path string, meta fsys.Metadata) (*fsys.WriteStream, error) {
	if !f.connected {
		return nil, fsys.NewError(fsys.KindNotConnected, "create_file", path, nil)
	}
	perm := os.FileMode(0o644)
	if meta.Mode.Known {
		perm = modeToOS(meta.Mode)
	}
	fh, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return nil, mapErr("create_file", path, err)
	}
	return &fsys.WriteStream{WriteCloser: fh}, nil
}

func (f *FS) FinalizeWrite(ctx context.Context, w *fsys.WriteStream) error {
	if s, ok := w.WriteCloser.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
	if err := w.Close(); err != nil {
		return fsys.NewError(fsys.KindIo, "finalize_write", "", err)
	}
	return nil
}

func (f *FS) Find(ctx context.Context, glob string) ([]fsys.File, error) {
	if !f.connected {
		return nil, fsys.NewError(fsys.KindNotConnected, "find", glob, nil)
	}
	matches, err := filepath.Glob(glob)
	if err != nil {
		return nil, fsys.NewError(fsys.KindSyntax, "find", glob, err)
	}
	out := make([]fsys.File, 0, len(matches))
	for _, m := range matches {
		info, err := os.Lstat(m)
		if err != nil {
			continue
		}
		out = append(out, fileFromInfo(m, info))
	}
	return out, nil
}

func fileFromInfo(path string, info os.FileInfo) fsys.File {
	t := fsys.TypeRegular
	switch {
	case info.IsDir():
		t = fsys.TypeDirectory
	case info.Mode()&os.ModeSymlink != 0:
		t = fsys.TypeSymlink
	case info.Mode()&os.ModeType != 0 && info.Mode()&os.ModeSymlink == 0:
		t = fsys.TypeSpecial
	}
	size := info.Size()
	if t == fsys.TypeDirectory {
		size = 0
	}
	return fsys.File{
		Path: path,
		Meta: fsys.Metadata{
			Type:     t,
			Size:     size,
			Mode:     modeFromOS(info.Mode()),
			Modified: info.ModTime(),
		},
	}
}

func modeFromOS(m os.FileMode) fsys.Mode {
	perm := m.Perm()
	triple := func(shift uint) fsys.Permissions {
		bits := (uint32(perm) >> shift) & 0o7
		return fsys.Permissions{Read: bits&0o4 != 0, Write: bits&0o2 != 0, Execute: bits&0o1 != 0}
	}
	return fsys.Mode{
		Known: true,
		Owner: triple(6),
		Group: triple(3),
		All:   triple(0),
	}
}

func modeToOS(m fsys.Mode) os.FileMode {
	var perm uint32
	pack := func(p fsys.Permissions, shift uint) {
		var bits uint32
		if p.Read {
			bits |= 0o4
		}
		if p.Write {
			bits |= 0o2
		}
		if p.Execute {
			bits |= 0o1
		}
		perm |= bits << shift
	}
	pack(m.Owner, 6)
	pack(m.Group, 3)
	pack(m.All, 0)
	return os.FileMode(perm)
}

func mapErr(op, path string, err error) error {
	switch {
	case os.IsNotExist(err):
		return fsys.NewError(fsys.KindNoSuchFile, op, path, err)
	case os.IsExist(err):
		return fsys.NewError(fsys.KindAlreadyExists, op, path, err)
	case os.IsPermission(err):
		return fsys.NewError(fsys.KindPermissionDenied, op, path, err)
	default:
		return fsys.NewError(fsys.KindIo, op, path, err)
	}
}
