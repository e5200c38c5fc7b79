// Package smb implements the SMB protocol adapter (spec §4.2) over
// github.com/cloudsoda/go-smb2.
package smb

import (
	"context"
	"net"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	smb2 "github.com/cloudsoda/go-smb2"
	"github.com/sirupsen/logrus"

	"github.com/veeso-termscp/termscp-core/fsys"
)

var log = logrus.WithField("component", "backend.smb")

func addrWithPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// FS is the SMB implementation of fsys.FS.
type FS struct {
	params    Params
	conn      net.Conn
	session   *smb2.Session
	share     *smb2.Share
	wd        string
	connected bool
}

// New builds an unconnected SMB adapter from the given params.
func New(p Params) (*FS, error) {
	return &FS{params: p, wd: "/"}, nil
}

func (f *FS) Connect(ctx context.Context) (fsys.Welcome, error) {
	addr := f.params.address()
	dialer := net.Dialer{Timeout: 30 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fsys.Welcome{}, fsys.NewError(fsys.KindNetwork, "connect", addr, err)
	}
	d := &smb2.Dialer{
		Initiator: &smb2.NTLMInitiator{
			User:     f.params.Username,
			Password: f.params.Password,
			Domain:   f.params.domain(),
		},
	}
	session, err := d.DialConn(ctx, conn, addr)
	if err != nil {
		conn.Close()
		return fsys.Welcome{}, fsys.NewError(fsys.KindAuthFailed, "connect", addr, err)
	}
	share, err := session.Mount(f.params.Share)
	if err != nil {
		session.Logoff()
		conn.Close()
		return fsys.Welcome{}, fsys.NewError(fsys.KindAuthFailed, "connect", f.params.Share, err)
	}
	f.conn = conn
	f.session = session
	f.share = share
	f.connected = true
	return fsys.Welcome{}, nil
}

func (f *FS) Disconnect(ctx context.Context) error {
	if f.share != nil {
		_ = f.share.Umount()
	}
	if f.session != nil {
		_ = f.session.Logoff()
	}
	if f.conn != nil {
		_ = f.conn.Close()
	}
	f.connected = false
	return nil
}

func (f *FS) IsConnected() bool { return f.connected }
func (f *FS) IsLocalhost() bool { return false }

func (f *FS) sharePath(p string) string {
	p = strings.TrimPrefix(p, "/")
	return strings.ReplaceAll(p, "/", `\`)
}

func (f *FS) Pwd(ctx context.Context) (string, error) {
	if !f.connected {
		return "", fsys.NewError(fsys.KindNotConnected, "pwd", "", nil)
	}
	return f.wd, nil
}

func (f *FS) ChangeDir(ctx context.Context, dir string) (string, error) {
	if !f.connected {
		return "", fsys.NewError(fsys.KindNotConnected, "change_dir", dir, nil)
	}
	info, err := f.share.Stat(f.sharePath(dir))
	if err != nil {
		return "", mapErr("change_dir", dir, err)
	}
	if !info.IsDir() {
		return "", fsys.NewError(fsys.KindNotADirectory, "change_dir", dir, nil)
	}
	f.wd = dir
	return f.wd, nil
}

func (f *FS) ListDir(ctx context.Context, dir string) ([]fsys.File, error) {
	if !f.connected {
		return nil, fsys.NewError(fsys.KindNotConnected, "list_dir", dir, nil)
	}
	infos, err := f.share.ReadDir(f.sharePath(dir))
	if err != nil {
		return nil, mapErr("list_dir", dir, err)
	}
	out := make([]fsys.File, 0, len(infos))
	for _, info := range infos {
		if info.Name() == "." || info.Name() == ".." {
			continue
		}
		out = append(out, fileFromInfo(path.Join(dir, info.Name()), info))
	}
	return out, nil
}

func (f *FS) Stat(ctx context.Context, p string) (fsys.File, error) {
	if !f.connected {
		return fsys.File{}, fsys.NewError(fsys.KindNotConnected, "stat", p, nil)
	}
	info, err := f.share.Stat(f.sharePath(p))
	if err != nil {
		return fsys.File{}, mapErr("stat", p, err)
	}
	return fileFromInfo(p, info), nil
}

func (f *FS) Exists(ctx context.Context, p string) (bool, error) {
	if !f.connected {
		return false, fsys.NewError(fsys.KindNotConnected, "exists", p, nil)
	}
	_, err := f.share.Stat(f.sharePath(p))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, mapErr("exists", p, err)
}

func (f *FS) SetStat(ctx context.Context, p string, delta fsys.MetadataDelta) error {
	if !f.connected {
		return fsys.NewError(fsys.KindNotConnected, "set_stat", p, nil)
	}
	if delta.Modified != nil {
		atime := time.Now()
		if delta.Accessed != nil {
			atime = *delta.Accessed
		}
		if err := f.share.Chtimes(f.sharePath(p), atime, *delta.Modified); err != nil {
			return mapErr("set_stat", p, err)
		}
	}
	return nil
}

func (f *FS) RemoveFile(ctx context.Context, p string) error {
	if !f.connected {
		return fsys.NewError(fsys.KindNotConnected, "remove_file", p, nil)
	}
	if err := f.share.Remove(f.sharePath(p)); err != nil {
		return mapErr("remove_file", p, err)
	}
	return nil
}

func (f *FS) RemoveDirAll(ctx context.Context, p string) error {
	if !f.connected {
		return fsys.NewError(fsys.KindNotConnected, "remove_dir_all", p, nil)
	}
	if err := f.share.RemoveAll(f.sharePath(p)); err != nil {
		return mapErr("remove_dir_all", p, err)
	}
	return nil
}

func (f *FS) CreateDir(ctx context.Context, p string, mode fsys.Mode) error {
	if !f.connected {
		return fsys.NewError(fsys.KindNotConnected, "create_dir", p, nil)
	}
	if _, err := f.share.Stat(f.sharePath(p)); err == nil {
		return fsys.NewError(fsys.KindAlreadyExists, "create_dir", p, nil)
	}
	if err := f.share.Mkdir(f.sharePath(p), 0o755); err != nil {
		return mapErr("create_dir", p, err)
	}
	return nil
}

// Symlink is unsupported: SMB has no portable symbolic-link verb
// across server implementations (Samba's reparse-point emulation is
// not part of the go-smb2 client surface).
func (f *FS) Symlink(ctx context.Context, p, target string) error {
	return fsys.NewError(fsys.KindUnsupportedFeature, "symlink", p, nil)
}

func (f *FS) Copy(ctx context.Context, src, dst string) error {
	return fsys.NewError(fsys.KindUnsupportedFeature, "copy", src, nil)
}

func (f *FS) Mov(ctx context.Context, src, dst string) error {
	if !f.connected {
		return fsys.NewError(fsys.KindNotConnected, "mov", src, nil)
	}
	if err := f.share.Rename(f.sharePath(src), f.sharePath(dst)); err != nil {
		return mapErr("mov", src, err)
	}
	return nil
}

// Exec is unsupported: SMB is a file-sharing protocol with no remote
// execution primitive.
func (f *FS) Exec(ctx context.Context, shellCommand string) (fsys.ExecResult, error) {
	return fsys.ExecResult{}, fsys.NewError(fsys.KindUnsupportedFeature, "exec", "", nil)
}

func (f *FS) OpenFile(ctx context.Context, p string) (*fsys.ReadStream, error) {
	if !f.connected {
		return nil, fsys.NewError(fsys.KindNotConnected, "open_file", p, nil)
	}
	fh, err := f.share.OpenFile(f.sharePath(p), os.O_RDONLY, 0)
	if err != nil {
		return nil, mapErr("open_file", p, err)
	}
	info, err := fh.Stat()
	if err != nil {
		fh.Close()
		return nil, fsys.NewError(fsys.KindIo, "open_file", p, err)
	}
	return &fsys.ReadStream{ReadCloser: fh, Size: info.Size()}, nil
}

func (f *FS) CreateFile(ctx context.Context, p string, meta fsys.Metadata) (*fsys.WriteStream, error) {
	if !f.connected {
		return nil, fsys.NewError(fsys.KindNotConnected, "create_file", p, nil)
	}
	fh, err := f.share.OpenFile(f.sharePath(p), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, mapErr("create_file", p, err)
	}
	return &fsys.WriteStream{WriteCloser: fh}, nil
}

func (f *FS) FinalizeWrite(ctx context.Context, w *fsys.WriteStream) error {
	if err := w.Close(); err != nil {
		return fsys.NewError(fsys.KindIo, "finalize_write", "", err)
	}
	return nil
}

func (f *FS) Find(ctx context.Context, glob string) ([]fsys.File, error) {
	if !f.connected {
		return nil, fsys.NewError(fsys.KindNotConnected, "find", glob, nil)
	}
	dir, pattern := path.Split(glob)
	entries, err := f.ListDir(ctx, dir)
	if err != nil {
		return nil, err
	}
	out := make([]fsys.File, 0)
	for _, e := range entries {
		ok, err := path.Match(pattern, e.Name())
		if err != nil {
			return nil, fsys.NewError(fsys.KindSyntax, "find", glob, err)
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func fileFromInfo(p string, info os.FileInfo) fsys.File {
	t := fsys.TypeRegular
	if info.IsDir() {
		t = fsys.TypeDirectory
	}
	size := info.Size()
	if t == fsys.TypeDirectory {
		size = 0
	}
	return fsys.File{
		Path: p,
		Meta: fsys.Metadata{
			Type:     t,
			Size:     size,
			Modified: info.ModTime(),
		},
	}
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
