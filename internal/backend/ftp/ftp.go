// Package ftp implements the FTP and FTPS protocol adapter (spec §4.2)
// over github.com/jlaffaye/ftp.
package ftp

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"path"
	"strconv"
	"strings"

	"github.com/jlaffaye/ftp"
	"github.com/sirupsen/logrus"

	"github.com/veeso-termscp/termscp-core/fsys"
)

var log = logrus.WithField("component", "backend.ftp")

// Params configures a session per spec §4.2. Secure selects plain FTP
// vs. explicit FTPS (AUTH TLS); termscp never dials implicit FTPS.
type Params struct {
	Host     string
	Port     int
	Username string
	Password string
	Secure   bool
}

// PasswordMissing reports whether a password still needs to be
// injected before connecting.
func (p Params) PasswordMissing() bool {
	return p.Password == ""
}

// SetDefaultSecret sets the password to secret, replacing any value
// already present; the credential flow uses it to inject a stored
// bookmark secret.
func (p *Params) SetDefaultSecret(secret string) {
	p.Password = secret
}

// FS is the FTP/FTPS implementation of fsys.FS.
type FS struct {
	params    Params
	conn      *ftp.ServerConn
	wd        string
	connected bool
}

// New builds an unconnected FTP adapter from the given params.
func New(p Params) (*FS, error) {
	if p.Port == 0 {
		p.Port = 21
	}
	return &FS{params: p}, nil
}

func (f *FS) Connect(ctx context.Context) (fsys.Welcome, error) {
	addr := net.JoinHostPort(f.params.Host, strconv.Itoa(f.params.Port))
	opts := []ftp.DialOption{ftp.DialWithContext(ctx)}
	if f.params.Secure {
		opts = append(opts, ftp.DialWithExplicitTLS(&tls.Config{ServerName: f.params.Host}))
	}
	conn, err := ftp.Dial(addr, opts...)
	if err != nil {
		return fsys.Welcome{}, fsys.NewError(fsys.KindNetwork, "connect", addr, err)
	}
	if err := conn.Login(f.params.Username, f.params.Password); err != nil {
		_ = conn.Quit()
		return fsys.Welcome{}, fsys.NewError(fsys.KindAuthFailed, "connect", addr, err)
	}
	f.conn = conn
	f.connected = true
	wd, err := conn.CurrentDir()
	if err != nil {
		log.WithError(err).Warn("couldn't read current directory, defaulting to /")
		wd = "/"
	}
	f.wd = wd
	return fsys.Welcome{}, nil
}

func (f *FS) Disconnect(ctx context.Context) error {
	if f.conn != nil {
		_ = f.conn.Quit()
	}
	f.connected = false
	return nil
}

func (f *FS) IsConnected() bool { return f.connected }
func (f *FS) IsLocalhost() bool { return false }

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
	if err := f.conn.ChangeDir(dir); err != nil {
		return "", fsys.NewError(fsys.KindNotADirectory, "change_dir", dir, err)
	}
	f.wd = dir
	return f.wd, nil
}

func (f *FS) ListDir(ctx context.Context, dir string) ([]fsys.File, error) {
	if !f.connected {
		return nil, fsys.NewError(fsys.KindNotConnected, "list_dir", dir, nil)
	}
	entries, err := f.conn.List(dir)
	if err != nil {
		return nil, fsys.NewError(fsys.KindNoSuchFile, "list_dir", dir, err)
	}
	out := make([]fsys.File, 0, len(entries))
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		out = append(out, fileFromEntry(path.Join(dir, e.Name), e))
	}
	return out, nil
}

func (f *FS) Stat(ctx context.Context, p string) (fsys.File, error) {
	if !f.connected {
		return fsys.File{}, fsys.NewError(fsys.KindNotConnected, "stat", p, nil)
	}
	dir, base := path.Split(strings.TrimSuffix(p, "/"))
	if dir == "" {
		dir = "."
	}
	entries, err := f.conn.List(dir)
	if err != nil {
		return fsys.File{}, fsys.NewError(fsys.KindNoSuchFile, "stat", p, err)
	}
	for _, e := range entries {
		if e.Name == base {
			return fileFromEntry(p, e), nil
		}
	}
	return fsys.File{}, fsys.NewError(fsys.KindNoSuchFile, "stat", p, nil)
}

func (f *FS) Exists(ctx context.Context, p string) (bool, error) {
	if !f.connected {
		return false, fsys.NewError(fsys.KindNotConnected, "exists", p, nil)
	}
	_, err := f.Stat(ctx, p)
	if err != nil {
		if fsys.KindOf(err) == fsys.KindNoSuchFile {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// SetStat is unsupported: the FTP protocol has no portable chmod/utime
// verb (SITE CHMOD is a non-standard extension most servers disable).
func (f *FS) SetStat(ctx context.Context, p string, delta fsys.MetadataDelta) error {
	return fsys.NewError(fsys.KindUnsupportedFeature, "set_stat", p, nil)
}

func (f *FS) RemoveFile(ctx context.Context, p string) error {
	if !f.connected {
		return fsys.NewError(fsys.KindNotConnected, "remove_file", p, nil)
	}
	if err := f.conn.Delete(p); err != nil {
		return fsys.NewError(fsys.KindIo, "remove_file", p, err)
	}
	return nil
}

func (f *FS) RemoveDirAll(ctx context.Context, p string) error {
	if !f.connected {
		return fsys.NewError(fsys.KindNotConnected, "remove_dir_all", p, nil)
	}
	entries, err := f.conn.List(p)
	if err != nil {
		return fsys.NewError(fsys.KindNoSuchFile, "remove_dir_all", p, err)
	}
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		child := path.Join(p, e.Name)
		if e.Type == ftp.EntryTypeFolder {
			if err := f.RemoveDirAll(ctx, child); err != nil {
				return err
			}
			continue
		}
		if err := f.conn.Delete(child); err != nil {
			return fsys.NewError(fsys.KindIo, "remove_dir_all", child, err)
		}
	}
	if err := f.conn.RemoveDir(p); err != nil {
		return fsys.NewError(fsys.KindIo, "remove_dir_all", p, err)
	}
	return nil
}

func (f *FS) CreateDir(ctx context.Context, p string, mode fsys.Mode) error {
	if !f.connected {
		return fsys.NewError(fsys.KindNotConnected, "create_dir", p, nil)
	}
	if err := f.conn.MakeDir(p); err != nil {
		return fsys.NewError(fsys.KindIo, "create_dir", p, err)
	}
	return nil
}

// Symlink is unsupported: FTP has no link verb.
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
	if err := f.conn.Rename(src, dst); err != nil {
		return fsys.NewError(fsys.KindIo, "mov", src, err)
	}
	return nil
}

// Exec is unsupported: FTP is a file-transfer protocol with no shell.
func (f *FS) Exec(ctx context.Context, shellCommand string) (fsys.ExecResult, error) {
	return fsys.ExecResult{}, fsys.NewError(fsys.KindUnsupportedFeature, "exec", "", nil)
}

func (f *FS) OpenFile(ctx context.Context, p string) (*fsys.ReadStream, error) {
	if !f.connected {
		return nil, fsys.NewError(fsys.KindNotConnected, "open_file", p, nil)
	}
	file, err := f.Stat(ctx, p)
	if err != nil {
		return nil, err
	}
	resp, err := f.conn.Retr(p)
	if err != nil {
		return nil, fsys.NewError(fsys.KindIo, "open_file", p, err)
	}
	return &fsys.ReadStream{ReadCloser: resp, Size: file.Meta.Size}, nil
}

func (f *FS) CreateFile(ctx context.Context, p string, meta fsys.Metadata) (*fsys.WriteStream, error) {
	if !f.connected {
		return nil, fsys.NewError(fsys.KindNotConnected, "create_file", p, nil)
	}
	pr, pw := writePipe()
	done := make(chan error, 1)
	go func() {
		done <- f.conn.Stor(p, pr)
	}()
	return &fsys.WriteStream{WriteCloser: &storWriter{pw: pw, done: done}}, nil
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
	if dir == "" {
		dir = "."
	}
	entries, err := f.conn.List(dir)
	if err != nil {
		return nil, fsys.NewError(fsys.KindNoSuchFile, "find", glob, err)
	}
	out := make([]fsys.File, 0)
	for _, e := range entries {
		ok, err := path.Match(pattern, e.Name)
		if err != nil {
			return nil, fsys.NewError(fsys.KindSyntax, "find", glob, err)
		}
		if ok {
			out = append(out, fileFromEntry(path.Join(dir, e.Name), e))
		}
	}
	return out, nil
}

func fileFromEntry(p string, e *ftp.Entry) fsys.File {
	t := fsys.TypeRegular
	switch e.Type {
	case ftp.EntryTypeFolder:
		t = fsys.TypeDirectory
	case ftp.EntryTypeLink:
		t = fsys.TypeSymlink
	}
	size := int64(e.Size)
	if t == fsys.TypeDirectory {
		size = 0
	}
	return fsys.File{
		Path: p,
		Meta: fsys.Metadata{
			Type:          t,
			Size:          size,
			Modified:      e.Time,
			SymlinkTarget: e.Target,
		},
	}
}

// storWriter buffers writes through an in-memory pipe into the
// background STOR goroutine, since jlaffaye/ftp's Stor takes an
// io.Reader rather than exposing an incremental writer.
type storWriter struct {
	pw   *io.PipeWriter
	done chan error
}

func (s *storWriter) Write(p []byte) (int, error) { return s.pw.Write(p) }
func (s *storWriter) Close() error {
	_ = s.pw.Close()
	return <-s.done
}

func writePipe() (*io.PipeReader, *io.PipeWriter) {
	return io.Pipe()
}
