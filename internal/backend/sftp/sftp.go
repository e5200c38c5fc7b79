// Package sftp implements the SFTP protocol adapter (spec §4.2) over
// github.com/pkg/sftp and golang.org/x/crypto/ssh, mirroring the
// teacher's backend/sftp connection-pool-free single-session shape
// adapted to termscp's single-session-per-tab model.
package sftp

import (
	"bytes"
	"context"
	"io/ioutil"
	"net"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/pkg/sftp"
	"github.com/sirupsen/logrus"
	sshagent "github.com/xanzy/ssh-agent"
	"golang.org/x/crypto/ssh"

	"github.com/veeso-termscp/termscp-core/fsys"
)

var log = logrus.WithField("component", "backend.sftp")

// Params configures a session per spec §4.2.
type Params struct {
	Host        string
	Port        int
	Username    string
	Password    string
	KeyFile     string
	KeyFilePass string
	KeyUseAgent bool
}

// PasswordMissing reports whether a password still needs to be
// injected before connecting: true only when neither a password nor a
// key-based auth method is configured.
func (p Params) PasswordMissing() bool {
	return p.Password == "" && p.KeyFile == "" && !p.KeyUseAgent
}

// SetDefaultSecret sets the password to secret, replacing any value
// already present; the credential flow uses it to inject a stored
// bookmark secret.
func (p *Params) SetDefaultSecret(secret string) {
	p.Password = secret
}

// FS is the SFTP implementation of fsys.FS.
type FS struct {
	params    Params
	sshConfig *ssh.ClientConfig
	sshClient *ssh.Client
	client    *sftp.Client
	wd        string
	connected bool
}

// New builds an unconnected SFTP adapter from the given params.
func New(p Params) (*FS, error) {
	if p.Port == 0 {
		p.Port = 22
	}
	cfg := &ssh.ClientConfig{
		User:            p.Username,
		Auth:            []ssh.AuthMethod{},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         30 * time.Second,
		ClientVersion:   "SSH-2.0-termscp",
	}

	switch {
	case p.Password != "":
		cfg.Auth = append(cfg.Auth, ssh.Password(p.Password))
	case p.KeyFile != "":
		key, err := ioutil.ReadFile(p.KeyFile)
		if err != nil {
			return nil, fsys.NewError(fsys.KindIo, "new", p.KeyFile, err)
		}
		var signer ssh.Signer
		if p.KeyFilePass != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(p.KeyFilePass))
		} else {
			signer, err = ssh.ParsePrivateKey(key)
		}
		if err != nil {
			return nil, fsys.NewError(fsys.KindAuthFailed, "new", p.KeyFile, err)
		}
		cfg.Auth = append(cfg.Auth, ssh.PublicKeys(signer))
	case p.KeyUseAgent:
		agentClient, _, err := sshagent.New()
		if err != nil {
			return nil, fsys.NewError(fsys.KindAuthFailed, "new", "", errors.Wrap(err, "couldn't connect to ssh-agent"))
		}
		signers, err := agentClient.Signers()
		if err != nil {
			return nil, fsys.NewError(fsys.KindAuthFailed, "new", "", errors.Wrap(err, "couldn't read ssh-agent signers"))
		}
		cfg.Auth = append(cfg.Auth, ssh.PublicKeys(signers...))
	default:
		return nil, fsys.NewError(fsys.KindAuthFailed, "new", "", errors.New("no authentication method configured"))
	}

	return &FS{params: p, sshConfig: cfg}, nil
}

func (f *FS) Connect(ctx context.Context) (fsys.Welcome, error) {
	addr := net.JoinHostPort(f.params.Host, strconv.Itoa(f.params.Port))
	client, err := ssh.Dial("tcp", addr, f.sshConfig)
	if err != nil {
		return fsys.Welcome{}, fsys.NewError(fsys.KindNetwork, "connect", addr, err)
	}
	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		return fsys.Welcome{}, fsys.NewError(fsys.KindNetwork, "connect", addr, errors.Wrap(err, "couldn't initialise SFTP"))
	}
	f.sshClient = client
	f.client = sftpClient
	f.connected = true
	wd, err := f.client.Getwd()
	if err != nil {
		log.WithError(err).Warn("couldn't read current directory, defaulting to /")
		wd = "/"
	}
	f.wd = wd
	return fsys.Welcome{}, nil
}

func (f *FS) Disconnect(ctx context.Context) error {
	if f.client != nil {
		_ = f.client.Close()
	}
	if f.sshClient != nil {
		_ = f.sshClient.Close()
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
	info, err := f.client.Stat(dir)
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
	infos, err := f.client.ReadDir(dir)
	if err != nil {
		return nil, mapErr("list_dir", dir, err)
	}
	out := make([]fsys.File, 0, len(infos))
	for _, info := range infos {
		p := path.Join(dir, info.Name())
		ff := fileFromInfo(p, info)
		if info.Mode()&sftpSymlinkBit != 0 {
			if target, err := f.client.ReadLink(p); err == nil {
				ff.Meta.Type = fsys.TypeSymlink
				ff.Meta.SymlinkTarget = target
			}
		}
		out = append(out, ff)
	}
	return out, nil
}

func (f *FS) Stat(ctx context.Context, p string) (fsys.File, error) {
	if !f.connected {
		return fsys.File{}, fsys.NewError(fsys.KindNotConnected, "stat", p, nil)
	}
	info, err := f.client.Lstat(p)
	if err != nil {
		return fsys.File{}, mapErr("stat", p, err)
	}
	ff := fileFromInfo(p, info)
	if info.Mode()&sftpSymlinkBit != 0 {
		if target, err := f.client.ReadLink(p); err == nil {
			ff.Meta.SymlinkTarget = target
		}
	}
	return ff, nil
}

func (f *FS) Exists(ctx context.Context, p string) (bool, error) {
	if !f.connected {
		return false, fsys.NewError(fsys.KindNotConnected, "exists", p, nil)
	}
	_, err := f.client.Lstat(p)
	if err == nil {
		return true, nil
	}
	if kindOfSftpErr(err) == fsys.KindNoSuchFile {
		return false, nil
	}
	return false, mapErr("exists", p, err)
}

func (f *FS) SetStat(ctx context.Context, p string, delta fsys.MetadataDelta) error {
	if !f.connected {
		return fsys.NewError(fsys.KindNotConnected, "set_stat", p, nil)
	}
	if delta.Mode != nil && delta.Mode.Known {
		if err := f.client.Chmod(p, modeToOS(*delta.Mode)); err != nil {
			return mapErr("set_stat", p, err)
		}
	}
	if delta.Modified != nil {
		atime := time.Now()
		if delta.Accessed != nil {
			atime = *delta.Accessed
		}
		if err := f.client.Chtimes(p, atime, *delta.Modified); err != nil {
			return mapErr("set_stat", p, err)
		}
	}
	return nil
}

func (f *FS) RemoveFile(ctx context.Context, p string) error {
	if !f.connected {
		return fsys.NewError(fsys.KindNotConnected, "remove_file", p, nil)
	}
	if err := f.client.Remove(p); err != nil {
		return mapErr("remove_file", p, err)
	}
	return nil
}

func (f *FS) RemoveDirAll(ctx context.Context, p string) error {
	if !f.connected {
		return fsys.NewError(fsys.KindNotConnected, "remove_dir_all", p, nil)
	}
	entries, err := f.client.ReadDir(p)
	if err != nil {
		return mapErr("remove_dir_all", p, err)
	}
	for _, e := range entries {
		child := path.Join(p, e.Name())
		if e.IsDir() {
			if err := f.RemoveDirAll(ctx, child); err != nil {
				return err
			}
			continue
		}
		if err := f.client.Remove(child); err != nil {
			return mapErr("remove_dir_all", child, err)
		}
	}
	if err := f.client.RemoveDirectory(p); err != nil {
		return mapErr("remove_dir_all", p, err)
	}
	return nil
}

func (f *FS) CreateDir(ctx context.Context, p string, mode fsys.Mode) error {
	if !f.connected {
		return fsys.NewError(fsys.KindNotConnected, "create_dir", p, nil)
	}
	if _, err := f.client.Lstat(p); err == nil {
		return fsys.NewError(fsys.KindAlreadyExists, "create_dir", p, nil)
	}
	if err := f.client.Mkdir(p); err != nil {
		return mapErr("create_dir", p, err)
	}
	if mode.Known {
		_ = f.client.Chmod(p, modeToOS(mode))
	}
	return nil
}

func (f *FS) Symlink(ctx context.Context, p, target string) error {
	if !f.connected {
		return fsys.NewError(fsys.KindNotConnected, "symlink", p, nil)
	}
	if err := f.client.Symlink(target, p); err != nil {
		return mapErr("symlink", p, err)
	}
	return nil
}

// Copy is unsupported: SFTP has no server-side copy verb, so the
// transfer pipeline's tricky-copy fallback (download+upload through a
// scratch location) must be used instead (spec §4.4, §9).
func (f *FS) Copy(ctx context.Context, src, dst string) error {
	return fsys.NewError(fsys.KindUnsupportedFeature, "copy", src, nil)
}

func (f *FS) Mov(ctx context.Context, src, dst string) error {
	if !f.connected {
		return fsys.NewError(fsys.KindNotConnected, "mov", src, nil)
	}
	if err := f.client.Rename(src, dst); err != nil {
		return mapErr("mov", src, err)
	}
	return nil
}

func (f *FS) Exec(ctx context.Context, shellCommand string) (fsys.ExecResult, error) {
	if !f.connected {
		return fsys.ExecResult{}, fsys.NewError(fsys.KindNotConnected, "exec", "", nil)
	}
	session, err := f.sshClient.NewSession()
	if err != nil {
		return fsys.ExecResult{}, fsys.NewError(fsys.KindNetwork, "exec", "", err)
	}
	defer session.Close()
	var out bytes.Buffer
	session.Stdout = &out
	err = session.Run(shellCommand)
	exitCode := 0
	if err != nil {
		if ee, ok := err.(*ssh.ExitError); ok {
			exitCode = ee.ExitStatus()
		} else {
			return fsys.ExecResult{}, fsys.NewError(fsys.KindIo, "exec", "", err)
		}
	}
	return fsys.ExecResult{ExitCode: exitCode, Stdout: out.String()}, nil
}

func (f *FS) OpenFile(ctx context.Context, p string) (*fsys.ReadStream, error) {
	if !f.connected {
		return nil, fsys.NewError(fsys.KindNotConnected, "open_file", p, nil)
	}
	fh, err := f.client.Open(p)
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
	fh, err := f.client.Create(p)
	if err != nil {
		return nil, mapErr("create_file", p, err)
	}
	if meta.Mode.Known {
		_ = f.client.Chmod(p, modeToOS(meta.Mode))
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
	if dir == "" {
		dir = "."
	}
	infos, err := f.client.ReadDir(dir)
	if err != nil {
		return nil, mapErr("find", glob, err)
	}
	out := make([]fsys.File, 0)
	for _, info := range infos {
		ok, err := path.Match(pattern, info.Name())
		if err != nil {
			return nil, fsys.NewError(fsys.KindSyntax, "find", glob, err)
		}
		if ok {
			out = append(out, fileFromInfo(path.Join(dir, info.Name()), info))
		}
	}
	return out, nil
}

const sftpSymlinkBit = os.ModeSymlink

func fileFromInfo(p string, info os.FileInfo) fsys.File {
	t := fsys.TypeRegular
	switch {
	case info.IsDir():
		t = fsys.TypeDirectory
	case info.Mode()&os.ModeSymlink != 0:
		t = fsys.TypeSymlink
	case info.Mode()&os.ModeType != 0:
		t = fsys.TypeSpecial
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
	return fsys.Mode{Known: true, Owner: triple(6), Group: triple(3), All: triple(0)}
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

func kindOfSftpErr(err error) fsys.Kind {
	if os.IsNotExist(err) {
		return fsys.KindNoSuchFile
	}
	if os.IsPermission(err) {
		return fsys.KindPermissionDenied
	}
	if os.IsExist(err) {
		return fsys.KindAlreadyExists
	}
	if se, ok := err.(*sftp.StatusError); ok {
		switch se.Code {
		case sftp.ErrSSHFxNoSuchFile:
			return fsys.KindNoSuchFile
		case sftp.ErrSSHFxPermissionDenied:
			return fsys.KindPermissionDenied
		}
	}
	return fsys.KindIo
}

func mapErr(op, path string, err error) error {
	return fsys.NewError(kindOfSftpErr(err), op, path, err)
}
