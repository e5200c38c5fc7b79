// Package webdav implements the WebDAV protocol adapter (spec §4.2)
// over net/http and encoding/xml, issuing PROPFIND/MKCOL/MOVE/COPY
// requests directly per RFC 4918 rather than a third-party client.
package webdav

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/veeso-termscp/termscp-core/fsys"
)

var log = logrus.WithField("component", "backend.webdav")

// Params configures a session per spec §4.2.
type Params struct {
	Endpoint string
	Username string
	Password string
}

// PasswordMissing reports whether a password still needs to be
// injected before connecting.
func (p Params) PasswordMissing() bool {
	return p.Password == ""
}

// SetDefaultSecret injects a stored password.
func (p *Params) SetDefaultSecret(secret string) {
	p.Password = secret
}

// FS is the WebDAV implementation of fsys.FS.
type FS struct {
	params    Params
	base      *url.URL
	client    *http.Client
	wd        string
	connected bool
}

// New builds an unconnected WebDAV adapter from the given params.
func New(p Params) (*FS, error) {
	u, err := url.Parse(p.Endpoint)
	if err != nil {
		return nil, fsys.NewError(fsys.KindSyntax, "new", p.Endpoint, err)
	}
	return &FS{params: p, base: u, client: &http.Client{Timeout: 60 * time.Second}, wd: "/"}, nil
}

func (f *FS) Connect(ctx context.Context) (fsys.Welcome, error) {
	_, err := f.propfind(ctx, "/", "0")
	if err != nil {
		return fsys.Welcome{}, fsys.NewError(fsys.KindAuthFailed, "connect", f.params.Endpoint, err)
	}
	f.connected = true
	return fsys.Welcome{}, nil
}

func (f *FS) Disconnect(ctx context.Context) error {
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
	ms, err := f.propfind(ctx, dir, "0")
	if err != nil {
		return "", fsys.NewError(fsys.KindNoSuchFile, "change_dir", dir, err)
	}
	if len(ms.Responses) == 0 || !ms.Responses[0].isCollection() {
		return "", fsys.NewError(fsys.KindNotADirectory, "change_dir", dir, nil)
	}
	f.wd = dir
	return f.wd, nil
}

func (f *FS) resolve(p string) *url.URL {
	u := *f.base
	u.Path = path.Join(u.Path, p)
	return &u
}

func (f *FS) newRequest(ctx context.Context, method, p string, body io.Reader, headers map[string]string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, f.resolve(p).String(), body)
	if err != nil {
		return nil, err
	}
	if f.params.Username != "" {
		req.SetBasicAuth(f.params.Username, f.params.Password)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

type multistatus struct {
	Responses []davResponse `xml:"response"`
}

type davResponse struct {
	Href string  `xml:"href"`
	Prop davProp `xml:"propstat>prop"`
}

type davProp struct {
	DisplayName  string    `xml:"displayname"`
	ResourceType *xml.Name `xml:"resourcetype>collection"`
	Size         int64     `xml:"getcontentlength"`
	Modified     string    `xml:"getlastmodified"`
}

func (r davResponse) isCollection() bool { return r.Prop.ResourceType != nil }

func (r davResponse) modTime() time.Time {
	t, err := time.Parse(time.RFC1123, r.Prop.Modified)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (f *FS) propfind(ctx context.Context, p, depth string) (*multistatus, error) {
	body := `<?xml version="1.0"?><d:propfind xmlns:d="DAV:"><d:allprop/></d:propfind>`
	req, err := f.newRequest(ctx, "PROPFIND", p, strings.NewReader(body), map[string]string{
		"Depth":        depth,
		"Content-Type": "application/xml",
	})
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fsys.NewError(fsys.KindNoSuchFile, "propfind", p, nil)
	}
	if resp.StatusCode != http.StatusMultiStatus && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("propfind %s: unexpected status %s", p, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var ms multistatus
	if err := xml.Unmarshal(data, &ms); err != nil {
		return nil, fsys.NewError(fsys.KindBadEncoding, "propfind", p, err)
	}
	return &ms, nil
}

var hrefTrailingSlash = regexp.MustCompile(`/$`)

func (f *FS) ListDir(ctx context.Context, dir string) ([]fsys.File, error) {
	if !f.connected {
		return nil, fsys.NewError(fsys.KindNotConnected, "list_dir", dir, nil)
	}
	ms, err := f.propfind(ctx, dir, "1")
	if err != nil {
		return nil, err
	}
	base, err := url.PathUnescape(f.resolve(dir).Path)
	if err != nil {
		base = f.resolve(dir).Path
	}
	base = hrefTrailingSlash.ReplaceAllString(base, "")
	out := make([]fsys.File, 0, len(ms.Responses))
	for _, r := range ms.Responses {
		href, err := url.PathUnescape(r.Href)
		if err != nil {
			href = r.Href
		}
		href = hrefTrailingSlash.ReplaceAllString(href, "")
		if href == base {
			continue
		}
		out = append(out, fileFromResponse(path.Join(dir, path.Base(href)), r))
	}
	return out, nil
}

func (f *FS) Stat(ctx context.Context, p string) (fsys.File, error) {
	if !f.connected {
		return fsys.File{}, fsys.NewError(fsys.KindNotConnected, "stat", p, nil)
	}
	ms, err := f.propfind(ctx, p, "0")
	if err != nil {
		return fsys.File{}, err
	}
	if len(ms.Responses) == 0 {
		return fsys.File{}, fsys.NewError(fsys.KindNoSuchFile, "stat", p, nil)
	}
	return fileFromResponse(p, ms.Responses[0]), nil
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

// SetStat is unsupported: RFC 4918 exposes no PROPPATCH property for
// POSIX mode bits, and getlastmodified is server-computed and read-only.
func (f *FS) SetStat(ctx context.Context, p string, delta fsys.MetadataDelta) error {
	return fsys.NewError(fsys.KindUnsupportedFeature, "set_stat", p, nil)
}

func (f *FS) do(ctx context.Context, method, p string, headers map[string]string) error {
	req, err := f.newRequest(ctx, method, p, nil, headers)
	if err != nil {
		return err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s: status %s", method, p, resp.Status)
	}
	return nil
}

func (f *FS) RemoveFile(ctx context.Context, p string) error {
	if !f.connected {
		return fsys.NewError(fsys.KindNotConnected, "remove_file", p, nil)
	}
	if err := f.do(ctx, "DELETE", p, nil); err != nil {
		return fsys.NewError(fsys.KindIo, "remove_file", p, err)
	}
	return nil
}

func (f *FS) RemoveDirAll(ctx context.Context, p string) error {
	if !f.connected {
		return fsys.NewError(fsys.KindNotConnected, "remove_dir_all", p, nil)
	}
	if err := f.do(ctx, "DELETE", p, nil); err != nil {
		return fsys.NewError(fsys.KindIo, "remove_dir_all", p, err)
	}
	return nil
}

func (f *FS) CreateDir(ctx context.Context, p string, mode fsys.Mode) error {
	if !f.connected {
		return fsys.NewError(fsys.KindNotConnected, "create_dir", p, nil)
	}
	if err := f.do(ctx, "MKCOL", p, nil); err != nil {
		return fsys.NewError(fsys.KindIo, "create_dir", p, err)
	}
	return nil
}

// Symlink is unsupported: WebDAV has no link resource type.
func (f *FS) Symlink(ctx context.Context, p, target string) error {
	return fsys.NewError(fsys.KindUnsupportedFeature, "symlink", p, nil)
}

func (f *FS) Copy(ctx context.Context, src, dst string) error {
	if !f.connected {
		return fsys.NewError(fsys.KindNotConnected, "copy", src, nil)
	}
	dest := f.resolve(dst).String()
	if err := f.do(ctx, "COPY", src, map[string]string{"Destination": dest, "Overwrite": "F"}); err != nil {
		return fsys.NewError(fsys.KindIo, "copy", src, err)
	}
	return nil
}

func (f *FS) Mov(ctx context.Context, src, dst string) error {
	if !f.connected {
		return fsys.NewError(fsys.KindNotConnected, "mov", src, nil)
	}
	dest := f.resolve(dst).String()
	if err := f.do(ctx, "MOVE", src, map[string]string{"Destination": dest, "Overwrite": "F"}); err != nil {
		return fsys.NewError(fsys.KindIo, "mov", src, err)
	}
	return nil
}

// Exec is unsupported: WebDAV is a document-management protocol with
// no remote execution verb.
func (f *FS) Exec(ctx context.Context, shellCommand string) (fsys.ExecResult, error) {
	return fsys.ExecResult{}, fsys.NewError(fsys.KindUnsupportedFeature, "exec", "", nil)
}

func (f *FS) OpenFile(ctx context.Context, p string) (*fsys.ReadStream, error) {
	if !f.connected {
		return nil, fsys.NewError(fsys.KindNotConnected, "open_file", p, nil)
	}
	req, err := f.newRequest(ctx, "GET", p, nil, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fsys.NewError(fsys.KindNetwork, "open_file", p, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, fsys.NewError(fsys.KindNoSuchFile, "open_file", p, nil)
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, fsys.NewError(fsys.KindIo, "open_file", p, fmt.Errorf("status %s", resp.Status))
	}
	return &fsys.ReadStream{ReadCloser: resp.Body, Size: resp.ContentLength}, nil
}

func (f *FS) CreateFile(ctx context.Context, p string, meta fsys.Metadata) (*fsys.WriteStream, error) {
	if !f.connected {
		return nil, fsys.NewError(fsys.KindNotConnected, "create_file", p, nil)
	}
	return &fsys.WriteStream{WriteCloser: &putWriter{ctx: ctx, fs: f, path: p}}, nil
}

// putWriter buffers the whole body before issuing PUT on Close, since
// WebDAV's PUT needs a single request with a known Content-Length for
// servers that reject chunked transfer encoding.
type putWriter struct {
	ctx  context.Context
	fs   *FS
	path string
	buf  bytes.Buffer
}

func (w *putWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }
func (w *putWriter) Close() error {
	req, err := w.fs.newRequest(w.ctx, "PUT", w.path, bytes.NewReader(w.buf.Bytes()), nil)
	if err != nil {
		return err
	}
	req.ContentLength = int64(w.buf.Len())
	resp, err := w.fs.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("PUT %s: status %s", w.path, resp.Status)
	}
	return nil
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

func fileFromResponse(p string, r davResponse) fsys.File {
	t := fsys.TypeRegular
	size := r.Prop.Size
	if r.isCollection() {
		t = fsys.TypeDirectory
		size = 0
	}
	return fsys.File{
		Path: p,
		Meta: fsys.Metadata{
			Type:     t,
			Size:     size,
			Modified: r.modTime(),
		},
	}
}
