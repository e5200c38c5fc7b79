// Package s3 implements the AWS S3 protocol adapter (spec §4.2) over
// github.com/aws/aws-sdk-go. A bucket is modeled as the whole
// filesystem; directories are synthetic, derived from "/"-delimited
// common prefixes the way every S3 console and CLI presents them.
package s3

import (
	"bytes"
	"context"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/sirupsen/logrus"

	"github.com/veeso-termscp/termscp-core/fsys"
)

var log = logrus.WithField("component", "backend.s3")

// Params configures a session per spec §4.2 / §7.3.
type Params struct {
	Bucket          string
	Region          string
	Endpoint        string
	Profile         string
	AccessKeyID     string
	SecretAccessKey string
	SecurityToken   string
	NewPathStyle    bool
}

// PasswordMissing reports whether a secret still needs to be injected
// before connecting: true only if neither a secret access key nor a
// security token is present (mirrors the original source's
// AwsS3Params::password_missing).
func (p Params) PasswordMissing() bool {
	return p.SecretAccessKey == "" && p.SecurityToken == ""
}

// SetDefaultSecret injects a stored secret access key.
func (p *Params) SetDefaultSecret(secret string) {
	p.SecretAccessKey = secret
}

// FS is the S3 implementation of fsys.FS. S3 is a stateless REST API,
// so there is no session: Connect probes the bucket with HeadBucket,
// and IsConnected reports true only once that probe has succeeded.
type FS struct {
	params    Params
	client    *s3.S3
	wd        string
	connected bool
}

// New builds an unconnected S3 adapter from the given params.
func New(p Params) (*FS, error) {
	if p.Region == "" {
		p.Region = "us-east-1"
	}
	return &FS{params: p, wd: "/"}, nil
}

func (f *FS) Connect(ctx context.Context) (fsys.Welcome, error) {
	cfg := aws.NewConfig().
		WithRegion(f.params.Region).
		WithS3ForcePathStyle(f.params.NewPathStyle)

	if f.params.Endpoint != "" {
		cfg = cfg.WithEndpoint(f.params.Endpoint)
	}
	if f.params.AccessKeyID != "" || f.params.SecretAccessKey != "" {
		cfg = cfg.WithCredentials(credentials.NewStaticCredentials(
			f.params.AccessKeyID, f.params.SecretAccessKey, f.params.SecurityToken))
	} else if f.params.Profile != "" {
		cfg = cfg.WithCredentials(credentials.NewSharedCredentials("", f.params.Profile))
	}

	sess, err := session.NewSession(cfg)
	if err != nil {
		return fsys.Welcome{}, fsys.NewError(fsys.KindNetwork, "connect", "", err)
	}
	client := s3.New(sess)
	if _, err := client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{Bucket: aws.String(f.params.Bucket)}); err != nil {
		return fsys.Welcome{}, fsys.NewError(fsys.KindAuthFailed, "connect", f.params.Bucket, err)
	}
	f.client = client
	f.connected = true
	return fsys.Welcome{}, nil
}

func (f *FS) Disconnect(ctx context.Context) error {
	f.connected = false
	f.client = nil
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
	exists, err := f.prefixExists(ctx, dir)
	if err != nil {
		return "", err
	}
	if !exists && dir != "/" && dir != "" {
		return "", fsys.NewError(fsys.KindNotADirectory, "change_dir", dir, nil)
	}
	f.wd = dir
	return f.wd, nil
}

func (f *FS) key(p string) string {
	return strings.TrimPrefix(p, "/")
}

func (f *FS) prefixExists(ctx context.Context, dir string) (bool, error) {
	prefix := f.key(dir)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	out, err := f.client.ListObjectsV2WithContext(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(f.params.Bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int64(1),
	})
	if err != nil {
		return false, fsys.NewError(fsys.KindNetwork, "change_dir", dir, err)
	}
	return len(out.Contents) > 0 || len(out.CommonPrefixes) > 0, nil
}

func (f *FS) ListDir(ctx context.Context, dir string) ([]fsys.File, error) {
	if !f.connected {
		return nil, fsys.NewError(fsys.KindNotConnected, "list_dir", dir, nil)
	}
	prefix := f.key(dir)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	out := make([]fsys.File, 0)
	err := f.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket:    aws.String(f.params.Bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(*cp.Prefix, prefix), "/")
			if name == "" {
				continue
			}
			out = append(out, fsys.File{
				Path: "/" + strings.TrimSuffix(*cp.Prefix, "/"),
				Meta: fsys.Metadata{Type: fsys.TypeDirectory},
			})
		}
		for _, obj := range page.Contents {
			if *obj.Key == prefix {
				continue
			}
			out = append(out, fsys.File{
				Path: "/" + *obj.Key,
				Meta: fsys.Metadata{
					Type:     fsys.TypeRegular,
					Size:     *obj.Size,
					Modified: *obj.LastModified,
				},
			})
		}
		return true
	})
	if err != nil {
		return nil, fsys.NewError(fsys.KindNetwork, "list_dir", dir, err)
	}
	return out, nil
}

func (f *FS) Stat(ctx context.Context, p string) (fsys.File, error) {
	if !f.connected {
		return fsys.File{}, fsys.NewError(fsys.KindNotConnected, "stat", p, nil)
	}
	key := f.key(p)
	head, err := f.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(f.params.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		exists, existsErr := f.prefixExists(ctx, p)
		if existsErr == nil && exists {
			return fsys.File{Path: p, Meta: fsys.Metadata{Type: fsys.TypeDirectory}}, nil
		}
		return fsys.File{}, fsys.NewError(fsys.KindNoSuchFile, "stat", p, err)
	}
	size := int64(0)
	if head.ContentLength != nil {
		size = *head.ContentLength
	}
	modified := time.Time{}
	if head.LastModified != nil {
		modified = *head.LastModified
	}
	return fsys.File{
		Path: p,
		Meta: fsys.Metadata{Type: fsys.TypeRegular, Size: size, Modified: modified},
	}, nil
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

// SetStat is unsupported: S3 objects have no POSIX mode/mtime to set;
// metadata is immutable after upload short of a full re-PUT.
func (f *FS) SetStat(ctx context.Context, p string, delta fsys.MetadataDelta) error {
	return fsys.NewError(fsys.KindUnsupportedFeature, "set_stat", p, nil)
}

func (f *FS) RemoveFile(ctx context.Context, p string) error {
	if !f.connected {
		return fsys.NewError(fsys.KindNotConnected, "remove_file", p, nil)
	}
	_, err := f.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(f.params.Bucket),
		Key:    aws.String(f.key(p)),
	})
	if err != nil {
		return fsys.NewError(fsys.KindIo, "remove_file", p, err)
	}
	return nil
}

func (f *FS) RemoveDirAll(ctx context.Context, p string) error {
	if !f.connected {
		return fsys.NewError(fsys.KindNotConnected, "remove_dir_all", p, nil)
	}
	prefix := f.key(p)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	var toDelete []*s3.ObjectIdentifier
	err := f.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(f.params.Bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			toDelete = append(toDelete, &s3.ObjectIdentifier{Key: obj.Key})
		}
		return true
	})
	if err != nil {
		return fsys.NewError(fsys.KindNetwork, "remove_dir_all", p, err)
	}
	for len(toDelete) > 0 {
		batch := toDelete
		if len(batch) > 1000 {
			batch = toDelete[:1000]
		}
		toDelete = toDelete[len(batch):]
		_, err := f.client.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(f.params.Bucket),
			Delete: &s3.Delete{Objects: batch},
		})
		if err != nil {
			return fsys.NewError(fsys.KindIo, "remove_dir_all", p, err)
		}
	}
	return nil
}

// CreateDir writes a zero-byte marker object at the "directory" key,
// the established S3-console convention for representing an empty
// prefix since S3 has no native directory object.
func (f *FS) CreateDir(ctx context.Context, p string, mode fsys.Mode) error {
	if !f.connected {
		return fsys.NewError(fsys.KindNotConnected, "create_dir", p, nil)
	}
	key := f.key(p)
	if !strings.HasSuffix(key, "/") {
		key += "/"
	}
	_, err := f.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(f.params.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return fsys.NewError(fsys.KindIo, "create_dir", p, err)
	}
	return nil
}

// Symlink is unsupported: S3 has no link object type.
func (f *FS) Symlink(ctx context.Context, p, target string) error {
	return fsys.NewError(fsys.KindUnsupportedFeature, "symlink", p, nil)
}

// Copy uses S3's server-side CopyObject, avoiding a download+upload
// round trip through the caller.
func (f *FS) Copy(ctx context.Context, src, dst string) error {
	if !f.connected {
		return fsys.NewError(fsys.KindNotConnected, "copy", src, nil)
	}
	source := path.Join(f.params.Bucket, f.key(src))
	_, err := f.client.CopyObjectWithContext(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(f.params.Bucket),
		CopySource: aws.String(source),
		Key:        aws.String(f.key(dst)),
	})
	if err != nil {
		return fsys.NewError(fsys.KindIo, "copy", src, err)
	}
	return nil
}

func (f *FS) Mov(ctx context.Context, src, dst string) error {
	if err := f.Copy(ctx, src, dst); err != nil {
		return err
	}
	return f.RemoveFile(ctx, src)
}

// Exec is unsupported: S3 is a storage API with no remote shell.
func (f *FS) Exec(ctx context.Context, shellCommand string) (fsys.ExecResult, error) {
	return fsys.ExecResult{}, fsys.NewError(fsys.KindUnsupportedFeature, "exec", "", nil)
}

func (f *FS) OpenFile(ctx context.Context, p string) (*fsys.ReadStream, error) {
	if !f.connected {
		return nil, fsys.NewError(fsys.KindNotConnected, "open_file", p, nil)
	}
	out, err := f.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.params.Bucket),
		Key:    aws.String(f.key(p)),
	})
	if err != nil {
		return nil, fsys.NewError(fsys.KindNoSuchFile, "open_file", p, err)
	}
	size := int64(0)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	return &fsys.ReadStream{ReadCloser: out.Body, Size: size}, nil
}

func (f *FS) CreateFile(ctx context.Context, p string, meta fsys.Metadata) (*fsys.WriteStream, error) {
	if !f.connected {
		return nil, fsys.NewError(fsys.KindNotConnected, "create_file", p, nil)
	}
	return &fsys.WriteStream{WriteCloser: &bufferedPut{ctx: ctx, fs: f, key: f.key(p)}}, nil
}

// bufferedPut accumulates a whole object in memory before issuing a
// single PutObject on Close, since the SDK's PutObject needs a
// seekable/length-known body rather than a streaming writer; large
// transfers should prefer the multipart uploader, left as future work.
type bufferedPut struct {
	ctx context.Context
	fs  *FS
	key string
	buf bytes.Buffer
}

func (b *bufferedPut) Write(p []byte) (int, error) { return b.buf.Write(p) }
func (b *bufferedPut) Close() error {
	_, err := b.fs.client.PutObjectWithContext(b.ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.fs.params.Bucket),
		Key:    aws.String(b.key),
		Body:   bytes.NewReader(b.buf.Bytes()),
	})
	return err
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
	entries, err := f.ListDir(ctx, "/"+strings.TrimPrefix(dir, "/"))
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
