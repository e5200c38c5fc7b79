package s3

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veeso-termscp/termscp-core/fsys"
)

func TestNewDefaultsRegion(t *testing.T) {
	f, err := New(Params{Bucket: "my-bucket"})
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", f.params.Region)
}

func TestKeyStripsLeadingSlash(t *testing.T) {
	f, err := New(Params{Bucket: "my-bucket"})
	require.NoError(t, err)
	assert.Equal(t, "a/b.txt", f.key("/a/b.txt"))
	assert.Equal(t, "a/b.txt", f.key("a/b.txt"))
}

func TestOperationsRejectedWhenNotConnected(t *testing.T) {
	f, err := New(Params{Bucket: "my-bucket"})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = f.Pwd(ctx)
	require.Error(t, err)
	assert.Equal(t, fsys.KindNotConnected, fsys.KindOf(err))

	_, err = f.ListDir(ctx, "/")
	require.Error(t, err)
	assert.Equal(t, fsys.KindNotConnected, fsys.KindOf(err))
}

func TestSetStatAndSymlinkUnsupported(t *testing.T) {
	f, err := New(Params{Bucket: "my-bucket"})
	require.NoError(t, err)
	ctx := context.Background()

	err = f.SetStat(ctx, "/a", fsys.MetadataDelta{})
	assert.Equal(t, fsys.KindUnsupportedFeature, fsys.KindOf(err))

	err = f.Symlink(ctx, "/a", "/b")
	assert.Equal(t, fsys.KindUnsupportedFeature, fsys.KindOf(err))
}

func TestExecUnsupported(t *testing.T) {
	f, err := New(Params{Bucket: "my-bucket"})
	require.NoError(t, err)
	_, err = f.Exec(context.Background(), "ls")
	assert.Equal(t, fsys.KindUnsupportedFeature, fsys.KindOf(err))
}

func TestParamsPasswordMissing(t *testing.T) {
	assert.True(t, Params{Bucket: "b"}.PasswordMissing())
	assert.False(t, Params{Bucket: "b", SecurityToken: "tok"}.PasswordMissing())
	p := Params{Bucket: "b"}
	p.SetDefaultSecret("injected")
	assert.Equal(t, "injected", p.SecretAccessKey)
	assert.False(t, p.PasswordMissing())
}
