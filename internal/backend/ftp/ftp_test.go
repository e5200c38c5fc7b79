package ftp

import (
	"context"
	"testing"

	"github.com/jlaffaye/ftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veeso-termscp/termscp-core/fsys"
)

func TestNewDefaultsPort(t *testing.T) {
	f, err := New(Params{Host: "example.com"})
	require.NoError(t, err)
	assert.Equal(t, 21, f.params.Port)
}

func TestOperationsRejectedWhenNotConnected(t *testing.T) {
	f, err := New(Params{Host: "example.com"})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = f.Pwd(ctx)
	require.Error(t, err)
	assert.Equal(t, fsys.KindNotConnected, fsys.KindOf(err))
}

func TestSetStatUnsupported(t *testing.T) {
	f, err := New(Params{Host: "example.com"})
	require.NoError(t, err)
	err = f.SetStat(context.Background(), "/a", fsys.MetadataDelta{})
	require.Error(t, err)
	assert.Equal(t, fsys.KindUnsupportedFeature, fsys.KindOf(err))
}

func TestSymlinkAndCopyUnsupported(t *testing.T) {
	f, err := New(Params{Host: "example.com"})
	require.NoError(t, err)
	ctx := context.Background()

	err = f.Symlink(ctx, "/a", "/b")
	assert.Equal(t, fsys.KindUnsupportedFeature, fsys.KindOf(err))

	err = f.Copy(ctx, "/a", "/b")
	assert.Equal(t, fsys.KindUnsupportedFeature, fsys.KindOf(err))
}

func TestExecUnsupported(t *testing.T) {
	f, err := New(Params{Host: "example.com"})
	require.NoError(t, err)
	_, err = f.Exec(context.Background(), "ls")
	assert.Equal(t, fsys.KindUnsupportedFeature, fsys.KindOf(err))
}

func TestFileFromEntryDirectory(t *testing.T) {
	e := &ftp.Entry{Name: "dir", Type: ftp.EntryTypeFolder, Size: 512}
	file := fileFromEntry("/root/dir", e)
	assert.Equal(t, fsys.TypeDirectory, file.Meta.Type)
	assert.EqualValues(t, 0, file.Meta.Size)
}

func TestFileFromEntryRegular(t *testing.T) {
	e := &ftp.Entry{Name: "a.txt", Type: ftp.EntryTypeFile, Size: 42}
	file := fileFromEntry("/root/a.txt", e)
	assert.Equal(t, fsys.TypeRegular, file.Meta.Type)
	assert.EqualValues(t, 42, file.Meta.Size)
}

func TestParamsPasswordMissing(t *testing.T) {
	assert.True(t, Params{Host: "example.com"}.PasswordMissing())
	p := Params{Host: "example.com"}
	p.SetDefaultSecret("injected")
	assert.Equal(t, "injected", p.Password)
	assert.False(t, p.PasswordMissing())
}
