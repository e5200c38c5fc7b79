package credential

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreMakeFilePath(t *testing.T) {
	s := NewFileStore("/tmp")
	assert.Equal(t, filepath.Join("/tmp", ".bookmarks.key"), s.makeFilePath("bookmarks"))
}

func TestFileStoreRoundtrip(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	assert.True(t, s.IsSupported())

	_, err := s.GetKey("termscp")
	require.Error(t, err)
	assert.Equal(t, ErrKindNoSuchKey, KindOf(err))

	require.NoError(t, s.SetKey("termscp", "Th15-15-My-Secret"))

	key, err := s.GetKey("termscp")
	require.NoError(t, err)
	assert.Equal(t, "Th15-15-My-Secret", key)
}

func TestFileStoreSetKeyFailsOnUnwritableDir(t *testing.T) {
	s := NewFileStore("/piro/poro/pero")
	err := s.SetKey("termscp", "secret")
	assert.Error(t, err)
}

func TestFileStoreDeleteKeyIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	require.NoError(t, s.SetKey("termscp", "secret"))
	require.NoError(t, s.DeleteKey("termscp"))
	require.NoError(t, s.DeleteKey("termscp"))

	_, err := s.GetKey("termscp")
	assert.Equal(t, ErrKindNoSuchKey, KindOf(err))
}
