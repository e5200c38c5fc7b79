package bookmarks

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veeso-termscp/termscp-core/internal/credential"
)

func newRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "bookmarks.toml")
	store := credential.NewFileStore(dir)
	reg, err := Load(path, store)
	require.NoError(t, err)
	return reg, path
}

func TestLoadMissingFileStartsEmpty(t *testing.T) {
	reg, _ := newRegistry(t)
	assert.Empty(t, reg.Names())
	assert.Empty(t, reg.Recents())
}

func TestSaveAndGetBookmarkWithoutPassword(t *testing.T) {
	reg, _ := newRegistry(t)
	b := Bookmark{Address: "example.com", Port: 22, Protocol: ProtocolSFTP, Username: "root"}
	require.NoError(t, reg.Save("my-server", b, "", false))

	got, ok := reg.Get("my-server")
	require.True(t, ok)
	assert.Equal(t, "example.com", got.Address)
	assert.Empty(t, got.StorageID)
}

func TestSavePersistsPasswordViaCredentialStore(t *testing.T) {
	reg, _ := newRegistry(t)
	b := Bookmark{Address: "example.com", Port: 22, Protocol: ProtocolSFTP, Username: "root"}
	require.NoError(t, reg.Save("my-server", b, "s3cr3t", true))

	got, ok := reg.Get("my-server")
	require.True(t, ok)
	assert.NotEmpty(t, got.StorageID)
}

func TestRegistrySurvivesReload(t *testing.T) {
	reg, path := newRegistry(t)
	b := Bookmark{Address: "example.com", Port: 21, Protocol: ProtocolFTP, Username: "anon"}
	require.NoError(t, reg.Save("ftp-server", b, "", false))

	reloaded, err := Load(path, credential.NewFileStore(filepath.Dir(path)))
	require.NoError(t, err)
	got, ok := reloaded.Get("ftp-server")
	require.True(t, ok)
	assert.Equal(t, "example.com", got.Address)
}

func TestDeleteRemovesBookmarkAndCredential(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bookmarks.toml")
	store := credential.NewFileStore(dir)
	reg, err := Load(path, store)
	require.NoError(t, err)

	b := Bookmark{Address: "example.com", Port: 22, Protocol: ProtocolSFTP, Username: "root"}
	require.NoError(t, reg.Save("my-server", b, "s3cr3t", true))
	got, _ := reg.Get("my-server")
	storageID := got.StorageID

	require.NoError(t, reg.Delete("my-server"))
	_, ok := reg.Get("my-server")
	assert.False(t, ok)

	_, err = store.GetKey(storageID)
	assert.Equal(t, credential.ErrKindNoSuchKey, credential.KindOf(err))
}

func TestAddRecentDedupesAndMovesToFront(t *testing.T) {
	reg, _ := newRegistry(t)
	r1 := Recent{Address: "a.com", Port: 22, Protocol: ProtocolSFTP, Username: "root"}
	r2 := Recent{Address: "b.com", Port: 21, Protocol: ProtocolFTP, Username: "anon"}

	require.NoError(t, reg.AddRecent(r1))
	require.NoError(t, reg.AddRecent(r2))
	require.NoError(t, reg.AddRecent(r1))

	recents := reg.Recents()
	require.Len(t, recents, 2)
	assert.Equal(t, "a.com", recents[0].Address)
	assert.Equal(t, "b.com", recents[1].Address)
}

func TestAddRecentCapsAtMaxRecents(t *testing.T) {
	reg, _ := newRegistry(t)
	for i := 0; i < MaxRecents+5; i++ {
		rec := Recent{Address: "host.com", Port: i, Protocol: ProtocolSFTP, Username: "root"}
		require.NoError(t, reg.AddRecent(rec))
	}
	assert.Len(t, reg.Recents(), MaxRecents)
}
