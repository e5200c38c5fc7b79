package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veeso-termscp/termscp-core/fsys"
	"github.com/veeso-termscp/termscp-core/internal/backend/local"
	"github.com/veeso-termscp/termscp-core/internal/transfer"
)

func TestToggleWatchRegistersAndUnregisters(t *testing.T) {
	dir := t.TempDir()

	localFS, err := local.New()
	require.NoError(t, err)
	_, err = localFS.Connect(context.Background())
	require.NoError(t, err)

	w := New(localFS, transfer.New(transfer.Options{}))

	err = w.ToggleWatch(context.Background(), localFS, dir, "/remote")
	require.NoError(t, err)
	assert.Len(t, w.List(), 1)

	err = w.ToggleWatch(context.Background(), localFS, dir, "/remote")
	require.NoError(t, err)
	assert.Len(t, w.List(), 0)
}

func TestToggleWatchForUnregistersByIndex(t *testing.T) {
	dir := t.TempDir()
	localFS, err := local.New()
	require.NoError(t, err)
	_, err = localFS.Connect(context.Background())
	require.NoError(t, err)

	w := New(localFS, transfer.New(transfer.Options{}))
	require.NoError(t, w.ToggleWatch(context.Background(), localFS, dir, "/remote"))
	require.NoError(t, w.ToggleWatchFor(0))
	assert.Len(t, w.List(), 0)
}

func TestMirrorCreatesRemoteDirectoryForLocalDirectory(t *testing.T) {
	dir := t.TempDir()
	localFS, err := local.New()
	require.NoError(t, err)
	_, err = localFS.Connect(context.Background())
	require.NoError(t, err)

	remoteDir := t.TempDir()
	remoteFS, err := local.New()
	require.NoError(t, err)
	_, err = remoteFS.Connect(context.Background())
	require.NoError(t, err)

	w := New(localFS, transfer.New(transfer.Options{}))
	reg := &registration{watch: Watch{LocalRoot: dir, RemoteRoot: remoteDir}}

	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))

	w.mirror(context.Background(), remoteFS, reg, sub, 0)

	_, err = os.Stat(filepath.Join(remoteDir, "sub"))
	assert.NoError(t, err)
}

func TestShutdownDrainsPendingWatches(t *testing.T) {
	dir := t.TempDir()
	localFS, err := local.New()
	require.NoError(t, err)
	_, err = localFS.Connect(context.Background())
	require.NoError(t, err)

	w := New(localFS, transfer.New(transfer.Options{}))
	require.NoError(t, w.ToggleWatch(context.Background(), localFS, dir, "/remote"))

	done := make(chan struct{})
	go func() {
		w.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not return")
	}
}
