package transfer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veeso-termscp/termscp-core/fsys"
	"github.com/veeso-termscp/termscp-core/internal/backend/local"
)

func newConnectedLocal(t *testing.T) *local.FS {
	t.Helper()
	fs, err := local.New()
	require.NoError(t, err)
	_, err = fs.Connect(context.Background())
	require.NoError(t, err)
	return fs
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRecvRoundTripsFileContent(t *testing.T) {
	srcDir, dstDir := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(srcDir, "hello.txt"), "hello, world")

	src, dst := newConnectedLocal(t), newConnectedLocal(t)
	entry, err := src.Stat(context.Background(), filepath.Join(srcDir, "hello.txt"))
	require.NoError(t, err)

	p := New(Options{})
	err = p.Recv(context.Background(), src, dst, fsys.PayloadFile(entry), dstDir, "")
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dstDir, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello, world", string(got))
	assert.Equal(t, int64(len("hello, world")), p.State().FullSize())
}

func TestSendRoundTripsFileContentUnderSaveAs(t *testing.T) {
	srcDir, dstDir := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(srcDir, "hello.txt"), "payload")

	src, dst := newConnectedLocal(t), newConnectedLocal(t)
	entry, err := src.Stat(context.Background(), filepath.Join(srcDir, "hello.txt"))
	require.NoError(t, err)

	p := New(Options{})
	err = p.Send(context.Background(), src, dst, fsys.PayloadFile(entry), dstDir, "renamed.txt")
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dstDir, "renamed.txt"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
}

func TestRunRecursesIntoDirectories(t *testing.T) {
	srcDir, dstDir := t.TempDir(), t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(srcDir, "sub"), 0o755))
	writeFile(t, filepath.Join(srcDir, "sub", "a.txt"), "aaa")
	writeFile(t, filepath.Join(srcDir, "sub", "b.txt"), "bbbb")

	src, dst := newConnectedLocal(t), newConnectedLocal(t)
	entry, err := src.Stat(context.Background(), filepath.Join(srcDir, "sub"))
	require.NoError(t, err)

	p := New(Options{})
	err = p.Send(context.Background(), src, dst, fsys.PayloadAny(entry), dstDir, "")
	require.NoError(t, err)

	gotA, err := os.ReadFile(filepath.Join(dstDir, "sub", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "aaa", string(gotA))
	gotB, err := os.ReadFile(filepath.Join(dstDir, "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "bbbb", string(gotB))

	// Full batch size covers every file under the recursed directory.
	assert.Equal(t, int64(len("aaa")+len("bbbb")), p.State().FullSize())
}

func TestRunSkipsExistingDestinationOnSkipDecision(t *testing.T) {
	srcDir, dstDir := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(srcDir, "hello.txt"), "new")
	writeFile(t, filepath.Join(dstDir, "hello.txt"), "old")

	src, dst := newConnectedLocal(t), newConnectedLocal(t)
	entry, err := src.Stat(context.Background(), filepath.Join(srcDir, "hello.txt"))
	require.NoError(t, err)

	p := New(Options{
		PromptOnReplace: true,
		Prompt:          func(string) ReplaceDecision { return Skip },
	})
	err = p.Send(context.Background(), src, dst, fsys.PayloadFile(entry), dstDir, "")
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dstDir, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(got))
}

func TestRunOverwritesExistingDestinationOnOverwriteDecision(t *testing.T) {
	srcDir, dstDir := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(srcDir, "hello.txt"), "new")
	writeFile(t, filepath.Join(dstDir, "hello.txt"), "old")

	src, dst := newConnectedLocal(t), newConnectedLocal(t)
	entry, err := src.Stat(context.Background(), filepath.Join(srcDir, "hello.txt"))
	require.NoError(t, err)

	p := New(Options{
		PromptOnReplace: true,
		Prompt:          func(string) ReplaceDecision { return Overwrite },
	})
	err = p.Send(context.Background(), src, dst, fsys.PayloadFile(entry), dstDir, "")
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dstDir, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}

func TestRunAppliesSkipAllAcrossBatch(t *testing.T) {
	srcDir, dstDir := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(srcDir, "a.txt"), "new-a")
	writeFile(t, filepath.Join(srcDir, "b.txt"), "new-b")
	writeFile(t, filepath.Join(dstDir, "a.txt"), "old-a")
	writeFile(t, filepath.Join(dstDir, "b.txt"), "old-b")

	src, dst := newConnectedLocal(t), newConnectedLocal(t)
	a, err := src.Stat(context.Background(), filepath.Join(srcDir, "a.txt"))
	require.NoError(t, err)
	b, err := src.Stat(context.Background(), filepath.Join(srcDir, "b.txt"))
	require.NoError(t, err)

	calls := 0
	p := New(Options{
		PromptOnReplace: true,
		Prompt: func(string) ReplaceDecision {
			calls++
			return SkipAll
		},
	})
	err = p.Send(context.Background(), src, dst, fsys.PayloadMany([]fsys.File{a, b}), dstDir, "")
	require.NoError(t, err)

	// SkipAll on the first entry must short-circuit the prompt for the rest.
	assert.Equal(t, 1, calls)

	gotA, err := os.ReadFile(filepath.Join(dstDir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "old-a", string(gotA))
	gotB, err := os.ReadFile(filepath.Join(dstDir, "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "old-b", string(gotB))
}

func TestRunAppliesOverwriteAllAcrossBatch(t *testing.T) {
	srcDir, dstDir := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(srcDir, "a.txt"), "new-a")
	writeFile(t, filepath.Join(srcDir, "b.txt"), "new-b")
	writeFile(t, filepath.Join(dstDir, "a.txt"), "old-a")
	writeFile(t, filepath.Join(dstDir, "b.txt"), "old-b")

	src, dst := newConnectedLocal(t), newConnectedLocal(t)
	a, err := src.Stat(context.Background(), filepath.Join(srcDir, "a.txt"))
	require.NoError(t, err)
	b, err := src.Stat(context.Background(), filepath.Join(srcDir, "b.txt"))
	require.NoError(t, err)

	calls := 0
	p := New(Options{
		PromptOnReplace: true,
		Prompt: func(string) ReplaceDecision {
			calls++
			return OverwriteAll
		},
	})
	err = p.Send(context.Background(), src, dst, fsys.PayloadMany([]fsys.File{a, b}), dstDir, "")
	require.NoError(t, err)

	assert.Equal(t, 1, calls)

	gotA, err := os.ReadFile(filepath.Join(dstDir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "new-a", string(gotA))
	gotB, err := os.ReadFile(filepath.Join(dstDir, "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "new-b", string(gotB))
}

func TestRunCancelBatchStopsRemainingEntries(t *testing.T) {
	srcDir, dstDir := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(srcDir, "a.txt"), "new-a")
	writeFile(t, filepath.Join(srcDir, "b.txt"), "new-b")
	writeFile(t, filepath.Join(dstDir, "a.txt"), "old-a")

	src, dst := newConnectedLocal(t), newConnectedLocal(t)
	a, err := src.Stat(context.Background(), filepath.Join(srcDir, "a.txt"))
	require.NoError(t, err)
	b, err := src.Stat(context.Background(), filepath.Join(srcDir, "b.txt"))
	require.NoError(t, err)

	p := New(Options{
		PromptOnReplace: true,
		Prompt:          func(string) ReplaceDecision { return CancelBatch },
	})
	err = p.Send(context.Background(), src, dst, fsys.PayloadMany([]fsys.File{a, b}), dstDir, "")
	require.Error(t, err)
	assert.Equal(t, fsys.KindAborted, fsys.KindOf(err))

	_, statErr := os.Stat(filepath.Join(dstDir, "b.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestTrickyCopyStagesThroughScratchAndRemoves(t *testing.T) {
	srcDir, dstDir := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(srcDir, "hello.txt"), "tricky")

	fs := newConnectedLocal(t)
	p := New(Options{})
	err := p.TrickyCopy(context.Background(), fs,
		filepath.Join(srcDir, "hello.txt"), filepath.Join(dstDir, "hello.txt"), true)
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dstDir, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "tricky", string(got))

	_, statErr := os.Stat(filepath.Join(srcDir, "hello.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestTrickyCopyWithoutMoveKeepsSource(t *testing.T) {
	srcDir, dstDir := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(srcDir, "hello.txt"), "tricky")

	fs := newConnectedLocal(t)
	p := New(Options{})
	err := p.TrickyCopy(context.Background(), fs,
		filepath.Join(srcDir, "hello.txt"), filepath.Join(dstDir, "hello.txt"), false)
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(srcDir, "hello.txt"))
	assert.NoError(t, statErr)
}
