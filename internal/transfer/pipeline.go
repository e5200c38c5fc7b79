package transfer

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/veeso-termscp/termscp-core/fsys"
	"github.com/veeso-termscp/termscp-core/internal/backend/local"
)

var log = logrus.WithField("component", "transfer")

const defaultBufferSize = 65536

// ReplaceDecision is the UI's answer when the destination of a
// transfer already exists and prompting is enabled (spec §4.4 step 2).
type ReplaceDecision int

const (
	Overwrite ReplaceDecision = iota
	Skip
	OverwriteAll
	SkipAll
	CancelBatch
)

// ReplacePrompt asks the UI how to handle an existing destination.
type ReplacePrompt func(destPath string) ReplaceDecision

// ProgressFunc is invoked after every chunk written so the UI can
// render the two ProgressState legs.
type ProgressFunc func(state *State)

// Options configures a Pipeline.
type Options struct {
	PromptOnReplace bool
	Prompt          ReplacePrompt
	OnProgress      ProgressFunc
	BufferSize      int
}

// Pipeline drives recv/send operations between two fsys.FS endpoints,
// tracking one State for the life of a batch.
type Pipeline struct {
	opts  Options
	state State
}

// New builds a Pipeline. A nil Prompt with PromptOnReplace true always
// overwrites, matching the spec's degenerate single-file case where no
// UI round-trip is needed.
func New(opts Options) *Pipeline {
	if opts.BufferSize == 0 {
		opts.BufferSize = defaultBufferSize
	}
	return &Pipeline{opts: opts}
}

// State returns the pipeline's progress/abort state for the UI to read.
func (p *Pipeline) State() *State { return &p.state }

// Abort cancels the in-flight batch; the streaming loop observes it at
// the next chunk boundary.
func (p *Pipeline) Abort() { p.state.Abort() }

// Recv downloads payload from src (the remote) into dst (normally the
// local host bridge) under destinationDir.
func (p *Pipeline) Recv(ctx context.Context, src, dst fsys.FS, payload fsys.Payload, destinationDir, saveAs string) error {
	return p.run(ctx, src, dst, payload, destinationDir, saveAs)
}

// Send uploads payload from src (normally the local host bridge) into
// dst (the remote) under destinationDir.
func (p *Pipeline) Send(ctx context.Context, src, dst fsys.FS, payload fsys.Payload, destinationDir, saveAs string) error {
	return p.run(ctx, src, dst, payload, destinationDir, saveAs)
}

func (p *Pipeline) run(ctx context.Context, src, dst fsys.FS, payload fsys.Payload, destinationDir, saveAs string) error {
	p.state.Reset()
	entries := payload.Entries()

	var total int64
	for _, e := range entries {
		total += sizeOf(src, ctx, e)
	}
	p.state.Full.Init(total)

	var allDecision *ReplaceDecision
	for _, entry := range entries {
		name := entry.Name()
		if saveAs != "" && len(entries) == 1 {
			name = saveAs
		}
		destPath := path.Join(destinationDir, name)

		err := p.transferEntry(ctx, src, dst, entry, destPath, &allDecision)
		if err == errSkipped {
			continue
		}
		if err == errBatchCancelled {
			return fsys.NewError(fsys.KindAborted, "transfer", destPath, nil)
		}
		if err != nil {
			if payload.IsMany() {
				log.WithError(err).Warnf("transfer of %s failed, continuing batch", entry.Path)
				continue
			}
			return err
		}
		if p.state.Aborted() {
			return fsys.NewError(fsys.KindAborted, "transfer", destPath, nil)
		}
	}
	return nil
}

func sizeOf(fs fsys.FS, ctx context.Context, f fsys.File) int64 {
	if !f.IsDir() {
		return f.Meta.Size
	}
	var total int64
	entries, err := fs.ListDir(ctx, f.Path)
	if err != nil {
		return 0
	}
	for _, e := range entries {
		total += sizeOf(fs, ctx, e)
	}
	return total
}

var errSkipped = fsys.NewError(fsys.KindOther, "transfer", "", nil)
var errBatchCancelled = fsys.NewError(fsys.KindAborted, "transfer", "", nil)

func (p *Pipeline) transferEntry(ctx context.Context, src, dst fsys.FS, entry fsys.File, destPath string, allDecision **ReplaceDecision) error {
	if entry.IsDir() {
		return p.transferDir(ctx, src, dst, entry, destPath, allDecision)
	}
	return p.transferFile(ctx, src, dst, entry, destPath, allDecision)
}

func (p *Pipeline) transferDir(ctx context.Context, src, dst fsys.FS, dir fsys.File, destPath string, allDecision **ReplaceDecision) error {
	if exists, _ := dst.Exists(ctx, destPath); !exists {
		if err := dst.CreateDir(ctx, destPath, dir.Meta.Mode); err != nil && fsys.KindOf(err) != fsys.KindAlreadyExists {
			return err
		}
	}
	children, err := src.ListDir(ctx, dir.Path)
	if err != nil {
		return err
	}
	for _, child := range children {
		childDest := path.Join(destPath, child.Name())
		if err := p.transferEntry(ctx, src, dst, child, childDest, allDecision); err != nil && err != errSkipped {
			if err == errBatchCancelled {
				return err
			}
			log.WithError(err).Warnf("transfer of %s failed, continuing directory", child.Path)
		}
		if p.state.Aborted() {
			return errBatchCancelled
		}
	}
	return nil
}

// resolveReplace applies the spec §4.4 step-2 prompt rules, consulting
// and updating the batch-wide "all" decision.
func (p *Pipeline) resolveReplace(ctx context.Context, dst fsys.FS, destPath string, allDecision **ReplaceDecision) (proceed bool, err error) {
	if !p.opts.PromptOnReplace {
		return true, nil
	}
	exists, err := dst.Exists(ctx, destPath)
	if err != nil {
		return false, err
	}
	if !exists {
		return true, nil
	}
	if *allDecision != nil {
		switch **allDecision {
		case OverwriteAll:
			return true, nil
		case SkipAll:
			return false, nil
		}
	}
	if p.opts.Prompt == nil {
		return true, nil
	}
	decision := p.opts.Prompt(destPath)
	switch decision {
	case OverwriteAll, SkipAll:
		d := decision
		*allDecision = &d
	}
	switch decision {
	case Overwrite, OverwriteAll:
		return true, nil
	case Skip, SkipAll:
		return false, nil
	case CancelBatch:
		return false, errBatchCancelled
	default:
		return true, nil
	}
}

func (p *Pipeline) transferFile(ctx context.Context, src, dst fsys.FS, file fsys.File, destPath string, allDecision **ReplaceDecision) error {
	if file.Meta.Type == fsys.TypeSymlink {
		err := dst.Symlink(ctx, destPath, file.Meta.SymlinkTarget)
		if err == nil {
			return nil
		}
		if fsys.KindOf(err) != fsys.KindUnsupportedFeature {
			return err
		}
		// Fall back to transferring the link's target content (spec §4.4).
	}

	proceed, err := p.resolveReplace(ctx, dst, destPath, allDecision)
	if err != nil {
		return err
	}
	if !proceed {
		return errSkipped
	}

	p.state.Partial.Init(file.Meta.Size)

	rs, err := src.OpenFile(ctx, file.Path)
	if err != nil {
		return err
	}
	defer rs.Close()

	ws, err := dst.CreateFile(ctx, destPath, file.Meta)
	if err != nil {
		return err
	}

	if err := p.stream(ctx, rs, ws); err != nil {
		_ = dst.RemoveFile(ctx, destPath)
		return err
	}
	return dst.FinalizeWrite(ctx, ws)
}

// stream runs the fixed-buffer copy loop described in spec §4.4,
// polling the abort flag at every chunk boundary.
func (p *Pipeline) stream(ctx context.Context, rs *fsys.ReadStream, ws *fsys.WriteStream) error {
	buf := make([]byte, p.opts.BufferSize)
	for {
		if p.state.Aborted() {
			return fsys.NewError(fsys.KindAborted, "transfer", "", nil)
		}
		select {
		case <-ctx.Done():
			return fsys.NewError(fsys.KindAborted, "transfer", "", ctx.Err())
		default:
		}
		n, readErr := rs.Read(buf)
		if n > 0 {
			if _, err := ws.Write(buf[:n]); err != nil {
				return fsys.NewError(fsys.KindIo, "transfer", "", err)
			}
			p.state.Partial.Update(int64(n))
			p.state.Full.Update(int64(n))
			if p.opts.OnProgress != nil {
				p.opts.OnProgress(&p.state)
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fsys.NewError(fsys.KindIo, "transfer", "", readErr)
		}
	}
}

// TrickyCopy implements the same-endpoint fallback (spec §4.4) used
// when an adapter reports UnsupportedFeature for copy/mov: stage
// through a local scratch location, then send it back to dst.
func (p *Pipeline) TrickyCopy(ctx context.Context, fs fsys.FS, src, dst string, move bool) error {
	scratchDir, err := os.MkdirTemp("", "termscp-tricky-copy-")
	if err != nil {
		return fsys.NewError(fsys.KindIo, "tricky_copy", src, err)
	}
	defer os.RemoveAll(scratchDir)

	scratch, err := local.New()
	if err != nil {
		return err
	}
	if _, err := scratch.Connect(ctx); err != nil {
		return err
	}

	srcFile, err := fs.Stat(ctx, src)
	if err != nil {
		return err
	}
	scratchPath := filepath.Join(scratchDir, srcFile.Name())

	if err := p.run(ctx, fs, scratch, fsys.PayloadAny(srcFile), scratchDir, ""); err != nil {
		return err
	}

	staged, err := scratch.Stat(ctx, scratchPath)
	if err != nil {
		return err
	}
	destDir := path.Dir(dst)
	if err := p.run(ctx, scratch, fs, fsys.PayloadAny(staged), destDir, path.Base(dst)); err != nil {
		return err
	}

	if move {
		if err := fs.RemoveDirAll(ctx, src); err != nil {
			if err2 := fs.RemoveFile(ctx, src); err2 != nil {
				return err
			}
		}
	}
	return nil
}
