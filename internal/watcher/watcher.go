// Package watcher implements the directory-change watcher (spec §4.5):
// a background worker per registered local/remote pair that mirrors
// local filesystem changes to a remote fsys.FS via the transfer
// pipeline, coalescing bursts of events on the same path.
package watcher

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/veeso-termscp/termscp-core/fsys"
	"github.com/veeso-termscp/termscp-core/internal/transfer"
)

var log = logrus.WithField("component", "watcher")

// debounceWindow is the event-coalescing interval described in spec §4.5.
const debounceWindow = 500 * time.Millisecond

// maxFailures is how many consecutive mirror failures on a single watch
// are tolerated before it is unregistered.
const maxFailures = 5

// Watch is one registered local-root/remote-root mapping.
type Watch struct {
	LocalRoot  string
	RemoteRoot string
}

type registration struct {
	watch    Watch
	fw       *fsnotify.Watcher
	cancel   context.CancelFunc
	done     chan struct{}
	failures int
}

// Watcher owns zero or more active registrations, each backed by one
// fsnotify.Watcher and one coalescing goroutine.
type Watcher struct {
	mu    sync.Mutex
	regs  []*registration
	local fsys.FS
	pipe  *transfer.Pipeline
}

// New builds a Watcher that mirrors changes from local onto remote
// using pipe for the actual transfer.
func New(local fsys.FS, pipe *transfer.Pipeline) *Watcher {
	return &Watcher{local: local, pipe: pipe}
}

// List returns the currently registered watches in registration order,
// the order toggle_watch_for's index refers to.
func (w *Watcher) List() []Watch {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Watch, len(w.regs))
	for i, r := range w.regs {
		out[i] = r.watch
	}
	return out
}

// ToggleWatch registers localRoot/remoteRoot if not already watched, or
// unregisters it if it is.
func (w *Watcher) ToggleWatch(ctx context.Context, remote fsys.FS, localRoot, remoteRoot string) error {
	w.mu.Lock()
	for i, r := range w.regs {
		if r.watch.LocalRoot == localRoot && r.watch.RemoteRoot == remoteRoot {
			w.mu.Unlock()
			return w.unregister(i)
		}
	}
	w.mu.Unlock()
	return w.register(ctx, remote, localRoot, remoteRoot)
}

// ToggleWatchFor unregisters the watch at index, per the listing
// returned by List.
func (w *Watcher) ToggleWatchFor(index int) error {
	return w.unregister(index)
}

func (w *Watcher) register(ctx context.Context, remote fsys.FS, localRoot, remoteRoot string) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fsys.NewError(fsys.KindIo, "watch", localRoot, err)
	}
	if err := addRecursive(fw, localRoot); err != nil {
		_ = fw.Close()
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	reg := &registration{
		watch:  Watch{LocalRoot: localRoot, RemoteRoot: remoteRoot},
		fw:     fw,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	w.mu.Lock()
	w.regs = append(w.regs, reg)
	w.mu.Unlock()

	go w.run(watchCtx, remote, reg)
	return nil
}

func (w *Watcher) unregister(index int) error {
	w.mu.Lock()
	if index < 0 || index >= len(w.regs) {
		w.mu.Unlock()
		return fsys.NewError(fsys.KindOther, "toggle_watch_for", "", nil)
	}
	reg := w.regs[index]
	w.regs = append(w.regs[:index], w.regs[index+1:]...)
	w.mu.Unlock()

	reg.cancel()
	<-reg.done
	return nil
}

// Shutdown stops every active watch, draining each one's pending events
// before returning.
func (w *Watcher) Shutdown() {
	w.mu.Lock()
	regs := w.regs
	w.regs = nil
	w.mu.Unlock()

	for _, r := range regs {
		r.cancel()
	}
	for _, r := range regs {
		<-r.done
	}
}

// removeRegistration drops reg from the public listing without waiting
// on its goroutine, used when a watch unregisters itself after
// exceeding maxFailures.
func (w *Watcher) removeRegistration(reg *registration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, r := range w.regs {
		if r == reg {
			w.regs = append(w.regs[:i], w.regs[i+1:]...)
			return
		}
	}
}

func addRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if err := fw.Add(p); err != nil {
				return fsys.NewError(fsys.KindIo, "watch", p, err)
			}
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context, remote fsys.FS, reg *registration) {
	defer close(reg.done)
	defer func() { _ = reg.fw.Close() }()

	pending := make(map[string]fsnotify.Op)
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		for p, op := range pending {
			w.mirror(ctx, remote, reg, p, op)
		}
		pending = make(map[string]fsnotify.Op)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			flush()
			return
		case ev, ok := <-reg.fw.Events:
			if !ok {
				flush()
				return
			}
			pending[ev.Name] = ev.Op
			if ev.Op.Has(fsnotify.Create) {
				if info, err := os.Lstat(ev.Name); err == nil && info.IsDir() {
					_ = reg.fw.Add(ev.Name)
				}
			}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
				timerC = timer.C
			}
		case <-timerC:
			flush()
			timer = nil
			timerC = nil
		case err, ok := <-reg.fw.Errors:
			if !ok {
				flush()
				return
			}
			log.WithError(err).Warn("watch error")
		}
	}
}

func (w *Watcher) mirror(ctx context.Context, remote fsys.FS, reg *registration, localPath string, op fsnotify.Op) {
	rel, err := filepath.Rel(reg.watch.LocalRoot, localPath)
	if err != nil {
		log.WithError(err).Warnf("path %s is outside watch root %s", localPath, reg.watch.LocalRoot)
		return
	}
	remotePath := path.Join(reg.watch.RemoteRoot, filepath.ToSlash(rel))

	info, statErr := os.Lstat(localPath)
	var opErr error
	switch {
	case statErr != nil:
		// Entry no longer exists locally: mirror the deletion. We do not
		// know whether it was a file or a directory, so try both.
		opErr = remote.RemoveFile(ctx, remotePath)
		if opErr != nil && fsys.KindOf(opErr) != fsys.KindNoSuchFile {
			opErr = remote.RemoveDirAll(ctx, remotePath)
		}
	case info.IsDir():
		opErr = remote.CreateDir(ctx, remotePath, fsys.Mode{})
		if fsys.KindOf(opErr) == fsys.KindAlreadyExists {
			opErr = nil
		}
	default:
		file, err := w.local.Stat(ctx, localPath)
		if err != nil {
			opErr = err
			break
		}
		opErr = w.pipe.Send(ctx, w.local, remote, fsys.PayloadFile(file), path.Dir(remotePath), "")
	}

	if opErr != nil {
		reg.failures++
		log.WithError(opErr).Warnf("failed to mirror %s to %s", localPath, remotePath)
		if reg.failures >= maxFailures {
			log.Warnf("watch on %s failing persistently, unregistering", reg.watch.LocalRoot)
			w.removeRegistration(reg)
			reg.cancel()
		}
		return
	}
	reg.failures = 0
}
