// Package transfer implements the transfer pipeline (spec §4.4): recv
// and send over any pair of fsys.FS implementations, with progress
// reporting, replace-policy prompting, directory recursion, symlink
// fallback, and the same-endpoint "tricky copy" fallback.
package transfer

import (
	"time"
)

// ProgressState tracks one leg (full batch or the current file) of a
// transfer, mirroring the original client's ProgressStates model.
type ProgressState struct {
	started time.Time
	total   int64
	written int64
}

// Init begins tracking a transfer of the given total size.
func (p *ProgressState) Init(size int64) {
	p.started = time.Now()
	p.total = size
	p.written = 0
}

// Update records delta more bytes written and returns the new
// percentage complete (0-100).
func (p *ProgressState) Update(delta int64) float64 {
	p.written += delta
	return p.Percentage()
}

// Progress returns completion in the range [0.0, 1.0].
func (p *ProgressState) Progress() float64 {
	if p.total == 0 {
		return 0
	}
	prog := float64(p.written) / float64(p.total)
	if prog > 1.0 {
		return 1.0
	}
	return prog
}

// Percentage returns completion as 0-100.
func (p *ProgressState) Percentage() float64 { return p.Progress() * 100 }

// Started returns when this leg began.
func (p *ProgressState) Started() time.Time { return p.started }

// Total returns the configured total size.
func (p *ProgressState) Total() int64 { return p.total }

// Written returns bytes written so far.
func (p *ProgressState) Written() int64 { return p.written }

// BytesPerSecond computes the current throughput, reporting the full
// total (rather than dividing by zero) when elapsed time is under a
// second and the transfer has already completed.
func (p *ProgressState) BytesPerSecond() int64 {
	elapsed := int64(time.Since(p.started).Seconds())
	if elapsed == 0 {
		if p.written == p.total {
			return p.total
		}
		return 0
	}
	return p.written / elapsed
}

// ETA returns the estimated seconds remaining, or 0 when progress is
// at 0%.
func (p *ProgressState) ETA() int64 {
	elapsed := int64(time.Since(p.started).Seconds())
	pct := int64(p.Percentage())
	if pct == 0 {
		return 0
	}
	return (elapsed*100)/pct - elapsed
}

// State is the pair of progress legs (whole-batch and current-file)
// plus the abort flag the pipeline polls during streaming.
type State struct {
	aborted bool
	Full    ProgressState
	Partial ProgressState
}

// Reset clears the aborted flag between batches.
func (s *State) Reset() { s.aborted = false }

// Abort marks the current batch for cancellation; the streaming loop
// observes this at the next chunk boundary.
func (s *State) Abort() { s.aborted = true }

// Aborted reports whether Abort has been called for this batch.
func (s *State) Aborted() bool { return s.aborted }

// FullSize returns the size of the entire transfer batch.
func (s *State) FullSize() int64 { return s.Full.total }
