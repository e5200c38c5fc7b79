package transfer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestProgressStateMatchesReferenceTransferScenario replays the
// 256-byte/4s and 768-byte/12s steps from the original client's own
// ProgressStates test, including the divide-by-zero and
// completed-under-a-second edge cases.
func TestProgressStateMatchesReferenceTransferScenario(t *testing.T) {
	var p ProgressState

	p.Init(1024)
	assert.Less(t, time.Since(p.Started()), 5*time.Second)
	assert.Equal(t, int64(1024), p.Total())
	assert.Equal(t, int64(0), p.Written())
	assert.Equal(t, int64(0), p.BytesPerSecond())
	assert.Equal(t, int64(0), p.ETA())
	assert.Equal(t, 0.0, p.Percentage())
	assert.Equal(t, 0.0, p.Progress())

	// Wait 4 seconds, virtually.
	p.started = p.started.Add(-4 * time.Second)
	p.Update(256)
	assert.Equal(t, int64(1024), p.Total())
	assert.Equal(t, int64(256), p.Written())
	assert.Equal(t, int64(64), p.BytesPerSecond()) // 256 bytes in 4 seconds
	assert.Equal(t, int64(12), p.ETA())            // 16 total sub 4
	assert.Equal(t, 25.0, p.Percentage())
	assert.Equal(t, 0.25, p.Progress())

	// 100%.
	p.started = p.started.Add(-12 * time.Second)
	p.Update(768)
	assert.Equal(t, int64(1024), p.Total())
	assert.Equal(t, int64(1024), p.Written())
	assert.Equal(t, int64(64), p.BytesPerSecond())
	assert.Equal(t, int64(0), p.ETA())
	assert.Equal(t, 100.0, p.Percentage())
	assert.Equal(t, 1.0, p.Progress())

	// Terminated immediately at Init: bytes/sec reports the full total
	// rather than dividing by zero elapsed seconds.
	p.started = time.Now()
	assert.Equal(t, int64(1024), p.BytesPerSecond())
}

func TestProgressStateDivideByZeroWhenNeverInitialized(t *testing.T) {
	var p ProgressState
	assert.Equal(t, int64(0), p.Total())
	assert.Equal(t, int64(0), p.Written())
	assert.Equal(t, 0.0, p.Progress())
}

func TestProgressStateProgressClampsAtOne(t *testing.T) {
	var p ProgressState
	p.Init(100)
	p.Update(150)
	assert.Equal(t, 1.0, p.Progress())
	assert.Equal(t, 100.0, p.Percentage())
}

func TestStateResetClearsAbortedFlag(t *testing.T) {
	var s State
	s.Abort()
	assert.True(t, s.Aborted())
	s.Reset()
	assert.False(t, s.Aborted())
}

func TestStateFullSizeReflectsFullLegTotal(t *testing.T) {
	var s State
	s.Full.Init(2048)
	assert.Equal(t, int64(2048), s.FullSize())
}
