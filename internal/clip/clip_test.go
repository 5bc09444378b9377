package clip

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/e7canasta/falldetectd/internal/buffer"
	"github.com/e7canasta/falldetectd/internal/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleFires(t *testing.T) {
	r := NewTimerRegistry()
	var fired atomic.Bool
	r.Schedule(10*time.Millisecond, func() { fired.Store(true) })

	require.Eventually(t, fired.Load, time.Second, time.Millisecond)
}

func TestCancelAllPreventsFiring(t *testing.T) {
	r := NewTimerRegistry()
	var fired atomic.Bool
	r.Schedule(50*time.Millisecond, func() { fired.Store(true) })
	r.CancelAll()

	time.Sleep(100 * time.Millisecond)
	assert.False(t, fired.Load())
}

func TestScheduleAfterCloseIsNoop(t *testing.T) {
	r := NewTimerRegistry()
	r.CancelAll()

	var fired atomic.Bool
	r.Schedule(1*time.Millisecond, func() { fired.Store(true) })
	time.Sleep(20 * time.Millisecond)
	assert.False(t, fired.Load())
}

func TestRawWriterSavesFrames(t *testing.T) {
	dir := t.TempDir()
	w, err := NewRawWriter(dir)
	require.NoError(t, err)

	frames := []buffer.Entry{
		{Timestamp: 0, Payload: frame.Frame{Pixels: []byte{1, 2, 3}, Seq: 1}},
		{Timestamp: 1, Payload: frame.Frame{Pixels: []byte{4, 5, 6}, Seq: 2}},
	}

	path, err := w.Save(frames, "evt_1")
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestRawWriterRejectsEmptyClip(t *testing.T) {
	dir := t.TempDir()
	w, err := NewRawWriter(dir)
	require.NoError(t, err)

	_, err = w.Save(nil, "evt_2")
	assert.Error(t, err)
}
