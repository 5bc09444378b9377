// Package clip provides the deferred, cancellable post-event clip write:
// a small Writer interface whose codec internals are out of scope, and a
// TimerRegistry that schedules the one-shot write far enough in the
// future to capture the "after" side of the clip window.
package clip

import (
	"fmt"
	"sync"
	"time"

	"github.com/e7canasta/falldetectd/internal/buffer"
)

// Writer persists a sequence of frame.Frame-carrying buffer entries as a
// clip file and returns its path. Codec/container details are an external
// concern; this interface only names the contract the core depends on.
type Writer interface {
	Save(frames []buffer.Entry, eventID string) (path string, err error)
}

// Handle cancels one scheduled timer.
type Handle struct {
	timer *time.Timer
}

// Cancel stops the underlying timer. Safe to call more than once.
func (h Handle) Cancel() {
	if h.timer != nil {
		h.timer.Stop()
	}
}

// TimerRegistry tracks every outstanding one-shot deferred action so that
// shutdown can cancel them all; scheduling is first-in-first-out by
// construction, so no priority queue is needed.
type TimerRegistry struct {
	mu      sync.Mutex
	handles []Handle
	closed  bool
}

// NewTimerRegistry constructs an empty registry.
func NewTimerRegistry() *TimerRegistry {
	return &TimerRegistry{}
}

// Schedule runs fn once, after delay, on its own goroutine (per
// time.AfterFunc semantics). Returns a Handle that can cancel it before it
// fires. Scheduling after CancelAll is a no-op: fn never runs.
func (r *TimerRegistry) Schedule(delay time.Duration, fn func()) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return Handle{}
	}

	t := time.AfterFunc(delay, fn)
	h := Handle{timer: t}
	r.handles = append(r.handles, h)
	return h
}

// CancelAll stops every timer registered so far and marks the registry
// closed; further Schedule calls are no-ops. Intended for shutdown: no
// deferred write may fire after the process has begun tearing down.
func (r *TimerRegistry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, h := range r.handles {
		h.Cancel()
	}
	r.handles = nil
	r.closed = true
}

// Pending reports how many timers are currently tracked, for diagnostics.
func (r *TimerRegistry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// DefaultFilename names a clip file deterministically from the event id
// and a caller-supplied extension, without committing to any particular
// codec — concrete Writer implementations build on top of this.
func DefaultFilename(eventID, ext string) string {
	return fmt.Sprintf("%s%s", eventID, ext)
}
