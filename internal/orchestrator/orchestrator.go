// Package orchestrator wires the whole pipeline together: it pumps frames
// from a Source through a Detector and a rules.Engine into the debounce
// state machine, feeds every frame into the rolling buffer, and — as a
// fall-observer in its own right — schedules the deferred post-event clip
// write once a fall is confirmed.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/e7canasta/falldetectd/internal/buffer"
	"github.com/e7canasta/falldetectd/internal/clip"
	"github.com/e7canasta/falldetectd/internal/debounce"
	"github.com/e7canasta/falldetectd/internal/detect"
	"github.com/e7canasta/falldetectd/internal/frame"
	"github.com/e7canasta/falldetectd/internal/rules"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ClipCallback is notified once a deferred clip write completes, so the
// caller can persist the resulting path (e.g. into the event store).
type ClipCallback func(eventID, path string, err error)

// Orchestrator runs the per-frame pump loop and owns the deferred
// clip-write timers.
type Orchestrator struct {
	source   detect.Source
	detector detect.Detector
	engine   rules.Engine
	machine  *debounce.Machine
	buf      *buffer.Ring
	timers   *clip.TimerRegistry
	writer   clip.Writer
	log      *zap.Logger

	clipBeforeSec, clipAfterSec float64
	onClip                      ClipCallback

	seq uint64
}

// Config bundles Orchestrator construction parameters.
type Config struct {
	ClipBeforeSec float64
	ClipAfterSec  float64
	OnClip        ClipCallback // may be nil
}

// New constructs an Orchestrator and registers it as a fall-observer on
// machine so confirmed falls trigger a deferred clip write.
func New(
	source detect.Source,
	detector detect.Detector,
	engine rules.Engine,
	machine *debounce.Machine,
	buf *buffer.Ring,
	writer clip.Writer,
	log *zap.Logger,
	cfg Config,
) *Orchestrator {
	runID := uuid.New().String()
	o := &Orchestrator{
		source:        source,
		detector:      detector,
		engine:        engine,
		machine:       machine,
		buf:           buf,
		timers:        clip.NewTimerRegistry(),
		writer:        writer,
		log:           log.With(zap.String("run_id", runID)),
		clipBeforeSec: cfg.ClipBeforeSec,
		clipAfterSec:  cfg.ClipAfterSec,
		onClip:        cfg.OnClip,
	}
	machine.AddFallObserver(o)
	return o
}

// Run pumps frames until ctx is cancelled or the source returns a fatal
// error. Detector failures are logged and treated as "no subject" for
// that frame; they never stop the loop.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			o.shutdown()
			return ctx.Err()
		default:
		}

		f, err := o.source.Read(ctx)
		if err != nil {
			o.shutdown()
			return fmt.Errorf("orchestrator: source read: %w", err)
		}

		o.processFrame(f)
	}
}

func (o *Orchestrator) processFrame(f frame.Frame) {
	o.seq++
	f.Seq = o.seq

	subject, err := o.detector.Detect(f)
	if err != nil {
		o.log.Warn("detector error, treating frame as no-subject", zap.Error(err))
		subject = frame.NoSubject
	}

	fallen := o.engine.IsFallen(subject, f.Timestamp)

	o.buf.Push(buffer.Entry{Timestamp: f.Timestamp, Payload: f})

	o.machine.Update(fallen, f.Timestamp)
}

// OnFallConfirmed implements debounce.FallObserver. It schedules the
// deferred clip write at confirmedAt+clipAfterSec, since the "after" side
// of the window has not been observed yet.
func (o *Orchestrator) OnFallConfirmed(event *debounce.FallEvent) {
	eventID := event.EventID
	eventTime := event.ConfirmedAt

	delay := time.Duration(o.clipAfterSec * float64(time.Second))
	o.timers.Schedule(delay, func() {
		o.writeClip(eventID, eventTime)
	})
}

// OnFallRecovered implements debounce.FallObserver; recovery needs no
// clip action of its own.
func (o *Orchestrator) OnFallRecovered(event *debounce.FallEvent) {
	o.log.Info("fall recovered", zap.String("event_id", event.EventID))
}

func (o *Orchestrator) writeClip(eventID string, eventTime float64) {
	frames := o.buf.GetClip(eventTime, o.clipBeforeSec, o.clipAfterSec)
	if len(frames) == 0 {
		o.log.Warn("no frames available for clip", zap.String("event_id", eventID))
		if o.onClip != nil {
			o.onClip(eventID, "", fmt.Errorf("no frames available"))
		}
		return
	}

	path, err := o.writer.Save(frames, eventID)
	if err != nil {
		o.log.Error("clip write failed", zap.String("event_id", eventID), zap.Error(err))
	}
	if o.onClip != nil {
		o.onClip(eventID, path, err)
	}
}

// shutdown cancels every pending deferred clip write; no clip is written
// after the process has begun tearing down.
func (o *Orchestrator) shutdown() {
	o.timers.CancelAll()
}
