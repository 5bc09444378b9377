// Package collector implements the skeleton collector: a suspected-event
// observer that snapshots the rolling buffer the instant a suspicion
// resolves and offloads pose extraction and JSON serialization to a
// bounded worker pool, so the detection loop never blocks on disk or
// model I/O.
package collector

import (
	"fmt"
	"sync"
	"time"

	"github.com/e7canasta/falldetectd/internal/buffer"
	"github.com/e7canasta/falldetectd/internal/debounce"
	"github.com/e7canasta/falldetectd/internal/detect"
	"github.com/e7canasta/falldetectd/internal/frame"
	"go.uber.org/zap"
)

// job is one unit of background work: a resolved suspicion plus the
// frames snapshotted for it while the buffer still held them.
type job struct {
	event  debounce.SuspectedEvent
	frames []buffer.Entry
}

// Writer persists a fully-built Sequence. The default implementation
// writes JSON to disk; tests may substitute an in-memory writer.
type Writer interface {
	Write(seq Sequence, filename string) error
}

// Collector implements debounce.SuspectedObserver. It records suspected
// events without extracting (per protocol, extraction only happens once
// the outcome is known), snapshots the rolling buffer synchronously on
// resolution, and hands the snapshot to a bounded pool of workers that run
// the detector over each frame and serialize the result.
type Collector struct {
	buf      *buffer.Ring
	detector detect.Detector
	writer   Writer
	log      *zap.Logger

	beforeSec, afterSec float64
	fps                 float64
	engine, model       string

	enabled bool

	pending map[string]debounce.SuspectedEvent // touched only from the dispatch goroutine

	jobs chan job
	wg   sync.WaitGroup

	extractionCount uint64
}

// Config bundles Collector construction parameters.
type Config struct {
	Enabled            bool
	MaxWorkers         int
	QueueCapacity      int
	ClipBeforeSec      float64
	ClipAfterSec       float64
	FPS                float64
	ExtractorEngine    string
	ExtractorModel     string
}

// New constructs a Collector and starts its worker pool when enabled. A
// disabled collector still satisfies debounce.SuspectedObserver but does
// nothing.
func New(buf *buffer.Ring, detector detect.Detector, writer Writer, log *zap.Logger, cfg Config) *Collector {
	c := &Collector{
		buf:       buf,
		detector:  detector,
		writer:    writer,
		log:       log,
		beforeSec: cfg.ClipBeforeSec,
		afterSec:  cfg.ClipAfterSec,
		fps:       cfg.FPS,
		engine:    cfg.ExtractorEngine,
		model:     cfg.ExtractorModel,
		enabled:   cfg.Enabled,
		pending:   make(map[string]debounce.SuspectedEvent),
	}

	if !c.enabled {
		return c
	}

	queueCap := cfg.QueueCapacity
	if queueCap < 1 {
		queueCap = cfg.MaxWorkers * 4
	}
	c.jobs = make(chan job, queueCap)

	workers := cfg.MaxWorkers
	if workers < 1 {
		workers = 2
	}
	for i := 0; i < workers; i++ {
		c.wg.Add(1)
		go c.worker(i)
	}
	return c
}

func (c *Collector) worker(id int) {
	defer c.wg.Done()
	for j := range c.jobs {
		c.process(j)
	}
}

// OnFallSuspected records the event without extracting.
func (c *Collector) OnFallSuspected(event *debounce.SuspectedEvent) {
	if !c.enabled {
		return
	}
	c.pending[event.SuspectedID] = *event
	c.log.Info("suspected event recorded", zap.String("suspected_id", event.SuspectedID))
}

// OnSuspicionCleared extracts and labels the clip "cleared".
func (c *Collector) OnSuspicionCleared(event *debounce.SuspectedEvent) {
	c.resolve(event)
}

// OnFallConfirmedUpdate extracts and labels the clip "confirmed".
func (c *Collector) OnFallConfirmedUpdate(event *debounce.SuspectedEvent) {
	c.resolve(event)
}

func (c *Collector) resolve(event *debounce.SuspectedEvent) {
	if !c.enabled {
		return
	}
	if _, ok := c.pending[event.SuspectedID]; !ok {
		return
	}
	delete(c.pending, event.SuspectedID)

	// Snapshot now, on the calling (detection) goroutine — the buffer may
	// evict the relevant frames before a background worker could get to it.
	frames := c.buf.GetClip(event.SuspectedAt, c.beforeSec, c.afterSec)
	if len(frames) == 0 {
		c.log.Warn("no frames available for suspected event", zap.String("suspected_id", event.SuspectedID))
		return
	}

	c.extractionCount++
	c.jobs <- job{event: *event, frames: frames} // blocking submit: queue, never drop
}

func (c *Collector) process(j job) {
	seq, err := c.extract(j)
	if err != nil {
		c.log.Error("skeleton extraction failed", zap.String("suspected_id", j.event.SuspectedID), zap.Error(err))
		return
	}

	filename := fmt.Sprintf("%s_%s.json", j.event.SuspectedID, outcomeLabel(j.event.Outcome))
	if err := c.writer.Write(seq, filename); err != nil {
		c.log.Error("skeleton write failed", zap.String("suspected_id", j.event.SuspectedID), zap.Error(err))
		return
	}
	c.log.Info("skeleton saved", zap.String("file", filename))
}

func (c *Collector) extract(j job) (Sequence, error) {
	records := make([]FrameRecord, 0, len(j.frames))
	for i, entry := range j.frames {
		f, ok := entry.Payload.(frame.Frame)
		if !ok {
			continue
		}
		subject, err := c.detector.Detect(f)
		if err != nil || subject.Kind != frame.SubjectSkeleton {
			continue
		}
		records = append(records, skeletonToRecord(i, entry.Timestamp, f.Width, f.Height, subject.Skeleton))
	}

	if len(records) == 0 {
		return Sequence{}, fmt.Errorf("no skeleton frames extracted for %s", j.event.SuspectedID)
	}

	duration := 0.0
	if len(j.frames) > 1 {
		duration = j.frames[len(j.frames)-1].Timestamp - j.frames[0].Timestamp
	}

	return Sequence{
		Metadata: Metadata{
			EventID:     j.event.SuspectedID,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
			DurationSec: duration,
			FPS:         c.fps,
			TotalFrames: len(records),
			Extractor: ExtractorInfo{
				Engine:  c.engine,
				Model:   c.model,
				Version: "1.0",
			},
		},
		KeypointFormat: "coco17",
		Sequence:       records,
		Version:        "1.0",
	}, nil
}

func outcomeLabel(o debounce.SuspicionOutcome) string {
	switch o {
	case debounce.OutcomeConfirmed:
		return "confirmed"
	case debounce.OutcomeCleared:
		return "cleared"
	default:
		return "pending"
	}
}

// Shutdown waits for in-flight and queued extractions to finish. It must
// only be called once, after no more OnFall*/OnSuspicion* calls will
// arrive.
func (c *Collector) Shutdown() {
	if !c.enabled {
		return
	}
	close(c.jobs)
	c.wg.Wait()
}

// ExtractionCount reports how many extractions have been submitted, for
// diagnostics.
func (c *Collector) ExtractionCount() uint64 { return c.extractionCount }
