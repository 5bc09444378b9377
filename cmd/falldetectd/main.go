// Command falldetectd is the process entrypoint: it loads configuration,
// builds the shared logger, wires every component into an orchestrator,
// and runs until SIGINT/SIGTERM triggers a graceful shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/e7canasta/falldetectd/internal/buffer"
	"github.com/e7canasta/falldetectd/internal/clip"
	"github.com/e7canasta/falldetectd/internal/collector"
	"github.com/e7canasta/falldetectd/internal/config"
	"github.com/e7canasta/falldetectd/internal/debounce"
	"github.com/e7canasta/falldetectd/internal/detect"
	"github.com/e7canasta/falldetectd/internal/logging"
	"github.com/e7canasta/falldetectd/internal/notify"
	"github.com/e7canasta/falldetectd/internal/orchestrator"
	"github.com/e7canasta/falldetectd/internal/rules"
	"github.com/e7canasta/falldetectd/internal/smoothing"
	"github.com/e7canasta/falldetectd/internal/store"
	"go.uber.org/zap"
)

const version = "v0.1.0"

func main() {
	configPath := flag.String("config", "config/settings.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "falldetectd: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, "falldetectd")
	if err != nil {
		fmt.Fprintf(os.Stderr, "falldetectd: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting falldetectd", zap.String("version", version), zap.String("config", *configPath))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received, stopping gracefully")
		cancel()
	}()

	if err := run(ctx, cfg, log); err != nil && err != context.Canceled {
		log.Error("falldetectd stopped with an error", zap.Error(err))
		os.Exit(1)
	}

	log.Info("falldetectd stopped gracefully")
}

// source and model are supplied by the deployment: the core defines the
// detect.Source/detect.Detector contracts but does not implement a
// concrete camera reader or pose model itself.
func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	buf := buffer.NewRing(cfg.Recording.BufferSeconds, cfg.Camera.FPS)

	source, detector, err := newCollaborators(cfg, log)
	if err != nil {
		return fmt.Errorf("falldetectd: %w", err)
	}

	var engine rules.Engine
	if cfg.Detection.UsePose {
		var smoother *smoothing.KeypointSmoother
		if cfg.Detection.EnableSmoothing {
			smoother = smoothing.NewKeypointSmoother(
				cfg.Detection.SmoothingMinCutoff,
				cfg.Detection.SmoothingBeta,
				cfg.Detection.SmoothingDCutoff,
				float32(cfg.Detection.MinVisibility),
			)
		}
		engine = rules.NewPoseRule(cfg.Analysis.TorsoAngle, float32(cfg.Detection.MinVisibility), smoother)
	} else {
		engine = rules.NewBBoxRule(cfg.Analysis.FallThreshold)
	}

	machine := debounce.New(debounce.Params{
		DelaySec:         cfg.Analysis.DelaySec,
		SameEventWindow:  cfg.Analysis.SameEventWindow,
		ReNotifyInterval: cfg.Analysis.ReNotifyInterval,
	})
	machine.SetLogf(func(format string, args ...any) { log.Sugar().Warnf(format, args...) })

	var eventStore *store.EventLogger
	if cfg.Store.DSN != "" {
		eventStore, err = store.Open(ctx, cfg.Store.DSN, log)
		if err != nil {
			return fmt.Errorf("falldetectd: %w", err)
		}
		defer eventStore.Close()
		machine.AddFallObserver(eventStore)
	}

	var pushNotifier *notify.Notifier
	if cfg.Redis.Addr != "" {
		pendingStore := notify.NewRedisPendingStore(
			cfg.Redis.Addr,
			cfg.Redis.PendingKey,
			time.Duration(cfg.Redis.PendingTTL)*time.Second,
		)
		pushNotifier = notify.NewWithStore(cfg.Notification.WebhookURL, cfg.Notification.Enabled, log, pendingStore)
	} else {
		pushNotifier = notify.New(cfg.Notification.WebhookURL, cfg.Notification.Enabled, log)
	}
	machine.AddFallObserver(pushNotifier)

	skeletonWriter, err := collector.NewFileWriter(cfg.Lifecycle.SkeletonOutputDir)
	if err != nil {
		return fmt.Errorf("falldetectd: %w", err)
	}
	skeletonCollector := collector.New(buf, detector, skeletonWriter, log, collector.Config{
		Enabled:         cfg.Lifecycle.AutoSkeletonExtract,
		MaxWorkers:      cfg.Lifecycle.MaxWorkers,
		ClipBeforeSec:   cfg.Recording.ClipBeforeSec,
		ClipAfterSec:    cfg.Recording.ClipAfterSec,
		FPS:             cfg.Camera.FPS,
		ExtractorEngine: cfg.Lifecycle.ExtractorEngine,
		ExtractorModel:  cfg.Lifecycle.ExtractorModel,
	})
	machine.AddSuspectedObserver(skeletonCollector)
	defer skeletonCollector.Shutdown()

	clipWriter, err := clip.NewRawWriter(cfg.Lifecycle.SkeletonOutputDir)
	if err != nil {
		return fmt.Errorf("falldetectd: %w", err)
	}
	onClip := func(eventID, path string, err error) {
		if err != nil || eventStore == nil {
			return
		}
		if uErr := eventStore.UpdateClipPath(ctx, eventID, path); uErr != nil {
			log.Error("failed to persist clip path", zap.String("event_id", eventID), zap.Error(uErr))
		}
	}

	o := orchestrator.New(source, detector, engine, machine, buf, clipWriter, log, orchestrator.Config{
		ClipBeforeSec: cfg.Recording.ClipBeforeSec,
		ClipAfterSec:  cfg.Recording.ClipAfterSec,
		OnClip:        onClip,
	})

	return o.Run(ctx)
}

// newCollaborators is the seam where a deployment plugs in its camera
// source and pose/bbox model. No concrete implementation ships here: the
// core only defines the detect.Source/detect.Detector contracts.
func newCollaborators(cfg *config.Config, log *zap.Logger) (detect.Source, detect.Detector, error) {
	return nil, nil, fmt.Errorf("no frame source/detector wired for %q: plug in a concrete detect.Source and detect.Detector for this deployment", cfg.Camera.Source)
}
