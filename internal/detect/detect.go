// Package detect defines the two external collaborator interfaces this
// system depends on but does not implement: the frame source and the
// detector model. It also provides a reconnect helper that a concrete
// frame source can use to ride out transient read failures.
package detect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/e7canasta/falldetectd/internal/frame"
	"go.uber.org/zap"
)

// Source yields timestamped frames. Read blocks until a frame is
// available, ctx is cancelled, or a fatal error occurs. ErrSourceFatal
// wraps any error that should stop the orchestrator loop rather than be
// retried.
type Source interface {
	Read(ctx context.Context) (frame.Frame, error)
}

// Detector maps raw frame pixels to a Subject. Errors are treated by the
// caller as "no subject this frame" rather than a fatal condition.
type Detector interface {
	Detect(f frame.Frame) (frame.Subject, error)
}

// ErrSourceFatal marks a source error that has exhausted its retry budget
// and must stop the pipeline.
var ErrSourceFatal = errors.New("frame source: fatal, retries exhausted")

// ReconnectConfig configures exponential backoff for transient source
// failures.
type ReconnectConfig struct {
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

// DefaultReconnectConfig returns the spec's default retry schedule:
// 1s, 2s, 4s, 8s, 16s, then fatal.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		MaxRetries:    5,
		RetryDelay:    1 * time.Second,
		MaxRetryDelay: 30 * time.Second,
	}
}

// ConnectFunc attempts to (re)establish whatever connection a concrete
// Source needs before it can Read again.
type ConnectFunc func(ctx context.Context) error

// RunWithReconnect calls connectFn, retrying with exponential backoff on
// failure up to cfg.MaxRetries times. Returns ErrSourceFatal wrapped with
// the last error once the budget is exhausted, or ctx.Err() if cancelled
// during a retry wait.
func RunWithReconnect(ctx context.Context, connectFn ConnectFunc, cfg ReconnectConfig, log *zap.Logger) error {
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := connectFn(ctx)
		if err == nil {
			return nil
		}

		attempt++
		log.Warn("frame source connect failed", zap.Int("attempt", attempt), zap.Error(err))

		if attempt > cfg.MaxRetries {
			return fmt.Errorf("%w: %v", ErrSourceFatal, err)
		}

		delay := backoff(attempt, cfg)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func backoff(attempt int, cfg ReconnectConfig) time.Duration {
	delay := cfg.RetryDelay * time.Duration(uint64(1)<<uint(attempt-1))
	if delay > cfg.MaxRetryDelay {
		delay = cfg.MaxRetryDelay
	}
	return delay
}
