package detect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunWithReconnectSucceedsImmediately(t *testing.T) {
	calls := 0
	err := RunWithReconnect(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	}, DefaultReconnectConfig(), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRunWithReconnectExhaustsRetries(t *testing.T) {
	cfg := ReconnectConfig{MaxRetries: 2, RetryDelay: time.Millisecond, MaxRetryDelay: 10 * time.Millisecond}
	calls := 0
	err := RunWithReconnect(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("boom")
	}, cfg, zap.NewNop())
	require.ErrorIs(t, err, ErrSourceFatal)
	assert.Equal(t, 3, calls) // initial + 2 retries
}

func TestRunWithReconnectRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RunWithReconnect(ctx, func(ctx context.Context) error {
		return errors.New("boom")
	}, ReconnectConfig{MaxRetries: 5, RetryDelay: time.Second, MaxRetryDelay: time.Second}, zap.NewNop())
	require.ErrorIs(t, err, context.Canceled)
}
