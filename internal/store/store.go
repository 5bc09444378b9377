// Package store persists the confirmed/recovered fall lifecycle to
// Postgres. EventLogger implements debounce.FallObserver: OnFallConfirmed
// upserts a row (inserting on first notify, bumping notification_count on
// re-notify), and OnFallRecovered stamps recovered_at.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/e7canasta/falldetectd/internal/debounce"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// db is the slice of *pgxpool.Pool this package actually uses. Depending
// on the interface rather than the concrete pool lets tests substitute a
// fake without a live Postgres instance.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// EventRow mirrors the persisted shape of one fall event.
type EventRow struct {
	EventID           string
	ConfirmedAt       float64
	RecoveredAt       *float64
	NotificationCount int32
	ClipPath          *string
	CreatedAt         time.Time
}

// EventLogger is a Postgres-backed debounce.FallObserver.
type EventLogger struct {
	conn  db
	close func()
	log   *zap.Logger
}

// Open connects to Postgres at dsn and ensures the events table exists.
func Open(ctx context.Context, dsn string, log *zap.Logger) (*EventLogger, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("event store: connect: %w", err)
	}

	l := newEventLogger(pool, pool.Close, log)
	if err := l.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return l, nil
}

// newEventLogger builds an EventLogger over any db, used directly by Open
// and by tests with a fake in place of *pgxpool.Pool.
func newEventLogger(conn db, closeFn func(), log *zap.Logger) *EventLogger {
	return &EventLogger{conn: conn, close: closeFn, log: log}
}

func (l *EventLogger) ensureSchema(ctx context.Context) error {
	_, err := l.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS fall_events (
			event_id            TEXT PRIMARY KEY,
			confirmed_at        DOUBLE PRECISION NOT NULL,
			recovered_at        DOUBLE PRECISION,
			notification_count  INTEGER NOT NULL DEFAULT 1,
			clip_path           TEXT,
			created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("event store: ensure schema: %w", err)
	}
	return nil
}

// OnFallConfirmed implements debounce.FallObserver. Failures are logged,
// never propagated — a store outage must not keep other observers from
// seeing a confirmed fall.
func (l *EventLogger) OnFallConfirmed(event *debounce.FallEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := l.conn.Exec(ctx, `
		INSERT INTO fall_events (event_id, confirmed_at, notification_count)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id) DO UPDATE
			SET notification_count = EXCLUDED.notification_count
	`, event.EventID, event.ConfirmedAt, event.NotificationCount)
	if err != nil {
		l.log.Error("event store: insert/update confirmed failed", zap.String("event_id", event.EventID), zap.Error(err))
	}
}

// OnFallRecovered implements debounce.FallObserver. FallEvent carries no
// recovery timestamp of its own (LastNotifiedAt is the last confirm/
// re-notify time, not when recovery actually fired), so recoveredAt is
// stamped with wall-clock time at the moment the callback runs, matching
// the original's on_fall_recovered().
func (l *EventLogger) OnFallRecovered(event *debounce.FallEvent) {
	l.onFallRecoveredAt(event, float64(time.Now().Unix()))
}

func (l *EventLogger) onFallRecoveredAt(event *debounce.FallEvent, recoveredAt float64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := l.conn.Exec(ctx, `
		UPDATE fall_events SET recovered_at = $2 WHERE event_id = $1
	`, event.EventID, recoveredAt)
	if err != nil {
		l.log.Error("event store: recover update failed", zap.String("event_id", event.EventID), zap.Error(err))
	}
}

// UpdateClipPath records the on-disk clip path once the deferred writer
// lands a file.
func (l *EventLogger) UpdateClipPath(ctx context.Context, eventID, path string) error {
	_, err := l.conn.Exec(ctx, `
		UPDATE fall_events SET clip_path = $2 WHERE event_id = $1
	`, eventID, path)
	if err != nil {
		return fmt.Errorf("event store: update clip path: %w", err)
	}
	return nil
}

// GetRecent returns up to limit most recently confirmed events, newest
// first.
func (l *EventLogger) GetRecent(ctx context.Context, limit int) ([]EventRow, error) {
	rows, err := l.conn.Query(ctx, `
		SELECT event_id, confirmed_at, recovered_at, notification_count, clip_path, created_at
		FROM fall_events
		ORDER BY confirmed_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("event store: query recent: %w", err)
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		var r EventRow
		if err := rows.Scan(&r.EventID, &r.ConfirmedAt, &r.RecoveredAt, &r.NotificationCount, &r.ClipPath, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("event store: scan recent row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close releases the underlying connection.
func (l *EventLogger) Close() {
	if l.close != nil {
		l.close()
	}
}
