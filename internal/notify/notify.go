// Package notify implements the push-transport fall-observer: it posts a
// human-readable alert over HTTP on confirm/recover and, on transport
// failure, enqueues the event onto a pending retry queue drained by
// RetryPending.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/e7canasta/falldetectd/internal/debounce"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Notifier posts fall lifecycle alerts to a configured webhook endpoint
// and retries failed sends on a later call to RetryPending or after the
// next successful send.
type Notifier struct {
	client     *resty.Client
	webhookURL string
	enabled    bool
	log        *zap.Logger
	store      PendingStore // nil disables cross-restart durability

	mu      sync.Mutex
	pending []debounce.FallEvent
}

// New constructs a Notifier with no pending-queue durability: a process
// restart loses whatever was still awaiting redelivery. When enabled is
// false, every observer method is a no-op.
func New(webhookURL string, enabled bool, log *zap.Logger) *Notifier {
	return newNotifier(webhookURL, enabled, log, nil)
}

// NewWithStore constructs a Notifier backed by store: the pending retry
// queue is loaded from it at startup and re-saved after every mutation,
// so a crash mid-retry does not silently drop an unresolved alert.
func NewWithStore(webhookURL string, enabled bool, log *zap.Logger, store PendingStore) *Notifier {
	return newNotifier(webhookURL, enabled, log, store)
}

func newNotifier(webhookURL string, enabled bool, log *zap.Logger, store PendingStore) *Notifier {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetHeader("Content-Type", "application/json")

	n := &Notifier{client: client, webhookURL: webhookURL, enabled: enabled, log: log, store: store}

	if store != nil {
		loaded, err := store.Load(context.Background())
		if err != nil {
			log.Warn("notifier: failed to load persisted pending queue", zap.Error(err))
		} else if len(loaded) > 0 {
			n.pending = loaded
			log.Info("notifier: restored pending queue", zap.Int("count", len(loaded)))
		}
	}
	return n
}

// persistPending saves the current queue to the durable store, if one is
// configured. Called with n.mu held.
func (n *Notifier) persistPending() {
	if n.store == nil {
		return
	}
	if err := n.store.Save(context.Background(), n.pending); err != nil {
		n.log.Warn("notifier: failed to persist pending queue", zap.Error(err))
	}
}

// message is the JSON body posted to the webhook.
type message struct {
	EventID            string `json:"event_id"`
	ConfirmedAtISO     string `json:"confirmed_at"`
	NotificationCount  uint32 `json:"notification_count"`
	Kind               string `json:"kind"` // "confirmed", "recovered", "retry"
}

// OnFallConfirmed implements debounce.FallObserver.
func (n *Notifier) OnFallConfirmed(event *debounce.FallEvent) {
	if !n.enabled {
		return
	}
	n.send(*event, "confirmed")
}

// OnFallRecovered implements debounce.FallObserver.
func (n *Notifier) OnFallRecovered(event *debounce.FallEvent) {
	if !n.enabled {
		return
	}
	n.send(*event, "recovered")
}

func (n *Notifier) send(event debounce.FallEvent, kind string) {
	msg := message{
		EventID:           event.EventID,
		ConfirmedAtISO:    time.Unix(int64(event.ConfirmedAt), 0).UTC().Format(time.RFC3339),
		NotificationCount: event.NotificationCount,
		Kind:              kind,
	}

	resp, err := n.client.R().SetBody(msg).Post(n.webhookURL)
	if err != nil || resp.IsError() {
		n.log.Warn("notifier: send failed, enqueuing for retry",
			zap.String("event_id", event.EventID), zap.Error(err))
		n.mu.Lock()
		n.pending = append(n.pending, event)
		n.persistPending()
		n.mu.Unlock()
		return
	}
	n.log.Info("notifier: sent", zap.String("event_id", event.EventID), zap.String("kind", kind))

	// the transport is reachable again: drain anything queued earlier.
	n.RetryPending()
}

// RetryPending drains the pending queue front-to-back, stopping at the
// first renewed failure (the remaining queue is left intact for the next
// call). It runs after every successful send; callers may also invoke it
// directly.
func (n *Notifier) RetryPending() {
	if !n.enabled {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	for len(n.pending) > 0 {
		event := n.pending[0]
		msg := message{
			EventID:           event.EventID,
			ConfirmedAtISO:    time.Unix(int64(event.ConfirmedAt), 0).UTC().Format(time.RFC3339),
			NotificationCount: event.NotificationCount,
			Kind:              "retry",
		}

		resp, err := n.client.R().SetBody(msg).Post(n.webhookURL)
		if err != nil || resp.IsError() {
			break
		}
		n.pending = n.pending[1:]
		n.persistPending()
	}
}

// PendingCount reports the current retry queue depth, for diagnostics.
func (n *Notifier) PendingCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.pending)
}
