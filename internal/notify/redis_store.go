package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/e7canasta/falldetectd/internal/debounce"
	"github.com/go-redis/redis/v8"
)

// PendingStore persists the notifier's retry queue so a process restart
// does not silently drop events that were still awaiting redelivery.
type PendingStore interface {
	Save(ctx context.Context, events []debounce.FallEvent) error
	Load(ctx context.Context) ([]debounce.FallEvent, error)
}

// RedisPendingStore stores the whole pending queue as one JSON blob under
// a single key, following the SetState/GetState shape used for cached
// alarm state elsewhere in the corpus.
type RedisPendingStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisPendingStore builds a store addressing addr (host:port). The
// key holds the full pending queue; ttl bounds how long an unresolved
// queue survives a crash before Redis itself reaps it.
func NewRedisPendingStore(addr, key string, ttl time.Duration) *RedisPendingStore {
	client := redis.NewClient(&redis.Options{Addr: addr})
	return &RedisPendingStore{client: client, key: key, ttl: ttl}
}

// Save implements PendingStore.
func (s *RedisPendingStore) Save(ctx context.Context, events []debounce.FallEvent) error {
	data, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("notifier pending store: marshal: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("notifier pending store: set: %w", err)
	}
	return nil
}

// Load implements PendingStore. A missing key (nothing pending yet, or
// TTL expired) is not an error: it returns an empty queue.
func (s *RedisPendingStore) Load(ctx context.Context) ([]debounce.FallEvent, error) {
	val, err := s.client.Get(ctx, s.key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("notifier pending store: get: %w", err)
	}

	var events []debounce.FallEvent
	if err := json.Unmarshal([]byte(val), &events); err != nil {
		return nil, fmt.Errorf("notifier pending store: unmarshal: %w", err)
	}
	return events, nil
}

// Close releases the underlying Redis client.
func (s *RedisPendingStore) Close() error {
	return s.client.Close()
}
