package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/e7canasta/falldetectd/internal/debounce"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOnFallConfirmedSendsSuccessfully(t *testing.T) {
	var got atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL, true, zap.NewNop())
	n.OnFallConfirmed(&debounce.FallEvent{EventID: "evt_1", ConfirmedAt: 3, NotificationCount: 1})

	assert.Equal(t, int32(1), got.Load())
	assert.Equal(t, 0, n.PendingCount())
}

func TestOnFallConfirmedEnqueuesOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := New(srv.URL, true, zap.NewNop())
	n.OnFallConfirmed(&debounce.FallEvent{EventID: "evt_2", ConfirmedAt: 3, NotificationCount: 1})

	assert.Equal(t, 1, n.PendingCount())
}

func TestRetryPendingDrainsOnSuccess(t *testing.T) {
	failing := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL, true, zap.NewNop())
	n.OnFallConfirmed(&debounce.FallEvent{EventID: "evt_3", ConfirmedAt: 3, NotificationCount: 1})
	require.Equal(t, 1, n.PendingCount())

	failing = false
	n.RetryPending()
	assert.Equal(t, 0, n.PendingCount())
}

func TestRetryPendingStopsAtFirstFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := New(srv.URL, true, zap.NewNop())
	n.OnFallConfirmed(&debounce.FallEvent{EventID: "evt_4", ConfirmedAt: 3, NotificationCount: 1})
	n.OnFallConfirmed(&debounce.FallEvent{EventID: "evt_5", ConfirmedAt: 4, NotificationCount: 1})
	require.Equal(t, 2, n.PendingCount())

	n.RetryPending()
	assert.Equal(t, 2, n.PendingCount(), "queue untouched when retry still fails")
}

func TestDisabledNotifierIsNoop(t *testing.T) {
	n := New("http://example.invalid", false, zap.NewNop())
	n.OnFallConfirmed(&debounce.FallEvent{EventID: "evt_6"})
	n.OnFallRecovered(&debounce.FallEvent{EventID: "evt_6"})
	assert.Equal(t, 0, n.PendingCount())
}

// fakeStore is an in-memory PendingStore stand-in for RedisPendingStore,
// used to verify the save/load wiring without a live Redis instance.
type fakeStore struct {
	saved []debounce.FallEvent
}

func (f *fakeStore) Save(_ context.Context, events []debounce.FallEvent) error {
	f.saved = append([]debounce.FallEvent(nil), events...)
	return nil
}

func (f *fakeStore) Load(_ context.Context) ([]debounce.FallEvent, error) {
	return f.saved, nil
}

func TestNewWithStorePersistsOnEnqueueAndDrain(t *testing.T) {
	failing := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := &fakeStore{}
	n := NewWithStore(srv.URL, true, zap.NewNop(), store)
	n.OnFallConfirmed(&debounce.FallEvent{EventID: "evt_7", ConfirmedAt: 3, NotificationCount: 1})

	assert.Len(t, store.saved, 1)

	failing = false
	n.RetryPending()
	assert.Len(t, store.saved, 0)
}

func TestNewWithStoreRestoresPendingOnConstruction(t *testing.T) {
	store := &fakeStore{saved: []debounce.FallEvent{{EventID: "evt_8", ConfirmedAt: 10}}}
	n := NewWithStore("http://example.invalid", true, zap.NewNop(), store)
	assert.Equal(t, 1, n.PendingCount())
}
