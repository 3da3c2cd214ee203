package scheduler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/testbookautomation/final-telegram-paid-community-handler-for-larger-requests/internal/cache"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// workerStub records deliveries and answers with a scripted status code.
type workerStub struct {
	mu       sync.Mutex
	status   int
	received []string
	tokens   []string
}

func (w *workerStub) handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		var body stepRequest
		_ = json.NewDecoder(r.Body).Decode(&body)

		w.mu.Lock()
		w.received = append(w.received, body.RequestID)
		w.tokens = append(w.tokens, r.Header.Get(TrustHeader))
		status := w.status
		w.mu.Unlock()

		rw.WriteHeader(status)
	}
}

func (w *workerStub) deliveries() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.received...)
}

func (w *workerStub) seenTokens() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.tokens...)
}

func (w *workerStub) setStatus(status int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
}

func newTestDispatcher(t *testing.T, status int) (*Dispatcher, *workerStub, *redis.Client) {
	t.Helper()

	stub := &workerStub{status: status}
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	_, rdb := setupRedis(t)
	d := NewDispatcher(DispatcherConfig{
		Redis:     rdb,
		WorkerURL: srv.URL,
		Token:     "dispatch-secret",
	})
	return d, stub, rdb
}

func TestDrainDueDeliversAndAcks(t *testing.T) {
	d, stub, rdb := newTestDispatcher(t, http.StatusOK)
	ctx := context.Background()

	s := NewRedisScheduler(rdb)
	require.NoError(t, s.Schedule(ctx, "req-due", 0))
	require.NoError(t, s.Schedule(ctx, "req-later", time.Hour))

	d.DrainDue(ctx)

	// Only the due task was delivered, with the trust header.
	assert.Equal(t, []string{"req-due"}, stub.deliveries())
	assert.Equal(t, []string{"dispatch-secret"}, stub.seenTokens())

	// Acked task is gone, future task stays.
	count, err := rdb.ZCard(ctx, cache.TaskQueueKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestDrainDueKeepsUnackedTask(t *testing.T) {
	d, stub, rdb := newTestDispatcher(t, http.StatusInternalServerError)
	ctx := context.Background()

	s := NewRedisScheduler(rdb)
	require.NoError(t, s.Schedule(ctx, "req-1", 0))

	d.DrainDue(ctx)
	require.Equal(t, []string{"req-1"}, stub.deliveries())

	// Refused ack: the task survives for redelivery.
	count, err := rdb.ZCard(ctx, cache.TaskQueueKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// The worker recovers; the next drain delivers again and acks.
	stub.setStatus(http.StatusOK)

	d.DrainDue(ctx)
	assert.Equal(t, []string{"req-1", "req-1"}, stub.deliveries())

	count, err = rdb.ZCard(ctx, cache.TaskQueueKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestDrainDueKeepsRetryScheduledDuringStep(t *testing.T) {
	_, rdb := setupRedis(t)
	s := NewRedisScheduler(rdb)
	ctx := context.Background()

	// Worker behaves like a rate-limited step: it reschedules the same
	// request with a delay and then acks.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body stepRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.NoError(t, s.Schedule(r.Context(), body.RequestID, 30*time.Second))
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	d := NewDispatcher(DispatcherConfig{
		Redis:     rdb,
		WorkerURL: srv.URL,
		Token:     "dispatch-secret",
	})

	require.NoError(t, s.Schedule(ctx, "req-1", 0))
	d.DrainDue(ctx)

	// The ack must not wipe the retry the step just queued.
	score, err := rdb.ZScore(ctx, cache.TaskQueueKey, "req-1").Result()
	require.NoError(t, err)
	assert.Greater(t, int64(score), time.Now().Unix()+20)

	count, err := rdb.ZCard(ctx, cache.TaskQueueKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestDrainDueSurvivesWorkerOutage(t *testing.T) {
	stub := &workerStub{status: http.StatusOK}
	srv := httptest.NewServer(stub.handler())
	srv.Close() // worker is down

	_, rdb := setupRedis(t)
	d := NewDispatcher(DispatcherConfig{
		Redis:     rdb,
		WorkerURL: srv.URL,
		Token:     "dispatch-secret",
	})
	ctx := context.Background()

	s := NewRedisScheduler(rdb)
	require.NoError(t, s.Schedule(ctx, "req-1", 0))

	d.DrainDue(ctx)

	count, err := rdb.ZCard(ctx, cache.TaskQueueKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	_, rdb := setupRedis(t)
	d := NewDispatcher(DispatcherConfig{
		Redis:    rdb,
		Interval: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop on context cancel")
	}
}
