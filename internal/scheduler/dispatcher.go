package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/testbookautomation/final-telegram-paid-community-handler-for-larger-requests/internal/cache"
	"github.com/testbookautomation/final-telegram-paid-community-handler-for-larger-requests/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// dispatchBatchSize bounds how many due tasks one tick picks up.
const dispatchBatchSize = 32

// Dispatcher delivers due worker steps to the worker step endpoint.
type Dispatcher struct {
	rdb        *redis.Client
	workerURL  string
	token      string
	interval   time.Duration
	httpClient *http.Client
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Redis      *redis.Client
	WorkerURL  string
	Token      string
	Interval   time.Duration
	HTTPClient *http.Client
}

// NewDispatcher returns a dispatcher ready to run.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Dispatcher{
		rdb:        cfg.Redis,
		workerURL:  cfg.WorkerURL,
		token:      cfg.Token,
		interval:   interval,
		httpClient: httpClient,
	}
}

// Run polls for due tasks until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	if d.rdb == nil {
		middleware.Logger.Warn("dispatcher disabled: redis unavailable")
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.DrainDue(ctx)
		}
	}
}

// ackScript removes a task only while its score is still the one observed at
// poll time. A worker step that rescheduled the same request during handling
// moved the score, and that pending retry must survive the ack.
var ackScript = redis.NewScript(`
if tonumber(redis.call("ZSCORE", KEYS[1], ARGV[1])) == tonumber(ARGV[2]) then
	return redis.call("ZREM", KEYS[1], ARGV[1])
end
return 0`)

// DrainDue delivers every task due by now, removing each one only after the
// worker step endpoint acknowledged it and only if the task was not
// rescheduled while the step ran.
func (d *Dispatcher) DrainDue(ctx context.Context) {
	now := strconv.FormatInt(time.Now().Unix(), 10)

	tasks, err := d.rdb.ZRangeByScoreWithScores(ctx, cache.TaskQueueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   now,
		Count: dispatchBatchSize,
	}).Result()
	if err != nil {
		middleware.Logger.WarnContext(ctx, "dispatcher poll failed", slog.String("error", err.Error()))
		return
	}

	for _, task := range tasks {
		id, ok := task.Member.(string)
		if !ok {
			continue
		}
		if d.deliver(ctx, id) {
			middleware.TasksDispatched.WithLabelValues("acked").Inc()
			if err := d.ack(ctx, id, task.Score); err != nil {
				// Removal failure means a redelivery; the worker step is
				// idempotent so this is safe.
				middleware.Logger.WarnContext(ctx, "dispatcher dequeue failed",
					slog.String("request_id", id), slog.String("error", err.Error()))
			}
		} else {
			middleware.TasksDispatched.WithLabelValues("failed").Inc()
		}
	}
}

func (d *Dispatcher) ack(ctx context.Context, requestID string, score float64) error {
	return ackScript.Run(ctx, d.rdb, []string{cache.TaskQueueKey},
		requestID, strconv.FormatFloat(score, 'f', -1, 64)).Err()
}

type stepRequest struct {
	RequestID string `json:"request_id"`
}

func (d *Dispatcher) deliver(ctx context.Context, requestID string) bool {
	body, err := json.Marshal(stepRequest{RequestID: requestID})
	if err != nil {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.workerURL, bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(TrustHeader, d.token)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "worker step delivery failed",
			slog.String("request_id", requestID), slog.String("error", err.Error()))
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}
