// Package scheduler queues worker steps for later delivery.
//
// Tasks live in a Redis sorted set scored by due time. A dispatcher drains due
// entries and POSTs the worker step endpoint, removing an entry only once the
// endpoint acknowledged at the HTTP level. An entry that is delivered but not
// acknowledged stays queued and is delivered again: at-least-once, no ordering
// guarantee.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/testbookautomation/final-telegram-paid-community-handler-for-larger-requests/internal/cache"

	"github.com/redis/go-redis/v9"
)

// TrustHeader carries the shared token that authenticates dispatcher calls to
// the worker step endpoint.
const TrustHeader = "X-Scheduler-Token"

// Scheduler enqueues a worker step for a request, optionally delayed.
type Scheduler interface {
	Schedule(ctx context.Context, requestID string, delay time.Duration) error
}

// RedisScheduler stores pending steps in a Redis sorted set.
type RedisScheduler struct {
	rdb *redis.Client
}

// NewRedisScheduler returns a scheduler backed by the given Redis client.
func NewRedisScheduler(rdb *redis.Client) *RedisScheduler {
	return &RedisScheduler{rdb: rdb}
}

// Schedule enqueues requestID to run after delay. Scheduling the same request
// again moves its due time; a request has at most one pending step.
func (s *RedisScheduler) Schedule(ctx context.Context, requestID string, delay time.Duration) error {
	if s.rdb == nil {
		return errors.New("scheduler: redis unavailable")
	}
	due := time.Now().Add(delay)
	return s.rdb.ZAdd(ctx, cache.TaskQueueKey, redis.Z{
		Score:  float64(due.Unix()),
		Member: requestID,
	}).Err()
}
