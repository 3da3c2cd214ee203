package middleware

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invitegate_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// IssuanceAttempts counts issuer calls by outcome (issued, rate_limited, error).
	IssuanceAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invitegate_issuance_attempts_total",
		Help: "Total invite link issuance attempts by outcome",
	}, []string{"outcome"})

	// RequestsExhausted counts requests abandoned after the attempt ceiling.
	RequestsExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invitegate_requests_exhausted_total",
		Help: "Total requests marked failed after exhausting issuance attempts",
	})

	// EventsEmitted counts business events by name and delivery result.
	EventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invitegate_events_emitted_total",
		Help: "Total business events dispatched to the analytics sink",
	}, []string{"event", "result"})

	// TasksDispatched counts scheduler deliveries of the worker step by result.
	TasksDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invitegate_tasks_dispatched_total",
		Help: "Total worker step deliveries attempted by the dispatcher",
	}, []string{"result"})
)

var (
	promOnce sync.Once
	promInst *fiberprometheus.FiberPrometheus
)

// InitMetrics creates the fiberprometheus middleware for HTTP-level metrics.
// The underlying collectors register into the default registry, so the
// instance is created once and shared.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		promInst = fiberprometheus.New(serviceName)
	})
	return promInst
}

// MetricsMiddleware wraps the fiberprometheus middleware as a Fiber handler.
func MetricsMiddleware(prom *fiberprometheus.FiberPrometheus) fiber.Handler {
	return prom.Middleware
}
