package cache

// Redis key layout for the service. Kept in one place so ops tooling and tests
// agree on what lives where.
const (
	// TaskQueueKey is the sorted set of pending worker steps, scored by due time.
	TaskQueueKey = "invite:tasks"

	// RateLimitPrefix prefixes per-resource request counters ("rl:<resource>:<id>").
	RateLimitPrefix = "rl:"
)
