package server

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures per-client limiting. Zero values disable a limit.
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
	MaxDataPerDay     int64 // bytes
}

// RateLimiter applies a token bucket per client plus a daily upload quota.
type RateLimiter struct {
	mu      sync.Mutex
	cfg     RateLimitConfig
	clients map[string]*clientUsage
	now     func() time.Time
}

type clientUsage struct {
	limiter   *rate.Limiter
	dataToday int64
	day       time.Time
}

// NewRateLimiter creates a rate limiter.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.Burst <= 0 {
		cfg.Burst = max(1, cfg.RequestsPerMinute/6)
	}
	return &RateLimiter{cfg: cfg, clients: make(map[string]*clientUsage), now: time.Now}
}

// Allow admits one request of dataSize bytes from client or explains why not.
func (rl *RateLimiter) Allow(client string, dataSize int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	usage := rl.usage(client, now)

	if day := truncateDay(now); !day.Equal(usage.day) {
		usage.day = day
		usage.dataToday = 0
	}
	if rl.cfg.MaxDataPerDay > 0 && usage.dataToday+dataSize > rl.cfg.MaxDataPerDay {
		return &QuotaExceededError{
			Limit:  rl.cfg.MaxDataPerDay,
			Used:   usage.dataToday,
			Resets: usage.day.AddDate(0, 0, 1),
		}
	}

	if usage.limiter != nil {
		r := usage.limiter.ReserveN(now, 1)
		if delay := r.DelayFrom(now); delay > 0 {
			r.CancelAt(now)
			return &RateLimitError{Limit: rl.cfg.RequestsPerMinute, RetryAfter: delay}
		}
	}

	usage.dataToday += dataSize
	return nil
}

func (rl *RateLimiter) usage(client string, now time.Time) *clientUsage {
	u, ok := rl.clients[client]
	if !ok {
		u = &clientUsage{day: truncateDay(now)}
		if rl.cfg.RequestsPerMinute > 0 {
			u.limiter = rate.NewLimiter(rate.Limit(float64(rl.cfg.RequestsPerMinute)/60), rl.cfg.Burst)
		}
		rl.clients[client] = u
	}
	return u
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Limit      int           // requests per minute
	RetryAfter time.Duration // how long to wait before retrying
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded (limit: %d/min, retry after: %v)", e.Limit, e.RetryAfter.Round(time.Second))
}

// QuotaExceededError represents a daily data quota violation.
type QuotaExceededError struct {
	Limit  int64     // bytes per day
	Used   int64     // bytes used today
	Resets time.Time // when the quota resets
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily data quota exceeded (used: %d, limit: %d, resets: %s)",
		e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
