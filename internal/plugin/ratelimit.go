package plugin

import (
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/KilimcininKorOglu/obacore/internal/config"
	"github.com/KilimcininKorOglu/obacore/internal/ldap"
	"github.com/KilimcininKorOglu/obacore/internal/operation"
)

// RateLimiter answers busy, before any decoding, to connections that exceed
// their request rate. Each connection has its own token bucket.
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
}

// NewRateLimiter creates a rate limiter from its configuration.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = int(cfg.RequestsPerSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limit:    rate.Limit(cfg.RequestsPerSecond),
		burst:    burst,
		limiters: make(map[int64]*rate.Limiter),
	}
}

// Name implements Plugin.
func (r *RateLimiter) Name() string { return "rate-limiter" }

// PreParse implements PreParsePlugin.
func (r *RateLimiter) PreParse(op operation.Operation) operation.PreParseResult {
	conn := op.Connection()
	if conn == nil {
		return operation.PreParseContinue
	}
	if r.limiter(conn.ID()).Allow() {
		return operation.PreParseContinue
	}
	op.SetResultCode(ldap.ResultBusy)
	op.AppendErrorMessage(fmt.Sprintf("request rate of %g per second exceeded", float64(r.limit)))
	return operation.PreParseRespondNow
}

func (r *RateLimiter) limiter(connID int64) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.limiters[connID]
	if !ok {
		l = rate.NewLimiter(r.limit, r.burst)
		r.limiters[connID] = l
	}
	return l
}

// Forget drops the bucket of a closed connection.
func (r *RateLimiter) Forget(connID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.limiters, connID)
}
