package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ConnectorLimiter bounds outbound request rate per connector. Limiters are
// keyed by connector id so concurrent runs against the same connector share
// one budget while independent connectors never contend. State is in-memory:
// a process restart resets the window, which is acceptable because the limit
// protects the remote endpoint rather than enforcing exactness.
type ConnectorLimiter struct {
	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
}

func NewConnectorLimiter() *ConnectorLimiter {
	return &ConnectorLimiter{
		limiters: make(map[int64]*rate.Limiter),
	}
}

// Acquire blocks cooperatively until a permit is available under the
// connector's requests-per-minute budget, or until the context is done.
func (l *ConnectorLimiter) Acquire(ctx context.Context, connectorID int64, perMinute int) error {
	return l.limiterFor(connectorID, perMinute).Wait(ctx)
}

func (l *ConnectorLimiter) limiterFor(connectorID int64, perMinute int) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	interval := time.Minute / time.Duration(perMinute)
	limiter, ok := l.limiters[connectorID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(interval), 1)
		l.limiters[connectorID] = limiter
	} else if limiter.Limit() != rate.Every(interval) {
		// Connector rate limit was reconfigured between runs.
		limiter.SetLimit(rate.Every(interval))
	}

	return limiter
}
