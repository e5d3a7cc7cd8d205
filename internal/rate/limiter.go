package rate

import (
	"context"
	"time"
)

// Limiter is a fixed-window counter keyed by caller identity (client IP on
// the login path). The memory backend suits a single process; the redis
// backend survives multi-process deployment.
type Limiter interface {
	Allow(ctx context.Context, key string, now time.Time) (allowed bool, retryAfter time.Duration, err error)
}
