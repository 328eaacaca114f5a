package cache

import (
	"context"
	"time"
)

// Remote is the optional distributed L2 cache contract. A nil Remote
// attached to Cache means purely local caching; this interface exists so
// resolverd can run as a single process with no external dependency, or
// as a fleet sharing state through Redis, without the resolver core caring
// which.
type Remote interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration)
	Invalidate(ctx context.Context, key string) error
}
