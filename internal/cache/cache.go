package cache

import (
	"context"
	"time"
)

// Cache defines the cache interface
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Clear(ctx context.Context, pattern string) error
}

// QueryCacheKey generates a cache key for a C-FIND result set, scoped
// by the remote AE queried and the query model/identifier used.
func QueryCacheKey(remoteAETitle, queryModel, identifierDigest string) string {
	return remoteAETitle + ":" + queryModel + ":" + identifierDigest
}
