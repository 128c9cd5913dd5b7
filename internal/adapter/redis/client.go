package redis

import (
	"context"
	"fmt"
	"time"

	rd "github.com/redis/go-redis/v9"
)

const keyPrefix = "storefront"

// Commander is the subset of the Redis client used by this package.
type Commander interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *rd.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *rd.Cmd
}

// NewClient creates a Redis client with short network timeouts.
func NewClient(addr string) *rd.Client {
	return rd.NewClient(&rd.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// LockKey namespaces a distributed lock name.
func LockKey(name string) string {
	return fmt.Sprintf("%s:lock:%s", keyPrefix, name)
}

// RateKey namespaces a rate limit bucket.
func RateKey(bucket string) string {
	return fmt.Sprintf("%s:rate:%s", keyPrefix, bucket)
}
