package cache

import (
	"github.com/redis/go-redis/v9"
)

// New creates a new Redis client. Callers decide whether a failed ping is
// fatal; rate caching and sessions degrade rather than block startup.
func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: addr,
	})
}
