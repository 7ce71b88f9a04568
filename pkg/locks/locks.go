package locks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Adda-Baaj/bazaar-khobor/internal/logger"
)

const (
	keyPrefix  = "khobor:lock:"
	defaultTTL = 2 * time.Minute
)

// ErrNotAcquired is returned when another holder owns the key.
var ErrNotAcquired = errors.New("lock held elsewhere")

// Locker serializes work on a key across processes. The returned release
// func is safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// NoopLocker grants every request. Used when no Redis is configured.
type NoopLocker struct{}

func (NoopLocker) Acquire(context.Context, string) (func(), error) { return func() {}, nil }

// releaseScript deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLocker holds a lock with SET NX PX and a per-holder token.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	log    logger.Logger
}

// NewRedisLocker parses redisURL (redis:// form or bare host:port) and pings
// the server.
func NewRedisLocker(ctx context.Context, redisURL string, ttl time.Duration, log logger.Logger) (*RedisLocker, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, errors.New("redis url is empty")
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		opt = &redis.Options{Addr: redisURL}
	}
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return newRedisLocker(client, ttl, log), nil
}

func newRedisLocker(client *redis.Client, ttl time.Duration, log logger.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisLocker{client: client, ttl: ttl, log: logger.Ensure(log)}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	name := Key(key)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, name, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotAcquired, key)
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// the caller's ctx may already be done
		rctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.client, []string{name}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			l.log.WarnObj("lock release failed", "lock_release_error", map[string]any{
				"key":   name,
				"error": err.Error(),
			})
		}
	}, nil
}

func (l *RedisLocker) Close() error { return l.client.Close() }

// Key namespaces a caller key.
func Key(key string) string { return keyPrefix + key }
