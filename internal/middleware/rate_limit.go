package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Limiter decides whether another request from key fits in the current window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimit rejects requests over the limiter's budget with 429. Requests for
// which exempt returns true skip the limiter entirely. If the limiter itself
// fails the request is let through.
func RateLimit(l Limiter, exempt func(c *gin.Context) bool, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if exempt != nil && exempt(c) {
			c.Next()
			return
		}

		ok, err := l.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			log.WithError(err).Warn("rate limiter unavailable, allowing request")
			c.Next()
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limited",
				"message": "Too Many Requests",
			})
			return
		}
		c.Next()
	}
}

// ExemptReadsAndVotes limits only writes, and lets vote toggles through so a
// user flipping a vote a few times in a row is never throttled.
func ExemptReadsAndVotes(c *gin.Context) bool {
	return c.Request.Method == http.MethodGet || strings.HasSuffix(c.FullPath(), "/vote")
}

type clientState struct {
	windowStart  time.Time
	requestCount int
}

// MemoryLimiter is a fixed-window counter per key held in process memory.
type MemoryLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]*clientState
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		clients: make(map[string]*clientState),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	state, ok := l.clients[key]
	if !ok || now.Sub(state.windowStart) >= l.window {
		state = &clientState{windowStart: now}
		l.clients[key] = state
	}

	state.requestCount++
	return state.requestCount <= l.limit, nil
}

// Cleanup drops idle clients every window until ctx is done.
func (l *MemoryLimiter) Cleanup(ctx context.Context) {
	t := time.NewTicker(l.window)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.prune()
		}
	}
}

func (l *MemoryLimiter) prune() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, state := range l.clients {
		if now.Sub(state.windowStart) > 2*l.window {
			delete(l.clients, key)
		}
	}
}

// RedisLimiter keeps the fixed-window counters in Redis so every replica
// shares one budget per client.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

func NewRedisLimiter(ctx context.Context, url string, limit int, window time.Duration) (*RedisLimiter, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("error parsing redis URL: %w", err)
	}

	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		return nil, fmt.Errorf("error connecting to redis: %w", err)
	}

	return &RedisLimiter{client: c, limit: limit, window: window, prefix: "ratelimit"}, nil
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	bucket := time.Now().UnixNano() / int64(l.window)
	rkey := fmt.Sprintf("%s:%s:%d", l.prefix, key, bucket)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, rkey)
	pipe.Expire(ctx, rkey, l.window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("error executing redis pipeline: %w", err)
	}

	n, err := incr.Result()
	if err != nil {
		return false, fmt.Errorf("error getting INCR result: %w", err)
	}
	return n <= int64(l.limit), nil
}

func (l *RedisLimiter) Close() error {
	if err := l.client.Close(); err != nil {
		return fmt.Errorf("error closing redis client: %w", err)
	}
	return nil
}
