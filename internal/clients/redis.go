package clients

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// redisPinger is the interface used by RedisChecker.
// It is implemented by the real go-redis client and by test doubles.
type redisPinger interface {
	PingResult(ctx context.Context) (string, error)
	Close() error
}

// realRedisPinger adapts *redis.Client so tests need not construct a
// *redis.StatusCmd.
type realRedisPinger struct {
	client *redis.Client
}

func (r *realRedisPinger) PingResult(ctx context.Context) (string, error) {
	return r.client.Ping(ctx).Result()
}

func (r *realRedisPinger) Close() error {
	return r.client.Close()
}

// RedisChecker sends PING and expects PONG.
type RedisChecker struct {
	url  string
	dial func(url string) (redisPinger, error)
}

func NewRedisChecker(url string) *RedisChecker {
	return &RedisChecker{url: url, dial: realDial}
}

func (c *RedisChecker) Check(ctx context.Context) error {
	p, err := c.dial(c.url)
	if err != nil {
		return err
	}
	defer p.Close() //nolint:errcheck

	val, err := p.PingResult(ctx)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if val != "PONG" {
		return fmt.Errorf("unexpected PING response: %q", val)
	}
	return nil
}

// realDial accepts redis:// and rediss:// URLs.
func realDial(url string) (redisPinger, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	opts.MaxRetries = -1
	return &realRedisPinger{client: redis.NewClient(opts)}, nil
}
