package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/climateguardian/guardian/internal/models"
)

// RedisSink publishes each event as JSON on a Redis pub/sub channel. Events
// are also published on "<channel>:<type>" so subscribers can filter by type.
type RedisSink struct {
	client  redis.UniversalClient
	channel string
}

// NewRedisSink creates a sink publishing on channel.
func NewRedisSink(client redis.UniversalClient, channel string) *RedisSink {
	return &RedisSink{client: client, channel: channel}
}

// DialRedis parses a redis:// URL and verifies the server responds.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Name implements Sink.
func (s *RedisSink) Name() string { return "redis" }

// Channel returns the base channel name.
func (s *RedisSink) Channel() string { return s.channel }

// Deliver implements Sink. Network failures are retryable; the batch is
// sent in one pipeline.
func (s *RedisSink) Deliver(ctx context.Context, events []models.Event) error {
	pipe := s.client.Pipeline()
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal event %d: %w", e.Seq, err)
		}
		pipe.Publish(ctx, s.channel, data)
		pipe.Publish(ctx, s.channel+":"+string(e.Type), data)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return NewRetryableError(fmt.Errorf("redis publish: %w", err))
	}
	return nil
}
