package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes envelopes to a board's Redis pub/sub channel.
type RedisPublisher struct {
	rc *redis.Client
}

// NewRedisPublisher wraps an existing client. The publisher owns rc and
// closes it on Close.
func NewRedisPublisher(rc *redis.Client) *RedisPublisher {
	return &RedisPublisher{rc: rc}
}

func (p *RedisPublisher) Publish(ctx context.Context, boardID string, env *Envelope) error {
	data, err := Encode(env)
	if err != nil {
		return err
	}
	if err := p.rc.Publish(ctx, RedisChannel(boardID), data).Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", RedisChannel(boardID), err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.rc.Close()
}
