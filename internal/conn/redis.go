package conn

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alfredjeanlab/boardsync/internal/events"
)

// RedisDialer subscribes to a board's event channel on Redis pub/sub. The
// credential is used as the Redis password.
type RedisDialer struct {
	Addr string
	// Options, when set, is the base client configuration. Addr and
	// Password are filled in per dial.
	Options *redis.Options
}

func (d *RedisDialer) Dial(ctx context.Context, boardID, credential string) (Transport, error) {
	opts := &redis.Options{}
	if d.Options != nil {
		o := *d.Options
		opts = &o
	}
	if opts.Addr == "" {
		opts.Addr = d.Addr
	}
	if credential != "" {
		opts.Password = credential
	}

	rc := redis.NewClient(opts)
	if err := rc.Ping(ctx).Err(); err != nil {
		rc.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", opts.Addr, err)
	}

	channel := events.RedisChannel(boardID)
	ps := rc.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		rc.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", channel, err)
	}
	return &redisTransport{rc: rc, ps: ps, control: events.RedisControlChannel(boardID)}, nil
}

type redisTransport struct {
	rc      *redis.Client
	ps      *redis.PubSub
	control string
}

func (t *redisTransport) Send(ctx context.Context, payload []byte) error {
	if err := t.rc.Publish(ctx, t.control, payload).Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", t.control, err)
	}
	return nil
}

func (t *redisTransport) Receive(ctx context.Context) ([]byte, error) {
	msg, err := t.ps.ReceiveMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("redis subscription: %w", err)
	}
	return []byte(msg.Payload), nil
}

func (t *redisTransport) Close() error {
	err := t.ps.Close()
	if cerr := t.rc.Close(); err == nil {
		err = cerr
	}
	return err
}
