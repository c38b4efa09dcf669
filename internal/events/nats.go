package events

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes envelopes to a board's NATS subject.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to url. Extra nats.Option values (e.g. a token)
// are passed through to nats.Connect.
func NewNATSPublisher(url string, opts ...nats.Option) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{conn: nc}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, boardID string, env *Envelope) error {
	data, err := Encode(env)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(NATSSubject(boardID), data); err != nil {
		return fmt.Errorf("publishing to %s: %w", NATSSubject(boardID), err)
	}
	// Flush so the frame is on the wire before callers move on.
	return p.conn.FlushWithContext(ctx)
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}
