package conn

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/alfredjeanlab/boardsync/internal/events"
)

// NATSDialer subscribes to a board's event subject on a NATS server. The
// credential is sent as the connection token. Client-side reconnection is
// disabled so the Manager alone decides when to retry.
type NATSDialer struct {
	URL string
	// Options are appended after the dialer's own.
	Options []nats.Option
	// Buffer is the subscription channel size. Default 256.
	Buffer int
}

func (d *NATSDialer) Dial(ctx context.Context, boardID, credential string) (Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	size := d.Buffer
	if size <= 0 {
		size = 256
	}
	t := &natsTransport{
		msgs:    make(chan *nats.Msg, size),
		closed:  make(chan struct{}),
		control: events.NATSControlSubject(boardID),
	}

	opts := []nats.Option{
		nats.Name("boardsync"),
		nats.NoReconnect(),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			t.markClosed(err)
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			t.markClosed(nil)
		}),
	}
	if deadline, ok := ctx.Deadline(); ok {
		opts = append(opts, nats.Timeout(time.Until(deadline)))
	}
	if credential != "" {
		opts = append(opts, nats.Token(credential))
	}
	opts = append(opts, d.Options...)

	nc, err := nats.Connect(d.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", d.URL, err)
	}
	subject := events.NATSSubject(boardID)
	sub, err := nc.ChanSubscribe(subject, t.msgs)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", subject, err)
	}
	if err := nc.FlushWithContext(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", subject, err)
	}
	t.nc = nc
	t.sub = sub
	return t, nil
}

type natsTransport struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	msgs    chan *nats.Msg
	control string

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

func (t *natsTransport) markClosed(err error) {
	t.closeOnce.Do(func() {
		if err == nil {
			err = &CloseError{Code: CloseAbnormal, Reason: "nats connection closed"}
		}
		t.closeErr = err
		close(t.closed)
	})
}

func (t *natsTransport) Send(ctx context.Context, payload []byte) error {
	if err := t.nc.Publish(t.control, payload); err != nil {
		return fmt.Errorf("publishing to %s: %w", t.control, err)
	}
	if _, ok := ctx.Deadline(); ok {
		return t.nc.FlushWithContext(ctx)
	}
	return nil
}

func (t *natsTransport) Receive(ctx context.Context) ([]byte, error) {
	select {
	case msg := <-t.msgs:
		return msg.Data, nil
	case <-t.closed:
		// Deliver anything already buffered before reporting the close.
		select {
		case msg := <-t.msgs:
			return msg.Data, nil
		default:
		}
		return nil, t.closeErr
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *natsTransport) Close() error {
	if t.sub != nil {
		_ = t.sub.Unsubscribe()
	}
	t.nc.Close()
	t.markClosed(nil)
	return nil
}
