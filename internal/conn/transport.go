// Package conn keeps a board's push channel alive.
//
// A Manager owns one Transport at a time. A single run-loop goroutine owns
// the transport, the reconnect timer, the heartbeat ticker and the liveness
// watchdog; every command and every transport callback is funneled through
// it. Consumers see the channel's lifecycle as a stream of Events.
package conn

import (
	"context"
	"errors"
	"fmt"
)

// Close codes carried by Closed events and CloseError.
const (
	CloseNormal          = 1000
	CloseGoingAway       = 1001
	CloseAbnormal        = 1006
	ClosePolicyViolation = 1008
)

var (
	// ErrNotConnected is returned by Send when no transport is open.
	ErrNotConnected = errors.New("conn: not connected")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("conn: manager closed")
	// ErrBoardMismatch is returned by Connect when the manager is active on a
	// different board.
	ErrBoardMismatch = errors.New("conn: already active on another board")
)

// Transport is one open push channel.
type Transport interface {
	// Send writes a single frame.
	Send(ctx context.Context, payload []byte) error
	// Receive blocks for the next inbound frame. It returns an error once the
	// channel is closed, a *CloseError when the peer closed it deliberately.
	Receive(ctx context.Context) ([]byte, error)
	// Close releases the channel. It unblocks a pending Receive.
	Close() error
}

// Dialer opens transports for a board.
type Dialer interface {
	Dial(ctx context.Context, boardID, credential string) (Transport, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, boardID, credential string) (Transport, error)

func (f DialerFunc) Dial(ctx context.Context, boardID, credential string) (Transport, error) {
	return f(ctx, boardID, credential)
}

// CloseError reports a channel closed by the peer with a code.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("connection closed (code %d)", e.Code)
	}
	return fmt.Sprintf("connection closed (code %d): %s", e.Code, e.Reason)
}

// closeDetails maps a transport error onto the code and reason of a Closed event.
func closeDetails(err error) (int, string) {
	var ce *CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Reason
	}
	return CloseAbnormal, err.Error()
}
