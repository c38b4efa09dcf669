package conn

import "fmt"

// Status is the lifecycle state of a Manager.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
	StatusFailed       Status = "failed"
)

func (s Status) String() string { return string(s) }

// State is a point-in-time view of a Manager.
type State struct {
	Status     Status
	RetryCount int
	BoardID    string
}

// Event is delivered on the stream returned by Manager.Connect. The concrete
// types are Opened, InboundMessage, Closed, TransportError and StatusChanged.
type Event interface {
	connEvent()
}

// Opened reports that a transport is open and the retry budget was reset.
type Opened struct{}

// InboundMessage carries one raw frame from the board service.
type InboundMessage struct {
	Payload []byte
}

// Closed reports that the transport went away. Clean is true only for a
// local Disconnect.
type Closed struct {
	Code   int
	Reason string
	Clean  bool
}

// TransportError reports a dial or write failure.
type TransportError struct {
	Err error
}

// StatusChanged reports every status transition.
type StatusChanged struct {
	Status     Status
	RetryCount int
}

func (Opened) connEvent()         {}
func (InboundMessage) connEvent() {}
func (Closed) connEvent()         {}
func (TransportError) connEvent() {}
func (StatusChanged) connEvent()  {}

func (c Closed) String() string {
	return fmt.Sprintf("closed code=%d clean=%t reason=%q", c.Code, c.Clean, c.Reason)
}
