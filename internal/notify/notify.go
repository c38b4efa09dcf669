// Package notify carries user-facing notices out of the sync core. What a
// notice looks like on screen is up to the sink.
package notify

import (
	"log/slog"
	"sync"
)

// Kind classifies a notice.
type Kind string

const (
	KindInfo  Kind = "info"
	KindError Kind = "error"
)

// Notice is a single user-facing message.
type Notice struct {
	Kind Kind
	Text string
	// Actor is the display name of the user who caused the notice, empty
	// for locally caused notices.
	Actor string
	// Retryable marks errors the user can resolve by repeating the gesture.
	Retryable bool
}

// Sink receives notices. Implementations must not block for long; they are
// called from gesture and push-event paths.
type Sink interface {
	Notify(n Notice)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Notice)

func (f SinkFunc) Notify(n Notice) { f(n) }

// Discard drops every notice.
var Discard Sink = SinkFunc(func(Notice) {})

// LogSink writes notices to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Notify(n Notice) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{"text", n.Text}
	if n.Actor != "" {
		attrs = append(attrs, "actor", n.Actor)
	}
	if n.Kind == KindError {
		logger.Warn("board notice", append(attrs, "retryable", n.Retryable)...)
		return
	}
	logger.Info("board notice", attrs...)
}

// Multi fans a notice out to every sink in order.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(n Notice) {
		for _, s := range sinks {
			if s != nil {
				s.Notify(n)
			}
		}
	})
}

// Recorder keeps every notice it receives. It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

// Notices returns a copy of the recorded notices.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Last returns the most recent notice.
func (r *Recorder) Last() (Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}, false
	}
	return r.notices[len(r.notices)-1], true
}

// Reset forgets recorded notices.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.notices = nil
	r.mu.Unlock()
}
