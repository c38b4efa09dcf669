package conn

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/boardsync/internal/events"
)

// Config tunes a Manager. Use DefaultConfig and override fields.
type Config struct {
	// MaxAttempts is the number of consecutive reconnects tried before the
	// manager gives up with StatusFailed. Zero disables reconnection.
	MaxAttempts int
	// ReconnectInterval is the fixed delay before each reconnect.
	ReconnectInterval time.Duration
	// HeartbeatInterval is how often a ping frame is sent while connected.
	// Zero disables the heartbeat.
	HeartbeatInterval time.Duration
	// LivenessTimeout closes a connection that delivered no frame for this
	// long. Zero disables the watchdog.
	LivenessTimeout time.Duration
	// DialTimeout bounds a single dial.
	DialTimeout time.Duration
	// WriteTimeout bounds a single Send or heartbeat write.
	WriteTimeout time.Duration
}

// DefaultConfig returns the settings used by the board web client.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       10,
		ReconnectInterval: 2 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		DialTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// Manager maintains one logical push channel to a board.
type Manager struct {
	dialer Dialer
	cfg    Config
	logger *slog.Logger

	cmds    chan func(*loop)
	dialed  chan dialResult
	inbound chan inboundFrame
	events  chan Event
	quit    chan struct{}
	done    chan struct{}

	closeOnce sync.Once

	mu    sync.RWMutex
	state State
}

type dialResult struct {
	gen uint64
	t   Transport
	err error
}

type inboundFrame struct {
	gen     uint64
	payload []byte
	err     error
}

// NewManager starts a manager in StatusDisconnected. Call Close to stop it.
func NewManager(dialer Dialer, cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	// A zero interval would turn a dropped channel into a tight dial loop.
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = DefaultConfig().ReconnectInterval
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultConfig().DialTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}
	m := &Manager{
		dialer:  dialer,
		cfg:     cfg,
		logger:  logger,
		cmds:    make(chan func(*loop)),
		dialed:  make(chan dialResult),
		inbound: make(chan inboundFrame),
		events:  make(chan Event),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		state:   State{Status: StatusDisconnected},
	}
	go m.run()
	return m
}

// Connect opens the push channel for boardID and returns the event stream.
// The stream is the same for the manager's lifetime and is closed by Close.
//
// Connect is a no-op while connected or connecting. While reconnecting it
// skips the pending delay and dials immediately. From failed or
// disconnected it dials with a fresh retry budget.
func (m *Manager) Connect(boardID, credential string) (<-chan Event, error) {
	if boardID == "" {
		return nil, fmt.Errorf("conn: board id is required")
	}
	err := m.do(context.Background(), func(l *loop) error {
		return l.connect(boardID, credential)
	})
	if err != nil {
		return nil, err
	}
	return m.events, nil
}

// Events returns the event stream without connecting.
func (m *Manager) Events() <-chan Event { return m.events }

// Send writes payload on the open transport. It returns ErrNotConnected
// unless the status is StatusConnected.
func (m *Manager) Send(ctx context.Context, payload []byte) error {
	return m.do(ctx, func(l *loop) error {
		return l.send(ctx, payload)
	})
}

// Disconnect closes the channel without reconnecting. The manager stays
// usable; Connect may be called again.
func (m *Manager) Disconnect() {
	_ = m.do(context.Background(), func(l *loop) error {
		l.disconnect()
		return nil
	})
}

// State returns the current status and retry count.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Close stops the run loop, closes any transport and closes the event stream.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() { close(m.quit) })
	<-m.done
	return nil
}

// do runs fn on the loop goroutine and waits for its result.
func (m *Manager) do(ctx context.Context, fn func(*loop) error) error {
	reply := make(chan error, 1)
	select {
	case m.cmds <- func(l *loop) { reply <- fn(l) }:
	case <-m.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-reply
}

func (m *Manager) run() {
	defer close(m.done)
	defer close(m.events)

	l := &loop{m: m, status: StatusDisconnected}
	for {
		var out chan<- Event
		var next Event
		if len(l.queue) > 0 {
			out = m.events
			next = l.queue[0]
		}

		select {
		case fn := <-m.cmds:
			fn(l)
		case res := <-m.dialed:
			l.onDial(res)
		case in := <-m.inbound:
			l.onInbound(in)
		case <-timerC(l.reconnect):
			l.reconnect = nil
			l.onReconnect()
		case <-tickerC(l.heartbeat):
			l.onHeartbeat()
		case <-timerC(l.liveness):
			l.liveness = nil
			l.onLivenessTimeout()
		case out <- next:
			l.queue[0] = nil
			l.queue = l.queue[1:]
		case <-m.quit:
			l.shutdown()
			return
		}
	}
}

func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func tickerC(t *time.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

// loop is the state owned by the run goroutine. Nothing else touches it.
type loop struct {
	m *Manager

	status     Status
	retries    int
	boardID    string
	credential string

	// gen increments whenever a dial or transport is superseded; results
	// tagged with an older generation are dropped.
	gen        uint64
	transport  Transport
	dialCancel context.CancelFunc
	readCancel context.CancelFunc

	reconnect *time.Timer
	heartbeat *time.Ticker
	liveness  *time.Timer

	// queue holds events not yet taken by the consumer. It is unbounded so
	// the loop never blocks on a slow reader.
	queue []Event
}

func (l *loop) emit(ev Event) {
	l.queue = append(l.queue, ev)
}

func (l *loop) setStatus(s Status) {
	if s == l.status {
		return
	}
	l.status = s
	l.m.mu.Lock()
	l.m.state = State{Status: s, RetryCount: l.retries, BoardID: l.boardID}
	l.m.mu.Unlock()
	l.m.logger.Debug("conn: status changed",
		"board", l.boardID,
		"status", s,
		"retries", l.retries)
	l.emit(StatusChanged{Status: s, RetryCount: l.retries})
}

func (l *loop) connect(boardID, credential string) error {
	switch l.status {
	case StatusConnected, StatusConnecting:
		if boardID != l.boardID {
			return fmt.Errorf("%w: %s", ErrBoardMismatch, l.boardID)
		}
		return nil
	case StatusReconnecting:
		if boardID != l.boardID {
			return fmt.Errorf("%w: %s", ErrBoardMismatch, l.boardID)
		}
		l.stopReconnect()
		l.credential = credential
		l.dial()
		return nil
	default:
		l.boardID = boardID
		l.credential = credential
		l.retries = 0
		l.dial()
		return nil
	}
}

func (l *loop) dial() {
	l.gen++
	gen := l.gen
	ctx, cancel := context.WithTimeout(context.Background(), l.m.cfg.DialTimeout)
	l.dialCancel = cancel
	l.setStatus(StatusConnecting)

	m := l.m
	boardID, credential := l.boardID, l.credential
	go func() {
		t, err := m.dialer.Dial(ctx, boardID, credential)
		select {
		case m.dialed <- dialResult{gen: gen, t: t, err: err}:
		case <-m.done:
			if t != nil {
				_ = t.Close()
			}
		}
	}()
}

func (l *loop) onDial(res dialResult) {
	if res.gen != l.gen || l.dialCancel == nil {
		if res.t != nil {
			_ = res.t.Close()
		}
		return
	}
	l.dialCancel()
	l.dialCancel = nil

	if res.err != nil {
		l.m.logger.Warn("conn: dial failed", "board", l.boardID, "error", res.err)
		l.emit(TransportError{Err: res.err})
		code, reason := closeDetails(res.err)
		l.emit(Closed{Code: code, Reason: reason})
		l.scheduleReconnect()
		return
	}

	l.transport = res.t
	l.retries = 0
	l.setStatus(StatusConnected)
	l.emit(Opened{})
	l.m.logger.Info("conn: connected", "board", l.boardID)

	if l.m.cfg.HeartbeatInterval > 0 {
		l.heartbeat = time.NewTicker(l.m.cfg.HeartbeatInterval)
	}
	if l.m.cfg.LivenessTimeout > 0 {
		l.liveness = time.NewTimer(l.m.cfg.LivenessTimeout)
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.readCancel = cancel
	go l.m.read(ctx, l.gen, res.t)
}

// read pumps frames from t into the loop until t fails.
func (m *Manager) read(ctx context.Context, gen uint64, t Transport) {
	for {
		payload, err := t.Receive(ctx)
		select {
		case m.inbound <- inboundFrame{gen: gen, payload: payload, err: err}:
		case <-ctx.Done():
			return
		case <-m.done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (l *loop) onInbound(in inboundFrame) {
	if in.gen != l.gen || l.transport == nil {
		return
	}
	if in.err != nil {
		code, reason := closeDetails(in.err)
		l.m.logger.Warn("conn: connection lost", "board", l.boardID, "code", code, "error", in.err)
		l.abnormalClose(code, reason)
		return
	}
	if l.liveness != nil {
		l.liveness.Reset(l.m.cfg.LivenessTimeout)
	}
	l.emit(InboundMessage{Payload: in.payload})
}

func (l *loop) onHeartbeat() {
	if l.status != StatusConnected || l.transport == nil {
		return
	}
	if err := l.write(context.Background(), events.PingFrame()); err != nil {
		l.m.logger.Warn("conn: heartbeat failed", "board", l.boardID, "error", err)
	}
}

func (l *loop) onLivenessTimeout() {
	if l.status != StatusConnected {
		return
	}
	l.m.logger.Warn("conn: no frames received, closing",
		"board", l.boardID,
		"timeout", l.m.cfg.LivenessTimeout)
	l.abnormalClose(CloseAbnormal, "liveness timeout")
}

func (l *loop) onReconnect() {
	if l.status != StatusReconnecting {
		return
	}
	l.m.logger.Info("conn: reconnecting",
		"board", l.boardID,
		"attempt", l.retries,
		"max", l.m.cfg.MaxAttempts)
	l.dial()
}

func (l *loop) send(ctx context.Context, payload []byte) error {
	if l.status != StatusConnected || l.transport == nil {
		return ErrNotConnected
	}
	return l.write(ctx, payload)
}

// write sends on the open transport. A failed write tears the transport
// down the same way a failed read does.
func (l *loop) write(ctx context.Context, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, l.m.cfg.WriteTimeout)
	defer cancel()
	if err := l.transport.Send(ctx, payload); err != nil {
		l.emit(TransportError{Err: err})
		code, reason := closeDetails(err)
		l.abnormalClose(code, reason)
		return fmt.Errorf("conn: send: %w", err)
	}
	return nil
}

// abnormalClose drops the transport and applies the retry policy.
func (l *loop) abnormalClose(code int, reason string) {
	l.dropTransport()
	l.emit(Closed{Code: code, Reason: reason})
	l.scheduleReconnect()
}

func (l *loop) scheduleReconnect() {
	if l.retries < l.m.cfg.MaxAttempts {
		l.retries++
		l.setStatus(StatusReconnecting)
		l.reconnect = time.NewTimer(l.m.cfg.ReconnectInterval)
		return
	}
	l.m.logger.Warn("conn: giving up",
		"board", l.boardID,
		"attempts", l.retries)
	l.setStatus(StatusFailed)
}

func (l *loop) disconnect() {
	l.stopReconnect()
	l.cancelDial()
	l.dropTransport()
	if l.status == StatusDisconnected {
		return
	}
	l.retries = 0
	l.setStatus(StatusDisconnected)
	l.emit(Closed{Code: CloseNormal, Reason: "client disconnect", Clean: true})
	l.m.logger.Info("conn: disconnected", "board", l.boardID)
}

func (l *loop) shutdown() {
	l.stopReconnect()
	l.cancelDial()
	l.dropTransport()
	l.retries = 0
	l.status = StatusDisconnected
	l.m.mu.Lock()
	l.m.state = State{Status: StatusDisconnected, BoardID: l.boardID}
	l.m.mu.Unlock()
}

func (l *loop) stopReconnect() {
	if l.reconnect != nil {
		l.reconnect.Stop()
		l.reconnect = nil
	}
}

func (l *loop) cancelDial() {
	if l.dialCancel != nil {
		l.dialCancel()
		l.dialCancel = nil
		l.gen++
	}
}

// dropTransport stops the timers tied to the open transport and closes it.
func (l *loop) dropTransport() {
	if l.heartbeat != nil {
		l.heartbeat.Stop()
		l.heartbeat = nil
	}
	if l.liveness != nil {
		l.liveness.Stop()
		l.liveness = nil
	}
	if l.readCancel != nil {
		l.readCancel()
		l.readCancel = nil
	}
	if l.transport != nil {
		if err := l.transport.Close(); err != nil {
			l.m.logger.Debug("conn: closing transport", "board", l.boardID, "error", err)
		}
		l.transport = nil
		l.gen++
	}
}
