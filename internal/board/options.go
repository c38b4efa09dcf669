package board

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/alfredjeanlab/boardsync/internal/client"
	"github.com/alfredjeanlab/boardsync/internal/config"
	"github.com/alfredjeanlab/boardsync/internal/conn"
	"github.com/alfredjeanlab/boardsync/internal/drag"
	"github.com/alfredjeanlab/boardsync/internal/notify"
	"github.com/alfredjeanlab/boardsync/internal/presence"
)

// Identity names the local user.
type Identity interface {
	ActorID() string
}

// StaticIdentity is a fixed user id.
type StaticIdentity string

func (s StaticIdentity) ActorID() string { return string(s) }

// Options wires a Session. Client and Dialer are required.
type Options struct {
	Client client.TaskClient
	Dialer conn.Dialer
	// Credential is handed to the dialer on every connect.
	Credential string
	Identity   Identity
	Notices    notify.Sink
	Conn       conn.Config
	Drag       drag.Config
	// Presence, when nil, is a tracker owned by the session with the
	// default idle reaper.
	Presence *presence.Tracker
	// OnEvent, when set, sees every connection event after the session has
	// handled it. It runs on the session's consumer goroutine.
	OnEvent func(conn.Event)
	Logger  *slog.Logger
}

func (o *Options) validate() error {
	var errs []error
	if o.Client == nil {
		errs = append(errs, errors.New("client is required"))
	}
	if o.Dialer == nil {
		errs = append(errs, errors.New("dialer is required"))
	}
	return errors.Join(errs...)
}

// NewDialer returns the push-channel dialer selected by cfg.Transport.
func NewDialer(cfg *config.Config) (conn.Dialer, error) {
	switch cfg.Transport {
	case config.TransportWebSocket, "":
		return &conn.WebSocketDialer{BaseURL: cfg.APIURL}, nil
	case config.TransportNATS:
		return &conn.NATSDialer{URL: cfg.NATSURL}, nil
	case config.TransportRedis:
		return &conn.RedisDialer{Addr: cfg.RedisAddr}, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

// OptionsFromConfig builds session options for cfg. The HTTP client and
// dialer are created here; notices and presence are left to the caller.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	if err := cfg.Validate(); err != nil {
		return Options{}, err
	}
	dialer, err := NewDialer(cfg)
	if err != nil {
		return Options{}, err
	}

	cc := conn.DefaultConfig()
	cc.MaxAttempts = cfg.ReconnectAttempts
	cc.ReconnectInterval = cfg.ReconnectInterval
	cc.HeartbeatInterval = cfg.HeartbeatInterval
	cc.LivenessTimeout = cfg.LivenessTimeout

	opts := Options{
		Client:     client.NewHTTPClient(cfg.APIURL, cfg.Token),
		Dialer:     dialer,
		Credential: cfg.Token,
		Conn:       cc,
		Drag:       drag.Config{CommitTimeout: cfg.CommitTimeout},
	}
	if cfg.Actor != "" {
		opts.Identity = StaticIdentity(cfg.Actor)
	}
	return opts, nil
}
