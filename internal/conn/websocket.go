package conn

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketDialer opens the board service's WebSocket endpoint,
// /api/tasks/ws/project/{board}?token={credential}, on the host of BaseURL.
type WebSocketDialer struct {
	// BaseURL is the HTTP API base, e.g. "https://board.example.com". The
	// scheme is mapped to ws or wss.
	BaseURL string
	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
	Header http.Header
}

// URL returns the endpoint for boardID.
func (d *WebSocketDialer) URL(boardID, credential string) (string, error) {
	base := strings.TrimRight(d.BaseURL, "/")
	u, err := url.Parse(base + "/api/tasks/ws/project/" + url.PathEscape(boardID))
	if err != nil {
		return "", fmt.Errorf("parsing base URL %q: %w", d.BaseURL, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported base URL scheme %q", u.Scheme)
	}
	if credential != "" {
		q := u.Query()
		q.Set("token", credential)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (d *WebSocketDialer) Dial(ctx context.Context, boardID, credential string) (Transport, error) {
	target, err := d.URL(boardID, credential)
	if err != nil {
		return nil, err
	}
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	c, resp, err := dialer.DialContext(ctx, target, d.Header)
	if err != nil {
		// The token rides in the query string; keep it out of errors.
		safe := target
		if i := strings.IndexByte(safe, '?'); i >= 0 {
			safe = safe[:i]
		}
		if resp != nil {
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				return nil, &CloseError{Code: ClosePolicyViolation, Reason: "handshake rejected: " + resp.Status}
			}
			return nil, fmt.Errorf("websocket handshake with %s: %s: %w", safe, resp.Status, err)
		}
		return nil, fmt.Errorf("dialing %s: %w", safe, err)
	}
	return &wsTransport{conn: c}, nil
}

type wsTransport struct {
	conn      *websocket.Conn
	closeOnce sync.Once
}

func (t *wsTransport) Send(ctx context.Context, payload []byte) error {
	deadline, _ := ctx.Deadline()
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, payload)
}

func (t *wsTransport) Receive(ctx context.Context) ([]byte, error) {
	deadline, _ := ctx.Deadline()
	if err := t.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	for {
		kind, data, err := t.conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				return nil, &CloseError{Code: ce.Code, Reason: ce.Text}
			}
			return nil, err
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (t *wsTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = t.conn.Close()
	})
	return err
}
