package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/srg/ringlink/internal/event"
)

// Mirror forwards events as JSON over a websocket to a remote endpoint.
//
// The connection is dialed lazily on first use and redialed after a write
// failure; one failed invocation never poisons the next. Writes are
// serialized; gorilla connections allow a single concurrent writer.
type Mirror struct {
	url    string
	dialer *websocket.Dialer
	logger *logrus.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewMirror builds a mirror executor. Options: url (ws:// or wss://,
// required), handshake_timeout.
func NewMirror(deps Deps, opts map[string]string) (Executor, error) {
	url := opts["url"]
	if url == "" {
		return nil, fmt.Errorf("mirror executor: url is required")
	}

	handshakeTimeout := 10 * time.Second
	if raw := opts["handshake_timeout"]; raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("mirror executor: invalid handshake_timeout %q", raw)
		}
		handshakeTimeout = d
	}

	return &Mirror{
		url:    url,
		dialer: &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		logger: deps.Logger,
	}, nil
}

func (*Mirror) ID() string { return "mirror" }

// Execute sends one event frame. A write failure drops the connection so
// the next invocation redials.
func (m *Mirror) Execute(ctx context.Context, ev event.Semantic) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, err := m.connLocked(ctx)
	if err != nil {
		return "", err
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}

	if err := conn.WriteJSON(ev); err != nil {
		m.dropLocked()
		return "", fmt.Errorf("mirror write: %w", err)
	}
	return fmt.Sprintf("mirrored %s", ev.Kind), nil
}

// Health dials the endpoint if no connection is up.
func (m *Mirror) Health(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := m.connLocked(ctx)
	return err
}

// Close shuts the connection down.
func (m *Mirror) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropLocked()
	return nil
}

func (m *Mirror) connLocked(ctx context.Context) (*websocket.Conn, error) {
	if m.conn != nil {
		return m.conn, nil
	}

	conn, _, err := m.dialer.DialContext(ctx, m.url, nil)
	if err != nil {
		return nil, fmt.Errorf("mirror dial %s: %w", m.url, err)
	}
	if m.logger != nil {
		m.logger.WithField("url", m.url).Info("Mirror connected")
	}
	m.conn = conn
	return conn, nil
}

func (m *Mirror) dropLocked() {
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
}
