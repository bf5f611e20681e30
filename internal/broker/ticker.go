package broker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"shoonya-screener/internal/errors"
)

// connState is the ticker connection lifecycle state. The handshake is
// modeled as an explicit state machine: a single message router branches
// on the message tag, and the router's behavior follows the state
// rather than swapping handlers mid-flight.
type connState int

const (
	stateIdle connState = iota
	stateConnecting
	stateReady
	stateClosed
)

// connectTimeout bounds both the websocket dial and the wait for the
// connect acknowledgement.
const connectTimeout = 3 * time.Second

// TickerConfig holds configuration for the streaming connection.
type TickerConfig struct {
	URL          string
	UserID       string
	AccountID    string
	SessionToken string
}

// ShoonyaTicker implements Ticker over the NorenWSTP websocket.
type ShoonyaTicker struct {
	cfg    TickerConfig
	logger zerolog.Logger

	onTouchline func(Touchline)
	onError     func(error)

	conn    *websocket.Conn
	state   connState
	readyCh chan struct{}
	done    chan struct{}

	mu      sync.RWMutex
	writeMu sync.Mutex // protects websocket writes
}

// NewShoonyaTicker creates a new ticker instance. Connect must be
// called before subscribing.
func NewShoonyaTicker(cfg TickerConfig, logger zerolog.Logger) *ShoonyaTicker {
	if cfg.URL == "" {
		cfg.URL = defaultTickerURL
	}
	return &ShoonyaTicker{
		cfg:     cfg,
		logger:  logger,
		readyCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// connectRequest is the client hello carrying the session token.
type connectRequest struct {
	Type         string `json:"t"`
	UserID       string `json:"uid"`
	AccountID    string `json:"actid"`
	SessionToken string `json:"susertoken"`
	Source       string `json:"source"`
}

// connectAck is the server's handshake acknowledgement.
type connectAck struct {
	Type   string `json:"t"`
	Status string `json:"s"`
}

// Connect dials the websocket, sends the connect request and waits for
// the acknowledgement. A dial failure or a missing ack within the
// connect timeout is reported as a typed ConnectivityError.
func (t *ShoonyaTicker) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.state == stateReady || t.state == stateConnecting {
		t.mu.Unlock()
		return nil
	}
	t.state = stateConnecting
	t.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: connectTimeout}
	conn, _, err := dialer.DialContext(ctx, t.cfg.URL, nil)
	if err != nil {
		t.setState(stateIdle)
		return errors.NewConnectivityError(t.cfg.URL, err)
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	if err := t.send(connectRequest{
		Type:         "c",
		UserID:       t.cfg.UserID,
		AccountID:    t.cfg.AccountID,
		SessionToken: t.cfg.SessionToken,
		Source:       "API",
	}); err != nil {
		conn.Close()
		t.setState(stateIdle)
		return errors.NewConnectivityError(t.cfg.URL, err)
	}

	go t.readLoop()

	select {
	case <-t.readyCh:
		t.logger.Info().Msg("Ticker connected")
		return nil
	case <-ctx.Done():
		t.Close()
		return ctx.Err()
	case <-time.After(connectTimeout):
		t.Close()
		return errors.NewConnectivityError(t.cfg.URL, errors.ErrConnectTimeout)
	}
}

func (t *ShoonyaTicker) setState(s connState) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// Close tears down the connection. Safe to call more than once.
func (t *ShoonyaTicker) Close() error {
	t.mu.Lock()
	if t.state == stateClosed {
		t.mu.Unlock()
		return nil
	}
	t.state = stateClosed
	conn := t.conn
	close(t.done)
	t.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// IsConnected reports whether the handshake has completed.
func (t *ShoonyaTicker) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state == stateReady
}

// Subscribe subscribes to the given "EXCH|token" keys.
func (t *ShoonyaTicker) Subscribe(keys []string) error {
	return t.sendKeyList("t", keys)
}

// Unsubscribe unsubscribes from the given "EXCH|token" keys.
func (t *ShoonyaTicker) Unsubscribe(keys []string) error {
	return t.sendKeyList("u", keys)
}

func (t *ShoonyaTicker) sendKeyList(msgType string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if !t.IsConnected() {
		return errors.ErrNotConnected
	}

	return t.send(struct {
		Type string `json:"t"`
		Keys string `json:"k"`
	}{Type: msgType, Keys: JoinKeys(keys)})
}

// OnTouchline sets the touchline handler. The handler runs on the read
// loop goroutine, so messages for one connection are delivered in
// arrival order; handlers must not block.
func (t *ShoonyaTicker) OnTouchline(handler func(Touchline)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onTouchline = handler
}

// OnError sets the error handler.
func (t *ShoonyaTicker) OnError(handler func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onError = handler
}

func (t *ShoonyaTicker) send(v interface{}) error {
	t.mu.RLock()
	conn := t.conn
	t.mu.RUnlock()
	if conn == nil {
		return errors.ErrNotConnected
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return conn.WriteJSON(v)
}

// readLoop reads frames until the connection closes and routes each
// message by its tag.
func (t *ShoonyaTicker) readLoop() {
	t.mu.RLock()
	conn := t.conn
	t.mu.RUnlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-t.done:
				// expected close
			default:
				t.reportError(errors.NewConnectivityError(t.cfg.URL, err))
			}
			return
		}
		t.route(data)
	}
}

// route is the single message router: it branches on the "t" tag
// instead of re-assigning handlers during the handshake.
func (t *ShoonyaTicker) route(data []byte) {
	var probe struct {
		Type string `json:"t"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		t.logger.Warn().Err(err).Msg("Dropping unparseable ticker frame")
		return
	}

	switch probe.Type {
	case "ck":
		var ack connectAck
		if err := json.Unmarshal(data, &ack); err != nil {
			t.reportError(errors.NewConnectivityError(t.cfg.URL, err))
			return
		}
		if ack.Status != "OK" {
			t.reportError(errors.NewBrokerError("ticker", "connect rejected: "+ack.Status, nil))
			return
		}
		t.mu.Lock()
		if t.state == stateConnecting {
			t.state = stateReady
			close(t.readyCh)
		}
		t.mu.Unlock()

	case "tk", "tf":
		var tl Touchline
		if err := json.Unmarshal(data, &tl); err != nil {
			t.logger.Warn().Err(err).Msg("Dropping unparseable touchline")
			return
		}
		t.mu.RLock()
		handler := t.onTouchline
		t.mu.RUnlock()
		if handler != nil {
			handler(tl)
		}

	default:
		t.logger.Debug().Str("type", probe.Type).Msg("Ignoring ticker message")
	}
}

func (t *ShoonyaTicker) reportError(err error) {
	t.mu.RLock()
	handler := t.onError
	t.mu.RUnlock()
	if handler != nil {
		handler(err)
	} else {
		t.logger.Error().Err(err).Msg("Ticker error")
	}
}

// Ensure ShoonyaTicker implements Ticker
var _ Ticker = (*ShoonyaTicker)(nil)
