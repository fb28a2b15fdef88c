package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lithammer/shortuuid/v4"
	"github.com/rs/zerolog/log"
)

// Loại message trên giao thức hub
const (
	messageTypeInvoke     = "invoke"
	messageTypeEvent      = "event"
	messageTypeCompletion = "completion"
	messageTypePing       = "ping"
)

// hubMessage is the JSON frame exchanged with the hub.
type hubMessage struct {
	Type         string            `json:"type"`
	InvocationID string            `json:"invocation_id,omitempty"`
	Target       string            `json:"target,omitempty"`
	Arguments    []json.RawMessage `json:"arguments,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// WebSocketConfig holds configuration for hub connections
type WebSocketConfig struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
	MaxMessageSize   int64
}

// DefaultWebSocketConfig returns default hub connection configuration
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadTimeout:      60 * time.Second,
		PingInterval:     30 * time.Second,
		MaxMessageSize:   64 * 1024,
	}
}

// WebSocketTransport connects to a hub endpoint over a WebSocket.
type WebSocketTransport struct {
	url         string
	accessToken string
	config      WebSocketConfig
	dialer      *websocket.Dialer
}

func NewWebSocketTransport(url string, accessToken string, config WebSocketConfig) *WebSocketTransport {
	defaults := DefaultWebSocketConfig()
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = defaults.HandshakeTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = defaults.ReadTimeout
	}
	if config.PingInterval <= 0 {
		config.PingInterval = defaults.PingInterval
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = defaults.MaxMessageSize
	}

	return &WebSocketTransport{
		url:         url,
		accessToken: accessToken,
		config:      config,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.HandshakeTimeout,
		},
	}
}

func (t *WebSocketTransport) Name() string {
	return t.url
}

func (t *WebSocketTransport) Connect(ctx context.Context) (Conn, error) {
	header := http.Header{}
	if t.accessToken != "" {
		header.Set("Authorization", "Bearer "+t.accessToken)
	}

	ws, resp, err := t.dialer.DialContext(ctx, t.url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial %s (status %d): %w", t.url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to dial %s: %w", t.url, err)
	}

	conn := &wsConn{
		ws:     ws,
		config: t.config,
		done:   make(chan struct{}),
	}

	ws.SetReadLimit(t.config.MaxMessageSize)
	ws.SetReadDeadline(time.Now().Add(t.config.ReadTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(t.config.ReadTimeout))
	})

	go conn.pingPump()

	log.Info().Str("url", t.url).Msg("hub connection established")
	return conn, nil
}

type wsConn struct {
	ws     *websocket.Conn
	config WebSocketConfig

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// Invoke sends a hub method call. Completions are not awaited: membership changes are
// confirmed by the events that start (or stop) arriving.
func (c *wsConn) Invoke(ctx context.Context, method string, args ...any) error {
	arguments := make([]json.RawMessage, 0, len(args))
	for _, arg := range args {
		raw, err := json.Marshal(arg)
		if err != nil {
			return fmt.Errorf("failed to encode argument of %s: %w", method, err)
		}
		arguments = append(arguments, raw)
	}

	msg := hubMessage{
		Type:         messageTypeInvoke,
		InvocationID: shortuuid.New(),
		Target:       method,
		Arguments:    arguments,
	}

	deadline := time.Now().Add(c.config.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	c.ws.SetWriteDeadline(deadline)
	if err := c.ws.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to invoke %s: %w", method, err)
	}
	return nil
}

func (c *wsConn) Receive() (Frame, error) {
	for {
		var msg hubMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			select {
			case <-c.done:
				return Frame{}, ErrConnClosed
			default:
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Msg("unexpected hub close error")
			}
			return Frame{}, fmt.Errorf("%w: %w", ErrConnClosed, err)
		}
		c.ws.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		switch msg.Type {
		case messageTypeEvent:
			var payload json.RawMessage
			if len(msg.Arguments) > 0 {
				payload = msg.Arguments[0]
			}
			return Frame{Target: msg.Target, Payload: payload}, nil
		case messageTypeCompletion:
			if msg.Error != "" {
				log.Warn().
					Str("invocation_id", msg.InvocationID).
					Str("error", msg.Error).
					Msg("hub invocation failed")
			}
		case messageTypePing:
		default:
			log.Debug().Str("type", msg.Type).Msg("ignoring hub message")
		}
	}
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()

		err = c.ws.Close()
	})
	return err
}

func (c *wsConn) pingPump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.config.WriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				log.Warn().Err(err).Msg("failed to send ping")
				return
			}
		}
	}
}
