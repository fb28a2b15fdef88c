package realtime

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/katatrina/gundam-live/internal/event"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds configuration for the NATS transport
type NATSConfig struct {
	URL           string
	SubjectPrefix string // e.g. "gundam" -> gundam.<group>.<event>
	Token         string
	Timeout       time.Duration
	BufferSize    int
}

// DefaultNATSConfig returns default NATS transport configuration
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "gundam",
		Timeout:       10 * time.Second,
		BufferSize:    256,
	}
}

// NATSTransport maps the hub model onto NATS subjects: joining group g subscribes to
// <prefix>.<g>.> and the last subject token is the event name.
// Reconnection is left to the Manager, so the client library's own reconnect is disabled.
type NATSTransport struct {
	config NATSConfig
}

func NewNATSTransport(config NATSConfig) *NATSTransport {
	defaults := DefaultNATSConfig()
	if config.URL == "" {
		config.URL = defaults.URL
	}
	if config.SubjectPrefix == "" {
		config.SubjectPrefix = defaults.SubjectPrefix
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.BufferSize <= 0 {
		config.BufferSize = defaults.BufferSize
	}
	return &NATSTransport{config: config}
}

func (t *NATSTransport) Name() string {
	return t.config.URL
}

func (t *NATSTransport) Connect(ctx context.Context) (Conn, error) {
	conn := &natsConn{
		prefix: t.config.SubjectPrefix,
		msgs:   make(chan *nats.Msg, t.config.BufferSize),
		subs:   make(map[string]*nats.Subscription),
		closed: make(chan struct{}),
	}

	timeout := t.config.Timeout
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}

	opts := []nats.Option{
		nats.Name("gundam-live"),
		nats.Timeout(timeout),
		nats.NoReconnect(),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Error().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			conn.markClosed()
		}),
	}
	if t.config.Token != "" {
		opts = append(opts, nats.Token(t.config.Token))
	}

	nc, err := nats.Connect(t.config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	conn.nc = nc

	log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS connection established")
	return conn, nil
}

type natsConn struct {
	nc     *nats.Conn
	prefix string
	msgs   chan *nats.Msg

	mu        sync.Mutex
	subs      map[string]*nats.Subscription
	closeOnce sync.Once
	closed    chan struct{}
}

func (c *natsConn) Invoke(ctx context.Context, method string, args ...any) error {
	if len(args) != 1 {
		return fmt.Errorf("%s expects exactly one argument, got %d", method, len(args))
	}
	group, ok := args[0].(string)
	if !ok || group == "" {
		return fmt.Errorf("%s expects a group name", method)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch method {
	case event.HubMethodJoinGroup:
		if _, ok := c.subs[group]; ok {
			return nil
		}
		sub, err := c.nc.ChanSubscribe(c.subject(group), c.msgs)
		if err != nil {
			return fmt.Errorf("subscribe to %s: %w", group, err)
		}
		c.subs[group] = sub
		return nil
	case event.HubMethodLeaveGroup:
		sub, ok := c.subs[group]
		if !ok {
			return nil
		}
		delete(c.subs, group)
		if err := sub.Unsubscribe(); err != nil {
			return fmt.Errorf("unsubscribe from %s: %w", group, err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported hub method %q", method)
	}
}

func (c *natsConn) Receive() (Frame, error) {
	select {
	case msg := <-c.msgs:
		return Frame{
			Target:  msg.Subject[strings.LastIndex(msg.Subject, ".")+1:],
			Payload: msg.Data,
		}, nil
	case <-c.closed:
		return Frame{}, ErrConnClosed
	}
}

func (c *natsConn) Close() error {
	c.markClosed()
	c.nc.Close()
	return nil
}

func (c *natsConn) markClosed() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
}

func (c *natsConn) subject(group string) string {
	return fmt.Sprintf("%s.%s.>", c.prefix, group)
}
