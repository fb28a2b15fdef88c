// Package realtime keeps one push connection to the hub per view: connection lifecycle,
// group membership and event dispatch.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrConnClosed is returned by Conn.Receive once the connection is gone.
var ErrConnClosed = errors.New("connection closed")

// Frame is one named event received from the hub.
type Frame struct {
	Target  string
	Payload json.RawMessage
}

// Transport opens connections to the hub.
type Transport interface {
	Name() string
	Connect(ctx context.Context) (Conn, error)
}

// Conn is an established hub connection. Invoke may be called concurrently with Receive,
// but Receive itself has a single caller.
type Conn interface {
	Invoke(ctx context.Context, method string, args ...any) error
	Receive() (Frame, error)
	Close() error
}
