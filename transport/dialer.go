package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the subset of a websocket connection used by the transport client.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
	Close() error
}

// Dialer establishes connections to the notification channel. Tests provide
// fake implementations so the state machine can be exercised without a server.
type Dialer interface {
	DialContext(ctx context.Context, endpoint string, header http.Header) (Conn, error)
}

// websocketDialer is the production dialer.
type websocketDialer struct {
	handshakeTimeout time.Duration
}

// DialContext performs the websocket handshake against the endpoint.
func (d *websocketDialer) DialContext(ctx context.Context, endpoint string, header http.Header) (Conn, error) {
	dialer := &websocket.Dialer{HandshakeTimeout: d.handshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
		}
		return nil, err
	}
	return conn, nil
}
