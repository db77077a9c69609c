// Package transport maintains the long-lived connection to the server's
// notification push channel. It owns reconnection with bounded linear backoff
// and republishes every decoded inbound frame on the event bus; it holds no
// notification list of its own.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/adminhub/notification-client/api"
	"github.com/adminhub/notification-client/bus"
	"github.com/adminhub/notification-client/model"
)

var log = logrus.WithField("package", "transport")

// ErrClosed is returned by Connect after the client has been closed.
var ErrClosed = errors.New("the transport has been closed")

// Default connection settings.
const (
	DefaultBaseDelay        = 2 * time.Second
	DefaultMaxAttempts      = 5
	DefaultHandshakeTimeout = 10 * time.Second
)

// State represents the connection state of the transport client.
type State int

// The transport connection states. Failed is terminal until a caller
// re-invokes Connect; Closed is terminal, period.
const (
	Disconnected State = iota
	Connecting
	Connected
	Failed
	Closed
)

// String returns a human-readable name for a connection state.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Settings represents the constructor-provided configuration for a transport
// client. Zero values fall back to the package defaults.
type Settings struct {
	Endpoint         string
	BaseDelay        time.Duration
	MaxAttempts      int
	HandshakeTimeout time.Duration
}

// subscribeDirective is the frame sent to the server immediately after a
// successful handshake, naming the topic the client wants deliveries for.
type subscribeDirective struct {
	Action         string `json:"action"`
	Topic          string `json:"topic"`
	SubscriptionID string `json:"subscriptionId"`
}

// Client is the notification push channel client. Each client owns at most one
// active connection; create one per logical session and inject it where it is
// needed rather than sharing process-wide state.
type Client struct {
	settings    Settings
	credentials api.CredentialSource
	eventBus    *bus.Bus
	dialer      Dialer

	// after is replaced in tests to observe and skip backoff waits.
	after func(time.Duration) <-chan time.Time

	mu          sync.Mutex
	state       State
	running     bool
	attempt     int
	recipientID string
	conn        Conn
	cancel      context.CancelFunc
}

// NewClient creates a new transport client that publishes decoded
// notifications on the given event bus.
func NewClient(settings Settings, credentials api.CredentialSource, eventBus *bus.Bus) *Client {
	if settings.BaseDelay <= 0 {
		settings.BaseDelay = DefaultBaseDelay
	}
	if settings.MaxAttempts <= 0 {
		settings.MaxAttempts = DefaultMaxAttempts
	}
	if settings.HandshakeTimeout <= 0 {
		settings.HandshakeTimeout = DefaultHandshakeTimeout
	}
	return &Client{
		settings:    settings,
		credentials: credentials,
		eventBus:    eventBus,
		dialer:      &websocketDialer{handshakeTimeout: settings.HandshakeTimeout},
		after:       time.After,
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect starts maintaining a connection for the given recipient. It is
// idempotent while a connection attempt or an established connection is
// active, and it resets the attempt counter when invoked after the client has
// entered the Failed state. Connect returns ErrClosed after Close.
func (c *Client) Connect(recipientID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Closed {
		return ErrClosed
	}

	// An active connection loop also covers the backoff wait between
	// attempts, so there is nothing to do while one is running.
	if c.running {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.recipientID = recipientID
	c.attempt = 0
	c.state = Connecting
	c.running = true
	go c.run(ctx)

	return nil
}

// Close shuts the client down: it releases the underlying socket, cancels any
// pending reconnect timer, and guarantees that no further reconnection
// attempts are made. It is safe to call from any state, including before
// Connect, and safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Closed {
		return nil
	}
	c.state = Closed
	if c.cancel != nil {
		c.cancel()
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	return nil
}

// run is the connection maintenance loop. It exits when the client is closed
// or when the consecutive-failure cap is reached.
func (c *Client) run(ctx context.Context) {
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	for {
		if !c.enterState(Connecting) {
			return
		}

		conn, err := c.dialAndSubscribe(ctx)
		if err == nil {
			if !c.adopt(conn) {
				_ = conn.Close()
				return
			}
			log.Infof("connected to %s", c.settings.Endpoint)
			c.readLoop(conn)
			if ctx.Err() != nil {
				return
			}
			err = errors.New("the connection was dropped")
		}

		// Count the failure and either give up or schedule a retry.
		failures := c.recordFailure()
		log.Warnf("connection attempt for %s failed (%d of %d): %s",
			c.settings.Endpoint, failures, c.settings.MaxAttempts, err)
		if failures >= c.settings.MaxAttempts {
			log.Errorf("giving up on %s after %d attempts", c.settings.Endpoint, failures)

			// Enter Failed and clear the running flag in one step so that a
			// Connect issued immediately afterward starts a fresh loop.
			c.mu.Lock()
			if c.state != Closed {
				c.state = Failed
			}
			c.running = false
			c.mu.Unlock()
			return
		}
		if !c.enterState(Disconnected) {
			return
		}

		delay := time.Duration(failures) * c.settings.BaseDelay
		select {
		case <-c.after(delay):
		case <-ctx.Done():
			return
		}
	}
}

// dialAndSubscribe establishes a connection and sends the subscribe directive
// for the recipient's topic.
func (c *Client) dialAndSubscribe(ctx context.Context) (Conn, error) {
	wrapMsg := "unable to connect to the notification channel"

	c.mu.Lock()
	recipientID := c.recipientID
	c.mu.Unlock()

	// Attach the bearer credential to the handshake.
	header := http.Header{}
	token, err := c.credentials.BearerToken(ctx)
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}
	header.Set("Authorization", "Bearer "+token)

	conn, err := c.dialer.DialContext(ctx, c.settings.Endpoint, header)
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	// Issue the channel-subscribe request before reporting the connection as
	// usable.
	directive := subscribeDirective{
		Action:         "subscribe",
		Topic:          "notifications." + recipientID,
		SubscriptionID: uuid.NewString(),
	}
	err = conn.WriteJSON(&directive)
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, wrapMsg)
	}

	return conn, nil
}

// readLoop reads frames from an established connection until it drops,
// publishing every decodable notification on the event bus. Malformed frames
// are dropped with a warning; they never take the connection down.
func (c *Client) readLoop(conn Conn) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			c.mu.Unlock()
			return
		}

		notification, err := model.Decode(frame)
		if err != nil {
			log.Warnf("dropping malformed notification frame: %s", err)
			continue
		}
		c.eventBus.Publish(bus.ChannelNewNotification, notification)
	}
}

// enterState moves the client to the given state unless it has been closed, in
// which case false is returned and the connection loop should exit.
func (c *Client) enterState(state State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Closed {
		return false
	}
	c.state = state
	return true
}

// adopt installs an established connection, resetting the consecutive-failure
// counter so a later drop gets a fresh reconnect budget. It returns false if
// the client was closed while the connection was being established.
func (c *Client) adopt(conn Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Closed {
		return false
	}
	c.conn = conn
	c.state = Connected
	c.attempt = 0
	return true
}

// recordFailure increments the consecutive-failure counter and returns the new
// count.
func (c *Client) recordFailure() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempt++
	return c.attempt
}
