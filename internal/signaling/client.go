package signaling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/BioHazard786/cafe/internal/dns"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 32

	// DefaultReconnectDelay is the fixed pause between a lost channel and
	// the next dial attempt.
	DefaultReconnectDelay = 3 * time.Second
)

// Dispatcher receives every decoded inbound envelope.
type Dispatcher interface {
	Dispatch(env Envelope)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(env Envelope)

func (f DispatcherFunc) Dispatch(env Envelope) { f(env) }

// Options configures a Client.
type Options struct {
	// URL is the room socket address, see RoomURL.
	URL string

	// Jar supplies the session cookies sent with the upgrade request.
	Jar http.CookieJar

	// ReconnectDelay defaults to DefaultReconnectDelay.
	ReconnectDelay time.Duration

	// OnStateChange is told when the channel opens (true) or closes (false).
	OnStateChange func(connected bool)

	Logger *slog.Logger
}

// Client owns the room channel. It redials forever after any close and
// drops outbound envelopes while the channel is down.
type Client struct {
	url      string
	dialer   *websocket.Dialer
	delay    time.Duration
	dispatch Dispatcher
	onState  func(bool)
	log      *slog.Logger

	// after is swapped in tests to observe reconnect waits.
	after func(time.Duration) <-chan time.Time

	mu  sync.Mutex
	out chan []byte
}

// NewClient creates a room channel client. Call Run to start it.
func NewClient(opts Options, d Dispatcher) *Client {
	delay := opts.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 10 * time.Second,
		Jar:              opts.Jar,
		NetDialContext:   dns.DialContext,
	}

	return &Client{
		url:      opts.URL,
		dialer:   dialer,
		delay:    delay,
		dispatch: d,
		onState:  opts.OnStateChange,
		log:      logger.With("component", "signaling"),
		after:    time.After,
	}
}

// Run keeps the channel open until ctx is done. Every close, clean or not,
// and every failed dial is followed by one wait of the reconnect delay.
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := c.session(ctx); err != nil && ctx.Err() == nil {
			c.log.Warn("room channel closed", "error", err)
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		c.log.Info("reconnecting", "delay", c.delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.after(c.delay):
		}
	}
}

// Send queues env for the open channel. It reports false, and the envelope
// is dropped, when the channel is not open or its buffer is full.
func (c *Client) Send(env Envelope) bool {
	data, err := Encode(env)
	if err != nil {
		c.log.Error("encode envelope", "type", env.Type(), "error", err)
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.out == nil {
		c.log.Debug("channel not open, dropping envelope", "type", env.Type())
		return false
	}

	select {
	case c.out <- data:
		return true
	default:
		c.log.Warn("send buffer full, dropping envelope", "type", env.Type())
		return false
	}
}

// Connected reports whether the channel is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out != nil
}

// session runs one connection from dial to close.
func (c *Client) session(ctx context.Context) error {
	conn, resp, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: %w (status: %s)", c.url, err, resp.Status)
		}
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	out := make(chan []byte, sendBuffer)
	done := make(chan struct{})

	c.setOutgoing(out)
	c.log.Info("room channel open", "url", c.url)
	c.notify(true)

	go c.writePump(ctx, conn, out, done)

	err = c.readPump(conn)

	c.setOutgoing(nil)
	close(done)
	conn.Close()
	c.notify(false)

	return err
}

// readPump decodes frames until the connection fails. Frames that do not
// decode are logged and dropped.
func (c *Client) readPump(conn *websocket.Conn) error {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		env, err := Decode(data)
		if err != nil {
			if errors.Is(err, ErrUnknownType) {
				c.log.Debug("dropping frame", "error", err)
			} else {
				c.log.Warn("dropping malformed frame", "error", err)
			}
			continue
		}

		c.dispatch.Dispatch(env)
	}
}

// writePump is the only writer on conn.
func (c *Client) writePump(ctx context.Context, conn *websocket.Conn, out <-chan []byte, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data := <-out:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Warn("write failed", "error", err)
				conn.Close()
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}

		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
			return

		case <-done:
			return
		}
	}
}

func (c *Client) setOutgoing(out chan []byte) {
	c.mu.Lock()
	c.out = out
	c.mu.Unlock()
}

func (c *Client) notify(connected bool) {
	if c.onState != nil {
		c.onState(connected)
	}
}
