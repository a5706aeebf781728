package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"guessr-client/internal/config"
	"guessr-client/internal/protocol"
	"guessr-client/internal/session"
)

// ErrNotConnected is returned by Send once the connection has closed.
var ErrNotConnected = errors.New("not connected")

const defaultReadLimit = 1 << 20

type Option func(*Client)

// WithLogger sets the logger shared by the client and its session.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithHTTPClient sets the client used for the websocket handshake.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithReadLimit caps the size of one inbound message.
func WithReadLimit(n int64) Option {
	return func(c *Client) { c.readLimit = n }
}

// Client owns one websocket connection for the life of a session.
type Client struct {
	conn       *websocket.Conn
	session    *session.Session
	dispatcher *session.Dispatcher
	log        *zap.Logger
	httpClient *http.Client
	readLimit  int64

	closed    atomic.Bool
	closeOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
	err       error
}

// Dial opens the connection and returns once it is usable. Cancelling ctx
// aborts the handshake; it does not affect the connection after Dial returns.
func Dial(ctx context.Context, cfg config.Config, meta session.Metadata, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Client{
		log:       zap.NewNop(),
		readLimit: defaultReadLimit,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	url := cfg.WSURL()
	c.log.Debug("Connecting", zap.String("url", url))

	c.session = session.New(meta, cfg.RoundsPerMatch, c.log.Named("session"))
	c.dispatcher = session.NewDispatcher(c.session, c, c.log.Named("dispatch"))

	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPClient: c.httpClient})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	conn.SetReadLimit(c.readLimit)
	c.conn = conn

	c.log.Debug("Connection established")
	c.session.MarkOpen()

	readCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.readLoop(readCtx)

	return c, nil
}

func (c *Client) Session() *session.Session { return c.session }

// Done is closed when the connection stops reading.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err reports why the connection stopped. It is nil before Done is closed
// and after a local Close.
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

func (c *Client) readLoop(ctx context.Context) {
	defer close(c.done)
	defer c.closed.Store(true)

	for {
		msgType, data, err := c.conn.Read(ctx)
		if err != nil {
			if c.closed.Load() || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				c.log.Info("connection closed", zap.Error(err))
				return
			}
			c.err = err
			c.log.Error("connection error", zap.Error(err))
			return
		}

		if msgType != websocket.MessageText {
			c.log.Warn("ignoring non-text message")
			continue
		}

		_ = c.dispatcher.Dispatch(ctx, data)
	}
}

// Send writes one envelope carrying the current session metadata. It fails
// with ErrNotConnected once the connection has closed.
func (c *Client) Send(ctx context.Context, t protocol.RequestType, p protocol.Payload) error {
	if c.closed.Load() {
		return fmt.Errorf("send %s: %w", t, ErrNotConnected)
	}

	meta := c.session.Metadata()
	data, err := protocol.EncodeRequest(protocol.Request{
		Type:        t,
		PlayerID:    meta.PlayerID,
		Payload:     p,
		GameID:      meta.GameID,
		AuthSession: meta.AuthSession,
	})
	if err != nil {
		return err
	}

	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("send %s: %w", t, err)
	}

	c.log.Debug("Sent message", zap.Stringer("type", t))
	return nil
}

// Close closes the transport. Pending reads end; nothing is flushed.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		err = c.conn.Close(websocket.StatusNormalClosure, "bye")
		c.cancel()
		<-c.done
	})
	return err
}
