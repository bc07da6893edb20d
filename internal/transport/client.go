// Package transport is a socket.io client (engine.io v3, websocket transport
// only) exposing the On/Emit surface the room session needs.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrClosed = errors.New("transport closed")

const (
	EventConnect    = "connect"
	EventDisconnect = "disconnect"

	sendBuffer   = 64
	writeTimeout = 10 * time.Second
)

type Options struct {
	// Path is the socket.io mount path, "/socket.io" when empty.
	Path   string
	Query  url.Values
	Dialer *websocket.Dialer
	Logger *zerolog.Logger
}

// Client owns one websocket. Handlers run on the read goroutine; Emit may be
// called from any goroutine.
type Client struct {
	conn      *websocket.Conn
	handshake Handshake
	log       zerolog.Logger

	mu       sync.RWMutex
	handlers map[string][]func(json.RawMessage)

	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

// Endpoint turns an http(s) host and socket.io path into the websocket URL.
func Endpoint(host, path string, query url.Values) (string, error) {
	u, err := url.Parse(host)
	if err != nil {
		return "", fmt.Errorf("parse host: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if path == "" {
		path = "/socket.io"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.Trim(path, "/") + "/"

	q := url.Values{}
	for k, v := range query {
		q[k] = append([]string(nil), v...)
	}
	q.Set("EIO", "3")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Dial opens the websocket and reads the engine.io handshake.
func Dial(ctx context.Context, host string, opts Options) (*Client, error) {
	endpoint, err := Endpoint(host, opts.Path, opts.Query)
	if err != nil {
		return nil, err
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	_, frame, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read handshake: %w", err)
	}
	hs, err := parseHandshake(string(frame))
	if err != nil {
		conn.Close()
		return nil, err
	}

	c := &Client{
		conn:      conn,
		handshake: hs,
		log:       logger.With().Str("sid", hs.SID).Logger(),
		handlers:  make(map[string][]func(json.RawMessage)),
		send:      make(chan []byte, sendBuffer),
		closed:    make(chan struct{}),
	}
	c.log.Debug().Str("url", endpoint).Dur("ping_interval", hs.interval()).Msg("engine.io open")
	return c, nil
}

func (c *Client) Handshake() Handshake { return c.handshake }

// On registers fn for event. The payload is the first event argument, or nil.
func (c *Client) On(event string, fn func(payload json.RawMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], fn)
}

func (c *Client) Emit(event string, payload any) error {
	frame, err := encodeEvent(event, payload)
	if err != nil {
		return err
	}
	return c.enqueue(frame)
}

func (c *Client) enqueue(frame []byte) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	case <-c.closed:
		return ErrClosed
	}
}

// Run pumps frames until the server disconnects, the connection fails or ctx
// is done. It returns nil on a clean server disconnect.
func (c *Client) Run(ctx context.Context) error {
	go c.writePump(ctx)
	defer c.Close()

	err := c.readPump()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

func (c *Client) readPump() error {
	deadline := c.handshake.interval() + c.handshake.timeout()
	_ = c.conn.SetReadDeadline(time.Now().Add(deadline))
	defer c.dispatch(EventDisconnect, nil)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
				return nil
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug().Err(err).Msg("websocket closed by server")
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(deadline))
		if len(data) == 0 {
			continue
		}

		switch data[0] {
		case enginePing:
			if err := c.enqueue([]byte{enginePong}); err != nil {
				return nil
			}
		case enginePong, engineNoop, engineUpgrade:
		case engineClose:
			c.log.Debug().Msg("engine.io close")
			return nil
		case engineMessage:
			done, err := c.handleMessage(string(data[1:]))
			if err != nil {
				c.log.Warn().Err(err).Msg("dropping frame")
				continue
			}
			if done {
				return nil
			}
		default:
			c.log.Warn().Str("frame", string(data)).Msg("unknown engine.io packet")
		}
	}
}

func (c *Client) handleMessage(data string) (bool, error) {
	p, err := decodePacket(data)
	if err != nil {
		return false, err
	}
	if p.Namespace != "/" {
		return false, nil
	}
	switch p.Type {
	case socketConnect:
		c.dispatch(EventConnect, nil)
	case socketDisconnect:
		c.log.Info().Msg("server disconnected socket")
		return true, nil
	case socketEvent:
		var payload json.RawMessage
		if len(p.Args) > 0 {
			payload = p.Args[0]
		}
		c.dispatch(p.Event, payload)
	case socketError:
		c.log.Error().Str("packet", data).Msg("socket.io error packet")
	}
	return false, nil
}

func (c *Client) dispatch(event string, payload json.RawMessage) {
	c.mu.RLock()
	fns := c.handlers[event]
	c.mu.RUnlock()
	if len(fns) == 0 {
		c.log.Debug().Str("event", event).Msg("no handler")
		return
	}
	for _, fn := range fns {
		fn(payload)
	}
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(c.handshake.interval())
	defer ticker.Stop()

	for {
		select {
		case frame := <-c.send:
			if err := c.write(frame); err != nil {
				c.log.Error().Err(err).Msg("write failed")
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.write([]byte{enginePing}); err != nil {
				c.log.Error().Err(err).Msg("ping failed")
				c.Close()
				return
			}
		case <-ctx.Done():
			_ = c.write([]byte{engineMessage, socketDisconnect})
			c.Close()
			return
		case <-c.closed:
			return
		}
	}
}

func (c *Client) write(frame []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}
