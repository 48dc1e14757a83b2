package websocket

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Frame is one inbound WebSocket data message.
type Frame struct {
	Data   []byte
	Binary bool
}

// Conn wraps a WebSocket connection with deadline handling. ReadFrame must be
// called from a single goroutine and WriteFrame from a single (possibly
// different) goroutine; Ping and Close are safe from any goroutine.
type Conn struct {
	ws        *websocket.Conn
	closeOnce sync.Once
	closeErr  error

	readTimeout  time.Duration
	writeTimeout time.Duration
}

// NewConn wraps an upgraded WebSocket connection.
//
// Precondition: ws must be a valid, open connection.
// Postcondition: Returns a Conn whose read deadline is extended by every frame and pong.
func NewConn(ws *websocket.Conn, readLimit int64, readTimeout, writeTimeout time.Duration) *Conn {
	c := &Conn{
		ws:           ws,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
	if readLimit > 0 {
		ws.SetReadLimit(readLimit)
	}
	c.extendReadDeadline()
	ws.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		return nil
	})
	return c
}

func (c *Conn) extendReadDeadline() {
	if c.readTimeout > 0 {
		_ = c.ws.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
}

func (c *Conn) writeDeadline() time.Time {
	if c.writeTimeout > 0 {
		return time.Now().Add(c.writeTimeout)
	}
	return time.Time{}
}

// ReadFrame blocks until the next text or binary message arrives.
//
// Postcondition: Returns the next data frame, or an error when the connection
// fails, times out, or is closed by the peer.
func (c *Conn) ReadFrame() (Frame, error) {
	mt, data, err := c.ws.ReadMessage()
	if err != nil {
		return Frame{}, err
	}
	c.extendReadDeadline()
	return Frame{Data: data, Binary: mt == websocket.BinaryMessage}, nil
}

// WriteFrame sends data as a single text message.
func (c *Conn) WriteFrame(data []byte) error {
	_ = c.ws.SetWriteDeadline(c.writeDeadline())
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Ping sends a keepalive ping control frame.
func (c *Conn) Ping() error {
	return c.ws.WriteControl(websocket.PingMessage, nil, c.writeDeadline())
}

// Close sends a best-effort close frame and closes the underlying connection.
//
// Postcondition: The connection is closed. Safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

// RemoteAddr returns the remote network address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.ws.RemoteAddr()
}

// IsNormalClose reports whether err is the peer closing the connection
// normally or going away.
func IsNormalClose(err error) bool {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return true
	}
	return errors.Is(err, net.ErrClosed)
}
