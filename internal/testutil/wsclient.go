// Package testutil provides helpers shared by integration tests.
package testutil

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// WSClient is a simple WebSocket test client for integration testing.
type WSClient struct {
	conn *websocket.Conn
	t    *testing.T
}

// NewWSClient dials the given ws:// URL and returns a test client.
//
// Precondition: url must point at a listening WebSocket endpoint.
// Postcondition: Returns a connected WSClient or fails the test.
func NewWSClient(t *testing.T, url string) *WSClient {
	t.Helper()
	start := time.Now()

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("connecting to %s: %v [%s]", url, err, time.Since(start))
	}

	t.Cleanup(func() {
		conn.Close()
	})

	t.Logf("websocket client connected to %s [%s]", url, time.Since(start))
	return &WSClient{conn: conn, t: t}
}

// SendRaw writes text as a single text frame.
func (c *WSClient) SendRaw(text string) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		c.t.Fatalf("sending %q: %v", text, err)
	}
}

// Send encodes v as JSON and writes it as a text frame.
func (c *WSClient) Send(v any) {
	c.t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		c.t.Fatalf("encoding %v: %v", v, err)
	}
	c.SendRaw(string(data))
}

// SendBinary writes data as a single binary frame.
func (c *WSClient) SendBinary(data []byte) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		c.t.Fatalf("sending binary frame: %v", err)
	}
}

// ReadRaw reads the next data frame or fails the test on timeout.
func (c *WSClient) ReadRaw(timeout time.Duration) string {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		c.t.Fatalf("reading frame: %v", err)
	}
	return string(data)
}

// Read reads the next frame and decodes it as a JSON array.
//
// Postcondition: Returns the decoded elements, or fails the test on timeout or bad JSON.
func (c *WSClient) Read(timeout time.Duration) []any {
	c.t.Helper()
	raw := c.ReadRaw(timeout)
	var out []any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		c.t.Fatalf("decoding frame %q: %v", raw, err)
	}
	return out
}

// ExpectClosed reads until the server closes the connection.
//
// Postcondition: Fails the test if a data frame arrives or the timeout elapses first.
func (c *WSClient) ExpectClosed(timeout time.Duration) {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	_, data, err := c.conn.ReadMessage()
	if err == nil {
		c.t.Fatalf("expected connection close, got frame %q", data)
	}
	if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
		c.t.Fatalf("connection was not closed within %s", timeout)
	}
}

// Close closes the underlying connection.
func (c *WSClient) Close() {
	c.conn.Close()
}
