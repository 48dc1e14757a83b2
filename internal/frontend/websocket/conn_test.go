package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// connHandler hands the server side Conn to the test.
type connHandler struct {
	conns chan *Conn
	done  chan struct{}
}

func (h *connHandler) HandleSession(ctx context.Context, conn *Conn) error {
	h.conns <- conn
	select {
	case <-h.done:
	case <-ctx.Done():
	}
	return nil
}

func newConnPair(t *testing.T, readTimeout time.Duration) (*Conn, *websocket.Conn) {
	t.Helper()
	cfg := testConfig()
	cfg.ReadTimeout = readTimeout
	h := &connHandler{conns: make(chan *Conn, 1), done: make(chan struct{})}
	acc := NewAcceptor(cfg, h, zaptest.NewLogger(t))

	srv := httptest.NewServer(acc.Handler())
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(h.done) })

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	select {
	case conn := <-h.conns:
		return conn, client
	case <-time.After(2 * time.Second):
		t.Fatal("server did not accept connection")
		return nil, nil
	}
}

func TestConnReadWrite(t *testing.T) {
	conn, client := newConnPair(t, 2*time.Second)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`["heartbeat"]`)))
	frame, err := conn.ReadFrame()
	require.NoError(t, err)
	assert.False(t, frame.Binary)
	assert.Equal(t, `["heartbeat"]`, string(frame.Data))

	require.NoError(t, conn.WriteFrame([]byte(`["roomlist"]`)))
	mt, data, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, mt)
	assert.Equal(t, `["roomlist"]`, string(data))
}

func TestConnBinaryFrame(t *testing.T) {
	conn, client := newConnPair(t, 2*time.Second)

	require.NoError(t, client.WriteMessage(websocket.BinaryMessage, []byte{0xff}))
	frame, err := conn.ReadFrame()
	require.NoError(t, err)
	assert.True(t, frame.Binary)
}

func TestConnReadTimeout(t *testing.T) {
	conn, _ := newConnPair(t, 100*time.Millisecond)

	_, err := conn.ReadFrame()
	require.Error(t, err)
	assert.False(t, IsNormalClose(err))
}

func TestConnPeerClose(t *testing.T) {
	conn, client := newConnPair(t, 2*time.Second)

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	require.NoError(t, client.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)))

	_, err := conn.ReadFrame()
	require.Error(t, err)
	assert.True(t, IsNormalClose(err))
}

func TestConnPing(t *testing.T) {
	conn, client := newConnPair(t, 2*time.Second)

	pinged := make(chan struct{}, 1)
	client.SetPingHandler(func(string) error {
		pinged <- struct{}{}
		return nil
	})
	go func() {
		// The client must be reading for control frames to be processed.
		for {
			if _, _, err := client.ReadMessage(); err != nil {
				return
			}
		}
	}()

	require.NoError(t, conn.Ping())
	select {
	case <-pinged:
	case <-time.After(2 * time.Second):
		t.Fatal("client did not receive ping")
	}
}

func TestConnCloseIdempotent(t *testing.T) {
	conn, _ := newConnPair(t, 2*time.Second)
	first := conn.Close()
	assert.Equal(t, first, conn.Close())
	assert.NotNil(t, conn.RemoteAddr())
}
