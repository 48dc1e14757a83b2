package relay

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xiaoas/noname-server/internal/frontend/websocket"
	"github.com/xiaoas/noname-server/internal/idgen"
	"github.com/xiaoas/noname-server/internal/observability"
	"github.com/xiaoas/noname-server/internal/protocol"
	"github.com/xiaoas/noname-server/internal/session"
)

// maxIDAttempts bounds how many IDs are drawn for one connection before it is refused.
const maxIDAttempts = 5

// Dispatcher routes one decoded message on behalf of a connected client.
type Dispatcher interface {
	Dispatch(ctx context.Context, callerID string, msg protocol.Message) error
}

// SessionHandler implements websocket.SessionHandler. It registers each
// connection in the session registry, greets it, and runs a read loop that
// dispatches messages sequentially alongside a writer that drains the
// session's outbox to the socket.
type SessionHandler struct {
	sessions     *session.Registry
	router       Dispatcher
	ids          idgen.Generator
	pingInterval time.Duration
	logger       *zap.Logger
}

// NewSessionHandler creates a SessionHandler.
//
// Precondition: sessions, router, ids and logger must be non-nil.
func NewSessionHandler(sessions *session.Registry, router Dispatcher, ids idgen.Generator, pingInterval time.Duration, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		sessions:     sessions,
		router:       router,
		ids:          ids,
		pingInterval: pingInterval,
		logger:       logger,
	}
}

// HandleSession runs one client connection to completion.
//
// Postcondition: The client's registry entry is removed and its outbox closed.
// Returns nil on a normal close or cancellation, otherwise the error that
// ended the connection.
func (h *SessionHandler) HandleSession(ctx context.Context, conn *websocket.Conn) error {
	start := time.Now()
	id, out, err := h.register()
	if err != nil {
		return err
	}
	log := observability.ForSession(h.logger, id)
	defer func() {
		h.sessions.Remove(id)
		log.Info("client disconnected",
			zap.Duration("duration", time.Since(start)),
			zap.Int("undelivered", out.Len()),
		)
	}()

	log.Info("client connected",
		zap.Stringer("remote_addr", conn.RemoteAddr()),
		zap.Int("sessions", h.sessions.Count()),
	)

	greeting, err := protocol.Encode(protocol.RoomList(id))
	if err != nil {
		return err
	}
	if err := out.Push(greeting); err != nil {
		return fmt.Errorf("queueing greeting: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return h.readLoop(gctx, id, conn, log)
	})
	g.Go(func() error {
		defer cancel()
		return h.writePump(gctx, out, conn)
	})
	g.Go(func() error {
		<-gctx.Done()
		_ = conn.Close()
		return nil
	})
	return g.Wait()
}

// register mints a client ID and adds the session, drawing a fresh ID when
// the previous one is already connected.
func (h *SessionHandler) register() (string, *session.Outbox, error) {
	var err error
	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		id := h.ids.NewID()
		out := session.NewOutbox(id)
		if _, err = h.sessions.Register(id, out); err == nil {
			return id, out, nil
		}
		h.logger.Warn("client id rejected",
			zap.String("uid", id),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return "", nil, fmt.Errorf("registering session after %d attempts: %w", maxIDAttempts, err)
}

// readLoop decodes and dispatches inbound frames one at a time. Frames that
// are not JSON arrays are dropped; any dispatch error ends the loop.
func (h *SessionHandler) readLoop(ctx context.Context, id string, conn *websocket.Conn, log *zap.Logger) error {
	for {
		frame, err := conn.ReadFrame()
		if err != nil {
			if ctx.Err() != nil || websocket.IsNormalClose(err) {
				return nil
			}
			return fmt.Errorf("reading frame: %w", err)
		}
		if frame.Binary {
			log.Debug("ignoring binary frame", zap.Int("bytes", len(frame.Data)))
			continue
		}

		msg, err := protocol.Decode(frame.Data)
		if err != nil {
			log.Warn("dropping malformed frame",
				zap.ByteString("frame", frame.Data),
				zap.Error(err),
			)
			continue
		}

		if err := h.router.Dispatch(ctx, id, msg); err != nil {
			log.Warn("message rejected, closing connection",
				zap.Stringer("message", msg),
				zap.Error(err),
			)
			return err
		}
	}
}

// writePump writes queued frames in order and sends keepalive pings.
func (h *SessionHandler) writePump(ctx context.Context, out *session.Outbox, conn *websocket.Conn) error {
	var ping <-chan time.Time
	if h.pingInterval > 0 {
		ticker := time.NewTicker(h.pingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-out.Done():
			return nil
		case <-out.Ready():
			for _, frame := range out.Drain() {
				if err := conn.WriteFrame(frame); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return fmt.Errorf("writing frame: %w", err)
				}
			}
		case <-ping:
			if err := conn.Ping(); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("sending ping: %w", err)
			}
		}
	}
}
