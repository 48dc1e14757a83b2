// Package relay implements the authentication gate, message router and
// command handlers that sit between connected clients and the session registry.
package relay

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xiaoas/noname-server/internal/command"
	"github.com/xiaoas/noname-server/internal/protocol"
	"github.com/xiaoas/noname-server/internal/session"
)

// Router classifies each inbound message and either forwards it to a room
// owner or runs the named command for the caller.
type Router struct {
	sessions *session.Registry
	handlers *Handlers
	commands *command.Registry
	logger   *zap.Logger
}

// NewRouter creates a Router backed by sessions with the default command table.
//
// Precondition: sessions and logger must be non-nil.
// Postcondition: Returns a Router ready for concurrent Dispatch calls.
func NewRouter(sessions *session.Registry, logger *zap.Logger) *Router {
	h := NewHandlers(sessions, logger)
	commands := h.Registry()
	logger.Debug("command table built", zap.Strings("commands", commands.Names()))
	return &Router{
		sessions: sessions,
		handlers: h,
		commands: commands,
		logger:   logger,
	}
}

// Dispatch routes one message from callerID. Responses go to the caller's
// outbound channel; relayed frames go to the room owner's.
//
// Postcondition: Returns nil when the message was handled. Any returned error
// is fatal for the caller's connection.
func (r *Router) Dispatch(ctx context.Context, callerID string, msg protocol.Message) error {
	tag, err := msg.Tag()
	if err != nil {
		return err
	}
	if tag == protocol.TagHeartbeat {
		return nil
	}

	second, hasSecond := msg.StringAt(1)
	if tag == protocol.TagServer && hasSecond && second == protocol.TagCmd {
		resp, err := r.handlers.Key(ctx, callerID, msg[2:])
		if err != nil {
			return err
		}
		return r.reply(callerID, resp)
	}

	caller, ok := r.sessions.Get(callerID)
	if !ok {
		return protocol.ServerError(fmt.Errorf("%w: %q", session.ErrSessionNotFound, callerID))
	}
	if !caller.Authenticated() {
		return fmt.Errorf("%w: %q before key", protocol.ErrUnauthorized, tag)
	}

	if _, isGuest := caller.Room.(session.Guest); isGuest {
		return r.forward(callerID, msg)
	}

	if tag == protocol.TagServer {
		return protocol.InvalidFormat("%q must be followed by %q", protocol.TagServer, protocol.TagCmd)
	}
	if !hasSecond {
		return protocol.InvalidFormat("command name is expected")
	}
	cmd, ok := r.commands.Resolve(second)
	if !ok {
		return protocol.InvalidFormat("command %q not found", second)
	}

	resp, err := cmd.Handler.Handle(ctx, callerID, msg[2:])
	if err != nil {
		return err
	}
	return r.reply(callerID, resp)
}

// forward relays a guest's message to its room owner.
func (r *Router) forward(guestID string, msg protocol.Message) error {
	owner, err := r.sessions.ResolveOwner(guestID)
	if err != nil {
		return protocol.ServerError(err)
	}
	if err := owner.Send(protocol.OnMessage(guestID, msg)); err != nil {
		r.logger.Error("forwarding to owner failed",
			zap.String("uid", guestID),
			zap.String("owner", owner.ID),
			zap.Error(err),
		)
		return protocol.ServerError(err)
	}
	return nil
}

// reply delivers a non-nil handler response to the caller only.
func (r *Router) reply(callerID string, resp protocol.Message) error {
	if resp == nil {
		return nil
	}
	caller, ok := r.sessions.Get(callerID)
	if !ok {
		return protocol.ServerError(fmt.Errorf("%w: %q", session.ErrSessionNotFound, callerID))
	}
	if err := caller.Send(resp); err != nil {
		r.logger.Error("replying to caller failed",
			zap.String("uid", callerID),
			zap.Stringer("response", resp),
			zap.Error(err),
		)
		return protocol.ServerError(err)
	}
	return nil
}
