// Package command provides the named command table the router dispatches into.
package command

import (
	"context"

	"github.com/xiaoas/noname-server/internal/protocol"
)

// Names of the dispatchable commands, as they appear in the second slot of
// an inbound message.
const (
	NameCreate       = "create"
	NameEnter        = "enter"
	NameChangeAvatar = "changeAvatar"
	NameServer       = "server"
	NameEvents       = "events"
	NameConfig       = "config"
	NameStatus       = "status"
	NameSend         = "send"
	NameClose        = "close"
)

// Handler runs one command for the calling session.
type Handler interface {
	// Handle executes the command with args (the message after its two
	// routing slots). A nil response means nothing is sent back.
	Handle(ctx context.Context, callerID string, args protocol.Message) (protocol.Message, error)
}

// HandlerFunc adapts a function into a Handler.
type HandlerFunc func(ctx context.Context, callerID string, args protocol.Message) (protocol.Message, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, callerID string, args protocol.Message) (protocol.Message, error) {
	return f(ctx, callerID, args)
}

// Command binds a name to its Handler.
type Command struct {
	// Name is the command name matched against the inbound message.
	Name string
	// Handler executes the command.
	Handler Handler
}

// ReservedNames returns the protocol command names that have no behaviour yet.
func ReservedNames() []string {
	return []string{NameChangeAvatar, NameServer, NameEvents, NameConfig, NameStatus, NameSend, NameClose}
}

// NotImplemented returns a Handler that always fails with protocol.ErrNotImplemented.
func NotImplemented(name string) Handler {
	return HandlerFunc(func(context.Context, string, protocol.Message) (protocol.Message, error) {
		return nil, protocol.NotImplemented(name)
	})
}
