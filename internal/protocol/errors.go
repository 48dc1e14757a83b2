package protocol

import (
	"errors"
	"fmt"
)

// Error kinds returned by the router. Every one of them ends the connection.
var (
	// ErrInvalidMessageFormat marks a malformed envelope or an unknown command.
	ErrInvalidMessageFormat = errors.New("message has format issues")
	// ErrUnauthorized marks a command sent before the session set its key.
	ErrUnauthorized = errors.New("client is not allowed to send this command")
	// ErrServer marks a failure to deliver to some outbound channel.
	ErrServer = errors.New("server error")
	// ErrClient marks a violated caller-state precondition.
	ErrClient = errors.New("client error")
	// ErrGameState marks a room-state violation.
	ErrGameState = errors.New("game in invalid state")
	// ErrNotImplemented marks a reserved command name without behaviour.
	ErrNotImplemented = errors.New("command not implemented")
)

// InvalidFormat wraps ErrInvalidMessageFormat with a formatted reason.
func InvalidFormat(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidMessageFormat, fmt.Sprintf(format, args...))
}

// ServerError wraps a delivery failure with ErrServer.
func ServerError(err error) error {
	return fmt.Errorf("%w: %w", ErrServer, err)
}

// ClientError wraps ErrClient with a reason.
func ClientError(reason string) error {
	return fmt.Errorf("%w: %s", ErrClient, reason)
}

// GameStateError wraps ErrGameState with a reason.
func GameStateError(reason string) error {
	return fmt.Errorf("%w: %s", ErrGameState, reason)
}

// NotImplemented wraps ErrNotImplemented with the command name.
func NotImplemented(name string) error {
	return fmt.Errorf("%w: %q", ErrNotImplemented, name)
}
