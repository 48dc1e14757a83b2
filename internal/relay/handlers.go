package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xiaoas/noname-server/internal/command"
	"github.com/xiaoas/noname-server/internal/protocol"
	"github.com/xiaoas/noname-server/internal/session"
)

// Handlers implements the named commands against the session registry.
type Handlers struct {
	sessions *session.Registry
	logger   *zap.Logger
}

// NewHandlers creates the command handlers.
//
// Precondition: sessions and logger must be non-nil.
func NewHandlers(sessions *session.Registry, logger *zap.Logger) *Handlers {
	return &Handlers{sessions: sessions, logger: logger}
}

// Commands returns the full command table: create and enter, plus a
// not-implemented stub for every reserved name.
func (h *Handlers) Commands() []command.Command {
	cmds := []command.Command{
		{Name: command.NameCreate, Handler: command.HandlerFunc(h.Create)},
		{Name: command.NameEnter, Handler: command.HandlerFunc(h.Enter)},
	}
	for _, name := range command.ReservedNames() {
		cmds = append(cmds, command.Command{Name: name, Handler: command.NotImplemented(name)})
	}
	return cmds
}

// Registry builds a command.Registry from Commands.
//
// Postcondition: Returns a fully populated Registry. Panics on a duplicate name.
func (h *Handlers) Registry() *command.Registry {
	reg, err := command.NewRegistry(h.Commands())
	if err != nil {
		panic(fmt.Sprintf("building command registry: %v", err))
	}
	return reg
}

// Key authenticates the caller. args must hold exactly one element, a
// [roomKey, protocolVersion] pair of strings. The version is accepted but not
// checked. Calling it again replaces the key.
//
// Postcondition: The caller's key is set; no response is sent.
func (h *Handlers) Key(_ context.Context, callerID string, args protocol.Message) (protocol.Message, error) {
	var pair []string
	if err := args.Bind(1, &pair); err != nil {
		return nil, err
	}
	if len(pair) != 2 {
		return nil, protocol.InvalidFormat("invalid key args: expected [key, version], got %d elements", len(pair))
	}
	key, version := pair[0], pair[1]

	h.logger.Debug("key",
		zap.String("uid", callerID),
		zap.String("key", key),
		zap.String("version", version),
	)

	err := h.sessions.Mutate(callerID, func(s *session.Session) error {
		s.Key = key
		return nil
	})
	if err != nil {
		return nil, protocol.ServerError(err)
	}
	return nil, nil
}

// Create makes the caller a room owner. args is
// [_, _, key, nickname, avatar, config?, mode?]; the leading two slots and
// the key argument are ignored, the acknowledgement carries the caller's own key.
//
// Precondition: The caller must be in NoRoom.
// Postcondition: The caller is Owner of a room with the given config and its
// nickname and avatar are updated; otherwise an ErrClient error and no change.
func (h *Handlers) Create(_ context.Context, callerID string, args protocol.Message) (protocol.Message, error) {
	var (
		skip0, skip1     json.RawMessage
		key              string
		nickname, avatar string
		cfg              *session.RoomConfig
		mode             json.RawMessage
	)
	if err := args.Bind(5, &skip0, &skip1, &key, &nickname, &avatar, &cfg, &mode); err != nil {
		return nil, err
	}

	h.logger.Debug("create",
		zap.String("uid", callerID),
		zap.String("key", key),
		zap.String("nickname", nickname),
		zap.String("avatar", avatar),
		zap.Any("config", cfg),
		zap.ByteString("mode", mode),
	)

	var ownKey string
	err := h.sessions.Mutate(callerID, func(s *session.Session) error {
		if _, ok := s.Room.(session.NoRoom); !ok {
			return protocol.ClientError("is in room")
		}
		s.Nickname = nickname
		s.Avatar = avatar
		s.Room = session.Owner{Room: session.Room{Config: cfg}}
		ownKey = s.Key
		return nil
	})
	if errors.Is(err, session.ErrSessionNotFound) {
		return nil, protocol.ServerError(err)
	}
	if err != nil {
		return nil, err
	}
	return protocol.CreateRoom(ownKey), nil
}

// Enter joins the caller to the room whose owner holds key. args is
// [_, _, key, nickname, avatar]. Both outcomes answer ["enterroomfailed"];
// success is visible through the owner's onconnection notice and the
// caller's new Guest state.
//
// Postcondition: On success the owner has been sent ["onconnection", callerID]
// and the caller is Guest of that owner with updated nickname and avatar. On
// a failed lookup nothing changes.
func (h *Handlers) Enter(_ context.Context, callerID string, args protocol.Message) (protocol.Message, error) {
	var (
		skip0, skip1     json.RawMessage
		key              string
		nickname, avatar string
	)
	if err := args.Bind(5, &skip0, &skip1, &key, &nickname, &avatar); err != nil {
		return nil, err
	}

	log := h.logger.With(zap.String("uid", callerID), zap.String("key", key))
	log.Debug("enter", zap.String("nickname", nickname), zap.String("avatar", avatar))

	owner, ok := h.sessions.FindByKey(key)
	if !ok {
		log.Debug("enter failed: no session with key")
		return protocol.EnterRoomFailed(), nil
	}
	if owner.ID == callerID {
		log.Debug("enter failed: own room")
		return protocol.EnterRoomFailed(), nil
	}
	o, isOwner := owner.Room.(session.Owner)
	if !isOwner || !o.Room.Joinable() {
		log.Debug("enter failed: room not joinable", zap.String("owner", owner.ID))
		return protocol.EnterRoomFailed(), nil
	}

	if err := owner.Send(protocol.OnConnection(callerID)); err != nil {
		log.Error("notifying owner failed", zap.String("owner", owner.ID), zap.Error(err))
		return nil, protocol.ServerError(err)
	}

	err := h.sessions.Mutate(callerID, func(s *session.Session) error {
		s.Nickname = nickname
		s.Avatar = avatar
		s.Room = session.Guest{OwnerID: owner.ID}
		return nil
	})
	if err != nil {
		return nil, protocol.ServerError(err)
	}

	log.Info("guest entered room", zap.String("owner", owner.ID))
	return protocol.EnterRoomFailed(), nil
}
