package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/xiaoas/noname-server/internal/protocol"
)

var (
	// ErrSessionNotFound is returned when an ID is not registered.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNotGuest is returned by ResolveOwner for a session that joined no room.
	ErrNotGuest = errors.New("session is not a guest")
	// ErrOwnerGone is returned by ResolveOwner when a guest's owner cannot be reached.
	ErrOwnerGone = errors.New("room owner is gone")
)

// Session tracks one connected client.
type Session struct {
	// ID is the opaque per-connection identifier.
	ID string
	// Key is empty until the client authenticates; it doubles as the room's
	// public lookup identifier.
	Key string
	// Nickname is the display name sent with create or enter.
	Nickname string
	// Avatar is the avatar reference sent with create or enter.
	Avatar string
	// Status is free-form client status.
	Status string
	// Out delivers frames to the client.
	Out Outbound
	// Room is the session's room relationship. Never nil.
	Room RoomState

	seq uint64
}

// Authenticated reports whether the session has set a key.
func (s Session) Authenticated() bool {
	return s.Key != ""
}

// Send encodes msg and queues it on the session's outbound channel.
//
// Postcondition: Returns an error if encoding fails or the channel is closed.
func (s Session) Send(msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	if s.Out == nil {
		return fmt.Errorf("session %s has no outbound channel", s.ID)
	}
	return s.Out.Push(data)
}

func (s *Session) snapshot() Session {
	cp := *s
	cp.Room = cloneRoomState(s.Room)
	return cp
}

// Stats summarises the registry contents.
type Stats struct {
	Sessions        int
	Unauthenticated int
	Owners          int
	Guests          int
}

// Registry is the directory of connected sessions keyed by client ID.
// All methods are safe for concurrent use. The single RWMutex is held only
// for the duration of one lookup or mutation; delivery to outbound channels
// happens after it is released.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	nextSeq  uint64
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Register adds a new session in the NoRoom state with empty key, nickname,
// avatar and status.
//
// Precondition: id must be non-empty; out must be non-nil.
// Postcondition: Returns a snapshot of the created Session, or an error if the ID is already registered.
func (r *Registry) Register(id string, out Outbound) (Session, error) {
	if id == "" {
		return Session{}, errors.New("session id must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[id]; exists {
		return Session{}, fmt.Errorf("session %q already connected", id)
	}

	r.nextSeq++
	sess := &Session{
		ID:   id,
		Out:  out,
		Room: NoRoom{},
		seq:  r.nextSeq,
	}
	r.sessions[id] = sess
	return sess.snapshot(), nil
}

// Get returns a snapshot of the session for the given ID.
//
// Postcondition: Returns (session, true) if found, or (zero, false) otherwise.
func (r *Registry) Get(id string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	return sess.snapshot(), true
}

// Mutate runs fn against the live session under the write lock. fn must not
// call back into the Registry. An error returned by fn is passed through, and
// fn is responsible for leaving the session unchanged when it fails.
//
// Postcondition: Returns ErrSessionNotFound if id is not registered.
func (r *Registry) Mutate(id string, fn func(*Session) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	if err := fn(sess); err != nil {
		return err
	}
	if sess.Room == nil {
		sess.Room = NoRoom{}
	}
	return nil
}

// Remove deletes the session and closes its outbound channel. Guests holding
// the removed ID are left untouched and discover the loss on next use.
//
// Postcondition: The session is gone. Returns false if it was not registered.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if ok && sess.Out != nil {
		_ = sess.Out.Close()
	}
	return ok
}

// FindByKey returns the earliest-registered session whose key equals key.
// Keys are not unique; the first match wins.
//
// Postcondition: Returns (session, true) if found, or (zero, false) for no match or an empty key.
func (r *Registry) FindByKey(key string) (Session, bool) {
	if key == "" {
		return Session{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *Session
	for _, sess := range r.sessions {
		if sess.Key != key {
			continue
		}
		if found == nil || sess.seq < found.seq {
			found = sess
		}
	}
	if found == nil {
		return Session{}, false
	}
	return found.snapshot(), true
}

// ResolveOwner returns the owner of the room the given guest joined.
//
// Postcondition: Returns ErrSessionNotFound for an unknown ID, ErrNotGuest when
// the session is not a guest, and ErrOwnerGone when the owner disconnected or
// no longer owns a room.
func (r *Registry) ResolveOwner(guestID string) (Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[guestID]
	if !ok {
		return Session{}, fmt.Errorf("%w: %q", ErrSessionNotFound, guestID)
	}
	g, ok := sess.Room.(Guest)
	if !ok {
		return Session{}, fmt.Errorf("%w: %q", ErrNotGuest, guestID)
	}
	owner, ok := r.sessions[g.OwnerID]
	if !ok {
		return Session{}, fmt.Errorf("%w: owner %q of guest %q disconnected", ErrOwnerGone, g.OwnerID, guestID)
	}
	if _, ok := owner.Room.(Owner); !ok {
		return Session{}, fmt.Errorf("%w: session %q no longer owns a room", ErrOwnerGone, g.OwnerID)
	}
	return owner.snapshot(), nil
}

// Count returns the number of connected sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Stats returns a breakdown of connected sessions by auth and room state.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st := Stats{Sessions: len(r.sessions)}
	for _, sess := range r.sessions {
		if !sess.Authenticated() {
			st.Unauthenticated++
		}
		switch sess.Room.(type) {
		case Owner:
			st.Owners++
		case Guest:
			st.Guests++
		}
	}
	return st
}
