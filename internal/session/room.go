package session

// RoomConfig is the joinability state an owner publishes with its room.
type RoomConfig struct {
	GameStarted  bool `json:"gameStarted"`
	Observe      bool `json:"observe"`
	ObserveReady bool `json:"observeReady"`
}

// Joinable reports whether a newcomer may enter: either the game has not
// started, or observers are allowed and ready.
func (c RoomConfig) Joinable() bool {
	return !c.GameStarted || (c.Observe && c.ObserveReady)
}

// Room is the joinable unit held by its owner. A nil Config means the room is
// not discoverable and every enter against it fails.
type Room struct {
	Config *RoomConfig `json:"config,omitempty"`
}

// Joinable reports whether the room carries a config that admits newcomers.
func (r Room) Joinable() bool {
	return r.Config != nil && r.Config.Joinable()
}

func (r Room) clone() Room {
	if r.Config == nil {
		return Room{}
	}
	cfg := *r.Config
	return Room{Config: &cfg}
}

// RoomState is a session's relationship to a room: exactly one of NoRoom,
// Guest or Owner.
type RoomState interface {
	isRoomState()
}

// NoRoom is the state of a session that neither owns nor joined a room.
type NoRoom struct{}

// Guest is the state of a session that joined another session's room. The
// owner is referenced by ID and resolved through the Registry on every use.
type Guest struct {
	OwnerID string
}

// Owner is the state of a session that created a room.
type Owner struct {
	Room Room
}

func (NoRoom) isRoomState() {}
func (Guest) isRoomState()  {}
func (Owner) isRoomState()  {}

func cloneRoomState(rs RoomState) RoomState {
	if o, ok := rs.(Owner); ok {
		return Owner{Room: o.Room.clone()}
	}
	if rs == nil {
		return NoRoom{}
	}
	return rs
}
