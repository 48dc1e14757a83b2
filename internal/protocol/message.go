// Package protocol defines the wire envelope exchanged with game clients:
// every frame, in either direction, is a JSON array whose first element is a
// string tag.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// Fixed tags of the wire protocol.
const (
	TagHeartbeat       = "heartbeat"
	TagServer          = "server"
	TagCmd             = "cmd"
	TagCreateRoom      = "createroom"
	TagEnterRoomFailed = "enterroomfailed"
	TagOnConnection    = "onconnection"
	TagOnMessage       = "onmessage"
	TagRoomList        = "roomlist"
)

var (
	// ErrNotArray is returned by Decode when a frame is not a JSON array.
	ErrNotArray = errors.New("top level array is expected")
	// ErrInvalidUTF8 is returned by Decode when a frame is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("frame is not valid UTF-8")
)

// Message is one wire envelope. Elements are kept as raw JSON so that relayed
// payloads reach the owner exactly as the guest sent them.
type Message []json.RawMessage

// Decode parses a text frame into a Message.
//
// Postcondition: Returns a non-nil Message (possibly empty) or an error when
// the frame is not a well-formed JSON array.
func Decode(frame []byte) (Message, error) {
	trimmed := bytes.TrimSpace(frame)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrNotArray
	}
	if !utf8.Valid(trimmed) {
		return nil, ErrInvalidUTF8
	}
	var m Message
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}
	if m == nil {
		m = Message{}
	}
	return m, nil
}

// Encode serialises m as a compact JSON array. HTML characters are not
// escaped, so relayed elements keep the bytes the sender used.
func Encode(m Message) ([]byte, error) {
	if m == nil {
		m = Message{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("encoding message: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// StringAt returns element i as a string.
//
// Postcondition: ok is false when i is out of range or the element is not a JSON string.
func (m Message) StringAt(i int) (s string, ok bool) {
	if i < 0 || i >= len(m) {
		return "", false
	}
	if err := json.Unmarshal(m[i], &s); err != nil {
		return "", false
	}
	// json.Unmarshal accepts null into a string without error.
	if bytes.Equal(bytes.TrimSpace(m[i]), []byte("null")) {
		return "", false
	}
	return s, true
}

// Tag returns the command tag in the first element.
func (m Message) Tag() (string, error) {
	if len(m) == 0 {
		return "", InvalidFormat("message command is expected")
	}
	tag, ok := m.StringAt(0)
	if !ok {
		return "", InvalidFormat("message command is expected")
	}
	return tag, nil
}

// Bind decodes positional elements into targets. The first required elements
// must be present and non-null; later targets are optional and stay untouched
// when their element is absent or null.
//
// Postcondition: Returns an ErrInvalidMessageFormat error on arity or type mismatch.
func (m Message) Bind(required int, targets ...any) error {
	if len(m) < required || len(m) > len(targets) {
		if required == len(targets) {
			return InvalidFormat("expected %d arguments, got %d", required, len(m))
		}
		return InvalidFormat("expected %d to %d arguments, got %d", required, len(targets), len(m))
	}
	for i, raw := range m {
		if isNull(raw) {
			if i < required {
				return InvalidFormat("argument %d must not be null", i)
			}
			continue
		}
		if err := json.Unmarshal(raw, targets[i]); err != nil {
			return InvalidFormat("argument %d: %v", i, err)
		}
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// String renders m as JSON for logging.
func (m Message) String() string {
	data, err := Encode(m)
	if err != nil {
		return fmt.Sprintf("<unencodable message: %v>", err)
	}
	return string(data)
}

// Str encodes s as a raw JSON string element.
func Str(s string) json.RawMessage {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
}

var emptyArray = json.RawMessage("[]")

// CreateRoom builds the ["createroom", key] acknowledgement.
func CreateRoom(key string) Message {
	return Message{Str(TagCreateRoom), Str(key)}
}

// EnterRoomFailed builds the ["enterroomfailed"] response.
func EnterRoomFailed() Message {
	return Message{Str(TagEnterRoomFailed)}
}

// OnConnection builds the ["onconnection", joiningID] owner notification.
func OnConnection(joiningID string) Message {
	return Message{Str(TagOnConnection), Str(joiningID)}
}

// OnMessage builds ["onmessage", senderID, ...payload], the guest-to-owner relay frame.
func OnMessage(senderID string, payload Message) Message {
	out := make(Message, 0, len(payload)+2)
	out = append(out, Str(TagOnMessage), Str(senderID))
	return append(out, payload...)
}

// RoomList builds the ["roomlist", [], [], [], myID] connection greeting.
func RoomList(myID string) Message {
	return Message{Str(TagRoomList), emptyArray, emptyArray, emptyArray, Str(myID)}
}
