package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestDecode_Array(t *testing.T) {
	m, err := Decode([]byte(`["move", 1, {"x": true}, null]`))
	require.NoError(t, err)
	require.Len(t, m, 4)

	tag, err := m.Tag()
	require.NoError(t, err)
	assert.Equal(t, "move", tag)
	assert.JSONEq(t, `{"x": true}`, string(m[2]))
}

func TestDecode_EmptyArray(t *testing.T) {
	m, err := Decode([]byte(` [] `))
	require.NoError(t, err)
	assert.NotNil(t, m)
	assert.Empty(t, m)
}

func TestDecode_RejectsNonArrays(t *testing.T) {
	for _, frame := range []string{``, `null`, `{"a":1}`, `"heartbeat"`, `42`, `[1,`} {
		_, err := Decode([]byte(frame))
		assert.Error(t, err, "frame %q should be rejected", frame)
	}
}

func TestDecode_RejectsInvalidUTF8(t *testing.T) {
	for _, frame := range []string{"[\"move\",\"\xff\xfe\"]", "[\"\xc3\"]", "[\"ok\"] \x80"} {
		_, err := Decode([]byte(frame))
		assert.True(t, errors.Is(err, ErrInvalidUTF8), "frame %q: %v", frame, err)
	}

	m, err := Decode([]byte(`["move","héllo ✓"]`))
	require.NoError(t, err)
	s, ok := m.StringAt(1)
	require.True(t, ok)
	assert.Equal(t, "héllo ✓", s)
}

func TestEncode_KeepsHTMLCharacters(t *testing.T) {
	payload, err := Decode([]byte(`["chat","<b>&</b>"]`))
	require.NoError(t, err)

	data, err := Encode(OnMessage("7", payload))
	require.NoError(t, err)
	assert.Equal(t, `["onmessage","7","chat","<b>&</b>"]`, string(data))

	data, err = Encode(CreateRoom("<key>&"))
	require.NoError(t, err)
	assert.Equal(t, `["createroom","<key>&"]`, string(data))
}

func TestTag_Errors(t *testing.T) {
	_, err := Message{}.Tag()
	assert.True(t, errors.Is(err, ErrInvalidMessageFormat))

	m, err := Decode([]byte(`[1, "x"]`))
	require.NoError(t, err)
	_, err = m.Tag()
	assert.True(t, errors.Is(err, ErrInvalidMessageFormat))

	m, err = Decode([]byte(`[null]`))
	require.NoError(t, err)
	_, err = m.Tag()
	assert.True(t, errors.Is(err, ErrInvalidMessageFormat))
}

func TestStringAt(t *testing.T) {
	m, err := Decode([]byte(`["a", 2, null]`))
	require.NoError(t, err)

	s, ok := m.StringAt(0)
	assert.True(t, ok)
	assert.Equal(t, "a", s)

	_, ok = m.StringAt(1)
	assert.False(t, ok)
	_, ok = m.StringAt(2)
	assert.False(t, ok)
	_, ok = m.StringAt(3)
	assert.False(t, ok)
	_, ok = m.StringAt(-1)
	assert.False(t, ok)
}

func TestBind_RequiredAndOptional(t *testing.T) {
	m, err := Decode([]byte(`["a", "b", {"n": 1}, null]`))
	require.NoError(t, err)

	var a, b string
	var obj struct {
		N int `json:"n"`
	}
	mode := "unchanged"
	require.NoError(t, m.Bind(2, &a, &b, &obj, &mode))
	assert.Equal(t, "a", a)
	assert.Equal(t, "b", b)
	assert.Equal(t, 1, obj.N)
	assert.Equal(t, "unchanged", mode, "null optional leaves target untouched")
}

func TestBind_Arity(t *testing.T) {
	m, err := Decode([]byte(`["a"]`))
	require.NoError(t, err)
	var a, b string
	err = m.Bind(2, &a, &b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidMessageFormat))
	assert.Contains(t, err.Error(), "expected 2 arguments, got 1")

	m, err = Decode([]byte(`["a", "b", "c"]`))
	require.NoError(t, err)
	err = m.Bind(2, &a, &b)
	assert.True(t, errors.Is(err, ErrInvalidMessageFormat))
}

func TestBind_NullRequired(t *testing.T) {
	m, err := Decode([]byte(`["a", null]`))
	require.NoError(t, err)
	var a, b string
	err = m.Bind(2, &a, &b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "argument 1 must not be null")
}

func TestBind_TypeMismatch(t *testing.T) {
	m, err := Decode([]byte(`["a", 5]`))
	require.NoError(t, err)
	var a, b string
	err = m.Bind(2, &a, &b)
	assert.True(t, errors.Is(err, ErrInvalidMessageFormat))
}

func TestBuilders(t *testing.T) {
	cases := []struct {
		msg  Message
		want string
	}{
		{CreateRoom("alice123"), `["createroom","alice123"]`},
		{EnterRoomFailed(), `["enterroomfailed"]`},
		{OnConnection("42"), `["onconnection","42"]`},
		{RoomList("42"), `["roomlist",[],[],[],"42"]`},
	}
	for _, c := range cases {
		data, err := Encode(c.msg)
		require.NoError(t, err)
		assert.JSONEq(t, c.want, string(data))
	}
}

func TestOnMessage_PreservesPayload(t *testing.T) {
	payload, err := Decode([]byte(`["move", "foo", {"big": 12345678901234567890}]`))
	require.NoError(t, err)

	data, err := Encode(OnMessage("7", payload))
	require.NoError(t, err)
	assert.Equal(t, `["onmessage","7","move","foo",{"big":12345678901234567890}]`, string(data))
}

func TestEncode_Nil(t *testing.T) {
	data, err := Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(data))
}

func TestPropertyOnMessageRelaysVerbatim(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sender := rapid.StringMatching(`[0-9]{10}`).Draw(t, "sender")
		parts := rapid.SliceOf(rapid.String()).Draw(t, "parts")

		payload := make(Message, 0, len(parts))
		for _, p := range parts {
			payload = append(payload, Str(p))
		}
		data, err := Encode(OnMessage(sender, payload))
		if err != nil {
			t.Fatalf("encode: %v", err)
		}

		var got []string
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		want := append([]string{TagOnMessage, sender}, parts...)
		if len(got) != len(want) {
			t.Fatalf("got %d elements, want %d", len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("element %d: got %q want %q", i, got[i], want[i])
			}
		}
	})
}
