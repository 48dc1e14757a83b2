package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorConstructorsWrapKinds(t *testing.T) {
	cases := []struct {
		err  error
		kind error
		text string
	}{
		{InvalidFormat("bad %s", "arg"), ErrInvalidMessageFormat, "bad arg"},
		{ServerError(errors.New("closed")), ErrServer, "closed"},
		{ClientError("is in room"), ErrClient, "is in room"},
		{GameStateError("started"), ErrGameState, "started"},
		{NotImplemented("events"), ErrNotImplemented, `"events"`},
	}
	for _, c := range cases {
		assert.True(t, errors.Is(c.err, c.kind), "%v should wrap %v", c.err, c.kind)
		assert.Contains(t, c.err.Error(), c.text)
	}
}

func TestServerErrorKeepsCause(t *testing.T) {
	cause := errors.New("outbox closed")
	err := ServerError(cause)
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrClient))
}
