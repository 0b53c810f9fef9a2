package ws

import (
	"errors"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sockrelay/sockrelay/server/internal/relay"
)

func bareClient(buf int) *client {
	return &client{
		id:   "c1",
		send: make(chan frame, buf),
		done: make(chan struct{}),
	}
}

func TestClientSend_Queues(t *testing.T) {
	c := bareClient(2)
	require.NoError(t, c.Send(relay.KindText, []byte("a")))
	require.NoError(t, c.Send(relay.KindBinary, []byte("b")))

	f := <-c.send
	assert.Equal(t, relay.KindText, f.kind)
	assert.Equal(t, "a", string(f.payload))
}

func TestClientSend_BufferFull(t *testing.T) {
	c := bareClient(1)
	require.NoError(t, c.Send(relay.KindText, []byte("a")))

	err := c.Send(relay.KindText, []byte("b"))
	assert.True(t, errors.Is(err, ErrSendBufferFull), "got %v", err)
}

func TestClientSend_AfterStop(t *testing.T) {
	c := bareClient(4)
	c.stop()
	c.stop() // idempotent

	err := c.Send(relay.KindText, []byte("late"))
	assert.True(t, errors.Is(err, ErrClosed), "got %v", err)
	assert.Empty(t, c.send)
}

func TestKindMapping(t *testing.T) {
	k, ok := kindOf(websocket.TextMessage)
	assert.True(t, ok)
	assert.Equal(t, relay.KindText, k)

	k, ok = kindOf(websocket.BinaryMessage)
	assert.True(t, ok)
	assert.Equal(t, relay.KindBinary, k)

	_, ok = kindOf(websocket.PingMessage)
	assert.False(t, ok)

	assert.Equal(t, websocket.TextMessage, messageType(relay.KindText))
	assert.Equal(t, websocket.BinaryMessage, messageType(relay.KindBinary))
}

func TestCloseStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"peer close", &websocket.CloseError{Code: websocket.CloseNormalClosure, Text: "bye"}, websocket.CloseNormalClosure},
		{"read limit", websocket.ErrReadLimit, websocket.CloseMessageTooBig},
		{"network error", errors.New("connection reset by peer"), websocket.CloseAbnormalClosure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, closeStatus(tt.err).Code)
		})
	}
}
