package roundtrip

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// relayServer upgrades every request and runs handle on the connection.
func relayServer(t *testing.T, handle func(*websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// echoAll mimics an origin-inclusive relay with one peer.
func echoAll(conn *websocket.Conn) {
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if err := conn.WriteMessage(mt, data); err != nil {
			return
		}
	}
}

func TestBuildPayload(t *testing.T) {
	nonce := "0123456789"

	p := buildPayload(nonce, 32)
	assert.Len(t, p, 32)
	assert.True(t, strings.HasPrefix(string(p), nonce))

	// Never shorter than the nonce.
	assert.Equal(t, nonce, string(buildPayload(nonce, 4)))
}

func TestProbe_TextEcho(t *testing.T) {
	url := relayServer(t, echoAll)

	res := New(2*time.Second, 256).Probe(context.Background(), Target{Channel: "text", URL: url})
	require.NoError(t, res.Err)
	assert.True(t, res.Connected)
	assert.True(t, res.Echoed)
	assert.Equal(t, "text", res.Channel)
	assert.Equal(t, 256, res.Bytes)
	assert.Positive(t, res.Latency)
}

func TestProbe_BinaryEcho(t *testing.T) {
	types := make(chan int, 1)
	url := relayServer(t, func(conn *websocket.Conn) {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		types <- mt
		conn.WriteMessage(mt, data) //nolint:errcheck
		conn.ReadMessage()          //nolint:errcheck // wait for close
	})

	res := New(2*time.Second, 64*1024).Probe(context.Background(), Target{Channel: "binary", URL: url, Binary: true})
	require.NoError(t, res.Err)
	assert.True(t, res.Echoed)
	assert.Equal(t, websocket.BinaryMessage, <-types)
}

func TestProbe_TargetPayloadBytesOverridesDefault(t *testing.T) {
	// Behaves like a text channel with a 64 KiB frame limit.
	url := relayServer(t, func(conn *websocket.Conn) {
		conn.SetReadLimit(64 * 1024)
		echoAll(conn)
	})
	prober := New(2*time.Second, 128*1024)

	res := prober.Probe(context.Background(), Target{Channel: "text", URL: url, PayloadBytes: 1024})
	require.NoError(t, res.Err)
	assert.True(t, res.Echoed)
	assert.Equal(t, 1024, res.Bytes)

	res = prober.Probe(context.Background(), Target{Channel: "text", URL: url})
	assert.False(t, res.Echoed)
	assert.Equal(t, 128*1024, res.Bytes)
	assert.Error(t, res.Err)
}

func TestProbe_SkipsForeignFrames(t *testing.T) {
	url := relayServer(t, func(conn *websocket.Conn) {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		// Another peer's traffic arrives first.
		conn.WriteMessage(websocket.TextMessage, []byte("someone else")) //nolint:errcheck
		conn.WriteMessage(websocket.BinaryMessage, data)                 //nolint:errcheck
		conn.WriteMessage(mt, data)                                      //nolint:errcheck
		echoAll(conn)
	})

	res := New(2*time.Second, 128).Probe(context.Background(), Target{Channel: "text", URL: url})
	require.NoError(t, res.Err)
	assert.True(t, res.Echoed)
}

func TestProbe_NoEchoTimesOut(t *testing.T) {
	url := relayServer(t, func(conn *websocket.Conn) {
		// Read and discard: a relay that lost broadcast.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	start := time.Now()
	res := New(200*time.Millisecond, 64).Probe(context.Background(), Target{Channel: "text", URL: url})
	assert.True(t, res.Connected)
	assert.False(t, res.Echoed)
	assert.True(t, errors.Is(res.Err, ErrNoEcho), "got %v", res.Err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestProbe_ServerClosesBeforeEcho(t *testing.T) {
	url := relayServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage() //nolint:errcheck

		msg := websocket.FormatCloseMessage(websocket.CloseMessageTooBig, "too big")
		conn.WriteMessage(websocket.CloseMessage, msg) //nolint:errcheck
	})

	res := New(2*time.Second, 64).Probe(context.Background(), Target{Channel: "text", URL: url})
	assert.False(t, res.Echoed)
	assert.ErrorIs(t, res.Err, ErrNoEcho)
}

func TestProbe_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	res := New(time.Second, 64).Probe(context.Background(), Target{Channel: "text", URL: url})
	assert.False(t, res.Connected)
	assert.False(t, res.Echoed)
	assert.Error(t, res.Err)
}

func TestProbe_ParentCancel(t *testing.T) {
	url := relayServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	res := New(5*time.Second, 64).Probe(ctx, Target{Channel: "text", URL: url})
	assert.False(t, res.Echoed)
	assert.Less(t, time.Since(start), 2*time.Second)
}
