package roundtrip

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrNoEcho is returned when the connection closed or the deadline passed
// before the probe's own frame came back.
var ErrNoEcho = errors.New("roundtrip: echo not received")

// Target is one relay channel to probe.
type Target struct {
	// Channel names the target in results and logs ("text" or "binary").
	Channel string
	// URL is the full ws:// or wss:// URL of the channel endpoint.
	URL string
	// Binary selects binary frames; otherwise text frames are sent.
	Binary bool
	// PayloadBytes overrides the Prober's payload size when positive.
	PayloadBytes int
}

// Result is the outcome of one round trip.
type Result struct {
	Channel   string
	At        time.Time
	Connected bool
	Echoed    bool
	Latency   time.Duration
	Bytes     int
	Err       error
}

// Prober performs round trips. It is safe for concurrent use.
type Prober struct {
	dialer       *websocket.Dialer
	timeout      time.Duration
	payloadBytes int
}

// New returns a Prober whose round trips each take at most timeout and send
// payloads of payloadBytes bytes (or the nonce length, whichever is larger).
func New(timeout time.Duration, payloadBytes int) *Prober {
	return &Prober{
		dialer: &websocket.Dialer{
			HandshakeTimeout: timeout,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
		},
		timeout:      timeout,
		payloadBytes: payloadBytes,
	}
}

// Probe runs one round trip against t.
func (p *Prober) Probe(ctx context.Context, t Target) Result {
	res := Result{Channel: t.Channel, At: time.Now()}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, _, err := p.dialer.DialContext(ctx, t.URL, nil)
	if err != nil {
		res.Err = fmt.Errorf("roundtrip: dial %s: %w", t.URL, err)
		return res
	}
	defer conn.Close()
	res.Connected = true

	deadline, _ := ctx.Deadline()
	conn.SetReadDeadline(deadline)  //nolint:errcheck
	conn.SetWriteDeadline(deadline) //nolint:errcheck

	// Unblock reads if the parent context is cancelled early.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	mt := websocket.TextMessage
	if t.Binary {
		mt = websocket.BinaryMessage
	}
	size := p.payloadBytes
	if t.PayloadBytes > 0 {
		size = t.PayloadBytes
	}
	payload := buildPayload(uuid.NewString(), size)
	res.Bytes = len(payload)

	start := time.Now()
	if err := conn.WriteMessage(mt, payload); err != nil {
		res.Err = fmt.Errorf("roundtrip: write: %w", err)
		return res
	}

	for {
		got, data, err := conn.ReadMessage()
		if err != nil {
			res.Err = fmt.Errorf("%w: %v", ErrNoEcho, err)
			return res
		}
		if got == mt && bytes.Equal(data, payload) {
			res.Latency = time.Since(start)
			res.Echoed = true
			break
		}
		slog.Debug("roundtrip: skipping foreign frame", "channel", t.Channel, "bytes", len(data))
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	conn.SetWriteDeadline(time.Now().Add(time.Second)) //nolint:errcheck
	conn.WriteMessage(websocket.CloseMessage, msg)     //nolint:errcheck
	return res
}

// buildPayload returns nonce padded with a repeating pattern up to size bytes.
func buildPayload(nonce string, size int) []byte {
	if size < len(nonce) {
		size = len(nonce)
	}
	buf := make([]byte, size)
	n := copy(buf, nonce)
	for i := n; i < size; i++ {
		buf[i] = 'a' + byte(i%26)
	}
	return buf
}
