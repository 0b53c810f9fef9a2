package ws

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sockrelay/sockrelay/server/internal/relay"
)

var (
	// ErrClosed is returned by Send once the connection has finished.
	ErrClosed = errors.New("ws: connection closed")

	// ErrSendBufferFull is returned by Send when the peer is not draining its
	// outgoing buffer fast enough. The frame is dropped for that peer only.
	ErrSendBufferFull = errors.New("ws: send buffer full")
)

type frame struct {
	kind    relay.Kind
	payload []byte
}

// client is one upgraded websocket connection. It implements relay.Conn and
// relay.ReadLimiter.
type client struct {
	id     string
	remote string
	conn   *websocket.Conn

	send      chan frame
	done      chan struct{}
	closeOnce sync.Once

	writeTimeout time.Duration
	pongWait     time.Duration
	pingPeriod   time.Duration
}

func newClient(id, remote string, conn *websocket.Conn, opts Options) *client {
	return &client{
		id:           id,
		remote:       remote,
		conn:         conn,
		send:         make(chan frame, opts.SendBuffer),
		done:         make(chan struct{}),
		writeTimeout: opts.WriteTimeout,
		pongWait:     opts.PongWait,
		pingPeriod:   (opts.PongWait * 9) / 10,
	}
}

func (c *client) ID() string         { return c.id }
func (c *client) RemoteAddr() string { return c.remote }

// Send queues payload for the write pump without blocking.
func (c *client) Send(kind relay.Kind, payload []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.send <- frame{kind: kind, payload: payload}:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrSendBufferFull
	}
}

// SetReadLimit caps inbound frame size. Must be called before readPump starts.
func (c *client) SetReadLimit(limit int64) {
	c.conn.SetReadLimit(limit)
}

// stop ends the write pump, which sends a close frame and closes the socket.
// Safe to call more than once.
func (c *client) stop() {
	c.closeOnce.Do(func() { close(c.done) })
}

// writePump is the only goroutine that writes data frames to the connection.
// It also sends periodic pings.
func (c *client) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case f := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)) //nolint:errcheck
			if err := c.conn.WriteMessage(messageType(f.kind), f.payload); err != nil {
				slog.Debug("ws: write failed", "conn_id", c.id, "err", err)
				c.stop()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.stop()
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)) //nolint:errcheck
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
			c.conn.WriteMessage(websocket.CloseMessage, msg) //nolint:errcheck
			return
		}
	}
}

// readPump feeds inbound data frames to hub until the connection fails or
// the peer closes it. It returns why the connection ended.
func (c *client) readPump(hub *relay.Hub) relay.CloseStatus {
	c.conn.SetReadDeadline(time.Now().Add(c.pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			return closeStatus(err)
		}
		c.conn.SetReadDeadline(time.Now().Add(c.pongWait)) //nolint:errcheck

		kind, ok := kindOf(mt)
		if !ok {
			continue
		}
		hub.OnMessage(c, kind, data)
	}
}

func messageType(k relay.Kind) int {
	if k == relay.KindBinary {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

func kindOf(mt int) (relay.Kind, bool) {
	switch mt {
	case websocket.TextMessage:
		return relay.KindText, true
	case websocket.BinaryMessage:
		return relay.KindBinary, true
	default:
		return 0, false
	}
}

// closeStatus maps a read error to the status reported to the hub.
func closeStatus(err error) relay.CloseStatus {
	var ce *websocket.CloseError
	switch {
	case errors.As(err, &ce):
		return relay.CloseStatus{Code: ce.Code, Reason: ce.Text}
	case errors.Is(err, websocket.ErrReadLimit):
		return relay.CloseStatus{Code: websocket.CloseMessageTooBig, Reason: err.Error()}
	default:
		return relay.CloseStatus{Code: websocket.CloseAbnormalClosure, Reason: err.Error()}
	}
}
