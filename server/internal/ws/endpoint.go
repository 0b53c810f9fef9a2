package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sockrelay/sockrelay/server/internal/relay"
)

// Default transport settings.
const (
	DefaultSendBuffer   = 64
	DefaultWriteTimeout = 10 * time.Second
	DefaultPongWait     = 60 * time.Second
)

// Options tunes the per-connection transport behaviour.
type Options struct {
	// SendBuffer is the per-connection outgoing frame buffer depth.
	SendBuffer int

	// WriteTimeout is the deadline for a single frame write.
	WriteTimeout time.Duration

	// PongWait is how long to wait for any frame or pong before treating the
	// connection as dead. Pings go out at 9/10 of this interval.
	PongWait time.Duration
}

// DefaultOptions returns the settings used when a config value is absent.
func DefaultOptions() Options {
	return Options{
		SendBuffer:   DefaultSendBuffer,
		WriteTimeout: DefaultWriteTimeout,
		PongWait:     DefaultPongWait,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SendBuffer <= 0 {
		o.SendBuffer = d.SendBuffer
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if o.PongWait <= 0 {
		o.PongWait = d.PongWait
	}
	return o
}

// Endpoint serves one relay channel over websocket.
type Endpoint struct {
	hub      *relay.Hub
	opts     Options
	upgrader websocket.Upgrader

	mu       sync.Mutex
	clients  map[*client]struct{}
	shutdown bool
}

// New creates an Endpoint that feeds hub.
func New(hub *relay.Hub, opts Options) *Endpoint {
	return &Endpoint{
		hub:  hub,
		opts: opts.withDefaults(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Any origin may connect.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Run blocks until ctx is cancelled, then calls Close.
func (e *Endpoint) Run(ctx context.Context) {
	<-ctx.Done()
	e.Close()
}

// Close sends a going-away close frame to every active connection and
// refuses new ones with 503. Safe to call more than once.
func (e *Endpoint) Close() {
	e.closeAll()
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if e.isShutdown() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		slog.Debug("ws: upgrade failed",
			"channel", e.hub.Name(), "remote_addr", r.RemoteAddr, "err", err)
		return
	}

	c := newClient(uuid.NewString(), r.RemoteAddr, conn, e.opts)
	if !e.track(c) {
		conn.Close()
		return
	}
	defer e.untrack(c)

	e.hub.OnConnect(c)

	go c.writePump()
	status := c.readPump(e.hub) // blocks until connection closes
	c.stop()

	e.hub.OnDisconnect(c, status)
}

// Count returns the number of connections currently served.
func (e *Endpoint) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.clients)
}

// --- internal ---------------------------------------------------------------

func (e *Endpoint) isShutdown() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shutdown
}

func (e *Endpoint) track(c *client) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.shutdown {
		return false
	}
	e.clients[c] = struct{}{}
	return true
}

func (e *Endpoint) untrack(c *client) {
	e.mu.Lock()
	delete(e.clients, c)
	e.mu.Unlock()
}

func (e *Endpoint) closeAll() {
	e.mu.Lock()
	e.shutdown = true
	targets := make([]*client, 0, len(e.clients))
	for c := range e.clients {
		targets = append(targets, c)
	}
	e.mu.Unlock()

	for _, c := range targets {
		c.stop()
	}
	if len(targets) > 0 {
		slog.Info("ws: closed connections on shutdown",
			"channel", e.hub.Name(), "count", len(targets))
	}
}
