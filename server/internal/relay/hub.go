package relay

import (
	"fmt"
	"log/slog"

	"github.com/sockrelay/sockrelay/server/internal/metrics"
	"github.com/sockrelay/sockrelay/server/internal/registry"
)

// MaxBinaryMessageSize is the inbound frame limit of the binary channel,
// sized for image blobs.
const MaxBinaryMessageSize = 10_000_000

// Options configures a Hub.
type Options struct {
	// Name labels the channel in logs, metrics and the admin API.
	Name string

	// Kind is the only payload kind the hub broadcasts.
	Kind Kind

	// MaxMessageSize is applied to every connection on connect.
	// Zero leaves the transport's own limit in place.
	MaxMessageSize int64

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Hub is one relay channel: a registry of live connections plus the
// broadcast dispatcher over it. All methods are safe for concurrent use.
type Hub struct {
	name           string
	kind           Kind
	maxMessageSize int64

	conns *registry.Registry[Conn]
	stats *metrics.Channel
	log   *slog.Logger
}

// Result summarises one broadcast.
type Result struct {
	Delivered int
	Failed    int
}

// New creates a Hub from opts.
func New(opts Options) *Hub {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		name:           opts.Name,
		kind:           opts.Kind,
		maxMessageSize: opts.MaxMessageSize,
		conns:          registry.New[Conn](),
		stats:          metrics.NewChannel(opts.Name),
		log:            logger.With("channel", opts.Name),
	}
}

// NewText creates the text channel hub with the given inbound frame limit.
func NewText(maxMessageSize int64) *Hub {
	return New(Options{Name: "text", Kind: KindText, MaxMessageSize: maxMessageSize})
}

// NewBinary creates the binary channel hub.
func NewBinary() *Hub {
	return New(Options{Name: "binary", Kind: KindBinary, MaxMessageSize: MaxBinaryMessageSize})
}

// Name returns the channel name ("text" or "binary").
func (h *Hub) Name() string { return h.name }

// Kind returns the only frame kind this hub broadcasts.
func (h *Hub) Kind() Kind { return h.kind }

// MaxMessageSize returns the inbound frame limit in bytes. Zero means no limit.
func (h *Hub) MaxMessageSize() int64 { return h.maxMessageSize }

// Metrics returns the hub's counters.
func (h *Hub) Metrics() *metrics.Channel { return h.stats }

// Count returns the number of registered connections.
func (h *Hub) Count() int { return h.conns.Count() }

// Connections returns the registered connections ordered by connect time.
func (h *Hub) Connections() []registry.Entry[Conn] { return h.conns.List() }

// OnConnect registers c. Re-registering an id replaces the previous handle.
func (h *Hub) OnConnect(c Conn) {
	if h.maxMessageSize > 0 {
		if rl, ok := c.(ReadLimiter); ok {
			rl.SetReadLimit(h.maxMessageSize)
		}
	}

	if replaced := h.conns.Register(c.ID(), c); !replaced {
		h.stats.Connected()
	}
	h.log.Info("relay: connection established",
		"conn_id", c.ID(),
		"remote_addr", c.RemoteAddr(),
		"connections", h.conns.Count(),
	)
}

// OnMessage handles one inbound frame from c. A frame of the hub's kind is
// broadcast; any other kind is logged and dropped without touching c.
func (h *Hub) OnMessage(c Conn, kind Kind, payload []byte) {
	if kind != h.kind {
		h.stats.Rejected()
		h.log.Warn("relay: wrong payload kind for channel",
			"conn_id", c.ID(),
			"remote_addr", c.RemoteAddr(),
			"got", kind.String(),
			"want", h.kind.String(),
		)
		return
	}

	h.stats.Received(len(payload))
	h.log.Debug("relay: message received",
		"conn_id", c.ID(),
		"remote_addr", c.RemoteAddr(),
		"bytes", len(payload),
	)
	h.Broadcast(c.ID(), payload)
}

// OnDisconnect unregisters c. Duplicate notifications are harmless.
func (h *Hub) OnDisconnect(c Conn, status CloseStatus) {
	removed := h.conns.Unregister(c.ID())
	if removed {
		h.stats.Disconnected()
	}
	h.log.Info("relay: connection closed",
		"conn_id", c.ID(),
		"remote_addr", c.RemoteAddr(),
		"code", status.Code,
		"reason", status.Reason,
		"was_registered", removed,
	)
}

// Broadcast sends payload to every connection registered when it is called,
// origin included. A failure for one peer is logged and does not stop
// delivery to the rest.
func (h *Hub) Broadcast(originID string, payload []byte) Result {
	var res Result
	for id, c := range h.conns.All() {
		if err := h.deliver(c, payload); err != nil {
			res.Failed++
			h.stats.DeliveryFailed()
			h.log.Warn("relay: delivery failed",
				"conn_id", id,
				"origin", originID,
				"err", err,
			)
			continue
		}
		res.Delivered++
		h.stats.Delivered()
	}
	return res
}

func (h *Hub) deliver(c Conn, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("relay: send panicked: %v", r)
		}
	}()
	return c.Send(h.kind, payload)
}
