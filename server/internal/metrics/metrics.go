package metrics

import "sync/atomic"

// Channel tracks counters for one relay channel. All fields are updated atomically.
type Channel struct {
	name string

	connectionsActive atomic.Int64
	connectionsTotal  atomic.Uint64
	messagesReceived  atomic.Uint64
	bytesReceived     atomic.Uint64
	deliveries        atomic.Uint64
	deliveryFailures  atomic.Uint64
	rejectedFrames    atomic.Uint64
}

// Snapshot is a point-in-time copy of a Channel's counters.
type Snapshot struct {
	Channel           string `json:"channel"`
	ConnectionsActive int64  `json:"connections_active"`
	ConnectionsTotal  uint64 `json:"connections_total"`
	MessagesReceived  uint64 `json:"messages_received"`
	BytesReceived     uint64 `json:"bytes_received"`
	Deliveries        uint64 `json:"deliveries"`
	DeliveryFailures  uint64 `json:"delivery_failures"`
	RejectedFrames    uint64 `json:"rejected_frames"`
}

// NewChannel returns zeroed counters labelled with name.
func NewChannel(name string) *Channel {
	return &Channel{name: name}
}

// Name returns the channel label.
func (c *Channel) Name() string { return c.name }

// Connected records a newly registered connection.
func (c *Channel) Connected() {
	c.connectionsTotal.Add(1)
	c.connectionsActive.Add(1)
}

// Disconnected records a removed connection.
func (c *Channel) Disconnected() {
	if v := c.connectionsActive.Add(-1); v < 0 {
		c.connectionsActive.Store(0)
	}
}

// Received records one inbound message of n bytes.
func (c *Channel) Received(n int) {
	c.messagesReceived.Add(1)
	c.bytesReceived.Add(uint64(n))
}

// Delivered records one successful per-peer send.
func (c *Channel) Delivered() { c.deliveries.Add(1) }

// DeliveryFailed records one failed per-peer send.
func (c *Channel) DeliveryFailed() { c.deliveryFailures.Add(1) }

// Rejected records one inbound frame of the wrong kind.
func (c *Channel) Rejected() { c.rejectedFrames.Add(1) }

// Snapshot returns the current counter values.
func (c *Channel) Snapshot() Snapshot {
	return Snapshot{
		Channel:           c.name,
		ConnectionsActive: c.connectionsActive.Load(),
		ConnectionsTotal:  c.connectionsTotal.Load(),
		MessagesReceived:  c.messagesReceived.Load(),
		BytesReceived:     c.bytesReceived.Load(),
		Deliveries:        c.deliveries.Load(),
		DeliveryFailures:  c.deliveryFailures.Load(),
		RejectedFrames:    c.rejectedFrames.Load(),
	}
}
