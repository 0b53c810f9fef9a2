package relay

import "fmt"

// Kind is the payload type carried by a frame.
type Kind int

const (
	KindText Kind = iota + 1
	KindBinary
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindBinary:
		return "binary"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Conn is the handle a transport hands to a Hub for one live session.
//
// Send must not block for longer than the transport's own write bounds: the
// hub calls it sequentially for every peer during a broadcast. The payload
// slice is shared between all peers of a broadcast and must not be modified.
type Conn interface {
	ID() string
	RemoteAddr() string
	Send(kind Kind, payload []byte) error
}

// ReadLimiter is implemented by connections whose inbound frame size can be
// capped. OnConnect applies the hub's MaxMessageSize through it.
type ReadLimiter interface {
	SetReadLimit(limit int64)
}

// CloseStatus describes why a connection ended.
type CloseStatus struct {
	Code   int
	Reason string
}
