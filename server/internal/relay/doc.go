// Package relay implements the channel hubs of the broadcast relay.
//
// A Hub owns one channel's connection registry. The transport calls
// OnConnect, OnMessage and OnDisconnect from any goroutine; every message of
// the hub's payload kind is re-sent to all registered connections, the sender
// included. Frames of the other kind are logged and dropped.
//
// Two hubs run in a server process:
//
//	NewText(limit)   text frames only, inbound limit from config
//	NewBinary()      binary frames only, inbound limit MaxBinaryMessageSize
//
// Hubs share no state. A failed send to one peer is logged and counted but
// never removes the peer: only OnDisconnect does that.
package relay
