// Package ws is the websocket transport in front of a relay.Hub.
//
// New(hub, opts) returns an Endpoint, an http.Handler that upgrades each
// request, assigns the connection a UUID and drives the hub's lifecycle
// callbacks:
//
//	upgrade ok        -> hub.OnConnect
//	each data frame   -> hub.OnMessage (text or binary kind)
//	read error/close  -> hub.OnDisconnect, exactly once per connection
//
// Each connection has one read goroutine and one write goroutine. Outbound
// frames go through a bounded buffer, so Send never blocks the broadcasting
// goroutine: a full buffer fails with ErrSendBufferFull, a finished
// connection with ErrClosed.
//
// The upgrader accepts all origins. Endpoint.Run(ctx) blocks until ctx is
// cancelled, then closes every live connection.
package ws
