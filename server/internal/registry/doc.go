// Package registry holds the live connections of one relay channel, keyed by
// the connection id the transport assigned. It is safe for concurrent
// Register, Unregister and iteration.
package registry
