// Package roundtrip measures end-to-end relay latency.
//
// The relay delivers every message to every peer on a channel, including the
// sender, so a single client can observe its own broadcast. Probe dials a
// channel, sends a payload that begins with a fresh UUID nonce, and waits
// for the identical frame to come back. Frames from other peers are skipped.
//
// A Result always comes back. Connected reports whether the websocket
// handshake succeeded, Echoed whether the nonce frame returned before the
// deadline.
package roundtrip
