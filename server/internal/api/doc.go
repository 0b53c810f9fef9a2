// Package api implements the read-only REST admin API of the relay server.
//
// New(channels...) returns an http.Handler that serves:
//
//	GET /api/v1/health                          overall state and connection count
//	GET /api/v1/channels                        per-channel counters and diagnostics
//	GET /api/v1/channels/{name}                 one channel; 404 if unknown
//	GET /api/v1/channels/{name}/connections     live connections of one channel
//
// All endpoints respond with Content-Type: application/json and return 405
// for non-GET methods. JSON types are defined in types.go.
package api
