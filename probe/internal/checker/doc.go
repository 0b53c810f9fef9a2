// Package checker polls the relay's grpc.health.v1.Health service.
//
// Checker.Run dials the relay and calls Check for every configured service
// once per interval, caching the latest serving status. When the connection
// fails it marks every service UNKNOWN and reconnects with truncated
// exponential backoff (1s→60s, ±25% jitter).
//
// The dialFn field is injectable for testing.
package checker
