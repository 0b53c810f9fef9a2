// Package health exposes the relay's liveness over the standard
// grpc.health.v1.Health service.
//
// The overall service ("") and one service per channel ("sockrelay.text",
// "sockrelay.binary") report SERVING from New until Shutdown, after which
// every service reports NOT_SERVING so load balancers drain the instance
// before the listeners close.
//
// UnaryLogger and StreamLogger are server interceptors that log each call
// with log/slog.
package health
