// Package compute derives relay health from probe observations.
//
// score.go provides the pure Compute(Input) function that calculates the
// composite score (0–100): delivery failures (40%), round-trip latency
// against a baseline (30%), echo rate (20%), uptime (10%).
//
// engine.go provides the stateful Engine that keeps, per channel, a window
// of round-trip outcomes and the previous scraped counters, and derives
// per-minute rates from the delta between cycles. Engine.Process accepts an
// injectable time.Time so tests are deterministic.
//
// Health state thresholds: Healthy ≥85, Degraded 60–84, Critical <60.
// A channel whose relay refused the connection this cycle is Unknown.
package compute
