package compute

// Weight constants for the relay health score formula.
// They must sum to 1.0.
const (
	weightFailure = 0.40
	weightLatency = 0.30
	weightEcho    = 0.20
	weightUptime  = 0.10
)

// State constants returned by the score calculator.
const (
	StateHealthy  = "healthy"
	StateDegraded = "degraded"
	StateCritical = "critical"
	StateUnknown  = "unknown"
)

// Thresholds that map a score to a health state.
const (
	ThresholdHealthy  = 85.0
	ThresholdDegraded = 60.0
)

// Input holds the normalised values fed into the score formula.
// All percentage fields are in the range 0–100.
type Input struct {
	// FailurePct is the percentage of per-peer sends the relay failed.
	// 0 = every send succeeded, 100 = every send failed.
	FailurePct float64

	// LatencyMs is the observed round-trip latency in milliseconds.
	LatencyMs float64

	// BaselineLatencyMs is the acceptable round-trip latency.
	// When non-zero, the latency factor is 1 - clamp(Latency/Baseline, 0, 1).
	// When zero, the latency factor is 1.0 (no penalty).
	BaselineLatencyMs float64

	// EchoRate is the percentage of recent round trips whose payload came back.
	EchoRate float64

	// UptimePct is the percentage of recent cycles in which the relay
	// accepted a websocket connection.
	UptimePct float64
}

// Output is the result of the score calculation.
type Output struct {
	// Score is the composite health score in the range 0–100.
	Score float64

	// State is derived from Score.
	// One of: "healthy", "degraded", "critical", "unknown".
	State string

	// The four factor values (each 0–1) used to compute Score.
	FailureFactor float64
	LatencyFactor float64
	EchoFactor    float64
	UptimeFactor  float64
}

// Compute calculates the relay health score from the given inputs.
//
//	score = (
//	    (1 - failure_pct/100)   * 0.40  +
//	    (1 - latency_ratio)     * 0.30  +   // latency_ratio = latency/baseline, capped at 1
//	    echo_rate/100           * 0.20  +
//	    uptime_pct/100          * 0.10
//	) * 100
//
// With no uptime, no echoes, and no failures there is nothing to score and the
// state is "unknown".
func Compute(in Input) Output {
	if in.UptimePct == 0 && in.EchoRate == 0 && in.FailurePct == 0 {
		return Output{State: StateUnknown}
	}

	failureFactor := 1 - clamp01(in.FailurePct/100)

	latencyFactor := 1.0
	if in.BaselineLatencyMs > 0 {
		latencyFactor = 1 - clamp01(in.LatencyMs/in.BaselineLatencyMs)
	}

	echoFactor := clamp01(in.EchoRate / 100)
	uptimeFactor := clamp01(in.UptimePct / 100)

	score := (failureFactor*weightFailure +
		latencyFactor*weightLatency +
		echoFactor*weightEcho +
		uptimeFactor*weightUptime) * 100

	return Output{
		Score:         score,
		State:         stateFromScore(score),
		FailureFactor: failureFactor,
		LatencyFactor: latencyFactor,
		EchoFactor:    echoFactor,
		UptimeFactor:  uptimeFactor,
	}
}

// stateFromScore maps a numeric score to a named health state.
func stateFromScore(score float64) string {
	switch {
	case score >= ThresholdHealthy:
		return StateHealthy
	case score >= ThresholdDegraded:
		return StateDegraded
	default:
		return StateCritical
	}
}

// clamp01 restricts v to the range [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
