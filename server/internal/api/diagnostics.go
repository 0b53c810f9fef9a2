package api

import "fmt"

// DiagnosticHint is one human-readable insight about a channel's health.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier.
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level string `json:"level"`
	// Title is a short label.
	Title string `json:"title"`
	// Detail is the full explanation.
	Detail string `json:"detail"`
	// Value is an optional numeric value associated with this hint.
	Value *float64 `json:"value,omitempty"`
}

// Delivery failure thresholds, in percent of all per-peer sends.
const (
	failureWarnPct     = 1.0
	failureCriticalPct = 10.0
)

// computeDiagnostics derives hints from a channel's counters.
// Ordered: critical first, then warnings, then info.
func computeDiagnostics(ch ChannelResponse) []DiagnosticHint {
	var critical, warning, info []DiagnosticHint

	if ch.DeliveryFailures > 0 {
		v := ch.DeliveryFailurePct
		hint := DiagnosticHint{
			Key:   "delivery_failures",
			Title: fmt.Sprintf("%.1f%% deliveries failed", v),
			Detail: fmt.Sprintf(
				"%d of %d per-peer sends on %s failed. Peers that read slower than the "+
					"channel's message rate fill their send buffer and miss messages; peers "+
					"that vanished without a close frame fail until the ping deadline expires. "+
					"Raise server.transport.send_buffer if the failing peers are alive.",
				ch.DeliveryFailures, ch.DeliveryFailures+ch.Deliveries, ch.Name),
			Value: &v,
		}
		switch {
		case v >= failureCriticalPct:
			hint.Level = "critical"
			critical = append(critical, hint)
		case v >= failureWarnPct:
			hint.Level = "warning"
			warning = append(warning, hint)
		default:
			hint.Level = "info"
			info = append(info, hint)
		}
	}

	if ch.RejectedFrames > 0 {
		v := float64(ch.RejectedFrames)
		other := "binary"
		if ch.Kind == "binary" {
			other = "text"
		}
		warning = append(warning, DiagnosticHint{
			Key:   "rejected_frames",
			Level: "warning",
			Title: fmt.Sprintf("%d wrong-kind frames", ch.RejectedFrames),
			Detail: fmt.Sprintf(
				"Clients sent %d %s frames to the %s channel at %s. They were dropped "+
					"without closing the connection. Point those clients at the %s endpoint.",
				ch.RejectedFrames, other, ch.Kind, ch.Path, other),
			Value: &v,
		})
	}

	if ch.ConnectionsActive == 0 {
		info = append(info, DiagnosticHint{
			Key:    "idle",
			Level:  "info",
			Title:  "No clients",
			Detail: fmt.Sprintf("Nobody is connected to %s. Messages sent now reach no one.", ch.Path),
		})
	}

	hints := append(append(critical, warning...), info...)
	if len(hints) == 0 {
		return []DiagnosticHint{{
			Key:    "healthy",
			Level:  "ok",
			Title:  "Relaying normally",
			Detail: "Every message received on this channel was handed to every connected peer.",
		}}
	}
	return hints
}
