package metrics

import (
	"log/slog"
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"
)

// Exported metric names. The probe scrapes these by name.
const (
	NameConnectionsActive = "sockrelay_connections_active"
	NameConnectionsTotal  = "sockrelay_connections_total"
	NameMessagesReceived  = "sockrelay_messages_received_total"
	NameBytesReceived     = "sockrelay_received_bytes_total"
	NameDeliveries        = "sockrelay_deliveries_total"
	NameDeliveryFailures  = "sockrelay_delivery_failures_total"
	NameRejectedFrames    = "sockrelay_rejected_frames_total"
)

type familyDef struct {
	name  string
	help  string
	typ   dto.MetricType
	value func(Snapshot) float64
}

var families = []familyDef{
	{NameConnectionsActive, "Connections currently registered on the channel.", dto.MetricType_GAUGE,
		func(s Snapshot) float64 { return float64(s.ConnectionsActive) }},
	{NameConnectionsTotal, "Connections registered since process start.", dto.MetricType_COUNTER,
		func(s Snapshot) float64 { return float64(s.ConnectionsTotal) }},
	{NameMessagesReceived, "Inbound messages accepted for broadcast.", dto.MetricType_COUNTER,
		func(s Snapshot) float64 { return float64(s.MessagesReceived) }},
	{NameBytesReceived, "Payload bytes of inbound messages accepted for broadcast.", dto.MetricType_COUNTER,
		func(s Snapshot) float64 { return float64(s.BytesReceived) }},
	{NameDeliveries, "Per-peer sends that were accepted by the transport.", dto.MetricType_COUNTER,
		func(s Snapshot) float64 { return float64(s.Deliveries) }},
	{NameDeliveryFailures, "Per-peer sends that failed during broadcast.", dto.MetricType_COUNTER,
		func(s Snapshot) float64 { return float64(s.DeliveryFailures) }},
	{NameRejectedFrames, "Inbound frames of the wrong payload kind for the channel.", dto.MetricType_COUNTER,
		func(s Snapshot) float64 { return float64(s.RejectedFrames) }},
}

// Families renders the counters of chs as Prometheus metric families, one
// metric per channel labelled channel="<name>".
func Families(chs ...*Channel) []*dto.MetricFamily {
	snaps := make([]Snapshot, 0, len(chs))
	for _, c := range chs {
		snaps = append(snaps, c.Snapshot())
	}

	out := make([]*dto.MetricFamily, 0, len(families))
	for _, def := range families {
		mf := &dto.MetricFamily{
			Name: proto.String(def.name),
			Help: proto.String(def.help),
			Type: def.typ.Enum(),
		}
		for _, s := range snaps {
			m := &dto.Metric{
				Label: []*dto.LabelPair{{Name: proto.String("channel"), Value: proto.String(s.Channel)}},
			}
			v := proto.Float64(def.value(s))
			if def.typ == dto.MetricType_GAUGE {
				m.Gauge = &dto.Gauge{Value: v}
			} else {
				m.Counter = &dto.Counter{Value: v}
			}
			mf.Metric = append(mf.Metric, m)
		}
		out = append(out, mf)
	}
	return out
}

// Handler serves GET /metrics for chs, negotiating the exposition format
// from the request's Accept header.
func Handler(chs ...*Channel) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		format := expfmt.Negotiate(r.Header)
		w.Header().Set("Content-Type", string(format))

		enc := expfmt.NewEncoder(w, format)
		for _, mf := range Families(chs...) {
			if err := enc.Encode(mf); err != nil {
				slog.Warn("metrics: encode failed", "family", mf.GetName(), "err", err)
				return
			}
		}
		if closer, ok := enc.(expfmt.Closer); ok {
			closer.Close() //nolint:errcheck
		}
	})
}
