package compute

import (
	"log/slog"
	"sync"
	"time"

	"github.com/sockrelay/sockrelay/probe/internal/roundtrip"
	"github.com/sockrelay/sockrelay/probe/internal/scraper"
)

// window is the number of recent cycles tracked for uptime and echo rate.
const window = 20

// Observation is everything the probe learned about one channel in a cycle.
type Observation struct {
	RoundTrip roundtrip.Result

	// Counters is the channel's scraped relay counters, or nil when scraping
	// is disabled or failed this cycle.
	Counters *scraper.Counters
}

// Result is the derived health snapshot for one channel.
type Result struct {
	Channel   string
	Timestamp time.Time
	State     string
	Score     float64

	Connected bool
	Echoed    bool
	LatencyMs float64

	EchoRate  float64
	UptimePct float64

	// Rates below are zero until two consecutive scrapes are available.
	DeliveryFailurePct float64
	MessagesPM         float64
	DeliveriesPM       float64
	RejectedPM         float64
	ConnectionsActive  float64
	HasCounters        bool

	ErrorMessage string
}

// Engine keeps per-channel state across probe cycles.
//
// All exported methods are safe for concurrent use.
type Engine struct {
	mu         sync.Mutex
	baselineMs float64
	states     map[string]*channelState
}

// NewEngine returns an Engine scoring latency against baseline.
func NewEngine(baseline time.Duration) *Engine {
	return &Engine{
		baselineMs: float64(baseline) / float64(time.Millisecond),
		states:     make(map[string]*channelState),
	}
}

// SetBaseline changes the acceptable latency for subsequent cycles.
func (e *Engine) SetBaseline(baseline time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.baselineMs = float64(baseline) / float64(time.Millisecond)
}

// Process ingests one Observation and returns derived health metrics.
//
// now is passed explicitly so callers (and tests) control the clock without
// sleeping. Use time.Now() in production.
func (e *Engine) Process(obs Observation, now time.Time) *Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	rt := obs.RoundTrip
	st := e.stateFor(rt.Channel)
	st.record(rt.Connected, rt.Echoed)

	out := &Result{
		Channel:   rt.Channel,
		Timestamp: now,
		Connected: rt.Connected,
		Echoed:    rt.Echoed,
		EchoRate:  st.echoRate(),
		UptimePct: st.uptimePct(),
	}
	if rt.Err != nil {
		out.ErrorMessage = rt.Err.Error()
	}

	if obs.Counters != nil {
		e.applyCounters(out, st, *obs.Counters, now)
	}

	if !rt.Connected {
		slog.Warn("compute: relay unreachable, marking unknown",
			"channel", rt.Channel, "err", rt.Err)
		out.State = StateUnknown
		return out
	}

	// A missing echo counts as the worst acceptable latency.
	latencyMs := e.baselineMs
	if rt.Echoed {
		latencyMs = float64(rt.Latency) / float64(time.Millisecond)
		out.LatencyMs = latencyMs
	}

	score := Compute(Input{
		FailurePct:        out.DeliveryFailurePct,
		LatencyMs:         latencyMs,
		BaselineLatencyMs: e.baselineMs,
		EchoRate:          out.EchoRate,
		UptimePct:         out.UptimePct,
	})
	out.State = score.State
	out.Score = score.Score
	return out
}

// applyCounters derives rates from the delta against the previous counters
// and then stores c as the new baseline.
func (e *Engine) applyCounters(out *Result, st *channelState, c scraper.Counters, now time.Time) {
	out.HasCounters = true
	out.ConnectionsActive = c.ConnectionsActive

	if st.hasBaseline {
		elapsed := now.Sub(st.prevTime).Minutes()
		if elapsed <= 0 {
			elapsed = 1 // guard against zero or negative clock drift
		}

		delivered := deltaOf(c.Deliveries, st.prev.Deliveries)
		failed := deltaOf(c.DeliveryFailures, st.prev.DeliveryFailures)
		if total := delivered + failed; total > 0 {
			out.DeliveryFailurePct = failed / total * 100
		}
		out.MessagesPM = deltaOf(c.MessagesReceived, st.prev.MessagesReceived) / elapsed
		out.DeliveriesPM = delivered / elapsed
		out.RejectedPM = deltaOf(c.RejectedFrames, st.prev.RejectedFrames) / elapsed
	}

	st.prev = c
	st.prevTime = now
	st.hasBaseline = true
}

// channelState holds per-channel counters and outcome history.
type channelState struct {
	prev        scraper.Counters
	prevTime    time.Time
	hasBaseline bool
	connected   []bool // newest last
	echoed      []bool
}

func (e *Engine) stateFor(channel string) *channelState {
	if st, ok := e.states[channel]; ok {
		return st
	}
	st := &channelState{}
	e.states[channel] = st
	return st
}

func (st *channelState) record(connected, echoed bool) {
	if len(st.connected) >= window {
		st.connected = st.connected[1:]
		st.echoed = st.echoed[1:]
	}
	st.connected = append(st.connected, connected)
	st.echoed = append(st.echoed, echoed)
}

func (st *channelState) uptimePct() float64 { return pctTrue(st.connected) }
func (st *channelState) echoRate() float64  { return pctTrue(st.echoed) }

func pctTrue(xs []bool) float64 {
	if len(xs) == 0 {
		return 0
	}
	var n int
	for _, x := range xs {
		if x {
			n++
		}
	}
	return float64(n) / float64(len(xs)) * 100
}

// deltaOf returns the positive counter delta between current and previous.
// If current < previous (counter reset after a relay restart), returns 0.
func deltaOf(current, previous float64) float64 {
	d := current - previous
	if d < 0 {
		return 0
	}
	return d
}
