package compute

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sockrelay/sockrelay/probe/internal/roundtrip"
	"github.com/sockrelay/sockrelay/probe/internal/scraper"
)

// baseTime is a fixed reference point so all test timings are deterministic.
var baseTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// tick returns baseTime advanced by n minutes.
func tick(n int) time.Time {
	return baseTime.Add(time.Duration(n) * time.Minute)
}

func echoed(channel string, latency time.Duration) roundtrip.Result {
	return roundtrip.Result{Channel: channel, Connected: true, Echoed: true, Latency: latency}
}

func silent(channel string) roundtrip.Result {
	return roundtrip.Result{Channel: channel, Connected: true, Err: roundtrip.ErrNoEcho}
}

func unreachable(channel string) roundtrip.Result {
	return roundtrip.Result{Channel: channel, Err: errors.New("connection refused")}
}

// --- round-trip only ---

func TestEngine_HealthyEcho(t *testing.T) {
	e := NewEngine(250 * time.Millisecond)
	out := e.Process(Observation{RoundTrip: echoed("text", 50*time.Millisecond)}, tick(0))

	assert.Equal(t, StateHealthy, out.State)
	// 0.4 + (1-50/250)*0.3 + 0.2 + 0.1 = 0.94
	assert.InDelta(t, 94, out.Score, 0.01)
	assert.InDelta(t, 50, out.LatencyMs, 0.001)
	assert.False(t, out.HasCounters, "no scrape, no counters")
	assert.Empty(t, out.ErrorMessage)
}

func TestEngine_Unreachable_ReturnsUnknown(t *testing.T) {
	e := NewEngine(250 * time.Millisecond)
	out := e.Process(Observation{RoundTrip: unreachable("text")}, tick(0))

	assert.Equal(t, StateUnknown, out.State)
	assert.Equal(t, "connection refused", out.ErrorMessage)
	assert.Zero(t, out.UptimePct)
}

func TestEngine_NoEcho_IsCritical(t *testing.T) {
	e := NewEngine(250 * time.Millisecond)
	out := e.Process(Observation{RoundTrip: silent("binary")}, tick(0))

	// 0.4 + 0 (latency at baseline) + 0 (no echoes) + 0.1 = 0.5
	assert.Equal(t, StateCritical, out.State)
	assert.InDelta(t, 50, out.Score, 0.01)
	assert.Zero(t, out.LatencyMs, "a missing echo has no latency")
}

func TestEngine_WindowSlides(t *testing.T) {
	e := NewEngine(0)
	for i := 0; i < window; i++ {
		e.Process(Observation{RoundTrip: echoed("text", time.Millisecond)}, tick(i))
	}
	out := e.Process(Observation{RoundTrip: silent("text")}, tick(window))

	// Window holds the latest 20: 19 echoes, 1 miss.
	assert.InDelta(t, 95, out.EchoRate, 0.001)
	assert.InDelta(t, 100, out.UptimePct, 0.001)
}

func TestEngine_ChannelsIndependent(t *testing.T) {
	e := NewEngine(250 * time.Millisecond)
	e.Process(Observation{RoundTrip: unreachable("binary")}, tick(0))
	out := e.Process(Observation{RoundTrip: echoed("text", time.Millisecond)}, tick(0))

	assert.Equal(t, 100.0, out.UptimePct, "text uptime")
}

func TestEngine_SetBaseline(t *testing.T) {
	e := NewEngine(250 * time.Millisecond)
	e.SetBaseline(100 * time.Millisecond)
	out := e.Process(Observation{RoundTrip: echoed("text", 100*time.Millisecond)}, tick(0))

	// Latency equals the new baseline: latency factor 0 → 0.4 + 0 + 0.2 + 0.1.
	assert.InDelta(t, 70, out.Score, 0.01)
}

// --- counters ---

func TestEngine_FirstScrape_NoRates(t *testing.T) {
	e := NewEngine(250 * time.Millisecond)
	out := e.Process(Observation{
		RoundTrip: echoed("text", time.Millisecond),
		Counters:  &scraper.Counters{ConnectionsActive: 4, Deliveries: 100, DeliveryFailures: 50},
	}, tick(0))

	require.True(t, out.HasCounters)
	assert.EqualValues(t, 4, out.ConnectionsActive)
	// Lifetime totals are not a rate: no failure pct until a delta exists.
	assert.Zero(t, out.DeliveryFailurePct)
	assert.Zero(t, out.MessagesPM)
}

func TestEngine_CounterDeltas(t *testing.T) {
	e := NewEngine(250 * time.Millisecond)
	e.Process(Observation{
		RoundTrip: echoed("text", time.Millisecond),
		Counters:  &scraper.Counters{MessagesReceived: 50, Deliveries: 100},
	}, tick(0))

	out := e.Process(Observation{
		RoundTrip: echoed("text", time.Millisecond),
		Counters: &scraper.Counters{
			MessagesReceived: 100,
			Deliveries:       190,
			DeliveryFailures: 10,
			RejectedFrames:   3,
		},
	}, tick(1))

	assert.InDelta(t, 10, out.DeliveryFailurePct, 0.001)
	assert.InDelta(t, 50, out.MessagesPM, 0.001)
	assert.InDelta(t, 90, out.DeliveriesPM, 0.001)
	assert.InDelta(t, 3, out.RejectedPM, 0.001)
}

func TestEngine_CounterReset_NoNegativeRates(t *testing.T) {
	e := NewEngine(250 * time.Millisecond)
	e.Process(Observation{
		RoundTrip: echoed("text", time.Millisecond),
		Counters:  &scraper.Counters{MessagesReceived: 1000, Deliveries: 5000, DeliveryFailures: 20},
	}, tick(0))

	// Relay restarted: counters start again from a low value.
	out := e.Process(Observation{
		RoundTrip: echoed("text", time.Millisecond),
		Counters:  &scraper.Counters{MessagesReceived: 5, Deliveries: 10},
	}, tick(1))

	assert.Zero(t, out.MessagesPM)
	assert.Zero(t, out.DeliveriesPM)
	assert.Zero(t, out.DeliveryFailurePct)
}

func TestEngine_CountersWithoutRoundTrip_StillRecorded(t *testing.T) {
	e := NewEngine(250 * time.Millisecond)
	out := e.Process(Observation{
		RoundTrip: unreachable("text"),
		Counters:  &scraper.Counters{ConnectionsActive: 2},
	}, tick(0))

	assert.Equal(t, StateUnknown, out.State)
	assert.True(t, out.HasCounters)
	assert.EqualValues(t, 2, out.ConnectionsActive)
}
