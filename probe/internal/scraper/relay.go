package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Relay metric names, as exposed on the relay's /metrics endpoint.
const (
	metricConnectionsActive = "sockrelay_connections_active"
	metricConnectionsTotal  = "sockrelay_connections_total"
	metricMessagesReceived  = "sockrelay_messages_received_total"
	metricBytesReceived     = "sockrelay_received_bytes_total"
	metricDeliveries        = "sockrelay_deliveries_total"
	metricDeliveryFailures  = "sockrelay_delivery_failures_total"
	metricRejectedFrames    = "sockrelay_rejected_frames_total"

	channelLabel = "channel"
)

// Counters is one channel's raw relay counters. All fields except
// ConnectionsActive are monotonic totals; the compute engine derives rates
// from the delta between scrapes.
type Counters struct {
	ConnectionsActive float64
	ConnectionsTotal  float64
	MessagesReceived  float64
	BytesReceived     float64
	Deliveries        float64
	DeliveryFailures  float64
	RejectedFrames    float64
}

// Result is the normalized output of one scrape.
type Result struct {
	ScrapedAt time.Time

	// Channels maps a channel name ("text", "binary") to its counters.
	Channels map[string]Counters

	// Err is non-nil if the scrape itself failed (connectivity, parse).
	Err error
}

// Channel returns the counters for name, and whether the relay reported it.
func (r *Result) Channel(name string) (Counters, bool) {
	c, ok := r.Channels[name]
	return c, ok
}

// Scraper polls a relay's Prometheus endpoint.
type Scraper struct {
	url    string
	client *http.Client
}

// New returns a Scraper for url whose requests time out after timeout.
func New(url string, timeout time.Duration) *Scraper {
	return &Scraper{url: url, client: &http.Client{Timeout: timeout}}
}

// Scrape fetches the relay's /metrics and groups the relay counters by channel.
// Fetch failures are reported in Result.Err, not as the returned error, so
// the caller can still record the failed cycle.
func (s *Scraper) Scrape(ctx context.Context) (*Result, error) {
	res := &Result{ScrapedAt: time.Now().UTC(), Channels: make(map[string]Counters)}

	mfs, err := fetchMetrics(ctx, s.client, s.url)
	if err != nil {
		res.Err = fmt.Errorf("relay scrape %s: %w", s.url, err)
		slog.Warn("scraper: relay fetch failed", "url", s.url, "err", err)
		return res, nil
	}

	set := func(name string, apply func(*Counters, float64)) {
		for ch, v := range byLabel(mfs[name], channelLabel) {
			c := res.Channels[ch]
			apply(&c, v)
			res.Channels[ch] = c
		}
	}
	set(metricConnectionsActive, func(c *Counters, v float64) { c.ConnectionsActive = v })
	set(metricConnectionsTotal, func(c *Counters, v float64) { c.ConnectionsTotal = v })
	set(metricMessagesReceived, func(c *Counters, v float64) { c.MessagesReceived = v })
	set(metricBytesReceived, func(c *Counters, v float64) { c.BytesReceived = v })
	set(metricDeliveries, func(c *Counters, v float64) { c.Deliveries = v })
	set(metricDeliveryFailures, func(c *Counters, v float64) { c.DeliveryFailures = v })
	set(metricRejectedFrames, func(c *Counters, v float64) { c.RejectedFrames = v })

	if len(res.Channels) == 0 {
		res.Err = fmt.Errorf("relay scrape %s: no sockrelay metrics found", s.url)
	}
	return res, nil
}
