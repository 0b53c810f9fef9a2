// Package scraper reads a running relay's Prometheus endpoint.
//
// Scraper.Scrape fetches the text exposition, parses it with expfmt, and
// returns the sockrelay_* counters grouped by their "channel" label as raw
// totals. The compute engine keeps the previous Result and derives rates
// from the delta.
package scraper
