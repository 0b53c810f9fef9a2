package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sockrelay/sockrelay/probe/internal/checker"
	"github.com/sockrelay/sockrelay/probe/internal/compute"
	"github.com/sockrelay/sockrelay/probe/internal/config"
	"github.com/sockrelay/sockrelay/probe/internal/roundtrip"
	"github.com/sockrelay/sockrelay/probe/internal/scraper"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("sockrelay-probe starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	p := cfg.Probe
	level.Set(p.Level())

	slog.Info("config loaded",
		"text_url", p.TextURL(),
		"binary_url", p.BinaryURL(),
		"metrics_url", p.MetricsURL,
		"health_endpoint", p.HealthEndpoint,
		"interval", p.Interval,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	engine := compute.NewEngine(p.BaselineLatency)

	// Hot-reload applies the log level and latency baseline; targets are
	// fixed for the life of the process.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			level.Set(updated.Probe.Level())
			engine.SetBaseline(updated.Probe.BaselineLatency)
			slog.Info("config hot-reloaded",
				"log_level", updated.Probe.LogLevel,
				"baseline_latency", updated.Probe.BaselineLatency)
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	var hc *checker.Checker
	if p.HealthEndpoint != "" {
		hc = checker.New(p.HealthEndpoint,
			[]string{"", "sockrelay.text", "sockrelay.binary"},
			p.Interval, p.Timeout)
		go hc.Run(ctx)
	}

	var sc *scraper.Scraper
	if p.MetricsURL != "" {
		sc = scraper.New(p.MetricsURL, p.Timeout)
	}

	prober := roundtrip.New(p.Timeout, p.PayloadBytes)
	targets := []roundtrip.Target{
		{Channel: "text", URL: p.TextURL(), PayloadBytes: p.TextPayloadBytes},
		{Channel: "binary", URL: p.BinaryURL(), Binary: true, PayloadBytes: p.PayloadBytes},
	}

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	for {
		runCycle(ctx, prober, targets, sc, hc, engine, time.Now())

		select {
		case <-ctx.Done():
			slog.Info("sockrelay-probe shutting down")
			return
		case <-ticker.C:
		}
	}
}

// runCycle probes every target concurrently, scrapes once, and logs one
// result per channel.
func runCycle(
	ctx context.Context,
	prober *roundtrip.Prober,
	targets []roundtrip.Target,
	sc *scraper.Scraper,
	hc *checker.Checker,
	engine *compute.Engine,
	now time.Time,
) {
	results := make([]roundtrip.Result, len(targets))
	var wg sync.WaitGroup
	for i, t := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = prober.Probe(ctx, t)
		}()
	}

	var scraped *scraper.Result
	if sc != nil {
		scraped, _ = sc.Scrape(ctx)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return
	}

	for _, rt := range results {
		obs := compute.Observation{RoundTrip: rt}
		if scraped != nil && scraped.Err == nil {
			if c, ok := scraped.Channel(rt.Channel); ok {
				obs.Counters = &c
			}
		}
		res := engine.Process(obs, now)

		attrs := []any{
			"channel", res.Channel,
			"state", res.State,
			"score", res.Score,
			"latency_ms", res.LatencyMs,
			"echo_rate", res.EchoRate,
			"uptime_pct", res.UptimePct,
		}
		if res.HasCounters {
			attrs = append(attrs,
				"connections", res.ConnectionsActive,
				"messages_pm", res.MessagesPM,
				"delivery_failure_pct", res.DeliveryFailurePct,
				"rejected_pm", res.RejectedPM,
			)
		}
		if hc != nil {
			attrs = append(attrs, "grpc_status", hc.Status("sockrelay."+res.Channel).String())
		}
		if res.ErrorMessage != "" {
			attrs = append(attrs, "err", res.ErrorMessage)
		}

		if res.State == compute.StateHealthy {
			slog.Info("probe: cycle", attrs...)
		} else {
			slog.Warn("probe: cycle", attrs...)
		}
	}
}
