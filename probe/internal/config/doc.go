// Package config loads and watches the probe configuration file (config.yaml).
//
// Only the `probe:` section is read, so the relay and the probe can share one
// file. Keys: relay_url (required, ws:// or wss://), text_path, binary_path,
// metrics_url, health_endpoint, interval (15s), timeout (5s), payload_bytes
// (1024), baseline_latency (250ms), log_level (info).
//
// Watch(ctx, path, onChange) reloads on write and keeps the previous config
// when the new file does not parse or validate.
package config
