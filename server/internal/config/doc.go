// Package config loads the relay server configuration from the `server:`
// section of config.yaml (the `probe:` key is ignored by the server binary).
//
// Config fields:
//   - HTTPPort: websocket endpoints, REST API, /metrics (default 8080)
//   - GRPCPort: gRPC health service (default 50051)
//   - LogLevel: debug | info | warn | error (default info)
//   - Channels.Text.Path: text channel endpoint (default /textSocket)
//   - Channels.Text.MaxMessageSize: inbound text frame limit in bytes (default 65536)
//   - Channels.Binary.Path: binary channel endpoint (default /binSocket)
//   - Transport.SendBuffer: per-connection outgoing frame buffer (default 64)
//   - Transport.WriteTimeout: deadline for one frame write (default 10s)
//   - Transport.PongWait: idle read deadline, pings at 9/10 of it (default 60s)
//
// The binary channel's inbound limit is fixed at 10,000,000 bytes.
//
// Load(path) applies defaults before unmarshalling, then validates.
// Watch(ctx, path, onChange) reloads the file when it changes.
package config
