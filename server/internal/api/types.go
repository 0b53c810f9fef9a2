package api

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	State       string `json:"state"`
	Channels    int    `json:"channels"`
	Connections int    `json:"connections"`
	GeneratedAt string `json:"generated_at"` // RFC3339
}

// ChannelResponse is one channel entry in GET /api/v1/channels or
// GET /api/v1/channels/{name}.
type ChannelResponse struct {
	Name               string           `json:"name"`
	Kind               string           `json:"kind"`
	Path               string           `json:"path"`
	MaxMessageSize     int64            `json:"max_message_size"`
	ConnectionsActive  int64            `json:"connections_active"`
	ConnectionsTotal   uint64           `json:"connections_total"`
	MessagesReceived   uint64           `json:"messages_received"`
	BytesReceived      uint64           `json:"bytes_received"`
	Deliveries         uint64           `json:"deliveries"`
	DeliveryFailures   uint64           `json:"delivery_failures"`
	DeliveryFailurePct float64          `json:"delivery_failure_pct"`
	RejectedFrames     uint64           `json:"rejected_frames"`
	Diagnostics        []DiagnosticHint `json:"diagnostics"`
}

// ConnectionResponse is one entry in GET /api/v1/channels/{name}/connections.
type ConnectionResponse struct {
	ID          string `json:"id"`
	RemoteAddr  string `json:"remote_addr"`
	ConnectedAt string `json:"connected_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
