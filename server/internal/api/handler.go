package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/sockrelay/sockrelay/server/internal/relay"
)

// Channel is a hub together with the HTTP path its endpoint is mounted on.
type Channel struct {
	Hub  *relay.Hub
	Path string
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	channels []Channel
	byName   map[string]Channel
	mux      *http.ServeMux
	now      func() time.Time
}

// New creates a Handler over the given channels and registers all routes.
func New(channels ...Channel) http.Handler {
	h := &Handler{
		channels: channels,
		byName:   make(map[string]Channel, len(channels)),
		mux:      http.NewServeMux(),
		now:      time.Now,
	}
	for _, ch := range channels {
		h.byName[ch.Hub.Name()] = ch
	}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/channels", h.listChannels)
	h.mux.HandleFunc("/api/v1/channels/", h.channelSubtree) // {name} and {name}/connections

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp := HealthResponse{
		State:       "ok",
		Channels:    len(h.channels),
		GeneratedAt: h.now().UTC().Format(time.RFC3339),
	}
	for _, ch := range h.channels {
		resp.Connections += ch.Hub.Count()
	}
	jsonResp(w, http.StatusOK, resp)
}

// listChannels returns GET /api/v1/channels.
func (h *Handler) listChannels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	out := make([]ChannelResponse, 0, len(h.channels))
	for _, ch := range h.channels {
		out = append(out, toChannelResponse(ch))
	}
	jsonResp(w, http.StatusOK, out)
}

// channelSubtree dispatches /api/v1/channels/{name}[/connections].
func (h *Handler) channelSubtree(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/channels/"), "/")
	if rest == "" {
		h.listChannels(w, r)
		return
	}

	name, sub, _ := strings.Cut(rest, "/")
	ch, ok := h.byName[name]
	if !ok {
		jsonErr(w, http.StatusNotFound, "channel not found")
		return
	}

	switch sub {
	case "":
		jsonResp(w, http.StatusOK, toChannelResponse(ch))
	case "connections":
		jsonResp(w, http.StatusOK, toConnections(ch.Hub))
	default:
		jsonErr(w, http.StatusNotFound, "not found")
	}
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

func toChannelResponse(ch Channel) ChannelResponse {
	s := ch.Hub.Metrics().Snapshot()
	resp := ChannelResponse{
		Name:               ch.Hub.Name(),
		Kind:               ch.Hub.Kind().String(),
		Path:               ch.Path,
		MaxMessageSize:     ch.Hub.MaxMessageSize(),
		ConnectionsActive:  s.ConnectionsActive,
		ConnectionsTotal:   s.ConnectionsTotal,
		MessagesReceived:   s.MessagesReceived,
		BytesReceived:      s.BytesReceived,
		Deliveries:         s.Deliveries,
		DeliveryFailures:   s.DeliveryFailures,
		DeliveryFailurePct: failurePct(s.Deliveries, s.DeliveryFailures),
		RejectedFrames:     s.RejectedFrames,
	}
	resp.Diagnostics = computeDiagnostics(resp)
	return resp
}

func toConnections(hub *relay.Hub) []ConnectionResponse {
	entries := hub.Connections()
	out := make([]ConnectionResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, ConnectionResponse{
			ID:          e.ID,
			RemoteAddr:  e.Conn.RemoteAddr(),
			ConnectedAt: e.RegisteredAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}

// failurePct returns failed / (delivered + failed) * 100, or 0 with no sends.
func failurePct(delivered, failed uint64) float64 {
	total := delivered + failed
	if total == 0 {
		return 0
	}
	return float64(failed) / float64(total) * 100
}
