package health

import (
	"log/slog"
	"sync"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServicePrefix prefixes every per-channel service name.
const ServicePrefix = "sockrelay."

// ServiceName returns the health service name for a channel.
func ServiceName(channel string) string {
	return ServicePrefix + channel
}

// Server tracks serving status for the relay and its channels.
type Server struct {
	hs       *grpchealth.Server
	services []string

	mu       sync.Mutex
	draining bool
}

// New returns a Server reporting SERVING for "" and for each channel.
func New(channels ...string) *Server {
	s := &Server{hs: grpchealth.NewServer()}
	for _, ch := range channels {
		name := ServiceName(ch)
		s.services = append(s.services, name)
		s.hs.SetServingStatus(name, healthpb.HealthCheckResponse_SERVING)
	}
	// grpchealth.NewServer already marks "" SERVING.
	return s
}

// Register attaches the health service to g.
func (s *Server) Register(g *grpc.Server) {
	healthpb.RegisterHealthServer(g, s.hs)
}

// Services returns the per-channel service names in registration order.
func (s *Server) Services() []string {
	out := make([]string, len(s.services))
	copy(out, s.services)
	return out
}

// Draining reports whether Shutdown has been called.
func (s *Server) Draining() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draining
}

// Shutdown flips every service to NOT_SERVING. Later status changes are
// ignored. Safe to call more than once.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draining {
		return
	}
	s.draining = true
	s.hs.Shutdown()
	slog.Info("health: not serving", "services", len(s.services)+1)
}
