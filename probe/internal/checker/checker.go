package checker

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

const (
	backoffInitial    = 1 * time.Second
	backoffMax        = 60 * time.Second
	backoffMultiplier = 2.0
)

// Checker caches the serving status of a set of health services.
type Checker struct {
	endpoint string
	services []string
	interval time.Duration
	timeout  time.Duration
	dialFn   dialFunc // injectable for tests

	mu     sync.RWMutex
	status map[string]healthpb.HealthCheckResponse_ServingStatus
}

// dialFunc is the function signature used to open a gRPC connection.
type dialFunc func(ctx context.Context, endpoint string) (*grpc.ClientConn, error)

// New creates a Checker for services on endpoint. Every service starts out
// UNKNOWN until the first successful Check.
func New(endpoint string, services []string, interval, timeout time.Duration) *Checker {
	c := &Checker{
		endpoint: endpoint,
		services: services,
		interval: interval,
		timeout:  timeout,
		dialFn:   defaultDial,
		status:   make(map[string]healthpb.HealthCheckResponse_ServingStatus, len(services)),
	}
	c.markAll(healthpb.HealthCheckResponse_UNKNOWN)
	return c
}

// Status returns the last observed status of service.
func (c *Checker) Status(service string) healthpb.HealthCheckResponse_ServingStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.status[service]
	if !ok {
		return healthpb.HealthCheckResponse_SERVICE_UNKNOWN
	}
	return s
}

// Serving reports whether every service was SERVING at the last check.
func (c *Checker) Serving() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.status {
		if s != healthpb.HealthCheckResponse_SERVING {
			return false
		}
	}
	return true
}

// Run polls until ctx is cancelled, reconnecting with backoff when the
// connection is lost.
func (c *Checker) Run(ctx context.Context) {
	bo := newBackoff()

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := c.dialFn(ctx, c.endpoint)
		if err != nil {
			wait := bo.next()
			slog.Error("checker: dial failed, will retry",
				"endpoint", c.endpoint, "err", err, "retry_in", wait)
			if !sleep(ctx, wait) {
				return
			}
			continue
		}

		err = c.poll(ctx, conn, bo)
		conn.Close()
		c.markAll(healthpb.HealthCheckResponse_UNKNOWN)

		if ctx.Err() != nil {
			return
		}

		wait := bo.next()
		slog.Warn("checker: connection lost, will reconnect",
			"endpoint", c.endpoint, "err", err, "retry_in", wait)
		if !sleep(ctx, wait) {
			return
		}
	}
}

// poll checks every service once per interval until a transport error or
// ctx cancellation. The backoff resets after the first successful round.
func (c *Checker) poll(ctx context.Context, conn *grpc.ClientConn, bo *backoff) error {
	client := healthpb.NewHealthClient(conn)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	connected := false
	for {
		if err := c.checkAll(ctx, client); err != nil {
			return err
		}
		if !connected {
			slog.Info("checker: connected", "endpoint", c.endpoint)
			bo.reset()
			connected = true
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (c *Checker) checkAll(ctx context.Context, client healthpb.HealthClient) error {
	for _, svc := range c.services {
		cctx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := client.Check(cctx, &healthpb.HealthCheckRequest{Service: svc})
		cancel()

		switch {
		case err == nil:
			c.set(svc, resp.GetStatus())
		case status.Code(err) == codes.NotFound:
			c.set(svc, healthpb.HealthCheckResponse_SERVICE_UNKNOWN)
		default:
			return fmt.Errorf("check %q: %w", svc, err)
		}
	}
	return nil
}

func (c *Checker) set(service string, s healthpb.HealthCheckResponse_ServingStatus) {
	c.mu.Lock()
	prev := c.status[service]
	c.status[service] = s
	c.mu.Unlock()

	if prev != s {
		slog.Info("checker: status changed", "service", service, "from", prev.String(), "to", s.String())
	}
}

func (c *Checker) markAll(s healthpb.HealthCheckResponse_ServingStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, svc := range c.services {
		c.status[svc] = s
	}
}

// defaultDial opens a plaintext gRPC connection to endpoint.
func defaultDial(ctx context.Context, endpoint string) (*grpc.ClientConn, error) {
	return grpc.DialContext(ctx, endpoint, //nolint:staticcheck // deprecated in 1.63, kept for 1.62 compat
		grpc.WithTransportCredentials(insecure.NewCredentials()))
}

// sleep waits for d or ctx, reporting false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// backoff implements truncated exponential backoff with jitter.
type backoff struct {
	current time.Duration
}

func newBackoff() *backoff {
	return &backoff{current: backoffInitial}
}

// next returns the current backoff duration and advances the internal state.
func (b *backoff) next() time.Duration {
	d := b.current
	// Apply ±25 % jitter.
	jitter := time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}

	b.current = time.Duration(float64(b.current) * backoffMultiplier)
	if b.current > backoffMax {
		b.current = backoffMax
	}
	return d
}

func (b *backoff) reset() {
	b.current = backoffInitial
}
