package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/sockrelay/sockrelay/server/internal/api"
	"github.com/sockrelay/sockrelay/server/internal/config"
	"github.com/sockrelay/sockrelay/server/internal/health"
	"github.com/sockrelay/sockrelay/server/internal/metrics"
	"github.com/sockrelay/sockrelay/server/internal/relay"
	"github.com/sockrelay/sockrelay/server/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config file (built-in defaults when empty)")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("sockrelay-server starting", "config", *configPath)

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			slog.Error("failed to load config", "err", err)
			os.Exit(1)
		}
	}
	level.Set(cfg.Server.Level())

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"grpc_port", cfg.Server.GRPCPort,
		"text_path", cfg.Server.Channels.Text.Path,
		"binary_path", cfg.Server.Channels.Binary.Path,
		"text_max_message_size", cfg.Server.Channels.Text.MaxMessageSize,
		"binary_max_message_size", relay.MaxBinaryMessageSize,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, *configPath, level); err != nil {
		slog.Error("sockrelay-server stopped", "err", err)
		os.Exit(1)
	}
	slog.Info("sockrelay-server stopped")
}

func run(ctx context.Context, cfg *config.Config, configPath string, level *slog.LevelVar) error {
	textHub := relay.NewText(cfg.Server.Channels.Text.MaxMessageSize)
	binHub := relay.NewBinary()

	opts := ws.Options{
		SendBuffer:   cfg.Server.Transport.SendBuffer,
		WriteTimeout: cfg.Server.Transport.WriteTimeout,
		PongWait:     cfg.Server.Transport.PongWait,
	}
	textEP := ws.New(textHub, opts)
	binEP := ws.New(binHub, opts)

	// One HTTP listener: both channels, the admin API and /metrics.
	httpMux := http.NewServeMux()
	httpMux.Handle(cfg.Server.Channels.Text.Path, textEP)
	httpMux.Handle(cfg.Server.Channels.Binary.Path, binEP)
	httpMux.Handle("/api/", api.New(
		api.Channel{Hub: textHub, Path: cfg.Server.Channels.Text.Path},
		api.Channel{Hub: binHub, Path: cfg.Server.Channels.Binary.Path},
	))
	httpMux.Handle("/metrics", metrics.Handler(textHub.Metrics(), binHub.Metrics()))

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	hs := health.New(textHub.Name(), binHub.Name())
	grpcSrv := grpc.NewServer(
		grpc.UnaryInterceptor(health.UnaryLogger(slog.Default())),
		grpc.StreamInterceptor(health.StreamLogger(slog.Default())),
	)
	hs.Register(grpcSrv)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen grpc :%d: %w", cfg.Server.GRPCPort, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		slog.Info("gRPC health listening", "port", cfg.Server.GRPCPort)
		if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	if configPath != "" {
		g.Go(func() error {
			err := config.Watch(gctx, configPath, func(next *config.Config) {
				level.Set(next.Server.Level())
				slog.Info("log level applied", "level", next.Server.Level().String())
			})
			if err != nil {
				// Hot reload is optional; the relay keeps running without it.
				slog.Warn("config watch disabled", "path", configPath, "err", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("sockrelay-server shutting down")
		return shutdown(hs, []closer{textEP, binEP}, httpSrv, grpcSrv)
	})

	return g.Wait()
}

// closer is a websocket endpoint as seen by shutdown.
type closer interface {
	Close()
}

// shutdown stops the process in order: health goes NOT_SERVING so balancers
// drain, then websocket peers get a going-away close, then the listeners stop.
func shutdown(hs *health.Server, endpoints []closer, httpSrv *http.Server, grpcSrv *grpc.Server) error {
	hs.Shutdown()
	for _, ep := range endpoints {
		ep.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := httpSrv.Shutdown(ctx)
	grpcSrv.GracefulStop()
	return err
}
