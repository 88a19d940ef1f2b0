package transport

import (
	"context"
	"net"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Registrar wires a component's gRPC service implementation onto server.
type Registrar func(server *grpc.Server)

// Listen opens the listener described by cfg: a Unix domain socket when
// cfg.Kind is uds, otherwise a TCP socket.
func Listen(cfg Config) (net.Listener, error) {
	network := "tcp"
	if cfg.Kind == TransportUDS {
		network = "unix"
	}
	return net.Listen(network, cfg.Address)
}

// NewServer builds a grpc.Server with registrar's service, the standard
// health service (reporting SERVING immediately — the runtime performs no
// I/O during construction that could fail a readiness check), and server
// reflection registered.
func NewServer(registrar Registrar) *grpc.Server {
	server := grpc.NewServer()
	registrar(server)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	reflection.Register(server)
	return server
}

// RunServer composes NewServer and Run: it builds a grpc.Server around
// registrar and blocks serving it on listener until SIGINT/SIGTERM. Most
// callers want this; NewServer and Run remain exported separately for the
// rare caller that needs the *grpc.Server handle before it starts serving
// (e.g. to register additional services dynamically).
func RunServer(logger *zap.Logger, cfg Config, listener net.Listener, registrar Registrar) error {
	return Run(logger, cfg, listener, NewServer(registrar))
}

// Run blocks serving on listener until SIGINT/SIGTERM, then drains
// in-flight requests via GracefulStop before returning.
func Run(logger *zap.Logger, cfg Config, listener net.Listener, server *grpc.Server) error {
	logger.Info("server started", zap.String("address", cfg.Address), zap.String("transport", string(cfg.Kind)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		server.GracefulStop()
	}()

	return server.Serve(listener)
}
