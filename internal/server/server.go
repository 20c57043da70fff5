// Package server runs the orders gRPC service.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"gitlab.ozon.dev/qwestard/orders/internal/config"
	"gitlab.ozon.dev/qwestard/orders/internal/contract"
	"gitlab.ozon.dev/qwestard/orders/internal/metrics"
	"gitlab.ozon.dev/qwestard/orders/internal/middleware"
	"gitlab.ozon.dev/qwestard/orders/internal/registry"
)

const leaseTTL = 10

type Server struct {
	cfg      *config.Config
	logger   *zap.Logger
	grpc     *grpc.Server
	health   *health.Server
	registry registry.Registry
	metrics  *metrics.Metrics
	auditor  middleware.Auditor

	mu         sync.Mutex
	lis        net.Listener
	registered string
	stopping   bool
}

type Option func(*Server)

func WithRegistry(r registry.Registry) Option {
	return func(s *Server) { s.registry = r }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

func WithAudit(a middleware.Auditor) Option {
	return func(s *Server) { s.auditor = a }
}

func NewServer(cfg *config.Config, svc contract.OrdersServer, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{cfg: cfg, logger: logger, health: health.NewServer()}
	for _, opt := range opts {
		opt(s)
	}

	var (
		unary  []grpc.UnaryServerInterceptor
		stream []grpc.StreamServerInterceptor
	)
	chain := func(u grpc.UnaryServerInterceptor, st grpc.StreamServerInterceptor) {
		unary = append(unary, u)
		stream = append(stream, st)
	}
	chain(middleware.Recovery(logger))
	chain(middleware.Metrics(s.metrics))
	chain(middleware.Logging(logger))
	if s.auditor != nil {
		chain(middleware.Audit(s.auditor))
	}
	if cfg.RateLimit > 0 {
		chain(middleware.RateLimit(cfg.RateLimit, cfg.RateBurst))
	}

	grpcOpts := []grpc.ServerOption{
		grpc.ForceServerCodec(contract.Codec{}),
		grpc.ChainUnaryInterceptor(unary...),
		grpc.ChainStreamInterceptor(stream...),
		grpc.StatsHandler(middleware.ConnLogger{Logger: logger}),
	}
	if cfg.Workers > 0 {
		grpcOpts = append(grpcOpts, grpc.NumStreamWorkers(cfg.Workers))
	}
	if cfg.MaxStreams > 0 {
		grpcOpts = append(grpcOpts, grpc.MaxConcurrentStreams(cfg.MaxStreams))
	}

	s.grpc = grpc.NewServer(grpcOpts...)
	contract.RegisterOrdersServer(s.grpc, svc)
	healthpb.RegisterHealthServer(s.grpc, s.health)
	reflection.Register(s.grpc)
	return s
}

// Listen binds cfg.Addr(). A port of "0" picks a free one; see Addr.
func (s *Server) Listen() error {
	lis, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr(), err)
	}
	s.mu.Lock()
	s.lis = lis
	s.mu.Unlock()
	return nil
}

func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis == nil {
		return s.cfg.Addr()
	}
	return s.lis.Addr().String()
}

// Serve blocks until the server stops. It listens first if Listen was not
// called.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	lis := s.lis
	s.mu.Unlock()
	if lis == nil {
		if err := s.Listen(); err != nil {
			return err
		}
		lis = s.lis
	}

	if s.registry != nil {
		addr := s.Addr()
		if err := s.registry.Register(ctx, registry.OrdersService, registry.ServiceInstance{Addr: addr}, leaseTTL); err != nil {
			s.closeListener()
			return fmt.Errorf("register: %w", err)
		}
		s.mu.Lock()
		// Shutdown may have run while Register was in flight and found
		// nothing to deregister.
		stopped := s.stopping || ctx.Err() != nil
		if !stopped {
			s.registered = addr
		}
		s.mu.Unlock()
		if stopped {
			s.deregister(addr, s.cfg.ShutdownTimeout)
			s.closeListener()
			return nil
		}
	}

	s.health.SetServingStatus(contract.ServiceName, healthpb.HealthCheckResponse_SERVING)
	s.logger.Info("server listening", zap.String("addr", lis.Addr().String()))
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Run serves until ctx is done, then shuts down within the configured
// timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.Shutdown(s.cfg.ShutdownTimeout)
		return <-errCh
	}
}

// Shutdown deregisters the instance, lets in-flight calls finish for up to
// timeout and then closes whatever is left.
func (s *Server) Shutdown(timeout time.Duration) {
	s.health.Shutdown()

	s.mu.Lock()
	addr := s.registered
	s.registered = ""
	s.stopping = true
	s.mu.Unlock()
	if addr != "" {
		s.deregister(addr, timeout)
	}

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("server stopped")
	case <-time.After(timeout):
		s.logger.Warn("graceful stop timed out, forcing", zap.Duration("timeout", timeout))
		s.grpc.Stop()
		<-done
	}
}

func (s *Server) deregister(addr string, timeout time.Duration) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.registry.Deregister(ctx, registry.OrdersService, addr); err != nil {
		s.logger.Warn("deregister", zap.Error(err), zap.String("addr", addr))
	}
}

// closeListener releases a listener that grpc.Serve never took over.
func (s *Server) closeListener() {
	s.mu.Lock()
	lis := s.lis
	s.lis = nil
	s.mu.Unlock()
	if lis != nil {
		_ = lis.Close()
	}
}
