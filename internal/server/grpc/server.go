// Package grpcserver exposes the daemon health over gRPC. Every loaded entry
// has its own health service name, "bonusdrive/<entry_id>".
package grpcserver

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServicePrefix prefixes per-entry health service names.
const ServicePrefix = "bonusdrive/"

const stopTimeout = 5 * time.Second

// Server owns the gRPC server and its health service.
type Server struct {
	gs     *grpc.Server
	health *health.Server
	log    *zap.Logger
}

// Options configures a Server.
type Options struct {
	Verifier   TokenVerifier // nil disables auth
	Reflection bool
	Extra      []grpc.ServerOption
}

// New builds the gRPC server with recover, logging and auth interceptors.
func New(log *zap.Logger, opts Options) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	unary := []grpc.UnaryServerInterceptor{RecoverUnary(log), LoggingUnary(log)}
	stream := []grpc.StreamServerInterceptor{RecoverStream(log), LoggingStream(log)}
	if opts.Verifier != nil {
		unary = append(unary, AuthUnary(opts.Verifier, HealthPrefix))
		stream = append(stream, AuthStream(opts.Verifier, HealthPrefix))
	}
	so := append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(unary...),
		grpc.ChainStreamInterceptor(stream...),
	}, opts.Extra...)

	gs := grpc.NewServer(so...)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	if opts.Reflection {
		reflection.Register(gs)
	}
	return &Server{gs: gs, health: hs, log: log}
}

// ServiceName is the health service name of an entry.
func ServiceName(entryID string) string { return ServicePrefix + entryID }

// SetEntryStatus reports whether an entry's last refresh succeeded.
func (s *Server) SetEntryStatus(entryID string, serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceName(entryID), st)
}

// ClearEntry forgets an unloaded entry.
func (s *Server) ClearEntry(entryID string) {
	s.health.SetServingStatus(ServiceName(entryID), healthpb.HealthCheckResponse_SERVICE_UNKNOWN)
}

// Serve blocks serving lis.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("grpc listening", zap.String("addr", lis.Addr().String()))
	return s.gs.Serve(lis)
}

// Stop drains in-flight calls and stops the server, forcing after a timeout
// or when ctx ends.
func (s *Server) Stop(ctx context.Context) {
	s.health.Shutdown()
	done := make(chan struct{})
	go func() {
		s.gs.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.gs.Stop()
	case <-time.After(stopTimeout):
		s.gs.Stop()
	}
}
