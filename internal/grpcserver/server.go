// Package grpcserver exposes the search service's gRPC surface: the
// standard health service, with a per-service status that follows the
// full-text index availability, and the JobSearch service for keyword
// search and recommendations.
//
// It handles only transport concerns: status updates, error mapping and
// panic recovery.
package grpcserver

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"jobmate/search-service/internal/apperr"
	"jobmate/search-service/internal/search"
)

// IndexService is the health service name that reports index availability.
const IndexService = "jobmate.search.Index"

// StateNotifier is implemented by search.Breaker.
type StateNotifier interface {
	State() search.State
	OnChange(fn func(search.State))
}

// Server wraps a grpc.Server with the health and JobSearch services
// registered.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	log    zerolog.Logger
}

// NewServer builds the gRPC server and subscribes the index health status
// to availability changes. api may be nil for a health-only server.
func NewServer(index StateNotifier, api JobSearchServer, log zerolog.Logger) *Server {
	s := &Server{health: health.NewServer(), log: log}
	s.grpc = grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.logUnary, s.recoverUnary),
		grpc.ChainStreamInterceptor(s.recoverStream),
	)
	healthpb.RegisterHealthServer(s.grpc, s.health)
	if api != nil {
		RegisterJobSearchServer(s.grpc, api)
	}
	reflection.Register(s.grpc)

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.setIndexStatus(index.State())
	index.OnChange(s.setIndexStatus)
	return s
}

// GRPC returns the underlying server for Serve/Stop.
func (s *Server) GRPC() *grpc.Server { return s.grpc }

// Shutdown flips every service to NOT_SERVING and stops gracefully.
func (s *Server) Shutdown() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

func (s *Server) setIndexStatus(st search.State) {
	serving := healthpb.HealthCheckResponse_SERVING
	if st != search.StateAvailable {
		serving = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(IndexService, serving)
	s.log.Info().Str("service", IndexService).Str("status", serving.String()).Msg("health status updated")
}

// ─── Interceptors ────────────────────────────────────────────────────────────

func (s *Server) recoverUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("method", info.FullMethod).Bytes("stack", debug.Stack()).Msg("grpc handler panic")
			err = status.Error(codes.Internal, "internal server error")
		}
	}()
	resp, err = handler(ctx, req)
	return resp, ToGRPCError(err)
}

func (s *Server) recoverStream(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("method", info.FullMethod).Msg("grpc stream panic")
			err = status.Error(codes.Internal, "internal server error")
		}
	}()
	return ToGRPCError(handler(srv, ss))
}

func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.log.Debug().Str("method", info.FullMethod).Dur("duration", time.Since(start)).
		Str("code", status.Code(err).String()).Msg("grpc request")
	return resp, err
}

// ToGRPCError maps service errors to gRPC status errors. Errors that
// already carry a status pass through unchanged.
func ToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return status.Error(codes.Canceled, err.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	e := apperr.As(err)
	switch e.Kind {
	case apperr.KindNotFound:
		return status.Error(codes.NotFound, e.Message)
	case apperr.KindForbidden:
		return status.Error(codes.PermissionDenied, e.Message)
	case apperr.KindInvalid:
		return status.Error(codes.InvalidArgument, e.Message)
	case apperr.KindUnavailable:
		return status.Error(codes.Unavailable, e.Message)
	case apperr.KindConflict:
		return status.Error(codes.Aborted, e.Message)
	default:
		return status.Error(codes.Internal, "internal server error")
	}
}
