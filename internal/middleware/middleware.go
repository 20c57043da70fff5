// Package middleware holds the gRPC interceptors wrapped around the orders
// service. Each constructor returns a unary and a stream interceptor that
// behave the same way.
package middleware

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"gitlab.ozon.dev/qwestard/orders/internal/metrics"
)

func peerAddr(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return ""
}

func logCall(ctx context.Context, logger *zap.Logger, method string, start time.Time, err error) {
	fields := []zap.Field{
		zap.String("method", method),
		zap.String("peer", peerAddr(ctx)),
		zap.Duration("duration", time.Since(start)),
		zap.Stringer("code", status.Code(err)),
	}
	if err != nil {
		logger.Warn("rpc failed", append(fields, zap.Error(err))...)
		return
	}
	logger.Info("rpc", fields...)
}

func Logging(logger *zap.Logger) (grpc.UnaryServerInterceptor, grpc.StreamServerInterceptor) {
	unary := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logCall(ctx, logger, info.FullMethod, start, err)
		return resp, err
	}
	stream := func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		logCall(ss.Context(), logger, info.FullMethod, start, err)
		return err
	}
	return unary, stream
}

func Metrics(m *metrics.Metrics) (grpc.UnaryServerInterceptor, grpc.StreamServerInterceptor) {
	unary := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		m.ObserveRequest(info.FullMethod, status.Code(err).String(), time.Since(start))
		return resp, err
	}
	stream := func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		m.ObserveRequest(info.FullMethod, status.Code(err).String(), time.Since(start))
		return err
	}
	return unary, stream
}

// RateLimit admits calls through a token bucket of r calls per second with
// the given burst. Rejected calls fail with ResourceExhausted.
func RateLimit(r float64, burst int) (grpc.UnaryServerInterceptor, grpc.StreamServerInterceptor) {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	unary := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !limiter.Allow() {
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}
		return handler(ctx, req)
	}
	stream := func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if !limiter.Allow() {
			return status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}
		return handler(srv, ss)
	}
	return unary, stream
}

// Recovery turns a handler panic into an Internal status.
func Recovery(logger *zap.Logger) (grpc.UnaryServerInterceptor, grpc.StreamServerInterceptor) {
	recovered := func(method string, p any) error {
		logger.Error("panic in handler", zap.String("method", method), zap.Any("panic", p), zap.Stack("stack"))
		return status.Error(codes.Internal, fmt.Sprintf("panic: %v", p))
	}
	unary := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if p := recover(); p != nil {
				resp, err = nil, recovered(info.FullMethod, p)
			}
		}()
		return handler(ctx, req)
	}
	stream := func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = recovered(info.FullMethod, p)
			}
		}()
		return handler(srv, ss)
	}
	return unary, stream
}
