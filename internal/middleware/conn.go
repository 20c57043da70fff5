package middleware

import (
	"context"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc/stats"
)

type connAddrKey struct{}

// ConnLogger is a stats.Handler that logs transport connections opening
// and closing.
type ConnLogger struct {
	Logger *zap.Logger
}

var _ stats.Handler = ConnLogger{}

func (h ConnLogger) TagConn(ctx context.Context, info *stats.ConnTagInfo) context.Context {
	return context.WithValue(ctx, connAddrKey{}, info.RemoteAddr)
}

func (h ConnLogger) HandleConn(ctx context.Context, s stats.ConnStats) {
	addr, _ := ctx.Value(connAddrKey{}).(net.Addr)
	remote := ""
	if addr != nil {
		remote = addr.String()
	}
	switch s.(type) {
	case *stats.ConnBegin:
		h.Logger.Info("connection established", zap.String("remote", remote))
	case *stats.ConnEnd:
		h.Logger.Info("connection closed", zap.String("remote", remote))
	}
}

func (h ConnLogger) TagRPC(ctx context.Context, _ *stats.RPCTagInfo) context.Context {
	return ctx
}

func (h ConnLogger) HandleRPC(context.Context, stats.RPCStats) {}
