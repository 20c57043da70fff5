package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"gitlab.ozon.dev/qwestard/orders/internal/audit"
	"gitlab.ozon.dev/qwestard/orders/internal/models"
)

type Auditor interface {
	Log(record audit.Record)
}

// Audit queues one record per finished call. Queueing never blocks and
// never changes the call's outcome.
func Audit(a Auditor) (grpc.UnaryServerInterceptor, grpc.StreamServerInterceptor) {
	unary := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)

		rec := audit.Record{
			Timestamp: time.Now().UTC(),
			Method:    info.FullMethod,
			Code:      status.Code(err).String(),
		}
		if body, mErr := json.Marshal(req); mErr == nil {
			rec.Request = string(body)
		}
		if r, ok := req.(*models.StartRequest); ok {
			rec.ClientID = r.ClientID
		}
		if r, ok := resp.(*models.StartResponse); ok && r != nil {
			rec.OrderID = r.OrderID
			rec.Message = "order registered"
		}
		if err != nil {
			rec.Message = status.Convert(err).Message()
		}
		a.Log(rec)
		return resp, err
	}

	stream := func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		cs := &countingStream{ServerStream: ss}
		err := handler(srv, cs)

		rec := audit.Record{
			Timestamp: time.Now().UTC(),
			Method:    info.FullMethod,
			ClientID:  cs.clientID,
			Code:      status.Code(err).String(),
			Message:   fmt.Sprintf("%d updates received", cs.received),
		}
		if err != nil {
			rec.Message = fmt.Sprintf("%d updates received: %s", cs.received, status.Convert(err).Message())
		}
		a.Log(rec)
		return err
	}
	return unary, stream
}

// countingStream counts inbound messages and remembers the first client id.
type countingStream struct {
	grpc.ServerStream
	received int
	clientID string
}

func (s *countingStream) RecvMsg(m any) error {
	if err := s.ServerStream.RecvMsg(m); err != nil {
		return err
	}
	s.received++
	if ev, ok := m.(*models.UpdateEvent); ok && s.clientID == "" {
		s.clientID = ev.ClientID
	}
	return nil
}
