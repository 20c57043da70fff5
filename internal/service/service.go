package service

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"math/rand/v2"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"gitlab.ozon.dev/qwestard/orders/internal/contract"
	"gitlab.ozon.dev/qwestard/orders/internal/metrics"
	"gitlab.ozon.dev/qwestard/orders/internal/models"
	"gitlab.ozon.dev/qwestard/orders/internal/validate"
)

// Decider reports whether a single streamed update is accepted.
type Decider func(ctx context.Context, ev *models.UpdateEvent) bool

// RandomDecider accepts or rejects with equal probability. No business rule
// exists for updates yet.
func RandomDecider(context.Context, *models.UpdateEvent) bool {
	return rand.IntN(2) == 1
}

func AlwaysDecider(accept bool) Decider {
	return func(context.Context, *models.UpdateEvent) bool { return accept }
}

// ValidatingDecider rejects updates with an empty client_id and defers to
// next for the rest.
func ValidatingDecider(next Decider) Decider {
	return func(ctx context.Context, ev *models.UpdateEvent) bool {
		if validate.UpdateEvent(ev) != nil {
			return false
		}
		return next(ctx, ev)
	}
}

type IDGenerator func() string

// NewOrderID returns a random 128-bit id as 32 lowercase hex characters.
func NewOrderID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

type OrderService struct {
	logger  *zap.Logger
	decide  Decider
	newID   IDGenerator
	metrics *metrics.Metrics
}

var _ contract.OrdersServer = (*OrderService)(nil)

type Option func(*OrderService)

func WithDecider(d Decider) Option {
	return func(s *OrderService) { s.decide = d }
}

func WithIDGenerator(g IDGenerator) Option {
	return func(s *OrderService) { s.newID = g }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *OrderService) { s.metrics = m }
}

func NewOrderService(logger *zap.Logger, opts ...Option) *OrderService {
	s := &OrderService{
		logger: logger,
		decide: ValidatingDecider(RandomDecider),
		newID:  NewOrderID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *OrderService) RegisterOrder(ctx context.Context, req *models.StartRequest) (*models.StartResponse, error) {
	s.logger.Info("request from client",
		zap.String("client_id", req.ClientID),
		zap.Stringer("type", req.Type),
		zap.Any("address", req.Address),
		zap.Time("time", req.Time),
	)

	resp, err := s.registerOrder(req)
	if err != nil {
		var verr *validate.ValidationError
		if errors.As(err, &verr) {
			s.logger.Error("bad request", zap.String("field", verr.Field), zap.String("reason", verr.Reason))
			return nil, invalidArgument(verr)
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	return resp, nil
}

// registerOrder validates req and allocates an order id. It knows nothing
// about the transport; RegisterOrder turns its failures into statuses.
func (s *OrderService) registerOrder(req *models.StartRequest) (*models.StartResponse, error) {
	if err := validate.StartRequest(req); err != nil {
		return nil, err
	}
	return &models.StartResponse{OrderID: s.newID()}, nil
}

func (s *OrderService) UpdateOrder(stream contract.UpdateOrderServerStream) error {
	ctx := stream.Context()
	updated := make([]bool, 0)
	accepted := 0

	for {
		ev, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.logger.Warn("update stream aborted", zap.Int("received", len(updated)), zap.Error(err))
			return err
		}
		if err := ctx.Err(); err != nil {
			return status.FromContextError(err).Err()
		}

		s.logger.Info("update",
			zap.Int("index", len(updated)),
			zap.String("client_id", ev.ClientID),
			zap.Any("address", ev.Address),
			zap.Time("time", ev.Time),
		)
		ok := s.decide(ctx, ev)
		s.metrics.ObserveDecision(ok)
		if ok {
			accepted++
		}
		updated = append(updated, ok)
	}

	s.logger.Info("update stream finished", zap.Int("events", len(updated)), zap.Int("accepted", accepted))
	return stream.SendAndClose(&models.UpdateResponse{Updated: updated})
}
