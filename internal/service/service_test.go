package service

import (
	"context"
	"errors"
	"io"
	"regexp"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"gitlab.ozon.dev/qwestard/orders/internal/metrics"
	"gitlab.ozon.dev/qwestard/orders/internal/models"
	"gitlab.ozon.dev/qwestard/orders/internal/validate"
)

type fakeUpdateStream struct {
	grpc.ServerStream
	ctx    context.Context
	events []*models.UpdateEvent
	err    error
	resp   *models.UpdateResponse
}

func newFakeUpdateStream(events ...*models.UpdateEvent) *fakeUpdateStream {
	return &fakeUpdateStream{ctx: context.Background(), events: events}
}

func (f *fakeUpdateStream) Context() context.Context {
	return f.ctx
}

func (f *fakeUpdateStream) Recv() (*models.UpdateEvent, error) {
	if len(f.events) == 0 {
		if f.err != nil {
			return nil, f.err
		}
		return nil, io.EOF
	}
	ev := f.events[0]
	f.events = f.events[1:]
	return ev, nil
}

func (f *fakeUpdateStream) SendAndClose(resp *models.UpdateResponse) error {
	f.resp = resp
	return nil
}

func validStart() *models.StartRequest {
	return &models.StartRequest{
		ClientID: "123abc",
		Type:     models.OrderTypeApp,
		Address:  models.Address{Street: "Av. Liberdade", Number: 25, City: "Lisboa", PostalCode: 1600},
	}
}

func event(number uint32) *models.UpdateEvent {
	return &models.UpdateEvent{
		ClientID: "123abc",
		Address:  models.Address{Street: "Av. Liberdade", Number: number, City: "Lisboa", PostalCode: 1600},
	}
}

func TestRegisterOrderReturnsUniqueIDs(t *testing.T) {
	svc := NewOrderService(zap.NewNop())
	hexID := regexp.MustCompile(`^[0-9a-f]{32}$`)

	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		resp, err := svc.RegisterOrder(context.Background(), validStart())
		require.NoError(t, err)
		require.Regexp(t, hexID, resp.OrderID)
		_, dup := seen[resp.OrderID]
		require.False(t, dup, "duplicate order id %s", resp.OrderID)
		seen[resp.OrderID] = struct{}{}
	}
}

func TestRegisterOrderUsesIDGenerator(t *testing.T) {
	svc := NewOrderService(zap.NewNop(), WithIDGenerator(func() string { return "fixed" }))

	resp, err := svc.RegisterOrder(context.Background(), validStart())
	require.NoError(t, err)
	assert.Equal(t, "fixed", resp.OrderID)
}

func TestRegisterOrderEmptyClientID(t *testing.T) {
	called := false
	svc := NewOrderService(zap.NewNop(), WithIDGenerator(func() string {
		called = true
		return "never"
	}))
	req := validStart()
	req.ClientID = ""

	resp, err := svc.RegisterOrder(context.Background(), req)
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.False(t, called, "no id may be generated for an invalid request")

	st := status.Convert(err)
	assert.Equal(t, codes.InvalidArgument, st.Code())
	assert.Equal(t, "client_id is empty", st.Message())

	var verr *validate.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "client_id", verr.Field)

	require.Len(t, st.Details(), 1)
	br, ok := st.Details()[0].(*errdetails.BadRequest)
	require.True(t, ok)
	assert.Equal(t, "client_id", br.FieldViolations[0].Field)
	assert.Equal(t, "empty", br.FieldViolations[0].Description)
}

func TestRegisterOrderValidationStepIsTransportFree(t *testing.T) {
	svc := NewOrderService(zap.NewNop())

	_, err := svc.registerOrder(&models.StartRequest{})
	var verr *validate.ValidationError
	require.True(t, errors.As(err, &verr))
	_, isStatus := status.FromError(err)
	assert.False(t, isStatus)
}

func TestUpdateOrderPreservesOrder(t *testing.T) {
	odd := func(_ context.Context, ev *models.UpdateEvent) bool { return ev.Address.Number%2 == 1 }
	m := metrics.New()
	svc := NewOrderService(zap.NewNop(), WithDecider(odd), WithMetrics(m))
	stream := newFakeUpdateStream(event(25), event(26), event(27), event(28), event(29))

	require.NoError(t, svc.UpdateOrder(stream))
	require.NotNil(t, stream.resp)
	assert.Equal(t, []bool{true, false, true, false, true}, stream.resp.Updated)

	series, err := testutil.GatherAndCount(m.Registry(), "orders_update_events_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series)
}

func TestUpdateOrderEmptyStream(t *testing.T) {
	svc := NewOrderService(zap.NewNop())
	stream := newFakeUpdateStream()

	require.NoError(t, svc.UpdateOrder(stream))
	require.NotNil(t, stream.resp)
	assert.Empty(t, stream.resp.Updated)
}

func TestUpdateOrderRandomDecisionKeepsLength(t *testing.T) {
	svc := NewOrderService(zap.NewNop())
	events := make([]*models.UpdateEvent, 0, 50)
	for i := 0; i < 50; i++ {
		events = append(events, event(uint32(i)))
	}
	stream := newFakeUpdateStream(events...)

	require.NoError(t, svc.UpdateOrder(stream))
	assert.Len(t, stream.resp.Updated, 50)
}

func TestUpdateOrderRecvErrorProducesNoResponse(t *testing.T) {
	svc := NewOrderService(zap.NewNop(), WithDecider(AlwaysDecider(true)))
	stream := newFakeUpdateStream(event(1), event(2))
	stream.err = status.Error(codes.Unavailable, "stream reset")

	err := svc.UpdateOrder(stream)
	assert.Equal(t, codes.Unavailable, status.Code(err))
	assert.Nil(t, stream.resp)
}

func TestUpdateOrderStopsWhenCallerCancels(t *testing.T) {
	svc := NewOrderService(zap.NewNop(), WithDecider(AlwaysDecider(true)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stream := newFakeUpdateStream(event(1))
	stream.ctx = ctx

	err := svc.UpdateOrder(stream)
	assert.Equal(t, codes.Canceled, status.Code(err))
	assert.Nil(t, stream.resp)
}

func TestValidatingDecider(t *testing.T) {
	d := ValidatingDecider(AlwaysDecider(true))

	assert.True(t, d(context.Background(), event(1)))
	assert.False(t, d(context.Background(), &models.UpdateEvent{}))
}
