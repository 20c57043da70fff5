package client

import (
	"context"
	"errors"
	"net"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"gitlab.ozon.dev/qwestard/orders/internal/config"
	"gitlab.ozon.dev/qwestard/orders/internal/contract"
	"gitlab.ozon.dev/qwestard/orders/internal/models"
	"gitlab.ozon.dev/qwestard/orders/internal/registry"
	"gitlab.ozon.dev/qwestard/orders/internal/service"
)

// blockingServer never answers until the caller gives up.
type blockingServer struct{}

func (blockingServer) RegisterOrder(ctx context.Context, _ *models.StartRequest) (*models.StartResponse, error) {
	<-ctx.Done()
	return nil, status.FromContextError(ctx.Err()).Err()
}

func (blockingServer) UpdateOrder(stream contract.UpdateOrderServerStream) error {
	return status.Error(codes.Unavailable, "updates disabled")
}

func startBufServer(t *testing.T, svc contract.OrdersServer) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.ForceServerCodec(contract.Codec{}))
	contract.RegisterOrdersServer(srv, svc)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	cfg := &config.Config{Host: "localhost", Port: "50051", DialTimeout: 2 * time.Second}
	c, err := Dial(context.Background(), cfg, WithDialOptions(
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestStartOrder(t *testing.T) {
	c := startBufServer(t, service.NewOrderService(zap.NewNop()))

	id, err := c.StartOrder(context.Background(), SampleStart())
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9a-f]{32}$`, id)
}

func TestStartOrderInvalidArgument(t *testing.T) {
	c := startBufServer(t, service.NewOrderService(zap.NewNop()))

	p := SampleStart()
	p.ClientID = ""
	_, err := c.StartOrder(context.Background(), p)

	var cerr *ClientError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, codes.InvalidArgument, cerr.Code)
	assert.Equal(t, "client_id is empty", cerr.Details)
	assert.Equal(t, "InvalidArgument: client_id is empty", err.Error())
}

func TestStartOrderTimeout(t *testing.T) {
	c := startBufServer(t, blockingServer{})

	p := SampleStart()
	p.Timeout = 200 * time.Millisecond
	start := time.Now()
	_, err := c.StartOrder(context.Background(), p)

	var cerr *ClientError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, codes.DeadlineExceeded, cerr.Code)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestUpdateOrder(t *testing.T) {
	c := startBufServer(t, service.NewOrderService(zap.NewNop()))

	updated, err := c.UpdateOrder(context.Background(), SampleEvents(5, SampleTime))
	require.NoError(t, err)
	assert.Len(t, updated, 5)
}

func TestUpdateOrderKeepsDecisionOrder(t *testing.T) {
	decider := func(_ context.Context, ev *models.UpdateEvent) bool {
		return ev.Address.Number%2 == 1
	}
	c := startBufServer(t, service.NewOrderService(zap.NewNop(), service.WithDecider(decider)))

	updated, err := c.UpdateOrder(context.Background(), SampleEvents(4, SampleTime))
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true, false}, updated)
}

func TestUpdateOrderEmptyStream(t *testing.T) {
	c := startBufServer(t, service.NewOrderService(zap.NewNop()))

	updated, err := c.UpdateOrder(context.Background(), SampleEvents(0, SampleTime))
	require.NoError(t, err)
	assert.Empty(t, updated)
}

func TestUpdateOrderServerError(t *testing.T) {
	c := startBufServer(t, blockingServer{})

	_, err := c.UpdateOrder(context.Background(), SampleEvents(5, SampleTime))
	var cerr *ClientError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, codes.Unavailable, cerr.Code)
	assert.Equal(t, "updates disabled", cerr.Details)
}

func TestDialFailsFast(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, port, _ := net.SplitHostPort(lis.Addr().String())
	require.NoError(t, lis.Close())

	cfg := &config.Config{Host: "127.0.0.1", Port: port, DialTimeout: 3 * time.Second}
	start := time.Now()
	_, err = Dial(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrConnect)
	assert.Less(t, time.Since(start), 3*time.Second)
}

type staticRegistry []registry.ServiceInstance

func (r staticRegistry) Register(context.Context, string, registry.ServiceInstance, int64) error {
	return nil
}

func (r staticRegistry) Deregister(context.Context, string, string) error { return nil }

func (r staticRegistry) Discover(context.Context, string) ([]registry.ServiceInstance, error) {
	return r, nil
}

func TestDialNoInstances(t *testing.T) {
	_, err := Dial(context.Background(), &config.Config{DialTimeout: time.Second}, WithRegistry(staticRegistry{}))
	assert.ErrorIs(t, err, ErrConnect)
}

func TestDialThroughRegistry(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := grpc.NewServer(grpc.ForceServerCodec(contract.Codec{}))
	contract.RegisterOrdersServer(srv, service.NewOrderService(zap.NewNop()))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	reg := staticRegistry{{Addr: lis.Addr().String()}}
	c, err := Dial(context.Background(), &config.Config{DialTimeout: 2 * time.Second}, WithRegistry(reg))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.StartOrder(context.Background(), SampleStart())
	require.NoError(t, err)
}

func TestClientErrorUnwrap(t *testing.T) {
	base := status.Error(codes.NotFound, "missing")
	err := newClientError(base)
	assert.True(t, errors.Is(err, base))
	assert.Equal(t, "NotFound: missing", err.Error())
}

func TestSampleEvents(t *testing.T) {
	events := slices.Collect(SampleEvents(3, SampleTime))
	require.Len(t, events, 3)
	assert.Equal(t, []uint32{25, 26, 27}, []uint32{events[0].Number, events[1].Number, events[2].Number})
	assert.Equal(t, SampleTime.Add(30*time.Second), events[2].Time)

	var taken int
	for range SampleEvents(10, SampleTime) {
		taken++
		if taken == 2 {
			break
		}
	}
	assert.Equal(t, 2, taken)
}
