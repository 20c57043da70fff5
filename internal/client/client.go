// Package client is the driver for the orders service.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"gitlab.ozon.dev/qwestard/orders/internal/config"
	"gitlab.ozon.dev/qwestard/orders/internal/contract"
	"gitlab.ozon.dev/qwestard/orders/internal/models"
	"gitlab.ozon.dev/qwestard/orders/internal/registry"
)

const DefaultTimeout = 6 * time.Second

var ErrConnect = errors.New("connect to orders server")

// ClientError is the single error kind surfaced by StartOrder and
// UpdateOrder. Code and Details come from the gRPC status.
type ClientError struct {
	Code    codes.Code
	Details string
	err     error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Details)
}

func (e *ClientError) Unwrap() error {
	return e.err
}

func newClientError(err error) *ClientError {
	st := status.Convert(err)
	return &ClientError{Code: st.Code(), Details: st.Message(), err: err}
}

type Client struct {
	conn        *grpc.ClientConn
	orders      contract.OrdersClient
	logger      *zap.Logger
	callTimeout time.Duration
}

type options struct {
	logger   *zap.Logger
	registry registry.Registry
	refresh  time.Duration
	dialOpts []grpc.DialOption
}

type Option func(*options)

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegistry resolves servers through service discovery instead of
// cfg.Addr(). Calls are balanced round robin across the instances found.
func WithRegistry(r registry.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithRefreshInterval sets how often registry instances are re-read.
func WithRefreshInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.refresh = d
		}
	}
}

func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(o *options) { o.dialOpts = append(o.dialOpts, opts...) }
}

// Dial connects to the orders server and waits until the connection is
// ready, bounded by cfg.DialTimeout and ctx. Failures wrap ErrConnect.
func Dial(ctx context.Context, cfg *config.Config, opts ...Option) (*Client, error) {
	o := options{logger: zap.NewNop(), refresh: defaultRefreshInterval}
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}

	dialOpts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	target := "passthrough:///" + cfg.Addr()
	if o.registry != nil {
		instances, err := o.registry.Discover(ctx, registry.OrdersService)
		if err != nil {
			return nil, fmt.Errorf("%w: discover: %w", ErrConnect, err)
		}
		if len(instances) == 0 {
			return nil, fmt.Errorf("%w: no %s instances registered", ErrConnect, registry.OrdersService)
		}
		b := &registryBuilder{reg: o.registry, interval: o.refresh, logger: o.logger}
		dialOpts = append(dialOpts,
			grpc.WithResolvers(b),
			grpc.WithDefaultServiceConfig(`{"loadBalancingConfig":[{"round_robin":{}}]}`),
		)
		target = b.Scheme() + ":///" + registry.OrdersService
	}
	dialOpts = append(dialOpts, o.dialOpts...)

	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}
	if err := waitReady(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w %s: %w", ErrConnect, target, err)
	}
	o.logger.Info("connected", zap.String("target", target))

	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = DefaultTimeout
	}
	return &Client{
		conn:        conn,
		orders:      contract.NewOrdersClient(conn),
		logger:      o.logger,
		callTimeout: callTimeout,
	}, nil
}

func waitReady(ctx context.Context, conn *grpc.ClientConn) error {
	conn.Connect()
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.TransientFailure:
			return errors.New("connection failed")
		case connectivity.Shutdown:
			return errors.New("connection closed")
		}
		if !conn.WaitForStateChange(ctx, state) {
			return ctx.Err()
		}
	}
}

func (c *Client) Close() error {
	return c.conn.Close()
}

type StartParams struct {
	ClientID   string
	Type       string
	Street     string
	Number     uint32
	City       string
	PostalCode uint32
	Time       time.Time
	// Timeout bounds the call. Zero means the configured call timeout.
	Timeout time.Duration
}

// StartOrder registers an order and returns its id. Any type other than
// "APP" is sent as ONLINE.
func (c *Client) StartOrder(ctx context.Context, p StartParams) (string, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = c.callTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := &models.StartRequest{
		ClientID: p.ClientID,
		Type:     models.ParseOrderType(p.Type),
		Address: models.Address{
			Street:     p.Street,
			Number:     p.Number,
			City:       p.City,
			PostalCode: p.PostalCode,
		},
		Time: p.Time,
	}
	c.logger.Info("starting order", zap.String("client_id", req.ClientID), zap.Stringer("type", req.Type))

	resp, err := c.orders.RegisterOrder(ctx, req)
	if err != nil {
		return "", newClientError(err)
	}
	c.logger.Info("order started", zap.String("order_id", resp.OrderID))
	return resp.OrderID, nil
}

// UpdateOrder streams events in order and returns one decision per event.
// Events are pulled from the sequence only as they are sent.
func (c *Client) UpdateOrder(ctx context.Context, events iter.Seq[models.AddressEvent]) ([]bool, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.orders.UpdateOrder(ctx)
	if err != nil {
		return nil, newClientError(err)
	}

	sent := 0
	for ev := range events {
		if err := stream.Send(ev.UpdateEvent()); err != nil {
			// io.EOF means the server ended the stream; its status is
			// only visible through the receive side.
			if errors.Is(err, io.EOF) {
				_, err = stream.CloseAndRecv()
			}
			return nil, newClientError(err)
		}
		sent++
		c.logger.Debug("update sent", zap.String("client_id", ev.ClientID), zap.Uint32("number", ev.Number))
	}

	resp, err := stream.CloseAndRecv()
	if err != nil {
		return nil, newClientError(err)
	}
	c.logger.Info("update response", zap.Int("sent", sent), zap.Bools("updated", resp.Updated))
	return resp.Updated, nil
}
