package contract

import (
	"context"

	"google.golang.org/grpc"

	"gitlab.ozon.dev/qwestard/orders/internal/models"
)

// OrdersServer is the server API for the orders.Orders service.
type OrdersServer interface {
	// RegisterOrder accepts a new order and returns its generated id.
	RegisterOrder(context.Context, *models.StartRequest) (*models.StartResponse, error)
	// UpdateOrder consumes a client stream of updates and answers once,
	// after the client closes its side.
	UpdateOrder(UpdateOrderServerStream) error
}

type UpdateOrderServerStream interface {
	Recv() (*models.UpdateEvent, error)
	SendAndClose(*models.UpdateResponse) error
	grpc.ServerStream
}

type updateOrderServerStream struct {
	grpc.ServerStream
}

func (x *updateOrderServerStream) Recv() (*models.UpdateEvent, error) {
	m := new(models.UpdateEvent)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (x *updateOrderServerStream) SendAndClose(m *models.UpdateResponse) error {
	return x.ServerStream.SendMsg(m)
}

// RegisterOrdersServer attaches srv to s. The grpc.Server must be created
// with grpc.ForceServerCodec(Codec{}).
func RegisterOrdersServer(s grpc.ServiceRegistrar, srv OrdersServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func registerOrderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(models.StartRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrdersServer).RegisterOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: RegisterOrderMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrdersServer).RegisterOrder(ctx, req.(*models.StartRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func updateOrderHandler(srv any, stream grpc.ServerStream) error {
	return srv.(OrdersServer).UpdateOrder(&updateOrderServerStream{stream})
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrdersServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "RegisterOrder",
			Handler:    registerOrderHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "UpdateOrder",
			Handler:       updateOrderHandler,
			ClientStreams: true,
		},
	},
	Metadata: FileName,
}

// OrdersClient is the client API for the orders.Orders service.
type OrdersClient interface {
	RegisterOrder(ctx context.Context, in *models.StartRequest, opts ...grpc.CallOption) (*models.StartResponse, error)
	UpdateOrder(ctx context.Context, opts ...grpc.CallOption) (UpdateOrderClientStream, error)
}

type UpdateOrderClientStream interface {
	Send(*models.UpdateEvent) error
	CloseAndRecv() (*models.UpdateResponse, error)
	grpc.ClientStream
}

type ordersClient struct {
	cc grpc.ClientConnInterface
}

func NewOrdersClient(cc grpc.ClientConnInterface) OrdersClient {
	return &ordersClient{cc: cc}
}

func callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.ForceCodec(Codec{})}, opts...)
}

func (c *ordersClient) RegisterOrder(ctx context.Context, in *models.StartRequest, opts ...grpc.CallOption) (*models.StartResponse, error) {
	out := new(models.StartResponse)
	if err := c.cc.Invoke(ctx, RegisterOrderMethod, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ordersClient) UpdateOrder(ctx context.Context, opts ...grpc.CallOption) (UpdateOrderClientStream, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], UpdateOrderMethod, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return &updateOrderClientStream{stream}, nil
}

type updateOrderClientStream struct {
	grpc.ClientStream
}

func (x *updateOrderClientStream) Send(m *models.UpdateEvent) error {
	return x.ClientStream.SendMsg(m)
}

func (x *updateOrderClientStream) CloseAndRecv() (*models.UpdateResponse, error) {
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	m := new(models.UpdateResponse)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
