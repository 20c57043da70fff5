// Package registry advertises running orders servers so clients can find
// them without a fixed host:port.
package registry

import "context"

type ServiceInstance struct {
	Addr    string `json:"addr"`
	Version string `json:"version,omitempty"`
}

type Registry interface {
	Register(ctx context.Context, serviceName string, instance ServiceInstance, ttl int64) error
	Deregister(ctx context.Context, serviceName string, addr string) error
	Discover(ctx context.Context, serviceName string) ([]ServiceInstance, error)
}

// OrdersService is the name orders servers register under.
const OrdersService = "orders"
