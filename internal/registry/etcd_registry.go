package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

const keyPrefix = "/orders-rpc/"

// EtcdRegistry keeps one key per instance under
// /orders-rpc/{service}/{addr}, bound to a TTL lease that is kept alive
// while the process runs.
type EtcdRegistry struct {
	client *clientv3.Client
	logger *zap.Logger
}

func NewEtcdRegistry(endpoints []string, logger *zap.Logger) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
		Logger:      logger.Named("etcd"),
	})
	if err != nil {
		return nil, fmt.Errorf("etcd client: %w", err)
	}
	return &EtcdRegistry{client: c, logger: logger}, nil
}

func servicePrefix(serviceName string) string {
	return keyPrefix + serviceName + "/"
}

func instanceKey(serviceName, addr string) string {
	return servicePrefix(serviceName) + addr
}

func (r *EtcdRegistry) Register(ctx context.Context, serviceName string, instance ServiceInstance, ttl int64) error {
	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return fmt.Errorf("grant lease: %w", err)
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	_, err = r.client.Put(ctx, instanceKey(serviceName, instance.Addr), string(val), clientv3.WithLease(lease.ID))
	if err != nil {
		return fmt.Errorf("put instance: %w", err)
	}

	// The keepalive must outlive the registering call.
	ch, err := r.client.KeepAlive(context.WithoutCancel(ctx), lease.ID)
	if err != nil {
		return fmt.Errorf("keep alive: %w", err)
	}
	go func() {
		for range ch {
		}
		r.logger.Debug("lease keepalive stopped", zap.String("service", serviceName), zap.String("addr", instance.Addr))
	}()
	return nil
}

func (r *EtcdRegistry) Deregister(ctx context.Context, serviceName string, addr string) error {
	if _, err := r.client.Delete(ctx, instanceKey(serviceName, addr)); err != nil {
		return fmt.Errorf("delete instance: %w", err)
	}
	return nil
}

func (r *EtcdRegistry) Discover(ctx context.Context, serviceName string) ([]ServiceInstance, error) {
	resp, err := r.client.Get(ctx, servicePrefix(serviceName), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}

	instances := make([]ServiceInstance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var instance ServiceInstance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			r.logger.Warn("skip malformed instance", zap.ByteString("key", kv.Key), zap.Error(err))
			continue
		}
		instances = append(instances, instance)
	}
	return instances, nil
}

func (r *EtcdRegistry) Close() error {
	return r.client.Close()
}
