package client

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/resolver"

	"gitlab.ozon.dev/qwestard/orders/internal/registry"
)

const (
	resolverScheme         = "orders-registry"
	defaultRefreshInterval = 10 * time.Second
)

// registryBuilder resolves targets by polling a registry. The instance list
// is refreshed on a ticker and whenever gRPC asks for re-resolution.
type registryBuilder struct {
	reg      registry.Registry
	interval time.Duration
	logger   *zap.Logger
}

func (b *registryBuilder) Scheme() string { return resolverScheme }

func (b *registryBuilder) Build(target resolver.Target, cc resolver.ClientConn, _ resolver.BuildOptions) (resolver.Resolver, error) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &registryResolver{
		service: target.Endpoint(),
		reg:     b.reg,
		cc:      cc,
		logger:  b.logger,
		cancel:  cancel,
		now:     make(chan struct{}, 1),
	}
	r.refresh(ctx)
	r.wg.Add(1)
	go r.watch(ctx, b.interval)
	return r, nil
}

type registryResolver struct {
	service string
	reg     registry.Registry
	cc      resolver.ClientConn
	logger  *zap.Logger
	cancel  context.CancelFunc
	now     chan struct{}
	wg      sync.WaitGroup
}

func (r *registryResolver) refresh(ctx context.Context) {
	instances, err := r.reg.Discover(ctx, r.service)
	if err != nil {
		r.logger.Warn("discover instances", zap.String("service", r.service), zap.Error(err))
		r.cc.ReportError(err)
		return
	}
	addrs := make([]resolver.Address, 0, len(instances))
	for _, in := range instances {
		addrs = append(addrs, resolver.Address{Addr: in.Addr})
	}
	if err := r.cc.UpdateState(resolver.State{Addresses: addrs}); err != nil {
		r.logger.Debug("update resolver state", zap.Error(err))
	}
}

func (r *registryResolver) watch(ctx context.Context, interval time.Duration) {
	defer r.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-r.now:
		}
		r.refresh(ctx)
	}
}

func (r *registryResolver) ResolveNow(resolver.ResolveNowOptions) {
	select {
	case r.now <- struct{}{}:
	default:
	}
}

func (r *registryResolver) Close() {
	r.cancel()
	r.wg.Wait()
}
