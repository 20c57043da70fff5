package main

import (
	"context"
	"database/sql"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gitlab.ozon.dev/qwestard/orders/internal/audit"
	"gitlab.ozon.dev/qwestard/orders/internal/db"
	"gitlab.ozon.dev/qwestard/orders/internal/kafka"
	"gitlab.ozon.dev/qwestard/orders/internal/metrics"
	taskprocessor "gitlab.ozon.dev/qwestard/orders/internal/processor"
	"gitlab.ozon.dev/qwestard/orders/internal/registry"
	"gitlab.ozon.dev/qwestard/orders/internal/repository"
	"gitlab.ozon.dev/qwestard/orders/internal/server"
	"gitlab.ozon.dev/qwestard/orders/internal/service"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the orders gRPC server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServer(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(ctx context.Context) error {
	var wg sync.WaitGroup

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.Serve(ctx, cfg.MetricsAddr, log); err != nil {
				log.Error("metrics server", zap.Error(err))
			}
		}()
	}

	processors := []audit.Processor{&audit.LogProcessor{Logger: log.Named("audit")}}

	var database *sql.DB
	if cfg.DSN != "" {
		var err error
		database, err = db.NewDB(cfg.DSN)
		if err != nil {
			return fmt.Errorf("connect to db: %w", err)
		}
		defer database.Close()
		processors = append(processors, audit.NewDBProcessor(database))
	}

	if database != nil && len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewSaramaProducer(cfg.KafkaBrokers, log)
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		defer producer.Close()

		tp := taskprocessor.NewTaskProcessor(repository.NewPostgresTaskRepository(database), producer, log, cfg.KafkaTopic, cfg.PollInterval, 100)
		wg.Add(1)
		go func() {
			defer wg.Done()
			tp.Start(ctx)
		}()
	}
	// Background loops stop with ctx and must be gone before the producer
	// and database close.
	defer wg.Wait()

	poolCtx, cancelPool := context.WithCancel(context.Background())
	pool := audit.NewWorkerPool(audit.PoolConfig{
		BatchSize:   cfg.AuditBatchSize,
		Timeout:     cfg.AuditTimeout,
		ChannelSize: cfg.AuditChannelSize,
	}, log, processors...)
	pool.Start(poolCtx, cfg.AuditWorkers)
	// The pool outlives the gRPC server so records from draining calls
	// still get flushed.
	defer pool.Shutdown(cancelPool)

	opts := []server.Option{server.WithMetrics(m), server.WithAudit(pool)}
	if len(cfg.EtcdEndpoints) > 0 {
		reg, err := registry.NewEtcdRegistry(cfg.EtcdEndpoints, log)
		if err != nil {
			return err
		}
		defer reg.Close()
		opts = append(opts, server.WithRegistry(reg))
	}

	svc := service.NewOrderService(log, service.WithMetrics(m))
	srv := server.NewServer(cfg, svc, log, opts...)
	return srv.Run(ctx)
}
