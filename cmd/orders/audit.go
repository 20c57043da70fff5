package main

import (
	"encoding/json"
	"errors"
	"os/signal"
	"syscall"

	"github.com/IBM/sarama"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gitlab.ozon.dev/qwestard/orders/internal/audit"
	"gitlab.ozon.dev/qwestard/orders/internal/kafka"
)

var auditTailCmd = &cobra.Command{
	Use:   "audit-tail",
	Short: "Print audit records published to Kafka",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(cfg.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is not set")
		}
		filter, _ := cmd.Flags().GetString("filter")

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		printer := &audit.LogProcessor{Logger: log.Named("audit-tail"), Filter: filter}
		handler := kafka.ConsumerGroupHandler{
			Logger: log,
			Handle: func(msg *sarama.ConsumerMessage) error {
				var rec audit.Record
				if err := json.Unmarshal(msg.Value, &rec); err != nil {
					return err
				}
				return printer.Process(ctx, []audit.Record{rec})
			},
		}
		log.Info("tailing audit topic", zap.String("topic", cfg.KafkaTopic), zap.Strings("brokers", cfg.KafkaBrokers))
		return kafka.StartSaramaConsumer(ctx, cfg.KafkaBrokers, cfg.KafkaGroupID, []string{cfg.KafkaTopic}, handler)
	},
}

func init() {
	auditTailCmd.Flags().String("filter", "", "only print records whose message contains this text")
	rootCmd.AddCommand(auditTailCmd)
}
