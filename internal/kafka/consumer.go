package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

type MessageHandler func(msg *sarama.ConsumerMessage) error

type ConsumerGroupHandler struct {
	Handle MessageHandler
	Logger *zap.Logger
}

func (ConsumerGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (ConsumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim hands every message to Handle and marks it consumed. Handler
// errors are logged and the message is still marked, so one bad record
// cannot stall the partition.
func (h ConsumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		if err := h.Handle(msg); err != nil {
			h.Logger.Error("handle message",
				zap.String("topic", msg.Topic),
				zap.Int32("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		}
		session.MarkMessage(msg, "")
	}
	return nil
}

// StartSaramaConsumer consumes topics as groupID until ctx is done.
func StartSaramaConsumer(ctx context.Context, brokers []string, groupID string, topics []string, handler ConsumerGroupHandler) error {
	config := sarama.NewConfig()
	config.Consumer.Offsets.Initial = sarama.OffsetOldest

	consumerGroup, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() {
		if err := consumerGroup.Close(); err != nil {
			handler.Logger.Error("close consumer group", zap.Error(err))
		}
	}()

	for {
		if err := consumerGroup.Consume(ctx, topics, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			handler.Logger.Warn("error from consumer", zap.Error(err))
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}
