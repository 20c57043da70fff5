package taskprocessor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/qwestard/orders/internal/repository"
)

type Publisher interface {
	Publish(topic string, message []byte) error
}

// TaskProcessor relays outbox tasks to the message broker.
type TaskProcessor struct {
	repo         repository.TaskRepository
	producer     Publisher
	logger       *zap.Logger
	topic        string
	pollInterval time.Duration
	limit        int
	maxAttempts  int
	retryDelay   time.Duration
}

func NewTaskProcessor(repo repository.TaskRepository, producer Publisher, logger *zap.Logger, topic string, pollInterval time.Duration, limit int) *TaskProcessor {
	return &TaskProcessor{
		repo:         repo,
		producer:     producer,
		logger:       logger,
		topic:        topic,
		pollInterval: pollInterval,
		limit:        limit,
		maxAttempts:  3,
		retryDelay:   2 * time.Second,
	}
}

func (p *TaskProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.processPendingTasks(ctx)
		}
	}
}

func (p *TaskProcessor) processPendingTasks(ctx context.Context) {
	tasks, err := p.repo.GetPendingTasks(ctx, p.limit, p.maxAttempts)
	if err != nil {
		p.logger.Error("fetch pending tasks", zap.Error(err))
		return
	}
	for _, task := range tasks {
		if err := p.repo.MarkTaskProcessing(ctx, task.ID); err != nil {
			p.logger.Error("mark task processing", zap.Int("task", task.ID), zap.Error(err))
			continue
		}

		if err := p.producer.Publish(p.topic, task.AuditData); err != nil {
			p.update(ctx, task, err)
			continue
		}
		p.logger.Debug("task published", zap.Int("task", task.ID), zap.String("topic", p.topic))
		if err := p.repo.DeleteTask(ctx, task.ID); err != nil {
			p.logger.Error("delete published task", zap.Int("task", task.ID), zap.Error(err))
		}
	}
}

func (p *TaskProcessor) update(ctx context.Context, task *repository.Task, err error) {
	newAttempt := task.AttemptCount + 1
	newStatus := repository.TaskStatusFailed
	if newAttempt >= p.maxAttempts {
		newStatus = repository.TaskStatusNoAttemptsLeft
	}
	nextAttempt := time.Now().Add(p.retryDelay)
	if errUpd := p.repo.UpdateTaskFailure(ctx, task.ID, newAttempt, newStatus, nextAttempt); errUpd != nil {
		p.logger.Error("update failed task", zap.Int("task", task.ID), zap.Error(errUpd))
	}
	p.logger.Warn("publish task", zap.Int("task", task.ID), zap.Int("attempt", newAttempt), zap.Error(err))
}
