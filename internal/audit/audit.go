package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/qwestard/orders/internal/repository"
)

type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Method    string    `json:"method"`
	ClientID  string    `json:"client_id,omitempty"`
	OrderID   string    `json:"order_id,omitempty"`
	Request   string    `json:"request,omitempty"`
	Code      string    `json:"code"`
	Message   string    `json:"message,omitempty"`
}

type PoolConfig struct {
	BatchSize   int
	Timeout     time.Duration
	ChannelSize int
}

type Processor interface {
	Process(ctx context.Context, batch []Record) error
}

// DBProcessor stores each batch in audit_logs and queues every record in
// the outbox, in one transaction.
type DBProcessor struct {
	db *sql.DB
}

func NewDBProcessor(db *sql.DB) *DBProcessor {
	return &DBProcessor{db: db}
}

func (p *DBProcessor) Process(ctx context.Context, batch []Record) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO audit_logs (timestamp, method, client_id, order_id, request, code, message) VALUES `)

	params := make([]interface{}, 0, len(batch)*7)
	paramIndex := 1
	for i, rec := range batch {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d,$%d)", paramIndex, paramIndex+1, paramIndex+2, paramIndex+3, paramIndex+4, paramIndex+5, paramIndex+6))
		paramIndex += 7
		params = append(params, rec.Timestamp, rec.Method, rec.ClientID, rec.OrderID, rec.Request, rec.Code, rec.Message)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("DBProcessor begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, sb.String(), params...); err != nil {
		return fmt.Errorf("DBProcessor insert: %w", err)
	}
	for _, rec := range batch {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("DBProcessor marshal: %w", err)
		}
		if err := repository.InsertTask(ctx, tx, data); err != nil {
			return fmt.Errorf("DBProcessor outbox: %w", err)
		}
	}
	return tx.Commit()
}

// LogProcessor writes records to the service logger. Records whose
// message does not contain Filter (case-insensitive) are skipped.
type LogProcessor struct {
	Logger *zap.Logger
	Filter string
}

func (p *LogProcessor) Process(_ context.Context, batch []Record) error {
	for _, rec := range batch {
		if p.Filter != "" &&
			!strings.Contains(strings.ToLower(rec.Message), strings.ToLower(p.Filter)) {
			continue
		}
		p.Logger.Info("audit",
			zap.Time("timestamp", rec.Timestamp),
			zap.String("method", rec.Method),
			zap.String("client_id", rec.ClientID),
			zap.String("order_id", rec.OrderID),
			zap.String("code", rec.Code),
			zap.String("message", rec.Message),
		)
	}
	return nil
}

type WorkerPool struct {
	inputCh    chan Record
	processors []Processor
	batchSize  int
	timeout    time.Duration
	logger     *zap.Logger

	wg sync.WaitGroup
}

func NewWorkerPool(cfg PoolConfig, logger *zap.Logger, processors ...Processor) *WorkerPool {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Second
	}
	return &WorkerPool{
		inputCh:    make(chan Record, cfg.ChannelSize),
		processors: processors,
		batchSize:  cfg.BatchSize,
		timeout:    cfg.Timeout,
		logger:     logger,
	}
}

func (p *WorkerPool) Start(ctx context.Context, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.worker(ctx)
		}()
	}
}

func (p *WorkerPool) worker(ctx context.Context) {
	var batch []Record
	timer := time.NewTimer(p.timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			batch = p.drain(batch)
			if len(batch) > 0 {
				p.processBatch(batch)
			}
			return
		case rec := <-p.inputCh:
			batch = append(batch, rec)
			if len(batch) >= p.batchSize {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				p.processBatch(batch)
				batch = nil
				timer.Reset(p.timeout)
			}
		case <-timer.C:
			if len(batch) > 0 {
				p.processBatch(batch)
				batch = nil
			}
			timer.Reset(p.timeout)
		}
	}
}

// drain moves whatever is already queued into batch without blocking.
func (p *WorkerPool) drain(batch []Record) []Record {
	for {
		select {
		case rec := <-p.inputCh:
			batch = append(batch, rec)
		default:
			return batch
		}
	}
}

func (p *WorkerPool) processBatch(batch []Record) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, proc := range p.processors {
		if err := proc.Process(ctx, batch); err != nil {
			p.logger.Error("audit batch failed", zap.Int("size", len(batch)), zap.Error(err))
		}
	}
}

// Log queues a record. It never blocks: when the queue is full the record
// is dropped.
func (p *WorkerPool) Log(record Record) {
	select {
	case p.inputCh <- record:
	default:
		p.logger.Warn("audit log channel full, dropping record", zap.String("method", record.Method))
	}
}

func (p *WorkerPool) Shutdown(cancelFunc context.CancelFunc) {
	cancelFunc()
	p.wg.Wait()
}
