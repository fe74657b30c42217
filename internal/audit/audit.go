package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"gitlab.ozon.dev/qwestard/storefront/internal/repository"
)

// Record captures one order status change for the audit trail.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	OldStatus string    `json:"old_status"`
	NewStatus string    `json:"new_status"`
	Message   string    `json:"message"`
}

type PoolConfig struct {
	BatchSize   int
	Timeout     time.Duration
	ChannelSize int
}

type Processor interface {
	Process(batch []Record) error
}

// DBProcessor writes batches into audit_logs with a single multi-row insert.
type DBProcessor struct {
	DB *sql.DB
}

func (p *DBProcessor) Process(batch []Record) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO audit_logs (timestamp, order_id, user_id, old_status, new_status, message) VALUES `)

	params := []interface{}{}
	paramIndex := 1
	for i, rec := range batch {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d)",
			paramIndex, paramIndex+1, paramIndex+2, paramIndex+3, paramIndex+4, paramIndex+5))
		paramIndex += 6
		params = append(params, rec.Timestamp, rec.OrderID, rec.UserID, rec.OldStatus, rec.NewStatus, rec.Message)
	}
	_, err := p.DB.Exec(sb.String(), params...)
	if err != nil {
		return fmt.Errorf("DBProcessor error: %w", err)
	}
	return nil
}

// OutboxProcessor enqueues every record as a task row so the task processor
// can export it to Kafka with retries.
type OutboxProcessor struct {
	Tasks repository.TaskRepository
}

func (p *OutboxProcessor) Process(batch []Record) error {
	for _, rec := range batch {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("OutboxProcessor marshal: %w", err)
		}
		if err := p.Tasks.CreateTask(context.Background(), data); err != nil {
			return fmt.Errorf("OutboxProcessor enqueue: %w", err)
		}
	}
	return nil
}

// WorkerPool batches records from a bounded channel and hands each batch to all
// processors. A full channel drops the record rather than blocking a request.
type WorkerPool struct {
	inputCh    chan Record
	processors []Processor
	batchSize  int
	timeout    time.Duration

	wg sync.WaitGroup
}

func NewWorkerPool(cfg PoolConfig, processors ...Processor) *WorkerPool {
	return &WorkerPool{
		inputCh:    make(chan Record, cfg.ChannelSize),
		processors: processors,
		batchSize:  cfg.BatchSize,
		timeout:    cfg.Timeout,
	}
}

func (p *WorkerPool) Start(numWorkers int, ctx context.Context) {
	for i := 0; i < numWorkers; i++ {
		p.wg.Add(1)
		go func(ctx context.Context) {
			defer p.wg.Done()
			p.worker(ctx)
		}(ctx)
	}
}

func (p *WorkerPool) worker(ctx context.Context) {
	var batch []Record
	timer := time.NewTimer(p.timeout)
	for {
		select {
		case <-ctx.Done():
			if len(batch) > 0 {
				p.processBatch(batch)
			}
			return
		case rec := <-p.inputCh:
			batch = append(batch, rec)
			if len(batch) >= p.batchSize {
				if !timer.Stop() {
					<-timer.C
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

func (p *WorkerPool) processBatch(batch []Record) {
	for _, proc := range p.processors {
		if err := proc.Process(batch); err != nil {
			log.Printf("Error processing audit batch: %v", err)
		}
	}
}

func (p *WorkerPool) Log(record Record) {
	select {
	case p.inputCh <- record:
	default:
		log.Println("Audit log channel full, dropping record")
	}
}

func (p *WorkerPool) Shutdown(cancelFunc context.CancelFunc) {
	cancelFunc()
	p.wg.Wait()
}
