package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

const (
	chBufferSize    = 10_000
	chFlushInterval = 100 * time.Millisecond
	chFlushBatch    = 1000
	chDrainTimeout  = 2 * time.Second
)

const clickHouseSchema = `
	CREATE TABLE IF NOT EXISTS toolgate_audit (
		id         UUID,
		timestamp  DateTime64(3, 'UTC'),
		session_id String,
		tool       LowCardinality(String),
		tool_input String,
		cwd        String,
		decision   LowCardinality(String),
		category   LowCardinality(String),
		message    String,
		detector   LowCardinality(String),
		mode       LowCardinality(String),
		error      String
	) ENGINE = MergeTree ORDER BY timestamp
`

const clickHouseInsert = `
	INSERT INTO toolgate_audit (
		id, timestamp, session_id, tool, tool_input,
		cwd, decision, category, message, detector, mode, error
	)
`

// ClickHouseSink inserts records asynchronously. Write never blocks: records
// are buffered and batch-inserted by one background goroutine, and dropped
// when the buffer is full.
type ClickHouseSink struct {
	conn    driver.Conn
	buffer  chan Record
	done    chan struct{}
	flushed chan struct{}
	logger  *zap.Logger
}

// NewClickHouseSink connects to dsn and starts the flush loop.
func NewClickHouseSink(ctx context.Context, dsn string, logger *zap.Logger) (*ClickHouseSink, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, err
	}
	if err := conn.Exec(ctx, clickHouseSchema); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &ClickHouseSink{
		conn:    conn,
		buffer:  make(chan Record, chBufferSize),
		done:    make(chan struct{}),
		flushed: make(chan struct{}),
		logger:  logger,
	}
	go s.flushLoop()
	return s, nil
}

func (s *ClickHouseSink) Write(_ context.Context, rec Record) error {
	select {
	case s.buffer <- rec:
	default:
		s.logger.Warn("clickhouse buffer full, dropping record", zap.String("id", rec.ID))
	}
	return nil
}

// Close drains buffered records and closes the connection.
func (s *ClickHouseSink) Close() error {
	close(s.done)
	<-s.flushed
	return s.conn.Close()
}

func (s *ClickHouseSink) flushLoop() {
	defer close(s.flushed)

	ticker := time.NewTicker(chFlushInterval)
	defer ticker.Stop()

	batch := make([]Record, 0, chFlushBatch)

	for {
		select {
		case rec := <-s.buffer:
			batch = append(batch, rec)
			if len(batch) >= chFlushBatch {
				s.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.flush(batch)
				batch = batch[:0]
			}
		case <-s.done:
			drainCtx, cancel := context.WithTimeout(context.Background(), chDrainTimeout)
			defer cancel()
		drainLoop:
			for {
				select {
				case rec := <-s.buffer:
					batch = append(batch, rec)
				case <-drainCtx.Done():
					break drainLoop
				default:
					break drainLoop
				}
			}
			if len(batch) > 0 {
				s.flush(batch)
			}
			return
		}
	}
}

func (s *ClickHouseSink) flush(records []Record) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	batch, err := s.conn.PrepareBatch(ctx, clickHouseInsert)
	if err != nil {
		s.logger.Error("clickhouse prepare batch failed", zap.Error(err))
		return
	}

	for _, r := range records {
		input, _ := json.Marshal(r.Input)
		if err := batch.Append(
			r.ID, r.Timestamp, r.SessionID, r.Tool, string(input),
			r.Cwd, r.Decision, r.Category, r.Message, r.Detector, r.Mode, r.Error,
		); err != nil {
			s.logger.Error("clickhouse append record failed", zap.String("id", r.ID), zap.Error(err))
		}
	}

	if err := batch.Send(); err != nil {
		s.logger.Error("clickhouse batch send failed", zap.Int("batch_size", len(records)), zap.Error(err))
	}
}
