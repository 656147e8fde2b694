package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS toolgate_audit (
	id         UUID PRIMARY KEY,
	timestamp  TIMESTAMPTZ NOT NULL,
	session_id TEXT NOT NULL DEFAULT '',
	tool       TEXT NOT NULL,
	tool_input JSONB,
	cwd        TEXT NOT NULL DEFAULT '',
	decision   TEXT NOT NULL,
	category   TEXT NOT NULL DEFAULT '',
	message    TEXT NOT NULL DEFAULT '',
	detector   TEXT NOT NULL DEFAULT '',
	mode       TEXT NOT NULL DEFAULT '',
	error      TEXT NOT NULL DEFAULT ''
)`

const postgresInsert = `
INSERT INTO toolgate_audit (
	id, timestamp, session_id, tool, tool_input,
	cwd, decision, category, message, detector, mode, error
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

// PostgresSink inserts one row per record through database/sql and the pgx
// driver.
type PostgresSink struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresSink opens dsn, checks the connection and creates the table
// when it does not exist.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create audit table: %w", err)
	}
	return &PostgresSink{db: db, timeout: 2 * time.Second}, nil
}

func (s *PostgresSink) Write(ctx context.Context, rec Record) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var input any
	if rec.Input != nil {
		b, err := json.Marshal(rec.Input)
		if err != nil {
			return fmt.Errorf("encode tool input: %w", err)
		}
		input = string(b)
	}

	_, err := s.db.ExecContext(ctx, postgresInsert,
		rec.ID, rec.Timestamp, rec.SessionID, rec.Tool, input,
		rec.Cwd, rec.Decision, rec.Category, rec.Message, rec.Detector, rec.Mode, rec.Error,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

func (s *PostgresSink) Close() error {
	return s.db.Close()
}
