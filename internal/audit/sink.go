package audit

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/gzhole/toolgate/internal/invocation"
	"github.com/gzhole/toolgate/internal/policy"
)

// Sink stores audit records.
type Sink interface {
	Write(ctx context.Context, rec Record) error
	Close() error
}

// Multi fans each record out to every sink. A failing sink does not stop
// the others; their errors are joined.
type Multi []Sink

func (m Multi) Write(ctx context.Context, rec Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder turns evaluations into records and writes them, logging and
// swallowing every failure.
type Recorder struct {
	sink   Sink
	mode   policy.Mode
	logger *zap.Logger
}

// NewRecorder wraps sink. A nil sink records nothing.
func NewRecorder(sink Sink, mode policy.Mode, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{sink: sink, mode: mode, logger: logger}
}

// WithMode returns a recorder sharing r's sink that stamps records with mode.
func (r *Recorder) WithMode(mode policy.Mode) *Recorder {
	if r == nil {
		return nil
	}
	return &Recorder{sink: r.sink, mode: mode, logger: r.logger}
}

// Record writes one evaluation. It never panics and never returns an error.
func (r *Recorder) Record(ctx context.Context, inv invocation.Invocation, res policy.Result) {
	if r == nil || r.sink == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Warn("audit record panicked", zap.String("panic", fmt.Sprint(p)))
		}
	}()

	rec := NewRecord(inv, res, r.mode)
	if err := r.sink.Write(ctx, rec); err != nil {
		r.logger.Warn("audit write failed",
			zap.String("id", rec.ID),
			zap.String("decision", rec.Decision),
			zap.Error(err))
	}
}

// Close flushes and closes the underlying sink.
func (r *Recorder) Close() error {
	if r == nil || r.sink == nil {
		return nil
	}
	return r.sink.Close()
}
