// Package audit persists one record per evaluated invocation. Records are
// redacted before they reach any sink, and sink failures never change a
// decision.
package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/gzhole/toolgate/internal/invocation"
	"github.com/gzhole/toolgate/internal/policy"
	"github.com/gzhole/toolgate/internal/redact"
)

// Record is one audit entry.
type Record struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id,omitempty"`
	Tool      string         `json:"tool"`
	Input     map[string]any `json:"tool_input,omitempty"`
	Cwd       string         `json:"cwd,omitempty"`
	Decision  string         `json:"decision"`
	Category  string         `json:"category,omitempty"`
	Message   string         `json:"message,omitempty"`
	Detector  string         `json:"detector,omitempty"`
	Mode      string         `json:"mode,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Blocked reports whether the record describes a blocked invocation.
func (r Record) Blocked() bool {
	return r.Decision == string(policy.DecisionBlock)
}

// NewRecord builds a redacted record for one evaluation.
func NewRecord(inv invocation.Invocation, res policy.Result, mode policy.Mode) Record {
	rec := Record{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		SessionID: inv.SessionID,
		Tool:      inv.ToolName,
		Input:     redact.Input(inv.Input),
		Cwd:       inv.Cwd,
		Decision:  string(res.Decision),
		Category:  string(res.Category),
		Message:   res.Message,
		Detector:  res.DetectorID,
		Mode:      string(mode),
	}
	if rec.Tool == "" {
		rec.Tool = res.Tool
	}
	if res.Err != nil {
		rec.Error = redact.Redact(res.Err.Error())
	}
	return rec
}
