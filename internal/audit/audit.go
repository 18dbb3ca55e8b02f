// Package audit records access decisions for restricted commands to an
// append-only JSONL file and, when a database is attached, the audit_log
// table.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/basket/haxxor-bunny/internal/shared"
)

const (
	DecisionAllow = "allow"
	DecisionDeny  = "deny"
)

// Entry is one access decision.
type Entry struct {
	Decision      string
	Command       string
	Reason        string
	PolicyVersion string
	// Subject identifies who asked, usually "user:<id>".
	Subject string
}

type line struct {
	Timestamp     string `json:"timestamp"`
	TraceID       string `json:"trace_id"`
	InteractionID string `json:"interaction_id,omitempty"`
	Decision      string `json:"decision"`
	Command       string `json:"command"`
	Reason        string `json:"reason"`
	PolicyVersion string `json:"policy_version"`
	Subject       string `json:"subject,omitempty"`
}

// Log is an audit sink. A nil *Log discards entries.
type Log struct {
	mu        sync.Mutex
	file      *os.File
	db        *sql.DB
	denyCount atomic.Int64
}

// Open creates or appends to <home>/logs/audit.jsonl.
func Open(homeDir string) (*Log, error) {
	logDir := filepath.Join(homeDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(logDir, "audit.jsonl"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &Log{file: f}, nil
}

// SetDB mirrors subsequent entries into the audit_log table.
func (l *Log) SetDB(d *sql.DB) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.db = d
}

func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// DenyCount returns the number of deny decisions since Open.
func (l *Log) DenyCount() int64 {
	if l == nil {
		return 0
	}
	return l.denyCount.Load()
}

// Record writes an entry. Failures are swallowed; auditing never blocks
// a reply.
func (l *Log) Record(ctx context.Context, e Entry) {
	if l == nil {
		return
	}
	if e.Decision == DecisionDeny {
		l.denyCount.Add(1)
	}

	e.Reason = shared.Redact(e.Reason)
	e.Subject = shared.Redact(e.Subject)
	traceID := shared.TraceID(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		b, err := json.Marshal(line{
			Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
			TraceID:       traceID,
			InteractionID: shared.InteractionID(ctx),
			Decision:      e.Decision,
			Command:       e.Command,
			Reason:        e.Reason,
			PolicyVersion: e.PolicyVersion,
			Subject:       e.Subject,
		})
		if err == nil {
			_, _ = l.file.Write(append(b, '\n'))
		}
	}

	if l.db != nil {
		_, _ = l.db.ExecContext(context.WithoutCancel(ctx), `
			INSERT INTO audit_log (trace_id, subject, action, decision, reason, policy_version)
			VALUES (?, ?, ?, ?, ?, ?);
		`, traceID, e.Subject, e.Command, e.Decision, e.Reason, e.PolicyVersion)
	}
}
