// Package storage provides the host-side persistence for wledd: published
// attribute values and an append-only command ledger.
package storage

import (
	"database/sql"
	"time"
)

// Outcome classifies a ledger entry.
type Outcome string

const (
	OutcomeIssued           Outcome = "issued"
	OutcomeRetried          Outcome = "retried"
	OutcomePermanentFailure Outcome = "permanent_failure"
)

// Ledger is an append-only record of issued commands and their outcomes.
type Ledger struct {
	db *sql.DB
}

// NewLedger creates a ledger using the provided database connection.
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Append records a command outcome.
func (l *Ledger) Append(requestID, path string, outcome Outcome, detail string) error {
	_, err := l.db.Exec(`
		INSERT INTO command_ledger (request_id, path, outcome, detail, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, requestID, path, string(outcome), detail, time.Now().UTC().Unix())
	return err
}

// CountByOutcome returns how many entries exist for a request with the given outcome.
func (l *Ledger) CountByOutcome(requestID string, outcome Outcome) (int, error) {
	var n int
	err := l.db.QueryRow(`
		SELECT COUNT(*) FROM command_ledger WHERE request_id = ? AND outcome = ?
	`, requestID, string(outcome)).Scan(&n)
	return n, err
}
