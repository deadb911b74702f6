package app

import (
	"github.com/rs/zerolog/log"

	"github.com/obeisser/wledd/internal/storage"
)

// ledgerAudit records the command lifecycle in the command ledger: one
// entry per first send, per retry, and per exhausted budget.
type ledgerAudit struct {
	ledger *storage.Ledger
}

func newLedgerAudit(ledger *storage.Ledger) *ledgerAudit {
	return &ledgerAudit{ledger: ledger}
}

func (a *ledgerAudit) CommandIssued(requestID, path string) {
	if err := a.ledger.Append(requestID, path, storage.OutcomeIssued, ""); err != nil {
		log.Error().Err(err).Str("request_id", requestID).Msg("Failed to record issued command")
	}
}

func (a *ledgerAudit) CommandRetried(requestID, path string, attempt int, cause error) {
	if err := a.ledger.Append(requestID, path, storage.OutcomeRetried, cause.Error()); err != nil {
		log.Error().Err(err).Str("request_id", requestID).Msg("Failed to record command retry")
	}
}

func (a *ledgerAudit) CommandFailed(requestID, path string, cause error) {
	if err := a.ledger.Append(requestID, path, storage.OutcomePermanentFailure, cause.Error()); err != nil {
		log.Error().Err(err).Str("request_id", requestID).Msg("Failed to record permanent failure")
	}
}
