// Package audit provides PDR (Process Decision Record) writing for agent
// mutations on the local daemon.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"

	"github.com/fentz26/autopilot/internal/models"
	"github.com/fentz26/autopilot/internal/store"
)

// Outcomes recorded for an action.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// PDRWriter writes Process Decision Records for audit trails.
type PDRWriter struct {
	store  *store.Store
	logger *slog.Logger
}

// NewPDRWriter creates a new PDR writer.
func NewPDRWriter(s *store.Store, logger *slog.Logger) *PDRWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDRWriter{store: s, logger: logger}
}

// Record writes a PDR entry for a state-mutating action. A write failure is
// logged and never fails the action itself.
func (w *PDRWriter) Record(action string, inputs any, outcome, agentID, details string) *models.DecisionRecord {
	rec, err := w.store.WritePDR(action, hashInputs(inputs), outcome, agentID, details)
	if err != nil {
		w.logger.Error("write pdr failed", "action", action, "agent", agentID, "error", err)
		return nil
	}
	w.logger.Debug("pdr", "action", action, "outcome", outcome, "agent", agentID)
	return rec
}

// Recent returns the latest records for an agent.
func (w *PDRWriter) Recent(agentID string, limit int) ([]models.DecisionRecord, error) {
	return w.store.ListPDR(agentID, limit)
}

// hashInputs creates a SHA256 hash of the inputs for reproducibility.
func hashInputs(inputs any) string {
	data, err := json.Marshal(inputs)
	if err != nil {
		return "hash_error"
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
